package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"datahub/internal/indicator"
	"datahub/internal/storage"
)

// Repo implements storage.Repository for Microsoft SQL Server.
//
// Differences from Postgres worth knowing:
//   - Identifiers are bracket-quoted; the "string" and "numeric" value
//     columns need it.
//   - CREATE TABLE IF NOT EXISTS does not exist; DDL guards with an
//     OBJECT_ID check instead.
//   - Upserts avoid MERGE (locking quirks) in favor of UPDATE-then-INSERT
//     inside a transaction.
//
// Note on driver registration:
//   - This package intentionally does NOT blank-import a SQL Server driver.
//     The application must register the "sqlserver" driver elsewhere
//     (cmd/load imports github.com/microsoft/go-mssqldb for this).
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

// New constructs a Repo using database/sql and the "sqlserver" driver.
// Connectivity is validated via PingContext.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, ddl := range createDDL() {
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// UpsertIndicators updates each slug's row and inserts it when the update
// touched nothing.
func (r *Repo) UpsertIndicators(ctx context.Context, inds []indicator.Indicator) error {
	if len(inds) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, ind := range inds {
		res, err := tx.ExecContext(ctx,
			`UPDATE indicators SET name = @p2, unit = @p3, published = @p4 WHERE slug = @p1`,
			ind.Slug, ind.Name, ind.Unit, ind.Published)
		if err != nil {
			return fmt.Errorf("upsert indicator %s: %w", ind.Slug, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO indicators (slug, name, unit, published) VALUES (@p1, @p2, @p3, @p4)`,
				ind.Slug, ind.Name, ind.Unit, ind.Published); err != nil {
				return fmt.Errorf("insert indicator %s: %w", ind.Slug, err)
			}
		}
	}
	return tx.Commit()
}

func (r *Repo) SetPublished(ctx context.Context, slugs []string, published bool) (int64, error) {
	if len(slugs) == 0 {
		return 0, nil
	}
	q, args := buildSetPublishedSQL(slugs, published)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repo) ReplaceIndicatorData(ctx context.Context, indicatorSlug string, rows []indicator.Data) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM indicator_data WHERE indicator = @p1`, indicatorSlug); err != nil {
		return 0, fmt.Errorf("clear indicator %s: %w", indicatorSlug, err)
	}

	total, err := insertRowsTx(ctx, tx, rows)
	if err != nil {
		return 0, fmt.Errorf("insert indicator %s: %w", indicatorSlug, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *Repo) InsertIndicatorData(ctx context.Context, rows []indicator.Data) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	total, err := insertRowsTx(ctx, tx, rows)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *Repo) CountIndicatorData(ctx context.Context, indicatorSlug string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM indicator_data WHERE indicator = @p1`, indicatorSlug,
	).Scan(&n)
	return n, err
}

func insertRowsTx(ctx context.Context, tx *sql.Tx, rows []indicator.Data) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	q := buildInsertDataSQL()

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var total int64
	for _, d := range rows {
		if _, err := stmt.ExecContext(ctx, storage.DataRow(d)...); err != nil {
			return total, err
		}
		total++
	}
	return total, nil
}

// ---- pure SQL builders ----

func createDDL() []string {
	return []string{
		`IF OBJECT_ID('indicators', 'U') IS NULL
		CREATE TABLE indicators (
			slug NVARCHAR(255) NOT NULL PRIMARY KEY,
			name NVARCHAR(255) NOT NULL,
			unit NVARCHAR(64) NOT NULL DEFAULT '',
			published BIT NOT NULL DEFAULT 0
		);`,
		`IF OBJECT_ID('indicator_data', 'U') IS NULL
		CREATE TABLE indicator_data (
			id BIGINT IDENTITY(1,1) PRIMARY KEY,
			indicator NVARCHAR(255) NOT NULL,
			data_type NVARCHAR(16) NOT NULL,
			[string] NVARCHAR(MAX) NULL,
			[numeric] DECIMAL(18,4) NULL,
			key_unit_type NVARCHAR(64) NOT NULL,
			key_value NVARCHAR(64) NOT NULL,
			time_type NVARCHAR(64) NOT NULL,
			time_key NVARCHAR(64) NOT NULL
		);`,
		`IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = 'idx_indicator_data_indicator')
		CREATE INDEX idx_indicator_data_indicator ON indicator_data (indicator);`,
	}
}

func buildInsertDataSQL() string {
	var b strings.Builder
	b.WriteString("INSERT INTO indicator_data (")
	for i, c := range storage.DataColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(msIdent(c))
	}
	b.WriteString(") VALUES (")
	for i := range storage.DataColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "@p%d", i+1)
	}
	b.WriteString(");")
	return b.String()
}

func buildSetPublishedSQL(slugs []string, published bool) (string, []any) {
	var b strings.Builder
	b.WriteString("UPDATE indicators SET published = @p1 WHERE slug IN (")

	args := make([]any, 0, len(slugs)+1)
	args = append(args, published)
	for i, s := range slugs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "@p%d", i+2)
		args = append(args, s)
	}
	b.WriteString(");")
	return b.String(), args
}

// msIdent bracket-quotes an identifier, escaping closing brackets.
func msIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}
