package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"datahub/internal/indicator"
	"datahub/internal/storage"
)

// Repo implements storage.Repository for SQLite.
//
// Key design points vs Postgres:
//   - Numerics are stored as TEXT. SQLite's NUMERIC affinity would coerce
//     "87.50" to the float 87.5 and lose the fixed-point form, so the exact
//     decimal string goes in verbatim and scans back unchanged.
//   - Upserts use INSERT ... ON CONFLICT, supported since SQLite 3.24.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
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

// EnsureSchema creates tables if they do not exist. Idempotent.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, ddl := range createDDL() {
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (r *Repo) UpsertIndicators(ctx context.Context, inds []indicator.Indicator) error {
	if len(inds) == 0 {
		return nil
	}
	const q = `INSERT INTO indicators (slug, name, unit, published) VALUES (?, ?, ?, ?)
		ON CONFLICT (slug) DO UPDATE SET name = excluded.name, unit = excluded.unit, published = excluded.published;`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, ind := range inds {
		if _, err := tx.ExecContext(ctx, q, ind.Slug, ind.Name, ind.Unit, ind.Published); err != nil {
			return fmt.Errorf("upsert indicator %s: %w", ind.Slug, err)
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

// ReplaceIndicatorData clears and reloads one indicator's data in a single
// transaction.
func (r *Repo) ReplaceIndicatorData(ctx context.Context, indicatorSlug string, rows []indicator.Data) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM indicator_data WHERE indicator = ?`, indicatorSlug); err != nil {
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
		`SELECT count(*) FROM indicator_data WHERE indicator = ?`, indicatorSlug,
	).Scan(&n)
	return n, err
}

// insertRowsTx inserts rows one statement at a time inside tx.
//
// SQLite gains little from multi-row VALUES at our batch sizes, and single
// statements keep the builder trivial.
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
		`CREATE TABLE IF NOT EXISTS indicators (
			slug TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			unit TEXT NOT NULL DEFAULT '',
			published INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS indicator_data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			indicator TEXT NOT NULL,
			data_type TEXT NOT NULL,
			"string" TEXT,
			"numeric" TEXT,
			key_unit_type TEXT NOT NULL,
			key_value TEXT NOT NULL,
			time_type TEXT NOT NULL,
			time_key TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_indicator_data_indicator ON indicator_data (indicator);`,
	}
}

func buildInsertDataSQL() string {
	var b strings.Builder
	b.WriteString("INSERT INTO indicator_data (")
	for i, c := range storage.DataColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(`"` + c + `"`)
	}
	b.WriteString(") VALUES (")
	for i := range storage.DataColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("?")
	}
	b.WriteString(");")
	return b.String()
}

func buildSetPublishedSQL(slugs []string, published bool) (string, []any) {
	var b strings.Builder
	b.WriteString("UPDATE indicators SET published = ? WHERE slug IN (")

	args := make([]any, 0, len(slugs)+1)
	args = append(args, published)
	for i, s := range slugs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("?")
		args = append(args, s)
	}
	b.WriteString(");")
	return b.String(), args
}
