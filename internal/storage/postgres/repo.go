package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"datahub/internal/indicator"
	"datahub/internal/storage"
)

// Repo implements storage.Repository for Postgres.
//
// SQL text is produced by pure builder functions so placeholder numbering
// and quoting can be unit-tested without a database. The "string" and
// "numeric" value columns collide with type keywords and are always quoted.
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New creates a Postgres-backed Repo from cfg.DSN.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// EnsureSchema creates the indicators and indicator_data tables if needed.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, ddl := range createDDL() {
		if _, err := r.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// UpsertIndicators inserts or updates metadata rows keyed by slug.
func (r *Repo) UpsertIndicators(ctx context.Context, inds []indicator.Indicator) error {
	if len(inds) == 0 {
		return nil
	}
	sql, args := buildUpsertIndicatorsSQL(inds)
	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upsert indicators: %w", err)
	}
	return nil
}

// SetPublished flips the published flag for the named indicators.
func (r *Repo) SetPublished(ctx context.Context, slugs []string, published bool) (int64, error) {
	if len(slugs) == 0 {
		return 0, nil
	}
	sql, args := buildSetPublishedSQL(slugs, published)
	cmd, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// ReplaceIndicatorData clears and reloads one indicator's data in a single
// transaction, so readers never observe a half-loaded state.
func (r *Repo) ReplaceIndicatorData(ctx context.Context, indicatorSlug string, rows []indicator.Data) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM indicator_data WHERE indicator = $1`, indicatorSlug); err != nil {
		return 0, fmt.Errorf("clear indicator %s: %w", indicatorSlug, err)
	}

	var total int64
	if len(rows) > 0 {
		sql, args := buildInsertDataSQL(rows)
		cmd, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return 0, fmt.Errorf("insert indicator %s: %w", indicatorSlug, err)
		}
		total = cmd.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return total, nil
}

// InsertIndicatorData appends rows without clearing.
func (r *Repo) InsertIndicatorData(ctx context.Context, rows []indicator.Data) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	sql, args := buildInsertDataSQL(rows)
	cmd, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// CountIndicatorData reports the stored row count for one indicator.
func (r *Repo) CountIndicatorData(ctx context.Context, indicatorSlug string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM indicator_data WHERE indicator = $1`, indicatorSlug,
	).Scan(&n)
	return n, err
}

// ---- pure SQL builders ----

// createDDL returns the idempotent DDL statements, in execution order.
func createDDL() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS indicators (
			slug TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			unit TEXT NOT NULL DEFAULT '',
			published BOOLEAN NOT NULL DEFAULT FALSE
		);`,
		`CREATE TABLE IF NOT EXISTS indicator_data (
			id BIGSERIAL PRIMARY KEY,
			indicator TEXT NOT NULL,
			data_type TEXT NOT NULL,
			"string" TEXT,
			"numeric" NUMERIC,
			key_unit_type TEXT NOT NULL,
			key_value TEXT NOT NULL,
			time_type TEXT NOT NULL,
			time_key TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_indicator_data_indicator ON indicator_data (indicator);`,
	}
}

// buildInsertDataSQL constructs one multi-row INSERT and its args.
//
// Why this exists:
//   - It is pure and deterministic, so placeholder numbering and column
//     quoting are unit-testable without a database.
func buildInsertDataSQL(rows []indicator.Data) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO indicator_data (")
	for i, c := range storage.DataColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(storage.DataColumns))
	p := 1
	for i, d := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, v := range storage.DataRow(d) {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, v)
			p++
		}
		b.WriteString(")")
	}
	b.WriteString(";")
	return b.String(), args
}

func buildUpsertIndicatorsSQL(inds []indicator.Indicator) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO indicators (slug, name, unit, published) VALUES ")

	args := make([]any, 0, len(inds)*4)
	p := 1
	for i, ind := range inds {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d)", p, p+1, p+2, p+3)
		args = append(args, ind.Slug, ind.Name, ind.Unit, ind.Published)
		p += 4
	}
	b.WriteString(" ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, unit = EXCLUDED.unit, published = EXCLUDED.published;")
	return b.String(), args
}

func buildSetPublishedSQL(slugs []string, published bool) (string, []any) {
	var b strings.Builder
	b.WriteString("UPDATE indicators SET published = $1 WHERE slug IN (")

	args := make([]any, 0, len(slugs)+1)
	args = append(args, published)
	for i, s := range slugs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", i+2)
		args = append(args, s)
	}
	b.WriteString(");")
	return b.String(), args
}

// pgIdent double-quotes an identifier, escaping embedded quotes.
func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
