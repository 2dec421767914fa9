package storage

import (
	"context"
	"fmt"
	"sync"

	"datahub/internal/indicator"
)

// Config is the minimal configuration needed to create a repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is
//     backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Repository is a backend-agnostic interface for persisting indicator data.
//
// IMPORTANT: This interface is intentionally minimal and focused on the
// operations the importer needs. Each backend implements these semantics in
// its own idiomatic way (Postgres ON CONFLICT, SQLite OR REPLACE, MSSQL
// MERGE-free upserts, etc).
type Repository interface {
	// Close releases backend resources (connections, pools).
	//
	// Callers should treat Close as "call once" at shutdown.
	Close()

	// EnsureSchema creates the indicators and indicator_data tables if they
	// do not exist. Idempotent; safe to run at every job start.
	EnsureSchema(ctx context.Context) error

	// UpsertIndicators inserts or updates indicator metadata rows keyed by
	// slug (name, unit, published).
	UpsertIndicators(ctx context.Context, inds []indicator.Indicator) error

	// SetPublished flips the published flag on the named indicators and
	// reports how many rows changed.
	SetPublished(ctx context.Context, slugs []string, published bool) (int64, error)

	// ReplaceIndicatorData clears all stored data points for the indicator
	// and inserts rows in a single transaction. Returns the number of rows
	// inserted.
	//
	// This is the pregen-CSV load semantic: a part file is the full truth
	// for its indicator, so stale points must not survive a reload.
	ReplaceIndicatorData(ctx context.Context, indicatorSlug string, rows []indicator.Data) (int64, error)

	// InsertIndicatorData appends rows without clearing existing data.
	InsertIndicatorData(ctx context.Context, rows []indicator.Data) (int64, error)

	// CountIndicatorData reports how many data points are stored for the
	// indicator.
	CountIndicatorData(ctx context.Context, indicatorSlug string) (int64, error)
}

// ---- backend factories ----

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// Call Register from an init() function in a backend package. The kind
// string becomes the lookup key used by New.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered. This is intentional to fail fast and
//     avoid ambiguous backend selection.
func Register(kind string, f factory) {
	regMu.Lock()
	defer regMu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
//
// Concurrency:
//   - Safe for concurrent use with Register. New takes a read lock while
//     selecting the factory.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing Kind")
	}

	regMu.RLock()
	f := factories[cfg.Kind]
	regMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
