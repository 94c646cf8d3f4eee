// Package storage contains storage-agnostic contracts and the backend
// factory. Concrete backends (Postgres, SQLite) live in subpackages and
// register themselves at init time; callers obtain a Repository via New and
// never import a backend directly.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// TableSpec identifies the load destination and its column layout. Columns
// are inferred from the merged CSV header at load time; every column is
// created as TEXT, so type mismatches surface at query time, not load time.
type TableSpec struct {
	// Schema is the target schema. Backends without schema support flatten it
	// into the table name.
	Schema string

	// Table is the target table name.
	Table string

	// Columns is the ordered column list, one per CSV header field.
	Columns []string

	// Truncate, when true, deletes all prior rows inside the load
	// transaction (truncate-and-reload semantics).
	Truncate bool
}

// AggregateSpec describes the ranked-average query run by the report stage:
// group by one text column, average a numeric cast of another, descending,
// top Limit groups. Rows whose group value is NULL or empty are excluded.
type AggregateSpec struct {
	Schema      string
	Table       string
	GroupColumn string
	ValueColumn string
	Limit       int
}

// AggregateRow is one ranked group in an aggregate result. The slice of rows
// returned by TopGroups is the tabular value object handed to the chart
// renderer.
type AggregateRow struct {
	Group   string
	Average float64
}

// Repository is the minimal storage surface the pipeline needs. One
// Repository is acquired per stage invocation and released on every exit
// path; see the stage runner.
type Repository interface {
	// Load writes rows into spec's table within a single transaction:
	// ensure schema, ensure table (all columns TEXT), optional full delete,
	// bulk insert. On any failure the transaction is rolled back and no rows
	// are visible. Returns the number of rows inserted.
	Load(ctx context.Context, spec TableSpec, rows [][]any) (int64, error)

	// TopGroups runs the ranked-average aggregate. The numeric cast of the
	// value column happens in SQL; a non-numeric value is a query-time error
	// surfaced to the caller.
	TopGroups(ctx context.Context, spec AggregateSpec) ([]AggregateRow, error)

	// Close releases the underlying pool/connection.
	Close()
}

// Config selects and configures a backend for New.
type Config struct {
	// Kind selects the registered backend ("postgres", "sqlite").
	Kind string

	// DSN is the backend connection string.
	DSN string
}

// Factory constructs a Repository for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	factoryMu sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for a backend kind. It is
// typically called from backend packages' init functions; re-registering is
// allowed so tests can install fakes.
func Register(kind string, fn Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[kind] = fn
}

// New constructs a Repository for cfg.Kind using the registered factory.
func New(ctx context.Context, cfg Config) (Repository, error) {
	factoryMu.RLock()
	fn, ok := factories[cfg.Kind]
	factoryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return fn(ctx, cfg)
}

// ListKinds returns the registered backend kinds, sorted.
func ListKinds() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
