// Package storage defines the backend-agnostic Repository contract the load
// engine drives, plus a factory registry that concrete backends join at init
// time. The engine never imports a backend package; it opens repositories via
// New and stays ignorant of the dialect underneath.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ouladload/internal/schema"
)

// Config carries everything a backend needs to open a repository.
type Config struct {
	// Kind selects the registered backend, e.g. "postgres" or "sqlite".
	Kind string

	// DSN is passed to the backend's driver unchanged.
	DSN string
}

// Checkpoint is one row of the progress table: the highest batch index that
// has been durably committed for a table, and when it advanced.
type Checkpoint struct {
	Table         string
	LastCommitted int
	UpdatedAt     time.Time
}

// Repository is the contract every backend implements.
//
// CommitBatch is the only call that changes data and progress, and it changes
// them together: one transaction appends the batch and advances the table's
// checkpoint, or neither happens. Every other method either reads or prepares
// state. That single rule is what makes interrupted loads resumable.
type Repository interface {
	// Bootstrap creates the progress table when absent.
	Bootstrap(ctx context.Context) error

	// EnsureTable creates tbl when absent. An existing table is left as-is.
	EnsureTable(ctx context.Context, tbl schema.Table) error

	// LastCommitted returns the checkpoint for table, or 0 when the table has
	// never committed a batch.
	LastCommitted(ctx context.Context, table string) (int, error)

	// CommitBatch appends rows (cell order per columns) to table and advances
	// the table's checkpoint to batch inside a single transaction. It returns
	// the number of appended rows.
	CommitBatch(ctx context.Context, table string, columns []string, rows [][]any, batch int) (int64, error)

	// Checkpoints lists every progress row, ordered by table name.
	Checkpoints(ctx context.Context) ([]Checkpoint, error)

	// Reset deletes all rows from the named tables (in the given order) and
	// their progress rows in one transaction. Tables that do not exist in the
	// target database are skipped.
	Reset(ctx context.Context, tables []string) error

	// ClearCheckpoints deletes the progress rows for the named tables without
	// touching their data. A table whose next load should append from batch
	// one, on top of rows already present, gets its checkpoint cleared first.
	ClearCheckpoints(ctx context.Context, tables []string) error

	// Exec runs one backend-dialect SQL statement, typically DDL.
	Exec(ctx context.Context, sql string) error

	// Close releases the underlying pool or connection.
	Close()
}

// Factory constructs a Repository for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register adds (or replaces) the factory for kind. Backend packages call it
// from init; tests may override a kind with a fake.
func Register(kind string, fn Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = fn
}

// New opens a Repository of the configured kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	fn, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return fn(ctx, cfg)
}

// ListKinds returns a sorted snapshot of the registered backend names.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
