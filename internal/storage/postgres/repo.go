// Package postgres implements the load engine's repository contract on pgx
// v5. Batch data lands via COPY; the data COPY and the checkpoint upsert share
// one transaction, so a batch is either fully visible or fully absent.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ouladload/internal/schema"
	"ouladload/internal/storage"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN string // connection string understood by pgxpool
}

// Repository is a Postgres-backed checkpoint-aware store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository connects a pool and returns a close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{pool: pool}, pool.Close, nil
}

// Bootstrap creates the checkpoint table when absent.
func (r *Repository) Bootstrap(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, sqlProgressDDL); err != nil {
		return fmt.Errorf("bootstrap %s: %w", schema.ProgressTable, err)
	}
	return nil
}

// EnsureTable creates tbl when absent.
func (r *Repository) EnsureTable(ctx context.Context, tbl schema.Table) error {
	if _, err := r.pool.Exec(ctx, createTableSQL(tbl)); err != nil {
		return fmt.Errorf("ensure table %s: %w", tbl.Name, err)
	}
	return nil
}

// LastCommitted returns the stored checkpoint for table, or 0 when the table
// has never committed a batch.
func (r *Repository) LastCommitted(ctx context.Context, table string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, sqlLastCommitted, table).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read checkpoint for %s: %w", table, err)
	}
	return n, nil
}

// CommitBatch appends rows to table and advances its checkpoint in one
// transaction. Empty batches still advance the checkpoint.
func (r *Repository) CommitBatch(ctx context.Context, table string, columns []string, rows [][]any, batch int) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var n int64
	if len(rows) > 0 {
		n, err = tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Detail != "" {
				return 0, fmt.Errorf("copy into %s: %s: %s", table, pgErr.Message, pgErr.Detail)
			}
			return 0, fmt.Errorf("copy into %s: %w", table, err)
		}
	}
	if _, err := tx.Exec(ctx, sqlUpsertProgress, table, batch, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("advance checkpoint for %s: %w", table, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit batch %d for %s: %w", batch, table, err)
	}
	return n, nil
}

// Checkpoints lists progress rows ordered by table name.
func (r *Repository) Checkpoints(ctx context.Context) ([]storage.Checkpoint, error) {
	rows, err := r.pool.Query(ctx, sqlCheckpoints)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []storage.Checkpoint
	for rows.Next() {
		var cp storage.Checkpoint
		if err := rows.Scan(&cp.Table, &cp.LastCommitted, &cp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// Reset clears the named tables and their checkpoints in one transaction.
// Tables that do not exist yet are skipped, so a reset also works against a
// half-provisioned database.
func (r *Repository) Reset(ctx context.Context, tables []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, t := range tables {
		var exists bool
		if err := tx.QueryRow(ctx, sqlTableExists, pgIdent(t)).Scan(&exists); err != nil {
			return fmt.Errorf("check table %s: %w", t, err)
		}
		if exists {
			if _, err := tx.Exec(ctx, "DELETE FROM "+pgIdent(t)); err != nil {
				return fmt.Errorf("clear table %s: %w", t, err)
			}
		}
		if _, err := tx.Exec(ctx, sqlDeleteProgress, t); err != nil {
			return fmt.Errorf("clear checkpoint for %s: %w", t, err)
		}
	}
	return tx.Commit(ctx)
}

// ClearCheckpoints deletes the progress rows for the named tables, leaving
// their data in place. The next load of a cleared table starts again at batch
// one and appends.
func (r *Repository) ClearCheckpoints(ctx context.Context, tables []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, t := range tables {
		if _, err := tx.Exec(ctx, sqlDeleteProgress, t); err != nil {
			return fmt.Errorf("clear checkpoint for %s: %w", t, err)
		}
	}
	return tx.Commit(ctx)
}

// Exec runs a single statement against the pool.
func (r *Repository) Exec(ctx context.Context, stmt string) error {
	if _, err := r.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}
