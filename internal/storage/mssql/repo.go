// Package mssql implements the load engine's repository on the go-mssqldb
// bulk copy API. Batch rows stream through CopyIn inside the same transaction
// that advances the checkpoint.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"ouladload/internal/schema"
	"ouladload/internal/storage"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN string
}

// Repository is an MSSQL-backed checkpoint-aware store.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	closeFn := func() { _ = db.Close() }
	return &Repository{db: db}, closeFn, nil
}

// Bootstrap creates the checkpoint table when absent.
func (r *Repository) Bootstrap(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqlProgressDDL); err != nil {
		return fmt.Errorf("bootstrap %s: %w", schema.ProgressTable, err)
	}
	return nil
}

// EnsureTable creates tbl when absent.
func (r *Repository) EnsureTable(ctx context.Context, tbl schema.Table) error {
	if _, err := r.db.ExecContext(ctx, createTableSQL(tbl)); err != nil {
		return fmt.Errorf("ensure table %s: %w", tbl.Name, err)
	}
	return nil
}

// LastCommitted returns the stored checkpoint for table, or 0 when the table
// has never committed a batch.
func (r *Repository) LastCommitted(ctx context.Context, table string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, sqlLastCommitted, table).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read checkpoint for %s: %w", table, err)
	}
	return n, nil
}

// CommitBatch bulk-copies rows into table and advances its checkpoint in one
// transaction. The final parameterless Exec flushes the bulk stream.
func (r *Repository) CommitBatch(ctx context.Context, table string, columns []string, rows [][]any, batch int) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var copied int64
	if len(rows) > 0 {
		stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, mssql.BulkOptions{}, columns...))
		if err != nil {
			return 0, fmt.Errorf("prepare bulk: %w", err)
		}
		for i := range rows {
			if len(rows[i]) != len(columns) {
				_ = stmt.Close()
				return 0, fmt.Errorf("bulk into %s: row length %d != columns length %d", table, len(rows[i]), len(columns))
			}
			if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
				_ = stmt.Close()
				return 0, fmt.Errorf("bulk row %d: %w", i, err)
			}
		}
		res, err := stmt.ExecContext(ctx)
		if cerr := stmt.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			return 0, fmt.Errorf("bulk finalize: %w", err)
		}
		if copied, err = res.RowsAffected(); err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, sqlUpsertProgress, table, batch, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("advance checkpoint for %s: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch %d for %s: %w", batch, table, err)
	}
	return copied, nil
}

// Checkpoints lists progress rows ordered by table name. DATETIMEOFFSET scans
// straight into time.Time.
func (r *Repository) Checkpoints(ctx context.Context) ([]storage.Checkpoint, error) {
	rows, err := r.db.QueryContext(ctx, sqlCheckpoints)
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
// Tables that do not exist yet are skipped.
func (r *Repository) Reset(ctx context.Context, tables []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range tables {
		var n int
		if err := tx.QueryRowContext(ctx, sqlTableExists, t).Scan(&n); err != nil {
			return fmt.Errorf("check table %s: %w", t, err)
		}
		if n > 0 {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+msIdent(t)); err != nil {
				return fmt.Errorf("clear table %s: %w", t, err)
			}
		}
		if _, err := tx.ExecContext(ctx, sqlDeleteProgress, t); err != nil {
			return fmt.Errorf("clear checkpoint for %s: %w", t, err)
		}
	}
	return tx.Commit()
}

// ClearCheckpoints deletes the progress rows for the named tables, leaving
// their data in place.
func (r *Repository) ClearCheckpoints(ctx context.Context, tables []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range tables {
		if _, err := tx.ExecContext(ctx, sqlDeleteProgress, t); err != nil {
			return fmt.Errorf("clear checkpoint for %s: %w", t, err)
		}
	}
	return tx.Commit()
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}
