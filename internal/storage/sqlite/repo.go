package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go driver, no cgo

	"ouladload/internal/schema"
	"ouladload/internal/storage"
)

// Repository is a SQLite-backed checkpoint-aware store.
type Repository struct {
	db *sql.DB
}

// NewRepository opens a SQLite connection using the provided DSN and returns
// a Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// SQLite allows one writer at a time; a second pooled connection would
	// also see a separate database when the DSN is ":memory:".
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	// WAL keeps readers unblocked during long loads; memory databases report
	// their own mode and the statement is a no-op there.
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL;")

	closeFn := func() { db.Close() }
	return &Repository{db: db}, closeFn, nil
}

// Bootstrap creates the checkpoint table when absent.
func (r *Repository) Bootstrap(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqlProgressDDL); err != nil {
		return fmt.Errorf("sqlite: bootstrap %s: %w", schema.ProgressTable, err)
	}
	return nil
}

// EnsureTable creates tbl when absent.
func (r *Repository) EnsureTable(ctx context.Context, tbl schema.Table) error {
	if _, err := r.db.ExecContext(ctx, createTableSQL(tbl)); err != nil {
		return fmt.Errorf("sqlite: ensure table %s: %w", tbl.Name, err)
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
		return 0, fmt.Errorf("sqlite: read checkpoint for %s: %w", table, err)
	}
	return n, nil
}

// CommitBatch appends rows to table and advances its checkpoint in one
// transaction. SQLite has no bulk-load API like Postgres COPY; a prepared
// INSERT inside the batch transaction keeps performance acceptable for the
// volumes this engine handles.
func (r *Repository) CommitBatch(ctx context.Context, table string, columns []string, rows [][]any, batch int) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: commit batch: columns must not be empty")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var inserted int64
	if len(rows) > 0 {
		stmt, err := tx.PrepareContext(ctx, insertSQL(table, columns))
		if err != nil {
			return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			if len(row) != len(columns) {
				return 0, fmt.Errorf("sqlite: insert into %s: row length %d != columns length %d", table, len(row), len(columns))
			}
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				return 0, fmt.Errorf("sqlite: insert into %s: %w", table, err)
			}
			inserted++
		}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, sqlUpsertProgress, table, batch, now); err != nil {
		return 0, fmt.Errorf("sqlite: advance checkpoint for %s: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit batch %d for %s: %w", batch, table, err)
	}
	return inserted, nil
}

// Checkpoints lists progress rows ordered by table name.
func (r *Repository) Checkpoints(ctx context.Context) ([]storage.Checkpoint, error) {
	rows, err := r.db.QueryContext(ctx, sqlCheckpoints)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []storage.Checkpoint
	for rows.Next() {
		var cp storage.Checkpoint
		var ts string
		if err := rows.Scan(&cp.Table, &cp.LastCommitted, &ts); err != nil {
			return nil, fmt.Errorf("sqlite: scan checkpoint: %w", err)
		}
		if cp.UpdatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("sqlite: checkpoint %s: parse updated_at %q: %w", cp.Table, ts, err)
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
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range tables {
		var n int
		if err := tx.QueryRowContext(ctx, sqlTableExists, t).Scan(&n); err != nil {
			return fmt.Errorf("sqlite: check table %s: %w", t, err)
		}
		if n > 0 {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+sqlIdent(t)); err != nil {
				return fmt.Errorf("sqlite: clear table %s: %w", t, err)
			}
		}
		if _, err := tx.ExecContext(ctx, sqlDeleteProgress, t); err != nil {
			return fmt.Errorf("sqlite: clear checkpoint for %s: %w", t, err)
		}
	}
	return tx.Commit()
}

// ClearCheckpoints deletes the progress rows for the named tables, leaving
// their data in place.
func (r *Repository) ClearCheckpoints(ctx context.Context, tables []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range tables {
		if _, err := tx.ExecContext(ctx, sqlDeleteProgress, t); err != nil {
			return fmt.Errorf("sqlite: clear checkpoint for %s: %w", t, err)
		}
	}
	return tx.Commit()
}

// Exec executes an arbitrary SQL statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

func insertSQL(table string, columns []string) string {
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = sqlIdent(c)
		placeholders[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		sqlIdent(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
}
