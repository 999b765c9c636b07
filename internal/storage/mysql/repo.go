// Package mysql implements the load engine's repository on database/sql with
// the go-sql-driver. The driver has no COPY equivalent, so batches land as
// multi-row INSERTs inside one transaction per batch.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // database/sql driver

	"ouladload/internal/schema"
	"ouladload/internal/storage"
)

// mysqlTimeLayout is the DATETIME(6) text form. Writing and scanning text
// keeps the repository independent of the parseTime DSN parameter.
const mysqlTimeLayout = "2006-01-02 15:04:05.999999"

// Config holds MySQL repository configuration derived from storage.Config.
type Config struct {
	// DSN in go-sql-driver form, e.g. "user:pass@tcp(127.0.0.1:3306)/oulad".
	DSN string
}

// Repository is a MySQL-backed checkpoint-aware store.
type Repository struct {
	db *sql.DB
}

// NewRepository opens a connection pool and returns a Close function for
// cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("mysql: DSN must not be empty")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: open: %w", err)
	}
	db.SetConnMaxLifetime(3 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("mysql: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db}, closeFn, nil
}

// Bootstrap creates the checkpoint table when absent.
func (r *Repository) Bootstrap(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqlProgressDDL); err != nil {
		return fmt.Errorf("mysql: bootstrap %s: %w", schema.ProgressTable, err)
	}
	return nil
}

// EnsureTable creates tbl when absent.
func (r *Repository) EnsureTable(ctx context.Context, tbl schema.Table) error {
	if _, err := r.db.ExecContext(ctx, createTableSQL(tbl)); err != nil {
		return fmt.Errorf("mysql: ensure table %s: %w", tbl.Name, err)
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
		return 0, fmt.Errorf("mysql: read checkpoint for %s: %w", table, err)
	}
	return n, nil
}

// maxInsertPlaceholders caps the parameters bound to one multi-row INSERT.
// The wire protocol allows 65535 per statement; the cap keeps rows*columns
// safely below that for every destination table.
const maxInsertPlaceholders = 60_000

// CommitBatch appends rows to table and advances its checkpoint in one
// transaction. Rows ride multi-row INSERTs, split only when a batch would
// exceed the statement placeholder limit.
func (r *Repository) CommitBatch(ctx context.Context, table string, columns []string, rows [][]any, batch int) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: commit batch: columns must not be empty")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mysql: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var inserted int64
	chunk := maxInsertPlaceholders / len(columns)
	if chunk < 1 {
		chunk = 1
	}
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))
		part := rows[start:end]

		args := make([]any, 0, len(part)*len(columns))
		for _, row := range part {
			if len(row) != len(columns) {
				return 0, fmt.Errorf("mysql: insert into %s: row length %d != columns length %d", table, len(row), len(columns))
			}
			args = append(args, row...)
		}
		if _, err := tx.ExecContext(ctx, multiInsertSQL(table, columns, len(part)), args...); err != nil {
			return 0, fmt.Errorf("mysql: insert into %s: %w", table, err)
		}
		inserted += int64(len(part))
	}

	now := time.Now().UTC().Format(mysqlTimeLayout)
	if _, err := tx.ExecContext(ctx, sqlUpsertProgress, table, batch, now); err != nil {
		return 0, fmt.Errorf("mysql: advance checkpoint for %s: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mysql: commit batch %d for %s: %w", batch, table, err)
	}
	return inserted, nil
}

// Checkpoints lists progress rows ordered by table name.
func (r *Repository) Checkpoints(ctx context.Context) ([]storage.Checkpoint, error) {
	rows, err := r.db.QueryContext(ctx, sqlCheckpoints)
	if err != nil {
		return nil, fmt.Errorf("mysql: list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []storage.Checkpoint
	for rows.Next() {
		var cp storage.Checkpoint
		var ts []byte
		if err := rows.Scan(&cp.Table, &cp.LastCommitted, &ts); err != nil {
			return nil, fmt.Errorf("mysql: scan checkpoint: %w", err)
		}
		if cp.UpdatedAt, err = time.Parse(mysqlTimeLayout, string(ts)); err != nil {
			return nil, fmt.Errorf("mysql: checkpoint %s: parse updated_at %q: %w", cp.Table, ts, err)
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
		return fmt.Errorf("mysql: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range tables {
		var n int
		if err := tx.QueryRowContext(ctx, sqlTableExists, t).Scan(&n); err != nil {
			return fmt.Errorf("mysql: check table %s: %w", t, err)
		}
		if n > 0 {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+myIdent(t)); err != nil {
				return fmt.Errorf("mysql: clear table %s: %w", t, err)
			}
		}
		if _, err := tx.ExecContext(ctx, sqlDeleteProgress, t); err != nil {
			return fmt.Errorf("mysql: clear checkpoint for %s: %w", t, err)
		}
	}
	return tx.Commit()
}

// ClearCheckpoints deletes the progress rows for the named tables, leaving
// their data in place.
func (r *Repository) ClearCheckpoints(ctx context.Context, tables []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mysql: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range tables {
		if _, err := tx.ExecContext(ctx, sqlDeleteProgress, t); err != nil {
			return fmt.Errorf("mysql: clear checkpoint for %s: %w", t, err)
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
		return fmt.Errorf("mysql: exec: %w", err)
	}
	return nil
}

// multiInsertSQL renders one INSERT whose VALUES list covers nrows rows.
func multiInsertSQL(table string, columns []string, nrows int) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = myIdent(c)
	}
	row := "(?" + strings.Repeat(", ?", len(columns)-1) + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(myIdent(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString(") VALUES ")
	for i := 0; i < nrows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(row)
	}
	return b.String()
}
