package etl

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ouladload/internal/config"
	"ouladload/internal/schema"
	"ouladload/internal/storage"
)

// fakeRepo is an in-memory storage.Repository that records every mutating
// call, in order, in ops. Tests read ops to assert sequencing (reset before
// commits, plan order across tables) and data/checkpoints to assert what a
// run left behind.
type fakeRepo struct {
	ops         []string
	checkpoints map[string]int
	data        map[string][][]any
	columns     map[string][]string
	closed      int

	// failCommit, when set, is consulted before a commit is applied; a
	// non-nil return aborts the commit with that error.
	failCommit func(table string, batch int) error

	// afterCommit, when set, runs after a successful commit.
	afterCommit func(table string, batch int)
}

var _ storage.Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		checkpoints: map[string]int{},
		data:        map[string][][]any{},
		columns:     map[string][]string{},
	}
}

func (f *fakeRepo) Bootstrap(ctx context.Context) error {
	f.ops = append(f.ops, "bootstrap")
	return nil
}

func (f *fakeRepo) EnsureTable(ctx context.Context, tbl schema.Table) error {
	f.ops = append(f.ops, "ensure "+tbl.Name)
	return nil
}

func (f *fakeRepo) LastCommitted(ctx context.Context, table string) (int, error) {
	return f.checkpoints[table], nil
}

func (f *fakeRepo) CommitBatch(ctx context.Context, table string, columns []string, rows [][]any, batch int) (int64, error) {
	if f.failCommit != nil {
		if err := f.failCommit(table, batch); err != nil {
			return 0, err
		}
	}
	f.ops = append(f.ops, fmt.Sprintf("commit %s %d", table, batch))
	f.columns[table] = columns
	f.data[table] = append(f.data[table], rows...)
	f.checkpoints[table] = batch
	if f.afterCommit != nil {
		f.afterCommit(table, batch)
	}
	return int64(len(rows)), nil
}

func (f *fakeRepo) Checkpoints(ctx context.Context) ([]storage.Checkpoint, error) {
	names := make([]string, 0, len(f.checkpoints))
	for t := range f.checkpoints {
		names = append(names, t)
	}
	sort.Strings(names)
	out := make([]storage.Checkpoint, len(names))
	for i, t := range names {
		out[i] = storage.Checkpoint{Table: t, LastCommitted: f.checkpoints[t], UpdatedAt: time.Now()}
	}
	return out, nil
}

func (f *fakeRepo) Reset(ctx context.Context, tables []string) error {
	f.ops = append(f.ops, "reset "+strings.Join(tables, ","))
	for _, t := range tables {
		delete(f.data, t)
		delete(f.checkpoints, t)
	}
	return nil
}

func (f *fakeRepo) ClearCheckpoints(ctx context.Context, tables []string) error {
	f.ops = append(f.ops, "clear "+strings.Join(tables, ","))
	for _, t := range tables {
		delete(f.checkpoints, t)
	}
	return nil
}

func (f *fakeRepo) Exec(ctx context.Context, sql string) error { return nil }

func (f *fakeRepo) Close() { f.closed++ }

// opIndex returns the position of the first op with the given prefix, or -1.
func (f *fakeRepo) opIndex(prefix string) int {
	for i, op := range f.ops {
		if strings.HasPrefix(op, prefix) {
			return i
		}
	}
	return -1
}

// opCount counts ops with the given prefix.
func (f *fakeRepo) opCount(prefix string) int {
	n := 0
	for _, op := range f.ops {
		if strings.HasPrefix(op, prefix) {
			n++
		}
	}
	return n
}

// testPipeline is the shared engine config: default seven-table plan, small
// batches so the fixtures span several of them.
func testPipeline() config.Pipeline {
	p := config.Default()
	p.Load.BatchSize = 2
	p.Normalize()
	return p
}

func newTestRunner(repo storage.Repository, mutate func(*config.Pipeline)) *Runner {
	cfg := testPipeline()
	if mutate != nil {
		mutate(&cfg)
	}
	return NewRunner(repo, cfg, zerolog.Nop())
}

// findRow returns the first row whose cell at idx equals want.
func findRow(t *testing.T, rows [][]any, idx int, want any) []any {
	t.Helper()
	for _, r := range rows {
		if reflect.DeepEqual(r[idx], want) {
			return r
		}
	}
	t.Fatalf("no row with cell[%d] = %#v in %d rows", idx, want, len(rows))
	return nil
}
