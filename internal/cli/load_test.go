package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"ouladload/internal/config"
	"ouladload/internal/schema"
	"ouladload/internal/storage"
)

// cliRepo is an in-memory Repository backing the "clitest" storage kind.
// Tests register a factory that returns a shared instance so they can
// inspect state after a command ran.
type cliRepo struct {
	checkpoints map[string]int
	rows        map[string]int64
	resets      int
	clears      int
	closed      int

	failCommit func(table string, batch int) error
}

func newCLIRepo() *cliRepo {
	return &cliRepo{
		checkpoints: map[string]int{},
		rows:        map[string]int64{},
	}
}

func (r *cliRepo) Bootstrap(ctx context.Context) error { return nil }

func (r *cliRepo) EnsureTable(ctx context.Context, tbl schema.Table) error { return nil }

func (r *cliRepo) Exec(ctx context.Context, sql string) error { return nil }

func (r *cliRepo) Close() { r.closed++ }

func (r *cliRepo) LastCommitted(ctx context.Context, table string) (int, error) {
	return r.checkpoints[table], nil
}

func (r *cliRepo) CommitBatch(ctx context.Context, table string, columns []string, rows [][]any, batch int) (int64, error) {
	if r.failCommit != nil {
		if err := r.failCommit(table, batch); err != nil {
			return 0, err
		}
	}
	r.checkpoints[table] = batch
	r.rows[table] += int64(len(rows))
	return int64(len(rows)), nil
}

func (r *cliRepo) Checkpoints(ctx context.Context) ([]storage.Checkpoint, error) {
	names := make([]string, 0, len(r.checkpoints))
	for name := range r.checkpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]storage.Checkpoint, 0, len(names))
	for _, name := range names {
		out = append(out, storage.Checkpoint{
			Table:         name,
			LastCommitted: r.checkpoints[name],
			UpdatedAt:     time.Unix(1700000000, 0).UTC(),
		})
	}
	return out, nil
}

func (r *cliRepo) Reset(ctx context.Context, tables []string) error {
	r.resets++
	for _, t := range tables {
		delete(r.checkpoints, t)
		delete(r.rows, t)
	}
	return nil
}

func (r *cliRepo) ClearCheckpoints(ctx context.Context, tables []string) error {
	r.clears++
	for _, t := range tables {
		delete(r.checkpoints, t)
	}
	return nil
}

// registerCLIRepo wires repo under the given storage kind for one test.
func registerCLIRepo(kind string, repo *cliRepo) {
	storage.Register(kind, func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return repo, nil
	})
}

// writeSourceDir lays down the two essential plan files; the engine skips
// the absent ones.
func writeSourceDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	courses := "code_module,code_presentation,module_presentation_length\n" +
		"AAA,2013J,268\n" +
		"BBB,2014J,262\n"
	students := "code_module,code_presentation,id_student,gender,region,highest_education,imd_band,age_band,num_of_prev_attempts,studied_credits,disability,final_result\n" +
		"AAA,2013J,11391,M,East Anglian Region,HE Qualification,90-100%,55<=,0,240,N,Pass\n" +
		"AAA,2013J,28400,F,Scotland,HE Qualification,20-30%,35-55,0,60,N,Pass\n" +
		"BBB,2014J,30268,F,North Western Region,A Level or Equivalent,?,35-55,0,60,Y,Withdrawn\n"

	for name, body := range map[string]string{
		"courses.csv":     courses,
		"studentInfo.csv": students,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd("test")
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestLoad_SingleSource(t *testing.T) {
	repo := newCLIRepo()
	registerCLIRepo("clitest-load", repo)
	dir := writeSourceDir(t)

	out, _, err := execute(t,
		"load",
		"--storage", "clitest-load",
		"--dsn", "mem",
		"--data", dir,
		"--batch-size", "1",
		"--log-level", "error",
	)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if got := repo.checkpoints["courses"]; got != 2 {
		t.Fatalf("courses checkpoint = %d, want 2", got)
	}
	if got := repo.checkpoints["studentInfo"]; got != 3 {
		t.Fatalf("studentInfo checkpoint = %d, want 3", got)
	}
	if got := repo.rows["studentInfo"]; got != 3 {
		t.Fatalf("studentInfo rows = %d, want 3", got)
	}
	if repo.resets != 0 {
		t.Fatalf("resets = %d, want 0", repo.resets)
	}
	if repo.closed != 1 {
		t.Fatalf("repo closed %d times, want 1", repo.closed)
	}

	for _, want := range []string{"TABLE", "courses", "studentInfo", "completed", "completed in"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLoad_ResetFlag(t *testing.T) {
	repo := newCLIRepo()
	repo.checkpoints["courses"] = 9
	repo.rows["courses"] = 99
	registerCLIRepo("clitest-reset", repo)
	dir := writeSourceDir(t)

	_, _, err := execute(t,
		"load",
		"--storage", "clitest-reset",
		"--dsn", "mem",
		"--data", dir,
		"--reset",
		"--log-level", "error",
	)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if repo.resets != 1 {
		t.Fatalf("resets = %d, want 1", repo.resets)
	}
	// Stale state was purged before reloading: one batch at default size.
	if got := repo.checkpoints["courses"]; got != 1 {
		t.Fatalf("courses checkpoint = %d, want 1", got)
	}
	if got := repo.rows["courses"]; got != 2 {
		t.Fatalf("courses rows = %d, want 2", got)
	}
}

func TestLoad_MultiSource(t *testing.T) {
	repo := newCLIRepo()
	registerCLIRepo("clitest-multi", repo)
	dir1 := writeSourceDir(t)
	dir2 := writeSourceDir(t)

	out, _, err := execute(t,
		"load",
		"--storage", "clitest-multi",
		"--dsn", "mem",
		"--data", dir1,
		"--data", dir2,
		"--log-level", "error",
	)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if repo.resets != 1 {
		t.Fatalf("resets = %d, want 1", repo.resets)
	}
	if repo.clears != 1 {
		t.Fatalf("clears = %d, want 1", repo.clears)
	}
	if got := repo.rows["studentInfo"]; got != 6 {
		t.Fatalf("studentInfo rows = %d, want 6 (both sources)", got)
	}
	if n := strings.Count(out, "source "); n != 2 {
		t.Fatalf("expected 2 source sections, got %d:\n%s", n, out)
	}
}

func TestLoad_SourcesFile(t *testing.T) {
	repo := newCLIRepo()
	registerCLIRepo("clitest-list", repo)
	dir := writeSourceDir(t)

	listPath := filepath.Join(t.TempDir(), "sources.txt")
	body := "# extracts in load order\n" + dir + "\n"
	if err := os.WriteFile(listPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write sources file: %v", err)
	}

	_, _, err := execute(t,
		"load",
		"--storage", "clitest-list",
		"--dsn", "mem",
		"--sources-file", listPath,
		"--log-level", "error",
	)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := repo.rows["courses"]; got != 2 {
		t.Fatalf("courses rows = %d, want 2", got)
	}
}

func TestLoad_FailedTableExitsNonzero(t *testing.T) {
	repo := newCLIRepo()
	repo.failCommit = func(table string, batch int) error {
		if table == "studentInfo" {
			return errors.New("disk full")
		}
		return nil
	}
	registerCLIRepo("clitest-fail", repo)
	dir := writeSourceDir(t)

	out, errOut, err := execute(t,
		"load",
		"--storage", "clitest-fail",
		"--dsn", "mem",
		"--data", dir,
		"--log-level", "error",
	)
	if err == nil {
		t.Fatal("expected an error for the failed table")
	}
	if !strings.Contains(err.Error(), "1 table load(s) failed") {
		t.Fatalf("err = %v, want failed-table count", err)
	}
	if !strings.Contains(errOut, "disk full") {
		t.Fatalf("stderr missing cause:\n%s", errOut)
	}
	// The results table still rendered, with courses completed.
	if !strings.Contains(out, "courses") {
		t.Fatalf("output missing courses row:\n%s", out)
	}
}

func TestLoad_MissingSources(t *testing.T) {
	_, _, err := execute(t, "load", "--storage", "sqlite", "--dsn", "file:x.db", "--log-level", "error")
	if err == nil || !strings.Contains(err.Error(), "no source directories") {
		t.Fatalf("err = %v, want missing-sources error", err)
	}
}

func TestLoad_UnknownStorageKind(t *testing.T) {
	dir := writeSourceDir(t)
	_, _, err := execute(t,
		"load", "--storage", "oracle", "--dsn", "x", "--data", dir, "--log-level", "error")
	if err == nil || !strings.Contains(err.Error(), "open storage") {
		t.Fatalf("err = %v, want open storage error", err)
	}
}

func TestBuildPipeline_FlagOverrides(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "p.json")
	body := `{
  "job": "filejob",
  "storage": {"kind": "postgres", "db": {"dsn": "postgres://x", "auto_create_table": true}},
  "parser": {"kind": "csv"},
  "load": {"batch_size": 500, "sources": ["./from-config"]},
  "metrics": {"backend": "none"}
}`
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := NewLoadCmd()
	if err := cmd.Flags().Parse([]string{
		"--config", cfgPath,
		"--storage", "sqlite",
		"--batch-size", "25",
		"--data", "./cli-dir",
	}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	flags := loadFlags{
		configPath:  cfgPath,
		storageKind: "sqlite",
		batchSize:   25,
		data:        []string{"./cli-dir"},
	}

	p, err := buildPipeline(cmd, flags)
	if err != nil {
		t.Fatalf("buildPipeline: %v", err)
	}
	if p.Job != "filejob" {
		t.Fatalf("job = %q, want filejob", p.Job)
	}
	if p.Storage.Kind != "sqlite" {
		t.Fatalf("storage kind = %q, want flag override sqlite", p.Storage.Kind)
	}
	if p.Storage.DB.DSN != "postgres://x" {
		t.Fatalf("dsn = %q, want config value kept", p.Storage.DB.DSN)
	}
	if p.Load.BatchSize != 25 {
		t.Fatalf("batch size = %d, want 25", p.Load.BatchSize)
	}
	if len(p.Load.Sources) != 1 || p.Load.Sources[0] != "./cli-dir" {
		t.Fatalf("sources = %v, want command line to win", p.Load.Sources)
	}
	if len(p.Plan) == 0 {
		t.Fatal("plan not normalized")
	}
}

func TestSetupMetrics_UnknownBackendWarns(t *testing.T) {
	var errOut bytes.Buffer
	cmd := NewLoadCmd()
	cmd.SetErr(&errOut)

	p := config.Default()
	p.Metrics.Backend = "statsite"
	setupMetrics(cmd, p)

	if !strings.Contains(errOut.String(), "unknown backend") {
		t.Fatalf("stderr = %q, want unknown backend warning", errOut.String())
	}
}
