// Package etl orchestrates resumable chunked loads. It reads table CSVs in
// batches, applies the configured transform chain, and commits each batch
// together with its checkpoint through a storage.Repository, so an
// interrupted run resumes exactly after the last committed batch.
package etl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ouladload/internal/config"
	"ouladload/internal/datasource"
	"ouladload/internal/datasource/file"
	csvparser "ouladload/internal/parser/csv"
	"ouladload/internal/schema"
	"ouladload/internal/storage"
	"ouladload/internal/transform"
)

// Sentinel errors for the fatal (run-aborting) failure class. Table-scoped
// failures are carried in TableResult.Err instead.
var (
	// ErrInvalidSource marks a data source directory that is missing or
	// lacks the essential files.
	ErrInvalidSource = errors.New("invalid data source")

	// ErrMissingCourses marks a run that cannot build the course index.
	ErrMissingCourses = errors.New("course reference data unavailable")
)

// RunResult is the outcome of loading one data source directory.
type RunResult struct {
	// RunID is a fresh UUID per run. It tags logs only and is never
	// persisted.
	RunID    string
	Source   string
	Summary  Summary
	Tables   []TableResult
	Duration time.Duration
}

// Failed reports whether any table load ended in failure.
func (r RunResult) Failed() bool {
	for _, t := range r.Tables {
		if t.Err != nil {
			return true
		}
	}
	return false
}

// Runner drives the execution plan against one repository.
type Runner struct {
	repo storage.Repository
	cfg  config.Pipeline
	job  string
	log  zerolog.Logger
}

// NewRunner wires a runner. The pipeline is expected to be normalized.
func NewRunner(repo storage.Repository, cfg config.Pipeline, log zerolog.Logger) *Runner {
	return &Runner{repo: repo, cfg: cfg, job: cfg.Job, log: log}
}

// Run loads every plan table found under dir, honoring the pipeline's reset
// flag. Table-scoped failures are recorded per table and do not abort the
// plan; the returned error is reserved for the fatal class (invalid source,
// bootstrap, course preload, canceled ctx).
func (r *Runner) Run(ctx context.Context, dir string) (RunResult, error) {
	return r.run(ctx, dir, r.cfg.Load.Reset)
}

func (r *Runner) run(ctx context.Context, dir string, reset bool) (RunResult, error) {
	res := RunResult{RunID: uuid.NewString(), Source: dir}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	log := r.log.With().Str("run_id", res.RunID).Str("source", dir).Logger()

	sum, err := Summarize(ctx, dir, planFiles(r.cfg.Plan))
	if err != nil {
		// Cancellation is an interruption, not a broken source.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		return res, fmt.Errorf("source %s: %s: %w", dir, err, ErrInvalidSource)
	}
	res.Summary = sum
	if !sum.Valid {
		return res, fmt.Errorf("source %s: missing %s: %w", dir, strings.Join(sum.Missing, ", "), ErrInvalidSource)
	}
	log.Info().
		Int("files", len(sum.Files)).
		Int64("total_records", sum.TotalRecords).
		Int("unreadable", sum.Errors).
		Msg("source summary")

	if err := r.repo.Bootstrap(ctx); err != nil {
		return res, fmt.Errorf("bootstrap checkpoint store: %w", err)
	}

	if reset {
		// Children first, so half-applied resets never leave a detail table
		// pointing at purged parents.
		tables := planTables(r.cfg.Plan)
		for i, j := 0, len(tables)-1; i < j; i, j = i+1, j-1 {
			tables[i], tables[j] = tables[j], tables[i]
		}
		if err := r.repo.Reset(ctx, tables); err != nil {
			return res, fmt.Errorf("reset: %w", err)
		}
		log.Info().Strs("tables", tables).Msg("destination reset")
	}

	courses, err := r.loadCourseIndex(ctx, dir)
	if err != nil {
		return res, fmt.Errorf("preload course index: %s: %w", err, ErrMissingCourses)
	}
	log.Debug().Int("courses", courses.Len()).Msg("course index loaded")

	if r.cfg.Storage.DB.AutoCreateTable {
		for _, step := range r.cfg.Plan {
			tbl, ok := schema.Lookup(step.Table)
			if !ok {
				continue
			}
			if err := r.repo.EnsureTable(ctx, tbl); err != nil {
				return res, fmt.Errorf("ensure table %s: %w", step.Table, err)
			}
		}
	}

	for _, step := range r.cfg.Plan {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, err := os.Stat(filepath.Join(dir, step.File)); err != nil {
			log.Warn().Str("table", step.Table).Str("file", step.File).Msg("source file absent, skipping table")
			continue
		}
		res.Tables = append(res.Tables, r.loadTable(ctx, dir, step, courses))
	}

	completed, failed := 0, 0
	for _, t := range res.Tables {
		if t.Err != nil {
			failed++
		} else {
			completed++
		}
	}
	log.Info().
		Int("completed", completed).
		Int("failed", failed).
		Dur("elapsed", time.Since(start).Truncate(time.Millisecond)).
		Msg("run finished")
	return res, nil
}

// loadCourseIndex reads the course anchor file end to end through the batch
// reader and indexes every presentation length.
func (r *Runner) loadCourseIndex(ctx context.Context, dir string) (*transform.CourseIndex, error) {
	name := "courses.csv"
	for _, step := range r.cfg.Plan {
		if step.Table == "courses" {
			name = step.File
			break
		}
	}

	rc, err := sourceFor(dir, name).Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	br, err := csvparser.NewBatchReader(rc, r.readerOptions())
	if err != nil {
		return nil, err
	}

	idx := transform.NewCourseIndex()
	for {
		batch, err := br.Next(ctx)
		if errors.Is(err, io.EOF) {
			return idx, nil
		}
		if err != nil {
			return nil, err
		}
		for _, rec := range batch.Rows {
			if err := idx.AddRecord(rec); err != nil {
				return nil, err
			}
		}
	}
}

// sourceFor returns the data source for one plan file under dir. Everything
// the engine reads goes through the datasource abstraction.
func sourceFor(dir, name string) datasource.Source {
	return file.NewLocal(filepath.Join(dir, name))
}

// readerOptions maps the pipeline's parser options onto the batch reader.
func (r *Runner) readerOptions() csvparser.Options {
	po := r.cfg.Parser.Options
	return csvparser.Options{
		Comma:         po.Rune("comma", ','),
		TrimSpace:     po.Bool("trim_space", true),
		BatchSize:     r.cfg.Load.BatchSize,
		MissingTokens: po.StringSlice("missing_tokens"),
		HeaderMap:     po.StringMap("header_map"),
	}
}

func planFiles(plan []config.PlanStep) []string {
	out := make([]string, len(plan))
	for i, s := range plan {
		out[i] = s.File
	}
	return out
}

func planTables(plan []config.PlanStep) []string {
	out := make([]string, len(plan))
	for i, s := range plan {
		out[i] = s.Table
	}
	return out
}
