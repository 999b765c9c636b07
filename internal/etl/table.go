package etl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"ouladload/internal/config"
	"ouladload/internal/metrics"
	csvparser "ouladload/internal/parser/csv"
	"ouladload/internal/schema"
	"ouladload/internal/transform"
)

// LoadState tracks one table through its load lifecycle.
type LoadState string

const (
	StateNotStarted LoadState = "not_started"
	StateResuming   LoadState = "resuming"
	StateStreaming  LoadState = "streaming"
	StateCompleted  LoadState = "completed"
	StateFailed     LoadState = "failed"
)

// TableResult is the outcome of one table load within a run. A non-nil Err
// means the table stopped at the recorded state; batches committed before the
// error stay committed.
type TableResult struct {
	Table     string
	State     LoadState
	Resumed   bool  // a checkpoint existed at start
	Skipped   int   // batches at or below the checkpoint, not re-applied
	Committed int   // batches committed by this run
	Rows      int64 // rows appended by this run
	Duration  time.Duration
	Err       error
}

// loadTable streams one plan step from dir into its destination table,
// skipping batches at or below the stored checkpoint. Errors are returned
// inside the result; the caller decides whether to continue the plan.
func (r *Runner) loadTable(ctx context.Context, dir string, step config.PlanStep, courses *transform.CourseIndex) TableResult {
	res := TableResult{Table: step.Table, State: StateNotStarted}
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		metrics.RecordTable(r.job, step.Table, res.Err, res.Duration)
	}()

	fail := func(batch int, err error) TableResult {
		res.State = StateFailed
		res.Err = fmt.Errorf("load %s: batch %d: %w", step.Table, batch, err)
		r.log.Error().Err(res.Err).Str("table", step.Table).Int("batch", batch).Msg("table load failed")
		return res
	}

	tbl, ok := schema.Lookup(step.Table)
	if !ok {
		return fail(0, fmt.Errorf("unknown table"))
	}

	last, err := r.repo.LastCommitted(ctx, step.Table)
	if err != nil {
		return fail(0, err)
	}
	if last > 0 {
		res.Resumed = true
		res.State = StateResuming
		r.log.Info().Str("table", step.Table).Int("checkpoint", last).Msg("resuming after checkpoint")
	}

	tr, err := transform.New(step.Transform, courses)
	if err != nil {
		return fail(0, err)
	}
	// Coercion first so the business transform sees typed cells.
	chain := transform.Chain{transform.Coerce{Table: tbl}, tr}

	rc, err := sourceFor(dir, step.File).Open(ctx)
	if err != nil {
		return fail(0, err)
	}
	defer rc.Close()

	br, err := csvparser.NewBatchReader(rc, r.readerOptions())
	if err != nil {
		return fail(0, err)
	}

	columns := tbl.ColumnNames()
	current := 0
	for {
		batch, err := br.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(current+1, err)
		}
		current = batch.Index

		// Replayed input below the checkpoint: the reader always starts at
		// row one, the orchestrator discards what is already committed.
		if batch.Index <= last {
			res.Skipped++
			continue
		}
		res.State = StateStreaming

		out, err := chain.Apply(batch.Rows)
		if err != nil {
			return fail(batch.Index, err)
		}

		n, err := r.repo.CommitBatch(ctx, step.Table, columns, buildRows(tbl, out), batch.Index)
		metrics.RecordBatch(r.job, step.Table, err)
		if err != nil {
			return fail(batch.Index, err)
		}
		res.Committed++
		res.Rows += n
		metrics.RecordRows(r.job, step.Table, n)

		elapsed := time.Since(start)
		var rps int64
		if s := elapsed.Seconds(); s > 0 {
			rps = int64(float64(res.Rows) / s)
		}
		r.log.Debug().
			Str("table", step.Table).
			Int("batch", batch.Index).
			Int64("rows", n).
			Int64("total_rows", res.Rows).
			Int64("rps", rps).
			Dur("elapsed", elapsed.Truncate(time.Millisecond)).
			Msg("batch committed")
	}

	res.State = StateCompleted
	r.log.Info().
		Str("table", step.Table).
		Bool("resumed", res.Resumed).
		Int("skipped", res.Skipped).
		Int("committed", res.Committed).
		Int64("rows", res.Rows).
		Dur("elapsed", time.Since(start).Truncate(time.Millisecond)).
		Msg("table completed")
	return res
}
