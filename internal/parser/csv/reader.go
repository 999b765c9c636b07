// Package csv implements a chunked CSV reader for the load engine. It streams
// fixed-size batches of records without buffering whole files and normalizes
// missing-value tokens to nil at parse time.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"ouladload/pkg/records"
)

// defaultBatchSize applies when Options.BatchSize is zero. It mirrors the
// pipeline-level default.
const defaultBatchSize = 10_000

// DefaultMissingTokens are the cell values treated as absent when
// Options.MissingTokens is nil. The OULAD export writes "?" for unknown
// values alongside plain empty cells.
var DefaultMissingTokens = []string{"?", ""}

// Options configures the reader behavior. All fields are optional; sensible
// defaults are applied when a field is zero.
type Options struct {
	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing spaces from each field value before
	// missing-token normalization.
	TrimSpace bool

	// BatchSize caps the number of rows per batch. When zero, 10000 is used.
	BatchSize int

	// MissingTokens are cell values normalized to nil. When nil, the OULAD
	// defaults apply; an explicitly empty slice disables normalization.
	MissingTokens []string

	// HeaderMap maps source header names to canonical keys before the
	// fallback folding applies.
	HeaderMap map[string]string
}

// Batch is one contiguous chunk of parsed rows. Index starts at 1 and
// increments by one per batch; the final batch may be short.
type Batch struct {
	Index int
	Rows  []records.Record
}

// BatchReader reads CSV input in fixed-size batches. It only moves forward;
// resuming a partially loaded table means opening a fresh reader and
// discarding already-committed batches. BatchReader is not concurrency-safe.
type BatchReader struct {
	cr      *csv.Reader
	opt     Options
	headers []string
	missing map[string]struct{}
	index   int
	done    bool
}

// NewBatchReader wraps r and consumes its header row immediately. Column keys
// come from the normalized header; csv.Reader then enforces the header's
// field count on every body row.
func NewBatchReader(r io.Reader, opt Options) (*BatchReader, error) {
	if opt.Comma == 0 {
		opt.Comma = ','
	}
	if opt.BatchSize <= 0 {
		opt.BatchSize = defaultBatchSize
	}
	if opt.MissingTokens == nil {
		opt.MissingTokens = DefaultMissingTokens
	}

	cr := csv.NewReader(r)
	cr.Comma = opt.Comma
	cr.ReuseRecord = true

	h, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	headers := normalizeHeaders(h, opt.HeaderMap)

	missing := make(map[string]struct{}, len(opt.MissingTokens))
	for _, tok := range opt.MissingTokens {
		missing[tok] = struct{}{}
	}

	return &BatchReader{cr: cr, opt: opt, headers: headers, missing: missing}, nil
}

// Headers returns the normalized column keys in file order.
func (br *BatchReader) Headers() []string {
	out := make([]string, len(br.headers))
	copy(out, br.headers)
	return out
}

// Next returns the next batch, or io.EOF once the input is exhausted. A
// malformed row fails the whole read rather than being dropped; the engine
// re-reads files from the start on resume, so a partially consumed reader is
// never observable downstream.
func (br *BatchReader) Next(ctx context.Context) (*Batch, error) {
	if br.done {
		return nil, io.EOF
	}

	rows := make([]records.Record, 0, br.opt.BatchSize)
	for len(rows) < br.opt.BatchSize {
		// cooperative cancel
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rec, err := br.cr.Read()
		if err == io.EOF {
			br.done = true
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		row := make(records.Record, len(br.headers))
		for i, val := range rec {
			if br.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			row[keyFor(i, br.headers)] = br.missingToNil(val)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, io.EOF
	}
	br.index++
	return &Batch{Index: br.index, Rows: rows}, nil
}

// keyFor returns the column key for index idx, using headers when available,
// otherwise synthesizing a "col_N" name.
func keyFor(idx int, headers []string) string {
	if idx < len(headers) && headers[idx] != "" {
		return headers[idx]
	}
	return fmt.Sprintf("col_%d", idx)
}

// missingToNil converts configured missing tokens to nil; all other values
// are returned as-is.
func (br *BatchReader) missingToNil(s string) any {
	if _, ok := br.missing[s]; ok {
		return nil
	}
	return s
}
