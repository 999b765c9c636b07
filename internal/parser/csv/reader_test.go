package csv

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func mustReader(t *testing.T, input string, opt Options) *BatchReader {
	t.Helper()
	br, err := NewBatchReader(strings.NewReader(input), opt)
	if err != nil {
		t.Fatalf("NewBatchReader: %v", err)
	}
	return br
}

// drain reads batches until io.EOF and returns them.
func drain(t *testing.T, br *BatchReader) []*Batch {
	t.Helper()
	var out []*Batch
	for {
		b, err := br.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, b)
	}
}

func TestBatchReader_ContiguousIndicesAndShortFinalBatch(t *testing.T) {
	t.Parallel()

	// 7 body rows with batch size 3 → batches of 3, 3, 1.
	var sb strings.Builder
	sb.WriteString("id_student,score\n")
	for _, r := range []string{"1,10", "2,20", "3,30", "4,40", "5,50", "6,60", "7,70"} {
		sb.WriteString(r + "\n")
	}

	br := mustReader(t, sb.String(), Options{BatchSize: 3})
	batches := drain(t, br)

	if len(batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(batches))
	}
	for i, b := range batches {
		if b.Index != i+1 {
			t.Fatalf("batch[%d].Index = %d, want %d", i, b.Index, i+1)
		}
	}
	if got := []int{len(batches[0].Rows), len(batches[1].Rows), len(batches[2].Rows)}; got[0] != 3 || got[1] != 3 || got[2] != 1 {
		t.Fatalf("batch sizes = %v, want [3 3 1]", got)
	}
	if v := batches[2].Rows[0]["id_student"]; v != "7" {
		t.Fatalf("last row id_student = %#v, want \"7\"", v)
	}

	// A drained reader keeps reporting EOF.
	if _, err := br.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Next after EOF = %v, want io.EOF", err)
	}
}

func TestBatchReader_MissingTokensBecomeNil(t *testing.T) {
	t.Parallel()

	const input = "id_assessment,date,weight\n" +
		"11,?,10\n" +
		"12,,20\n" +
		"13,229,\n"

	br := mustReader(t, input, Options{BatchSize: 10})
	batches := drain(t, br)
	if len(batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(batches))
	}
	rows := batches[0].Rows

	if rows[0]["date"] != nil {
		t.Fatalf(`row 0 date = %#v, want nil for "?"`, rows[0]["date"])
	}
	if rows[1]["date"] != nil {
		t.Fatalf("row 1 date = %#v, want nil for empty cell", rows[1]["date"])
	}
	if rows[2]["date"] != "229" || rows[2]["weight"] != nil {
		t.Fatalf("row 2 = %#v, want date=229 weight=nil", rows[2])
	}
}

func TestBatchReader_CustomMissingTokens(t *testing.T) {
	t.Parallel()

	const input = "a,b\nNA,x\n?,y\n"

	// Only "NA" is missing; "?" must survive as a literal value.
	br := mustReader(t, input, Options{BatchSize: 10, MissingTokens: []string{"NA"}})
	rows := drain(t, br)[0].Rows

	if rows[0]["a"] != nil {
		t.Fatalf("NA = %#v, want nil", rows[0]["a"])
	}
	if rows[1]["a"] != "?" {
		t.Fatalf(`"?" = %#v, want literal "?"`, rows[1]["a"])
	}
}

func TestBatchReader_TrimSpaceBeforeNormalization(t *testing.T) {
	t.Parallel()

	const input = "a,b\n ? , hi \n"

	br := mustReader(t, input, Options{BatchSize: 10, TrimSpace: true})
	rows := drain(t, br)[0].Rows

	if rows[0]["a"] != nil {
		t.Fatalf("trimmed ? = %#v, want nil", rows[0]["a"])
	}
	if rows[0]["b"] != "hi" {
		t.Fatalf("trimmed value = %#v, want hi", rows[0]["b"])
	}
}

func TestBatchReader_WidthMismatchIsHardError(t *testing.T) {
	t.Parallel()

	const input = "a,b,c\n1,2,3\n4,5\n"

	br := mustReader(t, input, Options{BatchSize: 10})
	_, err := br.Next(context.Background())
	if err == nil {
		t.Fatalf("Next accepted a short row; want field-count error")
	}
	if errors.Is(err, io.EOF) {
		t.Fatalf("Next = io.EOF, want a parse error")
	}
}

func TestBatchReader_HeaderNormalizationAndBOM(t *testing.T) {
	t.Parallel()

	// Raw EF BB BF bytes, as a UTF-8 export actually starts.
	const input = "\xef\xbb\xbf" + "Code Module,ID Student\nAAA,42\n"

	br := mustReader(t, input, Options{BatchSize: 10})

	h := br.Headers()
	if h[0] != "code_module" || h[1] != "id_student" {
		t.Fatalf("headers = %v, want [code_module id_student]", h)
	}

	rows := drain(t, br)[0].Rows
	if rows[0]["code_module"] != "AAA" || rows[0]["id_student"] != "42" {
		t.Fatalf("row = %#v", rows[0])
	}
}

func TestBatchReader_HeaderMapWins(t *testing.T) {
	t.Parallel()

	const input = "Student,Mark\n9,55\n"

	br := mustReader(t, input, Options{
		BatchSize: 10,
		HeaderMap: map[string]string{"Student": "id_student", "Mark": "score"},
	})

	rows := drain(t, br)[0].Rows
	if rows[0]["id_student"] != "9" || rows[0]["score"] != "55" {
		t.Fatalf("row = %#v, want id_student=9 score=55", rows[0])
	}
}

func TestBatchReader_ContextCancelStopsRead(t *testing.T) {
	t.Parallel()

	const input = "a\n1\n2\n3\n"

	br := mustReader(t, input, Options{BatchSize: 10})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := br.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Next with canceled ctx = %v, want context.Canceled", err)
	}
}

func TestBatchReader_EmptyBodyIsEOF(t *testing.T) {
	t.Parallel()

	br := mustReader(t, "a,b\n", Options{BatchSize: 10})
	if _, err := br.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Next on header-only input = %v, want io.EOF", err)
	}
}

func TestNewBatchReader_EmptyInputFails(t *testing.T) {
	t.Parallel()

	if _, err := NewBatchReader(strings.NewReader(""), Options{}); err == nil {
		t.Fatalf("NewBatchReader accepted empty input; want header error")
	}
}
