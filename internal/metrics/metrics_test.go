package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend is a simple in-memory Backend implementation for tests.
type fakeBackend struct {
	mu sync.Mutex

	callsCounters   []counterCall
	callsHistograms []histCall
	flushCount      int
}

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsCounters = append(f.callsCounters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsHistograms = append(f.callsHistograms, histCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

func TestRecordTable_SuccessAndFailure(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	backend = fb

	RecordTable("oulad", "courses", nil, 2*time.Second)
	RecordTable("oulad", "vle", errors.New("boom"), 1500*time.Millisecond)

	if len(fb.callsCounters) != 2 {
		t.Fatalf("expected 2 counter calls, got %d", len(fb.callsCounters))
	}
	if len(fb.callsHistograms) != 2 {
		t.Fatalf("expected 2 histogram calls, got %d", len(fb.callsHistograms))
	}

	cc0 := fb.callsCounters[0]
	if cc0.name != "load_tables_total" || cc0.delta != 1 {
		t.Fatalf("counter[0] = %#v; want name=load_tables_total, delta=1", cc0)
	}
	if cc0.labels["job"] != "oulad" || cc0.labels["table"] != "courses" {
		t.Fatalf("counter[0] labels = %v; want job=oulad, table=courses", cc0.labels)
	}
	if got := cc0.labels["status"]; got != "completed" {
		t.Fatalf("counter[0].labels[status]=%q; want completed", got)
	}

	h0 := fb.callsHistograms[0]
	if h0.name != "load_table_duration_seconds" {
		t.Fatalf("hist[0].name=%q; want load_table_duration_seconds", h0.name)
	}
	if h0.value < 2.0-0.001 || h0.value > 2.0+0.001 {
		t.Fatalf("hist[0].value=%v; want ~2.0", h0.value)
	}

	cc1 := fb.callsCounters[1]
	if cc1.labels["table"] != "vle" || cc1.labels["status"] != "failed" {
		t.Fatalf("counter[1] labels = %v; want table=vle, status=failed", cc1.labels)
	}
	h1 := fb.callsHistograms[1]
	if h1.value < 1.5-0.001 || h1.value > 1.5+0.001 {
		t.Fatalf("hist[1].value=%v; want ~1.5", h1.value)
	}
}

func TestRecordBatchAndRows(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	backend = fb

	RecordBatch("oulad", "studentVle", nil)
	RecordBatch("oulad", "studentVle", errors.New("deadlock"))
	RecordRows("oulad", "studentVle", 10000)
	RecordRows("oulad", "studentVle", 0)  // ignored
	RecordRows("oulad", "studentVle", -3) // ignored

	if len(fb.callsCounters) != 3 {
		t.Fatalf("expected 3 counter calls, got %d", len(fb.callsCounters))
	}

	c0 := fb.callsCounters[0]
	if c0.name != "load_batches_total" || c0.delta != 1 || c0.labels["result"] != "committed" {
		t.Fatalf("counter[0] = %#v; want committed batch", c0)
	}
	c1 := fb.callsCounters[1]
	if c1.name != "load_batches_total" || c1.labels["result"] != "failed" {
		t.Fatalf("counter[1] = %#v; want failed batch", c1)
	}
	c2 := fb.callsCounters[2]
	if c2.name != "load_rows_total" || c2.delta != 10000 {
		t.Fatalf("counter[2] = %#v; want name=load_rows_total, delta=10000", c2)
	}
	if c2.labels["job"] != "oulad" || c2.labels["table"] != "studentVle" {
		t.Fatalf("counter[2] labels = %v; want job=oulad, table=studentVle", c2.labels)
	}
}

func TestSetBackendAndFlush(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	SetBackend(fb)

	if backend != fb {
		t.Fatal("SetBackend did not replace global backend")
	}

	if err := Flush(); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if fb.flushCount != 1 {
		t.Fatalf("expected flushCount=1, got %d", fb.flushCount)
	}

	// SetBackend(nil) should not nil out the backend.
	SetBackend(nil)
	if backend != fb {
		t.Fatal("SetBackend(nil) should not change backend")
	}
}
