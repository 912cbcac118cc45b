package metrics

import (
	"sync"
	"testing"
)

type captureBackend struct {
	mu       sync.Mutex
	counters map[string]float64
	labels   map[string]Labels
	flushed  int
}

func newCapture() *captureBackend {
	return &captureBackend{
		counters: map[string]float64{},
		labels:   map[string]Labels{},
	}
}

func (c *captureBackend) IncCounter(name string, delta float64, labels Labels) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name] += delta
	c.labels[name] = labels
}

func (c *captureBackend) ObserveHistogram(name string, value float64, labels Labels) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name+"_samples"]++
}

func (c *captureBackend) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushed++
	return nil
}

func (c *captureBackend) Close() error { return nil }

// TestRecordHelpers verifies the helper-to-backend routing. The
// package-level backend is process state, so this test is not parallel.
func TestRecordHelpers(t *testing.T) {
	c := newCapture()
	SetBackend(c)
	t.Cleanup(func() { SetBackend(nil) })

	RecordStage("analyze", "ok", 0.25)
	AddRows(42)
	AddBatch()
	RecordValidation(true)
	RecordValidation(false)
	RecordQuery("aggregate")
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if c.counters[MetricStageTotal] != 1 {
		t.Fatalf("stage total = %v", c.counters[MetricStageTotal])
	}
	if c.counters[MetricStageDuration+"_samples"] != 1 {
		t.Fatalf("stage duration samples = %v", c.counters[MetricStageDuration+"_samples"])
	}
	if c.counters[MetricRowsTotal] != 42 {
		t.Fatalf("rows total = %v", c.counters[MetricRowsTotal])
	}
	if c.counters[MetricValidationTotal] != 2 {
		t.Fatalf("validation total = %v", c.counters[MetricValidationTotal])
	}
	if c.labels[MetricValidationTotal]["result"] != "invalid" {
		t.Fatalf("last validation labels = %v", c.labels[MetricValidationTotal])
	}
	if c.labels[MetricQueryTotal]["op"] != "aggregate" {
		t.Fatalf("query labels = %v", c.labels[MetricQueryTotal])
	}
	if c.flushed != 1 {
		t.Fatalf("flushed = %d", c.flushed)
	}
}

// TestNopDefault verifies the facade is safe with no backend installed.
func TestNopDefault(t *testing.T) {
	SetBackend(nil)

	RecordStage("x", "ok", 1)
	AddRows(1)
	if err := Flush(); err != nil {
		t.Fatalf("nop Flush: %v", err)
	}
	if err := Close(); err != nil {
		t.Fatalf("nop Close: %v", err)
	}
}
