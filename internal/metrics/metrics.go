// Package metrics is a minimal instrumentation facade. Pipeline code
// records counters and histograms against whatever Backend the process
// configured; the default backend drops everything, so instrumentation
// is free when no metrics sink is wired.
package metrics

import "sync"

// Labels attach low-cardinality dimensions to a metric sample.
type Labels map[string]string

// Backend receives metric samples. Implementations buffer internally
// and submit on Flush; Close must stop any background work and flush
// one final time.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
	Close() error
}

// Metric names recorded by the pipeline. Backends may ignore names they
// do not recognize.
const (
	MetricStageTotal      = "tabxml_stage_total"
	MetricStageDuration   = "tabxml_stage_duration_seconds"
	MetricRowsTotal       = "tabxml_rows_total"
	MetricBatchesTotal    = "tabxml_batches_total"
	MetricValidationTotal = "tabxml_validation_total"
	MetricQueryTotal      = "tabxml_query_total"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }
func (nopBackend) Close() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs the process-wide backend. Call once at startup,
// before pipeline work begins.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush flushes the configured backend.
func Flush() error { return current().Flush() }

// Close closes the configured backend.
func Close() error { return current().Close() }

// RecordStage records one completed pipeline stage with its outcome and
// duration in seconds.
func RecordStage(stage, status string, seconds float64) {
	b := current()
	labels := Labels{"stage": stage, "status": status}
	b.IncCounter(MetricStageTotal, 1, labels)
	b.ObserveHistogram(MetricStageDuration, seconds, labels)
}

// AddRows records imported rows.
func AddRows(n int) {
	current().IncCounter(MetricRowsTotal, float64(n), nil)
}

// AddBatch records one persisted row batch.
func AddBatch() {
	current().IncCounter(MetricBatchesTotal, 1, nil)
}

// RecordValidation records one validation run and its outcome.
func RecordValidation(valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	current().IncCounter(MetricValidationTotal, 1, Labels{"result": result})
}

// RecordQuery records one query engine operation.
func RecordQuery(op string) {
	current().IncCounter(MetricQueryTotal, 1, Labels{"op": op})
}
