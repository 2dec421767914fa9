// Package metrics defines the minimal metrics surface the import pipeline
// emits against. Concrete backends (Datadog, nop) live in subpackages or
// here; the pipeline depends only on Backend.
package metrics

// Labels are free-form metric dimensions (e.g. {"indicator": "grad-rate"}).
type Labels map[string]string

// Backend receives metric events from the pipeline.
//
// Implementations must be safe for concurrent use. Unknown metric names
// should be ignored, not rejected: the pipeline may grow metrics faster
// than every backend learns about them.
type Backend interface {
	// IncCounter adds delta (> 0) to the named counter.
	IncCounter(name string, delta float64, labels Labels)

	// ObserveHistogram records one sample of the named distribution.
	ObserveHistogram(name string, value float64, labels Labels)

	// Flush pushes buffered metrics to the sink. Optional for backends
	// that submit synchronously.
	Flush() error

	// Close flushes once more and releases resources.
	Close() error
}

// Metric names emitted by the importer. Kept here so backends and emitters
// agree on the operational contract.
const (
	// CounterRecords counts produced data records, label kind=loaded|skipped.
	CounterRecords = "datahub_records_total"
	// CounterIndicators counts processed indicators, label status=ok|ambiguous|error.
	CounterIndicators = "datahub_indicators_total"
	// HistogramLoadSeconds samples per-indicator load duration, label indicator.
	HistogramLoadSeconds = "datahub_load_duration_seconds"
)

// Nop is a Backend that discards everything. Use it when metrics are
// disabled so call sites never need nil checks.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}
func (Nop) Flush() error                             { return nil }
func (Nop) Close() error                             { return nil }
