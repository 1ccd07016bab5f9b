// Package metrics exposes Prometheus collectors for the showcase crawler.
//
// A crawl is a short-lived batch process, so collectors live on a private
// registry that is dumped to a node-exporter textfile when the run ends
// instead of being scraped over HTTP.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Page outcomes used as the "result" label.
const (
	ResultPersisted = "persisted"
	ResultEmpty     = "empty"
	ResultFailed    = "failed"
)

// Recorder owns the collectors for one process. A nil *Recorder is valid and
// records nothing, so components can treat metrics as optional.
type Recorder struct {
	registry *prometheus.Registry

	pagesTotal          *prometheus.CounterVec
	fetchDuration       prometheus.Histogram
	recordsTotal        prometheus.Counter
	fieldFailuresTotal  *prometheus.CounterVec
	rowsWrittenTotal    prometheus.Counter
	dedupeRowsTotal     *prometheus.CounterVec
	lastRunCompletedSec prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() (*Recorder, error) {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		pagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "showcase_pages_total",
			Help: "Listing pages processed, labeled by outcome.",
		}, []string{"result"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "showcase_fetch_duration_seconds",
			Help:    "Time spent rendering a listing page.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		recordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "showcase_records_extracted_total",
			Help: "Project records extracted from listing pages.",
		}),
		fieldFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "showcase_field_failures_total",
			Help: "Field resolutions that failed and fell back to a sentinel, labeled by field.",
		}, []string{"field"}),
		rowsWrittenTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "showcase_rows_written_total",
			Help: "Rows appended to the primary dataset.",
		}),
		dedupeRowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "showcase_dedupe_rows_total",
			Help: "Rows seen by the deduplicator, labeled by kept or dropped.",
		}, []string{"outcome"}),
		lastRunCompletedSec: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "showcase_last_run_completed_timestamp_seconds",
			Help: "Unix time at which the last run finished.",
		}),
	}
	for _, c := range []prometheus.Collector{
		r.pagesTotal,
		r.fetchDuration,
		r.recordsTotal,
		r.fieldFailuresTotal,
		r.rowsWrittenTotal,
		r.dedupeRowsTotal,
		r.lastRunCompletedSec,
	} {
		if err := r.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return r, nil
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObservePage counts a page outcome.
func (r *Recorder) ObservePage(result string) {
	if r == nil {
		return
	}
	r.pagesTotal.WithLabelValues(result).Inc()
}

// ObserveFetch records how long one page took to render.
func (r *Recorder) ObserveFetch(d time.Duration) {
	if r == nil || d <= 0 {
		return
	}
	r.fetchDuration.Observe(d.Seconds())
}

// ObserveRecords adds n extracted records.
func (r *Recorder) ObserveRecords(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.recordsTotal.Add(float64(n))
}

// ObserveFieldFailure counts one failed field resolution.
func (r *Recorder) ObserveFieldFailure(field string) {
	if r == nil {
		return
	}
	r.fieldFailuresTotal.WithLabelValues(field).Inc()
}

// ObserveRowsWritten adds n persisted rows.
func (r *Recorder) ObserveRowsWritten(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.rowsWrittenTotal.Add(float64(n))
}

// ObserveDedupe records how many rows were kept and dropped.
func (r *Recorder) ObserveDedupe(kept, dropped int) {
	if r == nil {
		return
	}
	r.dedupeRowsTotal.WithLabelValues("kept").Add(float64(kept))
	r.dedupeRowsTotal.WithLabelValues("dropped").Add(float64(dropped))
}

// MarkRunCompleted stamps the completion gauge.
func (r *Recorder) MarkRunCompleted(at time.Time) {
	if r == nil {
		return
	}
	r.lastRunCompletedSec.Set(float64(at.Unix()))
}

// WriteTextfile dumps the registry in text exposition format. The write is
// atomic (temp file + rename) so a concurrent node-exporter read never sees
// a partial file.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
