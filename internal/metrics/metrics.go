// Package metrics exposes Prometheus instruments for the question pipeline.
package metrics

import (
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Outcome labels for RequestsTotal
const (
	OutcomeAnswered         = "answered"
	OutcomeCached           = "cached"
	OutcomeInvalidInput     = "invalid_input"
	OutcomeGenerationFailed = "generation_failed"
	OutcomeValidationFailed = "validation_rejected"
	OutcomeExecutionFailed  = "execution_failed"
	OutcomeInternalFailure  = "internal"
)

// Stage labels for StageDuration
const (
	StageCacheGet = "cache.get"
	StageGenerate = "generate"
	StageValidate = "validate"
	StageExecute  = "execute"
	StageRender   = "render"
	StageCachePut = "cache.put"
)

// Metrics groups the pipeline instruments. A nil *Metrics records nothing.
type Metrics struct {
	requests      *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	rowsReturned  prometheus.Histogram
}

// New creates the instruments and registers them with reg
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hr_insight_requests_total",
				Help: "Total number of questions by outcome.",
			},
			[]string{"outcome"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hr_insight_cache_lookups_total",
				Help: "Total number of response cache lookups by result.",
			},
			[]string{"result"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hr_insight_stage_duration_seconds",
				Help:    "Duration of each pipeline stage in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),
		rowsReturned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hr_insight_rows_returned",
				Help:    "Rows returned per executed query.",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
			},
		),
	}

	for _, c := range []prometheus.Collector{m.requests, m.cacheLookups, m.stageDuration, m.rowsReturned} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors alongside the pipeline instruments.
func NewRegistry() (*prometheus.Registry, *Metrics, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m, err := New(reg)
	if err != nil {
		return nil, nil, err
	}

	return reg, m, nil
}

// ObserveRequest counts one finished question
func (m *Metrics) ObserveRequest(outcome string) {
	if m == nil {
		return
	}

	m.requests.WithLabelValues(outcome).Inc()
}

// ObserveCacheLookup counts a cache hit or miss
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}

	result := "miss"
	if hit {
		result = "hit"
	}

	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveStage records how long a stage took
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// ObserveRows records the size of an executed result
func (m *Metrics) ObserveRows(rows int) {
	if m == nil {
		return
	}

	if rows < 0 {
		rows = 0
	}

	m.rowsReturned.Observe(float64(rows))
}

// Snapshot flattens the hr_insight_ series in g into "name{labels}" keys.
// Histograms report their sample count.
func Snapshot(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64)

	for _, family := range families {
		if !strings.HasPrefix(family.GetName(), "hr_insight_") {
			continue
		}

		for _, metric := range family.GetMetric() {
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, lp := range metric.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}

			sort.Strings(labels)

			key := family.GetName()
			if len(labels) > 0 {
				key += "{" + strings.Join(labels, ",") + "}"
			}

			switch {
			case metric.GetCounter() != nil:
				out[key] = metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				out[key] = float64(metric.GetHistogram().GetSampleCount())
			case metric.GetGauge() != nil:
				out[key] = metric.GetGauge().GetValue()
			}
		}
	}

	return out, nil
}
