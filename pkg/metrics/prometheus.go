package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	ScrapesTotal    *prometheus.CounterVec
	ScrapeDuration  *prometheus.HistogramVec
	EntitiesWritten *prometheus.CounterVec
	UpsertDuration  prometheus.Histogram
	ErrorsCount     *prometheus.CounterVec
}

// NewMetrics creates new prometheus metrics registered on the default registry
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith creates metrics registered on reg
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ScrapesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrapes_total",
			Help:      "The total number of source scrapes by outcome",
		}, []string{"source", "outcome"}),
		ScrapeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scrape_duration_seconds",
			Help:      "Time taken by one source scrape",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"source"}),
		EntitiesWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_written_total",
			Help:      "The total number of stored entities by kind and action",
		}, []string{"kind", "action"}),
		UpsertDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upsert_duration_seconds",
			Help:      "Time taken by one upsert pipeline run",
			Buckets:   prometheus.DefBuckets,
		}),
		ErrorsCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of errors",
		}, []string{"operation"}),
	}
}

// ObserveScrape records the outcome and duration of one source scrape
func (m *Metrics) ObserveScrape(source, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ScrapesTotal.WithLabelValues(source, outcome).Inc()
	m.ScrapeDuration.WithLabelValues(source).Observe(d.Seconds())
}

// AddWritten counts stored entities of a kind, e.g. ("flight", "inserted")
func (m *Metrics) AddWritten(kind, action string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.EntitiesWritten.WithLabelValues(kind, action).Add(float64(n))
}

// ObserveUpsert records the duration of one upsert run
func (m *Metrics) ObserveUpsert(d time.Duration) {
	if m == nil {
		return
	}
	m.UpsertDuration.Observe(d.Seconds())
}

// IncError counts an error for an operation
func (m *Metrics) IncError(operation string) {
	if m == nil {
		return
	}
	m.ErrorsCount.WithLabelValues(operation).Inc()
}
