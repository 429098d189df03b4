// Package metrics exposes Prometheus collectors for the aggregation pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "aggregator"

// Metrics holds every collector used by the pipeline. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	PagesFetched      *prometheus.CounterVec
	FetchFailures     *prometheus.CounterVec
	BlockPages        *prometheus.CounterVec
	ListingsExtracted *prometheus.CounterVec
	ListingsRelevant  *prometheus.CounterVec
	SourceDuration    *prometheus.HistogramVec
	ListingsPersisted *prometheus.CounterVec
	RequestsProcessed *prometheus.CounterVec
	EmptyPolls        prometheus.Counter
}

// New registers all collectors on reg (the default registerer when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		PagesFetched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fetch", Name: "pages_total",
			Help: "Pages fetched successfully, by source and mode.",
		}, []string{"source", "mode"}),
		FetchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fetch", Name: "failures_total",
			Help: "Page fetch failures, by source and failure kind.",
		}, []string{"source", "kind"}),
		BlockPages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fetch", Name: "block_pages_total",
			Help: "Empty pages classified as bot-detection block pages.",
		}, []string{"source"}),
		ListingsExtracted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "search", Name: "listings_extracted_total",
			Help: "Raw listings extracted, by source.",
		}, []string{"source"}),
		ListingsRelevant: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "search", Name: "listings_relevant_total",
			Help: "Listings that passed the relevance filter, by source.",
		}, []string{"source"}),
		SourceDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "search", Name: "source_duration_seconds",
			Help:    "Wall time spent paginating one source.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"source"}),
		ListingsPersisted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "listings_total",
			Help: "Upserted listings, by result (inserted, updated, failed).",
		}, []string{"result"}),
		RequestsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "requests_total",
			Help: "Search requests taken off the queue, by status.",
		}, []string{"status"}),
		EmptyPolls: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "empty_polls_total",
			Help: "Queue polls that returned nothing.",
		}),
	}
}

func (m *Metrics) PageFetched(source, mode string) {
	if m == nil {
		return
	}
	m.PagesFetched.WithLabelValues(source, mode).Inc()
}

func (m *Metrics) FetchFailed(source, kind string) {
	if m == nil {
		return
	}
	m.FetchFailures.WithLabelValues(source, kind).Inc()
}

func (m *Metrics) BlockPage(source string) {
	if m == nil {
		return
	}
	m.BlockPages.WithLabelValues(source).Inc()
}

func (m *Metrics) Extracted(source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ListingsExtracted.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) Relevant(source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ListingsRelevant.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) SourceDone(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.SourceDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) Persisted(inserted, updated, failed int) {
	if m == nil {
		return
	}
	m.ListingsPersisted.WithLabelValues("inserted").Add(float64(inserted))
	m.ListingsPersisted.WithLabelValues("updated").Add(float64(updated))
	m.ListingsPersisted.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) Request(status string) {
	if m == nil {
		return
	}
	m.RequestsProcessed.WithLabelValues(status).Inc()
}

func (m *Metrics) EmptyPoll() {
	if m == nil {
		return
	}
	m.EmptyPolls.Inc()
}
