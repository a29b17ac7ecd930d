package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bpmn"

// Ingestion and lookup outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeNotFound = "not_found"
)

type IngestMetrics struct {
	service string

	ingestTotal    *prometheus.CounterVec
	ingestDuration *prometheus.HistogramVec
	ingestInFlight prometheus.Gauge
	lookupTotal    *prometheus.CounterVec
}

func newIngestMetrics(registry prometheus.Registerer, service string) *IngestMetrics {
	ingestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "uploads_total",
			Help:      "Total upload ingestions by outcome.",
		},
		[]string{"service", "outcome"},
	)
	ingestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Upload ingestion duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)
	ingestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "in_flight",
			Help:      "Number of in-flight upload ingestions.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	lookupTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lookup",
			Name:      "requests_total",
			Help:      "Total upload lookups by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(ingestTotal, ingestDuration, ingestInFlight, lookupTotal)

	return &IngestMetrics{
		service:        service,
		ingestTotal:    ingestTotal,
		ingestDuration: ingestDuration,
		ingestInFlight: ingestInFlight,
		lookupTotal:    lookupTotal,
	}
}

// StartIngestion marks an ingestion in flight; the returned func records its outcome.
func (m *IngestMetrics) StartIngestion() func(outcome string) {
	start := time.Now()
	m.ingestInFlight.Inc()
	return func(outcome string) {
		m.ingestInFlight.Dec()
		m.ingestTotal.WithLabelValues(m.service, outcome).Inc()
		m.ingestDuration.WithLabelValues(m.service, outcome).Observe(time.Since(start).Seconds())
	}
}

func (m *IngestMetrics) RecordLookup(outcome string) {
	m.lookupTotal.WithLabelValues(m.service, outcome).Inc()
}
