package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the bulk pipeline.
type Metrics struct {
	EntitiesReceived *prometheus.CounterVec
	EntitiesAccepted *prometheus.CounterVec
	ValidationErrors *prometheus.CounterVec
	Published        *prometheus.CounterVec
	ConsumerApplies  *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
}

// New creates the pipeline metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EntitiesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthreg_bulk_entities_received_total",
			Help: "Entities received in bulk requests, by entity kind and operation",
		}, []string{"kind", "operation"}),
		EntitiesAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthreg_bulk_entities_accepted_total",
			Help: "Entities that passed the validator chain and were published",
		}, []string{"kind", "operation"}),
		ValidationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthreg_validation_errors_total",
			Help: "Per-entity validation errors, by entity kind and error code",
		}, []string{"kind", "code"}),
		Published: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthreg_publish_total",
			Help: "Batches published to the persistence topics",
		}, []string{"topic"}),
		ConsumerApplies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthreg_consumer_applies_total",
			Help: "Storage mutations applied by the persistence consumer",
		}, []string{"kind", "operation", "result"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "healthreg_bulk_stage_seconds",
			Help:    "Latency of pipeline stages (validate, enrich, publish, search)",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind", "stage"}),
	}
}
