package kasa

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// sourceFailures counts swallowed source failures by source name.
	sourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kasa_source_failures_total",
		Help: "Quote source calls that failed and were recovered by the router",
	}, []string{"source"})

	// sourceLatency tracks how long each source call took, failures included.
	sourceLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kasa_source_duration_seconds",
		Help:    "Quote source call duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"source"})

	// derivationsMissed counts base metal quotes omitted for lack of an exchange rate.
	derivationsMissed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kasa_derivation_unavailable_total",
		Help: "Base metal prices omitted because the exchange rate was missing",
	})
)
