package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_transitions_total",
			Help: "Total number of committed wizard transitions.",
		},
		[]string{"event"},
	)
	generationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_generations_total",
			Help: "Total number of finished generations by kind and status.",
		},
		[]string{"kind", "status"}, // status: success, failed, timeout, cancelled, stale
	)
	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wizard_generation_duration_seconds",
			Help:    "Histogram of generation durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "status"},
	)
)
