package ai

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"model", "status", "purpose"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wizard_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model", "purpose"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wizard_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20), // 250, 500, ..., 5000
		},
		[]string{"model", "purpose"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wizard_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20), // 100, 200, ..., 2000
		},
		[]string{"model", "purpose"},
	)
)

func observeRequest(model, purpose, status string) {
	aiRequestsTotal.With(prometheus.Labels{"model": model, "status": status, "purpose": purpose}).Inc()
}

func observeUsage(model, purpose string, seconds float64, usage UsageInfo) {
	labels := prometheus.Labels{"model": model, "purpose": purpose}
	aiRequestDuration.With(labels).Observe(seconds)
	if usage.TotalTokens > 0 {
		aiPromptTokens.With(labels).Observe(float64(usage.PromptTokens))
		aiCompletionTokens.With(labels).Observe(float64(usage.CompletionTokens))
	}
}
