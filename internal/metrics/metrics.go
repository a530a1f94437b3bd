package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urbanflow_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "urbanflow_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	RunOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urbanflow_run_outcomes_total",
			Help: "Triage runs by final outcome status",
		},
		[]string{"status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "urbanflow_stage_duration_seconds",
			Help: "Triage pipeline stage duration in seconds",
		},
		[]string{"stage"},
	)

	EvaluatorFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urbanflow_evaluator_failures_total",
			Help: "Specialist evaluator failures by category",
		},
		[]string{"category"},
	)

	JudgeFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "urbanflow_judge_fallbacks_total",
			Help: "Arbitrations resolved by the deterministic fallback",
		},
	)

	DedupOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urbanflow_dedup_outcomes_total",
			Help: "Duplicate resolution outcomes by terminal state",
		},
		[]string{"state"},
	)

	ChatDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urbanflow_chat_decisions_total",
			Help: "Chat safety scoring decisions",
		},
		[]string{"decision"},
	)

	SentinelAlerts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "urbanflow_sentinel_alerts_total",
			Help: "Transcript keyword alerts raised",
		},
	)

	ActiveAudioSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "urbanflow_active_audio_sessions",
			Help: "Number of open audio transcript sessions",
		},
	)
)
