package generation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// runsTotal counts finished runs by outcome ("success" or an error kind).
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "freecoach_generation_runs_total",
		Help: "Program generation runs by outcome",
	}, []string{"outcome"})

	// attemptsTotal counts model round trips, including retries.
	attemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "freecoach_generation_attempts_total",
		Help: "Model attempts made by program generation runs",
	})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "freecoach_generation_stage_duration_seconds",
		Help:    "Time spent in each generation stage",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 9), // 1ms to ~65s
	}, []string{"stage"})

	repairRulesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "freecoach_repair_rules_applied_total",
		Help: "Repair rules that changed model output",
	}, []string{"rule"})
)
