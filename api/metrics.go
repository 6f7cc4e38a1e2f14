package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the operations worth watching on a dashboard: submission
// outcomes and fiscal-year rollovers. Served on /metrics.
var (
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leave_engine",
		Name:      "submissions_total",
		Help:      "Leave submissions by outcome.",
	}, []string{"outcome"})

	rolloversTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "leave_engine",
		Name:      "rollovers_total",
		Help:      "Completed fiscal-year rollovers.",
	})
)
