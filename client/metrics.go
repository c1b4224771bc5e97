package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imagesync",
			Name:      "generations_total",
			Help:      "Generate-and-save requests by outcome.",
		},
		[]string{"outcome"},
	)

	snapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imagesync",
			Name:      "snapshots_total",
			Help:      "Periodic snapshot writes by outcome.",
		},
		[]string{"outcome"},
	)

	mutationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "imagesync",
			Name:      "background_job_failures_total",
			Help:      "Background jobs whose final attempt returned an error or panicked.",
		},
	)
)
