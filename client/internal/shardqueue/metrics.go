package shardqueue

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// queueDepth is only written from the owning worker goroutine.
var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imagesync",
			Subsystem: "mutations",
			Name:      "submissions_total",
			Help:      "Mutation jobs accepted for execution.",
		},
		[]string{"shard"},
	)

	queueFullTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imagesync",
			Subsystem: "mutations",
			Name:      "queue_full_total",
			Help:      "Enqueue attempts that timed out because the shard was full.",
		},
		[]string{"shard"},
	)

	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imagesync",
			Subsystem: "mutations",
			Name:      "attempts_total",
			Help:      "Job attempts by outcome.",
		},
		[]string{"shard", "outcome"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imagesync",
			Subsystem: "mutations",
			Name:      "run_duration_seconds",
			Help:      "Job attempt latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"shard"},
	)

	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "imagesync",
			Subsystem: "mutations",
			Name:      "queue_depth",
			Help:      "Current depth of each shard queue.",
		},
		[]string{"shard"},
	)
)

func labelFor(i int) string { return strconv.Itoa(i) }
