package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imagesync",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache hits by resource and tier.",
		},
		[]string{"resource", "tier"},
	)

	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imagesync",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache lookups that fell through to the network.",
		},
		[]string{"resource"},
	)

	cacheDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imagesync",
			Subsystem: "cache",
			Name:      "durable_degraded_total",
			Help:      "Durable tier operations that failed and fell back to memory-only.",
		},
		[]string{"op"},
	)
)
