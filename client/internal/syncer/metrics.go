package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imagesync",
			Subsystem: "syncer",
			Name:      "fetches_total",
			Help:      "View fetches by source (network, cache).",
		},
		[]string{"view", "source"},
	)

	fetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imagesync",
			Subsystem: "syncer",
			Name:      "fetch_errors_total",
			Help:      "View fetches that failed and left previous data in place.",
		},
		[]string{"view"},
	)

	staleDiscardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imagesync",
			Subsystem: "syncer",
			Name:      "stale_discards_total",
			Help:      "Responses discarded because they were superseded, out of order or from a previous identity.",
		},
		[]string{"view", "reason"},
	)

	togglesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imagesync",
			Subsystem: "syncer",
			Name:      "bookmark_toggles_total",
			Help:      "Bookmark toggles by outcome.",
		},
		[]string{"outcome"},
	)
)
