package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// fetchAttempts counts metadata/image requests sent to gateways.
	// Labels: gateway, outcome (ok, not_found, rate_limited, error, timeout)
	fetchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deadbears",
		Subsystem: "loader",
		Name:      "fetch_attempts_total",
		Help:      "Requests sent to IPFS gateways by outcome",
	}, []string{"gateway", "outcome"})

	// itemsLoaded counts items published to the catalog
	itemsLoaded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "deadbears",
		Subsystem: "loader",
		Name:      "items_loaded_total",
		Help:      "Items published to the catalog",
	})

	// itemsOmitted counts ids dropped after exhausting retries.
	// Labels: reason (not_minted, unavailable)
	itemsOmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deadbears",
		Subsystem: "loader",
		Name:      "items_omitted_total",
		Help:      "Ids omitted from the catalog",
	}, []string{"reason"})

	// batchDuration measures the wall time of one loader batch
	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "deadbears",
		Subsystem: "loader",
		Name:      "batch_duration_seconds",
		Help:      "Duration of one metadata batch",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
	})

	// wordChecks counts secret word checks. Labels: result (accepted, rejected, empty)
	wordChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deadbears",
		Subsystem: "rewards",
		Name:      "word_checks_total",
		Help:      "Secret word checks by result",
	}, []string{"result"})

	// rewardsIssued counts generated reward codes. Labels: tier
	rewardsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deadbears",
		Subsystem: "rewards",
		Name:      "issued_total",
		Help:      "Reward codes issued by tier",
	}, []string{"tier"})

	// terminalSessions is the number of live ritual terminal sessions
	terminalSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "deadbears",
		Subsystem: "terminal",
		Name:      "sessions",
		Help:      "Live ritual terminal sessions",
	})
)
