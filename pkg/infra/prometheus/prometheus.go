package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	// Latency buckets in milliseconds
	latencyBuckets = []float64{
		0.5, 1, 2.5, // in-memory and pipelined lookups
		5, 10, 25, // redis round trips
		50, 100, 250, // ledger and upstream
		500, 1000, 2500,
	}

	scoreBuckets = []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

	ThreatDecisionsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatgate_decisions_total",
			Help: "Total number of threat decisions by action and tier",
		},
		[]string{"action", "tier", "cause"},
	)

	ThreatScore = promauto.With(registerer).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "threatgate_threat_score",
			Help:    "Distribution of computed threat scores",
			Buckets: scoreBuckets,
		},
	)

	DecisionLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "threatgate_decision_latency_ms",
			Help:    "Time spent deciding on a request in milliseconds",
			Buckets: latencyBuckets,
		},
		[]string{"stage"},
	)

	DegradedTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatgate_degraded_total",
			Help: "Operations that fell back because a dependency was unavailable",
		},
		[]string{"component"},
	)

	LedgerOpsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatgate_ledger_ops_total",
			Help: "Ledger operations by kind and result",
		},
		[]string{"op", "result"},
	)

	LedgerPendingSync = promauto.With(registerer).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "threatgate_ledger_pending_sync",
			Help: "Rows that still need to be written to the ledger",
		},
		[]string{"kind"},
	)

	ActiveBlocks = promauto.With(registerer).NewGauge(
		prometheus.GaugeOpts{
			Name: "threatgate_active_blocks",
			Help: "Blocked sources currently in force",
		},
	)

	SignaturesMintedTotal = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "threatgate_signatures_minted_total",
			Help: "Attack signatures minted by the coordinated-attack detector",
		},
	)

	ChallengesTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatgate_challenges_total",
			Help: "Challenge lifecycle events by result",
		},
		[]string{"result"},
	)

	SecurityEventsOverflow = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "threatgate_security_events_overflow_total",
			Help: "Security events persisted on the request path because the recorder queue was full",
		},
	)

	WorkerTasksDropped = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatgate_worker_tasks_dropped_total",
			Help: "Background tasks refused because a worker queue was full",
		},
		[]string{"task"},
	)

	UpstreamRequestsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatgate_upstream_requests_total",
			Help: "Requests forwarded upstream by status class",
		},
		[]string{"status"},
	)
)

type MetricsConfig struct {
	EnableProcess bool
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{EnableProcess: true}
}

var Config MetricsConfig

func Initialize(cfg MetricsConfig) {
	Config = cfg
	if cfg.EnableProcess {
		registry.MustRegister(
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewGoCollector(),
		)
	}

	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
}

// Gatherer exposes the private registry to the metrics server.
func Gatherer() prometheus.Gatherer {
	return registry
}
