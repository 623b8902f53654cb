package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/leadsync/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use, so constructing a
// PrometheusCollector that is never used leaves the registry untouched.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	transitions        *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	claims             *prometheus.CounterVec
	fallbacks          prometheus.Counter
	transitionErrors   *prometheus.CounterVec
	rejoins            prometheus.Counter
	syncOutcomes       *prometheus.CounterVec
	peerRequests       *prometheus.CounterVec
	peerLatency        *prometheus.HistogramVec
	kvLatency          *prometheus.HistogramVec
	ephemeralLost      prometheus.Counter
	liveNodes          prometheus.Gauge
	overseerActive     prometheus.Gauge
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "leadsync" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "leadsync"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "transition",
			Name:      "state_changes_total",
			Help:      "Total leadership transition state changes by target state.",
		}, []string{"from", "to"})

		p.transitionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "transition",
			Name:      "state_duration_seconds",
			Help:      "Time spent in a transition state before leaving it.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~10s
		}, []string{"state"})

		p.claims = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "transition",
			Name:      "claims_total",
			Help:      "Leader pointer claims by result (claimed, claimed_after_stale, conflict).",
		}, []string{"result"})

		p.fallbacks = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "transition",
			Name:      "leaderless_fallbacks_total",
			Help:      "Failed syncs overridden because no other replica was active.",
		})

		p.transitionErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "transition",
			Name:      "errors_total",
			Help:      "Errors absorbed by leadership transitions by kind.",
		}, []string{"kind"})

		p.rejoins = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "rejoins_total",
			Help:      "Re-enrollments into an election after a failed transition.",
		})

		p.syncOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "sync",
			Name:      "outcomes_total",
			Help:      "Candidate sync outcomes (fresh, not_fresh, inconclusive).",
		}, []string{"outcome"})

		p.peerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "sync",
			Name:      "peer_requests_total",
			Help:      "Peer requests by operation and result.",
		}, []string{"op", "result"})

		p.peerLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "sync",
			Name:      "peer_request_seconds",
			Help:      "Peer request latency in seconds by operation.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}, []string{"op"})

		p.kvLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "session",
			Name:      "kv_operation_seconds",
			Help:      "NATS KV operation latency in seconds by operation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms .. ~0.5s
		}, []string{"op"})

		p.ephemeralLost = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "session",
			Name:      "ephemeral_lost_total",
			Help:      "Owned ephemeral entries that could not be renewed.",
		})

		p.liveNodes = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "overseer",
			Name:      "live_nodes",
			Help:      "Live nodes observed by the overseer.",
		})

		p.overseerActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "overseer",
			Name:      "active",
			Help:      "Whether this process runs the overseer (1=yes,0=no).",
		})

		p.reg.MustRegister(
			p.transitions,
			p.transitionDuration,
			p.claims,
			p.fallbacks,
			p.transitionErrors,
			p.rejoins,
			p.syncOutcomes,
			p.peerRequests,
			p.peerLatency,
			p.kvLatency,
			p.ephemeralLost,
			p.liveNodes,
			p.overseerActive,
		)
	})
}

// RecordStateTransition counts the state change and observes time spent in from.
func (p *PrometheusCollector) RecordStateTransition(from, to types.TransitionState, duration float64) {
	p.ensureRegistered()
	p.transitions.WithLabelValues(from.String(), to.String()).Inc()
	p.transitionDuration.WithLabelValues(from.String()).Observe(duration)
}

// RecordClaim counts a claim by result.
func (p *PrometheusCollector) RecordClaim(result string) {
	p.ensureRegistered()
	p.claims.WithLabelValues(result).Inc()
}

// RecordLeaderFallback counts a leaderless-shard override.
func (p *PrometheusCollector) RecordLeaderFallback() {
	p.ensureRegistered()
	p.fallbacks.Inc()
}

// RecordTransitionError counts an absorbed transition error.
func (p *PrometheusCollector) RecordTransitionError(kind string) {
	p.ensureRegistered()
	p.transitionErrors.WithLabelValues(kind).Inc()
}

// RecordRejoin counts a re-enrollment.
func (p *PrometheusCollector) RecordRejoin() {
	p.ensureRegistered()
	p.rejoins.Inc()
}

// RecordSyncOutcome counts a candidate sync outcome.
func (p *PrometheusCollector) RecordSyncOutcome(outcome types.SyncOutcome) {
	p.ensureRegistered()
	p.syncOutcomes.WithLabelValues(outcome.String()).Inc()
}

// RecordPeerRequest counts a peer call and observes its latency.
func (p *PrometheusCollector) RecordPeerRequest(op string, success bool, duration float64) {
	p.ensureRegistered()
	result := "success"
	if !success {
		result = "failure"
	}
	p.peerRequests.WithLabelValues(op, result).Inc()
	p.peerLatency.WithLabelValues(op).Observe(duration)
}

// RecordKVOperationDuration observes NATS KV latency.
func (p *PrometheusCollector) RecordKVOperationDuration(operation string, duration float64) {
	p.ensureRegistered()
	p.kvLatency.WithLabelValues(operation).Observe(duration)
}

// RecordEphemeralLost counts an owned entry that could not be renewed.
func (p *PrometheusCollector) RecordEphemeralLost() {
	p.ensureRegistered()
	p.ephemeralLost.Inc()
}

// RecordLiveNodes sets the live node gauge.
func (p *PrometheusCollector) RecordLiveNodes(count int) {
	p.ensureRegistered()
	p.liveNodes.Set(float64(count))
}

// RecordOverseerActive sets the overseer gauge (1 active, 0 inactive).
func (p *PrometheusCollector) RecordOverseerActive(active bool) {
	p.ensureRegistered()
	if active {
		p.overseerActive.Set(1)
	} else {
		p.overseerActive.Set(0)
	}
}
