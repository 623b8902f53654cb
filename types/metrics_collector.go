package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from internal goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces.
type MetricsCollector interface {
	TransitionMetrics
	SyncMetrics
	SessionMetrics
	OverseerMetrics
}

// TransitionMetrics defines metrics for leadership transitions.
type TransitionMetrics interface {
	// RecordStateTransition records a transition state change.
	//
	// Parameters:
	//   - from: Previous state
	//   - to: New state
	//   - duration: Seconds spent in the previous state
	RecordStateTransition(from, to TransitionState, duration float64)

	// RecordClaim records a leader pointer claim.
	//
	// Parameters:
	//   - result: "claimed", "claimed_after_stale" or "conflict"
	RecordClaim(result string)

	// RecordLeaderFallback records a leaderless-shard override of a failed sync.
	RecordLeaderFallback()

	// RecordTransitionError records an absorbed transition error.
	//
	// Parameters:
	//   - kind: "coordination_unavailable", "claim_conflict" or "internal"
	RecordTransitionError(kind string)

	// RecordRejoin records a re-enrollment into an election.
	RecordRejoin()
}

// SyncMetrics defines metrics for peer reconciliation.
type SyncMetrics interface {
	// RecordSyncOutcome records the aggregate outcome of a candidate sync.
	RecordSyncOutcome(outcome SyncOutcome)

	// RecordPeerRequest records one peer call.
	//
	// Parameters:
	//   - op: "compare" or "request_sync"
	//   - success: true when the peer answered
	//   - duration: Call latency in seconds
	RecordPeerRequest(op string, success bool, duration float64)
}

// SessionMetrics defines metrics for the coordination session.
type SessionMetrics interface {
	// RecordKVOperationDuration records NATS KV operation latency.
	//
	// Parameters:
	//   - operation: Operation type ("create", "delete", "get", "renew")
	//   - duration: Time taken in seconds
	RecordKVOperationDuration(operation string, duration float64)

	// RecordEphemeralLost records an owned ephemeral entry that could not be renewed.
	RecordEphemeralLost()
}

// OverseerMetrics defines metrics reported by the cluster overseer.
type OverseerMetrics interface {
	// RecordLiveNodes sets the current live node count (gauge metric).
	RecordLiveNodes(count int)

	// RecordOverseerActive sets whether this process runs the overseer.
	RecordOverseerActive(active bool)
}
