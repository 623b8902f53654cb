// Package metrics provides types.MetricsCollector implementations.
package metrics

import "github.com/arloliu/leadsync/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
//
// Example:
//
//	node, _ := leadsync.NewNode(&cfg, nc, leadsync.WithMetrics(metrics.NewNop()))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// TransitionMetrics implementation

// RecordStateTransition discards the state transition metric.
func (n *NopMetrics) RecordStateTransition(_ /* from */, _ /* to */ types.TransitionState, _ /* duration */ float64) {
	// No-op
}

// RecordClaim discards the claim metric.
func (n *NopMetrics) RecordClaim(_ /* result */ string) {
	// No-op
}

// RecordLeaderFallback discards the fallback metric.
func (n *NopMetrics) RecordLeaderFallback() {
	// No-op
}

// RecordTransitionError discards the transition error metric.
func (n *NopMetrics) RecordTransitionError(_ /* kind */ string) {
	// No-op
}

// RecordRejoin discards the rejoin metric.
func (n *NopMetrics) RecordRejoin() {
	// No-op
}

// SyncMetrics implementation

// RecordSyncOutcome discards the sync outcome metric.
func (n *NopMetrics) RecordSyncOutcome(_ /* outcome */ types.SyncOutcome) {
	// No-op
}

// RecordPeerRequest discards the peer request metric.
func (n *NopMetrics) RecordPeerRequest(_ /* op */ string, _ /* success */ bool, _ /* duration */ float64) {
	// No-op
}

// SessionMetrics implementation

// RecordKVOperationDuration discards the KV latency metric.
func (n *NopMetrics) RecordKVOperationDuration(_ /* operation */ string, _ /* duration */ float64) {
	// No-op
}

// RecordEphemeralLost discards the lost ephemeral metric.
func (n *NopMetrics) RecordEphemeralLost() {
	// No-op
}

// OverseerMetrics implementation

// RecordLiveNodes discards the live node gauge.
func (n *NopMetrics) RecordLiveNodes(_ /* count */ int) {
	// No-op
}

// RecordOverseerActive discards the overseer gauge.
func (n *NopMetrics) RecordOverseerActive(_ /* active */ bool) {
	// No-op
}
