package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/leadsync/types"
)

func TestPrometheusCollector_RegistersLazily(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Empty(t, families)

	p.RecordRejoin()

	families, err = reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestPrometheusCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.RecordClaim("claimed")
	p.RecordClaim("claimed_after_stale")
	p.RecordClaim("claimed_after_stale")
	p.RecordLeaderFallback()
	p.RecordSyncOutcome(types.SyncNotFresh)
	p.RecordPeerRequest("compare", false, 0.2)
	p.RecordStateTransition(types.StateSyncing, types.StateLeading, 0.4)

	require.InDelta(t, 1, testutil.ToFloat64(p.claims.WithLabelValues("claimed")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(p.claims.WithLabelValues("claimed_after_stale")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.fallbacks), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.syncOutcomes.WithLabelValues("not_fresh")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.peerRequests.WithLabelValues("compare", "failure")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.transitions.WithLabelValues("Syncing", "Leading")), 0)
}

func TestPrometheusCollector_Gauges(t *testing.T) {
	p := NewPrometheus(prometheus.NewRegistry(), "")

	p.RecordLiveNodes(4)
	p.RecordOverseerActive(true)
	require.InDelta(t, 4, testutil.ToFloat64(p.liveNodes), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.overseerActive), 0)

	p.RecordOverseerActive(false)
	require.InDelta(t, 0, testutil.ToFloat64(p.overseerActive), 0)
	require.Equal(t, "leadsync", p.namespace)
}
