package peersync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/leadsync/internal/fake"
	"github.com/arloliu/leadsync/internal/replica"
	"github.com/arloliu/leadsync/types"
)

func peer(name string) types.ReplicaView {
	return types.ReplicaView{
		ReplicaState: types.ReplicaState{
			NodeName:     name,
			BaseURL:      "http://" + name + "/solr",
			CoreName:     "core",
			CoreNodeName: name + "_core",
			Status:       types.StatusActive,
		},
		Live: true,
	}
}

func newCoordinator(j *fake.Journal) (*Coordinator, *fake.PeerClient) {
	client := fake.NewPeerClient(j)
	return New(client, Config{PeerTimeout: 200 * time.Millisecond}, nil, nil), client
}

func TestSyncSelf_NoPeersIsFreshWithoutCalls(t *testing.T) {
	j := &fake.Journal{}
	c, _ := newCoordinator(j)

	outcome := c.SyncSelf(context.Background(), replica.NewMemory("core"), nil)
	require.Equal(t, types.SyncFresh, outcome)
	require.Empty(t, j.Entries())
}

func TestSyncSelf_Outcomes(t *testing.T) {
	a, b, d := peer("a"), peer("b"), peer("d")

	tests := []struct {
		name    string
		script  map[string]fake.PeerResponse
		want    types.SyncOutcome
		timeout bool
	}{
		{
			name: "all fresh",
			want: types.SyncFresh,
		},
		{
			name:   "one stale wins over fresh",
			script: map[string]fake.PeerResponse{b.CoreURL(): {Fresh: false}},
			want:   types.SyncNotFresh,
		},
		{
			name: "all unreachable is inconclusive",
			script: map[string]fake.PeerResponse{
				a.CoreURL(): {Err: types.ErrPeerUnreachable},
				b.CoreURL(): {Err: types.ErrPeerUnreachable},
				d.CoreURL(): {Err: errors.New("reset")},
			},
			want: types.SyncInconclusive,
		},
		{
			name:   "one unreachable one fresh is fresh",
			script: map[string]fake.PeerResponse{a.CoreURL(): {Err: types.ErrPeerUnreachable}},
			want:   types.SyncFresh,
		},
		{
			name: "timeouts count as no evidence",
			script: map[string]fake.PeerResponse{
				a.CoreURL(): {Fresh: true, Delay: 2 * time.Second},
				b.CoreURL(): {Fresh: true, Delay: 2 * time.Second},
				d.CoreURL(): {Fresh: true, Delay: 2 * time.Second},
			},
			want:    types.SyncInconclusive,
			timeout: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &fake.Journal{}
			c, client := newCoordinator(j)
			for url, resp := range tt.script {
				client.Script(url, resp)
			}

			start := time.Now()
			outcome := c.SyncSelf(context.Background(), replica.NewMemory("core"), []types.ReplicaView{a, b, d})
			require.Equal(t, tt.want, outcome)
			require.Equal(t, 3, j.Count("compare "))

			if tt.timeout {
				// Peers are compared concurrently, so three timeouts cost one.
				require.Less(t, time.Since(start), time.Second)
			}
		})
	}
}

func TestPropagateSync_ContinuesPastFailingPeer(t *testing.T) {
	j := &fake.Journal{}
	c, client := newCoordinator(j)
	a, b, d := peer("a"), peer("b"), peer("d")
	client.Script(b.CoreURL(), fake.PeerResponse{SyncErr: errors.New("refused")})

	leader := types.CandidateMetadata{BaseURL: "http://leader/solr", CoreName: "core"}
	c.PropagateSync(context.Background(), leader, []types.ReplicaView{a, b, d})

	require.Equal(t, 3, j.Count("request_sync "))
	for _, p := range []types.ReplicaView{a, b, d} {
		require.GreaterOrEqual(t, j.Index("request_sync "+p.CoreURL()+" http://leader/solr/core"), 0)
	}
}

func TestPropagateSync_WaitsForSlowPeers(t *testing.T) {
	j := &fake.Journal{}
	c, client := newCoordinator(j)
	slow := peer("slow")
	client.Script(slow.CoreURL(), fake.PeerResponse{Delay: 5 * time.Second})

	start := time.Now()
	c.PropagateSync(context.Background(), types.CandidateMetadata{BaseURL: "http://l"}, []types.ReplicaView{slow, peer("fast")})

	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
	require.Less(t, elapsed, 2*time.Second)
	require.Equal(t, 2, j.Count("request_sync "))
}

func TestPropagateSync_NoPeers(t *testing.T) {
	j := &fake.Journal{}
	c, _ := newCoordinator(j)

	c.PropagateSync(context.Background(), types.CandidateMetadata{}, nil)
	require.Empty(t, j.Entries())
}
