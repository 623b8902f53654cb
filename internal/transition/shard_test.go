package transition

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/leadsync/internal/fake"
	"github.com/arloliu/leadsync/internal/freshness"
	"github.com/arloliu/leadsync/internal/peersync"
	"github.com/arloliu/leadsync/internal/registrar"
	"github.com/arloliu/leadsync/internal/replica"
	"github.com/arloliu/leadsync/types"
)

const (
	pointerPath = "leaders/c1/shard1"
	tokenPath   = "leader_elect/c1/shard1/cand-1-n_0000000002"
)

var shard1 = types.ShardKey{Collection: "c1", Shard: "shard1"}

type harness struct {
	journal  *fake.Journal
	coord    *fake.Coordinator
	cluster  *fake.Cluster
	peers    *fake.PeerClient
	recovery *fake.Recovery
	rejoiner *fake.Rejoiner
	core     *replica.MemoryCore
	slot     types.LeadershipSlot
	hooks    *types.Hooks
	errCh    chan error
	syncer   Syncer
}

func replicaMeta(node string) types.CandidateMetadata {
	return types.CandidateMetadata{
		NodeName:     node,
		BaseURL:      "http://" + node + "/solr",
		CoreName:     "c1_shard1_" + node,
		CoreNodeName: "core_" + node,
		Collection:   "c1",
		Shard:        "shard1",
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	j := &fake.Journal{}
	slot, err := types.NewShardSlot("cand-1", shard1, replicaMeta("self"))
	require.NoError(t, err)

	h := &harness{
		journal:  j,
		coord:    fake.NewCoordinator(j),
		cluster:  fake.NewCluster(j),
		peers:    fake.NewPeerClient(j),
		recovery: &fake.Recovery{Journal: j},
		rejoiner: &fake.Rejoiner{Journal: j},
		core:     replica.NewMemory("c1_shard1_self"),
		slot:     slot,
		errCh:    make(chan error, 4),
	}
	h.hooks = &types.Hooks{
		OnError: func(_ context.Context, _ types.LeadershipSlot, err error) error {
			h.errCh <- err
			return nil
		},
	}
	h.syncer = peersync.New(h.peers, peersync.Config{PeerTimeout: 200 * time.Millisecond}, nil, nil)

	// The election queue created our token before invoking the transition.
	h.coord.Set(tokenPath, nil)
	h.cluster.AddReplica(slot.Metadata, types.StatusDown, true)

	return h
}

func (h *harness) addPeer(node string, status types.ReplicaStatus, live bool) types.CandidateMetadata {
	meta := replicaMeta(node)
	h.cluster.AddReplica(meta, status, live)

	return meta
}

func (h *harness) transition(t *testing.T) *ShardTransition {
	t.Helper()

	tr, err := NewShardTransition(h.slot, Deps{
		Coordinator: h.coord,
		Registrar:   registrar.New(h.coord, nil, nil),
		Oracle:      freshness.New(h.cluster),
		Syncer:      h.syncer,
		Publisher:   h.cluster,
		Recovery:    h.recovery,
		Rejoiner:    h.rejoiner,
		Hooks:       h.hooks,
	})
	require.NoError(t, err)

	return tr
}

func (h *harness) requireBefore(t *testing.T, first, second string) {
	t.Helper()

	i, k := h.journal.Index(first), h.journal.Index(second)
	require.GreaterOrEqual(t, i, 0, "missing %q in %v", first, h.journal.Entries())
	require.GreaterOrEqual(t, k, 0, "missing %q in %v", second, h.journal.Entries())
	require.Less(t, i, k, "%q must precede %q: %v", first, second, h.journal.Entries())
}

func (h *harness) requireAbdicated(t *testing.T, tr *ShardTransition, state types.TransitionState) {
	t.Helper()

	require.Equal(t, types.StateRecovering, state)
	require.Equal(t, types.StateRecovering, tr.State())
	require.False(t, h.coord.Has(tokenPath), "own election token must be deleted")
	require.Equal(t, 1, h.journal.Count("rejoin cand-1"))
	h.requireBefore(t, "publish core_self down", "delete "+tokenPath)
	h.requireBefore(t, "delete "+tokenPath, "enter_recovery c1_shard1_self")
	h.requireBefore(t, "enter_recovery c1_shard1_self", "rejoin cand-1")

	status, ok := h.cluster.Status(shard1, "core_self")
	require.True(t, ok)
	require.Equal(t, types.StatusDown, status)
}

func TestShardTransition_BootstrapWithoutPeers(t *testing.T) {
	h := newHarness(t)
	tr := h.transition(t)

	state := tr.Run(context.Background(), tokenPath, false, h.core)

	require.Equal(t, types.StateLeading, state)
	require.True(t, h.coord.Has(pointerPath))
	require.Equal(t, []string{
		"cancel_recovery c1_shard1_self",
		"publish core_self active",
		"create " + pointerPath,
	}, h.journal.Entries())
}

func TestShardTransition_NonReplacementNeverSyncs(t *testing.T) {
	h := newHarness(t)
	h.addPeer("b", types.StatusActive, true)
	h.peers.Script(replicaMeta("b").CoreURL(), fake.PeerResponse{Fresh: false})
	tr := h.transition(t)

	state := tr.Run(context.Background(), tokenPath, false, h.core)

	require.Equal(t, types.StateLeading, state)
	require.Zero(t, h.journal.Count("compare "))
	require.Zero(t, h.journal.Count("list "))
	require.Zero(t, h.journal.Count("request_sync "))
}

func TestShardTransition_ReplacementWithNoPeersIsTriviallyFresh(t *testing.T) {
	h := newHarness(t)
	tr := h.transition(t)

	state := tr.Run(context.Background(), tokenPath, true, h.core)

	require.Equal(t, types.StateLeading, state)
	require.Zero(t, h.journal.Count("compare "))
	require.Zero(t, h.journal.Count("request_sync "))
}

func TestShardTransition_ReplacementFreshPropagates(t *testing.T) {
	h := newHarness(t)
	b := h.addPeer("b", types.StatusActive, true)
	c := h.addPeer("c", types.StatusActive, true)
	d := h.addPeer("d", types.StatusActive, true)
	h.peers.Script(c.CoreURL(), fake.PeerResponse{Fresh: true, SyncErr: errors.New("connection refused")})
	tr := h.transition(t)

	state := tr.Run(context.Background(), tokenPath, true, h.core)

	require.Equal(t, types.StateLeading, state)
	require.Equal(t, 3, h.journal.Count("compare "))
	require.Equal(t, 3, h.journal.Count("request_sync "))

	leaderURL := h.slot.Metadata.CoreURL()
	for _, p := range []types.CandidateMetadata{b, c, d} {
		h.requireBefore(t, "create "+pointerPath, "request_sync "+p.CoreURL()+" "+leaderURL)
	}
}

func TestShardTransition_StalePeersWithOtherActiveAbdicates(t *testing.T) {
	h := newHarness(t)
	b := h.addPeer("b", types.StatusActive, true)
	c := h.addPeer("c", types.StatusActive, true)
	h.peers.Script(b.CoreURL(), fake.PeerResponse{Fresh: false})
	h.peers.Script(c.CoreURL(), fake.PeerResponse{Err: types.ErrPeerUnreachable})
	tr := h.transition(t)

	state := tr.Run(context.Background(), tokenPath, true, h.core)

	h.requireAbdicated(t, tr, state)
	require.False(t, h.coord.Has(pointerPath))
	require.Zero(t, h.journal.Count("create "))
	require.Zero(t, h.journal.Count("cancel_recovery "))
	require.Zero(t, h.journal.Count("request_sync "))
}

func TestShardTransition_DeadPeerIsExcludedFromSync(t *testing.T) {
	h := newHarness(t)
	h.addPeer("b", types.StatusActive, false)
	tr := h.transition(t)

	state := tr.Run(context.Background(), tokenPath, true, h.core)

	require.Equal(t, types.StateLeading, state)
	require.Zero(t, h.journal.Count("compare "))
}

func TestShardTransition_LeaderlessFallback(t *testing.T) {
	h := newHarness(t)
	b := h.addPeer("b", types.StatusActive, true)
	// The only peer dies while we compare against it.
	h.peers.Script(b.CoreURL(), fake.PeerResponse{
		Err:    types.ErrPeerUnreachable,
		Before: func() { h.cluster.SetLive("b", false) },
	})
	tr := h.transition(t)

	state := tr.Run(context.Background(), tokenPath, true, h.core)

	require.Equal(t, types.StateLeading, state)
	require.True(t, h.coord.Has(pointerPath))
	require.Zero(t, h.journal.Count("rejoin "))
}

func TestShardTransition_NotFreshFallbackWhenOthersInactive(t *testing.T) {
	h := newHarness(t)
	b := h.addPeer("b", types.StatusActive, true)
	h.peers.Script(b.CoreURL(), fake.PeerResponse{
		Fresh:  false,
		Before: func() { h.addPeer("b", types.StatusRecovering, true) },
	})
	tr := h.transition(t)

	state := tr.Run(context.Background(), tokenPath, true, h.core)

	require.Equal(t, types.StateLeading, state)
}

func TestShardTransition_ReplacementRemovesPreviousPointer(t *testing.T) {
	h := newHarness(t)
	h.coord.Set(pointerPath, []byte(`{"node_name":"crashed"}`))
	tr := h.transition(t)

	state := tr.Run(context.Background(), tokenPath, true, h.core)

	require.Equal(t, types.StateLeading, state)
	h.requireBefore(t, "delete "+pointerPath, "create "+pointerPath)
	require.Equal(t, 1, h.journal.Count("create "+pointerPath))
}

func TestShardTransition_StalePointerOnBootstrap(t *testing.T) {
	h := newHarness(t)
	h.coord.Set(pointerPath, []byte(`{"node_name":"crashed"}`))
	tr := h.transition(t)

	state := tr.Run(context.Background(), tokenPath, false, h.core)

	require.Equal(t, types.StateLeading, state)
	require.Equal(t, []string{
		"cancel_recovery c1_shard1_self",
		"publish core_self active",
		"create " + pointerPath,
		"delete " + pointerPath,
		"create " + pointerPath,
	}, h.journal.Entries())
}

func TestShardTransition_ClaimConflictAbdicates(t *testing.T) {
	h := newHarness(t)
	h.coord.Set(pointerPath, []byte("other"))
	h.coord.AfterDelete = func(path string) {
		if path == pointerPath {
			h.coord.Set(pointerPath, []byte("contender"))
		}
	}
	tr := h.transition(t)

	state := tr.Run(context.Background(), tokenPath, false, h.core)

	h.requireAbdicated(t, tr, state)
	require.Equal(t, 2, h.journal.Count("create "+pointerPath))
	h.requireBefore(t, "publish core_self active", "publish core_self down")

	select {
	case err := <-h.errCh:
		require.ErrorIs(t, err, types.ErrClaimConflict)
	case <-time.After(time.Second):
		t.Fatal("error hook not called")
	}
}

func TestShardTransition_CoordinationUnavailable(t *testing.T) {
	h := newHarness(t)
	h.coord.CreateErr = func(path string) error {
		if path == pointerPath {
			return types.ErrCoordinationUnavailable
		}
		return nil
	}
	tr := h.transition(t)

	state := tr.Run(context.Background(), tokenPath, false, h.core)

	h.requireAbdicated(t, tr, state)

	select {
	case err := <-h.errCh:
		require.ErrorIs(t, err, types.ErrCoordinationUnavailable)
	case <-time.After(time.Second):
		t.Fatal("error hook not called")
	}
}

func TestShardTransition_FailurePathIsBestEffort(t *testing.T) {
	h := newHarness(t)
	b := h.addPeer("b", types.StatusActive, true)
	h.peers.Script(b.CoreURL(), fake.PeerResponse{Fresh: false})
	h.coord.DeleteErr = func(string) error { return types.ErrCoordinationUnavailable }
	h.recovery.EnterErr = errors.New("recovery busy")
	tr := h.transition(t)

	state := tr.Run(context.Background(), tokenPath, true, h.core)

	require.Equal(t, types.StateRecovering, state)
	require.Equal(t, 1, h.journal.Count("enter_recovery "))
	require.Equal(t, 1, h.journal.Count("rejoin cand-1"))
}

type panickingSyncer struct {
	Syncer
}

func (panickingSyncer) PropagateSync(context.Context, types.CandidateMetadata, []types.ReplicaView) {
	panic("propagation bug")
}

func TestShardTransition_PanicAfterClaimReleasesPointer(t *testing.T) {
	h := newHarness(t)
	h.addPeer("b", types.StatusActive, true)
	h.syncer = panickingSyncer{Syncer: h.syncer}
	tr := h.transition(t)

	state := tr.Run(context.Background(), tokenPath, true, h.core)

	h.requireAbdicated(t, tr, state)
	require.False(t, h.coord.Has(pointerPath), "claimed pointer must be released")
	h.requireBefore(t, "create "+pointerPath, "delete "+pointerPath)
}

func TestShardTransition_NilCore(t *testing.T) {
	h := newHarness(t)
	b := h.addPeer("b", types.StatusActive, true)
	h.peers.Script(b.CoreURL(), fake.PeerResponse{Fresh: false})
	tr := h.transition(t)

	state := tr.Run(context.Background(), tokenPath, true, nil)

	require.Equal(t, types.StateLeading, state)
	require.Zero(t, h.journal.Count("publish "))
	require.Zero(t, h.journal.Count("compare "))
	require.Zero(t, h.journal.Count("cancel_recovery "))
}

func TestShardTransition_ExactlyOneTerminalState(t *testing.T) {
	scenarios := map[string]func(h *harness) bool{
		"bootstrap": func(*harness) bool { return false },
		"stale peer": func(h *harness) bool {
			b := h.addPeer("b", types.StatusActive, true)
			h.peers.Script(b.CoreURL(), fake.PeerResponse{Fresh: false})
			return true
		},
		"unreachable coordination": func(h *harness) bool {
			h.coord.CreateErr = func(string) error { return types.ErrCoordinationUnavailable }
			return false
		},
	}

	for name, setup := range scenarios {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			replacement := setup(h)
			state := h.transition(t).Run(context.Background(), tokenPath, replacement, h.core)
			require.True(t, state.IsTerminal())
			require.Contains(t, []types.TransitionState{types.StateLeading, types.StateRecovering}, state)
		})
	}
}

func TestShardTransition_StateHook(t *testing.T) {
	h := newHarness(t)

	var mu sync.Mutex
	var seen []types.TransitionState
	done := make(chan struct{})
	h.hooks.OnStateChanged = func(_ context.Context, _ types.LeadershipSlot, _, to types.TransitionState) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, to)
		if to == types.StateLeading {
			close(done)
		}
		return nil
	}

	require.Equal(t, types.StateLeading, h.transition(t).Run(context.Background(), tokenPath, false, h.core))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("state hook not called")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, seen, types.StateLeading)
	require.NotContains(t, seen, types.StateRecovering)
}

func TestNewShardTransition_Validation(t *testing.T) {
	h := newHarness(t)

	clusterSlot, err := types.NewClusterSlot("cand-1", types.CandidateMetadata{})
	require.NoError(t, err)
	_, err = NewShardTransition(clusterSlot, Deps{})
	require.ErrorIs(t, err, types.ErrInvalidSlot)

	_, err = NewShardTransition(h.slot, Deps{Coordinator: h.coord})
	require.Error(t, err)
}
