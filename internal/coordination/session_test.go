package coordination

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	leadtest "github.com/arloliu/leadsync/testing"
	"github.com/arloliu/leadsync/types"
)

func newTestSession(t *testing.T, ttl time.Duration) *Session {
	t.Helper()

	_, nc := leadtest.StartEmbeddedNATS(t)
	ephemeral := leadtest.CreateJetStreamKV(t, nc, "ephemeral", ttl)
	counters := leadtest.CreatePersistentKV(t, nc, "state")

	sess := New(ephemeral, counters, Config{TTL: ttl}, leadtest.NewTestLogger(t), nil)
	require.NoError(t, sess.Start(t.Context()))
	t.Cleanup(func() { _ = sess.Close(context.Background()) })

	return sess
}

func TestSession_CreateEphemeral(t *testing.T) {
	ctx := t.Context()
	sess := newTestSession(t, 5*time.Second)

	require.NoError(t, sess.CreateEphemeral(ctx, "leaders/c1/shard1", []byte(`{"node_name":"a"}`)))
	require.True(t, sess.Owns("leaders/c1/shard1"))

	err := sess.CreateEphemeral(ctx, "leaders/c1/shard1", []byte("b"))
	require.ErrorIs(t, err, types.ErrNodeExists)

	data, err := sess.Get(ctx, "leaders/c1/shard1")
	require.NoError(t, err)
	require.JSONEq(t, `{"node_name":"a"}`, string(data))
}

func TestSession_DeleteAndRecreate(t *testing.T) {
	ctx := t.Context()
	sess := newTestSession(t, 5*time.Second)

	require.NoError(t, sess.CreateEphemeral(ctx, "leaders/c1/shard1", []byte("a")))
	require.NoError(t, sess.Delete(ctx, "leaders/c1/shard1"))
	require.False(t, sess.Owns("leaders/c1/shard1"))

	exists, err := sess.Exists(ctx, "leaders/c1/shard1")
	require.NoError(t, err)
	require.False(t, exists)

	_, err = sess.Get(ctx, "leaders/c1/shard1")
	require.ErrorIs(t, err, types.ErrNoNode)

	// Deleting twice is fine.
	require.NoError(t, sess.Delete(ctx, "leaders/c1/shard1"))

	require.NoError(t, sess.CreateEphemeral(ctx, "leaders/c1/shard1", []byte("b")))
	exists, err = sess.Exists(ctx, "leaders/c1/shard1")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestSession_InvalidPath(t *testing.T) {
	sess := newTestSession(t, 5*time.Second)

	err := sess.CreateEphemeral(t.Context(), "leaders/c.1/shard1", nil)
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestSession_SequentialOrdering(t *testing.T) {
	ctx := t.Context()
	sess := newTestSession(t, 5*time.Second)

	first, err := sess.CreateEphemeralSequential(ctx, "leader_elect/c1/shard1/cand-b", nil)
	require.NoError(t, err)
	second, err := sess.CreateEphemeralSequential(ctx, "leader_elect/c1/shard1/cand-a", nil)
	require.NoError(t, err)

	n1, ok := SequenceOf(first)
	require.True(t, ok)
	n2, ok := SequenceOf(second)
	require.True(t, ok)
	require.Equal(t, int64(1), n1)
	require.Equal(t, int64(2), n2)

	children, err := sess.Children(ctx, "leader_elect/c1/shard1")
	require.NoError(t, err)
	require.Len(t, children, 2)
	require.ElementsMatch(t, []string{"cand-b-n_0000000001", "cand-a-n_0000000002"}, children)
}

func TestSession_SequentialConcurrent(t *testing.T) {
	ctx := t.Context()
	sess := newTestSession(t, 5*time.Second)

	const workers = 8
	var wg sync.WaitGroup
	paths := make([]string, workers)
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			paths[idx], errs[idx] = sess.CreateEphemeralSequential(ctx, "overseer_elect/cand", nil)
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for i := range workers {
		require.NoError(t, errs[i])
		n, ok := SequenceOf(paths[i])
		require.True(t, ok)
		require.False(t, seen[n], "duplicate sequence %d", n)
		seen[n] = true
	}
}

func TestSession_ChildrenEmpty(t *testing.T) {
	sess := newTestSession(t, 5*time.Second)

	children, err := sess.Children(t.Context(), "leader_elect/none/shard1")
	require.NoError(t, err)
	require.Empty(t, children)
}

func TestSession_KeepaliveOutlivesTTL(t *testing.T) {
	ctx := t.Context()
	sess := newTestSession(t, time.Second)

	require.NoError(t, sess.CreateEphemeral(ctx, "live_nodes/n1", []byte("x")))

	time.Sleep(2500 * time.Millisecond)

	exists, err := sess.Exists(ctx, "live_nodes/n1")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestSession_CloseDeletesOwned(t *testing.T) {
	ctx := t.Context()
	_, nc := leadtest.StartEmbeddedNATS(t)
	ephemeral := leadtest.CreateJetStreamKV(t, nc, "ephemeral", 5*time.Second)
	counters := leadtest.CreatePersistentKV(t, nc, "state")

	owner := New(ephemeral, counters, Config{TTL: 5 * time.Second}, nil, nil)
	observer := New(ephemeral, counters, Config{TTL: 5 * time.Second}, nil, nil)
	require.NoError(t, owner.Start(ctx))

	require.NoError(t, owner.CreateEphemeral(ctx, "live_nodes/n1", []byte("x")))
	require.NoError(t, owner.Close(ctx))
	require.NoError(t, owner.Close(ctx))

	exists, err := observer.Exists(ctx, "live_nodes/n1")
	require.NoError(t, err)
	require.False(t, exists)

	err = owner.CreateEphemeral(ctx, "live_nodes/n2", nil)
	require.ErrorIs(t, err, types.ErrSessionClosed)
}

func TestSession_DeleteKeepsEntryRecreatedByOtherSession(t *testing.T) {
	ctx := t.Context()
	_, nc := leadtest.StartEmbeddedNATS(t)
	ephemeral := leadtest.CreateJetStreamKV(t, nc, "ephemeral", 5*time.Second)
	counters := leadtest.CreatePersistentKV(t, nc, "state")

	stale := New(ephemeral, counters, Config{TTL: 5 * time.Second}, nil, nil)
	current := New(ephemeral, counters, Config{TTL: 5 * time.Second}, nil, nil)

	require.NoError(t, stale.CreateEphemeral(ctx, "leaders/c1/shard1", []byte("a")))
	require.NoError(t, current.Delete(ctx, "leaders/c1/shard1"))
	require.NoError(t, current.CreateEphemeral(ctx, "leaders/c1/shard1", []byte("b")))

	require.True(t, stale.Owns("leaders/c1/shard1"))
	require.NoError(t, stale.Delete(ctx, "leaders/c1/shard1"))
	require.False(t, stale.Owns("leaders/c1/shard1"))

	data, err := current.Get(ctx, "leaders/c1/shard1")
	require.NoError(t, err)
	require.Equal(t, "b", string(data))
}

func TestSession_DeleteAfterConcurrentRenewal(t *testing.T) {
	ctx := t.Context()
	_, nc := leadtest.StartEmbeddedNATS(t)
	ephemeral := leadtest.CreateJetStreamKV(t, nc, "ephemeral", 5*time.Second)
	counters := leadtest.CreatePersistentKV(t, nc, "state")

	sess := New(ephemeral, counters, Config{TTL: 5 * time.Second}, nil, nil)
	require.NoError(t, sess.CreateEphemeral(ctx, "leaders/c1/shard1", []byte("a")))

	// Same value, newer revision: what a renewal racing the delete leaves behind.
	_, err := ephemeral.Put(ctx, "leaders.c1.shard1", []byte("a"))
	require.NoError(t, err)

	require.NoError(t, sess.Delete(ctx, "leaders/c1/shard1"))

	exists, err := sess.Exists(ctx, "leaders/c1/shard1")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestSession_EntryExpiresWithoutKeepalive(t *testing.T) {
	ctx := t.Context()
	_, nc := leadtest.StartEmbeddedNATS(t)
	ephemeral := leadtest.CreateJetStreamKV(t, nc, "ephemeral", time.Second)
	counters := leadtest.CreatePersistentKV(t, nc, "state")

	// Never started: simulates a crashed process that stopped renewing.
	crashed := New(ephemeral, counters, Config{TTL: time.Second}, nil, nil)
	require.NoError(t, crashed.CreateEphemeral(ctx, "leaders/c1/shard1", []byte("x")))

	require.Eventually(t, func() bool {
		exists, err := crashed.Exists(ctx, "leaders/c1/shard1")
		return err == nil && !exists
	}, 5*time.Second, 100*time.Millisecond)
}

func TestSession_WatchChildren(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	sess := newTestSession(t, 5*time.Second)

	ch, err := sess.WatchChildren(ctx, "leader_elect/c1/shard1")
	require.NoError(t, err)

	_, err = sess.CreateEphemeralSequential(ctx, "leader_elect/c1/shard1/cand", nil)
	require.NoError(t, err)

	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("expected a change signal")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 3*time.Second, 20*time.Millisecond)
}

func TestSession_StartTwice(t *testing.T) {
	sess := newTestSession(t, 5*time.Second)
	require.ErrorIs(t, sess.Start(t.Context()), types.ErrAlreadyStarted)
}
