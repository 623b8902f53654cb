package overseer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/leadsync/internal/metrics"
)

type stubLister struct {
	mu    sync.Mutex
	nodes []string
	err   error
}

func (l *stubLister) set(nodes ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nodes = nodes
}

func (l *stubLister) LiveNodes(context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.nodes...), l.err
}

type gaugeRecorder struct {
	metrics.NopMetrics

	mu     sync.Mutex
	live   int
	active bool
}

func (g *gaugeRecorder) RecordLiveNodes(count int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.live = count
}

func (g *gaugeRecorder) RecordOverseerActive(active bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = active
}

func (g *gaugeRecorder) snapshot() (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.live, g.active
}

func TestOverseer_StartScansAndReports(t *testing.T) {
	lister := &stubLister{}
	lister.set("node-b", "node-a")
	rec := &gaugeRecorder{}

	o := New(lister, 20*time.Millisecond, nil, rec)
	require.NoError(t, o.Start(t.Context()))
	t.Cleanup(func() { _ = o.Close() })

	require.Equal(t, []string{"node-a", "node-b"}, o.LiveNodes())
	live, active := rec.snapshot()
	require.Equal(t, 2, live)
	require.True(t, active)

	lister.set("node-a")
	require.Eventually(t, func() bool {
		live, _ := rec.snapshot()
		return live == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"node-a"}, o.LiveNodes())
}

func TestOverseer_StartFailure(t *testing.T) {
	lister := &stubLister{err: errors.New("kv down")}
	o := New(lister, time.Second, nil, nil)

	require.Error(t, o.Start(t.Context()))
	require.NoError(t, o.Close())
}

func TestOverseer_CloseIsIdempotent(t *testing.T) {
	rec := &gaugeRecorder{}
	o := New(&stubLister{}, time.Second, nil, rec)
	require.NoError(t, o.Start(t.Context()))

	require.NoError(t, o.Close())
	require.NoError(t, o.Close())

	_, active := rec.snapshot()
	require.False(t, active)
	require.ErrorIs(t, o.Start(t.Context()), ErrAlreadyStarted)
}

func TestFactory(t *testing.T) {
	factory := Factory(&stubLister{}, time.Second, nil, nil)

	a, err := factory()
	require.NoError(t, err)
	b, err := factory()
	require.NoError(t, err)
	require.NotSame(t, a, b)
}
