package fake

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arloliu/leadsync/types"
)

// Cluster is an in-memory cluster state implementing StatusPublisher and
// ClusterStateReader.
type Cluster struct {
	Journal *Journal

	// PublishErr, when set, is returned by PublishStatus.
	PublishErr error

	// ListErr, when set, is returned by ListReplicas.
	ListErr error

	mu       sync.Mutex
	replicas map[types.ShardKey]map[string]types.ReplicaState
	live     map[string]bool
}

var (
	_ types.StatusPublisher    = (*Cluster)(nil)
	_ types.ClusterStateReader = (*Cluster)(nil)
)

// NewCluster creates an empty cluster writing to j.
func NewCluster(j *Journal) *Cluster {
	return &Cluster{
		Journal:  j,
		replicas: make(map[types.ShardKey]map[string]types.ReplicaState),
		live:     make(map[string]bool),
	}
}

// AddReplica stores a replica record directly and sets its node's liveness.
func (c *Cluster) AddReplica(meta types.CandidateMetadata, status types.ReplicaStatus, live bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store(meta, status)
	c.live[meta.NodeName] = live
}

// SetLive sets a node's liveness.
func (c *Cluster) SetLive(nodeName string, live bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live[nodeName] = live
}

// Status returns the last published status of a core node.
func (c *Cluster) Status(shard types.ShardKey, coreNodeName string) (types.ReplicaStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.replicas[shard][coreNodeName]

	return rec.Status, ok
}

func (c *Cluster) store(meta types.CandidateMetadata, status types.ReplicaStatus) {
	shard := meta.ShardKey()
	if c.replicas[shard] == nil {
		c.replicas[shard] = make(map[string]types.ReplicaState)
	}
	c.replicas[shard][meta.CoreNodeName] = types.ReplicaState{
		NodeName:     meta.NodeName,
		BaseURL:      meta.BaseURL,
		CoreName:     meta.CoreName,
		CoreNodeName: meta.CoreNodeName,
		Collection:   meta.Collection,
		Shard:        meta.Shard,
		Status:       status,
	}
}

// PublishStatus implements types.StatusPublisher.
func (c *Cluster) PublishStatus(_ context.Context, meta types.CandidateMetadata, status types.ReplicaStatus) error {
	c.Journal.Record("publish %s %s", meta.CoreNodeName, status)
	if c.PublishErr != nil {
		return c.PublishErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(meta, status)

	return nil
}

// ListReplicas implements types.ClusterStateReader.
func (c *Cluster) ListReplicas(_ context.Context, shard types.ShardKey) ([]types.ReplicaView, error) {
	c.Journal.Record("list %s", shard)
	if c.ListErr != nil {
		return nil, c.ListErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	views := make([]types.ReplicaView, 0, len(c.replicas[shard]))
	for _, rec := range c.replicas[shard] {
		views = append(views, types.ReplicaView{ReplicaState: rec, Live: c.live[rec.NodeName]})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].CoreNodeName < views[j].CoreNodeName })

	return views, nil
}

// IsLive implements types.ClusterStateReader.
func (c *Cluster) IsLive(_ context.Context, nodeName string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.live[nodeName], nil
}

// PeerResponse scripts how a peer answers.
type PeerResponse struct {
	// Fresh is the CompareVersions answer when Err is nil.
	Fresh bool

	// Err is returned by CompareVersions.
	Err error

	// SyncErr is returned by RequestSync.
	SyncErr error

	// Delay is slept before answering, honoring context cancellation.
	Delay time.Duration

	// Before runs when the call arrives, e.g. to change cluster state mid-sync.
	Before func()
}

// PeerClient is a scripted types.PeerClient. Unknown peers answer fresh.
type PeerClient struct {
	Journal *Journal

	mu        sync.Mutex
	responses map[string]PeerResponse
}

var _ types.PeerClient = (*PeerClient)(nil)

// NewPeerClient creates a peer client writing to j.
func NewPeerClient(j *Journal) *PeerClient {
	return &PeerClient{Journal: j, responses: make(map[string]PeerResponse)}
}

// Script sets the response of peerURL.
func (p *PeerClient) Script(peerURL string, resp PeerResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses[peerURL] = resp
}

func (p *PeerClient) response(peerURL string) PeerResponse {
	p.mu.Lock()
	defer p.mu.Unlock()

	resp, ok := p.responses[peerURL]
	if !ok {
		return PeerResponse{Fresh: true}
	}

	return resp
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// CompareVersions implements types.PeerClient.
func (p *PeerClient) CompareVersions(ctx context.Context, _ types.Core, peerURL string, _ int) (bool, error) {
	p.Journal.Record("compare %s", peerURL)
	resp := p.response(peerURL)
	if resp.Before != nil {
		resp.Before()
	}
	if err := wait(ctx, resp.Delay); err != nil {
		return false, err
	}

	return resp.Fresh, resp.Err
}

// RequestSync implements types.PeerClient.
func (p *PeerClient) RequestSync(ctx context.Context, peerURL, leaderURL string) error {
	p.Journal.Record("request_sync %s %s", peerURL, leaderURL)
	resp := p.response(peerURL)
	if err := wait(ctx, resp.Delay); err != nil {
		return err
	}

	return resp.SyncErr
}

// Recovery records recovery requests.
type Recovery struct {
	Journal *Journal

	// EnterErr and CancelErr are returned by the matching calls.
	EnterErr  error
	CancelErr error
}

var _ types.RecoveryTrigger = (*Recovery)(nil)

func coreName(core types.Core) string {
	if core == nil {
		return "<nil>"
	}

	return core.Name()
}

// EnterRecovery implements types.RecoveryTrigger.
func (r *Recovery) EnterRecovery(_ context.Context, core types.Core) error {
	r.Journal.Record("enter_recovery %s", coreName(core))
	return r.EnterErr
}

// CancelRecovery implements types.RecoveryTrigger.
func (r *Recovery) CancelRecovery(_ context.Context, core types.Core) error {
	r.Journal.Record("cancel_recovery %s", coreName(core))
	return r.CancelErr
}

// Rejoiner records re-enrollment requests.
type Rejoiner struct {
	Journal *Journal
	Err     error
}

var _ types.Rejoiner = (*Rejoiner)(nil)

// Rejoin implements types.Rejoiner.
func (r *Rejoiner) Rejoin(_ context.Context, candidateID string) error {
	r.Journal.Record("rejoin %s", candidateID)
	return r.Err
}
