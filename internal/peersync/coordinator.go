package peersync

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/leadsync/internal/logging"
	"github.com/arloliu/leadsync/internal/metrics"
	"github.com/arloliu/leadsync/types"
)

// Defaults for Coordinator.
const (
	DefaultRecentUpdates = 1000
	DefaultPeerTimeout   = time.Second
)

// evidence is what a single peer told us about our freshness.
type evidence int

const (
	evidenceNone evidence = iota
	evidenceFresh
	evidenceStale
)

// Config tunes a Coordinator.
type Config struct {
	// RecentUpdates is the number of newest versions compared per peer.
	RecentUpdates int

	// PeerTimeout bounds each peer call independently.
	PeerTimeout time.Duration
}

// Coordinator fans leadership-time reconciliation out to peers.
type Coordinator struct {
	client  types.PeerClient
	cfg     Config
	logger  types.Logger
	metrics types.MetricsCollector
}

// New creates a sync coordinator.
//
// Parameters:
//   - client: Peer transport
//   - cfg: Tuning (zero values take DefaultRecentUpdates and DefaultPeerTimeout)
//   - logger: Logger (nil for no-op)
//   - m: Metrics collector (nil for no-op)
//
// Returns:
//   - *Coordinator: Coordinator ready for use
func New(client types.PeerClient, cfg Config, logger types.Logger, m types.MetricsCollector) *Coordinator {
	if cfg.RecentUpdates <= 0 {
		cfg.RecentUpdates = DefaultRecentUpdates
	}
	if cfg.PeerTimeout <= 0 {
		cfg.PeerTimeout = DefaultPeerTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}

	return &Coordinator{client: client, cfg: cfg, logger: logger, metrics: m}
}

// SyncSelf decides whether core is fresh relative to peers.
//
// With no peers the result is types.SyncFresh and no call is made. Otherwise
// each peer is compared concurrently under its own timeout:
//
//   - any stale peer makes the result types.SyncNotFresh
//   - no peer producing evidence makes it types.SyncInconclusive
//   - otherwise the result is types.SyncFresh
//
// Parameters:
//   - ctx: Parent context; cancelling it aborts outstanding peer calls
//   - core: Local core of the candidate
//   - peers: Live ACTIVE peers, excluding the candidate
//
// Returns:
//   - types.SyncOutcome: Aggregated outcome; peer failures are never errors
func (c *Coordinator) SyncSelf(ctx context.Context, core types.Core, peers []types.ReplicaView) types.SyncOutcome {
	if len(peers) == 0 {
		c.metrics.RecordSyncOutcome(types.SyncFresh)
		return types.SyncFresh
	}

	results := make([]evidence, len(peers))

	var g errgroup.Group
	for i, peer := range peers {
		g.Go(func() error {
			results[i] = c.compare(ctx, core, peer.CoreURL())
			return nil
		})
	}
	_ = g.Wait()

	outcome := aggregate(results)
	c.metrics.RecordSyncOutcome(outcome)
	c.logger.Info("sync with peers finished", "peers", len(peers), "outcome", outcome.String())

	return outcome
}

func (c *Coordinator) compare(ctx context.Context, core types.Core, peerURL string) evidence {
	peerCtx, cancel := context.WithTimeout(ctx, c.cfg.PeerTimeout)
	defer cancel()

	start := time.Now()
	fresh, err := c.client.CompareVersions(peerCtx, core, peerURL, c.cfg.RecentUpdates)
	c.metrics.RecordPeerRequest("compare", err == nil, time.Since(start).Seconds())

	switch {
	case err != nil:
		c.logger.Warn("peer produced no sync evidence", "peer", peerURL, "error", err)
		return evidenceNone
	case fresh:
		return evidenceFresh
	default:
		c.logger.Warn("peer holds updates we could not obtain", "peer", peerURL)
		return evidenceStale
	}
}

func aggregate(results []evidence) types.SyncOutcome {
	sawEvidence := false
	for _, e := range results {
		switch e {
		case evidenceStale:
			return types.SyncNotFresh
		case evidenceFresh:
			sawEvidence = true
		case evidenceNone:
		}
	}

	if !sawEvidence {
		return types.SyncInconclusive
	}

	return types.SyncFresh
}

// PropagateSync asks every peer to reconcile against leader.
//
// Requests run concurrently and independently under their own timeouts; a
// failing peer is logged and counted and never stops the others. The call
// returns after every request finished or timed out.
func (c *Coordinator) PropagateSync(ctx context.Context, leader types.CandidateMetadata, peers []types.ReplicaView) {
	if len(peers) == 0 {
		return
	}

	leaderURL := leader.CoreURL()

	var g errgroup.Group
	for _, peer := range peers {
		g.Go(func() error {
			peerURL := peer.CoreURL()
			peerCtx, cancel := context.WithTimeout(ctx, c.cfg.PeerTimeout)
			defer cancel()

			start := time.Now()
			err := c.client.RequestSync(peerCtx, peerURL, leaderURL)
			c.metrics.RecordPeerRequest("request_sync", err == nil, time.Since(start).Seconds())
			if err != nil {
				c.logger.Warn("failed to request sync from peer", "peer", peerURL, "leader", leaderURL, "error", err)
			}

			return nil
		})
	}
	_ = g.Wait()
}
