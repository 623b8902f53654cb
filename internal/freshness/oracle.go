// Package freshness answers which peer replicas of a shard can serve as a
// source of truth right now.
package freshness

import (
	"context"
	"fmt"

	"github.com/arloliu/leadsync/types"
)

// Oracle filters the cluster state for live, ACTIVE replicas.
//
// Every query reads the cluster state anew; nothing is cached.
type Oracle struct {
	reader types.ClusterStateReader
}

// New creates an oracle over reader.
func New(reader types.ClusterStateReader) *Oracle {
	return &Oracle{reader: reader}
}

// ListActiveReplicas returns the live ACTIVE replicas of shard, excluding any
// replica whose core URL equals exclude's.
//
// Parameters:
//   - ctx: Context for the cluster state read
//   - shard: Shard to inspect
//   - exclude: Candidate to leave out (compared by core URL)
//
// Returns:
//   - []types.ReplicaView: Matching replicas, possibly empty
//   - error: Cluster state read failure
func (o *Oracle) ListActiveReplicas(ctx context.Context, shard types.ShardKey, exclude types.CandidateMetadata) ([]types.ReplicaView, error) {
	views, err := o.reader.ListReplicas(ctx, shard)
	if err != nil {
		return nil, fmt.Errorf("failed to list replicas of %s: %w", shard, err)
	}

	self := exclude.CoreURL()
	out := make([]types.ReplicaView, 0, len(views))
	for _, v := range views {
		if !v.IsLiveActive() || v.CoreURL() == self {
			continue
		}
		out = append(out, v)
	}

	return out, nil
}

// AnyOtherReplicaActive reports whether another replica of shard is live and ACTIVE.
//
// There is no quorum threshold: a single other active replica is enough.
func (o *Oracle) AnyOtherReplicaActive(ctx context.Context, shard types.ShardKey, meta types.CandidateMetadata) (bool, error) {
	active, err := o.ListActiveReplicas(ctx, shard, meta)
	if err != nil {
		return false, err
	}

	return len(active) > 0, nil
}
