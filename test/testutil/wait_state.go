package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/arloliu/leadsync"
)

// StateReader is the subset of Node methods needed for waiting.
type StateReader interface {
	State(collection, shard string) (leadsync.TransitionState, error)
}

// WaitShardState polls until a replica's transition reaches the expected state.
//
// Parameters:
//   - ctx: Context for cancellation
//   - node: Node hosting the replica
//   - collection, shard: Replica's shard
//   - expected: Target state
//   - timeout: Maximum time to wait
//
// Returns:
//   - error: nil once the state is reached, a timeout or context error otherwise
//
// Example:
//
//	err := testutil.WaitShardState(ctx, n.Node, "c1", "shard1", leadsync.StateLeading, 5*time.Second)
func WaitShardState(ctx context.Context, node StateReader, collection, shard string, expected leadsync.TransitionState, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	var last leadsync.TransitionState
	for {
		state, err := node.State(collection, shard)
		if err == nil && state == expected {
			return nil
		}
		last = state

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s/%s to reach %s (last %s): %w", collection, shard, expected, last, ctx.Err())
		case <-ticker.C:
		}
	}
}
