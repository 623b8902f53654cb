// Package registrar claims and releases leader pointers.
//
// A leader pointer is an ephemeral entry holding the JSON metadata of the
// elected leader. The atomic create of that entry is the only step that makes
// a candidate the leader; no in-process lock guards it.
package registrar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/arloliu/leadsync/internal/logging"
	"github.com/arloliu/leadsync/internal/metrics"
	"github.com/arloliu/leadsync/types"
)

// Claim result labels reported to metrics.
const (
	resultClaimed    = "claimed"
	resultAfterStale = "claimed_after_stale"
	resultConflict   = "conflict"
)

// Registrar writes leader pointers through a Coordinator.
type Registrar struct {
	coord   types.Coordinator
	logger  types.Logger
	metrics types.MetricsCollector
}

// New creates a registrar.
//
// Parameters:
//   - coord: Coordination session used for pointer entries
//   - logger: Logger (nil for no-op)
//   - m: Metrics collector (nil for no-op)
//
// Returns:
//   - *Registrar: Registrar ready for use
func New(coord types.Coordinator, logger types.Logger, m types.MetricsCollector) *Registrar {
	if m == nil {
		m = metrics.NewNop()
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Registrar{coord: coord, logger: logger, metrics: m}
}

// Claim atomically creates the slot's leader pointer.
//
// If the pointer already exists it is treated as stale (left by a crashed
// leader whose session has not expired yet): it is deleted unconditionally and
// creation is retried exactly once.
//
// Parameters:
//   - ctx: Context for the coordination calls
//   - slot: Shard slot whose pointer is claimed
//
// Returns:
//   - types.ClaimResult: types.Claimed or types.ClaimedAfterStale
//   - error: types.ErrClaimConflict if the retried create also found the pointer,
//     types.ErrInvalidSlot for cluster slots, or a coordination error
func (r *Registrar) Claim(ctx context.Context, slot types.LeadershipSlot) (types.ClaimResult, error) {
	if slot.LeaderPointerPath == "" {
		return types.Claimed, errors.Join(types.ErrInvalidSlot, errors.New("slot has no leader pointer path"))
	}

	data, err := json.Marshal(slot.Metadata)
	if err != nil {
		return types.Claimed, fmt.Errorf("failed to marshal leader metadata: %w", err)
	}

	err = r.coord.CreateEphemeral(ctx, slot.LeaderPointerPath, data)
	if err == nil {
		r.metrics.RecordClaim(resultClaimed)
		return types.Claimed, nil
	}
	if !errors.Is(err, types.ErrNodeExists) {
		return types.Claimed, fmt.Errorf("failed to create leader pointer: %w", err)
	}

	fields := append(slot.LogFields(), "path", slot.LeaderPointerPath)
	r.logger.Warn("leader pointer exists, removing stale claim", fields...)

	if err := r.coord.Delete(ctx, slot.LeaderPointerPath); err != nil {
		return types.Claimed, fmt.Errorf("failed to delete stale leader pointer: %w", err)
	}

	err = r.coord.CreateEphemeral(ctx, slot.LeaderPointerPath, data)
	if errors.Is(err, types.ErrNodeExists) {
		r.metrics.RecordClaim(resultConflict)
		return types.Claimed, fmt.Errorf("%w: %s", types.ErrClaimConflict, slot.LeaderPointerPath)
	}
	if err != nil {
		return types.Claimed, fmt.Errorf("failed to create leader pointer after stale removal: %w", err)
	}

	r.metrics.RecordClaim(resultAfterStale)

	return types.ClaimedAfterStale, nil
}

// Release deletes the slot's leader pointer if present. Releasing twice is a no-op.
func (r *Registrar) Release(ctx context.Context, slot types.LeadershipSlot) error {
	if slot.LeaderPointerPath == "" {
		return nil
	}

	exists, err := r.coord.Exists(ctx, slot.LeaderPointerPath)
	if err != nil {
		return fmt.Errorf("failed to check leader pointer: %w", err)
	}
	if !exists {
		return nil
	}

	if err := r.coord.Delete(ctx, slot.LeaderPointerPath); err != nil {
		return fmt.Errorf("failed to delete leader pointer: %w", err)
	}

	return nil
}

// Leader reads the current leader pointer of shard.
//
// Returns:
//   - types.CandidateMetadata: Metadata written by the current leader
//   - error: types.ErrNoNode when the shard has no leader
func (r *Registrar) Leader(ctx context.Context, shard types.ShardKey) (types.CandidateMetadata, error) {
	data, err := r.coord.Get(ctx, types.ShardLeaderPath(shard))
	if err != nil {
		return types.CandidateMetadata{}, err
	}

	var meta types.CandidateMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return types.CandidateMetadata{}, fmt.Errorf("malformed leader pointer for %s: %w", shard, err)
	}

	return meta, nil
}
