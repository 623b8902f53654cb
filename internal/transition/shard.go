// Package transition implements what a candidate does once it reaches the
// front of its election queue.
//
// ShardTransition gates shard leadership on data freshness: a candidate that
// replaces a previous leader first reconciles against its live ACTIVE peers
// and either claims the leader pointer or abdicates into recovery and rejoins
// the election. ClusterTransition runs the singleton overseer role.
package transition

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/arloliu/leadsync/internal/hooks"
	"github.com/arloliu/leadsync/internal/logging"
	"github.com/arloliu/leadsync/internal/metrics"
	"github.com/arloliu/leadsync/internal/natsutil"
	"github.com/arloliu/leadsync/types"
)

// Claimer claims and releases a slot's leader pointer.
type Claimer interface {
	Claim(ctx context.Context, slot types.LeadershipSlot) (types.ClaimResult, error)
	Release(ctx context.Context, slot types.LeadershipSlot) error
}

// ReplicaOracle answers which peers are live and ACTIVE.
type ReplicaOracle interface {
	ListActiveReplicas(ctx context.Context, shard types.ShardKey, exclude types.CandidateMetadata) ([]types.ReplicaView, error)
	AnyOtherReplicaActive(ctx context.Context, shard types.ShardKey, meta types.CandidateMetadata) (bool, error)
}

// Syncer reconciles a candidate with its peers.
type Syncer interface {
	SyncSelf(ctx context.Context, core types.Core, peers []types.ReplicaView) types.SyncOutcome
	PropagateSync(ctx context.Context, leader types.CandidateMetadata, peers []types.ReplicaView)
}

// Deps are the collaborators of a ShardTransition.
type Deps struct {
	Coordinator types.Coordinator
	Registrar   Claimer
	Oracle      ReplicaOracle
	Syncer      Syncer
	Publisher   types.StatusPublisher
	Recovery    types.RecoveryTrigger
	Rejoiner    types.Rejoiner

	// Optional.
	Logger  types.Logger
	Metrics types.MetricsCollector
	Hooks   *types.Hooks
}

func (d Deps) validate() error {
	if d.Coordinator == nil || d.Registrar == nil || d.Oracle == nil || d.Syncer == nil ||
		d.Publisher == nil || d.Recovery == nil || d.Rejoiner == nil {
		return errors.New("transition: all collaborators are required")
	}

	return nil
}

// ShardTransition is the leader process of one shard slot.
//
// A ShardTransition holds read-only references to its slot and collaborators
// and is safe to reuse across election attempts of the same candidate. Run is
// not reentrant; the election queue serializes calls per candidate.
type ShardTransition struct {
	slot    types.LeadershipSlot
	deps    Deps
	logger  types.Logger
	metrics types.MetricsCollector
	hooks   *types.Hooks

	state        atomic.Int32
	stateEntered atomic.Int64
}

// Compile-time assertion that ShardTransition implements LeaderProcess.
var _ types.LeaderProcess = (*ShardTransition)(nil)

// NewShardTransition creates the leader process for a shard slot.
//
// Parameters:
//   - slot: Shard slot (must not be the cluster slot)
//   - deps: Collaborators; Logger, Metrics and Hooks are optional
//
// Returns:
//   - *ShardTransition: Process in StateCandidate
//   - error: types.ErrInvalidSlot or a missing collaborator
func NewShardTransition(slot types.LeadershipSlot, deps Deps) (*ShardTransition, error) {
	if slot.IsCluster() || slot.LeaderPointerPath == "" {
		return nil, errors.Join(types.ErrInvalidSlot, errors.New("shard transition requires a shard slot"))
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}

	m := deps.Metrics
	if m == nil {
		m = metrics.NewNop()
	}

	t := &ShardTransition{
		slot:    slot,
		deps:    deps,
		logger:  logging.With(deps.Logger, slot.LogFields()...),
		metrics: m,
		hooks:   hooks.Fill(deps.Hooks),
	}
	t.stateEntered.Store(time.Now().UnixNano())

	return t, nil
}

// Slot returns the slot this process competes for.
func (t *ShardTransition) Slot() types.LeadershipSlot {
	return t.slot
}

// State returns the state of the latest (or current) invocation.
func (t *ShardTransition) State() types.TransitionState {
	return types.TransitionState(t.state.Load())
}

// Run executes one leadership transition.
//
// Parameters:
//   - ctx: Context for all collaborator calls; there is no global timeout
//   - token: Logical path of this attempt's election token
//   - isReplacement: false when the candidate was first in line on joining
//   - core: Local core handle, nil if the replica has no core loaded
//
// Returns:
//   - types.TransitionState: types.StateLeading or types.StateRecovering
func (t *ShardTransition) Run(ctx context.Context, token string, isReplacement bool, core types.Core) (result types.TransitionState) {
	t.enter(types.StateCandidate)
	t.logger.Info("leadership transition started", "token", token, "replacement", isReplacement, "has_core", core != nil)

	claimed := false

	defer func() {
		if r := recover(); r != nil {
			result = t.abort(ctx, token, core, claimed, fmt.Errorf("panic in leadership transition: %v", r))
		}
	}()

	state, err := t.run(ctx, token, isReplacement, core, &claimed)
	if err != nil {
		return t.abort(ctx, token, core, claimed, err)
	}

	return state
}

func (t *ShardTransition) run(ctx context.Context, token string, isReplacement bool, core types.Core, claimed *bool) (types.TransitionState, error) {
	shard := *t.slot.Shard
	meta := t.slot.Metadata

	if isReplacement {
		if err := t.removePreviousPointer(ctx); err != nil {
			return types.StateRecovering, err
		}
	}

	if isReplacement && core != nil {
		t.enter(types.StateSyncing)

		ok, err := t.syncWithPeers(ctx, shard, meta, core)
		if err != nil {
			return types.StateRecovering, err
		}
		if !ok {
			t.abdicate(ctx, token, core)
			return t.enter(types.StateRecovering), nil
		}
	}

	if core != nil {
		if err := t.deps.Recovery.CancelRecovery(ctx, core); err != nil {
			return types.StateRecovering, fmt.Errorf("failed to cancel recovery: %w", err)
		}
		if err := t.deps.Publisher.PublishStatus(ctx, meta, types.StatusActive); err != nil {
			return types.StateRecovering, fmt.Errorf("failed to publish active status: %w", err)
		}
	}

	res, err := t.deps.Registrar.Claim(ctx, t.slot)
	if err != nil {
		return types.StateRecovering, err
	}
	*claimed = true

	if res == types.ClaimedAfterStale {
		t.logger.Info("claimed leadership after removing stale pointer")
	}

	if isReplacement && core != nil {
		t.propagate(ctx, shard, meta)
	}

	t.logger.Info("became shard leader", "core_url", meta.CoreURL())

	return t.enter(types.StateLeading), nil
}

// removePreviousPointer deletes the leader pointer of the leader being replaced.
func (t *ShardTransition) removePreviousPointer(ctx context.Context) error {
	exists, err := t.deps.Coordinator.Exists(ctx, t.slot.LeaderPointerPath)
	if err != nil {
		return fmt.Errorf("failed to check previous leader pointer: %w", err)
	}
	if !exists {
		return nil
	}

	t.logger.Info("removing previous leader pointer", "path", t.slot.LeaderPointerPath)
	if err := t.deps.Coordinator.Delete(ctx, t.slot.LeaderPointerPath); err != nil {
		return fmt.Errorf("failed to delete previous leader pointer: %w", err)
	}

	return nil
}

// syncWithPeers reports whether the candidate may lead.
func (t *ShardTransition) syncWithPeers(ctx context.Context, shard types.ShardKey, meta types.CandidateMetadata, core types.Core) (bool, error) {
	peers, err := t.deps.Oracle.ListActiveReplicas(ctx, shard, meta)
	if err != nil {
		return false, err
	}

	outcome := t.deps.Syncer.SyncSelf(ctx, core, peers)
	if outcome == types.SyncFresh {
		return true, nil
	}

	t.logger.Info("candidate is not known to be fresh", "outcome", outcome.String(), "peers", len(peers))

	others, err := t.deps.Oracle.AnyOtherReplicaActive(ctx, shard, meta)
	if err != nil {
		return false, err
	}
	if others {
		return false, nil
	}

	t.metrics.RecordLeaderFallback()
	t.logger.Warn("no other replica is active, taking leadership without a successful sync", "outcome", outcome.String())

	return true, nil
}

// propagate asks the other active replicas to reconcile against the new leader.
func (t *ShardTransition) propagate(ctx context.Context, shard types.ShardKey, meta types.CandidateMetadata) {
	peers, err := t.deps.Oracle.ListActiveReplicas(ctx, shard, meta)
	if err != nil {
		t.logger.Warn("failed to list replicas for sync propagation", "error", err)
		return
	}

	t.deps.Syncer.PropagateSync(ctx, meta, peers)
}

// abdicate runs the failure path: DOWN, drop token, recover, rejoin.
//
// Each step is best-effort; errors are logged and never propagated.
func (t *ShardTransition) abdicate(ctx context.Context, token string, core types.Core) {
	t.logger.Warn("abdicating shard leadership", "token", token)

	if core != nil {
		if err := t.deps.Publisher.PublishStatus(ctx, t.slot.Metadata, types.StatusDown); err != nil {
			t.logger.Error("failed to publish down status", "error", err)
		}
	}

	if token != "" {
		if err := t.deps.Coordinator.Delete(ctx, token); err != nil {
			t.logger.Error("failed to delete election token", "token", token, "error", err)
		}
	}

	if core != nil {
		if err := t.deps.Recovery.EnterRecovery(ctx, core); err != nil {
			t.logger.Error("failed to enter recovery", "error", err)
		}
	}

	if err := t.deps.Rejoiner.Rejoin(ctx, t.slot.CandidateID); err != nil {
		t.logger.Error("failed to request re-enrollment", "error", err)
		return
	}
	t.metrics.RecordRejoin()
}

// abort handles an unexpected error and ends the transition in StateRecovering.
func (t *ShardTransition) abort(ctx context.Context, token string, core types.Core, claimed bool, err error) types.TransitionState {
	kind := errorKind(err)
	t.metrics.RecordTransitionError(kind)
	t.logger.Error("leadership transition failed", "error", err, "kind", kind)

	go func() {
		if hookErr := t.hooks.OnError(ctx, t.slot, err); hookErr != nil {
			t.logger.Warn("error hook failed", "error", hookErr)
		}
	}()

	if claimed {
		if relErr := t.deps.Registrar.Release(ctx, t.slot); relErr != nil {
			t.logger.Error("failed to release leader pointer", "error", relErr)
		}
	}

	t.abdicate(ctx, token, core)

	return t.enter(types.StateRecovering)
}

// enter records a state change and notifies the hook in the background.
func (t *ShardTransition) enter(to types.TransitionState) types.TransitionState {
	from := types.TransitionState(t.state.Swap(int32(to))) //nolint:gosec // TransitionState is a small enum
	now := time.Now()
	since := time.Unix(0, t.stateEntered.Swap(now.UnixNano()))

	if from == to && to == types.StateCandidate {
		return to
	}

	t.metrics.RecordStateTransition(from, to, now.Sub(since).Seconds())
	t.logger.Debug("transition state", "from", from.String(), "to", to.String())

	go func() {
		if err := t.hooks.OnStateChanged(context.Background(), t.slot, from, to); err != nil {
			t.logger.Warn("state change hook error", "from", from.String(), "to", to.String(), "error", err)
		}
	}()

	return to
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, types.ErrClaimConflict):
		return "claim_conflict"
	case natsutil.IsConnectivityError(err):
		return "coordination_unavailable"
	default:
		return "internal"
	}
}
