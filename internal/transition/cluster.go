package transition

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/arloliu/leadsync/internal/hooks"
	"github.com/arloliu/leadsync/internal/logging"
	"github.com/arloliu/leadsync/internal/metrics"
	"github.com/arloliu/leadsync/types"
)

// OverseerOwner takes ownership of a started overseer.
type OverseerOwner interface {
	// AdoptOverseer stores ov, closing any overseer it held before.
	AdoptOverseer(ov types.Overseer)
}

// ClusterDeps are the collaborators of a ClusterTransition.
type ClusterDeps struct {
	Factory     types.OverseerFactory
	Owner       OverseerOwner
	Coordinator types.Coordinator
	Rejoiner    types.Rejoiner

	// Optional.
	Logger  types.Logger
	Metrics types.MetricsCollector
	Hooks   *types.Hooks
}

// ClusterTransition is the leader process of the cluster-wide overseer slot.
//
// Winning constructs and starts a fresh overseer and hands it to its owner.
// There is no sync phase and no leader pointer.
type ClusterTransition struct {
	slot    types.LeadershipSlot
	deps    ClusterDeps
	logger  types.Logger
	metrics types.MetricsCollector
	hooks   *types.Hooks

	state atomic.Int32
}

// Compile-time assertion that ClusterTransition implements LeaderProcess.
var _ types.LeaderProcess = (*ClusterTransition)(nil)

// NewClusterTransition creates the overseer leader process.
//
// Parameters:
//   - slot: Cluster slot from types.NewClusterSlot
//   - deps: Collaborators; Logger, Metrics and Hooks are optional
//
// Returns:
//   - *ClusterTransition: Process ready to be joined to the overseer election
//   - error: types.ErrInvalidSlot or a missing collaborator
func NewClusterTransition(slot types.LeadershipSlot, deps ClusterDeps) (*ClusterTransition, error) {
	if !slot.IsCluster() {
		return nil, errors.Join(types.ErrInvalidSlot, errors.New("cluster transition requires the cluster slot"))
	}
	if deps.Factory == nil || deps.Owner == nil || deps.Coordinator == nil || deps.Rejoiner == nil {
		return nil, errors.New("transition: factory, owner, coordinator and rejoiner are required")
	}

	m := deps.Metrics
	if m == nil {
		m = metrics.NewNop()
	}

	return &ClusterTransition{
		slot:    slot,
		deps:    deps,
		logger:  logging.With(deps.Logger, slot.LogFields()...),
		metrics: m,
		hooks:   hooks.Fill(deps.Hooks),
	}, nil
}

// Slot returns the cluster slot.
func (c *ClusterTransition) Slot() types.LeadershipSlot {
	return c.slot
}

// State returns the state of the latest invocation.
func (c *ClusterTransition) State() types.TransitionState {
	return types.TransitionState(c.state.Load())
}

// Run constructs, starts and hands over a new overseer.
//
// The replacement flag and core are ignored. If the overseer cannot be built or
// started, the token is dropped and the candidate rejoins the election.
func (c *ClusterTransition) Run(ctx context.Context, token string, _ bool, _ types.Core) types.TransitionState {
	c.state.Store(int32(types.StateCandidate))

	ov, err := c.startOverseer(ctx)
	if err != nil {
		c.logger.Error("failed to start overseer", "error", err)
		c.metrics.RecordTransitionError("internal")
		go func() {
			if hookErr := c.hooks.OnError(ctx, c.slot, err); hookErr != nil {
				c.logger.Warn("error hook failed", "error", hookErr)
			}
		}()

		if token != "" {
			if delErr := c.deps.Coordinator.Delete(ctx, token); delErr != nil {
				c.logger.Error("failed to delete election token", "token", token, "error", delErr)
			}
		}
		if rejoinErr := c.deps.Rejoiner.Rejoin(ctx, c.slot.CandidateID); rejoinErr != nil {
			c.logger.Error("failed to request re-enrollment", "error", rejoinErr)
		} else {
			c.metrics.RecordRejoin()
		}

		return c.finish(types.StateRecovering)
	}

	c.deps.Owner.AdoptOverseer(ov)
	c.logger.Info("became overseer", "token", token)

	return c.finish(types.StateLeading)
}

func (c *ClusterTransition) startOverseer(ctx context.Context) (types.Overseer, error) {
	ov, err := c.deps.Factory()
	if err != nil {
		return nil, fmt.Errorf("failed to construct overseer: %w", err)
	}

	if err := ov.Start(ctx); err != nil {
		_ = ov.Close()
		return nil, fmt.Errorf("failed to start overseer: %w", err)
	}

	return ov, nil
}

func (c *ClusterTransition) finish(to types.TransitionState) types.TransitionState {
	c.state.Store(int32(to)) //nolint:gosec // TransitionState is a small enum
	c.metrics.RecordStateTransition(types.StateCandidate, to, 0)

	go func() {
		if err := c.hooks.OnStateChanged(context.Background(), c.slot, types.StateCandidate, to); err != nil {
			c.logger.Warn("state change hook error", "error", err)
		}
	}()

	return to
}
