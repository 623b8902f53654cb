// Package hooks provides default implementations of types.Hooks.
package hooks

import (
	"context"

	"github.com/arloliu/leadsync/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(context.Context, types.LeadershipSlot, types.TransitionState, types.TransitionState) error = (*NopHooks)(nil).OnStateChanged
	_ func(context.Context, types.Core) error                                                          = (*NopHooks)(nil).OnEnterRecovery
	_ func(context.Context, types.Core) error                                                          = (*NopHooks)(nil).OnCancelRecovery
	_ func(context.Context, types.LeadershipSlot, error) error                                         = (*NopHooks)(nil).OnError
)

// NewNop creates a new no-op hooks implementation.
//
// Returns:
//   - *types.Hooks: Hooks with no-op implementations
func NewNop() *types.Hooks {
	h := &NopHooks{}
	return &types.Hooks{
		OnStateChanged:   h.OnStateChanged,
		OnEnterRecovery:  h.OnEnterRecovery,
		OnCancelRecovery: h.OnCancelRecovery,
		OnError:          h.OnError,
	}
}

// Fill returns a copy of h where every nil callback is replaced by a no-op.
//
// Parameters:
//   - h: User supplied hooks, may be nil
//
// Returns:
//   - *types.Hooks: Hooks safe to call without nil checks
func Fill(h *types.Hooks) *types.Hooks {
	out := NewNop()
	if h == nil {
		return out
	}
	if h.OnStateChanged != nil {
		out.OnStateChanged = h.OnStateChanged
	}
	if h.OnEnterRecovery != nil {
		out.OnEnterRecovery = h.OnEnterRecovery
	}
	if h.OnCancelRecovery != nil {
		out.OnCancelRecovery = h.OnCancelRecovery
	}
	if h.OnError != nil {
		out.OnError = h.OnError
	}

	return out
}

// OnStateChanged is a no-op implementation.
func (h *NopHooks) OnStateChanged(_ context.Context, _ types.LeadershipSlot, _, _ types.TransitionState) error {
	return nil
}

// OnEnterRecovery is a no-op implementation.
func (h *NopHooks) OnEnterRecovery(_ context.Context, _ types.Core) error {
	return nil
}

// OnCancelRecovery is a no-op implementation.
func (h *NopHooks) OnCancelRecovery(_ context.Context, _ types.Core) error {
	return nil
}

// OnError is a no-op implementation.
func (h *NopHooks) OnError(_ context.Context, _ types.LeadershipSlot, _ error) error {
	return nil
}
