package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/leadsync/types"
)

func TestNewNop(t *testing.T) {
	hooks := NewNop()

	require.NotNil(t, hooks.OnStateChanged)
	require.NotNil(t, hooks.OnEnterRecovery)
	require.NotNil(t, hooks.OnCancelRecovery)
	require.NotNil(t, hooks.OnError)
}

func TestNopHooks_ReturnNil(t *testing.T) {
	hooks := NewNop()
	ctx := context.Background()
	slot := types.LeadershipSlot{CandidateID: "c1"}

	require.NoError(t, hooks.OnStateChanged(ctx, slot, types.StateCandidate, types.StateSyncing))
	require.NoError(t, hooks.OnEnterRecovery(ctx, nil))
	require.NoError(t, hooks.OnCancelRecovery(ctx, nil))
	require.NoError(t, hooks.OnError(ctx, slot, errors.New("boom")))
}

func TestFill(t *testing.T) {
	t.Run("nil hooks", func(t *testing.T) {
		h := Fill(nil)
		require.NotNil(t, h.OnError)
	})

	t.Run("keeps user callbacks", func(t *testing.T) {
		called := false
		h := Fill(&types.Hooks{
			OnError: func(context.Context, types.LeadershipSlot, error) error {
				called = true
				return nil
			},
		})

		require.NotNil(t, h.OnStateChanged)
		require.NoError(t, h.OnError(context.Background(), types.LeadershipSlot{}, errors.New("x")))
		require.True(t, called)
	})
}
