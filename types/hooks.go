package types

import "context"

// Hooks defines callbacks for leadership lifecycle events.
//
// All hooks are optional. OnStateChanged and OnError run in background goroutines
// so they never block a transition. OnEnterRecovery and OnCancelRecovery back the
// default RecoveryTrigger and run synchronously: the transition orders its status
// publication around them.
//
// Example:
//
//	hooks := &leadsync.Hooks{
//	    OnStateChanged: func(ctx context.Context, slot leadsync.LeadershipSlot, from, to leadsync.TransitionState) error {
//	        log.Printf("%s: %s -> %s", slot.CandidateID, from, to)
//	        return nil
//	    },
//	}
type Hooks struct {
	// OnStateChanged is called on every transition state change.
	OnStateChanged func(ctx context.Context, slot LeadershipSlot, from, to TransitionState) error

	// OnEnterRecovery is called when a candidate abdicates and its core must catch up.
	OnEnterRecovery func(ctx context.Context, core Core) error

	// OnCancelRecovery is called before a candidate activates as leader.
	OnCancelRecovery func(ctx context.Context, core Core) error

	// OnError is called when a transition absorbs an unexpected error.
	OnError func(ctx context.Context, slot LeadershipSlot, err error) error
}
