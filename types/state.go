package types

// TransitionState represents the position of a candidate inside one leadership transition.
//
// A transition progresses along:
//
//	StateCandidate → [StateSyncing] → StateLeading | StateRecovering
//
// StateSyncing is entered only when the candidate replaces a previous leader
// and has a local core to verify.
//
// StateLeading and StateRecovering are terminal for a single invocation. A recovering
// candidate re-enters StateCandidate only through a fresh election attempt.
type TransitionState int

const (
	// StateCandidate indicates the candidate was notified it is front-of-queue.
	StateCandidate TransitionState = iota

	// StateSyncing indicates the candidate is verifying its freshness against peers.
	StateSyncing

	// StateLeading indicates the candidate claimed the leader pointer.
	StateLeading

	// StateRecovering indicates the candidate abdicated and asked to recover and rejoin.
	StateRecovering
)

// String returns the string representation of the state.
func (s TransitionState) String() string {
	switch s {
	case StateCandidate:
		return "Candidate"
	case StateSyncing:
		return "Syncing"
	case StateLeading:
		return "Leading"
	case StateRecovering:
		return "Recovering"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether the state ends a transition.
func (s TransitionState) IsTerminal() bool {
	return s == StateLeading || s == StateRecovering
}

// SyncOutcome is the result of comparing a candidate against its peers.
type SyncOutcome int

const (
	// SyncFresh means no peer holds updates the candidate lacks (or they were pulled).
	SyncFresh SyncOutcome = iota

	// SyncNotFresh means at least one peer holds updates the candidate could not obtain.
	SyncNotFresh

	// SyncInconclusive means no peer produced any evidence (all unreachable or timed out).
	SyncInconclusive
)

// String returns the string representation of the outcome.
func (o SyncOutcome) String() string {
	switch o {
	case SyncFresh:
		return "fresh"
	case SyncNotFresh:
		return "not_fresh"
	case SyncInconclusive:
		return "inconclusive"
	default:
		return "unknown"
	}
}

// ClaimResult describes how a leader pointer was obtained.
type ClaimResult int

const (
	// Claimed means the pointer was created on the first attempt.
	Claimed ClaimResult = iota

	// ClaimedAfterStale means a residual pointer was removed before the claim succeeded.
	ClaimedAfterStale
)

// String returns the string representation of the claim result.
func (r ClaimResult) String() string {
	switch r {
	case Claimed:
		return "claimed"
	case ClaimedAfterStale:
		return "claimed_after_stale"
	default:
		return "unknown"
	}
}
