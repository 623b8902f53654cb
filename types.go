package leadsync

import "github.com/arloliu/leadsync/types"

// Re-export types from the internal types package.
//
// This file provides a stable public API for the library's core types and
// interfaces. It uses type aliases to re-export definitions from the `types`
// subpackage, which internal packages depend on without importing the root
// `leadsync` package.
type (
	TransitionState   = types.TransitionState
	SyncOutcome       = types.SyncOutcome
	ClaimResult       = types.ClaimResult
	ReplicaStatus     = types.ReplicaStatus
	ShardKey          = types.ShardKey
	CandidateMetadata = types.CandidateMetadata
	LeadershipSlot    = types.LeadershipSlot
	ReplicaState      = types.ReplicaState
	ReplicaView       = types.ReplicaView
	Update            = types.Update
)

// Re-export interfaces from the internal types package for convenience.
type (
	Core             = types.Core
	PeerClient       = types.PeerClient
	RecoveryTrigger  = types.RecoveryTrigger
	Overseer         = types.Overseer
	OverseerFactory  = types.OverseerFactory
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)

// Re-export TransitionState constants from the internal types package.
const (
	StateCandidate  = types.StateCandidate
	StateSyncing    = types.StateSyncing
	StateLeading    = types.StateLeading
	StateRecovering = types.StateRecovering
)

// Re-export ReplicaStatus constants from the internal types package.
const (
	StatusDown       = types.StatusDown
	StatusRecovering = types.StatusRecovering
	StatusActive     = types.StatusActive
)
