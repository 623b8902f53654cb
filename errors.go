package leadsync

import "github.com/arloliu/leadsync/types"

// Sentinel errors returned by the Node and its components.
//
// They are re-exported from the types package so callers can match them with
// errors.Is without importing types.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrNATSConnectionRequired is returned when NATS connection is nil.
	ErrNATSConnectionRequired = types.ErrNATSConnectionRequired

	// ErrAlreadyStarted is returned when Start is called on a running node.
	ErrAlreadyStarted = types.ErrAlreadyStarted

	// ErrNotStarted is returned when an operation requires a started node.
	ErrNotStarted = types.ErrNotStarted

	// ErrAlreadyRegistered is returned when a shard is registered twice on one node.
	ErrAlreadyRegistered = types.ErrAlreadyRegistered

	// ErrNotRegistered is returned for shards this node has not registered.
	ErrNotRegistered = types.ErrNotRegistered

	// ErrInvalidSlot is returned for malformed collection or shard names.
	ErrInvalidSlot = types.ErrInvalidSlot

	// ErrNoNode is returned by Leader when a shard has no leader.
	ErrNoNode = types.ErrNoNode

	// ErrClaimConflict is reported through Hooks.OnError when a leader pointer
	// is still taken after removing a stale value.
	ErrClaimConflict = types.ErrClaimConflict

	// ErrCoreNotFound is returned for replicas registered without a local core.
	ErrCoreNotFound = types.ErrCoreNotFound

	// ErrCoordinationUnavailable wraps connectivity failures of NATS.
	ErrCoordinationUnavailable = types.ErrCoordinationUnavailable
)
