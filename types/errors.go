package types

import (
	"errors"
	"strings"
)

// Sentinel errors for the leadsync library.
//
// Components wrap external errors with context using fmt.Errorf("...: %w", err)
// and callers match them with errors.Is.

// Node errors - Public API errors returned by the supervisor.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNATSConnectionRequired is returned when NATS connection is nil.
	ErrNATSConnectionRequired = errors.New("NATS connection is required")

	// ErrAlreadyStarted is returned when Start is called on a running node.
	ErrAlreadyStarted = errors.New("node already started")

	// ErrNotStarted is returned when operations require a started node.
	ErrNotStarted = errors.New("node not started")

	// ErrAlreadyRegistered is returned when a shard is registered twice on one node.
	ErrAlreadyRegistered = errors.New("shard already registered")

	// ErrNotRegistered is returned when a shard is not registered on this node.
	ErrNotRegistered = errors.New("shard not registered")

	// ErrInvalidSlot is returned when a leadership slot is malformed.
	ErrInvalidSlot = errors.New("invalid leadership slot")
)

// Coordination errors - Returned by the coordination session.
var (
	// ErrNodeExists is returned when an atomic create finds the path taken.
	ErrNodeExists = errors.New("node already exists")

	// ErrNoNode is returned when a path has no entry.
	ErrNoNode = errors.New("node does not exist")

	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("coordination session closed")

	// ErrCoordinationUnavailable wraps connectivity failures of the coordination service.
	ErrCoordinationUnavailable = errors.New("coordination service unavailable")
)

// Transition errors - Returned or reported by leadership components.
var (
	// ErrClaimConflict is returned when the leader pointer is still taken after
	// removing a stale value once. It indicates an active contender.
	ErrClaimConflict = errors.New("leader pointer claim conflict")

	// ErrPeerUnreachable marks a peer that produced no evidence during sync.
	ErrPeerUnreachable = errors.New("peer unreachable")

	// ErrUnknownCandidate is returned for requests about candidates not in the queue.
	ErrUnknownCandidate = errors.New("unknown election candidate")

	// ErrCoreNotFound is returned by the peer handler for unknown core names.
	ErrCoreNotFound = errors.New("core not found")
)

// Common errors - Shared errors used across multiple components.
var (
	// ErrNoKeysFound is returned when NATS KV returns no keys (expected condition).
	ErrNoKeysFound = errors.New("no keys found")
)

// IsNoKeysFoundError checks if an error indicates that no keys were found in NATS KV.
//
// NATS reports an empty listing as an error, either directly ("nats: no keys found")
// or wrapped by a caller.
//
// Parameters:
//   - err: The error to check
//
// Returns:
//   - bool: true if the error indicates no keys were found, false otherwise
func IsNoKeysFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoKeysFound) {
		return true
	}

	return strings.Contains(err.Error(), "no keys found")
}
