package types

import (
	"context"
	"encoding/json"
)

// Update is one versioned entry of a core's update log.
type Update struct {
	Version int64           `json:"version"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Core is the local replica handle a candidate elects with.
//
// A nil Core means the candidate has no local data to reconcile: the transition
// then skips both the sync phase and status publication.
type Core interface {
	// Name returns the core name, the last segment of the core URL.
	Name() string

	// RecentVersions returns up to n of the most recent update versions, newest first.
	RecentVersions(n int) []int64

	// Updates returns the updates for the given versions that this core holds.
	Updates(versions []int64) []Update

	// Apply stores updates received from a peer. Already known versions are ignored.
	Apply(updates []Update) error
}

// Coordinator is the subset of the coordination service used by a transition.
//
// Paths are logical, "/"-separated. Implementations must provide create-if-absent
// semantics for CreateEphemeral and linearizable reads.
type Coordinator interface {
	// CreateEphemeral atomically creates an entry owned by the current session.
	// Returns ErrNodeExists when the path is already taken.
	CreateEphemeral(ctx context.Context, path string, data []byte) error

	// Delete removes the entry if present. Deleting a missing entry is not an error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether an entry is present.
	Exists(ctx context.Context, path string) (bool, error)

	// Get returns the entry data, or ErrNoNode.
	Get(ctx context.Context, path string) ([]byte, error)
}

// PeerClient talks to peer replicas for version comparison and sync requests.
type PeerClient interface {
	// CompareVersions reports whether core is at least as fresh as the peer after
	// pulling anything it lacked. Errors mean the peer gave no evidence.
	CompareVersions(ctx context.Context, core Core, peerURL string, recentUpdates int) (bool, error)

	// RequestSync asks the peer to reconcile against leaderURL.
	RequestSync(ctx context.Context, peerURL, leaderURL string) error
}

// StatusPublisher publishes a replica's application status to the cluster.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, meta CandidateMetadata, status ReplicaStatus) error
}

// ClusterStateReader reads replica state and node liveness.
type ClusterStateReader interface {
	// ListReplicas returns a fresh snapshot of every replica of the shard.
	ListReplicas(ctx context.Context, shard ShardKey) ([]ReplicaView, error)

	// IsLive reports whether the node's session is alive.
	IsLive(ctx context.Context, nodeName string) (bool, error)
}

// RecoveryTrigger starts or cancels recovery of a local core.
type RecoveryTrigger interface {
	EnterRecovery(ctx context.Context, core Core) error
	CancelRecovery(ctx context.Context, core Core) error
}

// Rejoiner accepts re-enrollment requests from a failed transition.
type Rejoiner interface {
	// Rejoin re-enters the candidate into its election with a fresh token.
	Rejoin(ctx context.Context, candidateID string) error
}

// LeaderProcess runs when a candidate becomes front of its election queue.
type LeaderProcess interface {
	// Slot returns the slot the process governs.
	Slot() LeadershipSlot

	// Run drives the candidate to a terminal state.
	//
	// Parameters:
	//   - ctx: Context for the transition's blocking calls
	//   - token: The candidate's election sequence token path
	//   - isReplacement: true when a previous front-of-queue candidate disappeared
	//   - core: Local replica handle, may be nil
	//
	// Returns:
	//   - TransitionState: StateLeading or StateRecovering
	Run(ctx context.Context, token string, isReplacement bool, core Core) TransitionState
}
