package types

import (
	"errors"
	"path"
	"regexp"
)

// Well-known roots of the coordination namespace.
const (
	ElectionRoot         = "leader_elect"
	LeadersRoot          = "leaders"
	OverseerElectionPath = "overseer_elect"
	LiveNodesRoot        = "live_nodes"
	StateRoot            = "state"
)

// namePattern restricts collection and shard names to characters that map
// one-to-one onto a single coordination key token.
var namePattern = regexp.MustCompile(`^[-_=a-zA-Z0-9]+$`)

// ShardKey identifies one shard of one collection.
type ShardKey struct {
	Collection string `json:"collection" yaml:"collection"`
	Shard      string `json:"shard" yaml:"shard"`
}

// String returns "collection/shard".
func (k ShardKey) String() string {
	return k.Collection + "/" + k.Shard
}

// Validate checks that both parts are set and use only [-_=a-zA-Z0-9].
func (k ShardKey) Validate() error {
	if k.Collection == "" || k.Shard == "" {
		return errors.Join(ErrInvalidSlot, errors.New("collection and shard are required"))
	}
	if !namePattern.MatchString(k.Collection) || !namePattern.MatchString(k.Shard) {
		return errors.Join(ErrInvalidSlot, errors.New("collection and shard may only contain [-_=a-zA-Z0-9]"))
	}

	return nil
}

// CandidateMetadata describes a candidate and is written verbatim to the leader pointer.
type CandidateMetadata struct {
	NodeName     string `json:"node_name"`
	BaseURL      string `json:"base_url"`
	CoreName     string `json:"core"`
	CoreNodeName string `json:"core_node_name"`
	Collection   string `json:"collection,omitempty"`
	Shard        string `json:"shard,omitempty"`
}

// ShardKey returns the shard the candidate replica belongs to.
func (m CandidateMetadata) ShardKey() ShardKey {
	return ShardKey{Collection: m.Collection, Shard: m.Shard}
}

// CoreURL returns the candidate's effective network address.
func (m CandidateMetadata) CoreURL() string {
	return JoinCoreURL(m.BaseURL, m.CoreName)
}

// LeadershipSlot identifies one leadership contest and the candidate taking part in it.
//
// A slot is immutable. A new election attempt after failure reuses the same slot
// (same CandidateID) with a fresh sequence token issued by the election queue.
type LeadershipSlot struct {
	// CandidateID uniquely identifies this process's participation.
	CandidateID string

	// Shard is the governed shard; nil for the cluster-wide singleton slot.
	Shard *ShardKey

	// ElectionPath is where sequential candidate tokens are created.
	ElectionPath string

	// LeaderPointerPath holds the elected leader's metadata; empty for the singleton slot.
	LeaderPointerPath string

	// Metadata is written to LeaderPointerPath on a successful claim.
	Metadata CandidateMetadata
}

// NewShardSlot builds the slot for a shard leadership contest.
//
// Parameters:
//   - candidateID: Stable candidate identity
//   - shard: Governed shard
//   - meta: Candidate metadata published on success
//
// Returns:
//   - LeadershipSlot: Slot with election and pointer paths derived from the shard
//   - error: ErrInvalidSlot when the identity or shard is malformed
func NewShardSlot(candidateID string, shard ShardKey, meta CandidateMetadata) (LeadershipSlot, error) {
	if candidateID == "" {
		return LeadershipSlot{}, errors.Join(ErrInvalidSlot, errors.New("candidate ID is required"))
	}
	if err := shard.Validate(); err != nil {
		return LeadershipSlot{}, err
	}

	s := shard
	meta.Collection = shard.Collection
	meta.Shard = shard.Shard

	return LeadershipSlot{
		CandidateID:       candidateID,
		Shard:             &s,
		ElectionPath:      ShardElectionPath(shard),
		LeaderPointerPath: ShardLeaderPath(shard),
		Metadata:          meta,
	}, nil
}

// NewClusterSlot builds the slot for the cluster-wide overseer contest.
func NewClusterSlot(candidateID string, meta CandidateMetadata) (LeadershipSlot, error) {
	if candidateID == "" {
		return LeadershipSlot{}, errors.Join(ErrInvalidSlot, errors.New("candidate ID is required"))
	}

	return LeadershipSlot{
		CandidateID:  candidateID,
		ElectionPath: OverseerElectionPath,
		Metadata:     meta,
	}, nil
}

// IsCluster reports whether the slot is the cluster-wide singleton slot.
func (s LeadershipSlot) IsCluster() bool {
	return s.Shard == nil
}

// LogFields returns key-value pairs identifying the slot in structured logs.
func (s LeadershipSlot) LogFields() []any {
	if s.Shard == nil {
		return []any{"role", "overseer", "candidate_id", s.CandidateID}
	}

	return []any{
		"collection", s.Shard.Collection,
		"shard", s.Shard.Shard,
		"candidate_id", s.CandidateID,
	}
}

// ShardElectionPath returns leader_elect/{collection}/{shard}.
func ShardElectionPath(shard ShardKey) string {
	return path.Join(ElectionRoot, shard.Collection, shard.Shard)
}

// ShardLeaderPath returns leaders/{collection}/{shard}.
func ShardLeaderPath(shard ShardKey) string {
	return path.Join(LeadersRoot, shard.Collection, shard.Shard)
}
