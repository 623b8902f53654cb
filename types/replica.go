package types

import (
	"fmt"
	"strings"
)

// ReplicaStatus is the application-level status a replica publishes about itself.
//
// Status is independent of session liveness: a crashed replica keeps its last
// published status until it restarts, so readers must combine it with the live
// node set before trusting it.
type ReplicaStatus int

const (
	// StatusDown means the replica is not serving.
	StatusDown ReplicaStatus = iota

	// StatusRecovering means the replica is catching up before serving.
	StatusRecovering

	// StatusActive means the replica is serving and eligible to be synced against.
	StatusActive
)

// String returns the wire name of the status.
func (s ReplicaStatus) String() string {
	switch s {
	case StatusDown:
		return "down"
	case StatusRecovering:
		return "recovering"
	case StatusActive:
		return "active"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ReplicaStatus) MarshalText() ([]byte, error) {
	if s < StatusDown || s > StatusActive {
		return nil, fmt.Errorf("invalid replica status %d", int(s))
	}

	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ReplicaStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseReplicaStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed

	return nil
}

// ParseReplicaStatus parses a status name, case-insensitively.
//
// Parameters:
//   - name: Status name ("down", "recovering", "active")
//
// Returns:
//   - ReplicaStatus: Parsed status
//   - error: Error when the name is unknown
func ParseReplicaStatus(name string) (ReplicaStatus, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "down":
		return StatusDown, nil
	case "recovering":
		return StatusRecovering, nil
	case "active":
		return StatusActive, nil
	default:
		return StatusDown, fmt.Errorf("unknown replica status %q", name)
	}
}

// ReplicaState is the persisted, self-published record of one replica.
type ReplicaState struct {
	NodeName     string        `json:"node_name"`
	BaseURL      string        `json:"base_url"`
	CoreName     string        `json:"core"`
	CoreNodeName string        `json:"core_node_name"`
	Collection   string        `json:"collection"`
	Shard        string        `json:"shard"`
	Status       ReplicaStatus `json:"state"`
}

// CoreURL returns the effective network address of the replica's core.
func (r ReplicaState) CoreURL() string {
	return JoinCoreURL(r.BaseURL, r.CoreName)
}

// ReplicaView is a read-only snapshot of a peer replica at query time.
//
// Views are never cached or mutated: callers refetch them for every decision so
// that a transition never acts on stale liveness data.
type ReplicaView struct {
	ReplicaState

	// Live reports whether the replica's node session is currently alive.
	Live bool `json:"live"`
}

// IsLiveActive reports whether the replica is both live and ACTIVE.
func (v ReplicaView) IsLiveActive() bool {
	return v.Live && v.Status == StatusActive
}

// JoinCoreURL builds a core URL from a node base URL and a core name.
func JoinCoreURL(baseURL, coreName string) string {
	base := strings.TrimRight(baseURL, "/")
	if coreName == "" {
		return base
	}

	return base + "/" + coreName
}
