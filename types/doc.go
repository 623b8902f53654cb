// Package types provides core type definitions and interfaces for the leadsync library.
//
// This package contains shared types that are used across multiple packages in the
// library. Keeping them in a separate package avoids import cycles between the root
// leadsync package and its internal implementations.
//
// Key types:
//   - LeadershipSlot: One candidate's participation in one leadership contest
//   - ReplicaView: Read-only snapshot of a peer replica
//   - TransitionState: Candidate → Syncing → Leading | Recovering
//   - Coordinator, PeerClient, StatusPublisher, ClusterStateReader: Collaborator contracts
//   - Logger, MetricsCollector, Hooks: Ambient interfaces
package types
