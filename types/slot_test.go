package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewShardSlot(t *testing.T) {
	meta := CandidateMetadata{NodeName: "node-a:8983", BaseURL: "http://node-a:8983/solr", CoreName: "c1_s1_r1"}

	t.Run("derives paths from the shard", func(t *testing.T) {
		slot, err := NewShardSlot("cand-1", ShardKey{Collection: "c1", Shard: "shard1"}, meta)
		require.NoError(t, err)
		require.Equal(t, "leader_elect/c1/shard1", slot.ElectionPath)
		require.Equal(t, "leaders/c1/shard1", slot.LeaderPointerPath)
		require.False(t, slot.IsCluster())
		require.Equal(t, "http://node-a:8983/solr/c1_s1_r1", slot.Metadata.CoreURL())
		require.Equal(t, ShardKey{Collection: "c1", Shard: "shard1"}, slot.Metadata.ShardKey())
	})

	t.Run("rejects empty candidate", func(t *testing.T) {
		_, err := NewShardSlot("", ShardKey{Collection: "c1", Shard: "shard1"}, meta)
		require.ErrorIs(t, err, ErrInvalidSlot)
	})

	t.Run("rejects separators in names", func(t *testing.T) {
		_, err := NewShardSlot("cand-1", ShardKey{Collection: "c1/x", Shard: "shard1"}, meta)
		require.ErrorIs(t, err, ErrInvalidSlot)

		_, err = NewShardSlot("cand-1", ShardKey{Collection: "c1", Shard: "shard.1"}, meta)
		require.ErrorIs(t, err, ErrInvalidSlot)
	})

	t.Run("log fields identify the shard", func(t *testing.T) {
		slot, err := NewShardSlot("cand-1", ShardKey{Collection: "c1", Shard: "shard1"}, meta)
		require.NoError(t, err)
		require.Equal(t, []any{"collection", "c1", "shard", "shard1", "candidate_id", "cand-1"}, slot.LogFields())
	})
}

func TestNewClusterSlot(t *testing.T) {
	slot, err := NewClusterSlot("cand-9", CandidateMetadata{NodeName: "node-a"})
	require.NoError(t, err)
	require.True(t, slot.IsCluster())
	require.Equal(t, OverseerElectionPath, slot.ElectionPath)
	require.Empty(t, slot.LeaderPointerPath)
}

func TestReplicaStatusText(t *testing.T) {
	for _, s := range []ReplicaStatus{StatusDown, StatusRecovering, StatusActive} {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var parsed ReplicaStatus
		require.NoError(t, parsed.UnmarshalText(text))
		require.Equal(t, s, parsed)
	}

	_, err := ParseReplicaStatus("leader")
	require.Error(t, err)

	_, err = ReplicaStatus(7).MarshalText()
	require.Error(t, err)
}

func TestReplicaViewIsLiveActive(t *testing.T) {
	v := ReplicaView{ReplicaState: ReplicaState{Status: StatusActive}, Live: true}
	require.True(t, v.IsLiveActive())

	v.Live = false
	require.False(t, v.IsLiveActive())

	v = ReplicaView{ReplicaState: ReplicaState{Status: StatusRecovering}, Live: true}
	require.False(t, v.IsLiveActive())
}

func TestJoinCoreURL(t *testing.T) {
	require.Equal(t, "http://a/solr/core", JoinCoreURL("http://a/solr/", "core"))
	require.Equal(t, "http://a/solr", JoinCoreURL("http://a/solr", ""))
}
