// Package clusterstate publishes and reads replica state and node liveness.
//
// Replica states are self-published JSON records kept in a persistent KV
// bucket under state.{collection}.{shard}.{token}. Liveness is an ephemeral
// entry per node under live_nodes/{token}, owned by the node's coordination
// session. Tokens are xxh3 hashes of the node or core node name, since names
// may carry characters that are not valid in KV keys.
package clusterstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/zeebo/xxh3"

	"github.com/arloliu/leadsync/internal/logging"
	"github.com/arloliu/leadsync/internal/metrics"
	"github.com/arloliu/leadsync/internal/natsutil"
	"github.com/arloliu/leadsync/types"
)

// Compile-time assertions that Store implements the state interfaces.
var (
	_ types.StatusPublisher    = (*Store)(nil)
	_ types.ClusterStateReader = (*Store)(nil)
)

// LiveSession is the part of a coordination session the store needs.
type LiveSession interface {
	CreateEphemeral(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	Get(ctx context.Context, path string) ([]byte, error)
	Children(ctx context.Context, path string) ([]string, error)
}

// Store reads and writes replica state and live node entries.
type Store struct {
	kv      jetstream.KeyValue
	session LiveSession
	logger  types.Logger
	metrics types.MetricsCollector
}

// NewStore creates a cluster state store.
//
// Parameters:
//   - kv: Persistent KV bucket for replica state
//   - session: Coordination session owning this node's live entry
//   - logger: Logger (nil for no-op)
//   - m: Metrics collector (nil for no-op)
//
// Returns:
//   - *Store: Store ready for use
func NewStore(kv jetstream.KeyValue, session LiveSession, logger types.Logger, m types.MetricsCollector) *Store {
	if m == nil {
		m = metrics.NewNop()
	}

	return &Store{
		kv:      kv,
		session: session,
		logger:  logging.With(logger, "component", "clusterstate"),
		metrics: m,
	}
}

// Token returns the KV-safe token for a node or core node name.
func Token(name string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(name))
}

// LiveNodePath returns live_nodes/{token} for nodeName.
func LiveNodePath(nodeName string) string {
	return path.Join(types.LiveNodesRoot, Token(nodeName))
}

func stateKey(shard types.ShardKey, coreNodeName string) string {
	return strings.Join([]string{types.StateRoot, shard.Collection, shard.Shard, Token(coreNodeName)}, ".")
}

func statePrefix(shard types.ShardKey) string {
	return strings.Join([]string{types.StateRoot, shard.Collection, shard.Shard}, ".")
}

// PublishStatus persists the replica's state record.
//
// Parameters:
//   - ctx: Context for the KV call
//   - meta: Replica identity; Collection, Shard and CoreNodeName are required
//   - status: New status
//
// Returns:
//   - error: types.ErrInvalidSlot for incomplete metadata, or a classified KV error
func (s *Store) PublishStatus(ctx context.Context, meta types.CandidateMetadata, status types.ReplicaStatus) error {
	shard := meta.ShardKey()
	if err := shard.Validate(); err != nil {
		return err
	}
	if meta.CoreNodeName == "" {
		return errors.Join(types.ErrInvalidSlot, errors.New("core node name is required"))
	}

	rec := types.ReplicaState{
		NodeName:     meta.NodeName,
		BaseURL:      meta.BaseURL,
		CoreName:     meta.CoreName,
		CoreNodeName: meta.CoreNodeName,
		Collection:   meta.Collection,
		Shard:        meta.Shard,
		Status:       status,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal replica state: %w", err)
	}

	start := time.Now()
	_, err = s.kv.Put(ctx, stateKey(shard, meta.CoreNodeName), data)
	s.metrics.RecordKVOperationDuration("put_state", time.Since(start).Seconds())
	if err != nil {
		return natsutil.Classify("publish status", shard.String(), err)
	}

	s.logger.Debug("published replica status",
		"collection", shard.Collection, "shard", shard.Shard,
		"core_node", meta.CoreNodeName, "status", status.String())

	return nil
}

// ListReplicas returns a fresh snapshot of every replica of shard.
//
// Each view's Live flag is resolved against the live node entries at call time.
// Results are sorted by core node name.
func (s *Store) ListReplicas(ctx context.Context, shard types.ShardKey) ([]types.ReplicaView, error) {
	if err := shard.Validate(); err != nil {
		return nil, err
	}

	records, err := s.readStates(ctx, shard)
	if err != nil {
		return nil, err
	}

	liveness := make(map[string]bool, len(records))
	views := make([]types.ReplicaView, 0, len(records))
	for _, rec := range records {
		live, seen := liveness[rec.NodeName]
		if !seen {
			live, err = s.IsLive(ctx, rec.NodeName)
			if err != nil {
				return nil, err
			}
			liveness[rec.NodeName] = live
		}
		views = append(views, types.ReplicaView{ReplicaState: rec, Live: live})
	}

	sort.Slice(views, func(i, j int) bool { return views[i].CoreNodeName < views[j].CoreNodeName })

	return views, nil
}

func (s *Store) readStates(ctx context.Context, shard types.ShardKey) ([]types.ReplicaState, error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordKVOperationDuration("list_state", time.Since(start).Seconds())
	}()

	watcher, err := s.kv.Watch(ctx, statePrefix(shard)+".*", jetstream.IgnoreDeletes())
	if err != nil {
		return nil, natsutil.Classify("list replicas", shard.String(), err)
	}
	defer func() { _ = watcher.Stop() }()

	var records []types.ReplicaState
	for {
		select {
		case <-ctx.Done():
			return nil, natsutil.Classify("list replicas", shard.String(), ctx.Err())
		case entry, ok := <-watcher.Updates():
			if !ok || entry == nil {
				return records, nil
			}

			var rec types.ReplicaState
			if err := json.Unmarshal(entry.Value(), &rec); err != nil {
				s.logger.Warn("skipping malformed replica state", "key", entry.Key(), "error", err)
				continue
			}
			records = append(records, rec)
		}
	}
}

// RemoveReplica deletes a replica's state record.
func (s *Store) RemoveReplica(ctx context.Context, shard types.ShardKey, coreNodeName string) error {
	err := s.kv.Delete(ctx, stateKey(shard, coreNodeName))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return natsutil.Classify("remove replica", shard.String(), err)
	}

	return nil
}

// IsLive reports whether nodeName has a live entry.
func (s *Store) IsLive(ctx context.Context, nodeName string) (bool, error) {
	return s.session.Exists(ctx, LiveNodePath(nodeName))
}

// RegisterLiveNode creates this node's live entry in the session.
//
// An entry left behind by a previous incarnation of the same node is replaced.
func (s *Store) RegisterLiveNode(ctx context.Context, nodeName string) error {
	p := LiveNodePath(nodeName)
	data := []byte(nodeName)

	err := s.session.CreateEphemeral(ctx, p, data)
	if errors.Is(err, types.ErrNodeExists) {
		s.logger.Warn("replacing stale live node entry", "node", nodeName)
		if err := s.session.Delete(ctx, p); err != nil {
			return err
		}
		err = s.session.CreateEphemeral(ctx, p, data)
	}

	return err
}

// UnregisterLiveNode removes this node's live entry.
func (s *Store) UnregisterLiveNode(ctx context.Context, nodeName string) error {
	return s.session.Delete(ctx, LiveNodePath(nodeName))
}

// LiveNodes returns the names of all live nodes, sorted.
func (s *Store) LiveNodes(ctx context.Context) ([]string, error) {
	tokens, err := s.session.Children(ctx, types.LiveNodesRoot)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		data, err := s.session.Get(ctx, path.Join(types.LiveNodesRoot, tok))
		if errors.Is(err, types.ErrNoNode) {
			continue
		}
		if err != nil {
			return nil, err
		}
		names = append(names, string(data))
	}
	sort.Strings(names)

	return names, nil
}
