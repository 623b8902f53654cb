package leadsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/leadsync/internal/clusterstate"
	"github.com/arloliu/leadsync/internal/coordination"
	"github.com/arloliu/leadsync/internal/election"
	"github.com/arloliu/leadsync/internal/freshness"
	"github.com/arloliu/leadsync/internal/hooks"
	"github.com/arloliu/leadsync/internal/kvutil"
	"github.com/arloliu/leadsync/internal/logging"
	"github.com/arloliu/leadsync/internal/metrics"
	"github.com/arloliu/leadsync/internal/overseer"
	"github.com/arloliu/leadsync/internal/peersync"
	"github.com/arloliu/leadsync/internal/registrar"
	"github.com/arloliu/leadsync/internal/transition"
	"github.com/arloliu/leadsync/types"
)

// Node supervises the leadership of every shard replica hosted by one process.
//
// Node is the main entry point of the leadsync library. It handles:
//   - The NATS KV coordination session and this node's live entry
//   - Election queues for registered shard replicas and for the overseer
//   - Sync-gated leadership transitions of those replicas
//   - The HTTP endpoints peers use for version exchange
//
// Thread Safety:
//   - All public methods are safe for concurrent use
//   - Transitions of different shards run concurrently and independently
//
// Lifecycle:
//   - Create with NewNode()
//   - Mount PeerHandler() on the HTTP server serving Config.BaseURL
//   - Call Start() to join the cluster
//   - Register() each local core; use hooks to react to recovery requests
//   - Call Stop() for graceful shutdown
type Node struct {
	cfg  Config
	conn *nats.Conn

	hooks           *Hooks
	metrics         MetricsCollector
	logger          Logger
	peerClient      PeerClient
	recovery        RecoveryTrigger
	overseerFactory OverseerFactory

	cores   *peersync.CoreRegistry
	handler *peersync.Handler

	// Built by Start.
	session   *coordination.Session
	store     *clusterstate.Store
	registrar *registrar.Registrar
	elector   *election.Elector

	shards *xsync.Map[ShardKey, *shardEntry]

	mu       sync.Mutex
	started  bool
	stopped  bool
	overseer Overseer
}

// shardEntry is one registered shard replica.
type shardEntry struct {
	process *transition.ShardTransition
	core    Core
}

// Compile-time assertion that Node owns adopted overseers.
var _ transition.OverseerOwner = (*Node)(nil)

// NewNode creates a new Node with the provided configuration.
//
// Returns a concrete *Node struct following the "accept interfaces, return structs" principle.
//
// Parameters:
//   - cfg: Node configuration; missing values are filled with defaults
//   - conn: NATS connection with JetStream enabled
//   - opts: Optional configuration (logger, metrics, hooks, peer client, recovery trigger, overseer factory)
//
// Returns:
//   - *Node: Initialized node, not yet started
//   - error: ErrInvalidConfig or ErrNATSConnectionRequired
//
// Example:
//
//	cfg := leadsync.DefaultConfig()
//	cfg.NodeName = "node-a"
//	cfg.BaseURL = "http://node-a:8983/solr"
//	node, err := leadsync.NewNode(&cfg, nc)
func NewNode(cfg *Config, conn *nats.Conn, opts ...Option) (*Node, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if conn == nil {
		return nil, ErrNATSConnectionRequired
	}

	SetDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &nodeOptions{}
	for _, opt := range opts {
		opt(options)
	}

	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logging.NewNop()
	}
	loggerInstance = logging.With(loggerInstance, "node", cfg.NodeName)

	cfg.ValidateWithWarnings(loggerInstance)

	hooksInstance := hooks.Fill(options.hooks)

	peerClient := options.peerClient
	if peerClient == nil {
		peerClient = peersync.NewHTTPClient(nil, loggerInstance)
	}

	recovery := options.recovery
	if recovery == nil {
		recovery = &hookRecovery{hooks: hooksInstance}
	}

	cores := peersync.NewCoreRegistry()

	n := &Node{
		cfg:             *cfg,
		conn:            conn,
		hooks:           hooksInstance,
		metrics:         metricsCollector,
		logger:          loggerInstance,
		peerClient:      peerClient,
		recovery:        recovery,
		overseerFactory: options.overseerFactory,
		cores:           cores,
		handler: peersync.NewHandler(cores, peerClient, peersync.HandlerConfig{
			RecentUpdates: cfg.Sync.RecentUpdates,
			SyncTimeout:   cfg.Sync.ReconcileTimeout,
		}, loggerInstance),
		shards: xsync.NewMap[ShardKey, *shardEntry](),
	}

	return n, nil
}

// PeerHandler returns the HTTP handler serving the peer endpoints.
//
// Mount it at the path of Config.BaseURL: a core named "c1" is reached by
// peers at {BaseURL}/c1/versions, {BaseURL}/c1/updates and {BaseURL}/c1/sync.
func (n *Node) PeerHandler() http.Handler {
	return n.handler.Routes()
}

// Start joins the cluster.
//
// Ensures the KV buckets, starts the coordination session, registers the live
// node entry and joins the overseer election. Start does not wait for any
// election outcome.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//
// Returns:
//   - error: ErrAlreadyStarted, or the first failing startup step
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		return ErrAlreadyStarted
	}

	startupCtx, cancel := context.WithTimeout(ctx, n.cfg.StartupTimeout)
	defer cancel()

	js, err := jetstream.New(n.conn)
	if err != nil {
		return fmt.Errorf("failed to create jetstream context: %w", err)
	}

	ephemeralKV, err := n.ensureKVBucket(startupCtx, js, n.cfg.KVBuckets.EphemeralBucket, n.cfg.SessionTTL)
	if err != nil {
		return err
	}
	stateKV, err := n.ensureKVBucket(startupCtx, js, n.cfg.KVBuckets.StateBucket, 0)
	if err != nil {
		return err
	}

	session := coordination.New(ephemeralKV, stateKV, coordination.Config{
		TTL:              n.cfg.SessionTTL,
		RenewInterval:    n.cfg.RenewInterval,
		OperationTimeout: n.cfg.OperationTimeout,
	}, n.logger, n.metrics)
	if err := session.Start(startupCtx); err != nil {
		return fmt.Errorf("failed to start coordination session: %w", err)
	}

	store := clusterstate.NewStore(stateKV, session, n.logger, n.metrics)
	if err := store.RegisterLiveNode(startupCtx, n.cfg.NodeName); err != nil {
		_ = session.Close(context.Background())
		return fmt.Errorf("failed to register live node: %w", err)
	}

	n.session = session
	n.store = store
	n.registrar = registrar.New(session, n.logger, n.metrics)
	n.elector = election.New(session, election.Config{PollInterval: n.cfg.ElectionPollInterval}, n.logger)

	if err := n.joinOverseerElection(startupCtx); err != nil {
		_ = n.elector.Close(context.Background())
		_ = session.Close(context.Background())

		return err
	}

	n.started = true
	n.logger.Info("node started", "session_id", session.ID())

	return nil
}

func (n *Node) joinOverseerElection(ctx context.Context) error {
	factory := n.overseerFactory
	if factory == nil {
		factory = overseer.Factory(n.store, n.cfg.OverseerInterval, n.logger, n.metrics)
	}

	slot, err := types.NewClusterSlot(uuid.NewString(), CandidateMetadata{
		NodeName: n.cfg.NodeName,
		BaseURL:  n.cfg.BaseURL,
	})
	if err != nil {
		return err
	}

	process, err := transition.NewClusterTransition(slot, transition.ClusterDeps{
		Factory:     factory,
		Owner:       n,
		Coordinator: n.session,
		Rejoiner:    n.elector,
		Logger:      n.logger,
		Metrics:     n.metrics,
		Hooks:       n.hooks,
	})
	if err != nil {
		return err
	}

	if err := n.elector.Join(ctx, process, nil); err != nil {
		return fmt.Errorf("failed to join overseer election: %w", err)
	}

	return nil
}

// Register enters a local shard replica into its shard's leader election.
//
// The replica's status is published as DOWN first; it turns ACTIVE when the
// replica becomes leader. Register returns once the election token exists;
// the transition runs in the background.
//
// Parameters:
//   - ctx: Context for the status publication and token creation
//   - collection: Collection name ([-_=a-zA-Z0-9]+)
//   - shard: Shard name ([-_=a-zA-Z0-9]+)
//   - coreNodeName: Cluster-wide identity of the replica
//   - core: Local core; nil elects without sync or status publication
//
// Returns:
//   - error: ErrNotStarted, ErrAlreadyRegistered, ErrInvalidSlot or a coordination error
func (n *Node) Register(ctx context.Context, collection, shard, coreNodeName string, core Core) error {
	if !n.isRunning() {
		return ErrNotStarted
	}

	key := ShardKey{Collection: collection, Shard: shard}
	if err := key.Validate(); err != nil {
		return err
	}
	if coreNodeName == "" {
		return fmt.Errorf("%w: core node name is required", ErrInvalidSlot)
	}

	meta := CandidateMetadata{
		NodeName:     n.cfg.NodeName,
		BaseURL:      n.cfg.BaseURL,
		CoreName:     coreNodeName,
		CoreNodeName: coreNodeName,
	}
	if core != nil {
		meta.CoreName = core.Name()
	}

	slot, err := types.NewShardSlot(uuid.NewString(), key, meta)
	if err != nil {
		return err
	}

	process, err := transition.NewShardTransition(slot, transition.Deps{
		Coordinator: n.session,
		Registrar:   n.registrar,
		Oracle:      freshness.New(n.store),
		Syncer: peersync.New(n.peerClient, peersync.Config{
			RecentUpdates: n.cfg.Sync.RecentUpdates,
			PeerTimeout:   n.cfg.Sync.PeerTimeout,
		}, n.logger, n.metrics),
		Publisher: n.store,
		Recovery:  n.recovery,
		Rejoiner:  n.elector,
		Logger:    n.logger,
		Metrics:   n.metrics,
		Hooks:     n.hooks,
	})
	if err != nil {
		return err
	}

	entry := &shardEntry{process: process, core: core}
	if _, loaded := n.shards.LoadOrStore(key, entry); loaded {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, key)
	}

	if core != nil {
		n.cores.Register(core)
		if err := n.store.PublishStatus(ctx, slot.Metadata, StatusDown); err != nil {
			n.forget(key, core)
			return fmt.Errorf("failed to publish initial status: %w", err)
		}
	}

	if err := n.elector.Join(ctx, process, core); err != nil {
		n.forget(key, core)
		return fmt.Errorf("failed to join election of %s: %w", key, err)
	}

	n.logger.Info("shard registered", "collection", collection, "shard", shard, "core_node_name", coreNodeName)

	return nil
}

func (n *Node) forget(key ShardKey, core Core) {
	n.shards.Delete(key)
	if core != nil {
		n.cores.Unregister(core.Name())
	}
}

// Unregister withdraws a local replica from its shard's election and deletes
// its state record, since the replica no longer exists on this node.
//
// A leading replica releases the leader pointer, so the next candidate takes
// over without waiting for the session TTL.
//
// Returns:
//   - error: ErrNotStarted, ErrNotRegistered or a coordination error
func (n *Node) Unregister(ctx context.Context, collection, shard string) error {
	if !n.isRunning() {
		return ErrNotStarted
	}

	key := ShardKey{Collection: collection, Shard: shard}
	entry, ok := n.shards.LoadAndDelete(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, key)
	}

	err := n.withdraw(ctx, entry)
	if entry.core != nil {
		if rmErr := n.store.RemoveReplica(ctx, key, entry.process.Slot().Metadata.CoreNodeName); rmErr != nil {
			err = errors.Join(err, rmErr)
		}
	}

	return err
}

// withdraw releases the pointer before leaving the queue so a successor
// never finds our pointer after winning. A pointer this session no longer
// owns belongs to a newer leader and is left in place.
func (n *Node) withdraw(ctx context.Context, entry *shardEntry) error {
	slot := entry.process.Slot()

	var errs []error
	if entry.process.State() == StateLeading && n.session.Owns(slot.LeaderPointerPath) {
		if err := n.registrar.Release(ctx, slot); err != nil {
			errs = append(errs, err)
		}
	}
	if entry.core != nil {
		if err := n.store.PublishStatus(ctx, slot.Metadata, StatusDown); err != nil {
			errs = append(errs, err)
		}
		n.cores.Unregister(entry.core.Name())
	}
	if err := n.elector.Leave(ctx, slot.CandidateID); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Leader returns the metadata of the current leader of a shard.
//
// Returns:
//   - CandidateMetadata: Metadata the leader wrote to its pointer
//   - error: ErrNoNode when the shard has no leader, ErrNotStarted
func (n *Node) Leader(ctx context.Context, collection, shard string) (CandidateMetadata, error) {
	if !n.isRunning() {
		return CandidateMetadata{}, ErrNotStarted
	}

	return n.registrar.Leader(ctx, ShardKey{Collection: collection, Shard: shard})
}

// State returns the transition state of a locally registered replica.
//
// Returns:
//   - TransitionState: State of the latest transition (StateCandidate before the first one)
//   - error: ErrNotRegistered
func (n *Node) State(collection, shard string) (TransitionState, error) {
	key := ShardKey{Collection: collection, Shard: shard}
	entry, ok := n.shards.Load(key)
	if !ok {
		return StateCandidate, fmt.Errorf("%w: %s", ErrNotRegistered, key)
	}

	return entry.process.State(), nil
}

// PublishStatus publishes the status of a locally registered replica.
//
// Transitions publish DOWN and ACTIVE themselves. Applications call this as a
// follower's recovery progresses: StatusRecovering while it catches up and
// StatusActive once it serves, which makes it a sync peer of future candidates.
//
// Returns:
//   - error: ErrNotStarted, ErrNotRegistered, ErrCoreNotFound for a replica registered without a core
func (n *Node) PublishStatus(ctx context.Context, collection, shard string, status ReplicaStatus) error {
	if !n.isRunning() {
		return ErrNotStarted
	}

	key := ShardKey{Collection: collection, Shard: shard}
	entry, ok := n.shards.Load(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, key)
	}
	if entry.core == nil {
		return fmt.Errorf("%w: %s has no local core", ErrCoreNotFound, key)
	}

	return n.store.PublishStatus(ctx, entry.process.Slot().Metadata, status)
}

// Replicas returns a fresh view of every replica of a shard, local or remote.
func (n *Node) Replicas(ctx context.Context, collection, shard string) ([]ReplicaView, error) {
	if !n.isRunning() {
		return nil, ErrNotStarted
	}

	return n.store.ListReplicas(ctx, ShardKey{Collection: collection, Shard: shard})
}

// Overseer returns the overseer run by this node, or nil if another node
// holds the overseer role.
func (n *Node) Overseer() Overseer {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.overseer
}

// AdoptOverseer takes ownership of an overseer started after winning the
// overseer election, closing the previous one.
//
// An overseer adopted after Stop is closed immediately.
func (n *Node) AdoptOverseer(ov Overseer) {
	n.mu.Lock()
	prev := n.overseer
	stopped := n.stopped
	if !stopped {
		n.overseer = ov
	}
	n.mu.Unlock()

	if prev != nil && prev != ov {
		if err := prev.Close(); err != nil {
			n.logger.Warn("failed to close previous overseer", "error", err)
		}
	}
	if stopped {
		_ = ov.Close()
	}
}

// Stop gracefully shuts down the node.
//
// Leading replicas release their pointers and publish DOWN, every election is
// left, the overseer is closed, and the session deletes the remaining entries.
//
// Parameters:
//   - ctx: Context for shutdown timeout (Config.ShutdownTimeout when it has no deadline)
//
// Returns:
//   - error: ErrNotStarted, or the joined shutdown errors
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	if !n.started || n.stopped {
		n.mu.Unlock()
		return ErrNotStarted
	}
	n.stopped = true
	ov := n.overseer
	n.overseer = nil
	n.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.cfg.ShutdownTimeout)
		defer cancel()
	}

	var errs []error

	n.shards.Range(func(key ShardKey, entry *shardEntry) bool {
		n.shards.Delete(key)
		if err := n.withdraw(ctx, entry); err != nil {
			n.logger.Error("failed to withdraw shard", "shard", key.String(), "error", err)
			errs = append(errs, err)
		}

		return true
	})

	if err := n.elector.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("election close failed: %w", err))
	}

	if ov != nil {
		if err := ov.Close(); err != nil {
			errs = append(errs, fmt.Errorf("overseer close failed: %w", err))
		}
	}

	if err := n.store.UnregisterLiveNode(ctx, n.cfg.NodeName); err != nil {
		errs = append(errs, fmt.Errorf("live node removal failed: %w", err))
	}

	if err := n.session.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("session close failed: %w", err))
	}

	done := make(chan struct{})
	go func() {
		n.handler.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("shutdown timeout waiting for reconciliations: %w", ctx.Err()))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	n.logger.Info("node stopped gracefully")

	return nil
}

func (n *Node) isRunning() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.started && !n.stopped
}

// ensureKVBucket creates or opens a KV bucket with the specified TTL.
func (n *Node) ensureKVBucket(ctx context.Context, js jetstream.JetStream, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	cfg := jetstream.KeyValueConfig{
		Bucket:  bucket,
		History: 1,
	}
	if ttl > 0 {
		cfg.TTL = ttl
	}

	kv, err := kvutil.EnsureBucket(ctx, js, cfg, kvutil.DefaultMaxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to create/open KV bucket %s: %w", bucket, err)
	}

	return kv, nil
}

// hookRecovery is the default RecoveryTrigger, backed by the recovery hooks.
type hookRecovery struct {
	hooks *Hooks
}

func (r *hookRecovery) EnterRecovery(ctx context.Context, core Core) error {
	return r.hooks.OnEnterRecovery(ctx, core)
}

func (r *hookRecovery) CancelRecovery(ctx context.Context, core Core) error {
	return r.hooks.OnCancelRecovery(ctx, core)
}
