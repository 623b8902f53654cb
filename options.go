package leadsync

// Option configures a Node with optional dependencies.
type Option func(*nodeOptions)

// nodeOptions holds optional Node configuration.
type nodeOptions struct {
	logger          Logger
	metrics         MetricsCollector
	hooks           *Hooks
	peerClient      PeerClient
	recovery        RecoveryTrigger
	overseerFactory OverseerFactory
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewNode
//
// Example:
//
//	node, _ := leadsync.NewNode(&cfg, nc, leadsync.WithLogger(logging.NewSlogDefault()))
func WithLogger(logger Logger) Option {
	return func(o *nodeOptions) {
		o.logger = logger
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewNode
//
// Example:
//
//	collector := metrics.NewPrometheus(prometheus.DefaultRegisterer, "leadsync")
//	node, _ := leadsync.NewNode(&cfg, nc, leadsync.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *nodeOptions) {
		o.metrics = metrics
	}
}

// WithHooks sets lifecycle event hooks.
//
// Without WithRecoveryTrigger, OnEnterRecovery and OnCancelRecovery are how
// the application learns that a core must catch up or may serve again.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewNode
//
// Example:
//
//	hooks := &leadsync.Hooks{
//	    OnEnterRecovery: func(ctx context.Context, core leadsync.Core) error {
//	        return replicator.Recover(ctx, core.Name())
//	    },
//	}
//	node, _ := leadsync.NewNode(&cfg, nc, leadsync.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *nodeOptions) {
		o.hooks = hooks
	}
}

// WithPeerClient replaces the HTTP peer client used for version comparison
// and sync requests.
//
// Parameters:
//   - client: PeerClient implementation
//
// Returns:
//   - Option: Functional option for NewNode
func WithPeerClient(client PeerClient) Option {
	return func(o *nodeOptions) {
		o.peerClient = client
	}
}

// WithRecoveryTrigger replaces the hook-backed recovery trigger.
//
// Parameters:
//   - trigger: RecoveryTrigger implementation
//
// Returns:
//   - Option: Functional option for NewNode
func WithRecoveryTrigger(trigger RecoveryTrigger) Option {
	return func(o *nodeOptions) {
		o.recovery = trigger
	}
}

// WithOverseerFactory replaces the overseer built when this node wins the
// overseer election.
//
// The factory is called once per won election; every call must return a new,
// not yet started Overseer.
//
// Parameters:
//   - factory: OverseerFactory implementation
//
// Returns:
//   - Option: Functional option for NewNode
//
// Example:
//
//	node, _ := leadsync.NewNode(&cfg, nc, leadsync.WithOverseerFactory(func() (leadsync.Overseer, error) {
//	    return assigner.New(), nil
//	}))
func WithOverseerFactory(factory OverseerFactory) Option {
	return func(o *nodeOptions) {
		o.overseerFactory = factory
	}
}
