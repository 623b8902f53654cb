package leadsync

import (
	"fmt"
	"time"
)

// SyncConfig controls leadership-time reconciliation with peers.
type SyncConfig struct {
	// RecentUpdates is how many of the newest update versions are compared per peer.
	// Default: 1000
	RecentUpdates int `yaml:"recentUpdates" default:"1000"`

	// PeerTimeout bounds each peer call independently.
	// A slow peer counts as "no evidence" and never blocks the others.
	// Default: 1s
	PeerTimeout time.Duration `yaml:"peerTimeout" default:"1s"`

	// ReconcileTimeout bounds one reconciliation requested by a new leader.
	// Default: 30s
	ReconcileTimeout time.Duration `yaml:"reconcileTimeout" default:"30s"`
}

// KVBucketConfig configures NATS JetStream KV bucket names.
type KVBucketConfig struct {
	// EphemeralBucket holds session-owned entries: election tokens, leader
	// pointers and live nodes. Its bucket TTL is SessionTTL.
	EphemeralBucket string `yaml:"ephemeralBucket" default:"leadsync-ephemeral"`

	// StateBucket holds persistent entries: replica states and sequence counters.
	StateBucket string `yaml:"stateBucket" default:"leadsync-state"`
}

// Config is the configuration for a Node.
//
// All duration fields accept standard Go duration strings like "500ms", "10s", "1m".
type Config struct {
	// NodeName identifies this process in the live node set (e.g. "10.0.0.5:8983_solr").
	NodeName string `yaml:"nodeName"`

	// BaseURL is the URL peers use to reach this node's cores (e.g. "http://10.0.0.5:8983/solr").
	BaseURL string `yaml:"baseUrl"`

	// SessionTTL is how long ephemeral entries survive without renewal.
	// A crashed node loses its election tokens and leader pointers after this long.
	// Recommended: 10 seconds.
	SessionTTL time.Duration `yaml:"sessionTtl" default:"10s"`

	// RenewInterval is the keepalive period of the coordination session.
	// Default: 0 (SessionTTL/3)
	RenewInterval time.Duration `yaml:"renewInterval"`

	// ElectionPollInterval is the fallback period of the election queue check.
	// Expired entries emit no watch event, so this bounds failover detection.
	// Recommended: 1 second.
	ElectionPollInterval time.Duration `yaml:"electionPollInterval" default:"1s"`

	// OverseerInterval is how often the overseer scans live nodes.
	OverseerInterval time.Duration `yaml:"overseerInterval" default:"5s"`

	// OperationTimeout is the timeout of background KV operations.
	OperationTimeout time.Duration `yaml:"operationTimeout" default:"5s"`

	// StartupTimeout bounds Start: bucket setup, session start, live node
	// registration and the overseer election join.
	StartupTimeout time.Duration `yaml:"startupTimeout" default:"30s"`

	// ShutdownTimeout bounds Stop when the caller's context has no deadline.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"10s"`

	// Sync controls peer reconciliation.
	Sync SyncConfig `yaml:"sync"`

	// KVBuckets controls NATS JetStream KV bucket configuration.
	KVBuckets KVBucketConfig `yaml:"kvBuckets"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// NodeName and BaseURL have no default and must be set by the caller.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		SessionTTL:           10 * time.Second,
		ElectionPollInterval: time.Second,
		OverseerInterval:     5 * time.Second,
		OperationTimeout:     5 * time.Second,
		StartupTimeout:       30 * time.Second,
		ShutdownTimeout:      10 * time.Second,
		Sync: SyncConfig{
			RecentUpdates:    1000,
			PeerTimeout:      time.Second,
			ReconcileTimeout: 30 * time.Second,
		},
		KVBuckets: KVBucketConfig{
			EphemeralBucket: "leadsync-ephemeral",
			StateBucket:     "leadsync-state",
		},
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = defaults.SessionTTL
	}
	if cfg.RenewInterval == 0 {
		cfg.RenewInterval = cfg.SessionTTL / 3
	}
	if cfg.ElectionPollInterval == 0 {
		cfg.ElectionPollInterval = defaults.ElectionPollInterval
	}
	if cfg.OverseerInterval == 0 {
		cfg.OverseerInterval = defaults.OverseerInterval
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = defaults.StartupTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if cfg.Sync.RecentUpdates == 0 {
		cfg.Sync.RecentUpdates = defaults.Sync.RecentUpdates
	}
	if cfg.Sync.PeerTimeout == 0 {
		cfg.Sync.PeerTimeout = defaults.Sync.PeerTimeout
	}
	if cfg.Sync.ReconcileTimeout == 0 {
		cfg.Sync.ReconcileTimeout = defaults.Sync.ReconcileTimeout
	}
	if cfg.KVBuckets.EphemeralBucket == "" {
		cfg.KVBuckets.EphemeralBucket = defaults.KVBuckets.EphemeralBucket
	}
	if cfg.KVBuckets.StateBucket == "" {
		cfg.KVBuckets.StateBucket = defaults.KVBuckets.StateBucket
	}
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - NodeName and BaseURL are set
//   - SessionTTL >= 1s (NATS KV TTL granularity)
//   - 0 < RenewInterval < SessionTTL (entries must be renewed before they expire)
//   - ElectionPollInterval, OperationTimeout and OverseerInterval > 0
//   - Sync.RecentUpdates > 0 and Sync.PeerTimeout > 0
//   - Bucket names are set and distinct
//
// Returns:
//   - error: Validation error with clear explanation, nil if valid
func (cfg *Config) Validate() error {
	if cfg.NodeName == "" {
		return fmt.Errorf("%w: NodeName is required", ErrInvalidConfig)
	}
	if cfg.BaseURL == "" {
		return fmt.Errorf("%w: BaseURL is required", ErrInvalidConfig)
	}

	if cfg.SessionTTL < time.Second {
		return fmt.Errorf("%w: SessionTTL (%v) must be >= 1s", ErrInvalidConfig, cfg.SessionTTL)
	}
	if cfg.RenewInterval <= 0 || cfg.RenewInterval >= cfg.SessionTTL {
		return fmt.Errorf(
			"%w: RenewInterval (%v) must be > 0 and < SessionTTL (%v)",
			ErrInvalidConfig, cfg.RenewInterval, cfg.SessionTTL,
		)
	}

	if cfg.ElectionPollInterval <= 0 {
		return fmt.Errorf("%w: ElectionPollInterval must be > 0, got %v", ErrInvalidConfig, cfg.ElectionPollInterval)
	}
	if cfg.OperationTimeout <= 0 {
		return fmt.Errorf("%w: OperationTimeout must be > 0, got %v", ErrInvalidConfig, cfg.OperationTimeout)
	}
	if cfg.OverseerInterval <= 0 {
		return fmt.Errorf("%w: OverseerInterval must be > 0, got %v", ErrInvalidConfig, cfg.OverseerInterval)
	}

	if cfg.Sync.RecentUpdates <= 0 {
		return fmt.Errorf("%w: Sync.RecentUpdates must be > 0, got %d", ErrInvalidConfig, cfg.Sync.RecentUpdates)
	}
	if cfg.Sync.PeerTimeout <= 0 {
		return fmt.Errorf("%w: Sync.PeerTimeout must be > 0, got %v", ErrInvalidConfig, cfg.Sync.PeerTimeout)
	}

	if cfg.KVBuckets.EphemeralBucket == "" || cfg.KVBuckets.StateBucket == "" {
		return fmt.Errorf("%w: KV bucket names are required", ErrInvalidConfig)
	}
	if cfg.KVBuckets.EphemeralBucket == cfg.KVBuckets.StateBucket {
		return fmt.Errorf(
			"%w: EphemeralBucket and StateBucket must differ (both %q)",
			ErrInvalidConfig, cfg.KVBuckets.StateBucket,
		)
	}

	return nil
}

// ValidateWithWarnings checks configuration and logs warnings for non-recommended values.
//
// This is called after Validate() in NewNode() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.RenewInterval > cfg.SessionTTL/2 {
		logger.Warn(
			"RenewInterval leaves little margin before session entries expire",
			"renewInterval", cfg.RenewInterval,
			"sessionTTL", cfg.SessionTTL,
			"recommended", cfg.SessionTTL/3,
		)
	}

	if cfg.ElectionPollInterval > cfg.SessionTTL {
		logger.Warn(
			"ElectionPollInterval exceeds SessionTTL, failover detection will be slow",
			"electionPollInterval", cfg.ElectionPollInterval,
			"sessionTTL", cfg.SessionTTL,
		)
	}

	if cfg.Sync.PeerTimeout > cfg.SessionTTL/2 {
		logger.Warn(
			"Sync.PeerTimeout is long compared to SessionTTL, slow peers delay failover",
			"peerTimeout", cfg.Sync.PeerTimeout,
			"sessionTTL", cfg.SessionTTL,
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Use DefaultConfig() for production deployments.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := leadsync.TestConfig()
//	cfg.NodeName = "node-a"
//	cfg.BaseURL = "http://node-a/solr"
//	node, err := leadsync.NewNode(&cfg, nc)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.SessionTTL = 2 * time.Second
	cfg.RenewInterval = 500 * time.Millisecond
	cfg.ElectionPollInterval = 50 * time.Millisecond
	cfg.OverseerInterval = 100 * time.Millisecond
	cfg.OperationTimeout = time.Second
	cfg.StartupTimeout = 10 * time.Second
	cfg.ShutdownTimeout = 5 * time.Second
	cfg.Sync.PeerTimeout = 200 * time.Millisecond
	cfg.Sync.ReconcileTimeout = 2 * time.Second

	return cfg
}
