package leadsync

import (
	"testing"
	"time"

	"github.com/creasty/defaults"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/leadsync/internal/logging"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.NodeName = "node-a"
	cfg.BaseURL = "http://node-a:8983/solr"
	SetDefaults(&cfg)

	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, 10*time.Second, cfg.SessionTTL)
	require.Equal(t, time.Second, cfg.ElectionPollInterval)
	require.Equal(t, 5*time.Second, cfg.OverseerInterval)
	require.Equal(t, 5*time.Second, cfg.OperationTimeout)
	require.Equal(t, 30*time.Second, cfg.StartupTimeout)
	require.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, 1000, cfg.Sync.RecentUpdates)
	require.Equal(t, time.Second, cfg.Sync.PeerTimeout)
	require.Equal(t, "leadsync-ephemeral", cfg.KVBuckets.EphemeralBucket)
	require.Equal(t, "leadsync-state", cfg.KVBuckets.StateBucket)
}

func TestSetDefaults(t *testing.T) {
	t.Run("applies defaults to empty config", func(t *testing.T) {
		cfg := Config{}
		SetDefaults(&cfg)

		require.Equal(t, 10*time.Second, cfg.SessionTTL)
		require.Equal(t, 10*time.Second/3, cfg.RenewInterval)
		require.Equal(t, 1000, cfg.Sync.RecentUpdates)
		require.Equal(t, "leadsync-state", cfg.KVBuckets.StateBucket)
	})

	t.Run("derives renew interval from custom TTL", func(t *testing.T) {
		cfg := Config{SessionTTL: 30 * time.Second}
		SetDefaults(&cfg)

		require.Equal(t, 10*time.Second, cfg.RenewInterval)
	})

	t.Run("preserves custom values", func(t *testing.T) {
		cfg := Config{
			SessionTTL:           20 * time.Second,
			RenewInterval:        4 * time.Second,
			ElectionPollInterval: 2 * time.Second,
			Sync:                 SyncConfig{RecentUpdates: 50, PeerTimeout: 3 * time.Second},
			KVBuckets:            KVBucketConfig{EphemeralBucket: "eph", StateBucket: "st"},
		}
		SetDefaults(&cfg)

		require.Equal(t, 20*time.Second, cfg.SessionTTL)
		require.Equal(t, 4*time.Second, cfg.RenewInterval)
		require.Equal(t, 2*time.Second, cfg.ElectionPollInterval)
		require.Equal(t, 50, cfg.Sync.RecentUpdates)
		require.Equal(t, 3*time.Second, cfg.Sync.PeerTimeout)
		require.Equal(t, "eph", cfg.KVBuckets.EphemeralBucket)
		require.Equal(t, "st", cfg.KVBuckets.StateBucket)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"missing node name", func(cfg *Config) { cfg.NodeName = "" }},
		{"missing base URL", func(cfg *Config) { cfg.BaseURL = "" }},
		{"sub-second session TTL", func(cfg *Config) { cfg.SessionTTL = 500 * time.Millisecond }},
		{"renew slower than TTL", func(cfg *Config) { cfg.RenewInterval = cfg.SessionTTL }},
		{"zero poll interval", func(cfg *Config) { cfg.ElectionPollInterval = 0 }},
		{"zero recent updates", func(cfg *Config) { cfg.Sync.RecentUpdates = 0 }},
		{"zero peer timeout", func(cfg *Config) { cfg.Sync.PeerTimeout = 0 }},
		{"same bucket twice", func(cfg *Config) { cfg.KVBuckets.StateBucket = cfg.KVBuckets.EphemeralBucket }},
	}

	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfig_ValidateWithWarnings(t *testing.T) {
	cfg := validConfig()
	cfg.ElectionPollInterval = time.Minute

	// Warnings never fail; the test logger fails the test only on Fatal.
	cfg.ValidateWithWarnings(logging.NewTest(t))
}

func TestTestConfig(t *testing.T) {
	cfg := TestConfig()
	cfg.NodeName = "n"
	cfg.BaseURL = "http://n/solr"

	require.NoError(t, cfg.Validate())
	require.Less(t, cfg.SessionTTL, DefaultConfig().SessionTTL)
}

func TestConfig_YAML(t *testing.T) {
	raw := `
nodeName: node-b
baseUrl: http://node-b:8983/solr
sessionTtl: 15s
electionPollInterval: 250ms
sync:
  recentUpdates: 200
  peerTimeout: 2s
kvBuckets:
  ephemeralBucket: custom-eph
`
	var cfg Config
	require.NoError(t, defaults.Set(&cfg))
	require.NoError(t, yaml.Unmarshal([]byte(raw), &cfg))
	SetDefaults(&cfg)

	require.Equal(t, "node-b", cfg.NodeName)
	require.Equal(t, 15*time.Second, cfg.SessionTTL)
	require.Equal(t, 5*time.Second, cfg.RenewInterval)
	require.Equal(t, 250*time.Millisecond, cfg.ElectionPollInterval)
	require.Equal(t, 200, cfg.Sync.RecentUpdates)
	require.Equal(t, 2*time.Second, cfg.Sync.PeerTimeout)
	require.Equal(t, 30*time.Second, cfg.Sync.ReconcileTimeout)
	require.Equal(t, "custom-eph", cfg.KVBuckets.EphemeralBucket)
	require.Equal(t, "leadsync-state", cfg.KVBuckets.StateBucket)
	require.NoError(t, cfg.Validate())
}

func TestConfig_StructDefaultsMatchDefaultConfig(t *testing.T) {
	var cfg Config
	require.NoError(t, defaults.Set(&cfg))

	want := DefaultConfig()
	require.Equal(t, want, cfg)
}
