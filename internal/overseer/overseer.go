// Package overseer implements the cluster-wide singleton role.
//
// The overseer is constructed and started by the process that wins the
// overseer election. It periodically counts the live nodes of the cluster and
// reports them through the metrics collector. Global work assignment is out
// of scope; the overseer is the hook where it would run.
package overseer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/arloliu/leadsync/internal/logging"
	"github.com/arloliu/leadsync/internal/metrics"
	"github.com/arloliu/leadsync/types"
)

// DefaultInterval is the default live-node scan period.
const DefaultInterval = 5 * time.Second

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("overseer already started")

// LiveNodeLister lists the names of live nodes.
type LiveNodeLister interface {
	LiveNodes(ctx context.Context) ([]string, error)
}

// Overseer scans live nodes until closed.
type Overseer struct {
	lister   LiveNodeLister
	interval time.Duration
	logger   types.Logger
	metrics  types.MetricsCollector

	mu      sync.Mutex
	started bool
	closed  bool
	nodes   []string
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Compile-time assertion that Overseer implements types.Overseer.
var _ types.Overseer = (*Overseer)(nil)

// New creates an overseer.
//
// Parameters:
//   - lister: Source of live node names
//   - interval: Scan period (DefaultInterval when zero)
//   - logger: Logger (nil for no-op)
//   - m: Metrics collector (nil for no-op)
//
// Returns:
//   - *Overseer: Overseer that must be started
func New(lister LiveNodeLister, interval time.Duration, logger types.Logger, m types.MetricsCollector) *Overseer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if m == nil {
		m = metrics.NewNop()
	}

	return &Overseer{
		lister:   lister,
		interval: interval,
		logger:   logging.With(logger, "component", "overseer"),
		metrics:  m,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Factory returns a types.OverseerFactory building overseers with these arguments.
func Factory(lister LiveNodeLister, interval time.Duration, logger types.Logger, m types.MetricsCollector) types.OverseerFactory {
	return func() (types.Overseer, error) {
		return New(lister, interval, logger, m), nil
	}
}

// Start scans once and then keeps scanning in the background.
//
// Parameters:
//   - ctx: Context for the initial scan
//
// Returns:
//   - error: ErrAlreadyStarted, or the initial scan failure
func (o *Overseer) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started || o.closed {
		return ErrAlreadyStarted
	}

	if err := o.scanLocked(ctx); err != nil {
		return fmt.Errorf("failed initial live node scan: %w", err)
	}

	o.started = true
	o.metrics.RecordOverseerActive(true)
	o.logger.Info("overseer started", "live_nodes", len(o.nodes))

	go o.loop()

	return nil
}

// Close stops the scan loop. Close is idempotent.
func (o *Overseer) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	started := o.started
	close(o.stopCh)
	o.mu.Unlock()

	if started {
		<-o.doneCh
		o.metrics.RecordOverseerActive(false)
		o.logger.Info("overseer stopped")
	}

	return nil
}

// LiveNodes returns the node names seen by the latest scan.
func (o *Overseer) LiveNodes() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	return slices.Clone(o.nodes)
}

func (o *Overseer) loop() {
	defer close(o.doneCh)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), o.interval)
			o.mu.Lock()
			err := o.scanLocked(ctx)
			o.mu.Unlock()
			cancel()

			if err != nil {
				o.logger.Warn("live node scan failed", "error", err)
			}
		}
	}
}

func (o *Overseer) scanLocked(ctx context.Context) error {
	nodes, err := o.lister.LiveNodes(ctx)
	if err != nil {
		return err
	}
	slices.Sort(nodes)

	for _, n := range nodes {
		if !slices.Contains(o.nodes, n) {
			o.logger.Info("node joined", "node", n)
		}
	}
	for _, n := range o.nodes {
		if !slices.Contains(nodes, n) {
			o.logger.Info("node left", "node", n)
		}
	}

	o.nodes = nodes
	o.metrics.RecordLiveNodes(len(nodes))

	return nil
}
