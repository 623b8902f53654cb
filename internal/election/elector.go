package election

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/leadsync/internal/coordination"
	"github.com/arloliu/leadsync/internal/logging"
	"github.com/arloliu/leadsync/types"
)

// Defaults for Config.
const (
	DefaultPollInterval  = time.Second
	DefaultRetryInterval = 50 * time.Millisecond
	DefaultMaxRetries    = 10
)

// ErrAlreadyJoined is returned when a candidate ID joins twice.
var ErrAlreadyJoined = errors.New("candidate already joined")

// Session is the subset of the coordination session used by the queue.
type Session interface {
	CreateEphemeralSequential(ctx context.Context, prefix string, data []byte) (string, error)
	Delete(ctx context.Context, path string) error
	Children(ctx context.Context, path string) ([]string, error)
	WatchChildren(ctx context.Context, path string) (<-chan struct{}, error)
}

// Config tunes an Elector.
type Config struct {
	// PollInterval is the period of the fallback queue check.
	PollInterval time.Duration

	// RetryInterval is the initial backoff when creating a token fails.
	RetryInterval time.Duration

	// MaxRetries bounds token creation attempts per enrollment.
	MaxRetries int
}

// Elector runs the election queues of the candidates of one process.
//
// All methods are safe for concurrent use. Rejoin may be called from inside a
// LeaderProcess.Run.
type Elector struct {
	session Session
	cfg     Config
	logger  types.Logger

	candidates *xsync.Map[string, *candidate]
}

// Compile-time assertion that Elector accepts re-enrollment requests.
var _ types.Rejoiner = (*Elector)(nil)

type candidate struct {
	process types.LeaderProcess
	core    types.Core
	logger  types.Logger

	cancel context.CancelFunc
	done   chan struct{}
	kick   chan struct{}

	rejoin atomic.Bool

	// Owned by the candidate goroutine after Join returns.
	sawPredecessor bool
	rejoined       bool
	ranToken       string

	mu    sync.Mutex
	token string
}

func (c *candidate) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.token
}

func (c *candidate) setToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *candidate) poke() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// New creates an elector.
//
// Parameters:
//   - session: Coordination session creating and listing tokens
//   - cfg: Tuning (zero values take the package defaults)
//   - logger: Logger (nil for no-op)
//
// Returns:
//   - *Elector: Elector with no candidates
func New(session Session, cfg Config, logger types.Logger) *Elector {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	return &Elector{
		session:    session,
		cfg:        cfg,
		logger:     logging.With(logger, "component", "election"),
		candidates: xsync.NewMap[string, *candidate](),
	}
}

// Join enrolls process in the election of its slot.
//
// The token is created before Join returns; the queue is then watched in a
// background goroutine that outlives ctx and stops on Leave or Close.
//
// Parameters:
//   - ctx: Context for the initial token creation
//   - process: Leader process run when the candidate reaches the front
//   - core: Local core passed to the process, may be nil
//
// Returns:
//   - error: ErrAlreadyJoined, or the token creation failure
func (e *Elector) Join(ctx context.Context, process types.LeaderProcess, core types.Core) error {
	slot := process.Slot()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &candidate{
		process: process,
		core:    core,
		logger:  logging.With(e.logger, slot.LogFields()...),
		cancel:  cancel,
		done:    make(chan struct{}),
		kick:    make(chan struct{}, 1),
	}

	if _, loaded := e.candidates.LoadOrStore(slot.CandidateID, c); loaded {
		cancel()
		return fmt.Errorf("%w: %s", ErrAlreadyJoined, slot.CandidateID)
	}

	if err := e.enroll(ctx, c); err != nil {
		e.candidates.Delete(slot.CandidateID)
		cancel()

		return err
	}

	go e.run(runCtx, c)

	return nil
}

// Rejoin asks the candidate's goroutine to enroll again with a fresh token.
//
// When called from inside Run the request is served right after Run returns.
func (e *Elector) Rejoin(_ context.Context, candidateID string) error {
	c, ok := e.candidates.Load(candidateID)
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownCandidate, candidateID)
	}

	c.rejoin.Store(true)
	c.poke()

	return nil
}

// Leave stops the candidate's goroutine and deletes its token.
//
// Leave waits for an in-flight Run to observe cancellation.
func (e *Elector) Leave(ctx context.Context, candidateID string) error {
	c, ok := e.candidates.LoadAndDelete(candidateID)
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownCandidate, candidateID)
	}

	c.cancel()
	select {
	case <-c.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if token := c.currentToken(); token != "" {
		if err := e.session.Delete(ctx, token); err != nil {
			return fmt.Errorf("failed to delete election token: %w", err)
		}
	}

	return nil
}

// Close makes every candidate leave.
func (e *Elector) Close(ctx context.Context) error {
	var errs []error
	e.candidates.Range(func(id string, _ *candidate) bool {
		if err := e.Leave(ctx, id); err != nil && !errors.Is(err, types.ErrUnknownCandidate) {
			errs = append(errs, err)
		}

		return true
	})

	return errors.Join(errs...)
}

// Token returns the candidate's current election token.
func (e *Elector) Token(candidateID string) (string, bool) {
	c, ok := e.candidates.Load(candidateID)
	if !ok {
		return "", false
	}
	token := c.currentToken()

	return token, token != ""
}

// enroll creates a fresh token for c, retrying with backoff.
func (e *Elector) enroll(ctx context.Context, c *candidate) error {
	slot := c.process.Slot()

	data, err := json.Marshal(slot.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal candidate metadata: %w", err)
	}

	prefix := slot.ElectionPath + "/" + slot.CandidateID

	var token string
	op := func() error {
		t, err := e.session.CreateEphemeralSequential(ctx, prefix, data)
		if err != nil {
			if errors.Is(err, types.ErrSessionClosed) || errors.Is(err, coordination.ErrInvalidPath) {
				return backoff.Permanent(err)
			}
			c.logger.Warn("failed to create election token, retrying", "error", err)

			return err
		}
		token = t

		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.RetryInterval
	b.MaxInterval = 20 * e.cfg.RetryInterval
	//nolint:gosec // MaxRetries is validated positive
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.cfg.MaxRetries)), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("failed to enroll in election %s: %w", slot.ElectionPath, err)
	}

	c.setToken(token)
	c.logger.Info("joined election", "token", token)

	return nil
}

// run is the per-candidate goroutine.
func (e *Elector) run(ctx context.Context, c *candidate) {
	defer close(c.done)

	electionPath := c.process.Slot().ElectionPath

	changes, err := e.session.WatchChildren(ctx, electionPath)
	if err != nil {
		c.logger.Warn("election watch unavailable, polling only", "error", err)
	}

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		e.check(ctx, c)

		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				changes = nil
			}
		case <-c.kick:
		case <-ticker.C:
		}
	}
}

// check inspects the queue once and runs the process when c is front.
func (e *Elector) check(ctx context.Context, c *candidate) {
	if ctx.Err() != nil {
		return
	}

	if c.rejoin.Swap(false) {
		e.reenroll(ctx, c, "rejoin requested")
		return
	}

	token := c.currentToken()
	if token == "" {
		e.reenroll(ctx, c, "no election token")
		return
	}

	slot := c.process.Slot()
	children, err := e.session.Children(ctx, slot.ElectionPath)
	if err != nil {
		c.logger.Warn("failed to list election queue", "error", err)
		return
	}

	own := path.Base(token)
	if !slices.Contains(children, own) {
		c.setToken("")
		e.reenroll(ctx, c, "election token vanished")

		return
	}

	if front(children) != own {
		c.sawPredecessor = true
		return
	}
	if c.ranToken == token {
		return
	}

	replacement := c.sawPredecessor || c.rejoined
	c.ranToken = token

	c.logger.Info("front of election queue", "token", token, "replacement", replacement)
	state := c.process.Run(ctx, token, replacement, c.core)
	c.logger.Info("leader process finished", "token", token, "state", state.String())

	if c.rejoin.Load() {
		c.poke()
	}
}

// reenroll replaces c's token with a fresh one at the back of the queue.
func (e *Elector) reenroll(ctx context.Context, c *candidate, reason string) {
	if old := c.currentToken(); old != "" {
		if err := e.session.Delete(ctx, old); err != nil {
			c.logger.Warn("failed to delete previous election token", "token", old, "error", err)
		}
		c.setToken("")
	}

	c.logger.Info("re-enrolling in election", "reason", reason)
	c.sawPredecessor = false
	c.rejoined = true

	if err := e.enroll(ctx, c); err != nil {
		c.logger.Error("failed to re-enroll in election", "error", err)
		return
	}

	c.poke()
}

// front returns the child with the lowest sequence.
func front(children []string) string {
	best := ""
	var bestSeq int64
	for _, name := range children {
		seq, ok := coordination.SequenceOf(name)
		if !ok {
			continue
		}
		if best == "" || seq < bestSeq {
			best, bestSeq = name, seq
		}
	}

	return best
}
