// Package coordination implements a ZooKeeper-style session over NATS JetStream KV.
//
// A Session provides ephemeral and sequential-ephemeral entries on top of two
// KV buckets:
//
//   - an ephemeral bucket configured with a bucket-level TTL; entries owned by
//     the session are renewed by a keepalive loop, so a crashed process loses
//     its entries once the TTL elapses
//   - a persistent bucket holding the monotonically increasing sequence
//     counters used for sequential names
//
// Logical paths use "/" separators and map to "." separated KV keys (see Key).
package coordination

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/leadsync/internal/logging"
	"github.com/arloliu/leadsync/internal/metrics"
	"github.com/arloliu/leadsync/internal/natsutil"
	"github.com/arloliu/leadsync/types"
)

// Compile-time assertion that Session implements Coordinator.
var _ types.Coordinator = (*Session)(nil)

// ownedEntry is an ephemeral entry this session created and keeps alive.
type ownedEntry struct {
	data     []byte
	revision uint64
}

// Config tunes a Session.
type Config struct {
	// TTL is the ephemeral bucket's entry TTL. Zero disables the keepalive loop.
	TTL time.Duration

	// RenewInterval overrides the keepalive period (default TTL/3).
	RenewInterval time.Duration

	// OperationTimeout bounds each background KV call (default 5s).
	OperationTimeout time.Duration
}

// Session owns ephemeral entries in NATS KV and keeps them alive.
type Session struct {
	ephemeral jetstream.KeyValue
	counters  jetstream.KeyValue
	cfg       Config
	id        string
	logger    types.Logger
	metrics   types.MetricsCollector

	owned *xsync.Map[string, ownedEntry]

	mu      sync.Mutex
	started bool
	closed  bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a coordination session.
//
// Parameters:
//   - ephemeral: KV bucket with a bucket-level TTL holding ephemeral entries
//   - counters: Persistent KV bucket holding sequence counters
//   - cfg: Session tuning
//   - logger: Logger (nil for no-op)
//   - m: Metrics collector (nil for no-op)
//
// Returns:
//   - *Session: A session that must be started before its entries are renewed
//
// Example:
//
//	sess := coordination.New(ephemeralKV, stateKV, coordination.Config{TTL: 10 * time.Second}, logger, nil)
//	if err := sess.Start(ctx); err != nil {
//	    return err
//	}
//	defer sess.Close(ctx)
func New(ephemeral, counters jetstream.KeyValue, cfg Config, logger types.Logger, m types.MetricsCollector) *Session {
	if cfg.RenewInterval <= 0 && cfg.TTL > 0 {
		cfg.RenewInterval = cfg.TTL / 3
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 5 * time.Second
	}
	if m == nil {
		m = metrics.NewNop()
	}

	id := uuid.NewString()

	return &Session{
		ephemeral: ephemeral,
		counters:  counters,
		cfg:       cfg,
		id:        id,
		logger:    logging.With(logger, "session_id", id),
		metrics:   m,
		owned:     xsync.NewMap[string, ownedEntry](),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Start launches the keepalive loop.
//
// Returns:
//   - error: types.ErrAlreadyStarted or types.ErrSessionClosed
func (s *Session) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return types.ErrSessionClosed
	}
	if s.started {
		return types.ErrAlreadyStarted
	}
	s.started = true

	if s.cfg.RenewInterval <= 0 {
		close(s.doneCh)
		return nil
	}

	go s.keepaliveLoop()

	return nil
}

// Close stops the keepalive loop and deletes every entry the session owns.
//
// An entry whose revision moved on since the last renewal belongs to someone
// else and is left alone. Close is idempotent. Delete failures are logged; the entries then expire
// through the bucket TTL.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	wasStarted := s.started
	close(s.stopCh)
	s.mu.Unlock()

	if wasStarted {
		<-s.doneCh
	}

	var errs []error
	s.owned.Range(func(key string, e ownedEntry) bool {
		// Revision-checked so an entry recreated by another session survives.
		err := s.ephemeral.Delete(ctx, key, jetstream.LastRevision(e.revision))
		if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) && !errors.Is(err, jetstream.ErrKeyExists) {
			errs = append(errs, natsutil.Classify("delete", Path(key), err))
		}
		s.owned.Delete(key)

		return true
	})

	if len(errs) > 0 {
		s.logger.Warn("session closed with undeleted entries", "errors", len(errs))
		return errors.Join(errs...)
	}

	return nil
}

// CreateEphemeral atomically creates an ephemeral entry at path.
//
// Parameters:
//   - ctx: Context for the KV call
//   - path: Logical path
//   - data: Entry value
//
// Returns:
//   - error: types.ErrNodeExists when path is taken, types.ErrCoordinationUnavailable
//     on connectivity failures
func (s *Session) CreateEphemeral(ctx context.Context, path string, data []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	key, err := Key(path)
	if err != nil {
		return err
	}

	start := time.Now()
	rev, err := s.ephemeral.Create(ctx, key, data)
	s.metrics.RecordKVOperationDuration("create", time.Since(start).Seconds())
	if err != nil {
		return natsutil.Classify("create", path, err)
	}

	s.owned.Store(key, ownedEntry{data: data, revision: rev})

	return nil
}

// CreateEphemeralSequential creates an ephemeral entry named prefix-n_NNNNNNNNNN.
//
// The sequence comes from a counter shared by all entries under prefix's parent
// path, so names sort in creation order.
//
// Parameters:
//   - ctx: Context for the KV calls
//   - prefix: Logical path prefix, e.g. "leader_elect/c1/shard1/{candidateID}"
//   - data: Entry value
//
// Returns:
//   - string: Full logical path of the created entry
//   - error: Classified coordination error
func (s *Session) CreateEphemeralSequential(ctx context.Context, prefix string, data []byte) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}

	parentKey, err := Key(parentPath(prefix))
	if err != nil {
		return "", err
	}

	seq, err := s.nextSequence(ctx, counterKey(parentKey))
	if err != nil {
		return "", err
	}

	path := sequentialName(strings.Trim(prefix, "/"), seq)
	if err := s.CreateEphemeral(ctx, path, data); err != nil {
		return "", err
	}

	return path, nil
}

// nextSequence increments a counter with compare-and-set semantics.
func (s *Session) nextSequence(ctx context.Context, key string) (int64, error) {
	var seq int64

	op := func() error {
		entry, err := s.counters.Get(ctx, key)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			seq = 1
			if _, err := s.counters.Create(ctx, key, []byte("1")); err != nil {
				return s.retryable(err)
			}

			return nil
		}
		if err != nil {
			return s.retryable(err)
		}

		cur, err := strconv.ParseInt(string(entry.Value()), 10, 64)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("corrupt sequence counter %s: %w", key, err))
		}

		seq = cur + 1
		if _, err := s.counters.Update(ctx, key, []byte(strconv.FormatInt(seq, 10)), entry.Revision()); err != nil {
			return s.retryable(err)
		}

		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 10 * time.Second

	start := time.Now()
	err := backoff.Retry(op, backoff.WithContext(b, ctx))
	s.metrics.RecordKVOperationDuration("sequence", time.Since(start).Seconds())
	if err != nil {
		return 0, natsutil.Classify("sequence", Path(key), err)
	}

	return seq, nil
}

// retryable keeps CAS conflicts and connectivity errors in the retry loop.
func (s *Session) retryable(err error) error {
	if errors.Is(err, jetstream.ErrKeyExists) || natsutil.IsConnectivityError(err) {
		return err
	}

	return backoff.Permanent(err)
}

// Delete removes the entry at path. Deleting a missing entry is not an error.
//
// For an entry this session created, the delete is revision-checked: when
// another session has recreated the path since, its entry is kept.
func (s *Session) Delete(ctx context.Context, path string) error {
	key, err := Key(path)
	if err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		s.metrics.RecordKVOperationDuration("delete", time.Since(start).Seconds())
	}()

	if e, owned := s.owned.LoadAndDelete(key); owned {
		err = s.deleteOwned(ctx, key, e)
	} else {
		err = s.ephemeral.Delete(ctx, key)
	}
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return natsutil.Classify("delete", path, err)
	}

	return nil
}

// deleteOwned removes an owned entry only while it still carries this
// session's value. An entry recreated by another session is left alone.
func (s *Session) deleteOwned(ctx context.Context, key string, e ownedEntry) error {
	err := s.ephemeral.Delete(ctx, key, jetstream.LastRevision(e.revision))
	if !errors.Is(err, jetstream.ErrKeyExists) {
		return err
	}

	// A renewal may have bumped the revision after e was read.
	cur, err := s.ephemeral.Get(ctx, key)
	if err != nil {
		return err
	}
	if !bytes.Equal(cur.Value(), e.data) {
		s.logger.Debug("entry superseded by another session, not deleting", "key", key)
		return nil
	}

	err = s.ephemeral.Delete(ctx, key, jetstream.LastRevision(cur.Revision()))
	if errors.Is(err, jetstream.ErrKeyExists) {
		return nil
	}

	return err
}

// Exists reports whether path currently has a value.
func (s *Session) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.Get(ctx, path)
	if errors.Is(err, types.ErrNoNode) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// Get returns the value stored at path.
//
// Returns:
//   - []byte: Entry value
//   - error: types.ErrNoNode when absent
func (s *Session) Get(ctx context.Context, path string) ([]byte, error) {
	key, err := Key(path)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	entry, err := s.ephemeral.Get(ctx, key)
	s.metrics.RecordKVOperationDuration("get", time.Since(start).Seconds())
	if err != nil {
		return nil, natsutil.Classify("get", path, err)
	}

	return entry.Value(), nil
}

// Children lists the names of the direct children of path, sorted.
//
// Sequential names sort by sequence because the sequence is zero-padded and
// shares its prefix layout; callers that mix prefixes should sort with SequenceOf.
func (s *Session) Children(ctx context.Context, path string) ([]string, error) {
	key, err := Key(path)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		s.metrics.RecordKVOperationDuration("children", time.Since(start).Seconds())
	}()

	watcher, err := s.ephemeral.Watch(ctx, key+".*", jetstream.IgnoreDeletes(), jetstream.MetaOnly())
	if err != nil {
		return nil, natsutil.Classify("children", path, err)
	}
	defer func() { _ = watcher.Stop() }()

	var names []string
	for {
		select {
		case <-ctx.Done():
			return nil, natsutil.Classify("children", path, ctx.Err())
		case entry, ok := <-watcher.Updates():
			if !ok || entry == nil {
				sort.Strings(names)
				return names, nil
			}
			names = append(names, strings.TrimPrefix(entry.Key(), key+"."))
		}
	}
}

// WatchChildren signals on every change below path until ctx is cancelled.
//
// Signals are coalesced: the channel has capacity one and a pending signal
// absorbs later ones. Expiry through the bucket TTL produces no signal, so
// callers must also poll.
func (s *Session) WatchChildren(ctx context.Context, path string) (<-chan struct{}, error) {
	key, err := Key(path)
	if err != nil {
		return nil, err
	}

	watcher, err := s.ephemeral.Watch(ctx, key+".*", jetstream.UpdatesOnly(), jetstream.MetaOnly())
	if err != nil {
		return nil, natsutil.Classify("watch", path, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer func() { _ = watcher.Stop() }()

		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if entry == nil {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out, nil
}

// Owns reports whether the session currently keeps path alive.
func (s *Session) Owns(path string) bool {
	key, err := Key(path)
	if err != nil {
		return false
	}
	_, ok := s.owned.Load(key)

	return ok
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return types.ErrSessionClosed
	}

	return nil
}

// keepaliveLoop renews owned entries until Close.
func (s *Session) keepaliveLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.RenewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.renewAll()
		}
	}
}

func (s *Session) renewAll() {
	s.owned.Range(func(key string, e ownedEntry) bool {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.OperationTimeout)
		rev, err := s.ephemeral.Update(ctx, key, e.data, e.revision)
		cancel()

		switch {
		case err == nil:
			// Skip if the entry was deleted concurrently.
			if _, ok := s.owned.Load(key); ok {
				s.owned.Store(key, ownedEntry{data: e.data, revision: rev})
			}
		case natsutil.IsConnectivityError(err):
			s.logger.Warn("failed to renew ephemeral entry", "key", key, "error", err)
		default:
			if _, ok := s.owned.LoadAndDelete(key); ok {
				s.metrics.RecordEphemeralLost()
				s.logger.Error("ephemeral entry lost", "key", key, "error", err)
			}
		}

		return true
	})
}
