package peersync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/leadsync/internal/logging"
	"github.com/arloliu/leadsync/types"
)

// maxVersionsPerRequest caps the n parameter of GET /versions.
const maxVersionsPerRequest = 10000

// CoreRegistry holds the cores served by this process.
type CoreRegistry struct {
	cores *xsync.Map[string, types.Core]
}

// NewCoreRegistry creates an empty registry.
func NewCoreRegistry() *CoreRegistry {
	return &CoreRegistry{cores: xsync.NewMap[string, types.Core]()}
}

// Register adds core under its name, replacing any previous core of that name.
func (r *CoreRegistry) Register(core types.Core) {
	r.cores.Store(core.Name(), core)
}

// Unregister removes the core named name.
func (r *CoreRegistry) Unregister(name string) {
	r.cores.Delete(name)
}

// Get returns the core named name.
func (r *CoreRegistry) Get(name string) (types.Core, bool) {
	return r.cores.Load(name)
}

// HandlerConfig tunes a Handler.
type HandlerConfig struct {
	// RecentUpdates is the window used when reconciling against a leader.
	RecentUpdates int

	// SyncTimeout bounds one asynchronous reconciliation.
	SyncTimeout time.Duration
}

// Handler serves the version exchange for the cores in a registry.
type Handler struct {
	registry *CoreRegistry
	client   types.PeerClient
	cfg      HandlerConfig
	logger   types.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewHandler creates the peer endpoint handler.
//
// Parameters:
//   - registry: Cores served by this process
//   - client: Client used to reconcile against a leader on POST /sync
//   - cfg: Handler tuning (RecentUpdates default 1000, SyncTimeout default 30s)
//   - logger: Logger (nil for no-op)
//
// Returns:
//   - *Handler: Handler whose Routes are mounted at the node's base URL path
//
// Example:
//
//	h := peersync.NewHandler(registry, peersync.NewHTTPClient(nil, logger), peersync.HandlerConfig{}, logger)
//	router.Mount("/solr", h.Routes())
func NewHandler(registry *CoreRegistry, client types.PeerClient, cfg HandlerConfig, logger types.Logger) *Handler {
	if cfg.RecentUpdates <= 0 {
		cfg.RecentUpdates = 1000
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = 30 * time.Second
	}

	return &Handler{
		registry: registry,
		client:   client,
		cfg:      cfg,
		logger:   logging.With(logger, "component", "peersync"),
	}
}

// Routes returns the chi router serving the peer endpoints.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/{core}/versions", h.handleVersions)
	r.Get("/{core}/updates", h.handleUpdates)
	r.Post("/{core}/sync", h.handleSync)

	return r
}

// Wait blocks until every reconciliation started by POST /sync has finished.
//
// Wait does not stop new reconciliations from starting; use Close for shutdown.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// Close rejects further POST /sync requests with 503 and waits for the
// reconciliations already started. Closing twice is safe.
func (h *Handler) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	h.wg.Wait()
}

func (h *Handler) core(w http.ResponseWriter, r *http.Request) (types.Core, bool) {
	name := chi.URLParam(r, "core")
	core, ok := h.registry.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", types.ErrCoreNotFound, name))
		return nil, false
	}

	return core, true
}

func (h *Handler) handleVersions(w http.ResponseWriter, r *http.Request) {
	core, ok := h.core(w, r)
	if !ok {
		return
	}

	n := h.cfg.RecentUpdates
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid n %q", raw))
			return
		}
		n = min(parsed, maxVersionsPerRequest)
	}

	versions := core.RecentVersions(n)
	if versions == nil {
		versions = []int64{}
	}

	writeJSON(w, http.StatusOK, VersionsResponse{Core: core.Name(), Versions: versions})
}

func (h *Handler) handleUpdates(w http.ResponseWriter, r *http.Request) {
	core, ok := h.core(w, r)
	if !ok {
		return
	}

	versions, err := parseVersions(r.URL.Query().Get("v"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, UpdatesResponse{Core: core.Name(), Updates: core.Updates(versions)})
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	core, ok := h.core(w, r)
	if !ok {
		return
	}

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("malformed sync request: %w", err))
		return
	}
	if req.Leader == "" {
		writeError(w, http.StatusBadRequest, errors.New("leader is required"))
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		writeError(w, http.StatusServiceUnavailable, errors.New("node is shutting down"))

		return
	}
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		h.reconcile(core, req.Leader)
	}()

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) reconcile(core types.Core, leaderURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SyncTimeout)
	defer cancel()

	fresh, err := h.client.CompareVersions(ctx, core, leaderURL, h.cfg.RecentUpdates)
	switch {
	case err != nil:
		h.logger.Warn("reconcile against leader failed", "core", core.Name(), "leader", leaderURL, "error", err)
	case !fresh:
		h.logger.Warn("core still behind leader after reconcile", "core", core.Name(), "leader", leaderURL)
	default:
		h.logger.Info("core reconciled against leader", "core", core.Name(), "leader", leaderURL)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
