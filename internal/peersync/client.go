package peersync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/leadsync/internal/logging"
	"github.com/arloliu/leadsync/types"
)

// Compile-time assertion that HTTPClient implements PeerClient.
var _ types.PeerClient = (*HTTPClient)(nil)

// HTTPClient talks to peer cores over JSON/HTTP.
type HTTPClient struct {
	http   *http.Client
	logger types.Logger
}

// NewHTTPClient creates a peer client.
//
// Per-call deadlines come from the request context; httpClient's own Timeout
// is only a backstop.
//
// Parameters:
//   - httpClient: HTTP client (nil uses a client with a 10s timeout)
//   - logger: Logger (nil for no-op)
//
// Returns:
//   - *HTTPClient: Client ready for use
func NewHTTPClient(httpClient *http.Client, logger types.Logger) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &HTTPClient{http: httpClient, logger: logger}
}

// CompareVersions reconciles core against the peer at peerURL.
//
// The peer's newest recentUpdates versions are fetched; versions missing from
// core are pulled and applied. The result is true when core holds every one of
// them afterwards.
//
// Parameters:
//   - ctx: Context bounding all calls to the peer
//   - core: Local core to reconcile
//   - peerURL: Peer core URL
//   - recentUpdates: Number of newest peer versions to compare
//
// Returns:
//   - bool: true if core is at least as fresh as the peer's recent window
//   - error: Wraps types.ErrPeerUnreachable when the peer produced no version
//     list; a failed pull after versions were compared is reported as false, nil
func (c *HTTPClient) CompareVersions(ctx context.Context, core types.Core, peerURL string, recentUpdates int) (bool, error) {
	var versions VersionsResponse
	q := url.Values{"n": {strconv.Itoa(recentUpdates)}}
	if err := c.getJSON(ctx, peerURL+"/versions?"+q.Encode(), &versions); err != nil {
		return false, err
	}

	missing := missingVersions(core, versions.Versions)
	if len(missing) == 0 {
		return true, nil
	}

	var updates UpdatesResponse
	if err := c.getJSON(ctx, peerURL+"/updates?v="+joinVersions(missing), &updates); err != nil {
		c.logger.Warn("failed to pull missing updates", "peer", peerURL, "missing", len(missing), "error", err)
		return false, nil
	}

	if err := core.Apply(updates.Updates); err != nil {
		c.logger.Warn("failed to apply pulled updates", "peer", peerURL, "error", err)
		return false, nil
	}

	stillMissing := missingVersions(core, missing)
	if len(stillMissing) > 0 {
		c.logger.Warn("peer did not return all missing updates", "peer", peerURL, "missing", len(stillMissing))
		return false, nil
	}

	c.logger.Debug("pulled missing updates", "peer", peerURL, "count", len(missing))

	return true, nil
}

// RequestSync asks the peer at peerURL to reconcile against leaderURL.
func (c *HTTPClient) RequestSync(ctx context.Context, peerURL, leaderURL string) error {
	body, err := json.Marshal(SyncRequest{Leader: leaderURL})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, peerURL+"/sync", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", types.ErrPeerUnreachable, peerURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sync request to %s: http %d", peerURL, resp.StatusCode)
	}

	return nil
}

func (c *HTTPClient) getJSON(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", types.ErrPeerUnreachable, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s: http %d", types.ErrPeerUnreachable, target, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: malformed body: %w", types.ErrPeerUnreachable, target, err)
	}

	return nil
}

// missingVersions returns the versions core does not hold.
func missingVersions(core types.Core, versions []int64) []int64 {
	if len(versions) == 0 {
		return nil
	}

	have := make(map[int64]struct{}, len(versions))
	for _, u := range core.Updates(versions) {
		have[u.Version] = struct{}{}
	}

	var missing []int64
	for _, v := range versions {
		if _, ok := have[v]; !ok {
			missing = append(missing, v)
		}
	}

	return missing
}

func joinVersions(versions []int64) string {
	parts := make([]string, len(versions))
	for i, v := range versions {
		parts[i] = strconv.FormatInt(v, 10)
	}

	return strings.Join(parts, ",")
}

func parseVersions(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid version %q: %w", p, err)
		}
		out = append(out, v)
	}

	return out, nil
}
