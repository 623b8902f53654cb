// Package replica provides an in-memory replica core.
package replica

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arloliu/leadsync/types"
)

// ErrInvalidVersion is returned by Apply for updates without a positive version.
var ErrInvalidVersion = errors.New("update version must be positive")

// versionClockShift leaves room for about a million appends per millisecond.
const versionClockShift = 20

// MemoryCore is a types.Core keeping its update log in memory.
//
// Versions are unique; applying an update whose version is already present is
// a no-op, so reconciliation can be repeated safely.
//
// Local versions come from the wall clock in milliseconds shifted left by
// versionClockShift, so appends on different replicas at different instants
// never share a version. Updates the shard leader forwards keep the leader's
// version and go through Apply.
type MemoryCore struct {
	name string
	now  func() time.Time

	mu      sync.RWMutex
	updates map[int64]types.Update
	latest  int64
}

// Compile-time assertion that MemoryCore implements Core.
var _ types.Core = (*MemoryCore)(nil)

// NewMemory creates an empty in-memory core.
//
// Parameters:
//   - name: Core name, the last segment of the core URL
//
// Returns:
//   - *MemoryCore: Empty core
func NewMemory(name string) *MemoryCore {
	return &MemoryCore{name: name, now: time.Now, updates: make(map[int64]types.Update)}
}

// Name returns the core name.
func (c *MemoryCore) Name() string {
	return c.name
}

// Append records a locally indexed update under a new version: the clock
// version, or latest+1 when the clock has not moved past the newest version.
//
// Parameters:
//   - id: Document identifier
//   - payload: Document body (may be nil)
//
// Returns:
//   - types.Update: The stored update with its assigned version
func (c *MemoryCore) Append(id string, payload json.RawMessage) types.Update {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latest = max(c.latest+1, c.now().UnixMilli()<<versionClockShift)
	u := types.Update{Version: c.latest, ID: id, Payload: payload}
	c.updates[u.Version] = u

	return u
}

// RecentVersions returns up to n versions, newest first.
func (c *MemoryCore) RecentVersions(n int) []int64 {
	if n <= 0 {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	versions := make([]int64, 0, len(c.updates))
	for v := range c.updates {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] > versions[j] })

	if len(versions) > n {
		versions = versions[:n]
	}

	return versions
}

// Updates returns the stored updates for versions, skipping unknown ones.
func (c *MemoryCore) Updates(versions []int64) []types.Update {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.Update, 0, len(versions))
	for _, v := range versions {
		if u, ok := c.updates[v]; ok {
			out = append(out, u)
		}
	}

	return out
}

// Apply stores updates pulled from a peer.
//
// Returns:
//   - error: ErrInvalidVersion if any update has a non-positive version; in
//     that case nothing is applied
func (c *MemoryCore) Apply(updates []types.Update) error {
	for _, u := range updates {
		if u.Version <= 0 {
			return fmt.Errorf("%w: id=%s version=%d", ErrInvalidVersion, u.ID, u.Version)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, u := range updates {
		if _, ok := c.updates[u.Version]; ok {
			continue
		}
		c.updates[u.Version] = u
		if u.Version > c.latest {
			c.latest = u.Version
		}
	}

	return nil
}

// Len returns the number of stored updates.
func (c *MemoryCore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.updates)
}
