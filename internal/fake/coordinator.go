// Package fake provides in-memory collaborators for leadership tests.
//
// Every fake records the calls it receives in a shared, ordered Journal so
// tests can assert cross-collaborator ordering such as "status published
// before pointer claimed".
package fake

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/arloliu/leadsync/types"
)

// Journal is an ordered, concurrency-safe log of collaborator calls.
type Journal struct {
	mu      sync.Mutex
	entries []string
}

// Record appends a formatted entry.
func (j *Journal) Record(format string, args ...any) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

// Entries returns a copy of the recorded entries.
func (j *Journal) Entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	return append([]string(nil), j.entries...)
}

// Index returns the position of the first entry equal to e, or -1.
func (j *Journal) Index(e string) int {
	for i, got := range j.Entries() {
		if got == e {
			return i
		}
	}

	return -1
}

// Count returns how many entries start with prefix.
func (j *Journal) Count(prefix string) int {
	n := 0
	for _, got := range j.Entries() {
		if strings.HasPrefix(got, prefix) {
			n++
		}
	}

	return n
}

// Coordinator is an in-memory types.Coordinator.
type Coordinator struct {
	Journal *Journal

	// CreateErr, when set, is returned by CreateEphemeral for matching paths.
	CreateErr func(path string) error

	// DeleteErr, when set, is returned by Delete for matching paths.
	DeleteErr func(path string) error

	// AfterDelete runs after a successful Delete, outside the lock.
	AfterDelete func(path string)

	mu      sync.Mutex
	entries map[string][]byte
}

var _ types.Coordinator = (*Coordinator)(nil)

// NewCoordinator creates an empty coordinator writing to j.
func NewCoordinator(j *Journal) *Coordinator {
	return &Coordinator{Journal: j, entries: make(map[string][]byte)}
}

// Set stores a value directly, bypassing the journal.
func (c *Coordinator) Set(path string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = data
}

// Paths returns all stored paths, sorted.
func (c *Coordinator) Paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.entries))
	for p := range c.entries {
		out = append(out, p)
	}
	sort.Strings(out)

	return out
}

// Has reports whether path is stored.
func (c *Coordinator) Has(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[path]

	return ok
}

// CreateEphemeral implements types.Coordinator.
func (c *Coordinator) CreateEphemeral(_ context.Context, path string, data []byte) error {
	c.Journal.Record("create %s", path)
	if c.CreateErr != nil {
		if err := c.CreateErr(path); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[path]; ok {
		return fmt.Errorf("create %s: %w", path, types.ErrNodeExists)
	}
	c.entries[path] = data

	return nil
}

// Delete implements types.Coordinator.
func (c *Coordinator) Delete(_ context.Context, path string) error {
	c.Journal.Record("delete %s", path)
	if c.DeleteErr != nil {
		if err := c.DeleteErr(path); err != nil {
			return err
		}
	}

	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()

	if c.AfterDelete != nil {
		c.AfterDelete(path)
	}

	return nil
}

// Exists implements types.Coordinator.
func (c *Coordinator) Exists(_ context.Context, path string) (bool, error) {
	return c.Has(path), nil
}

// Get implements types.Coordinator.
func (c *Coordinator) Get(_ context.Context, path string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.entries[path]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", path, types.ErrNoNode)
	}

	return data, nil
}
