// Package authors resolves commit author identities to display names.
package authors

import (
	"context"
	"strings"
	"sync"

	"github.com/Bada35/Write-With-Jira/internal/metrics"
	"go.uber.org/zap"
)

const (
	// ModeRaw passes author names through unchanged.
	ModeRaw = "raw"
	// ModeLookup treats author names as handles and asks the user directory.
	ModeLookup = "lookup"
)

// Directory resolves a handle to a display name. The boolean is false when
// the handle is unknown.
type Directory interface {
	LookupDisplayName(ctx context.Context, handle string) (string, bool, error)
}

// Cache memoizes handle to display name for one run. Entries are never
// replaced or evicted.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]string)}
}

// Get returns the memoized name for handle.
func (c *Cache) Get(handle string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.entries[handle]
	return name, ok
}

// Store records name for handle unless one is already present and returns
// the value now cached.
func (c *Cache) Store(handle, name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[handle]; ok {
		return existing
	}
	c.entries[handle] = name
	return name
}

// Len returns the number of memoized handles.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Resolver maps raw author identities to display names. It never fails; the
// raw identity is the fallback.
type Resolver struct {
	mode      string
	directory Directory
	cache     *Cache
	logger    *zap.Logger
	recorder  *metrics.Recorder
}

// NewResolver creates a resolver. A nil cache gets a fresh one.
func NewResolver(mode string, directory Directory, cache *Cache, logger *zap.Logger, recorder *metrics.Recorder) *Resolver {
	if cache == nil {
		cache = NewCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		mode:      mode,
		directory: directory,
		cache:     cache,
		logger:    logger,
		recorder:  recorder,
	}
}

// Resolve returns the display name for raw.
func (r *Resolver) Resolve(ctx context.Context, raw string) string {
	if r.mode != ModeLookup || r.directory == nil || strings.TrimSpace(raw) == "" {
		return raw
	}
	if name, ok := r.cache.Get(raw); ok {
		r.recorder.AuthorLookup("hit")
		return name
	}

	name, found, err := r.directory.LookupDisplayName(ctx, raw)
	switch {
	case err != nil:
		r.logger.Debug("author lookup failed, using raw identity", zap.String("handle", raw), zap.Error(err))
		r.recorder.AuthorLookup("fallback")
		name = raw
	case !found || strings.TrimSpace(name) == "":
		r.recorder.AuthorLookup("fallback")
		name = raw
	default:
		r.recorder.AuthorLookup("miss")
	}
	return r.cache.Store(raw, name)
}
