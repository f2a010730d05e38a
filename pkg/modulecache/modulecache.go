// Package modulecache caches compiled WASM modules in memory, keyed by
// the content hash of their bytecode, with an optional on-disk mirror
// backed by wazero's own compilation cache so a restart does not have to
// recompile every module from scratch.
package modulecache

import (
	"context"
	"crypto/sha256"
	"sync"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/orama-labs/wasmrt/pkg/wasmerrors"
)

// Key is a content hash identifying a compiled module.
type Key [32]byte

// HashBytes derives the cache Key for a module's bytecode.
func HashBytes(wasmBytes []byte) Key {
	return sha256.Sum256(wasmBytes)
}

// entry pairs a compiled module with a diagnostic ID minted when it was
// inserted, so log lines about a particular cache entry (hit, evict,
// close-failed) can be correlated across time without printing the full
// 32-byte content hash every time.
type entry struct {
	module       wazero.CompiledModule
	diagnosticID string
}

// Cache holds compiled modules in memory, bounded by capacity, evicting
// on overflow. With an on-disk compilation cache attached (see
// NewOnDisk), a miss here still avoids recompiling bytecode wazero has
// already seen.
type Cache struct {
	mu       sync.RWMutex
	modules  map[Key]entry
	capacity int
	logger   *zap.Logger
}

// New creates a Cache with the given capacity. A non-positive capacity
// means unbounded.
func New(capacity int, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		modules:  make(map[Key]entry),
		capacity: capacity,
		logger:   logger,
	}
}

// Get retrieves a compiled module by key.
func (c *Cache) Get(key Key) (wazero.CompiledModule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.modules[key]
	return e.module, ok
}

// Set stores a compiled module under key, evicting an arbitrary entry if
// the cache is at capacity. A second Set for an already-present key is a
// no-op (the first compilation wins; callers that recompiled anyway are
// responsible for closing their redundant copy).
func (c *Cache) Set(key Key, module wazero.CompiledModule) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.modules[key]; exists {
		return
	}
	if c.capacity > 0 && len(c.modules) >= c.capacity {
		c.evictLocked()
	}
	id := uuid.NewString()
	c.modules[key] = entry{module: module, diagnosticID: id}
	c.logger.Debug("module cached", zap.Binary("key", key[:]), zap.String("diagnostic_id", id), zap.Int("size", len(c.modules)))
}

// Delete removes and closes the module stored under key, if any.
func (c *Cache) Delete(ctx context.Context, key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, exists := c.modules[key]; exists {
		if err := e.module.Close(ctx); err != nil {
			c.logger.Warn("failed to close evicted module", zap.Binary("key", key[:]), zap.String("diagnostic_id", e.diagnosticID), zap.Error(err))
		}
		delete(c.modules, key)
	}
}

// Has reports whether key is present.
func (c *Cache) Has(key Key) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.modules[key]
	return ok
}

// Stats returns the current size and configured capacity.
func (c *Cache) Stats() (size, capacity int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.modules), c.capacity
}

// Clear closes and removes every cached module.
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.modules {
		if err := e.module.Close(ctx); err != nil {
			c.logger.Warn("failed to close module during clear", zap.Binary("key", key[:]), zap.Error(err))
		}
	}
	c.modules = make(map[Key]entry)
}

// evictLocked removes an arbitrary entry; callers hold c.mu.
func (c *Cache) evictLocked() {
	for key, e := range c.modules {
		_ = e.module.Close(context.Background())
		delete(c.modules, key)
		c.logger.Debug("evicted module from cache", zap.Binary("key", key[:]), zap.String("diagnostic_id", e.diagnosticID))
		return
	}
}

// GetOrCompile returns the cached module for key, compiling it with
// compile (which wazero also consults its own on-disk compilation cache
// for, if one is configured on the runtime) when absent. compile runs
// without the cache lock held so a slow compilation never blocks
// unrelated lookups.
func (c *Cache) GetOrCompile(key Key, compile func() (wazero.CompiledModule, error)) (wazero.CompiledModule, error) {
	c.mu.RLock()
	if e, exists := c.modules[key]; exists {
		c.mu.RUnlock()
		return e.module, nil
	}
	c.mu.RUnlock()

	m, err := compile()
	if err != nil {
		return nil, wasmerrors.NewCompilationError(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, exists := c.modules[key]; exists {
		_ = m.Close(context.Background())
		return existing.module, nil
	}
	if c.capacity > 0 && len(c.modules) >= c.capacity {
		c.evictLocked()
	}
	id := uuid.NewString()
	c.modules[key] = entry{module: m, diagnosticID: id}
	c.logger.Debug("module compiled and cached", zap.Binary("key", key[:]), zap.String("diagnostic_id", id), zap.Int("size", len(c.modules)))
	return m, nil
}
