// Package wasmengine hosts the wazero runtime that compiles and runs
// guest WASM modules: it owns the module cache, the metering listener,
// and the instantiate/call/close lifecycle every host application drives
// through Engine and Instance.
package wasmengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/orama-labs/wasmrt/pkg/instancepool"
	"github.com/orama-labs/wasmrt/pkg/modulecache"
	"github.com/orama-labs/wasmrt/pkg/wasmerrors"
	"github.com/orama-labs/wasmrt/pkg/wasminstance"
)

// DefaultPoolAcquireTimeout bounds how long Acquire waits for a pooled
// instance to free up before giving up and reporting exhaustion.
const DefaultPoolAcquireTimeout = 5 * time.Second

// Engine owns a wazero runtime, its compiled-module cache, and whatever
// host functions have been registered on it. One Engine is normally
// shared across every guest module a process runs.
type Engine struct {
	runtime   wazero.Runtime
	config    *Config
	cache     *modulecache.Cache
	diskCache wazero.CompilationCache
	logger    *zap.Logger

	poolsMu sync.Mutex
	pools   map[modulecache.Key]*instancepool.Pool
}

// Option configures an Engine at construction time.
type Option func(*engineOptions)

type engineOptions struct {
	hostModuleName string
	registerHost   func(wazero.HostModuleBuilder)
}

// WithHostFunctions registers host functions under the given module
// namespace (e.g. "env") using the supplied registration callback, which
// receives the engine's HostModuleBuilder to attach exports to.
func WithHostFunctions(moduleName string, register func(wazero.HostModuleBuilder)) Option {
	return func(o *engineOptions) {
		o.hostModuleName = moduleName
		o.registerHost = register
	}
}

// New creates an Engine. If cfg is nil, DefaultConfig is used. If
// cfg.CachePath is set, compiled machine code is mirrored to disk via
// wazero's own compilation cache so a later process reusing the same
// directory skips recompilation entirely.
func New(ctx context.Context, cfg *Config, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// NaN canonicalization itself has no public RuntimeConfig toggle:
	// wazero's compiler already produces the single canonical NaN bit
	// pattern the WASM spec requires, so cfg.CanonicalizeNaNs documents
	// the guarantee rather than switching anything on or off here.
	runtimeConfig := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true).
		WithMemoryMaxPages(cfg.StaticMemoryBoundPages)

	var diskCache wazero.CompilationCache
	if cfg.CachePath != "" {
		dc, err := modulecache.NewOnDiskCompilationCache(cfg.CachePath)
		if err != nil {
			return nil, err
		}
		diskCache = dc
		runtimeConfig = runtimeConfig.WithCompilationCache(dc)
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, wasmerrors.NewInstantiationError(fmt.Errorf("instantiate wasi_snapshot_preview1: %w", err))
	}

	e := &Engine{
		runtime:   runtime,
		config:    cfg,
		cache:     modulecache.New(cfg.ModuleCacheCapacity, logger),
		logger:    logger,
		diskCache: diskCache,
		pools:     make(map[modulecache.Key]*instancepool.Pool),
	}

	var built engineOptions
	for _, opt := range opts {
		opt(&built)
	}
	if built.registerHost != nil {
		moduleName := built.hostModuleName
		if moduleName == "" {
			moduleName = "env"
		}
		builder := runtime.NewHostModuleBuilder(moduleName)
		built.registerHost(builder)
		if _, err := builder.Instantiate(ctx); err != nil {
			runtime.Close(ctx)
			return nil, wasmerrors.NewInstantiationError(fmt.Errorf("instantiate host module %q: %w", moduleName, err))
		}
	}

	return e, nil
}

// Runtime exposes the underlying wazero runtime, for packages (like
// instancepool) that need to instantiate modules directly.
func (e *Engine) Runtime() wazero.Runtime { return e.runtime }

// Config returns the engine's configuration.
func (e *Engine) Config() *Config { return e.config }

// Compile compiles wasmBytes without consulting or populating the cache.
func (e *Engine) Compile(ctx context.Context, wasmBytes []byte) (wazero.CompiledModule, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, wasmerrors.NewCompilationError(err)
	}
	return compiled, nil
}

// CompileCached returns the cached compiled module for wasmBytes' content
// hash, compiling and caching it on a miss.
func (e *Engine) CompileCached(ctx context.Context, wasmBytes []byte) (wazero.CompiledModule, modulecache.Key, error) {
	key := modulecache.HashBytes(wasmBytes)
	compiled, err := e.cache.GetOrCompile(key, func() (wazero.CompiledModule, error) {
		return e.Compile(ctx, wasmBytes)
	})
	if err != nil {
		return nil, key, err
	}
	return compiled, key, nil
}

// Invalidate evicts and closes the cached module for key, if present.
func (e *Engine) Invalidate(ctx context.Context, key modulecache.Key) {
	e.cache.Delete(ctx, key)
}

// CacheStats reports the module cache's current size and capacity.
func (e *Engine) CacheStats() (size, capacity int) {
	return e.cache.Stats()
}

// Close releases the runtime, the module cache, every instance pool, and
// the on-disk compilation cache (if any).
func (e *Engine) Close(ctx context.Context) error {
	e.poolsMu.Lock()
	for key, pool := range e.pools {
		pool.Close(ctx)
		delete(e.pools, key)
	}
	e.poolsMu.Unlock()

	e.cache.Clear(ctx)
	err := e.runtime.Close(ctx)
	if e.diskCache != nil {
		if cerr := e.diskCache.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Acquire returns a ready-to-call instance of compiled, identified by
// key (normally a modulecache.Key from CompileCached). When
// Config.InstancePoolSize is zero, pooling is disabled: every Acquire
// instantiates a fresh instance and the matching Release simply closes
// it. Otherwise a pool of InstancePoolSize warm instances for key is
// created lazily on first use and shared across every caller.
func (e *Engine) Acquire(ctx context.Context, key modulecache.Key, compiled wazero.CompiledModule, name string) (*wasminstance.Instance, error) {
	if e.config.InstancePoolSize <= 0 {
		return wasminstance.Instantiate(ctx, e.runtime, compiled, name, e.logger)
	}
	pool, err := e.poolFor(ctx, key, compiled, name)
	if err != nil {
		return nil, err
	}
	return pool.Get(DefaultPoolAcquireTimeout)
}

// Release gives inst back to the pool backing key. With pooling disabled
// (or if key has no pool, e.g. it was Acquired before InstancePoolSize
// was ever positive), inst is closed instead of returned.
func (e *Engine) Release(ctx context.Context, key modulecache.Key, inst *wasminstance.Instance) {
	if e.config.InstancePoolSize > 0 {
		e.poolsMu.Lock()
		pool, ok := e.pools[key]
		e.poolsMu.Unlock()
		if ok {
			if err := pool.Return(inst); err != nil {
				e.logger.Warn("failed to return instance to pool, closing it instead", zap.Binary("key", key[:]), zap.Error(err))
				_ = inst.Close(ctx)
			}
			return
		}
	}
	_ = inst.Close(ctx)
}

// poolFor returns the pool for key, building one sized
// Config.InstancePoolSize the first time it is needed.
func (e *Engine) poolFor(ctx context.Context, key modulecache.Key, compiled wazero.CompiledModule, name string) (*instancepool.Pool, error) {
	e.poolsMu.Lock()
	defer e.poolsMu.Unlock()

	if pool, ok := e.pools[key]; ok {
		return pool, nil
	}
	pool, err := instancepool.New(ctx, e.runtime, compiled, name, uint64(e.config.InstancePoolSize), e.logger, nil)
	if err != nil {
		return nil, err
	}
	e.pools[key] = pool
	return pool, nil
}
