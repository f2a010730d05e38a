package modulecache

import (
	"github.com/tetratelabs/wazero"

	"github.com/orama-labs/wasmrt/pkg/wasmerrors"
)

// NewOnDiskCompilationCache opens (creating if necessary) a directory-backed
// wazero compilation cache. Attach the result to a RuntimeConfig with
// RuntimeConfig.WithCompilationCache so that a previously compiled module's
// machine code survives a process restart instead of being recompiled from
// bytecode every time. This mirrors the in-memory Cache above the way the
// spec's "cache_dir" engine setting mirrors its in-memory module cache: both
// are optional, and both fall back cleanly to recompiling when absent.
func NewOnDiskCompilationCache(dir string) (wazero.CompilationCache, error) {
	cache, err := wazero.NewCompilationCacheWithDir(dir)
	if err != nil {
		return nil, wasmerrors.NewCacheError("open", dir, err)
	}
	return cache, nil
}
