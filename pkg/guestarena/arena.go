// Package guestarena implements the guest-side bump allocator backing the
// host-guest call protocol's allocator exports. It has no import on any
// host-only package and compiles to wasip1/TinyGo as well as to native Go
// for unit testing.
//
// The allocator never frees individual allocations: Deallocate is a no-op,
// and the whole arena is rewound to empty at the start of each top-level
// guest call via Reset. This trades per-allocation bookkeeping for O(1)
// allocation and O(1) bulk reclamation, which is the right trade for a
// call-scoped guest invocation.
//
// The backing buffer is fixed-size, not grow-by-copy: once a pointer into
// the arena has been handed across the host-guest boundary, nothing may
// move the bytes it refers to until the next Reset. Sizing the arena is
// the caller's choice (NewWithCapacity), not something this package papers
// over by silently relocating live data.
package guestarena

import "github.com/orama-labs/wasmrt/pkg/wasmerrors"

// DefaultCapacity is the arena size used by New.
const DefaultCapacity = 64 * 1024

// Arena is a fixed-capacity bump allocator over a single byte buffer.
//
// Arena is not safe for concurrent use: a guest module instance is only
// ever driven by one host call at a time, so there is no concurrent access
// to guard against within a single instance.
type Arena struct {
	buf    []byte
	offset uint32
}

// New creates an arena with DefaultCapacity.
func New() *Arena {
	return NewWithCapacity(DefaultCapacity)
}

// NewWithCapacity creates an arena with a fixed capacity that never grows.
func NewWithCapacity(capacity uint32) *Arena {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	return &Arena{buf: make([]byte, capacity)}
}

// Allocate bumps the arena pointer by size bytes and returns the offset of
// the new region. It fails with wasmerrors.ErrOutOfMemory if the arena's
// fixed capacity cannot satisfy the request; callers must Reset (or size
// the arena larger up front) rather than expect the arena to grow under
// them.
func (a *Arena) Allocate(size uint32) (uint32, error) {
	if size == 0 {
		return a.offset, nil
	}

	needed := uint64(a.offset) + uint64(size)
	if needed > uint64(len(a.buf)) {
		return 0, wasmerrors.ErrOutOfMemory
	}

	ptr := a.offset
	a.offset += size
	return ptr, nil
}

// Deallocate is a no-op: individual allocations are never freed, only the
// whole arena is reclaimed via Reset.
func (a *Arena) Deallocate(ptr, size uint32) {}

// Reset rewinds the arena to empty, reclaiming every allocation made since
// the last Reset (or since New). It must be called at the start of every
// top-level guest call.
func (a *Arena) Reset() {
	a.offset = 0
}

// Len returns how many bytes are currently allocated.
func (a *Arena) Len() uint32 { return a.offset }

// Cap returns the arena's fixed capacity.
func (a *Arena) Cap() uint32 { return uint32(len(a.buf)) }

// Write copies data into the arena at ptr, validating the region was
// actually allocated from this arena.
func (a *Arena) Write(ptr uint32, data []byte) error {
	end := uint64(ptr) + uint64(len(data))
	if end > uint64(a.offset) {
		return wasmerrors.NewMemoryError("write", ptr, uint32(len(data)), wasmerrors.ErrInvalidMemoryAccess)
	}
	copy(a.buf[ptr:end], data)
	return nil
}

// Read returns a copy of length bytes starting at ptr.
func (a *Arena) Read(ptr, length uint32) ([]byte, error) {
	end := uint64(ptr) + uint64(length)
	if end > uint64(a.offset) {
		return nil, wasmerrors.NewMemoryError("read", ptr, length, wasmerrors.ErrInvalidMemoryAccess)
	}
	out := make([]byte, length)
	copy(out, a.buf[ptr:end])
	return out, nil
}

// AllocateBytes allocates room for data and copies it in, returning the
// pointer to the copy.
func (a *Arena) AllocateBytes(data []byte) (uint32, error) {
	ptr, err := a.Allocate(uint32(len(data)))
	if err != nil {
		return 0, err
	}
	if err := a.Write(ptr, data); err != nil {
		return 0, err
	}
	return ptr, nil
}

// BasePtr returns the real address of the arena's backing array. Compiled
// under TinyGo's wasip1 target this is an actual linear-memory address the
// host can dereference directly; GuestAllocate in package guestrt adds an
// offset to this to produce the pointer guest exports hand to the host.
// It stays valid for the arena's whole lifetime since the buffer never
// moves.
func (a *Arena) BasePtr() uintptr {
	if len(a.buf) == 0 {
		return 0
	}
	return uintptr(ptrOf(&a.buf[0]))
}
