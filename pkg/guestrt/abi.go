// Package guestrt is the guest-side half of the host-guest call protocol:
// the arena-backed allocator exports, and the envelope-based ReturnOk /
// ReturnErr boundary every guest export uses to hand results back to the
// host. It is meant to be imported from a guest module's main package and
// built with TinyGo targeting wasip1.
package guestrt

import "github.com/orama-labs/wasmrt/pkg/guestarena"

// arena is the single per-instance bump allocator backing every export in
// this package. A guest module has exactly one arena, reset at the start
// of each top-level host call.
var arena = guestarena.New()

// GuestAllocate reserves size bytes in the guest arena and returns the
// real linear-memory address of the new region, ready for the host to
// write call input into. The arena's backing buffer never moves once
// allocated, so this address stays valid until the next GuestResetArena.
//
//export __aingle_guest_allocate
func GuestAllocate(size uint32) uint32 {
	offset, err := arena.Allocate(size)
	if err != nil {
		return 0
	}
	return offsetToAddr(offset)
}

// GuestDeallocate is a no-op: the arena reclaims everything in bulk via
// GuestResetArena, never per allocation.
//
//export __aingle_guest_deallocate
func GuestDeallocate(ptr, size uint32) {
	arena.Deallocate(addrToOffset(ptr), size)
}

// GuestResetArena rewinds the arena to empty. The host calls this before
// every top-level guest invocation, so a call can never see allocations
// left over from a previous one.
//
//export __aingle_guest_reset_arena
func GuestResetArena() {
	arena.Reset()
}

// Legacy allocator exports, kept alongside the arena exports above for
// guests built against the pre-arena single-allocation ABI.

//export __hc__allocate_1
func legacyAllocate(size uint32) uint32 {
	return GuestAllocate(size)
}

//export __hc__deallocate_1
func legacyDeallocate(ptr, size uint32) {
	GuestDeallocate(ptr, size)
}

// offsetToAddr converts an arena-relative offset to the real address the
// host sees, by adding the arena's (stable) base address.
func offsetToAddr(offset uint32) uint32 {
	return uint32(arena.BasePtr()) + offset
}

// addrToOffset reverses offsetToAddr.
func addrToOffset(addr uint32) uint32 {
	return addr - uint32(arena.BasePtr())
}
