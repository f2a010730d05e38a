package guestarena

import "unsafe"

// ptrOf isolates the package's only unsafe conversion: turning the address
// of the arena's first byte into an opaque pointer value for BasePtr.
func ptrOf(b *byte) unsafe.Pointer {
	return unsafe.Pointer(b)
}
