// Package wasmvalue packs and unpacks the guest/host calling-convention
// values that travel across the WASM boundary as single 64-bit integers.
package wasmvalue

// errBit marks a WasmResult as a failure (1) or success (0) in the high
// bit of the packed i64 returned by guest exports.
const errBit = uint64(1) << 63

// Slice describes a region of guest linear memory.
type Slice struct {
	Ptr uint32
	Len uint32
}

// Pack combines the pointer and length into the single u64 used on the
// wire and in export/import signatures.
func (s Slice) Pack() uint64 {
	return (uint64(s.Ptr) << 32) | uint64(s.Len)
}

// UnpackSlice reverses Slice.Pack.
func UnpackSlice(v uint64) Slice {
	return Slice{
		Ptr: uint32(v >> 32),
		Len: uint32(v & 0xFFFFFFFF),
	}
}

// Result is the packed (ok-flag, slice) pair every guest export typed
// `(i32, i32) -> i64` returns: bit 63 is set on failure and clear on
// success, and the low 63 bits carry a packed Slice pointing at the
// result (or error) bytes in guest memory.
type Result struct {
	OK    bool
	Slice Slice
}

// Pack encodes the result into the i64 a guest export returns.
func (r Result) Pack() uint64 {
	v := r.Slice.Pack() &^ errBit
	if !r.OK {
		v |= errBit
	}
	return v
}

// UnpackResult reverses Result.Pack.
func UnpackResult(v uint64) Result {
	ok := v&errBit == 0
	slice := UnpackSlice(v &^ errBit)
	return Result{OK: ok, Slice: slice}
}

// ReturnOk packs a success result pointing at the given slice.
func ReturnOk(s Slice) Result { return Result{OK: true, Slice: s} }

// ReturnErr packs a failure result pointing at an error-description slice.
func ReturnErr(s Slice) Result { return Result{OK: false, Slice: s} }

// TypedRef is a typed handle onto a Slice, carried host-side to remember
// what Go type a region of guest memory decodes to without re-deriving it
// from the wire bytes at every call site.
type TypedRef[T any] struct {
	Slice Slice
}

// NewTypedRef wraps a raw Slice with its decoded type.
func NewTypedRef[T any](s Slice) TypedRef[T] {
	return TypedRef[T]{Slice: s}
}
