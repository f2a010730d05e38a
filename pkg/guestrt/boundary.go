package guestrt

import (
	"reflect"
	"unsafe"

	"github.com/orama-labs/wasmrt/pkg/envelope"
	"github.com/orama-labs/wasmrt/pkg/wasmvalue"
)

// bytesAt reinterprets a region of linear memory as a byte slice without
// copying. The returned slice aliases guest memory and is only valid until
// the next GuestResetArena call, matching the arena's own allocation
// lifetime.
func bytesAt(ptr, length uint32) []byte {
	if length == 0 {
		return nil
	}
	var b []byte
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	hdr.Data = uintptr(ptr)
	hdr.Len = int(length)
	hdr.Cap = int(length)
	return b
}

// DecodeCall reads and validates the envelope the host wrote at the real
// address ptr, returning its payload.
func DecodeCall(ptr, length uint32) ([]byte, error) {
	raw := bytesAt(ptr, length)
	env, err := envelope.Decode(raw)
	if err != nil {
		return nil, err
	}
	return env.Payload, nil
}

// ReturnOk packs payload into a fresh envelope written into the arena and
// returns the packed WasmResult a guest export hands back to the host.
// This is the required, primary wire path: ReturnErr shares the same
// envelope-writing code, and ReturnPtr calls ReturnOk (or ReturnErr).
func ReturnOk(payload []byte) uint64 {
	return writeResult(payload, true)
}

// ReturnErr packs an error message into a fresh envelope and returns the
// packed WasmResult with bit 63 set and FlagIsError set.
func ReturnErr(message string) uint64 {
	return writeResult([]byte(message), false)
}

func writeResult(payload []byte, ok bool) uint64 {
	var flags envelope.Flags
	if !ok {
		flags = envelope.FlagIsError
	}
	wire := envelope.New(payload, flags).Encode()

	offset, err := arena.AllocateBytes(wire)
	if err != nil {
		// Out of memory while building the result itself: an ok result
		// degrades to a short "encoding error" error envelope; if that
		// also fails, the terminal fallback is wasmvalue.Result{}, which
		// has OK: false and so packs as a (bit-63-set) error with an
		// empty slice.
		if ok {
			return writeResult([]byte("encoding error"), false)
		}
		return wasmvalue.Result{}.Pack()
	}

	slice := wasmvalue.Slice{Ptr: offsetToAddr(offset), Len: uint32(len(wire))}
	if ok {
		return wasmvalue.ReturnOk(slice).Pack()
	}
	return wasmvalue.ReturnErr(slice).Pack()
}
