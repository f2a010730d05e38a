//go:build !wasip1 && !wasm

package guestrt

import (
	"github.com/orama-labs/wasmrt/pkg/envelope"
	"github.com/orama-labs/wasmrt/pkg/wasmvalue"
)

// hostLog stands in for the real //go:wasmimport trampoline when this
// package is compiled for a native (non-wasm) target, which is how its own
// unit tests run: there is no wazero host on the other side of the import
// in that configuration, so this reads the request straight back out of the
// shared arena and acknowledges it the same way pkg/wasmengine's
// LogHostFunctions does, without actually logging anywhere.
func hostLog(ptr, length uint32) uint64 {
	raw, err := arena.Read(addrToOffset(ptr), length)
	if err != nil {
		return wasmvalue.ReturnErr(wasmvalue.Slice{}).Pack()
	}
	if _, err := envelope.Decode(raw); err != nil {
		return wasmvalue.ReturnErr(wasmvalue.Slice{}).Pack()
	}

	out := envelope.New(nil, 0).Encode()
	outOffset, err := arena.AllocateBytes(out)
	if err != nil {
		return wasmvalue.ReturnErr(wasmvalue.Slice{}).Pack()
	}
	return wasmvalue.ReturnOk(wasmvalue.Slice{Ptr: offsetToAddr(outOffset), Len: uint32(len(out))}).Pack()
}
