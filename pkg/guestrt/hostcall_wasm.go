//go:build wasip1 || wasm

package guestrt

// hostLog is the guest's import of the host's "host_log" function,
// registered by pkg/wasmengine.LogHostFunctions under the "env" module
// namespace.
//
//go:wasmimport env host_log
func hostLog(ptr, length uint32) uint64
