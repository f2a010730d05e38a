// Package hostenv holds the host-side primitives for moving bytes across
// the WASM boundary: allocating and writing into guest memory, reading
// and deallocating guest-owned regions, and driving the envelope codec
// and MessagePack convenience layer from the host side.
package hostenv

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/orama-labs/wasmrt/pkg/envelope"
	"github.com/orama-labs/wasmrt/pkg/wasmerrors"
	"github.com/orama-labs/wasmrt/pkg/wasmvalue"
)

// allocateExport and friends are the arena ABI export names package
// guestrt registers; hostenv only ever talks to a guest module through
// these names, never by poking at its memory directly without asking.
const (
	allocateExport   = "__aingle_guest_allocate"
	deallocateExport = "__aingle_guest_deallocate"
	resetArenaExport = "__aingle_guest_reset_arena"
)

// legacyAllocateExport and legacyDeallocateExport back guests built
// against the pre-arena single-allocation ABI.
const (
	legacyAllocateExport   = "__hc__allocate_1"
	legacyDeallocateExport = "__hc__deallocate_1"
)

// ResetArena calls the guest's arena-reset export, if present. It is a
// no-op (not an error) for guests built only against the legacy ABI,
// which has no arena to reset.
func ResetArena(ctx context.Context, mod api.Module) error {
	reset := mod.ExportedFunction(resetArenaExport)
	if reset == nil {
		return nil
	}
	if _, err := reset.Call(ctx); err != nil {
		return wasmerrors.NewHostCallError(resetArenaExport, err)
	}
	return nil
}

// allocateInGuest calls whichever allocator export the guest provides and
// returns the pointer to the new region.
func allocateInGuest(ctx context.Context, mod api.Module, size uint32) (uint32, error) {
	alloc := mod.ExportedFunction(allocateExport)
	if alloc == nil {
		alloc = mod.ExportedFunction(legacyAllocateExport)
	}
	if alloc == nil {
		return 0, wasmerrors.NewHostCallError(allocateExport, wasmerrors.ErrExportNotFound)
	}

	results, err := alloc.Call(ctx, uint64(size))
	if err != nil {
		return 0, wasmerrors.NewHostCallError(allocateExport, err)
	}
	if len(results) == 0 {
		return 0, wasmerrors.NewHostCallError(allocateExport, wasmerrors.ErrInvalidMemoryAccess)
	}
	return uint32(results[0]), nil
}

// AllocateInGuest is the exported form of allocateInGuest, for packages
// (like wasmengine's demonstration host functions) that need to place a
// response directly into a guest's arena from inside a host import.
func AllocateInGuest(ctx context.Context, mod api.Module, size uint32) (uint32, error) {
	return allocateInGuest(ctx, mod, size)
}

// DeallocateInGuest calls the guest's deallocate export. For arena-backed
// guests this is a documented no-op; it still round-trips through the
// export so a legacy (non-arena) guest gets a real free.
func DeallocateInGuest(ctx context.Context, mod api.Module, ptr, size uint32) error {
	dealloc := mod.ExportedFunction(deallocateExport)
	if dealloc == nil {
		dealloc = mod.ExportedFunction(legacyDeallocateExport)
	}
	if dealloc == nil {
		return nil
	}
	if _, err := dealloc.Call(ctx, uint64(ptr), uint64(size)); err != nil {
		return wasmerrors.NewHostCallError(deallocateExport, err)
	}
	return nil
}

// MoveBytesToGuest allocates room in guest memory for data, writes it, and
// returns the resulting Slice.
func MoveBytesToGuest(ctx context.Context, mod api.Module, data []byte) (wasmvalue.Slice, error) {
	if len(data) == 0 {
		return wasmvalue.Slice{}, nil
	}

	ptr, err := allocateInGuest(ctx, mod, uint32(len(data)))
	if err != nil {
		return wasmvalue.Slice{}, err
	}
	if !mod.Memory().Write(ptr, data) {
		return wasmvalue.Slice{}, wasmerrors.NewMemoryError("write", ptr, uint32(len(data)), wasmerrors.ErrInvalidMemoryAccess)
	}
	return wasmvalue.Slice{Ptr: ptr, Len: uint32(len(data))}, nil
}

// MoveEnvelopeToGuest encodes payload as an envelope and writes it into
// guest memory, returning the Slice whose Ptr and Len are the (ptr, len)
// argument pair of a guest export.
func MoveEnvelopeToGuest(ctx context.Context, mod api.Module, payload []byte, flags envelope.Flags) (wasmvalue.Slice, error) {
	wire := envelope.New(payload, flags).Encode()
	return MoveBytesToGuest(ctx, mod, wire)
}

// MoveDataToGuest is the host-side half of the MessagePack convenience
// layer: it marshals value, wraps it in an envelope, and writes it into
// guest memory.
func MoveDataToGuest(ctx context.Context, mod api.Module, value any) (wasmvalue.Slice, error) {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return wasmvalue.Slice{}, wasmerrors.NewEnvelopeError("msgpack marshal", err)
	}
	return MoveEnvelopeToGuest(ctx, mod, data, 0)
}

// ConsumeBytesFromGuest reads length bytes at ptr out of guest memory,
// copying them into host memory (wazero's Memory().Read returns a view
// of guest memory, so the bytes are copied out before being returned).
func ConsumeBytesFromGuest(mod api.Module, ptr, length uint32) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	data, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return nil, wasmerrors.NewMemoryError("read", ptr, length, wasmerrors.ErrInvalidMemoryAccess)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// ConsumeResultFromGuest unpacks a guest export's returned i64, reads the
// envelope it points at, and validates it, logging (but not failing on) a
// zero-length result.
func ConsumeResultFromGuest(mod api.Module, packed uint64, logger *zap.Logger) (envelope.Envelope, bool, error) {
	result := wasmvalue.UnpackResult(packed)
	if result.Slice.Len == 0 {
		if logger != nil {
			logger.Debug("guest returned empty result slice", zap.Bool("ok", result.OK))
		}
		return envelope.Envelope{}, result.OK, nil
	}

	raw, err := ConsumeBytesFromGuest(mod, result.Slice.Ptr, result.Slice.Len)
	if err != nil {
		return envelope.Envelope{}, result.OK, err
	}

	env, err := envelope.Decode(raw)
	if err != nil {
		return envelope.Envelope{}, result.OK, wasmerrors.NewEnvelopeError("decode guest result", err)
	}
	return env, result.OK, nil
}

// ConsumeDataFromGuest is the host-side mirror of ConsumeResultFromGuest
// for handlers using the MessagePack convenience layer: it decodes the
// envelope's payload into v.
func ConsumeDataFromGuest(mod api.Module, packed uint64, v any, logger *zap.Logger) (bool, error) {
	env, ok, err := ConsumeResultFromGuest(mod, packed, logger)
	if err != nil {
		return ok, err
	}
	if len(env.Payload) == 0 {
		return ok, nil
	}
	if err := msgpack.Unmarshal(env.Payload, v); err != nil {
		return ok, wasmerrors.NewEnvelopeError("msgpack unmarshal", err)
	}
	return ok, nil
}
