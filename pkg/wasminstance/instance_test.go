package wasminstance

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/orama-labs/wasmrt/pkg/envelope"
	"github.com/orama-labs/wasmrt/pkg/wasmvalue"
)

// newEchoGuest builds a fake guest module (a host module standing in for
// a compiled one) that implements the arena ABI plus an "echo" export
// which decodes the envelope it is given and immediately re-encodes and
// returns the same payload. This exercises Instance.Call end to end
// without needing to compile real guest bytecode.
func newEchoGuest(t *testing.T, ctx context.Context, runtime wazero.Runtime) *Instance {
	t.Helper()

	var offset uint32

	allocate := func(size uint32) uint32 {
		ptr := offset
		offset += size
		return ptr
	}
	deallocate := func(ptr, size uint32) {}
	resetArena := func() { offset = 0 }

	echo := func(ctx context.Context, mod api.Module, ptr, length uint32) uint64 {
		raw, ok := mod.Memory().Read(ptr, length)
		if !ok {
			return wasmvalue.ReturnErr(wasmvalue.Slice{}).Pack()
		}
		env, err := envelope.Decode(raw)
		if err != nil {
			return wasmvalue.ReturnErr(wasmvalue.Slice{}).Pack()
		}
		out := envelope.New(env.Payload, 0).Encode()
		outPtr := allocate(uint32(len(out)))
		if !mod.Memory().Write(outPtr, out) {
			return wasmvalue.ReturnErr(wasmvalue.Slice{}).Pack()
		}
		return wasmvalue.ReturnOk(wasmvalue.Slice{Ptr: outPtr, Len: uint32(len(out))}).Pack()
	}

	mod, err := runtime.NewHostModuleBuilder("echo_guest").
		ExportMemory("memory", 1).
		NewFunctionBuilder().WithFunc(allocate).Export("__aingle_guest_allocate").
		NewFunctionBuilder().WithFunc(deallocate).Export("__aingle_guest_deallocate").
		NewFunctionBuilder().WithFunc(resetArena).Export("__aingle_guest_reset_arena").
		NewFunctionBuilder().WithFunc(echo).Export("echo").
		Instantiate(ctx)
	if err != nil {
		t.Fatalf("failed to instantiate echo guest: %v", err)
	}

	return &Instance{mod: mod, name: "echo_guest", logger: zap.NewNop()}
}

func TestCallRoundTripsPayload(t *testing.T) {
	ctx := context.Background()
	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)

	inst := newEchoGuest(t, ctx, runtime)
	defer inst.Close(ctx)

	env, ok, err := inst.Call(ctx, "echo", []byte("ping"), 0)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !ok {
		t.Fatal("expected ok result")
	}
	if string(env.Payload) != "ping" {
		t.Fatalf("payload = %q, want %q", env.Payload, "ping")
	}
}

func TestCallMissingExportFails(t *testing.T) {
	ctx := context.Background()
	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)

	inst := newEchoGuest(t, ctx, runtime)
	defer inst.Close(ctx)

	if _, _, err := inst.Call(ctx, "does_not_exist", []byte("x"), 0); err == nil {
		t.Fatal("expected an error calling a missing export")
	}
}
