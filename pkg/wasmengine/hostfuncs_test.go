package wasmengine

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/orama-labs/wasmrt/pkg/envelope"
	"github.com/orama-labs/wasmrt/pkg/wasmvalue"
)

func TestLogHostFunctionsRegistersAnExport(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, TestConfig(), zap.NewNop(), WithHostFunctions("env", LogHostFunctions(zap.NewNop())))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close(ctx)

	if e.Runtime().Module("env").ExportedFunction("host_log") == nil {
		t.Fatal("host_log was not registered under the \"env\" module")
	}
}

func TestHostLogAcksWithEmptyOkEnvelope(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, TestConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close(ctx)

	var offset uint32
	allocate := func(size uint32) uint32 {
		ptr := offset
		offset += size
		return ptr
	}

	mod, err := e.Runtime().NewHostModuleBuilder("guest").
		ExportMemory("memory", 1).
		NewFunctionBuilder().WithFunc(allocate).Export("__aingle_guest_allocate").
		Instantiate(ctx)
	if err != nil {
		t.Fatalf("failed to instantiate fake guest: %v", err)
	}
	defer mod.Close(ctx)

	wire := envelope.New([]byte("hello host"), 0).Encode()
	if !mod.Memory().Write(0, wire) {
		t.Fatal("failed to write request envelope into guest memory")
	}
	offset = uint32(len(wire))

	packed := hostLog(ctx, mod, zap.NewNop(), 0, uint32(len(wire)))
	result := wasmvalue.UnpackResult(packed)
	if !result.OK {
		t.Fatal("expected an ok result")
	}

	raw, ok := mod.Memory().Read(result.Slice.Ptr, result.Slice.Len)
	if !ok {
		t.Fatal("could not read the response envelope back out of guest memory")
	}
	env, err := envelope.Decode(raw)
	if err != nil {
		t.Fatalf("envelope.Decode: %v", err)
	}
	if len(env.Payload) != 0 {
		t.Fatalf("response payload = %q, want empty", env.Payload)
	}
}
