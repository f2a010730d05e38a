package instancepool

import (
	"context"
	"testing"
	"time"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/orama-labs/wasmrt/pkg/wasminstance"
)

var nopWasm = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestGetReturnRoundTrip(t *testing.T) {
	ctx := context.Background()
	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)

	compiled, err := runtime.CompileModule(ctx, nopWasm)
	if err != nil {
		t.Fatalf("CompileModule: %v", err)
	}

	pool, err := New(ctx, runtime, compiled, "test", 2, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pool.Close(ctx)

	inst, err := pool.Get(time.Second)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := pool.Return(inst); err != nil {
		t.Fatalf("Return: %v", err)
	}
}

func TestGetTimesOutWhenExhausted(t *testing.T) {
	ctx := context.Background()
	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)

	compiled, err := runtime.CompileModule(ctx, nopWasm)
	if err != nil {
		t.Fatalf("CompileModule: %v", err)
	}

	pool, err := New(ctx, runtime, compiled, "test", 1, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pool.Close(ctx)

	if _, err := pool.Get(time.Second); err != nil {
		t.Fatalf("Get: %v", err)
	}
	// The single instance is still checked out: a second Get must time out.
	if _, err := pool.Get(50 * time.Millisecond); err == nil {
		t.Fatal("expected an error getting from an exhausted pool")
	}
}

func TestInitializerRunsOnEveryInstance(t *testing.T) {
	ctx := context.Background()
	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)

	compiled, err := runtime.CompileModule(ctx, nopWasm)
	if err != nil {
		t.Fatalf("CompileModule: %v", err)
	}

	var count int
	init := func(ctx context.Context, inst *wasminstance.Instance) error {
		count++
		return nil
	}

	pool, err := New(ctx, runtime, compiled, "test", 3, zap.NewNop(), init)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pool.Close(ctx)

	if count != 3 {
		t.Fatalf("initializer ran %d times, want 3", count)
	}
}
