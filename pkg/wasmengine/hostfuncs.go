package wasmengine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/orama-labs/wasmrt/pkg/envelope"
	"github.com/orama-labs/wasmrt/pkg/hostenv"
	"github.com/orama-labs/wasmrt/pkg/wasmvalue"
)

// LogHostFunctions returns a WithHostFunctions registration callback that
// wires up the one demonstration host function named in the call
// protocol's guest-to-host direction: a guest may hand the host an
// envelope-framed log line, which the host emits through logger and
// acknowledges with an empty ok envelope written back into the guest's own
// arena. It is deliberately the only host import this engine ships with
// side effects of its own (here, none beyond writing to the configured
// logger) — anything more domain-specific is left to the embedding
// application's own WithHostFunctions call.
func LogHostFunctions(logger *zap.Logger) func(wazero.HostModuleBuilder) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(b wazero.HostModuleBuilder) {
		b.NewFunctionBuilder().
			WithFunc(func(ctx context.Context, mod api.Module, ptr, length uint32) uint64 {
				return hostLog(ctx, mod, logger, ptr, length)
			}).
			Export("host_log")
	}
}

// hostLog decodes the envelope the guest placed at (ptr, length), logs its
// payload as a single Info line, and writes an empty ok envelope back into
// the guest's own arena so the guest can treat this exactly like any other
// host_call response.
func hostLog(ctx context.Context, mod api.Module, logger *zap.Logger, ptr, length uint32) uint64 {
	raw, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return wasmvalue.ReturnErr(wasmvalue.Slice{}).Pack()
	}
	env, err := envelope.Decode(raw)
	if err != nil {
		logger.Warn("host_log received an unframeable payload", zap.Error(err))
		return wasmvalue.ReturnErr(wasmvalue.Slice{}).Pack()
	}
	logger.Info("guest log", zap.ByteString("message", env.Payload))

	out := envelope.New(nil, 0).Encode()
	outPtr, err := hostenv.AllocateInGuest(ctx, mod, uint32(len(out)))
	if err != nil {
		logger.Warn("host_log could not allocate a response in the guest", zap.Error(err))
		return wasmvalue.ReturnErr(wasmvalue.Slice{}).Pack()
	}
	if !mod.Memory().Write(outPtr, out) {
		return wasmvalue.ReturnErr(wasmvalue.Slice{}).Pack()
	}
	return wasmvalue.ReturnOk(wasmvalue.Slice{Ptr: outPtr, Len: uint32(len(out))}).Pack()
}
