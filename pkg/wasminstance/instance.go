// Package wasminstance drives a single guest module instance through the
// host-guest call protocol: instantiate, reset its arena, hand it an
// envelope, invoke an export, and read back its packed WasmResult.
package wasminstance

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/orama-labs/wasmrt/pkg/callcontext"
	"github.com/orama-labs/wasmrt/pkg/envelope"
	"github.com/orama-labs/wasmrt/pkg/hostenv"
	"github.com/orama-labs/wasmrt/pkg/wasmerrors"
)

// Instance wraps one instantiated guest module.
type Instance struct {
	mod    api.Module
	name   string
	logger *zap.Logger
}

// Instantiate creates a fresh instance of compiled from runtime, naming it
// name (used for WASI argv[0] and diagnostics).
func Instantiate(ctx context.Context, runtime wazero.Runtime, compiled wazero.CompiledModule, name string, logger *zap.Logger) (*Instance, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := wazero.NewModuleConfig().WithName(name).WithArgs(name)

	mod, err := runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, wasmerrors.NewInstantiationError(err)
	}
	return &Instance{mod: mod, name: name, logger: logger}, nil
}

// Close releases the instance.
func (i *Instance) Close(ctx context.Context) error {
	return i.mod.Close(ctx)
}

// Module exposes the underlying wazero api.Module for packages that need
// lower-level access (instancepool's initializer hook, tests).
func (i *Instance) Module() api.Module { return i.mod }

// Call resets the guest's arena, writes payload into guest memory as an
// envelope, invokes the named export with the resulting (ptr, len), and
// decodes the export's packed WasmResult back into an envelope.
//
// ctx should normally come from wasmengine.WithMeter so the export's guest
// function calls are charged against a metering budget; Call maps a
// metering cancellation to wasmerrors.ErrMeteringExceeded and any other
// context cancellation to wasmerrors.ErrTimeout.
func (i *Instance) Call(ctx context.Context, export string, payload []byte, flags envelope.Flags) (envelope.Envelope, bool, error) {
	cc, ok := callcontext.CallContextFrom(ctx)
	if !ok {
		cc = callcontext.New()
		ctx = callcontext.WithCallContext(ctx, cc)
	}
	i.logger.Debug("invoking guest export",
		zap.String("request_id", cc.RequestID),
		zap.String("instance", i.name),
		zap.String("export", export))

	if err := hostenv.ResetArena(ctx, i.mod); err != nil {
		return envelope.Envelope{}, false, err
	}

	slice, err := hostenv.MoveEnvelopeToGuest(ctx, i.mod, payload, flags)
	if err != nil {
		return envelope.Envelope{}, false, err
	}

	fn := i.mod.ExportedFunction(export)
	if fn == nil {
		return envelope.Envelope{}, false, wasmerrors.NewGuestCallError(export, wasmerrors.ErrExportNotFound)
	}

	results, err := fn.Call(ctx, uint64(slice.Ptr), uint64(slice.Len))
	if err != nil {
		return envelope.Envelope{}, false, classifyCallErr(export, ctx, err)
	}
	if len(results) == 0 {
		return envelope.Envelope{}, false, wasmerrors.NewGuestCallError(export, fmt.Errorf("export returned no results"))
	}

	env, ok, err := hostenv.ConsumeResultFromGuest(i.mod, results[0], i.logger)
	if err != nil {
		return envelope.Envelope{}, ok, wasmerrors.NewGuestCallError(export, err)
	}
	return env, ok, nil
}

// CallWithValue is the MessagePack convenience-layer mirror of Call: it
// marshals input, invokes export, and unmarshals the guest's payload into
// out.
func (i *Instance) CallWithValue(ctx context.Context, export string, input any, out any) (bool, error) {
	if _, ok := callcontext.CallContextFrom(ctx); !ok {
		ctx = callcontext.WithCallContext(ctx, callcontext.New())
	}

	if err := hostenv.ResetArena(ctx, i.mod); err != nil {
		return false, err
	}

	slice, err := hostenv.MoveDataToGuest(ctx, i.mod, input)
	if err != nil {
		return false, err
	}

	fn := i.mod.ExportedFunction(export)
	if fn == nil {
		return false, wasmerrors.NewGuestCallError(export, wasmerrors.ErrExportNotFound)
	}

	results, err := fn.Call(ctx, uint64(slice.Ptr), uint64(slice.Len))
	if err != nil {
		return false, classifyCallErr(export, ctx, err)
	}
	if len(results) == 0 {
		return false, wasmerrors.NewGuestCallError(export, fmt.Errorf("export returned no results"))
	}

	ok, err := hostenv.ConsumeDataFromGuest(i.mod, results[0], out, i.logger)
	if err != nil {
		return ok, wasmerrors.NewGuestCallError(export, err)
	}
	return ok, nil
}

func classifyCallErr(export string, ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil && cause != context.Canceled {
		if cause == wasmerrors.ErrMeteringExceeded {
			return wasmerrors.NewGuestCallError(export, wasmerrors.ErrMeteringExceeded)
		}
	}
	if ctx.Err() != nil {
		return wasmerrors.NewGuestCallError(export, wasmerrors.ErrTimeout)
	}
	return wasmerrors.NewGuestCallError(export, err)
}
