package wasmengine

import (
	"context"
	"sync/atomic"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"

	"github.com/orama-labs/wasmrt/pkg/wasmerrors"
)

// Meter approximates instruction-level metering using wazero's
// experimental FunctionListener hooks: it charges one unit per guest
// function call (not per instruction, since wazero's stable API has no
// instruction-level counter) and cancels the call's context once the
// configured limit is exceeded. With RuntimeConfig.WithCloseOnContextDone
// set, that cancellation surfaces to the caller as a guest trap, which
// Call maps to wasmerrors.ErrMeteringExceeded.
type Meter struct {
	limit    uint64
	consumed atomic.Uint64
	cancel   context.CancelCauseFunc
}

// NewMeter creates a Meter with the given call budget.
func NewMeter(limit uint64) *Meter {
	return &Meter{limit: limit}
}

// Consumed returns how many units have been charged so far.
func (m *Meter) Consumed() uint64 { return m.consumed.Load() }

// NewListener implements experimental.FunctionListenerFactory.
func (m *Meter) NewListener(api.FunctionDefinition) experimental.FunctionListener {
	return m
}

// Before implements experimental.FunctionListener.
func (m *Meter) Before(ctx context.Context, _ api.FunctionDefinition, _ []uint64) context.Context {
	if m.consumed.Add(1) > m.limit && m.cancel != nil {
		m.cancel(wasmerrors.ErrMeteringExceeded)
	}
	return ctx
}

// After implements experimental.FunctionListener.
func (m *Meter) After(context.Context, api.FunctionDefinition, error, []uint64) {}

// WithMeter derives a cancellable context that charges every guest
// function call made under it against m's budget. Cancel always releases
// the derived context's resources and must be called once the guest call
// it wraps returns.
func WithMeter(ctx context.Context, m *Meter) (context.Context, context.CancelFunc) {
	cctx, cancel := context.WithCancelCause(ctx)
	m.cancel = cancel
	cctx = context.WithValue(cctx, experimental.FunctionListenerFactoryKey{}, experimental.FunctionListenerFactory(m))
	return cctx, func() { cancel(nil) }
}
