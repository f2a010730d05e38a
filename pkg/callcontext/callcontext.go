// Package callcontext carries per-call diagnostic identity through a
// context.Context. It is split out from pkg/wasmengine so that
// pkg/wasminstance (and anything else downstream of an Instance) can
// attach and read a call's request ID without importing the engine
// package that constructs instance pools from wasminstance itself.
package callcontext

import (
	"context"

	"github.com/google/uuid"
)

// key is the context key CallContext is attached under.
type key struct{}

// CallContext carries per-call diagnostic identity: a request ID generated
// once per top-level guest invocation, threaded through logging so every
// log line a single call produces (engine, instance, host import) can be
// correlated after the fact.
type CallContext struct {
	RequestID string
}

// New mints a fresh CallContext with a new request ID.
func New() CallContext {
	return CallContext{RequestID: uuid.NewString()}
}

// WithCallContext attaches cc to ctx.
func WithCallContext(ctx context.Context, cc CallContext) context.Context {
	return context.WithValue(ctx, key{}, cc)
}

// CallContextFrom retrieves the CallContext attached to ctx, if any.
func CallContextFrom(ctx context.Context) (CallContext, bool) {
	cc, ok := ctx.Value(key{}).(CallContext)
	return cc, ok
}
