package wasmengine

import (
	"context"

	"github.com/orama-labs/wasmrt/pkg/callcontext"
)

// CallContext carries per-call diagnostic identity; see pkg/callcontext.
// It lives as an alias here so callers of this package never need to
// import pkg/callcontext directly.
type CallContext = callcontext.CallContext

// NewCallContext mints a fresh CallContext with a new request ID.
func NewCallContext() CallContext {
	return callcontext.New()
}

// WithCallContext attaches cc to ctx.
func WithCallContext(ctx context.Context, cc CallContext) context.Context {
	return callcontext.WithCallContext(ctx, cc)
}

// CallContextFrom retrieves the CallContext attached to ctx, if any.
func CallContextFrom(ctx context.Context) (CallContext, bool) {
	return callcontext.CallContextFrom(ctx)
}
