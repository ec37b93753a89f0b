package interceptor

import (
	"context"
	"fmt"

	"github.com/tylooteam/tyloo/internal/txcore"
)

// Proceeder invokes the wrapped business method body. Callers build one
// per intercepted call site, closing over the target, method, and
// arguments; the interceptor never needs to know what's inside.
type Proceeder func(ctx context.Context) (any, error)

// MethodContext describes a single intercepted call (spec.md §4.3): its
// compensable annotation, its inbound wire Context (if any), and the
// means to actually invoke the wrapped method.
type MethodContext struct {
	annotation Annotation
	inbound    *txcore.Context
	args       []any
	proceed    Proceeder
}

// NewMethodContext builds a MethodContext. inbound is nil when no argument
// carried a wire Context (the call site is a potential ROOT, not a PROVIDER).
func NewMethodContext(annotation Annotation, inbound *txcore.Context, args []any, proceed Proceeder) *MethodContext {
	return &MethodContext{annotation: annotation, inbound: inbound, args: args, proceed: proceed}
}

// Annotation returns the compensable annotation declared on the
// intercepted method.
func (mc *MethodContext) Annotation() Annotation {
	return mc.annotation
}

// WireContext returns the inbound wire Context found among the call's
// arguments, or nil if none was present.
func (mc *MethodContext) WireContext() *txcore.Context {
	return mc.inbound
}

// MethodRole resolves this call's Role given whether a transaction is
// already active on the current call chain.
func (mc *MethodContext) MethodRole(active bool) Role {
	return ResolveRole(mc.annotation.Propagation, active, mc.inbound)
}

// UniqueIdentity resolves the idempotence key for this call: the first
// argument's string form, stable across retries as spec.md §4.3
// requires. Annotation-designated argument selection is left to the
// caller — build MethodContext with args reordered if a later argument
// should seed identity instead.
func (mc *MethodContext) UniqueIdentity() string {
	if len(mc.args) == 0 {
		return ""
	}
	if s, ok := mc.args[0].(string); ok {
		return s
	}
	return fmt.Sprintf("%v", mc.args[0])
}

// Proceed invokes the wrapped business method.
func (mc *MethodContext) Proceed(ctx context.Context) (any, error) {
	return mc.proceed(ctx)
}
