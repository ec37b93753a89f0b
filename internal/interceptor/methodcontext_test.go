package interceptor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tylooteam/tyloo/internal/txcore"
)

func TestMethodContext_UniqueIdentity_StringArg(t *testing.T) {
	t.Parallel()

	mc := NewMethodContext(Annotation{}, nil, []any{"order-42", 7}, func(context.Context) (any, error) { return nil, nil })
	assert.Equal(t, "order-42", mc.UniqueIdentity())
}

func TestMethodContext_UniqueIdentity_NonStringArg(t *testing.T) {
	t.Parallel()

	mc := NewMethodContext(Annotation{}, nil, []any{7}, func(context.Context) (any, error) { return nil, nil })
	assert.Equal(t, "7", mc.UniqueIdentity())
}

func TestMethodContext_UniqueIdentity_NoArgs(t *testing.T) {
	t.Parallel()

	mc := NewMethodContext(Annotation{}, nil, nil, func(context.Context) (any, error) { return nil, nil })
	assert.Equal(t, "", mc.UniqueIdentity())
}

func TestMethodContext_MethodRole(t *testing.T) {
	t.Parallel()

	mc := NewMethodContext(Annotation{Propagation: Required}, nil, nil, nil)
	assert.Equal(t, RoleRoot, mc.MethodRole(false))

	inbound := &txcore.Context{}
	mc2 := NewMethodContext(Annotation{Propagation: Required}, inbound, nil, nil)
	assert.Equal(t, RoleProvider, mc2.MethodRole(false))
	assert.Same(t, inbound, mc2.WireContext())
}

func TestMethodContext_Proceed(t *testing.T) {
	t.Parallel()

	mc := NewMethodContext(Annotation{}, nil, nil, func(context.Context) (any, error) { return "result", nil })
	result, err := mc.Proceed(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "result", result)
}
