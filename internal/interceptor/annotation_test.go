package interceptor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tylooteam/tyloo/internal/txcore"
)

func TestResolveRole_Required(t *testing.T) {
	t.Parallel()

	assert.Equal(t, RoleRoot, ResolveRole(Required, false, nil))
	assert.Equal(t, RoleProvider, ResolveRole(Required, false, &txcore.Context{}))
	assert.Equal(t, RoleNormal, ResolveRole(Required, true, nil))
	assert.Equal(t, RoleNormal, ResolveRole(Required, true, &txcore.Context{}))
}

func TestResolveRole_RequiresNew(t *testing.T) {
	t.Parallel()

	assert.Equal(t, RoleRoot, ResolveRole(RequiresNew, false, nil))
	assert.Equal(t, RoleRoot, ResolveRole(RequiresNew, true, &txcore.Context{}))
}

func TestResolveRole_Mandatory(t *testing.T) {
	t.Parallel()

	assert.Equal(t, RoleError, ResolveRole(Mandatory, false, nil))
	assert.Equal(t, RoleProvider, ResolveRole(Mandatory, false, &txcore.Context{}))
	assert.Equal(t, RoleNormal, ResolveRole(Mandatory, true, nil))
}
