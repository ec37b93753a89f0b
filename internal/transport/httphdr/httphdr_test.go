package httphdr

import (
	"net/http"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tylooteam/tyloo/internal/txcore"
)

func TestInjectThenExtract(t *testing.T) {
	t.Parallel()

	wc := txcore.NewContext(uuid.Must(uuid.NewV7())).WithStatus(txcore.StatusCancelling)

	h := http.Header{}
	Inject(h, wc)

	got, ok, err := Extract(h)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, wc, got)
}

func TestExtract_NoHeaderPresent(t *testing.T) {
	t.Parallel()

	_, ok, err := Extract(http.Header{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExtract_InvalidStatus(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set(XidHeader, uuid.Must(uuid.NewV7()).String())
	h.Set(BranchIDHeader, uuid.Nil.String())
	h.Set(StatusHeader, "not-a-number")

	_, _, err := Extract(h)
	assert.Error(t, err)
}
