package grpcmd

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	"github.com/tylooteam/tyloo/internal/txcore"
)

func TestInjectThenExtract(t *testing.T) {
	t.Parallel()

	wc := txcore.NewContext(uuid.Must(uuid.NewV7())).WithStatus(txcore.StatusConfirming)

	md, err := Inject(nil, wc)
	require.NoError(t, err)

	got, ok, err := extractFrom(md)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, wc, got)
}

func TestOutgoingContext_RoundTripsViaIncoming(t *testing.T) {
	t.Parallel()

	wc := txcore.NewContext(uuid.Must(uuid.NewV7()))

	outCtx, err := OutgoingContext(context.Background(), wc)
	require.NoError(t, err)

	md, ok := metadata.FromOutgoingContext(outCtx)
	require.True(t, ok)

	inCtx := metadata.NewIncomingContext(context.Background(), md)
	got, found, err := Extract(inCtx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, wc, got)
}

func TestExtract_NoMetadataPresent(t *testing.T) {
	t.Parallel()

	_, found, err := Extract(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}
