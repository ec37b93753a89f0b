// Package grpcmd injects and extracts the wire Context into and out of
// gRPC metadata, for services fronted by google.golang.org/grpc —
// grounded on the teacher's cfgrpc package, which already depends on
// google.golang.org/grpc for its config service.
package grpcmd

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/grpc/metadata"

	"github.com/tylooteam/tyloo/internal/txcore"
)

// metadataKey is the single metadata key the wire Context travels under,
// base64-encoded since gRPC metadata values are ASCII-safe strings, not
// arbitrary bytes.
const metadataKey = "x-tyloo-context-bin"

// Inject returns outgoing gRPC metadata carrying wc, merged with md if
// md is non-nil.
func Inject(md metadata.MD, wc txcore.Context) (metadata.MD, error) {
	data, err := wc.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("grpcmd: marshal context: %w", err)
	}
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(metadataKey, base64.StdEncoding.EncodeToString(data))
	return md, nil
}

// OutgoingContext returns a child of ctx with wc attached as outgoing
// gRPC metadata, ready to pass to a client call.
func OutgoingContext(ctx context.Context, wc txcore.Context) (context.Context, error) {
	existing, _ := metadata.FromOutgoingContext(ctx)
	md, err := Inject(existing.Copy(), wc)
	if err != nil {
		return nil, err
	}
	return metadata.NewOutgoingContext(ctx, md), nil
}

// Extract reads a wire Context out of incoming gRPC metadata on ctx.
// Returns txcore.ErrNoExistedTransaction's sibling zero value (false)
// when no context was carried — the caller treats that as "no inbound
// context" rather than an error (spec.md §4.3's getTylooContext
// returning null is not itself a failure).
func Extract(ctx context.Context) (txcore.Context, bool, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return txcore.Context{}, false, nil
	}
	return extractFrom(md)
}

func extractFrom(md metadata.MD) (txcore.Context, bool, error) {
	values := md.Get(metadataKey)
	if len(values) == 0 {
		return txcore.Context{}, false, nil
	}

	data, err := base64.StdEncoding.DecodeString(values[0])
	if err != nil {
		return txcore.Context{}, false, fmt.Errorf("grpcmd: decode context: %w", err)
	}

	var wc txcore.Context
	if err := wc.UnmarshalBinary(data); err != nil {
		return txcore.Context{}, false, fmt.Errorf("grpcmd: unmarshal context: %w", err)
	}
	return wc, true, nil
}
