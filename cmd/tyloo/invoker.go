package main

import (
	"context"
	"log/slog"

	"github.com/tylooteam/tyloo/internal/txcore"
)

// logInvoker logs each confirm/cancel invocation it's asked to dispatch
// instead of making a real call. The CLI has no registered participant
// transport of its own (spec.md §1 leaves that to the caller); operators
// running "tyloo recover" against a store populated by a real service
// use this to observe what recovery WOULD dispatch before wiring a real
// transport in front of it.
type logInvoker struct {
	logger *slog.Logger
}

func newLogInvoker(logger *slog.Logger) *logInvoker {
	return &logInvoker{logger: logger}
}

func (i *logInvoker) Invoke(_ context.Context, inv txcore.Invocation) error {
	i.logger.Info("would invoke", "call", inv.String())
	return nil
}
