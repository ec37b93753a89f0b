package interceptor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"

	"github.com/tylooteam/tyloo/internal/txcore"
	"github.com/tylooteam/tyloo/internal/txmanager"
)

// Interceptor drives the try/confirm/cancel sequence around an
// intercepted compensable call (spec.md §4.2). It owns no transaction
// state itself — every begin/commit/rollback goes through a
// txmanager.Manager, which is the only thing that mutates the call
// chain's transaction stack.
type Interceptor struct {
	manager *txmanager.Manager

	// globalDelayCancelExceptions is unioned with each call's
	// per-annotation DelayCancelExceptions when deciding whether a
	// failure defers cancellation to recovery instead of triggering it
	// immediately.
	globalDelayCancelExceptions []error

	logger *slog.Logger
}

// New builds an Interceptor. globalDelayCancel is unioned with every
// call's annotation-level DelayCancelExceptions.
func New(manager *txmanager.Manager, globalDelayCancel []error, handler slog.Handler) *Interceptor {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	return &Interceptor{
		manager:                     manager,
		globalDelayCancelExceptions: globalDelayCancel,
		logger:                      slog.New(handler).WithGroup("interceptor.Interceptor"),
	}
}

// RootMethodProceed implements the ROOT role (spec.md §4.2): begin a
// root transaction, run the business body, and commit or (immediately,
// or deferred to recovery) roll back depending on the outcome.
func (i *Interceptor) RootMethodProceed(ctx context.Context, mc *MethodContext) (any, error) {
	ctx = txmanager.WithStack(ctx)

	tx, err := i.manager.Begin(ctx, mc.UniqueIdentity())
	if err != nil {
		return nil, fmt.Errorf("interceptor: root begin: %w", err)
	}
	defer i.cleanup(ctx, tx)

	result, bizErr := mc.Proceed(ctx)
	if bizErr != nil {
		if i.shouldDelayCancel(mc.Annotation(), bizErr) {
			i.logger.Debug("deferring cancellation to recovery", "xid", tx.Xid, "error", bizErr)
			return nil, bizErr
		}
		if err := i.manager.Rollback(ctx, mc.Annotation().AsyncCancel); err != nil {
			i.logger.Error("rollback after business failure also failed", "xid", tx.Xid, "error", err)
		}
		return nil, bizErr
	}

	if err := i.manager.Commit(ctx, mc.Annotation().AsyncConfirm); err != nil {
		return result, fmt.Errorf("interceptor: root commit: %w", err)
	}
	return result, nil
}

// ProviderMethodProceed implements the PROVIDER role (spec.md §4.2):
// dispatch on the inbound wire Context's status, swallowing
// txcore.ErrNoExistedTransaction for confirm/cancel calls that arrive
// after the branch already completed (duplicate delivery).
func (i *Interceptor) ProviderMethodProceed(ctx context.Context, mc *MethodContext) (any, error) {
	inbound := mc.WireContext()
	if inbound == nil {
		return nil, fmt.Errorf("%w: provider proceed called without an inbound context", txcore.ErrSystem)
	}
	ctx = txmanager.WithStack(ctx)

	switch inbound.Status {
	case txcore.StatusTrying:
		tx, err := i.manager.PropagationNewBegin(ctx, *inbound)
		if err != nil {
			return nil, fmt.Errorf("interceptor: provider begin: %w", err)
		}
		defer i.cleanup(ctx, tx)
		return mc.Proceed(ctx)

	case txcore.StatusConfirming:
		return nil, i.resumeAndDrive(ctx, *inbound, mc.Annotation().AsyncConfirm, i.manager.Commit)

	case txcore.StatusCancelling:
		return nil, i.resumeAndDrive(ctx, *inbound, mc.Annotation().AsyncCancel, i.manager.Rollback)

	default:
		return nil, fmt.Errorf("%w: invalid inbound status %s", txcore.ErrSystem, inbound.Status)
	}
}

func (i *Interceptor) resumeAndDrive(
	ctx context.Context,
	inbound txcore.Context,
	async bool,
	drive func(ctx context.Context, async bool) error,
) error {
	tx, err := i.manager.PropagationExistBegin(ctx, inbound)
	if err != nil {
		if errors.Is(err, txcore.ErrNoExistedTransaction) {
			i.logger.Debug("branch already completed, swallowing duplicate delivery", "xid", inbound.Xid)
			return nil
		}
		return fmt.Errorf("interceptor: resume branch: %w", err)
	}
	defer i.cleanup(ctx, tx)

	if err := drive(ctx, async); err != nil {
		return fmt.Errorf("interceptor: drive branch phase: %w", err)
	}
	return nil
}

func (i *Interceptor) cleanup(ctx context.Context, tx *txcore.Transaction) {
	if err := i.manager.CleanAfterCompletion(ctx, tx); err != nil {
		i.logger.Error("clean after completion failed", "xid", tx.Xid, "error", err)
	}
}

// shouldDelayCancel is the Go rendering of spec.md §4.2's "delay-cancel
// decision": bizErr matches the union of globally and per-annotation
// declared exceptions if errors.Is finds it in the chain, or if
// errors.As finds a value of the same concrete type — the closest
// analogue Go has to "the throwable's type is assignable to" a
// class-hierarchy-based exception list.
func (i *Interceptor) shouldDelayCancel(ann Annotation, bizErr error) bool {
	for _, target := range i.globalDelayCancelExceptions {
		if matchesDelayTarget(bizErr, target) {
			return true
		}
	}
	for _, target := range ann.DelayCancelExceptions {
		if matchesDelayTarget(bizErr, target) {
			return true
		}
	}
	return false
}

func matchesDelayTarget(err, target error) bool {
	if target == nil {
		return false
	}
	if errors.Is(err, target) {
		return true
	}

	targetType := reflect.TypeOf(target)
	matchPtr := reflect.New(targetType)
	return errors.As(err, matchPtr.Interface())
}
