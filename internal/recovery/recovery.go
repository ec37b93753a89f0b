// Package recovery implements the re-drive decision logic for stuck
// transactions (spec.md §5, "Cancellation & timeouts"): given a
// transaction's persisted status and age, decide whether to re-drive its
// confirm or cancel phase, or to cancel a TRYING transaction that never
// reached a phase decision within its deadline. Recovery never schedules
// itself — a caller (a cron job, a supervisor-managed poller, an operator
// CLI command) decides when to call Recover; that cadence is explicitly
// out of scope (spec.md §1).
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tylooteam/tyloo/internal/repository"
	"github.com/tylooteam/tyloo/internal/txcore"
	"github.com/tylooteam/tyloo/internal/txmanager"
)

// Recoverer re-drives stuck transactions. It holds no schedule of its
// own: Recover and ScanAll are called on demand.
type Recoverer struct {
	repo repository.Repository
	mgr  *txmanager.Manager

	// MaxRetries bounds how many times a single transaction is re-driven
	// before it's left alone for an operator to inspect (spec.md §5:
	// "retriedCount bounds the number of automatic retries before the
	// record is quarantined").
	MaxRetries int

	// TryingTimeout is how long a transaction may remain in TRYING
	// before recovery treats it as abandoned and cancels it.
	TryingTimeout time.Duration

	logger *slog.Logger
}

// New builds a Recoverer with the given bounds. handler is used for
// recovery-scoped logging; pass nil for the default text-to-stdout
// handler.
func New(repo repository.Repository, mgr *txmanager.Manager, maxRetries int, tryingTimeout time.Duration, handler slog.Handler) *Recoverer {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	return &Recoverer{
		repo:          repo,
		mgr:           mgr,
		MaxRetries:    maxRetries,
		TryingTimeout: tryingTimeout,
		logger:        slog.New(handler).WithGroup("recovery.Recoverer"),
	}
}

// ErrQuarantined is a sentinel returned when a record has exhausted
// MaxRetries; the caller is expected to surface this for operator
// attention rather than treat it as a retryable failure.
var ErrQuarantined = errors.New("recovery: transaction exceeded max retries")

// Recover inspects a single transaction record and, if it needs one,
// re-drives its phase. It is safe to call repeatedly on the same record:
// confirm and cancel are each idempotent from the core's point of view
// (the core delegates exactly-once semantics to participant user code).
func (r *Recoverer) Recover(ctx context.Context, rec txcore.Record) error {
	if rec.RetriedCount >= r.MaxRetries {
		r.logger.Warn("transaction quarantined", "xid", rec.Xid, "retriedCount", rec.RetriedCount)
		return fmt.Errorf("%w: xid %s", ErrQuarantined, rec.Xid)
	}

	switch rec.Status {
	case txcore.StatusConfirming:
		return r.redrive(ctx, rec, r.mgr.Commit)

	case txcore.StatusCancelling:
		return r.redrive(ctx, rec, r.mgr.Rollback)

	case txcore.StatusTrying:
		if time.Since(rec.LastUpdateAt) < r.TryingTimeout {
			return nil
		}
		r.logger.Info("abandoned trying transaction past timeout, cancelling", "xid", rec.Xid)
		return r.redrive(ctx, rec, r.mgr.Rollback)

	default:
		return fmt.Errorf("%w: unrecoverable status %s for xid %s", txcore.ErrSystem, rec.Status, rec.Xid)
	}
}

func (r *Recoverer) redrive(ctx context.Context, rec txcore.Record, drive func(ctx context.Context, async bool) error) error {
	tx, err := r.repo.FindByXid(ctx, rec.Xid, rec.BranchID)
	if err != nil {
		if errors.Is(err, txcore.ErrNoExistedTransaction) {
			// Already completed between the scan that produced rec and now.
			return nil
		}
		return fmt.Errorf("recovery: load %s: %w", rec.Xid, err)
	}
	tx.IncrementRetry()
	if err := r.repo.Update(ctx, tx); err != nil {
		return fmt.Errorf("recovery: persist retry count %s: %w", rec.Xid, err)
	}

	driveCtx := txmanager.WithStack(ctx)
	stack, _ := txmanager.StackFromContext(driveCtx)
	stack.Push(tx)
	defer func() {
		if err := stack.PopIfTop(tx); err != nil {
			r.logger.Error("recovery cleanup failed", "xid", tx.Xid, "error", err)
		}
	}()

	if err := drive(driveCtx, false); err != nil {
		return fmt.Errorf("recovery: re-drive %s: %w", rec.Xid, err)
	}
	return nil
}

// RecordSource is any Repository implementation that can enumerate its
// records. repository/memory and repository/file both expose an All()
// method with this shape; ScanAll accepts any source satisfying it so it
// isn't coupled to one backend.
type RecordSource interface {
	All() []txcore.Record
}

// ScanAll recovers every transaction returned by source, logging but not
// stopping on individual failures so one stuck record can't block the
// rest of the sweep.
func (r *Recoverer) ScanAll(ctx context.Context, source RecordSource) (recovered int, failed int) {
	for _, rec := range source.All() {
		if err := r.Recover(ctx, rec); err != nil {
			r.logger.Error("recovery pass failed for transaction", "xid", rec.Xid, "error", err)
			failed++
			continue
		}
		recovered++
	}
	return recovered, failed
}
