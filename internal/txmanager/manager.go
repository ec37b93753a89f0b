package txmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/gofrs/uuid/v5"

	"github.com/tylooteam/tyloo/internal/repository"
	"github.com/tylooteam/tyloo/internal/txcore"
	"github.com/tylooteam/tyloo/internal/worker"
)

// idempotenceNamespace seeds deterministic UUIDv5 generation from a
// caller-supplied uniqueId, so retrying Begin with the same uniqueId
// always mints the same xid.
var idempotenceNamespace = uuid.Must(uuid.FromString("6f6e8b0a-1f34-4c7e-9b1a-9a9b9f5f9a01"))

// Manager is the Transaction Manager (spec.md §4.1): it mints, persists,
// and drives Transactions through confirm or cancel, backed by a
// repository.Repository for durability and a worker.Pool for async phase
// dispatch. All phase transitions are persist-before-execute: a crash
// after the status flip but before (or during) phase execution leaves a
// record that recovery can read and re-drive.
type Manager struct {
	repo    repository.Repository
	pool    *worker.Pool
	invoker txcore.Invoker
	handler slog.Handler
	logger  *slog.Logger
}

// New builds a Manager. invoker dispatches confirm/cancel calls to
// participants; handler is used for transactions' and the manager's own
// logging (pass nil for the default text-to-stdout handler).
func New(repo repository.Repository, pool *worker.Pool, invoker txcore.Invoker, handler slog.Handler) *Manager {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	return &Manager{
		repo:    repo,
		pool:    pool,
		invoker: invoker,
		handler: handler,
		logger:  slog.New(handler).WithGroup("txmanager.Manager"),
	}
}

func currentStack(ctx context.Context) (*Stack, error) {
	stack, ok := StackFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: no transaction stack installed on context", txcore.ErrSystem)
	}
	return stack, nil
}

// Begin mints a fresh ROOT transaction, persists it, and pushes it onto
// the stack carried by ctx (which must already have been installed by
// txmanager.WithStack). uniqueId, when non-empty, seeds a deterministic
// xid so retried Begin calls with the same uniqueId produce the same
// transaction identity; an empty uniqueId mints a random one.
func (m *Manager) Begin(ctx context.Context, uniqueId string) (*txcore.Transaction, error) {
	stack, err := currentStack(ctx)
	if err != nil {
		return nil, err
	}

	xid := uuid.Must(uuid.NewV7())
	if uniqueId != "" {
		xid = uuid.NewV5(idempotenceNamespace, uniqueId)
	}

	tx, err := txcore.New(xid, uuid.Nil, txcore.Root, m.handler)
	if err != nil {
		return nil, fmt.Errorf("txmanager: begin: %w", err)
	}

	if err := m.repo.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("txmanager: begin: persist root %s: %w", xid, err)
	}

	stack.Push(tx)
	m.logger.Debug("began root transaction", "xid", xid)
	return tx, nil
}

// PropagationNewBegin mints a BRANCH transaction inheriting inbound.Xid,
// with a freshly minted branchId, persists it, and pushes it onto the
// stack. Called by a provider receiving a TRYING inbound Context.
func (m *Manager) PropagationNewBegin(ctx context.Context, inbound txcore.Context) (*txcore.Transaction, error) {
	stack, err := currentStack(ctx)
	if err != nil {
		return nil, err
	}

	branchID := uuid.Must(uuid.NewV7())
	tx, err := txcore.New(inbound.Xid, branchID, txcore.Branch, m.handler)
	if err != nil {
		return nil, fmt.Errorf("txmanager: propagationNewBegin: %w", err)
	}

	if err := m.repo.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("txmanager: propagationNewBegin: persist branch %s: %w", branchID, err)
	}

	stack.Push(tx)
	m.logger.Debug("began branch transaction", "xid", inbound.Xid, "branchId", branchID)
	return tx, nil
}

// PropagationExistBegin loads the transaction identified by inbound,
// advances it to inbound.Status, persists that status, and pushes it onto
// the stack. Returns
// txcore.ErrNoExistedTransaction if the record is absent — an EXPECTED
// condition meaning the branch already completed and its record was
// deleted (e.g. a duplicate delivery of a CONFIRMING call).
func (m *Manager) PropagationExistBegin(ctx context.Context, inbound txcore.Context) (*txcore.Transaction, error) {
	stack, err := currentStack(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := m.repo.FindByXid(ctx, inbound.Xid, inbound.BranchID)
	if err != nil {
		return nil, fmt.Errorf("txmanager: propagationExistBegin: %w", err)
	}

	if err := tx.SetStatus(inbound.Status); err != nil {
		return nil, fmt.Errorf("txmanager: propagationExistBegin: set status: %w", err)
	}
	if err := m.repo.Update(ctx, tx); err != nil {
		return nil, fmt.Errorf("txmanager: propagationExistBegin: persist status: %w", err)
	}

	stack.Push(tx)
	m.logger.Debug("resumed transaction", "xid", inbound.Xid, "branchId", inbound.BranchID, "status", inbound.Status)
	return tx, nil
}

// Commit drives the current (top-of-stack) transaction's confirm phase.
// It flips status to CONFIRMING and persists before executing any
// participant call (persist-before-execute), so a crash mid-phase can be
// resumed by recovery. If async, the phase body is handed to the worker
// pool and Commit returns as soon as dispatch succeeds; a dispatch
// failure is reported as txcore.ErrConfirming, leaving the persisted
// record for recovery to re-drive. If sync, the phase runs inline and
// its outcome is returned directly.
func (m *Manager) Commit(ctx context.Context, async bool) error {
	stack, err := currentStack(ctx)
	if err != nil {
		return err
	}
	tx, ok := stack.Peek()
	if !ok {
		return fmt.Errorf("%w: commit with no active transaction", txcore.ErrSystem)
	}

	// A transaction loaded already in CONFIRMING (recovery re-driving a
	// crash-interrupted phase, or a provider branch resumed by
	// PropagationExistBegin) has no outgoing transition back to
	// CONFIRMING in its state machine — that status flip already
	// happened and was persisted. Only perform the transition, and its
	// persist-before-execute write, the first time.
	if tx.Status() != txcore.StatusConfirming {
		if err := tx.BeginConfirming(); err != nil {
			return fmt.Errorf("txmanager: commit: %w", err)
		}
		if err := m.repo.Update(ctx, tx); err != nil {
			return fmt.Errorf("txmanager: commit: persist status: %w", err)
		}
	}

	phase := func(phaseCtx context.Context) error { return m.runConfirmPhase(phaseCtx, tx) }

	if !async {
		return phase(ctx)
	}

	if err := m.dispatch(phase); err != nil {
		return fmt.Errorf("%w: dispatch confirm: %v", txcore.ErrConfirming, err)
	}
	return nil
}

// Rollback is Commit's mirror for the cancel phase.
func (m *Manager) Rollback(ctx context.Context, async bool) error {
	stack, err := currentStack(ctx)
	if err != nil {
		return err
	}
	tx, ok := stack.Peek()
	if !ok {
		return fmt.Errorf("%w: rollback with no active transaction", txcore.ErrSystem)
	}

	// See the matching comment in Commit: recovery re-driving an
	// already-CANCELLING transaction must skip the transition, not
	// repeat it.
	if tx.Status() != txcore.StatusCancelling {
		if err := tx.BeginCancelling(); err != nil {
			return fmt.Errorf("txmanager: rollback: %w", err)
		}
		if err := m.repo.Update(ctx, tx); err != nil {
			return fmt.Errorf("txmanager: rollback: persist status: %w", err)
		}
	}

	phase := func(phaseCtx context.Context) error { return m.runCancelPhase(phaseCtx, tx) }

	if !async {
		return phase(ctx)
	}

	if err := m.dispatch(phase); err != nil {
		return fmt.Errorf("%w: dispatch cancel: %v", txcore.ErrCancelling, err)
	}
	return nil
}

func (m *Manager) dispatch(job worker.Job) error {
	if m.pool == nil {
		return errors.New("no worker pool configured")
	}
	return m.pool.Submit(job)
}

// runConfirmPhase invokes confirm on every enlisted participant in
// enlistment order. Full success deletes the record; any participant
// failure leaves it intact and reports txcore.ErrConfirming.
func (m *Manager) runConfirmPhase(ctx context.Context, tx *txcore.Transaction) error {
	for _, p := range tx.Participants() {
		if err := p.InvokeConfirm(ctx, m.invoker); err != nil {
			if uerr := m.repo.Update(ctx, tx); uerr != nil {
				tx.Logger().Error("failed to persist participant invoke error", "error", uerr)
			}
			return fmt.Errorf("%w: %v", txcore.ErrConfirming, err)
		}
	}

	if err := m.repo.Delete(ctx, tx); err != nil {
		return fmt.Errorf("txmanager: confirm: delete completed record: %w", err)
	}
	tx.Logger().Info("transaction confirmed")
	return nil
}

// runCancelPhase is runConfirmPhase's mirror for the cancel direction.
func (m *Manager) runCancelPhase(ctx context.Context, tx *txcore.Transaction) error {
	for _, p := range tx.Participants() {
		if err := p.InvokeCancel(ctx, m.invoker); err != nil {
			if uerr := m.repo.Update(ctx, tx); uerr != nil {
				tx.Logger().Error("failed to persist participant invoke error", "error", uerr)
			}
			return fmt.Errorf("%w: %v", txcore.ErrCancelling, err)
		}
	}

	if err := m.repo.Delete(ctx, tx); err != nil {
		return fmt.Errorf("txmanager: cancel: delete completed record: %w", err)
	}
	tx.Logger().Info("transaction cancelled")
	return nil
}

// EnlistParticipant appends p to the current transaction's participant
// list and persists the update.
func (m *Manager) EnlistParticipant(ctx context.Context, p *txcore.Participant) error {
	stack, err := currentStack(ctx)
	if err != nil {
		return err
	}
	tx, ok := stack.Peek()
	if !ok {
		return fmt.Errorf("%w: enlist with no active transaction", txcore.ErrSystem)
	}

	if err := tx.EnlistParticipant(p); err != nil {
		return fmt.Errorf("txmanager: enlist participant: %w", err)
	}
	if err := m.repo.Update(ctx, tx); err != nil {
		return fmt.Errorf("txmanager: enlist participant: persist: %w", err)
	}
	return nil
}

// CleanAfterCompletion pops tx from the stack. It is an error for tx not
// to be the current top of stack: mis-nested compensable calls are a
// programmer bug, and this surfaces it loudly instead of silently
// leaving the stack in a broken state.
func (m *Manager) CleanAfterCompletion(ctx context.Context, tx *txcore.Transaction) error {
	stack, err := currentStack(ctx)
	if err != nil {
		return err
	}
	return stack.PopIfTop(tx)
}

// GetCurrentTransaction returns the top-of-stack transaction, if any.
func (m *Manager) GetCurrentTransaction(ctx context.Context) (*txcore.Transaction, bool) {
	stack, ok := StackFromContext(ctx)
	if !ok {
		return nil, false
	}
	return stack.Peek()
}

// IsTransactionActive reports whether the call chain carried by ctx has
// a current transaction.
func (m *Manager) IsTransactionActive(ctx context.Context) bool {
	_, ok := m.GetCurrentTransaction(ctx)
	return ok
}
