package txcore

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gofrs/uuid/v5"

	"github.com/tylooteam/tyloo/internal/txcore/finitestate"
)

// Invocation is a single confirm or cancel call descriptor: which target to
// call, which method to call on it, and the argument list to pass. The
// argument list MUST be capturable by value / serializable by whatever RPC
// layer the caller wires in — this package never inspects Args itself.
type Invocation struct {
	Target string
	Method string
	Args   []any
}

func (inv Invocation) String() string {
	return fmt.Sprintf("%s.%s(%v)", inv.Target, inv.Method, inv.Args)
}

// Invoker dispatches a single Invocation. It is the external collaborator
// spec.md §1 calls out as out of scope: the RPC transport that actually
// carries the confirm/cancel call to the participant. Production callers
// wire an Invoker backed by gRPC, HTTP, or an in-process method call.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) error
}

// Participant represents a single party's confirm/cancel invocation
// descriptors plus its per-branch context (spec.md §3). Once enlisted into
// a Transaction, a Participant's invocations are immutable: Confirm and
// Cancel are set at construction and never reassigned.
type Participant struct {
	Xid      uuid.UUID
	BranchID uuid.UUID
	Confirm  Invocation
	Cancel   Invocation

	fsm    finitestate.Machine
	logger *slog.Logger
	err    error
}

// NewParticipant enlists a participant's invocation descriptors under the
// given xid/branchId. It does not call anything: enlistment only records
// intent, invocation happens during commit/rollback. Pass a nil handler
// for the default text-to-stdout handler.
func NewParticipant(
	xid, branchID uuid.UUID,
	confirm, cancel Invocation,
	handler slog.Handler,
) (*Participant, error) {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}

	fsm, err := finitestate.NewParticipantMachine(handler)
	if err != nil {
		return nil, fmt.Errorf("txcore: create participant state machine: %w", err)
	}

	logger := slog.New(handler).With("xid", xid, "branchId", branchID, "target", confirm.Target)

	return &Participant{
		Xid:      xid,
		BranchID: branchID,
		Confirm:  confirm,
		Cancel:   cancel,
		fsm:      fsm,
		logger:   logger,
	}, nil
}

// State returns the participant's current invocation-lifecycle state.
func (p *Participant) State() string {
	return p.fsm.GetState()
}

// Err returns the error from the participant's most recent failed
// invocation, or nil if its last invocation succeeded (or it hasn't been
// invoked yet).
func (p *Participant) Err() error {
	return p.err
}

// InvokeConfirm drives the participant's confirm invocation through invoker,
// exactly once per call, transitioning its state machine around the call.
// Confirm MUST be idempotent on the participant's own side — this method
// does not deduplicate repeated calls, it only tracks the outcome of this
// one.
func (p *Participant) InvokeConfirm(ctx context.Context, invoker Invoker) error {
	if err := p.fsm.Transition(finitestate.ParticipantConfirming); err != nil {
		return fmt.Errorf("txcore: participant %s begin confirm: %w", p.Confirm.Target, err)
	}
	p.logger.Debug("invoking confirm", "method", p.Confirm.Method)

	if err := invoker.Invoke(ctx, p.Confirm); err != nil {
		p.markInvokeError(err)
		return fmt.Errorf("txcore: participant %s confirm: %w", p.Confirm.Target, err)
	}

	if err := p.fsm.Transition(finitestate.ParticipantConfirmed); err != nil {
		return fmt.Errorf("txcore: participant %s mark confirmed: %w", p.Confirm.Target, err)
	}
	p.logger.Debug("confirm succeeded")
	return nil
}

// InvokeCancel is InvokeConfirm's mirror for the cancel phase.
func (p *Participant) InvokeCancel(ctx context.Context, invoker Invoker) error {
	if err := p.fsm.Transition(finitestate.ParticipantCancelling); err != nil {
		return fmt.Errorf("txcore: participant %s begin cancel: %w", p.Cancel.Target, err)
	}
	p.logger.Debug("invoking cancel", "method", p.Cancel.Method)

	if err := invoker.Invoke(ctx, p.Cancel); err != nil {
		p.markInvokeError(err)
		return fmt.Errorf("txcore: participant %s cancel: %w", p.Cancel.Target, err)
	}

	if err := p.fsm.Transition(finitestate.ParticipantCancelled); err != nil {
		return fmt.Errorf("txcore: participant %s mark cancelled: %w", p.Cancel.Target, err)
	}
	p.logger.Debug("cancel succeeded")
	return nil
}

func (p *Participant) markInvokeError(err error) {
	p.err = err
	if tErr := p.fsm.Transition(finitestate.ParticipantInvokeError); tErr != nil {
		p.logger.Error("failed to record invoke error state", "transitionError", tErr, "cause", err)
		return
	}
	p.logger.Warn("participant invocation failed", "error", err)
}
