package txcore

import (
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
)

// Sentinel errors for the four kinds spec.md §7 names. Every other error in
// this module wraps one of these with fmt.Errorf("%w: ...") so callers can
// branch on kind with errors.Is, matching the teacher's
// config/transaction/errors.go idiom.
var (
	// ErrNoExistedTransaction is expected during provider CONFIRMING/
	// CANCELLING when the branch record was already deleted by a prior
	// call (double delivery) — swallowed by the interceptor, never
	// surfaced to the caller.
	ErrNoExistedTransaction = errors.New("tyloo: no existing transaction for branch")

	// ErrOptimisticLock indicates a concurrent Repository.Update raced
	// this one and lost; it typically means a recovery pass raced the
	// live path.
	ErrOptimisticLock = errors.New("tyloo: optimistic lock conflict")

	// ErrConfirming wraps a confirm phase-body failure; the record is
	// left intact for recovery.
	ErrConfirming = errors.New("tyloo: confirm phase failed")

	// ErrCancelling wraps a cancel phase-body failure; the record is left
	// intact for recovery.
	ErrCancelling = errors.New("tyloo: cancel phase failed")

	// ErrSystem marks a programmer-facing invariant violation (mis-nested
	// cleanup, MANDATORY propagation without an active transaction). It
	// is fatal to the current call and is never swallowed.
	ErrSystem = errors.New("tyloo: system invariant violation")
)

// TransactionError carries which transaction and which phase an error
// occurred in, for log/metric correlation — the Go rendering of the
// teacher's TransactionError{Phase, ID, Message, Original}.
type TransactionError struct {
	Xid     uuid.UUID
	Phase   string
	Message string
	Err     error
}

func (e *TransactionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transaction %s failed during %s: %s: %v", e.Xid, e.Phase, e.Message, e.Err)
	}
	return fmt.Sprintf("transaction %s failed during %s: %s", e.Xid, e.Phase, e.Message)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// NewTransactionError builds a TransactionError wrapping err.
func NewTransactionError(xid uuid.UUID, phase, message string, err error) *TransactionError {
	return &TransactionError{Xid: xid, Phase: phase, Message: message, Err: err}
}
