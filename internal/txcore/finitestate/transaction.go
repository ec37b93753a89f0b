package finitestate

import (
	"context"
	"time"

	"log/slog"

	"github.com/robbyt/go-fsm/v2"
)

// ErrInvalidStateTransition is re-exported from go-fsm so callers of this
// package never need to import it directly.
var ErrInvalidStateTransition = fsm.ErrInvalidStateTransition

// Transaction status constants, per the wire Context status byte and the
// Transaction.status field. There is deliberately no "terminal" state here:
// a transaction is terminal by being deleted from the Repository, not by
// occupying a state (invariant 1).
const (
	StateTrying     = "TRYING"
	StateConfirming = "CONFIRMING"
	StateCancelling = "CANCELLING"
)

// TransactionTransitions encodes "status advances strictly: TRYING ->
// {CONFIRMING|CANCELLING}" (data model invariant 1). CONFIRMING and
// CANCELLING have no outgoing transitions in this table because recovery
// re-drives the same phase rather than moving to a new state; the record's
// eventual deletion is what ends the lifecycle, not a state transition.
var TransactionTransitions = map[string][]string{
	StateTrying:     {StateConfirming, StateCancelling},
	StateConfirming: {},
	StateCancelling: {},
}

// TransactionFSM tracks a single Transaction's status.
type TransactionFSM struct {
	*fsm.Machine
}

// GetStateChan broadcasts with a bounded sync timeout so a slow or gone
// subscriber can never block a phase transition.
func (m *TransactionFSM) GetStateChan(ctx context.Context) <-chan string {
	return m.GetStateChanWithOptions(ctx, fsm.WithSyncTimeout(5*time.Second))
}

// NewTransactionMachine creates a Machine seeded in StateTrying, the status
// every Transaction is born into (spec.md §3: "Transaction... status:
// TRYING, CONFIRMING, CANCELLING").
func NewTransactionMachine(handler slog.Handler) (Machine, error) {
	m, err := fsm.New(handler, StateTrying, TransactionTransitions)
	if err != nil {
		return nil, err
	}
	return &TransactionFSM{Machine: m}, nil
}
