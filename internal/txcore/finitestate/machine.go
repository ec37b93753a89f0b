// Package finitestate provides the state machines backing a Transaction's
// and a Participant's lifecycle. Both are thin wrappers around
// github.com/robbyt/go-fsm, giving each its own transition table and a
// sync-broadcast state channel suitable for WaitForCompletion-style polling.
package finitestate

import (
	"context"
	"log/slog"
)

// Machine is the interface satisfied by both the transaction and the
// participant state machines, allowing callers to depend on behavior
// rather than on the concrete go-fsm type.
type Machine interface {
	// Transition attempts to move to the given state, returning an error
	// if the transition isn't allowed from the current state.
	Transition(state string) error

	// TransitionBool is Transition without the error, for callers that
	// only care whether the move succeeded.
	TransitionBool(state string) bool

	// TransitionIfCurrentState transitions only if the machine is
	// currently in currentState, atomically.
	TransitionIfCurrentState(currentState, newState string) error

	// SetState forces the state, bypassing the transition table. Used by
	// recovery to re-seed a machine loaded from a Repository record.
	SetState(state string) error

	// GetState returns the current state.
	GetState() string

	// GetStateChan streams state changes until ctx is canceled.
	GetStateChan(ctx context.Context) <-chan string
}

// Factory creates a Machine bound to the given log handler. Used where the
// caller wants to swap in an alternate Machine implementation for tests.
type Factory func(handler slog.Handler) (Machine, error)
