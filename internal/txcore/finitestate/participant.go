package finitestate

import (
	"context"
	"time"

	"log/slog"

	"github.com/robbyt/go-fsm/v2"
)

// Participant status constants. These track a single Participant's own
// invocation lifecycle, separate from its owning Transaction's status.
const (
	ParticipantEnlisted    = "enlisted"    // registered in the Transaction, not yet invoked
	ParticipantConfirming  = "confirming"  // confirm invocation in flight
	ParticipantConfirmed   = "confirmed"   // confirm invocation returned without error
	ParticipantCancelling  = "cancelling"  // cancel invocation in flight
	ParticipantCancelled   = "cancelled"   // cancel invocation returned without error
	ParticipantInvokeError = "invoke_error" // the invocation itself returned an error
)

// ParticipantTransitions allows either phase to be retried from its own
// terminal state: recovery may re-drive a confirm/cancel against the same
// participant any number of times (spec.md invariant 4), so Confirmed and
// Cancelled loop back to their own in-flight state rather than being sinks.
var ParticipantTransitions = map[string][]string{
	ParticipantEnlisted:    {ParticipantConfirming, ParticipantCancelling},
	ParticipantConfirming:  {ParticipantConfirmed, ParticipantInvokeError},
	ParticipantConfirmed:   {ParticipantConfirming},
	ParticipantCancelling:  {ParticipantCancelled, ParticipantInvokeError},
	ParticipantCancelled:   {ParticipantCancelling},
	ParticipantInvokeError: {ParticipantConfirming, ParticipantCancelling},
}

// ParticipantFSM tracks one Participant's invocation lifecycle.
type ParticipantFSM struct {
	*fsm.Machine
}

func (p *ParticipantFSM) GetStateChan(ctx context.Context) <-chan string {
	return p.GetStateChanWithOptions(ctx, fsm.WithSyncTimeout(5*time.Second))
}

// NewParticipantMachine creates a Machine seeded in ParticipantEnlisted.
func NewParticipantMachine(handler slog.Handler) (Machine, error) {
	m, err := fsm.New(handler, ParticipantEnlisted, ParticipantTransitions)
	if err != nil {
		return nil, err
	}
	return &ParticipantFSM{Machine: m}, nil
}
