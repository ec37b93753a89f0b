package txcore

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	loglater "github.com/robbyt/go-loglater"
	"github.com/robbyt/go-loglater/storage"

	"github.com/tylooteam/tyloo/internal/txcore/finitestate"
)

// Type distinguishes a root transaction (created at the initiator) from a
// branch transaction (created by a provider attaching to an inbound
// Context).
type Type string

const (
	// Root is the transaction created at the initiator of a call chain;
	// it owns the commit/rollback decision.
	Root Type = "ROOT"
	// Branch is a transaction created by a provider receiving an inbound
	// Context; it accumulates that provider's participants and executes
	// its own commit/rollback when its phase is driven.
	Branch Type = "BRANCH"
)

// Transaction is the aggregate root: identity, status, type, version,
// participant list, and timestamps (spec.md §3). Every persisted update
// increments Version; Participants preserves insertion order, which is
// also enlistment order and invocation order during commit.
type Transaction struct {
	Xid          uuid.UUID
	BranchID     uuid.UUID
	Type         Type
	RetriedCount int
	Version      int64
	CreatedAt    time.Time
	LastUpdateAt time.Time

	mu           sync.RWMutex
	fsm          finitestate.Machine
	participants []*Participant
	attachments  map[string]any

	logger       *slog.Logger
	logCollector *loglater.LogCollector
}

// New builds a Transaction of the given type. Root transactions pass a nil
// branchID; branch transactions pass the branchID minted for them at
// propagationNewBegin.
func New(xid uuid.UUID, branchID uuid.UUID, typ Type, handler slog.Handler) (*Transaction, error) {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}

	fsm, err := finitestate.NewTransactionMachine(handler)
	if err != nil {
		return nil, fmt.Errorf("txcore: create transaction state machine: %w", err)
	}

	logCollector := loglater.NewLogCollector(handler)
	logger := slog.New(logCollector).With("xid", xid, "branchId", branchID, "type", typ)

	now := time.Now()
	tx := &Transaction{
		Xid:          xid,
		BranchID:     branchID,
		Type:         typ,
		Version:      0,
		CreatedAt:    now,
		LastUpdateAt: now,
		fsm:          fsm,
		attachments:  make(map[string]any),
		logger:       logger,
		logCollector: logCollector,
	}

	logger.Debug("transaction created", "status", tx.Status())
	return tx, nil
}

// Status returns the transaction's current phase.
func (tx *Transaction) Status() Status {
	switch tx.fsm.GetState() {
	case finitestate.StateTrying:
		return StatusTrying
	case finitestate.StateConfirming:
		return StatusConfirming
	case finitestate.StateCancelling:
		return StatusCancelling
	default:
		return StatusUnknown
	}
}

// Context returns the wire Context describing this transaction's current
// identity and phase, ready to be sent to a participant.
func (tx *Transaction) Context() Context {
	return Context{Xid: tx.Xid, BranchID: tx.BranchID, Status: tx.Status()}
}

// BeginConfirming advances the transaction TRYING -> CONFIRMING. It is an
// error to call this from any status other than TRYING.
func (tx *Transaction) BeginConfirming() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if err := tx.fsm.Transition(finitestate.StateConfirming); err != nil {
		tx.logger.Error("failed to transition to confirming", "error", err)
		return err
	}
	tx.LastUpdateAt = time.Now()
	tx.logger.Debug("transaction confirming")
	return nil
}

// BeginCancelling advances the transaction TRYING -> CANCELLING.
func (tx *Transaction) BeginCancelling() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if err := tx.fsm.Transition(finitestate.StateCancelling); err != nil {
		tx.logger.Error("failed to transition to cancelling", "error", err)
		return err
	}
	tx.LastUpdateAt = time.Now()
	tx.logger.Debug("transaction cancelling")
	return nil
}

// SetStatus force-sets the status without checking the transition table.
// Used only by propagationExistBegin and recovery, which load a status
// that was already decided (and persisted) elsewhere.
func (tx *Transaction) SetStatus(status Status) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	var state string
	switch status {
	case StatusTrying:
		state = finitestate.StateTrying
	case StatusConfirming:
		state = finitestate.StateConfirming
	case StatusCancelling:
		state = finitestate.StateCancelling
	default:
		return fmt.Errorf("txcore: invalid status %s", status)
	}

	if err := tx.fsm.SetState(state); err != nil {
		return fmt.Errorf("txcore: set status: %w", err)
	}
	tx.LastUpdateAt = time.Now()
	return nil
}

// EnlistParticipant appends p to the participant list in enlistment order.
// Enlistment is only legal while the transaction is TRYING — once a phase
// decision has been persisted, the participant set is frozen.
func (tx *Transaction) EnlistParticipant(p *Participant) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status() != StatusTrying {
		return fmt.Errorf(
			"%w: cannot enlist participant once transaction is %s",
			ErrSystem,
			tx.Status(),
		)
	}
	tx.participants = append(tx.participants, p)
	tx.LastUpdateAt = time.Now()
	tx.logger.Debug("participant enlisted", "target", p.Confirm.Target, "count", len(tx.participants))
	return nil
}

// Participants returns a snapshot of the enlisted participants in
// enlistment order.
func (tx *Transaction) Participants() []*Participant {
	tx.mu.RLock()
	defer tx.mu.RUnlock()

	out := make([]*Participant, len(tx.participants))
	copy(out, tx.participants)
	return out
}

// SetAttachment stores an opaque value under key, persisted with the
// transaction record.
func (tx *Transaction) SetAttachment(key string, value any) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.attachments[key] = value
}

// Attachment retrieves a previously stored attachment.
func (tx *Transaction) Attachment(key string) (any, bool) {
	tx.mu.RLock()
	defer tx.mu.RUnlock()
	v, ok := tx.attachments[key]
	return v, ok
}

// Attachments returns a shallow copy of the full attachment map.
func (tx *Transaction) Attachments() map[string]any {
	tx.mu.RLock()
	defer tx.mu.RUnlock()

	out := make(map[string]any, len(tx.attachments))
	for k, v := range tx.attachments {
		out[k] = v
	}
	return out
}

// IncrementRetry bumps RetriedCount. Only recovery calls this.
func (tx *Transaction) IncrementRetry() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.RetriedCount++
}

// Logger returns the transaction-scoped logger, pre-populated with xid,
// branchId, and type fields.
func (tx *Transaction) Logger() *slog.Logger {
	return tx.logger
}

// PlaybackLogs replays this transaction's full log history to handler, so
// an operator can attach a stuck transaction's logs to an incident report
// after the fact.
func (tx *Transaction) PlaybackLogs(handler slog.Handler) error {
	return tx.logCollector.PlayLogs(handler)
}

// GetLogs returns the raw collected log records.
func (tx *Transaction) GetLogs() []storage.Record {
	return tx.logCollector.GetLogs()
}

func (tx *Transaction) String() string {
	return fmt.Sprintf(
		"Transaction{xid: %s, branchId: %s, type: %s, status: %s, version: %d}",
		tx.Xid, tx.BranchID, tx.Type, tx.Status(), tx.Version,
	)
}
