package txcore

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/uuid/v5"
)

// ParticipantRecord is the serialized form of a Participant: the two
// invocation descriptors and its last known invocation state, with no
// back-reference to its owning Transaction (design note: Participants hold
// only value-copied descriptors, never a participant -> transaction
// pointer).
type ParticipantRecord struct {
	Confirm Invocation
	Cancel  Invocation
	State   string
}

// Record is the serialized persistence layout of a Transaction (spec.md
// §6): one record per transaction keyed by Xid. This is what a
// Repository implementation actually reads and writes; Transaction itself
// carries unexported synchronization and logging state that never touches
// the wire.
type Record struct {
	Xid          uuid.UUID
	BranchID     uuid.UUID
	Type         Type
	Status       Status
	RetriedCount int
	Version      int64
	CreatedAt    time.Time
	LastUpdateAt time.Time
	Participants []ParticipantRecord
	Attachments  map[string]any
}

// Snapshot renders tx into its serializable Record form.
func (tx *Transaction) Snapshot() Record {
	tx.mu.RLock()
	defer tx.mu.RUnlock()

	participants := make([]ParticipantRecord, len(tx.participants))
	for i, p := range tx.participants {
		participants[i] = ParticipantRecord{
			Confirm: p.Confirm,
			Cancel:  p.Cancel,
			State:   p.State(),
		}
	}

	attachments := make(map[string]any, len(tx.attachments))
	for k, v := range tx.attachments {
		attachments[k] = v
	}

	return Record{
		Xid:          tx.Xid,
		BranchID:     tx.BranchID,
		Type:         tx.Type,
		Status:       tx.Status(),
		RetriedCount: tx.RetriedCount,
		Version:      tx.Version,
		CreatedAt:    tx.CreatedAt,
		LastUpdateAt: tx.LastUpdateAt,
		Participants: participants,
		Attachments:  attachments,
	}
}

// Restore rebuilds a live Transaction from a Record, for Repository
// implementations that only keep the wire form (e.g. repository/file).
// The rebuilt transaction's state machines are seeded directly via
// SetState/participant reconstruction rather than replayed transition by
// transition, since only the current state (not the history) was
// persisted.
func Restore(rec Record, handler slog.Handler) (*Transaction, error) {
	tx, err := New(rec.Xid, rec.BranchID, rec.Type, handler)
	if err != nil {
		return nil, fmt.Errorf("txcore: restore transaction: %w", err)
	}

	if err := tx.SetStatus(rec.Status); err != nil {
		return nil, fmt.Errorf("txcore: restore status: %w", err)
	}

	tx.RetriedCount = rec.RetriedCount
	tx.Version = rec.Version
	tx.CreatedAt = rec.CreatedAt
	tx.LastUpdateAt = rec.LastUpdateAt

	for _, pr := range rec.Participants {
		p, err := NewParticipant(rec.Xid, rec.BranchID, pr.Confirm, pr.Cancel, handler)
		if err != nil {
			return nil, fmt.Errorf("txcore: restore participant %s: %w", pr.Confirm.Target, err)
		}
		if pr.State != "" {
			if err := p.fsm.SetState(pr.State); err != nil {
				return nil, fmt.Errorf("txcore: restore participant state: %w", err)
			}
		}
		tx.participants = append(tx.participants, p)
	}

	for k, v := range rec.Attachments {
		tx.attachments[k] = v
	}

	return tx, nil
}
