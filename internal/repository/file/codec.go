package file

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/tylooteam/tyloo/internal/txcore"
)

const timeLayout = time.RFC3339Nano

func toDisk(rec txcore.Record) record {
	participants := make([]participant, len(rec.Participants))
	for i, pr := range rec.Participants {
		participants[i] = participant{
			ConfirmTarget: pr.Confirm.Target,
			ConfirmMethod: pr.Confirm.Method,
			ConfirmArgs:   pr.Confirm.Args,
			CancelTarget:  pr.Cancel.Target,
			CancelMethod:  pr.Cancel.Method,
			CancelArgs:    pr.Cancel.Args,
			State:         pr.State,
		}
	}

	return record{
		Xid:          rec.Xid.String(),
		BranchID:     rec.BranchID.String(),
		Type:         string(rec.Type),
		Status:       uint8(rec.Status),
		RetriedCount: rec.RetriedCount,
		Version:      rec.Version,
		CreatedAt:    rec.CreatedAt.Format(timeLayout),
		LastUpdateAt: rec.LastUpdateAt.Format(timeLayout),
		Participants: participants,
		Attachments:  rec.Attachments,
	}
}

func fromDisk(rec record) (txcore.Record, error) {
	xid, err := uuid.FromString(rec.Xid)
	if err != nil {
		return txcore.Record{}, fmt.Errorf("parse xid: %w", err)
	}
	branchID, err := uuid.FromString(rec.BranchID)
	if err != nil {
		return txcore.Record{}, fmt.Errorf("parse branch id: %w", err)
	}
	createdAt, err := time.Parse(timeLayout, rec.CreatedAt)
	if err != nil {
		return txcore.Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	lastUpdateAt, err := time.Parse(timeLayout, rec.LastUpdateAt)
	if err != nil {
		return txcore.Record{}, fmt.Errorf("parse last_update_at: %w", err)
	}

	participants := make([]txcore.ParticipantRecord, len(rec.Participants))
	for i, p := range rec.Participants {
		participants[i] = txcore.ParticipantRecord{
			Confirm: txcore.Invocation{Target: p.ConfirmTarget, Method: p.ConfirmMethod, Args: p.ConfirmArgs},
			Cancel:  txcore.Invocation{Target: p.CancelTarget, Method: p.CancelMethod, Args: p.CancelArgs},
			State:   p.State,
		}
	}

	return txcore.Record{
		Xid:          xid,
		BranchID:     branchID,
		Type:         txcore.Type(rec.Type),
		Status:       txcore.Status(rec.Status),
		RetriedCount: rec.RetriedCount,
		Version:      rec.Version,
		CreatedAt:    createdAt,
		LastUpdateAt: lastUpdateAt,
		Participants: participants,
		Attachments:  rec.Attachments,
	}, nil
}
