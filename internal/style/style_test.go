package style

import (
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"

	"github.com/tylooteam/tyloo/internal/txcore"
)

func TestStatus_RendersKnownStatuses(t *testing.T) {
	t.Parallel()

	for _, s := range []txcore.Status{txcore.StatusTrying, txcore.StatusConfirming, txcore.StatusCancelling} {
		rendered := Status(s)
		assert.Contains(t, rendered, s.String())
	}
}

func TestRecord_ContainsXidAndCounts(t *testing.T) {
	t.Parallel()

	rec := txcore.Record{
		Xid:          uuid.Must(uuid.NewV7()),
		Type:         txcore.Root,
		Status:       txcore.StatusTrying,
		RetriedCount: 2,
		Participants: make([]txcore.ParticipantRecord, 3),
	}

	line := Record(rec)
	assert.Contains(t, line, rec.Xid.String())
	assert.Contains(t, line, "retries=2")
	assert.Contains(t, line, "participants=3")
}
