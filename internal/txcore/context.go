package txcore

import (
	"fmt"

	"github.com/gofrs/uuid/v5"
)

// wireLen is the fixed size of the serialized Context: a 16-byte xid, a
// 16-byte branchId, and a 1-byte status (spec.md §6).
const wireLen = 2*uuid.Size + 1

// Context is the three-field record carried across every RPC boundary
// between a compensable caller and a compensable provider (spec.md §6). It
// is immutable after construction except for Status, which advances
// monotonically TRYING -> CONFIRMING or TRYING -> CANCELLING.
type Context struct {
	Xid      uuid.UUID
	BranchID uuid.UUID
	Status   Status
}

// NewContext builds a Context for a root transaction: a fresh xid, a zero
// branchId (the root has no branch of its own), and StatusTrying.
func NewContext(xid uuid.UUID) Context {
	return Context{Xid: xid, Status: StatusTrying}
}

// WithStatus returns a copy of ctx advanced to the given status. It does
// not validate the TRYING -> {CONFIRMING|CANCELLING} monotonicity itself;
// that invariant is enforced by the Transaction's state machine, which is
// the single place status changes are actually decided.
func (c Context) WithStatus(status Status) Context {
	c.Status = status
	return c
}

// IsZero reports whether c is the unset zero value.
func (c Context) IsZero() bool {
	return c.Xid == uuid.Nil && c.BranchID == uuid.Nil && c.Status == StatusUnknown
}

// MarshalBinary implements encoding.BinaryMarshaler, producing the 33-byte
// {xid, branchId, status} layout specified in spec.md §6.
func (c Context) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, wireLen)
	buf = append(buf, c.Xid.Bytes()...)
	buf = append(buf, c.BranchID.Bytes()...)
	buf = append(buf, byte(c.Status))
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler, the inverse of
// MarshalBinary. Transports MAY wrap the payload (header, metadata,
// trailer) but MUST deliver these exact 33 bytes round-trip.
func (c *Context) UnmarshalBinary(data []byte) error {
	if len(data) != wireLen {
		return fmt.Errorf("txcore: invalid context wire length %d, want %d", len(data), wireLen)
	}

	xid, err := uuid.FromBytes(data[0:uuid.Size])
	if err != nil {
		return fmt.Errorf("txcore: decode xid: %w", err)
	}

	branchID, err := uuid.FromBytes(data[uuid.Size : 2*uuid.Size])
	if err != nil {
		return fmt.Errorf("txcore: decode branchId: %w", err)
	}

	c.Xid = xid
	c.BranchID = branchID
	c.Status = Status(data[2*uuid.Size])
	return nil
}

func (c Context) String() string {
	return fmt.Sprintf("Context{xid: %s, branchId: %s, status: %s}", c.Xid, c.BranchID, c.Status)
}
