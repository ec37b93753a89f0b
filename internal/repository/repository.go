// Package repository defines the persistence contract the Transaction
// Manager depends on (spec.md §4.4) and ships two reference
// implementations: an in-memory store (repository/memory) and a
// file-backed store (repository/file). Both satisfy the same
// optimistic-concurrency contract: Update fails with ErrOptimisticLock if
// the caller's Version doesn't match the stored one, and every successful
// Update strictly increases Version.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/tylooteam/tyloo/internal/txcore"
)

// Repository persists and loads Transactions (spec.md §4.4). Every
// operation may block on I/O; implementations MUST be safe for concurrent
// use from multiple goroutines.
type Repository interface {
	// Create inserts tx, failing if its Xid (and, for branch
	// transactions, BranchID) already exists. On success tx.Version is 1.
	Create(ctx context.Context, tx *txcore.Transaction) error

	// Update compares tx's Version against the stored record and, if it
	// matches, persists tx and increments the stored Version. Returns
	// txcore.ErrOptimisticLock on a version mismatch.
	Update(ctx context.Context, tx *txcore.Transaction) error

	// FindByXid loads the transaction for xid. For a branch transaction,
	// branchID selects among branches sharing the same xid; pass
	// uuid.Nil to look up a root. Returns txcore.ErrNoExistedTransaction
	// if nothing matches.
	FindByXid(ctx context.Context, xid, branchID uuid.UUID) (*txcore.Transaction, error)

	// Delete removes the record for tx. Delete is idempotent: deleting an
	// already-absent record is not an error.
	Delete(ctx context.Context, tx *txcore.Transaction) error
}
