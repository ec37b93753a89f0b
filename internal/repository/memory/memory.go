// Package memory provides a thread-safe, in-process Repository
// implementation, modeled on the mutex-plus-map pattern the teacher uses
// for its transaction history store (txstorage.TransactionStorage): a
// single RWMutex guarding a map, snapshot copies in and out so callers
// never share mutable state with the store.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/tylooteam/tyloo/internal/txcore"
)

type key struct {
	xid      uuid.UUID
	branchID uuid.UUID
}

// Repository is an in-memory Repository. Records are kept as immutable
// snapshots (txcore.Record), not as the live *txcore.Transaction the
// caller passed in, so optimistic-concurrency checks compare against a
// version that couldn't have been mutated behind the repository's back.
type Repository struct {
	mu      sync.RWMutex
	records map[key]txcore.Record
	handler slog.Handler
	logger  *slog.Logger
}

// New creates an empty in-memory Repository. handler is used to rebuild
// transactions' loggers and state machines on FindByXid; pass nil for the
// default text-to-stdout handler.
func New(handler slog.Handler) *Repository {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	return &Repository{
		records: make(map[key]txcore.Record),
		handler: handler,
		logger:  slog.New(handler).WithGroup("repository.memory"),
	}
}

func keyOf(xid, branchID uuid.UUID) key {
	return key{xid: xid, branchID: branchID}
}

func (r *Repository) Create(_ context.Context, tx *txcore.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := keyOf(tx.Xid, tx.BranchID)
	if _, exists := r.records[k]; exists {
		return fmt.Errorf("repository/memory: transaction %s already exists", tx.Xid)
	}

	tx.Version = 1
	r.records[k] = tx.Snapshot()
	r.logger.Debug("transaction created", "xid", tx.Xid, "branchId", tx.BranchID)
	return nil
}

func (r *Repository) Update(_ context.Context, tx *txcore.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := keyOf(tx.Xid, tx.BranchID)
	existing, ok := r.records[k]
	if !ok {
		return fmt.Errorf("repository/memory: update %s: %w", tx.Xid, txcore.ErrNoExistedTransaction)
	}

	if existing.Version != tx.Version {
		return fmt.Errorf(
			"repository/memory: update %s: %w (have %d, stored %d)",
			tx.Xid, txcore.ErrOptimisticLock, tx.Version, existing.Version,
		)
	}

	tx.Version++
	r.records[k] = tx.Snapshot()
	r.logger.Debug("transaction updated", "xid", tx.Xid, "version", tx.Version)
	return nil
}

func (r *Repository) FindByXid(_ context.Context, xid, branchID uuid.UUID) (*txcore.Transaction, error) {
	r.mu.RLock()
	rec, ok := r.records[keyOf(xid, branchID)]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("repository/memory: find %s: %w", xid, txcore.ErrNoExistedTransaction)
	}

	return txcore.Restore(rec, r.handler)
}

func (r *Repository) Delete(_ context.Context, tx *txcore.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := keyOf(tx.Xid, tx.BranchID)
	delete(r.records, k)
	r.logger.Debug("transaction deleted", "xid", tx.Xid, "branchId", tx.BranchID)
	return nil
}

// Len returns the number of records currently stored, useful in tests and
// for a recovery scheduler deciding whether a scan is worth running.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// All returns a snapshot of every stored record, for recovery scans.
func (r *Repository) All() []txcore.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]txcore.Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}
