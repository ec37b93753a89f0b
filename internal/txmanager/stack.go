// Package txmanager implements the Transaction Manager: the component
// that mints, persists, and drives Transactions through their confirm or
// cancel phase, and the per-call-chain transaction stack that tracks
// which Transaction is "current" for enlistment.
package txmanager

import (
	"context"
	"fmt"
	"sync"

	"github.com/tylooteam/tyloo/internal/txcore"
)

type stackKey struct{}

// Stack is a per-call-chain stack of active Transactions (spec.md §3,
// "Per-initiator transaction stack"). Go has no thread-locals; a Stack is
// instead created once per call chain and carried as a context.Context
// value, mutated in place behind a mutex for that chain's lifetime — the
// task-scoped-value rendering spec.md §5 calls out for non-thread-per-
// request runtimes.
type Stack struct {
	mu    sync.Mutex
	items []*txcore.Transaction
}

// WithStack installs a fresh Stack into ctx if one isn't already present,
// so nested compensable calls within the same chain share one stack.
func WithStack(ctx context.Context) context.Context {
	if _, ok := StackFromContext(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, stackKey{}, &Stack{})
}

// StackFromContext retrieves the Stack installed by WithStack.
func StackFromContext(ctx context.Context) (*Stack, bool) {
	s, ok := ctx.Value(stackKey{}).(*Stack)
	return s, ok
}

// Push makes tx the new top of stack.
func (s *Stack) Push(tx *txcore.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, tx)
}

// Peek returns the current (top-of-stack) transaction, if any.
func (s *Stack) Peek() (*txcore.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return nil, false
	}
	return s.items[len(s.items)-1], true
}

// PopIfTop pops tx iff it is currently the top of stack. Mis-nested
// cleanup (cleaning up a transaction that isn't current) is a programmer
// bug and must be loud, so this returns txcore.ErrSystem rather than
// silently no-op'ing.
func (s *Stack) PopIfTop(tx *txcore.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 || s.items[len(s.items)-1] != tx {
		return fmt.Errorf("%w: transaction %s is not top of stack", txcore.ErrSystem, tx.Xid)
	}
	s.items = s.items[:len(s.items)-1]
	return nil
}

// Len reports the number of active transactions on the stack.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
