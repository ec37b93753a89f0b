package interceptor

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tylooteam/tyloo/internal/repository/memory"
	"github.com/tylooteam/tyloo/internal/txcore"
	"github.com/tylooteam/tyloo/internal/txmanager"
)

type stubInvoker struct {
	calls int
	err   error
}

func (s *stubInvoker) Invoke(context.Context, txcore.Invocation) error {
	s.calls++
	return s.err
}

func businessWithParticipant(mgr *txmanager.Manager) Proceeder {
	return func(ctx context.Context) (any, error) {
		tx, ok := mgr.GetCurrentTransaction(ctx)
		if !ok {
			return nil, errors.New("no active transaction in business body")
		}
		p, err := txcore.NewParticipant(
			tx.Xid, tx.BranchID,
			txcore.Invocation{Target: "inventory", Method: "Confirm"},
			txcore.Invocation{Target: "inventory", Method: "Cancel"},
			nil,
		)
		if err != nil {
			return nil, err
		}
		if err := mgr.EnlistParticipant(ctx, p); err != nil {
			return nil, err
		}
		return "ok", nil
	}
}

func TestInterceptor_RootMethodProceed_Success(t *testing.T) {
	t.Parallel()

	repo := memory.New(nil)
	invoker := &stubInvoker{}
	mgr := txmanager.New(repo, nil, invoker, nil)
	ic := New(mgr, nil, nil)

	mc := NewMethodContext(Annotation{Propagation: Required}, nil, []any{"req-1"}, businessWithParticipant(mgr))

	result, err := ic.RootMethodProceed(context.Background(), mc)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, invoker.calls)
}

func TestInterceptor_RootMethodProceed_BusinessFailureRollsBack(t *testing.T) {
	t.Parallel()

	repo := memory.New(nil)
	invoker := &stubInvoker{}
	mgr := txmanager.New(repo, nil, invoker, nil)
	ic := New(mgr, nil, nil)

	boom := errors.New("business failure")
	mc := NewMethodContext(Annotation{Propagation: Required}, nil, nil, func(ctx context.Context) (any, error) {
		tx, _ := mgr.GetCurrentTransaction(ctx)
		p, err := txcore.NewParticipant(
			tx.Xid, tx.BranchID,
			txcore.Invocation{Target: "inventory"}, txcore.Invocation{Target: "inventory"},
			nil,
		)
		require.NoError(t, err)
		require.NoError(t, mgr.EnlistParticipant(ctx, p))
		return nil, boom
	})

	_, err := ic.RootMethodProceed(context.Background(), mc)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, invoker.calls, "cancel should have been invoked on the enlisted participant")
}

func TestInterceptor_RootMethodProceed_DelayCancelDefersRollback(t *testing.T) {
	t.Parallel()

	repo := memory.New(nil)
	invoker := &stubInvoker{}
	mgr := txmanager.New(repo, nil, invoker, nil)

	delayable := errors.New("transient downstream timeout")
	ic := New(mgr, []error{delayable}, nil)

	mc := NewMethodContext(Annotation{Propagation: Required}, nil, nil, func(ctx context.Context) (any, error) {
		tx, _ := mgr.GetCurrentTransaction(ctx)
		p, err := txcore.NewParticipant(
			tx.Xid, tx.BranchID,
			txcore.Invocation{Target: "inventory"}, txcore.Invocation{Target: "inventory"},
			nil,
		)
		require.NoError(t, err)
		require.NoError(t, mgr.EnlistParticipant(ctx, p))
		return nil, delayable
	})

	_, err := ic.RootMethodProceed(context.Background(), mc)
	assert.ErrorIs(t, err, delayable)
	assert.Equal(t, 0, invoker.calls, "a delay-cancel error must not trigger immediate rollback")
}

func TestInterceptor_ProviderMethodProceed_Trying(t *testing.T) {
	t.Parallel()

	repo := memory.New(nil)
	invoker := &stubInvoker{}
	mgr := txmanager.New(repo, nil, invoker, nil)
	ic := New(mgr, nil, nil)

	inbound := txcore.NewContext(mustXid(t)).WithStatus(txcore.StatusTrying)
	mc := NewMethodContext(Annotation{Propagation: Required}, &inbound, nil, func(ctx context.Context) (any, error) {
		tx, ok := mgr.GetCurrentTransaction(ctx)
		require.True(t, ok)
		assert.Equal(t, txcore.Branch, tx.Type)
		assert.Equal(t, inbound.Xid, tx.Xid)
		return "branch-ok", nil
	})

	result, err := ic.ProviderMethodProceed(context.Background(), mc)
	require.NoError(t, err)
	assert.Equal(t, "branch-ok", result)
}

func TestInterceptor_ProviderMethodProceed_ConfirmingSwallowsMissing(t *testing.T) {
	t.Parallel()

	repo := memory.New(nil)
	invoker := &stubInvoker{}
	mgr := txmanager.New(repo, nil, invoker, nil)
	ic := New(mgr, nil, nil)

	inbound := txcore.NewContext(mustXid(t)).WithStatus(txcore.StatusConfirming)
	mc := NewMethodContext(Annotation{Propagation: Required}, &inbound, nil, nil)

	result, err := ic.ProviderMethodProceed(context.Background(), mc)
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestInterceptor_ProviderMethodProceed_ConfirmingDrivesCommit(t *testing.T) {
	t.Parallel()

	repo := memory.New(nil)
	invoker := &stubInvoker{}
	mgr := txmanager.New(repo, nil, invoker, nil)
	ic := New(mgr, nil, nil)

	xid := mustXid(t)
	branchCtx := txmanager.WithStack(context.Background())
	branch, err := mgr.PropagationNewBegin(branchCtx, txcore.NewContext(xid))
	require.NoError(t, err)
	p, err := txcore.NewParticipant(
		xid, branch.BranchID,
		txcore.Invocation{Target: "inventory"}, txcore.Invocation{Target: "inventory"},
		nil,
	)
	require.NoError(t, err)
	require.NoError(t, mgr.EnlistParticipant(branchCtx, p))
	require.NoError(t, mgr.CleanAfterCompletion(branchCtx, branch))

	inbound := txcore.Context{Xid: xid, BranchID: branch.BranchID, Status: txcore.StatusConfirming}
	mc := NewMethodContext(Annotation{Propagation: Required}, &inbound, nil, nil)

	_, err = ic.ProviderMethodProceed(context.Background(), mc)
	require.NoError(t, err)
	assert.Equal(t, 1, invoker.calls)

	_, err = repo.FindByXid(context.Background(), xid, branch.BranchID)
	assert.ErrorIs(t, err, txcore.ErrNoExistedTransaction)
}

func mustXid(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.Must(uuid.NewV7())
}
