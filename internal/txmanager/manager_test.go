package txmanager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tylooteam/tyloo/internal/repository/memory"
	"github.com/tylooteam/tyloo/internal/txcore"
	"github.com/tylooteam/tyloo/internal/worker"
)

type recordingInvoker struct {
	mu    sync.Mutex
	calls []txcore.Invocation
	err   error
}

func (r *recordingInvoker) Invoke(_ context.Context, inv txcore.Invocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, inv)
	return r.err
}

func (r *recordingInvoker) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newTestManager() (*Manager, *recordingInvoker) {
	invoker := &recordingInvoker{}
	repo := memory.New(nil)
	mgr := New(repo, nil, invoker, nil)
	return mgr, invoker
}

func TestManager_Begin_PushesCurrentTransaction(t *testing.T) {
	t.Parallel()

	mgr, _ := newTestManager()
	ctx := WithStack(context.Background())

	tx, err := mgr.Begin(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, txcore.Root, tx.Type)

	current, ok := mgr.GetCurrentTransaction(ctx)
	require.True(t, ok)
	assert.Same(t, tx, current)
	assert.True(t, mgr.IsTransactionActive(ctx))
}

func TestManager_Begin_WithoutStackFails(t *testing.T) {
	t.Parallel()

	mgr, _ := newTestManager()
	_, err := mgr.Begin(context.Background(), "")
	assert.ErrorIs(t, err, txcore.ErrSystem)
}

func TestManager_Begin_DeterministicWithUniqueId(t *testing.T) {
	t.Parallel()

	mgr, _ := newTestManager()
	ctx1 := WithStack(context.Background())
	ctx2 := WithStack(context.Background())

	tx1, err := mgr.Begin(ctx1, "order-42")
	require.NoError(t, err)
	require.NoError(t, mgr.CleanAfterCompletion(ctx1, tx1))

	require.NoError(t, mgr.repo.Delete(ctx1, tx1))

	tx2, err := mgr.Begin(ctx2, "order-42")
	require.NoError(t, err)

	assert.Equal(t, tx1.Xid, tx2.Xid)
}

func TestManager_CommitSync_ConfirmsAllParticipants(t *testing.T) {
	t.Parallel()

	mgr, invoker := newTestManager()
	ctx := WithStack(context.Background())

	tx, err := mgr.Begin(ctx, "")
	require.NoError(t, err)

	for _, name := range []string{"alpha", "beta"} {
		p, err := txcore.NewParticipant(
			tx.Xid, tx.BranchID,
			txcore.Invocation{Target: name, Method: "Confirm"},
			txcore.Invocation{Target: name, Method: "Cancel"},
			nil,
		)
		require.NoError(t, err)
		require.NoError(t, mgr.EnlistParticipant(ctx, p))
	}

	require.NoError(t, mgr.Commit(ctx, false))
	assert.Equal(t, 2, invoker.count())

	_, err = mgr.repo.FindByXid(ctx, tx.Xid, tx.BranchID)
	assert.ErrorIs(t, err, txcore.ErrNoExistedTransaction)

	require.NoError(t, mgr.CleanAfterCompletion(ctx, tx))
	assert.False(t, mgr.IsTransactionActive(ctx))
}

func TestManager_CommitSync_ParticipantFailureLeavesRecord(t *testing.T) {
	t.Parallel()

	mgr, invoker := newTestManager()
	invoker.err = errors.New("boom")
	ctx := WithStack(context.Background())

	tx, err := mgr.Begin(ctx, "")
	require.NoError(t, err)

	p, err := txcore.NewParticipant(
		tx.Xid, tx.BranchID,
		txcore.Invocation{Target: "inventory"}, txcore.Invocation{Target: "inventory"},
		nil,
	)
	require.NoError(t, err)
	require.NoError(t, mgr.EnlistParticipant(ctx, p))

	err = mgr.Commit(ctx, false)
	assert.ErrorIs(t, err, txcore.ErrConfirming)

	_, err = mgr.repo.FindByXid(ctx, tx.Xid, tx.BranchID)
	assert.NoError(t, err, "record must survive a failed confirm for recovery to re-drive")
}

func TestManager_RollbackSync(t *testing.T) {
	t.Parallel()

	mgr, invoker := newTestManager()
	ctx := WithStack(context.Background())

	tx, err := mgr.Begin(ctx, "")
	require.NoError(t, err)

	p, err := txcore.NewParticipant(
		tx.Xid, tx.BranchID,
		txcore.Invocation{Target: "inventory"}, txcore.Invocation{Target: "inventory"},
		nil,
	)
	require.NoError(t, err)
	require.NoError(t, mgr.EnlistParticipant(ctx, p))

	require.NoError(t, mgr.Rollback(ctx, false))
	assert.Equal(t, 1, invoker.count())
}

func TestManager_PropagationNewBegin_InheritsXid(t *testing.T) {
	t.Parallel()

	mgr, _ := newTestManager()
	rootCtx := WithStack(context.Background())
	root, err := mgr.Begin(rootCtx, "")
	require.NoError(t, err)

	branchCtx := WithStack(context.Background())
	branch, err := mgr.PropagationNewBegin(branchCtx, root.Context())
	require.NoError(t, err)

	assert.Equal(t, root.Xid, branch.Xid)
	assert.NotEqual(t, root.BranchID, branch.BranchID)
	assert.Equal(t, txcore.Branch, branch.Type)
}

func TestManager_PropagationExistBegin_NotFound(t *testing.T) {
	t.Parallel()

	mgr, _ := newTestManager()
	ctx := WithStack(context.Background())
	root, err := mgr.Begin(ctx, "")
	require.NoError(t, err)

	inbound := root.Context().WithStatus(txcore.StatusConfirming)
	require.NoError(t, mgr.repo.Delete(ctx, root))

	_, err = mgr.PropagationExistBegin(ctx, inbound)
	assert.ErrorIs(t, err, txcore.ErrNoExistedTransaction)
}

func TestManager_CleanAfterCompletion_WrongTopFails(t *testing.T) {
	t.Parallel()

	mgr, _ := newTestManager()
	ctx := WithStack(context.Background())
	tx, err := mgr.Begin(ctx, "")
	require.NoError(t, err)

	other, err := txcore.New(tx.Xid, tx.BranchID, txcore.Root, nil)
	require.NoError(t, err)

	err = mgr.CleanAfterCompletion(ctx, other)
	assert.ErrorIs(t, err, txcore.ErrSystem)
}

func TestManager_CommitAsync_DispatchesToPool(t *testing.T) {
	t.Parallel()

	invoker := &recordingInvoker{}
	repo := memory.New(nil)
	pool := worker.New(2, 4, nil)
	mgr := New(repo, pool, invoker, nil)

	poolCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pool.Run(poolCtx) }()

	ctx := WithStack(context.Background())
	tx, err := mgr.Begin(ctx, "")
	require.NoError(t, err)

	p, err := txcore.NewParticipant(
		tx.Xid, tx.BranchID,
		txcore.Invocation{Target: "inventory"}, txcore.Invocation{Target: "inventory"},
		nil,
	)
	require.NoError(t, err)
	require.NoError(t, mgr.EnlistParticipant(ctx, p))

	require.NoError(t, mgr.Commit(ctx, true))

	require.Eventually(t, func() bool {
		return invoker.count() == 1
	}, time.Second, 5*time.Millisecond)
}
