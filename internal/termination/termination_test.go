package termination

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/lumera-labs/lockup-vesting/internal/engineerr"
	"github.com/lumera-labs/lockup-vesting/internal/ledger"
	"github.com/lumera-labs/lockup-vesting/internal/lockup"
	"github.com/lumera-labs/lockup-vesting/internal/money"
	"github.com/lumera-labs/lockup-vesting/internal/schedule"
	"github.com/lumera-labs/lockup-vesting/internal/store"
)

func bal(v uint64) money.Balance { return money.NewFromUint64(v) }

func cp(t uint64, v uint64) schedule.Checkpoint {
	return schedule.Checkpoint{Timestamp: money.Timestamp(t), Balance: bal(v)}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s *store.Store, l *lockup.Lockup) lockup.Index {
	t.Helper()
	n, err := s.NumLockups()
	require.NoError(t, err)
	idx := lockup.Index(n)
	require.NoError(t, s.PutLockup(idx, l))
	require.NoError(t, s.SetNumLockups(n+1))
	require.NoError(t, s.AddAccountLockup(l.AccountID, idx))
	return idx
}

// S3 — terminate rejected when the lockup carries no termination config.
func TestTerminate_NoTerminationConfig(t *testing.T) {
	s := openStore(t)
	idx := seed(t, s, &lockup.Lockup{
		AccountID: "bob",
		Schedule:  schedule.New([]schedule.Checkpoint{cp(0, 0), cp(100, 1000)}),
	})

	ctrl := gomock.NewController(t)
	l := ledger.NewMockLedger(ctrl)
	e := New(s, l, nil)

	_, err := e.Terminate(context.Background(), "carol", idx, nil, 50)
	require.ErrorIs(t, err, engineerr.ErrNoTerminationConfig)
}

// S4 — a revealed schedule that does not match the stored hash commitment
// must be rejected and must not mutate the lockup.
func TestTerminate_HashRevealMismatch(t *testing.T) {
	s := openStore(t)
	committed := schedule.New([]schedule.Checkpoint{cp(0, 0), cp(200, 1000)})
	idx := seed(t, s, &lockup.Lockup{
		AccountID: "bob",
		Schedule:  schedule.New([]schedule.Checkpoint{cp(0, 0), cp(100, 1000)}),
		TerminationConfig: &lockup.TerminationConfig{
			TerminatorID: "carol",
			VestingKind:  lockup.VestingHash,
			VestingHash:  committed.Hash(),
		},
	})

	ctrl := gomock.NewController(t)
	l := ledger.NewMockLedger(ctrl)
	e := New(s, l, nil)

	wrong := schedule.New([]schedule.Checkpoint{cp(0, 0), cp(201, 1000)})
	_, err := e.Terminate(context.Background(), "carol", idx, &wrong, 50)
	require.ErrorIs(t, err, engineerr.ErrInvalidRevealedSchedule)

	after, ok, err := s.GetLockup(idx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, after.TerminationConfig, "rejected reveal must not mutate the lockup")
}

// S5 — terminator has no storage registration: the ledger transfer fails
// and the refund is deferred into a brand new lockup for the terminator.
func TestTerminate_DeferredRefundOnTransferFailure(t *testing.T) {
	s := openStore(t)
	idx := seed(t, s, &lockup.Lockup{
		AccountID: "bob",
		Schedule:  schedule.New([]schedule.Checkpoint{cp(0, 0), cp(200, 1000)}),
		TerminationConfig: &lockup.TerminationConfig{
			TerminatorID: "carol",
			VestingKind:  lockup.VestingNone,
		},
	})

	ctrl := gomock.NewController(t)
	l := ledger.NewMockLedger(ctrl)
	l.EXPECT().Transfer(gomock.Any(), lockup.AccountID("carol"), gomock.Any()).Return(errors.New("no storage registration"))

	e := New(s, l, nil)
	refund, err := e.Terminate(context.Background(), "carol", idx, nil, 0)
	require.NoError(t, err)
	require.True(t, refund.IsZero(), "return value is zero when the refund was deferred")

	n, err := s.NumLockups()
	require.NoError(t, err)
	require.EqualValues(t, 2, n, "a deferred lockup must have been opened")

	deferred, ok, err := s.GetLockup(lockup.Index(1))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, lockup.AccountID("carol"), deferred.AccountID)
	require.Equal(t, bal(1000), deferred.TotalBalance())
}

// Terminating before the first checkpoint unlocks refunds the entire
// total and leaves a degenerate, already-exhausted schedule behind.
func TestTerminate_BeforeFirstCheckpoint(t *testing.T) {
	s := openStore(t)
	idx := seed(t, s, &lockup.Lockup{
		AccountID: "bob",
		Schedule:  schedule.New([]schedule.Checkpoint{cp(100, 0), cp(200, 1000)}),
		TerminationConfig: &lockup.TerminationConfig{
			TerminatorID: "carol",
			VestingKind:  lockup.VestingNone,
		},
	})

	ctrl := gomock.NewController(t)
	l := ledger.NewMockLedger(ctrl)
	l.EXPECT().Transfer(gomock.Any(), lockup.AccountID("carol"), bal(1000)).Return(nil)

	e := New(s, l, nil)
	refund, err := e.Terminate(context.Background(), "carol", idx, nil, 0)
	require.NoError(t, err)
	require.Equal(t, bal(1000), refund)

	after, ok, err := s.GetLockup(idx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Nil(t, after.TerminationConfig)
	require.True(t, after.TotalBalance().IsZero())
	require.True(t, after.UnclaimedBalance(0).IsZero())

	indices, err := s.AccountLockups("bob")
	require.NoError(t, err)
	require.NotContains(t, indices, idx, "a lockup terminated to a zero total is retired and must disappear from account_lockups")
}

// Terminating after full vesting refunds nothing and leaves the original
// unlock curve's end state intact.
func TestTerminate_AfterFullyVested(t *testing.T) {
	s := openStore(t)
	idx := seed(t, s, &lockup.Lockup{
		AccountID: "bob",
		Schedule:  schedule.New([]schedule.Checkpoint{cp(0, 0), cp(100, 1000)}),
		TerminationConfig: &lockup.TerminationConfig{
			TerminatorID: "carol",
			VestingKind:  lockup.VestingNone,
		},
	})

	ctrl := gomock.NewController(t)
	l := ledger.NewMockLedger(ctrl) // no Transfer expected: refund is zero

	e := New(s, l, nil)
	refund, err := e.Terminate(context.Background(), "carol", idx, nil, 100)
	require.NoError(t, err)
	require.True(t, refund.IsZero())

	after, ok, err := s.GetLockup(idx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, bal(1000), after.TotalBalance())
	require.Equal(t, bal(1000), after.UnclaimedBalance(100))

	indices, err := s.AccountLockups("bob")
	require.NoError(t, err)
	require.Contains(t, indices, idx, "an unclaimed, fully-vested lockup is not yet retired")
}
