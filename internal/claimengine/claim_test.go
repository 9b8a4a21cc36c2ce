package claimengine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/lumera-labs/lockup-vesting/internal/ledger"
	"github.com/lumera-labs/lockup-vesting/internal/lockup"
	"github.com/lumera-labs/lockup-vesting/internal/money"
	"github.com/lumera-labs/lockup-vesting/internal/schedule"
	"github.com/lumera-labs/lockup-vesting/internal/store"
)

func bal(v uint64) money.Balance { return money.NewFromUint64(v) }

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedLockup(t *testing.T, s *store.Store, account lockup.AccountID, total uint64) lockup.Index {
	t.Helper()
	l := &lockup.Lockup{
		AccountID: account,
		Schedule: schedule.New([]schedule.Checkpoint{
			{Timestamp: 0, Balance: bal(0)},
			{Timestamp: 100, Balance: bal(total)},
		}),
	}
	n, err := s.NumLockups()
	require.NoError(t, err)
	idx := lockup.Index(n)
	require.NoError(t, s.PutLockup(idx, l))
	require.NoError(t, s.SetNumLockups(n+1))
	require.NoError(t, s.AddAccountLockup(account, idx))
	return idx
}

func TestClaim_SettlesAndRetires(t *testing.T) {
	s := openStore(t)
	idx := seedLockup(t, s, "alice", 1000)

	ctrl := gomock.NewController(t)
	l := ledger.NewMockLedger(ctrl)
	l.EXPECT().Transfer(gomock.Any(), lockup.AccountID("alice"), bal(1000)).Return(nil)

	e := New(s, l, nil)
	got, err := e.Claim(context.Background(), "alice", 100)
	require.NoError(t, err)
	require.Equal(t, bal(1000), got)

	view, ok, err := s.GetLockup(idx)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, view.IsRetired())

	remaining, err := s.AccountLockups("alice")
	require.NoError(t, err)
	require.Empty(t, remaining, "retired lockup must drop out of account_lockups")
}

// property 6: a failed transfer must leave state bit-identical to before
// the call, including account_lockups membership for a lockup that would
// have retired.
func TestClaim_RollbackOnTransferFailure(t *testing.T) {
	s := openStore(t)
	idx := seedLockup(t, s, "alice", 1000)

	before, ok, err := s.GetLockup(idx)
	require.NoError(t, err)
	require.True(t, ok)

	ctrl := gomock.NewController(t)
	l := ledger.NewMockLedger(ctrl)
	l.EXPECT().Transfer(gomock.Any(), lockup.AccountID("alice"), bal(1000)).Return(errors.New("no storage registration"))

	e := New(s, l, nil)
	got, err := e.Claim(context.Background(), "alice", 100)
	require.NoError(t, err, "claim must never fail fatally on transfer rejection")
	require.Equal(t, bal(0), got)

	after, ok, err := s.GetLockup(idx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, before.ClaimedBalance, after.ClaimedBalance)

	indices, err := s.AccountLockups("alice")
	require.NoError(t, err)
	require.Equal(t, []lockup.Index{idx}, indices, "rollback must restore account_lockups membership")
}

func TestClaim_NothingUnclaimed(t *testing.T) {
	s := openStore(t)
	seedLockup(t, s, "alice", 1000)

	ctrl := gomock.NewController(t)
	l := ledger.NewMockLedger(ctrl) // no Transfer call expected

	e := New(s, l, nil)
	got, err := e.Claim(context.Background(), "alice", 0)
	require.NoError(t, err)
	require.True(t, got.IsZero())
}
