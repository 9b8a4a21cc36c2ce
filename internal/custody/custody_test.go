package custody

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/lumera-labs/lockup-vesting/internal/acl"
	"github.com/lumera-labs/lockup-vesting/internal/engineerr"
	"github.com/lumera-labs/lockup-vesting/internal/exchange"
	"github.com/lumera-labs/lockup-vesting/internal/lockup"
	"github.com/lumera-labs/lockup-vesting/internal/money"
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

func TestParseCustodyTokenID(t *testing.T) {
	acc, pool, err := ParseCustodyTokenID("ref.near@7")
	require.NoError(t, err)
	require.Equal(t, lockup.AccountID("ref.near"), acc)
	require.Equal(t, exchange.PoolID(7), pool)

	_, _, err = ParseCustodyTokenID("malformed")
	require.ErrorIs(t, err, engineerr.ErrInvalidSchedule)
}

func TestTransfer_MissingDepositMarkerRejected(t *testing.T) {
	s := openStore(t)
	a := acl.New([]lockup.AccountID{"admin"})
	ctrl := gomock.NewController(t)
	x := exchange.NewMockExchange(ctrl) // no calls expected

	p := New(s, a, x, nil)
	err := p.Transfer(context.Background(), false, "depositor", "ref.near@7", "receiver", bal(10))
	require.ErrorIs(t, err, engineerr.ErrUnauthorized)
}

func TestTransfer_Succeeds(t *testing.T) {
	s := openStore(t)
	a := acl.New([]lockup.AccountID{"admin"})
	a.AddToDepositWhitelist("depositor")
	key := acl.PoolKey{Exchange: "ref.near", Pool: 7}
	a.AddToWhitelist([]acl.PoolKey{key})
	require.NoError(t, a.AddShares(key, bal(100)))

	ctrl := gomock.NewController(t)
	x := exchange.NewMockExchange(ctrl)
	x.EXPECT().Transfer(gomock.Any(), exchange.PoolID(7), lockup.AccountID("receiver"), bal(40)).Return(nil)

	p := New(s, a, x, nil)
	err := p.Transfer(context.Background(), true, "depositor", "ref.near@7", "receiver", bal(40))
	require.NoError(t, err)
	require.Equal(t, bal(60), a.Whitelisted[key])

	persisted, ok, err := s.SharesBalance(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, bal(60), persisted, "share debit must be durable, not just in-memory")
}

func TestTransfer_RestoresSharesOnFailure(t *testing.T) {
	s := openStore(t)
	a := acl.New([]lockup.AccountID{"admin"})
	a.AddToDepositWhitelist("depositor")
	key := acl.PoolKey{Exchange: "ref.near", Pool: 7}
	a.AddToWhitelist([]acl.PoolKey{key})
	require.NoError(t, a.AddShares(key, bal(100)))

	ctrl := gomock.NewController(t)
	x := exchange.NewMockExchange(ctrl)
	x.EXPECT().Transfer(gomock.Any(), exchange.PoolID(7), lockup.AccountID("receiver"), bal(40)).Return(errors.New("forward rejected"))

	p := New(s, a, x, nil)
	err := p.Transfer(context.Background(), true, "depositor", "ref.near@7", "receiver", bal(40))
	require.Error(t, err)
	require.Equal(t, bal(100), a.Whitelisted[key], "failed forward must restore the full custodied amount")

	persisted, ok, err := s.SharesBalance(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, bal(100), persisted, "restored balance must be durable")
}

func TestTransferCall_RestoresOnlyUnusedPortion(t *testing.T) {
	s := openStore(t)
	a := acl.New([]lockup.AccountID{"admin"})
	a.AddToDepositWhitelist("depositor")
	key := acl.PoolKey{Exchange: "ref.near", Pool: 7}
	a.AddToWhitelist([]acl.PoolKey{key})
	require.NoError(t, a.AddShares(key, bal(100)))

	ctrl := gomock.NewController(t)
	x := exchange.NewMockExchange(ctrl)
	x.EXPECT().TransferCall(gomock.Any(), exchange.PoolID(7), lockup.AccountID("receiver"), bal(40), "payload").
		Return(bal(15), nil)

	p := New(s, a, x, nil)
	unused, err := p.TransferCall(context.Background(), true, "depositor", "ref.near@7", "receiver", bal(40), "payload")
	require.NoError(t, err)
	require.Equal(t, bal(15), unused)
	require.Equal(t, bal(75), a.Whitelisted[key], "100 - 40 + 15 unused restored")

	persisted, ok, err := s.SharesBalance(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, bal(75), persisted, "unused-restore must be durable")
}

func TestTransfer_InsufficientSharesRejected(t *testing.T) {
	s := openStore(t)
	a := acl.New([]lockup.AccountID{"admin"})
	a.AddToDepositWhitelist("depositor")
	key := acl.PoolKey{Exchange: "ref.near", Pool: 7}
	a.AddToWhitelist([]acl.PoolKey{key})
	require.NoError(t, a.AddShares(key, bal(10)))

	ctrl := gomock.NewController(t)
	x := exchange.NewMockExchange(ctrl) // no call expected: fails before reaching the exchange

	p := New(s, a, x, nil)
	err := p.Transfer(context.Background(), true, "depositor", "ref.near@7", "receiver", bal(40))
	require.ErrorIs(t, err, engineerr.ErrNotEnoughShares)
}
