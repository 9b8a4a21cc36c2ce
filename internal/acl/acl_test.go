package acl

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumera-labs/lockup-vesting/internal/engineerr"
	"github.com/lumera-labs/lockup-vesting/internal/lockup"
	"github.com/lumera-labs/lockup-vesting/internal/money"
)

func bal(v uint64) money.Balance { return money.NewFromUint64(v) }

func TestDepositWhitelist_EmptyGuard(t *testing.T) {
	a := New([]lockup.AccountID{"admin"})
	require.NoError(t, a.AssertDepositWhitelisted("admin"))
	require.ErrorIs(t, a.AssertDepositWhitelisted("other"), engineerr.ErrUnauthorized)

	a.AddToDepositWhitelist("other")
	require.NoError(t, a.RemoveFromDepositWhitelist("admin"))
	require.ErrorIs(t, a.RemoveFromDepositWhitelist("other"), engineerr.ErrEmptyWhitelist)
	require.NoError(t, a.AssertDepositWhitelisted("other"), "removal must have been refused")
}

func TestPoolWhitelist_AddRemove(t *testing.T) {
	a := New([]lockup.AccountID{"admin"})
	key := PoolKey{Exchange: "dex", Pool: 1}
	a.AddToWhitelist([]PoolKey{key})
	require.NoError(t, a.AssertWhitelisted(key))

	require.NoError(t, a.AddShares(key, bal(100)))
	require.ErrorIs(t, a.RemoveFromWhitelist([]PoolKey{key}), engineerr.ErrUnauthorized, "nonzero balance must block removal")

	require.NoError(t, a.SubShares(key, bal(100)))
	require.NoError(t, a.RemoveFromWhitelist([]PoolKey{key}))
	require.ErrorIs(t, a.AssertWhitelisted(key), engineerr.ErrNotWhitelisted)
}

func TestSubShares_Underflow(t *testing.T) {
	a := New([]lockup.AccountID{"admin"})
	key := PoolKey{Exchange: "dex", Pool: 1}
	a.AddToWhitelist([]PoolKey{key})
	require.NoError(t, a.AddShares(key, bal(10)))
	require.ErrorIs(t, a.SubShares(key, bal(11)), engineerr.ErrNotEnoughShares)
}

func TestRestoreShares_RollsBackExactly(t *testing.T) {
	a := New([]lockup.AccountID{"admin"})
	key := PoolKey{Exchange: "dex", Pool: 1}
	a.AddToWhitelist([]PoolKey{key})
	require.NoError(t, a.AddShares(key, bal(50)))
	require.NoError(t, a.SubShares(key, bal(30)))
	a.RestoreShares(key, bal(30))
	require.Equal(t, bal(50), a.Whitelisted[key])
}

func TestKillSwitch(t *testing.T) {
	a := New([]lockup.AccountID{"admin"})
	require.NoError(t, a.AssertEnabled())
	a.SetState(false)
	require.ErrorIs(t, a.AssertEnabled(), engineerr.ErrPaused)
}
