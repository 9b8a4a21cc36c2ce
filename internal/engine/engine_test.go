package engine

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/lumera-labs/lockup-vesting/internal/acl"
	"github.com/lumera-labs/lockup-vesting/internal/engineerr"
	"github.com/lumera-labs/lockup-vesting/internal/exchange"
	"github.com/lumera-labs/lockup-vesting/internal/ledger"
	"github.com/lumera-labs/lockup-vesting/internal/lockup"
	"github.com/lumera-labs/lockup-vesting/internal/money"
	"github.com/lumera-labs/lockup-vesting/internal/store"
)

func bal(v uint64) money.Balance { return money.NewFromUint64(v) }

func newContract(t *testing.T) (*Contract, *ledger.MockLedger, *exchange.MockExchange) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctrl := gomock.NewController(t)
	l := ledger.NewMockLedger(ctrl)
	x := exchange.NewMockExchange(ctrl)

	c, err := New(s, l, x, nil)
	require.NoError(t, err)
	require.NoError(t, c.Bootstrap("token.near", []lockup.AccountID{"admin"}, nil))
	return c, l, x
}

func TestBootstrap_RejectsSecondCall(t *testing.T) {
	c, _, _ := newContract(t)
	err := c.Bootstrap("token.near", []lockup.AccountID{"admin"}, nil)
	require.Error(t, err)
}

func TestFTOnTransfer_ThenClaim(t *testing.T) {
	c, l, _ := newContract(t)

	msg, err := json.Marshal(map[string]any{
		"account_id": "beneficiary.near",
		"checkpoints": []map[string]any{
			{"timestamp": 0, "balance": "0"},
			{"timestamp": 100, "balance": "1000"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, c.FTOnTransfer("token.near", "admin", bal(1000), msg))

	l.EXPECT().Transfer(gomock.Any(), lockup.AccountID("beneficiary.near"), bal(1000)).Return(nil)
	got, err := c.Claim(context.Background(), "beneficiary.near", 100)
	require.NoError(t, err)
	require.Equal(t, bal(1000), got)
}

// A single claim after multiple top-ups to the same beneficiary must
// aggregate across every lockup the beneficiary holds.
func TestClaim_AggregatesMultipleTopUps(t *testing.T) {
	c, l, _ := newContract(t)

	for i := 0; i < 2; i++ {
		msg, err := json.Marshal(map[string]any{
			"account_id": "beneficiary.near",
			"checkpoints": []map[string]any{
				{"timestamp": 0, "balance": "0"},
				{"timestamp": 100, "balance": "500"},
			},
		})
		require.NoError(t, err)
		require.NoError(t, c.FTOnTransfer("token.near", "admin", bal(500), msg))
	}

	l.EXPECT().Transfer(gomock.Any(), lockup.AccountID("beneficiary.near"), bal(1000)).Return(nil)
	got, err := c.Claim(context.Background(), "beneficiary.near", 100)
	require.NoError(t, err)
	require.Equal(t, bal(1000), got)
}

func TestTerminate_Twice_SecondRejected(t *testing.T) {
	c, l, _ := newContract(t)

	msg, err := json.Marshal(map[string]any{
		"account_id": "beneficiary.near",
		"checkpoints": []map[string]any{
			{"timestamp": 0, "balance": "0"},
			{"timestamp": 200, "balance": "1000"},
		},
		"termination_config": map[string]any{
			"terminator_id": "admin",
		},
	})
	require.NoError(t, err)
	require.NoError(t, c.FTOnTransfer("token.near", "admin", bal(1000), msg))

	l.EXPECT().Transfer(gomock.Any(), lockup.AccountID("admin"), gomock.Any()).Return(nil)
	_, err = c.Terminate(context.Background(), "admin", 0, nil, 50)
	require.NoError(t, err)

	_, err = c.Terminate(context.Background(), "admin", 0, nil, 60)
	require.ErrorIs(t, err, engineerr.ErrNoTerminationConfig)
}

func TestAdminOps_RequireDepositWhitelistMembership(t *testing.T) {
	c, _, _ := newContract(t)
	err := c.SetState("stranger", false)
	require.ErrorIs(t, err, engineerr.ErrUnauthorized)

	require.NoError(t, c.SetState("admin", false))
	require.NoError(t, c.AddToDepositWhitelist("admin", "newadmin"))
	require.NoError(t, c.SetState("newadmin", true))
}

func TestAddRemoveWhitelist(t *testing.T) {
	c, _, _ := newContract(t)
	key := acl.PoolKey{Exchange: "ref.near", Pool: 1}
	require.NoError(t, c.AddToWhitelist("admin", []acl.PoolKey{key}))
	require.NoError(t, c.RemoveFromWhitelist("admin", []acl.PoolKey{key}))
}

func TestGetLockup_NotFound(t *testing.T) {
	c, _, _ := newContract(t)
	_, err := c.GetLockup(99, 0)
	require.ErrorIs(t, err, engineerr.ErrNotFound)
}
