// Package incentive implements LP-share incentive intake (spec.md §4.6):
// parsing the exchange-side token_id convention, querying pool
// composition, and computing the proportional grant.
package incentive

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/lumera-labs/lockup-vesting/internal/acl"
	"github.com/lumera-labs/lockup-vesting/internal/engineerr"
	"github.com/lumera-labs/lockup-vesting/internal/exchange"
	"github.com/lumera-labs/lockup-vesting/internal/lockup"
	"github.com/lumera-labs/lockup-vesting/internal/money"
	"github.com/lumera-labs/lockup-vesting/internal/schedule"
	"github.com/lumera-labs/lockup-vesting/internal/store"
)

const (
	// grantNumConst/grantDenConst fold the "12 · 2 / 10" incentive-ratio
	// factor (equivalently 2.4) from §4.6 into integer constants so the
	// grant formula stays in MulDivFloorConst's exact-integer domain.
	grantNumConst = 12 * 2
	grantDenConst = 10

	// halfYearSeconds is the incentive lockup's release period, 180 days.
	halfYearSeconds = 180 * 86400
)

// Intake runs mft_on_transfer against a Store, ACL and Exchange
// collaborator.
type Intake struct {
	store    *store.Store
	acl      *acl.ACL
	exchange exchange.Exchange
	log      *zap.Logger
}

// New constructs an incentive Intake.
func New(s *store.Store, a *acl.ACL, x exchange.Exchange, log *zap.Logger) *Intake {
	if log == nil {
		log = zap.NewNop()
	}
	return &Intake{store: s, acl: a, exchange: x, log: log}
}

// ParseLPTokenID splits the exchange-side token_id convention
// ":<pool_id>" into its pool id, per original_source/src/util.rs's
// parse_token_id.
func ParseLPTokenID(tokenID string) (exchange.PoolID, error) {
	if !strings.HasPrefix(tokenID, ":") {
		return 0, fmt.Errorf("%w: malformed LP token_id %q", engineerr.ErrInvalidSchedule, tokenID)
	}
	n, err := strconv.ParseUint(tokenID[1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed LP token_id %q: %v", engineerr.ErrInvalidSchedule, tokenID, err)
	}
	return exchange.PoolID(n), nil
}

// OnTransfer handles mft_on_transfer(token_id, sender, share_amount, msg):
// asserts the contract is live and the pool whitelisted, queries the
// exchange for pool composition, and on a successful callback computes
// and grants the proportional incentive lockup (§4.6 steps 1-5).
// exchangeCaller is the host-attached identity of the multi-fungible-token
// ledger invoking this entry point -- the exchange contract itself.
func (in *Intake) OnTransfer(ctx context.Context, exchangeCaller lockup.AccountID, tokenID string, sender lockup.AccountID, shareAmount money.Balance, now money.Timestamp) (money.Balance, error) {
	if err := in.acl.AssertEnabled(); err != nil {
		return money.Balance{}, err
	}
	poolID, err := ParseLPTokenID(tokenID)
	if err != nil {
		return money.Balance{}, err
	}
	key := acl.PoolKey{Exchange: exchangeCaller, Pool: uint64(poolID)}
	if err := in.acl.AssertWhitelisted(key); err != nil {
		return money.Balance{}, err
	}

	info, err := in.exchange.GetPool(ctx, poolID)
	if err != nil {
		// Pool-query failures drop the intake entirely (§7): the shares
		// were never acknowledged, so the caller's own ledger still shows
		// them held by this contract.
		in.log.Warn("pool query failed, dropping LP intake",
			zap.String("exchange", string(exchangeCaller)), zap.Uint64("pool", uint64(poolID)), zap.Error(err))
		return money.Balance{}, fmt.Errorf("incentive: pool query: %w", err)
	}

	tokenAccount, err := in.store.GetTokenAccountID()
	if err != nil {
		return money.Balance{}, fmt.Errorf("incentive: load token account: %w", err)
	}
	tokenIdx := info.IndexOf(tokenAccount)
	if tokenIdx < 0 {
		return money.Balance{}, fmt.Errorf("%w: pool %d does not hold escrowed token", engineerr.ErrNotWhitelisted, poolID)
	}
	poolTokenAmount := info.Amounts[tokenIdx]

	grant := money.MulDivFloorConst(shareAmount, poolTokenAmount, grantNumConst, info.SharesTotalSupply, grantDenConst)

	// Compute and validate the locked-amount delta before any mutation is
	// made durable: §7 forbids a partial mutation (a claimable lockup with
	// no matching incent_locked accounting) from ever escaping this call.
	locked, err := in.store.IncentLockedAmount()
	if err != nil {
		return money.Balance{}, err
	}
	total, err := in.store.IncentTotalAmount()
	if err != nil {
		return money.Balance{}, err
	}
	newLocked := locked.Add(grant)
	if newLocked.GreaterThan(total) {
		return money.Balance{}, engineerr.ErrOvercommit
	}

	l := &lockup.Lockup{
		AccountID: sender,
		Schedule: schedule.New([]schedule.Checkpoint{
			{Timestamp: now, Balance: money.Balance{}},
			{Timestamp: money.Timestamp(uint64(now) + halfYearSeconds), Balance: grant},
		}),
	}

	n, err := in.store.NumLockups()
	if err != nil {
		return money.Balance{}, err
	}
	idx := lockup.Index(n)
	if err := in.store.PutLockup(idx, l); err != nil {
		return money.Balance{}, err
	}
	if err := in.store.SetNumLockups(n + 1); err != nil {
		return money.Balance{}, err
	}
	if err := in.store.AddAccountLockup(sender, idx); err != nil {
		return money.Balance{}, err
	}
	if err := in.store.SetIncentLockedAmount(newLocked); err != nil {
		return money.Balance{}, err
	}

	if err := in.acl.AddShares(key, shareAmount); err != nil {
		return money.Balance{}, err
	}
	if err := in.store.SetSharesBalance(key, in.acl.Whitelisted[key]); err != nil {
		return money.Balance{}, err
	}

	in.log.Info("LP incentive granted",
		zap.Uint64("index", uint64(idx)),
		zap.String("sender", string(sender)),
		zap.Uint64("pool", uint64(poolID)),
		zap.String("shares", shareAmount.String()),
		zap.String("grant", grant.String()))
	return grant, nil
}
