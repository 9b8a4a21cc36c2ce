// Package engine wires the lockup/vesting kernel (C1-C8) behind the
// operation surface of spec.md §6. Grounded on the teacher's
// cmd/lumera-supply/main.go wiring sequence: load config, construct
// collaborators, construct the computation layer, construct the server.
package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lumera-labs/lockup-vesting/internal/acl"
	"github.com/lumera-labs/lockup-vesting/internal/claimengine"
	"github.com/lumera-labs/lockup-vesting/internal/custody"
	"github.com/lumera-labs/lockup-vesting/internal/deposit"
	"github.com/lumera-labs/lockup-vesting/internal/engineerr"
	"github.com/lumera-labs/lockup-vesting/internal/exchange"
	"github.com/lumera-labs/lockup-vesting/internal/incentive"
	"github.com/lumera-labs/lockup-vesting/internal/ledger"
	"github.com/lumera-labs/lockup-vesting/internal/lockup"
	"github.com/lumera-labs/lockup-vesting/internal/money"
	"github.com/lumera-labs/lockup-vesting/internal/schedule"
	"github.com/lumera-labs/lockup-vesting/internal/store"
	"github.com/lumera-labs/lockup-vesting/internal/termination"
)

// Contract is the engine's full operation surface (§6), composed from the
// store and the C1-C8 component engines.
type Contract struct {
	store *store.Store
	acl   *acl.ACL
	log   *zap.Logger

	claim   *claimengine.Engine
	term    *termination.Engine
	dep     *deposit.Intake
	incent  *incentive.Intake
	custody *custody.Proxy
}

// New constructs a Contract from an opened store and the two out-of-scope
// collaborators. The ACL is loaded from the store (or initialized fresh,
// on a first boot, by the caller via Bootstrap).
func New(s *store.Store, l ledger.Ledger, x exchange.Exchange, log *zap.Logger) (*Contract, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a, err := s.LoadACL()
	if err != nil {
		return nil, fmt.Errorf("engine: load acl: %w", err)
	}
	return &Contract{
		store:   s,
		acl:     a,
		log:     log,
		claim:   claimengine.New(s, l, log),
		term:    termination.New(s, l, log),
		dep:     deposit.New(s, a, log),
		incent:  incentive.New(s, a, x, log),
		custody: custody.New(s, a, x, log),
	}, nil
}

// Bootstrap performs the `new(token_account_id, initial_deposit_whitelist)`
// constructor (§6) on a fresh store: it is a programmer error to call it
// on a store that already has a token account configured.
func (c *Contract) Bootstrap(tokenAccountID lockup.AccountID, initialDepositWhitelist []lockup.AccountID, initialPoolWhitelist []acl.PoolKey) error {
	existing, err := c.store.GetTokenAccountID()
	if err != nil {
		return err
	}
	if existing != "" {
		return fmt.Errorf("engine: already bootstrapped with token account %s", existing)
	}
	if err := c.store.SetTokenAccountID(tokenAccountID); err != nil {
		return err
	}
	for _, acc := range initialDepositWhitelist {
		c.acl.AddToDepositWhitelist(acc)
	}
	c.acl.AddToWhitelist(initialPoolWhitelist)
	return c.store.SaveACL(c.acl)
}

// Claim runs §4.3.
func (c *Contract) Claim(ctx context.Context, caller lockup.AccountID, now money.Timestamp) (money.Balance, error) {
	return c.claim.Claim(ctx, caller, now)
}

// Terminate runs §4.4.
func (c *Contract) Terminate(ctx context.Context, caller lockup.AccountID, idx lockup.Index, revealed *schedule.Schedule, now money.Timestamp) (money.Balance, error) {
	return c.term.Terminate(ctx, caller, idx, revealed, now)
}

// GetLockup runs get_lockup(index).
func (c *Contract) GetLockup(idx lockup.Index, now money.Timestamp) (lockup.View, error) {
	l, ok, err := c.store.GetLockup(idx)
	if err != nil {
		return lockup.View{}, err
	}
	if !ok {
		return lockup.View{}, fmt.Errorf("%w: lockup %d", engineerr.ErrNotFound, idx)
	}
	return lockup.ToView(idx, l, now), nil
}

// GetAccountLockups runs get_account_lockups(account).
func (c *Contract) GetAccountLockups(account lockup.AccountID, now money.Timestamp) ([]lockup.View, error) {
	indices, err := c.store.AccountLockups(account)
	if err != nil {
		return nil, err
	}
	views := make([]lockup.View, 0, len(indices))
	for _, idx := range indices {
		l, ok, err := c.store.GetLockup(idx)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		views = append(views, lockup.ToView(idx, l, now))
	}
	return views, nil
}

// GetNumLockups runs get_num_lockups().
func (c *Contract) GetNumLockups() (uint64, error) { return c.store.NumLockups() }

// GetDepositWhitelist runs get_deposit_whitelist().
func (c *Contract) GetDepositWhitelist() []lockup.AccountID { return c.acl.DepositWhitelistSlice() }

// HashSchedule runs hash_schedule(schedule).
func (c *Contract) HashSchedule(s schedule.Schedule) [32]byte { return s.Hash() }

// ValidateSchedule runs validate_schedule(schedule, total, vesting?).
func (c *Contract) ValidateSchedule(s schedule.Schedule, total money.Balance, vesting *schedule.Schedule) error {
	if err := s.Validate(total); err != nil {
		if errors.Is(err, schedule.ErrTotalMismatch) {
			return fmt.Errorf("%w: %v", engineerr.ErrInvalidTotal, err)
		}
		return fmt.Errorf("%w: %v", engineerr.ErrInvalidSchedule, err)
	}
	if vesting != nil {
		if err := schedule.Compatible(*vesting, s); err != nil {
			return fmt.Errorf("%w: %w", engineerr.ErrIncompatibleVesting, err)
		}
	}
	return nil
}

// SetState runs set_state(enabled); caller must already be authorized by
// deposit-whitelist membership (§4.7).
func (c *Contract) SetState(caller lockup.AccountID, enabled bool) error {
	if err := c.acl.AssertDepositWhitelisted(caller); err != nil {
		return err
	}
	c.acl.SetState(enabled)
	return c.store.SaveACL(c.acl)
}

// AddToWhitelist runs add_to_whitelist(values).
func (c *Contract) AddToWhitelist(caller lockup.AccountID, keys []acl.PoolKey) error {
	if err := c.acl.AssertDepositWhitelisted(caller); err != nil {
		return err
	}
	c.acl.AddToWhitelist(keys)
	return c.store.SaveACL(c.acl)
}

// RemoveFromWhitelist runs remove_from_whitelist(values).
func (c *Contract) RemoveFromWhitelist(caller lockup.AccountID, keys []acl.PoolKey) error {
	if err := c.acl.AssertDepositWhitelisted(caller); err != nil {
		return err
	}
	if err := c.acl.RemoveFromWhitelist(keys); err != nil {
		return err
	}
	return c.store.SaveACL(c.acl)
}

// AddToDepositWhitelist runs add_to_deposit_whitelist(account).
func (c *Contract) AddToDepositWhitelist(caller, account lockup.AccountID) error {
	if err := c.acl.AssertDepositWhitelisted(caller); err != nil {
		return err
	}
	c.acl.AddToDepositWhitelist(account)
	return c.store.SaveACL(c.acl)
}

// RemoveFromDepositWhitelist runs remove_from_deposit_whitelist(account).
func (c *Contract) RemoveFromDepositWhitelist(caller, account lockup.AccountID) error {
	if err := c.acl.AssertDepositWhitelisted(caller); err != nil {
		return err
	}
	if err := c.acl.RemoveFromDepositWhitelist(account); err != nil {
		return err
	}
	return c.store.SaveACL(c.acl)
}

// ProxyMFTTransfer runs proxy_mft_transfer(token_id, receiver, amount, memo).
func (c *Contract) ProxyMFTTransfer(ctx context.Context, deposit custody.Deposit, caller lockup.AccountID, tokenID string, receiver lockup.AccountID, amount money.Balance) error {
	return c.custody.Transfer(ctx, deposit, caller, tokenID, receiver, amount)
}

// ProxyMFTTransferCall runs proxy_mft_transfer_call(token_id, receiver, amount, msg).
func (c *Contract) ProxyMFTTransferCall(ctx context.Context, d custody.Deposit, caller lockup.AccountID, tokenID string, receiver lockup.AccountID, amount money.Balance, msg string) (money.Balance, error) {
	return c.custody.TransferCall(ctx, d, caller, tokenID, receiver, amount, msg)
}

// FTOnTransfer runs the ft_on_transfer(sender, amount, msg) entry point
// (§4.5); tokenLedger is the host-attached caller identity.
func (c *Contract) FTOnTransfer(tokenLedger, sender lockup.AccountID, amount money.Balance, msg []byte) error {
	return c.dep.OnTransfer(tokenLedger, sender, amount, msg)
}

// MFTOnTransfer runs the mft_on_transfer(token_id, sender, amount, msg)
// entry point (§4.6); exchangeCaller is the host-attached caller
// identity.
func (c *Contract) MFTOnTransfer(ctx context.Context, exchangeCaller lockup.AccountID, tokenID string, sender lockup.AccountID, amount money.Balance, now money.Timestamp) (money.Balance, error) {
	return c.incent.OnTransfer(ctx, exchangeCaller, tokenID, sender, amount, now)
}
