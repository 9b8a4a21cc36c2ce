// Package acl implements the deposit whitelist and the (exchange,pool)
// share-custody whitelist (spec.md §4.7), plus the kill switch.
package acl

import (
	"fmt"

	"github.com/lumera-labs/lockup-vesting/internal/engineerr"
	"github.com/lumera-labs/lockup-vesting/internal/lockup"
	"github.com/lumera-labs/lockup-vesting/internal/money"
)

// PoolKey identifies a custodied (exchange, pool) pair.
type PoolKey struct {
	Exchange lockup.AccountID
	Pool     uint64
}

// ACL holds the deposit whitelist, the custody whitelist with its share
// balances, and the pause switch. It has no persistence opinion of its own
// -- internal/engine is responsible for loading/saving it via
// internal/store.
type ACL struct {
	DepositWhitelist map[lockup.AccountID]struct{}
	Whitelisted      map[PoolKey]money.Balance
	Enabled          bool
}

// New constructs an ACL seeded with an initial deposit whitelist, enabled.
func New(initialDepositWhitelist []lockup.AccountID) *ACL {
	a := &ACL{
		DepositWhitelist: make(map[lockup.AccountID]struct{}, len(initialDepositWhitelist)),
		Whitelisted:      make(map[PoolKey]money.Balance),
		Enabled:          true,
	}
	for _, acc := range initialDepositWhitelist {
		a.DepositWhitelist[acc] = struct{}{}
	}
	return a
}

// AssertDepositWhitelisted returns ErrUnauthorized if account may not
// deposit new lockups.
func (a *ACL) AssertDepositWhitelisted(account lockup.AccountID) error {
	if _, ok := a.DepositWhitelist[account]; !ok {
		return fmt.Errorf("%w: %s not in deposit whitelist", engineerr.ErrUnauthorized, account)
	}
	return nil
}

// AssertEnabled returns ErrPaused if the kill switch is off. Only LP
// incentive intake consults it; direct deposits, claim and termination
// never do.
func (a *ACL) AssertEnabled() error {
	if !a.Enabled {
		return engineerr.ErrPaused
	}
	return nil
}

// SetState toggles the pause switch. Caller must already be authorized by
// the engine (deposit-whitelist membership, per §4.7).
func (a *ACL) SetState(enabled bool) { a.Enabled = enabled }

// AddToDepositWhitelist adds account to the deposit whitelist. Idempotent.
func (a *ACL) AddToDepositWhitelist(account lockup.AccountID) {
	a.DepositWhitelist[account] = struct{}{}
}

// RemoveFromDepositWhitelist removes account, refusing if doing so would
// leave the whitelist empty (§4.7: "removal must not produce empty
// whitelist (else lockout)").
func (a *ACL) RemoveFromDepositWhitelist(account lockup.AccountID) error {
	if _, ok := a.DepositWhitelist[account]; !ok {
		return nil
	}
	if len(a.DepositWhitelist) <= 1 {
		return engineerr.ErrEmptyWhitelist
	}
	delete(a.DepositWhitelist, account)
	return nil
}

// AddToWhitelist inserts (exchange,pool) keys with a zero share balance.
// Existing keys are left untouched.
func (a *ACL) AddToWhitelist(keys []PoolKey) {
	for _, k := range keys {
		if _, ok := a.Whitelisted[k]; !ok {
			a.Whitelisted[k] = money.Balance{}
		}
	}
}

// RemoveFromWhitelist removes keys, failing the whole batch if any listed
// key still has a nonzero custodied share balance.
func (a *ACL) RemoveFromWhitelist(keys []PoolKey) error {
	for _, k := range keys {
		if bal, ok := a.Whitelisted[k]; ok && !bal.IsZero() {
			return fmt.Errorf("%w: pool %v still holds %s shares", engineerr.ErrUnauthorized, k, bal)
		}
	}
	for _, k := range keys {
		delete(a.Whitelisted, k)
	}
	return nil
}

// AssertWhitelisted returns ErrNotWhitelisted if key isn't custodied.
func (a *ACL) AssertWhitelisted(key PoolKey) error {
	if _, ok := a.Whitelisted[key]; !ok {
		return fmt.Errorf("%w: %v", engineerr.ErrNotWhitelisted, key)
	}
	return nil
}

// AddShares increments the custodied share balance for key, which must
// already be whitelisted.
func (a *ACL) AddShares(key PoolKey, amount money.Balance) error {
	cur, ok := a.Whitelisted[key]
	if !ok {
		return fmt.Errorf("%w: %v", engineerr.ErrNotWhitelisted, key)
	}
	a.Whitelisted[key] = cur.Add(amount)
	return nil
}

// SubShares decrements the custodied share balance for key by amount,
// failing with ErrNotEnoughShares on underflow (§4.8 step 4).
func (a *ACL) SubShares(key PoolKey, amount money.Balance) error {
	cur, ok := a.Whitelisted[key]
	if !ok {
		return fmt.Errorf("%w: %v", engineerr.ErrNotWhitelisted, key)
	}
	next, ok := cur.TrySub(amount)
	if !ok {
		return fmt.Errorf("%w: pool %v has %s, requested %s", engineerr.ErrNotEnoughShares, key, cur, amount)
	}
	a.Whitelisted[key] = next
	return nil
}

// RestoreShares adds amount back to key's custodied balance; used by the
// custody rollback path (§4.8 step 5/6) when a forwarded transfer fails.
func (a *ACL) RestoreShares(key PoolKey, amount money.Balance) {
	a.Whitelisted[key] = a.Whitelisted[key].Add(amount)
}

// DepositWhitelistSlice returns a stable snapshot of the deposit whitelist
// for get_deposit_whitelist().
func (a *ACL) DepositWhitelistSlice() []lockup.AccountID {
	out := make([]lockup.AccountID, 0, len(a.DepositWhitelist))
	for acc := range a.DepositWhitelist {
		out = append(out, acc)
	}
	return out
}
