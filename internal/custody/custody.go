// Package custody implements LP-share custody and forward transfer
// (spec.md §4.8): the engine holds whitelisted LP shares on behalf of the
// deposit whitelist and can forward them back out through the exchange,
// restoring the custodied balance if the forward fails.
package custody

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
	"github.com/lumera-labs/lockup-vesting/internal/store"
)

// Deposit is the anti-griefing marker the host attaches to a call,
// standing in for the original single-yocto attached-deposit check
// (original_source/src/mft.rs) now that the engine isn't a blockchain
// contract.
type Deposit bool

// Proxy runs proxy_mft_transfer[_call] against an ACL, a Store and an
// Exchange collaborator.
type Proxy struct {
	store    *store.Store
	acl      *acl.ACL
	exchange exchange.Exchange
	log      *zap.Logger
}

// New constructs a custody Proxy.
func New(s *store.Store, a *acl.ACL, x exchange.Exchange, log *zap.Logger) *Proxy {
	if log == nil {
		log = zap.NewNop()
	}
	return &Proxy{store: s, acl: a, exchange: x, log: log}
}

// persistShares writes key's current in-memory share balance to the store.
// §6 lists W/(exchange,pool) as persisted state; every mutation to it made
// through this package must be durable, not just reflected in the
// in-memory ACL, or a restart loses LP-share custody accounting.
func (p *Proxy) persistShares(key acl.PoolKey) error {
	return p.store.SetSharesBalance(key, p.acl.Whitelisted[key])
}

// ParseCustodyTokenID splits the custody/forward API's token_id
// convention "<exchange_account>@<pool_id>", per
// original_source/src/util.rs's parse_token_id.
func ParseCustodyTokenID(tokenID string) (lockup.AccountID, exchange.PoolID, error) {
	at := strings.LastIndexByte(tokenID, '@')
	if at < 0 {
		return "", 0, fmt.Errorf("%w: malformed custody token_id %q", engineerr.ErrInvalidSchedule, tokenID)
	}
	exchangeID, poolPart := tokenID[:at], tokenID[at+1:]
	n, err := strconv.ParseUint(poolPart, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: malformed custody token_id %q: %v", engineerr.ErrInvalidSchedule, tokenID, err)
	}
	return lockup.AccountID(exchangeID), exchange.PoolID(n), nil
}

// Transfer runs proxy_mft_transfer(token_id, receiver, amount, memo).
func (p *Proxy) Transfer(ctx context.Context, deposit Deposit, caller lockup.AccountID, tokenID string, receiver lockup.AccountID, amount money.Balance) error {
	key, err := p.authorize(deposit, caller, tokenID, amount)
	if err != nil {
		return err
	}
	if err := p.exchange.Transfer(ctx, exchange.PoolID(key.Pool), receiver, amount); err != nil {
		p.log.Warn("forward transfer failed, restoring custody",
			zap.String("caller", string(caller)), zap.Any("pool", key), zap.String("amount", amount.String()), zap.Error(err))
		p.acl.RestoreShares(key, amount)
		if perr := p.persistShares(key); perr != nil {
			return perr
		}
		return fmt.Errorf("custody: forward transfer: %w", err)
	}
	p.log.Info("LP shares forwarded", zap.String("caller", string(caller)), zap.Any("pool", key), zap.String("amount", amount.String()))
	return nil
}

// TransferCall runs proxy_mft_transfer_call(token_id, receiver, amount,
// msg): identical to Transfer, except the exchange reports back an unused
// portion of amount, of which only that sub-portion is restored (§4.8
// step 6).
func (p *Proxy) TransferCall(ctx context.Context, deposit Deposit, caller lockup.AccountID, tokenID string, receiver lockup.AccountID, amount money.Balance, msg string) (money.Balance, error) {
	key, err := p.authorize(deposit, caller, tokenID, amount)
	if err != nil {
		return money.Balance{}, err
	}
	unused, err := p.exchange.TransferCall(ctx, exchange.PoolID(key.Pool), receiver, amount, msg)
	if err != nil {
		p.log.Warn("forward transfer_call failed, restoring custody",
			zap.String("caller", string(caller)), zap.Any("pool", key), zap.String("amount", amount.String()), zap.Error(err))
		p.acl.RestoreShares(key, amount)
		if perr := p.persistShares(key); perr != nil {
			return money.Balance{}, perr
		}
		return money.Balance{}, fmt.Errorf("custody: forward transfer_call: %w", err)
	}
	if !unused.IsZero() {
		p.acl.RestoreShares(key, unused)
		if err := p.persistShares(key); err != nil {
			return money.Balance{}, err
		}
	}
	p.log.Info("LP shares forwarded via transfer_call",
		zap.String("caller", string(caller)), zap.Any("pool", key),
		zap.String("amount", amount.String()), zap.String("unused", unused.String()))
	return unused, nil
}

// authorize runs steps 1-4 common to both entry points: the anti-griefing
// marker, deposit-whitelist membership, token_id parsing, and the
// saturating share-balance subtraction.
func (p *Proxy) authorize(deposit Deposit, caller lockup.AccountID, tokenID string, amount money.Balance) (acl.PoolKey, error) {
	if !deposit {
		return acl.PoolKey{}, fmt.Errorf("%w: missing anti-griefing deposit marker", engineerr.ErrUnauthorized)
	}
	if err := p.acl.AssertDepositWhitelisted(caller); err != nil {
		return acl.PoolKey{}, err
	}
	exchangeID, poolID, err := ParseCustodyTokenID(tokenID)
	if err != nil {
		return acl.PoolKey{}, err
	}
	key := acl.PoolKey{Exchange: exchangeID, Pool: uint64(poolID)}
	if err := p.acl.SubShares(key, amount); err != nil {
		return acl.PoolKey{}, err
	}
	if err := p.persistShares(key); err != nil {
		return acl.PoolKey{}, err
	}
	return key, nil
}
