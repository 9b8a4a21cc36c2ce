// Package claimengine implements the beneficiary claim operation (spec.md
// §4.3): optimistic per-lockup balance update, a single aggregated
// transfer, and compensating rollback if that transfer fails.
package claimengine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lumera-labs/lockup-vesting/internal/ledger"
	"github.com/lumera-labs/lockup-vesting/internal/lockup"
	"github.com/lumera-labs/lockup-vesting/internal/money"
	"github.com/lumera-labs/lockup-vesting/internal/store"
)

// Engine runs claim() against a Store and a Ledger collaborator.
type Engine struct {
	store  *store.Store
	ledger ledger.Ledger
	log    *zap.Logger
}

// New constructs a claim Engine.
func New(s *store.Store, l ledger.Ledger, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: s, ledger: l, log: log}
}

// delta records the compensating amount to undo on a given lockup if the
// aggregated transfer fails, and whether the lockup retired as a result of
// this claim (so rollback knows to re-add it to account_lockups).
type delta struct {
	idx     lockup.Index
	amount  money.Balance
	retired bool
}

// Claim enumerates caller's lockups, optimistically advances each
// claimed_balance, and attempts one aggregated transfer. A failed transfer
// rolls every touched lockup back to its pre-claim state and returns a
// zero balance -- claim never fails fatally (§4.3).
func (e *Engine) Claim(ctx context.Context, caller lockup.AccountID, now money.Timestamp) (money.Balance, error) {
	indices, err := e.store.AccountLockups(caller)
	if err != nil {
		return money.Balance{}, fmt.Errorf("claimengine: list account lockups: %w", err)
	}

	var deltas []delta
	total := money.Balance{}

	for _, idx := range indices {
		l, ok, err := e.store.GetLockup(idx)
		if err != nil {
			return money.Balance{}, fmt.Errorf("claimengine: load lockup %d: %w", idx, err)
		}
		if !ok {
			continue
		}
		unclaimed := l.UnclaimedBalance(now)
		if unclaimed.IsZero() {
			continue
		}
		l.ClaimedBalance = l.ClaimedBalance.Add(unclaimed)
		if err := e.store.PutLockup(idx, l); err != nil {
			return money.Balance{}, fmt.Errorf("claimengine: persist lockup %d: %w", idx, err)
		}
		retired := l.IsRetired()
		if retired {
			if err := e.store.RemoveAccountLockup(caller, idx); err != nil {
				return money.Balance{}, fmt.Errorf("claimengine: retire lockup %d: %w", idx, err)
			}
		}
		deltas = append(deltas, delta{idx: idx, amount: unclaimed, retired: retired})
		total = total.Add(unclaimed)
	}

	if total.IsZero() {
		return money.Balance{}, nil
	}

	if err := e.ledger.Transfer(ctx, caller, total); err != nil {
		e.log.Warn("claim transfer failed, rolling back",
			zap.String("caller", string(caller)),
			zap.String("amount", total.String()),
			zap.Error(err))
		e.rollback(caller, deltas)
		return money.Balance{}, nil
	}

	e.log.Info("claim settled",
		zap.String("caller", string(caller)),
		zap.String("amount", total.String()),
		zap.Int("lockups", len(deltas)))
	return total, nil
}

// rollback restores exactly the deltas recorded at claim time -- never
// "now's" unclaimed, which may have grown since (§4.3 rationale).
func (e *Engine) rollback(caller lockup.AccountID, deltas []delta) {
	for _, d := range deltas {
		l, ok, err := e.store.GetLockup(d.idx)
		if err != nil || !ok {
			e.log.Error("rollback: reload lockup failed", zap.Uint64("index", uint64(d.idx)), zap.Error(err))
			continue
		}
		l.ClaimedBalance = l.ClaimedBalance.Sub(d.amount)
		if err := e.store.PutLockup(d.idx, l); err != nil {
			e.log.Error("rollback: persist lockup failed", zap.Uint64("index", uint64(d.idx)), zap.Error(err))
			continue
		}
		if d.retired {
			if err := e.store.AddAccountLockup(caller, d.idx); err != nil {
				e.log.Error("rollback: restore account lockup failed", zap.Uint64("index", uint64(d.idx)), zap.Error(err))
			}
		}
	}
}
