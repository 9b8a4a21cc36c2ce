// Package termination implements the termination/revocation engine
// (spec.md §4.4): hash-commit/reveal verification, the vested/refund
// split, and new-schedule reconstruction.
package termination

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lumera-labs/lockup-vesting/internal/engineerr"
	"github.com/lumera-labs/lockup-vesting/internal/ledger"
	"github.com/lumera-labs/lockup-vesting/internal/lockup"
	"github.com/lumera-labs/lockup-vesting/internal/money"
	"github.com/lumera-labs/lockup-vesting/internal/schedule"
	"github.com/lumera-labs/lockup-vesting/internal/store"
)

// Engine runs terminate() against a Store and a Ledger collaborator.
type Engine struct {
	store  *store.Store
	ledger ledger.Ledger
	log    *zap.Logger
}

// New constructs a termination Engine.
func New(s *store.Store, l ledger.Ledger, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: s, ledger: l, log: log}
}

// Terminate revokes the unvested remainder of idx on behalf of caller,
// returning the amount refunded to the terminator (0 if the refund
// transfer was deferred into a new lockup per the no-storage fallback).
func (e *Engine) Terminate(ctx context.Context, caller lockup.AccountID, idx lockup.Index, revealed *schedule.Schedule, now money.Timestamp) (money.Balance, error) {
	l, ok, err := e.store.GetLockup(idx)
	if err != nil {
		return money.Balance{}, fmt.Errorf("termination: load lockup %d: %w", idx, err)
	}
	if !ok {
		return money.Balance{}, fmt.Errorf("%w: lockup %d", engineerr.ErrNotFound, idx)
	}
	tc := l.TerminationConfig
	if tc == nil {
		return money.Balance{}, engineerr.ErrNoTerminationConfig
	}
	if tc.TerminatorID != caller {
		return money.Balance{}, fmt.Errorf("%w: terminator is %s, caller is %s", engineerr.ErrUnauthorized, tc.TerminatorID, caller)
	}

	vesting, err := effectiveVesting(l, revealed)
	if err != nil {
		return money.Balance{}, err
	}
	if err := schedule.Compatible(vesting, l.Schedule); err != nil {
		return money.Balance{}, fmt.Errorf("%w: %w", engineerr.ErrIncompatibleVesting, err)
	}

	total := l.Schedule.TotalBalance()
	vested := vesting.UnlockedAt(now)
	unlocked := l.Schedule.UnlockedAt(now)

	refund := money.Balance{}
	if vested.LessThan(total) {
		refund = total.Sub(vested)
	}

	l.Schedule = buildTerminatedSchedule(l.Schedule, now, unlocked, vested)
	l.TerminationConfig = nil
	if err := e.store.PutLockup(idx, l); err != nil {
		return money.Balance{}, fmt.Errorf("termination: persist lockup %d: %w", idx, err)
	}
	// A terminate-before-first-checkpoint runs the total to 0, retiring the
	// lockup in the same sense claim does (§3: retired lockups disappear
	// from account_lockups).
	if l.IsRetired() {
		if err := e.store.RemoveAccountLockup(l.AccountID, idx); err != nil {
			return money.Balance{}, fmt.Errorf("termination: retire lockup %d: %w", idx, err)
		}
	}

	if refund.IsZero() {
		e.log.Info("terminate settled, no refund",
			zap.Uint64("index", uint64(idx)), zap.String("terminator", string(caller)))
		return money.Balance{}, nil
	}

	if err := e.ledger.Transfer(ctx, caller, refund); err != nil {
		e.log.Warn("refund transfer failed, opening deferred lockup for terminator",
			zap.Uint64("index", uint64(idx)),
			zap.String("terminator", string(caller)),
			zap.String("refund", refund.String()),
			zap.Error(err))
		deferred := &lockup.Lockup{
			AccountID: caller,
			Schedule: schedule.New([]schedule.Checkpoint{
				{Timestamp: now, Balance: money.Balance{}},
				{Timestamp: now, Balance: refund},
			}),
		}
		newIdx, derr := e.appendLockup(caller, deferred)
		if derr != nil {
			return money.Balance{}, fmt.Errorf("termination: open deferred refund lockup: %w", derr)
		}
		e.log.Info("deferred refund lockup opened", zap.Uint64("index", uint64(newIdx)))
		return money.Balance{}, nil
	}

	e.log.Info("terminate settled",
		zap.Uint64("index", uint64(idx)),
		zap.String("terminator", string(caller)),
		zap.String("refund", refund.String()))
	return refund, nil
}

// effectiveVesting resolves the vesting schedule to verify against,
// applying the hash-commit/reveal and plain-schedule contradiction rules
// of §4.4's preconditions.
func effectiveVesting(l *lockup.Lockup, revealed *schedule.Schedule) (schedule.Schedule, error) {
	tc := l.TerminationConfig
	switch tc.VestingKind {
	case lockup.VestingHash:
		if revealed == nil {
			return schedule.Schedule{}, fmt.Errorf("%w: vesting schedule required to reveal commitment", engineerr.ErrInvalidRevealedSchedule)
		}
		if revealed.Hash() != tc.VestingHash {
			return schedule.Schedule{}, fmt.Errorf("%w: revealed schedule does not match commitment", engineerr.ErrInvalidRevealedSchedule)
		}
		return *revealed, nil
	case lockup.VestingSchedule:
		if revealed != nil && revealed.Hash() != tc.Vesting.Hash() {
			return schedule.Schedule{}, fmt.Errorf("%w: supplied schedule contradicts stored vesting schedule", engineerr.ErrInvalidRevealedSchedule)
		}
		return tc.Vesting, nil
	default:
		return l.Schedule, nil
	}
}

// buildTerminatedSchedule constructs L' per §4.4's algorithm: the prefix
// of L already consistent with the vested total, a synthetic checkpoint
// pinning the currently-unlocked amount at now, and (when vesting runs
// ahead of L's own curve) a terminal checkpoint at the interpolated time
// L would itself have reached the vested total.
func buildTerminatedSchedule(l schedule.Schedule, now money.Timestamp, unlocked, vested money.Balance) schedule.Schedule {
	var cps []schedule.Checkpoint
	for _, cp := range l.Checkpoints {
		if cp.Balance.GreaterThan(vested) || cp.Timestamp.After(now) {
			break
		}
		cps = append(cps, cp)
	}

	if len(cps) > 0 && cps[len(cps)-1].Timestamp == now {
		cps[len(cps)-1] = schedule.Checkpoint{Timestamp: now, Balance: unlocked}
	} else {
		cps = append(cps, schedule.Checkpoint{Timestamp: now, Balance: unlocked})
	}

	if !unlocked.Equal(vested) {
		for i := 0; i+1 < len(l.Checkpoints); i++ {
			lo, hi := l.Checkpoints[i], l.Checkpoints[i+1]
			if hi.Balance.LessThan(vested) {
				continue
			}
			terminal := hi.Timestamp
			if hi.Balance.GreaterThan(lo.Balance) && hi.Timestamp.After(lo.Timestamp) {
				span := uint64(hi.Timestamp) - uint64(lo.Timestamp)
				totalDelta := hi.Balance.Sub(lo.Balance)
				needed := vested.Sub(lo.Balance)
				elapsed := money.MulDivFloor(needed, money.NewFromUint64(span), totalDelta)
				terminal = money.Timestamp(uint64(lo.Timestamp) + elapsed.Uint64())
			}
			if len(cps) == 0 || cps[len(cps)-1].Timestamp.Before(terminal) {
				cps = append(cps, schedule.Checkpoint{Timestamp: terminal, Balance: vested})
			} else if cps[len(cps)-1].Timestamp == terminal {
				cps[len(cps)-1] = schedule.Checkpoint{Timestamp: terminal, Balance: vested}
			}
			break
		}
	}

	if len(cps) < 2 {
		last := cps[len(cps)-1]
		cps = append(cps, schedule.Checkpoint{Timestamp: last.Timestamp + 1, Balance: last.Balance})
	}
	return schedule.New(cps)
}

// appendLockup assigns the next index, records it under account, and
// persists it -- the same bookkeeping C5/C6 intake perform, extracted so
// the deferred-refund fallback can reuse it.
func (e *Engine) appendLockup(account lockup.AccountID, l *lockup.Lockup) (lockup.Index, error) {
	n, err := e.store.NumLockups()
	if err != nil {
		return 0, err
	}
	idx := lockup.Index(n)
	if err := e.store.PutLockup(idx, l); err != nil {
		return 0, err
	}
	if err := e.store.SetNumLockups(n + 1); err != nil {
		return 0, err
	}
	if err := e.store.AddAccountLockup(account, idx); err != nil {
		return 0, err
	}
	return idx, nil
}
