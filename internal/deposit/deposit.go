// Package deposit implements direct deposit intake (spec.md §4.5): the
// escrowed token ledger's on_transfer callback, which either tops up the
// incentive pool or appends a brand-new Lockup.
package deposit

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lumera-labs/lockup-vesting/internal/acl"
	"github.com/lumera-labs/lockup-vesting/internal/engineerr"
	"github.com/lumera-labs/lockup-vesting/internal/lockup"
	"github.com/lumera-labs/lockup-vesting/internal/money"
	"github.com/lumera-labs/lockup-vesting/internal/schedule"
	"github.com/lumera-labs/lockup-vesting/internal/store"
)

// Intake runs ft_on_transfer against a Store and an ACL.
type Intake struct {
	store *store.Store
	acl   *acl.ACL
	log   *zap.Logger
}

// New constructs a deposit Intake.
func New(s *store.Store, a *acl.ACL, log *zap.Logger) *Intake {
	if log == nil {
		log = zap.NewNop()
	}
	return &Intake{store: s, acl: a, log: log}
}

// incentMsg is the top-level shape matched before falling back to parsing
// the payload as a Lockup (§6 "Message formats").
type incentMsg struct {
	ForIncent bool `json:"for_incent"`
}

// lockupMsg mirrors lockup.Lockup's JSON wire shape for deposit payloads:
// the caller supplies a schedule and optional termination config, never
// claimed_balance (always starts at zero) or an index (assigned here).
type lockupMsg struct {
	AccountID         lockup.AccountID      `json:"account_id"`
	Checkpoints       []checkpointMsg       `json:"checkpoints"`
	TerminationConfig *terminationConfigMsg `json:"termination_config,omitempty"`
}

type checkpointMsg struct {
	Timestamp money.Timestamp `json:"timestamp"`
	Balance   money.Balance   `json:"balance"`
}

type terminationConfigMsg struct {
	TerminatorID lockup.AccountID `json:"terminator_id"`
	VestingHash  *string          `json:"vesting_hash,omitempty"`
	Vesting      []checkpointMsg  `json:"vesting,omitempty"`
}

// OnTransfer handles ft_on_transfer(sender, amount, msg). tokenLedger is
// the caller identity the host attached to this invocation; callers
// outside the configured escrowed token always fail InvalidToken.
func (in *Intake) OnTransfer(tokenLedger, sender lockup.AccountID, amount money.Balance, msg []byte) error {
	tokenAccount, err := in.store.GetTokenAccountID()
	if err != nil {
		return fmt.Errorf("deposit: load token account: %w", err)
	}
	if tokenAccount != "" && tokenLedger != tokenAccount {
		return fmt.Errorf("%w: %s", engineerr.ErrInvalidToken, tokenLedger)
	}
	if err := in.acl.AssertDepositWhitelisted(sender); err != nil {
		return err
	}

	var incent incentMsg
	if err := json.Unmarshal(msg, &incent); err == nil && incent.ForIncent {
		total, err := in.store.IncentTotalAmount()
		if err != nil {
			return fmt.Errorf("deposit: load incent total: %w", err)
		}
		if err := in.store.SetIncentTotalAmount(total.Add(amount)); err != nil {
			return fmt.Errorf("deposit: persist incent total: %w", err)
		}
		in.log.Info("incentive pool topped up", zap.String("sender", string(sender)), zap.String("amount", amount.String()))
		return nil
	}

	var lm lockupMsg
	if err := json.Unmarshal(msg, &lm); err != nil {
		return fmt.Errorf("%w: malformed lockup payload: %v", engineerr.ErrInvalidSchedule, err)
	}
	l, err := toLockup(lm)
	if err != nil {
		return err
	}
	if err := l.Schedule.Validate(amount); err != nil {
		if errors.Is(err, schedule.ErrTotalMismatch) {
			return fmt.Errorf("%w: %v", engineerr.ErrInvalidTotal, err)
		}
		return fmt.Errorf("%w: %v", engineerr.ErrInvalidSchedule, err)
	}
	if l.TerminationConfig != nil && l.TerminationConfig.VestingKind == lockup.VestingSchedule {
		if err := schedule.Compatible(l.TerminationConfig.Vesting, l.Schedule); err != nil {
			return fmt.Errorf("%w: %w", engineerr.ErrIncompatibleVesting, err)
		}
	}

	idx, err := in.appendLockup(l)
	if err != nil {
		return fmt.Errorf("deposit: persist lockup: %w", err)
	}
	in.log.Info("lockup deposited",
		zap.Uint64("index", uint64(idx)),
		zap.String("account", string(l.AccountID)),
		zap.String("amount", amount.String()))
	return nil
}

func toLockup(lm lockupMsg) (*lockup.Lockup, error) {
	if lm.AccountID == "" {
		return nil, fmt.Errorf("%w: missing account_id", engineerr.ErrInvalidSchedule)
	}
	cps := make([]schedule.Checkpoint, 0, len(lm.Checkpoints))
	for _, c := range lm.Checkpoints {
		cps = append(cps, schedule.Checkpoint{Timestamp: c.Timestamp, Balance: c.Balance})
	}
	l := &lockup.Lockup{
		AccountID: lm.AccountID,
		Schedule:  schedule.New(cps),
	}
	if lm.TerminationConfig != nil {
		tc := &lockup.TerminationConfig{TerminatorID: lm.TerminationConfig.TerminatorID}
		switch {
		case lm.TerminationConfig.VestingHash != nil:
			tc.VestingKind = lockup.VestingHash
			raw, err := hex.DecodeString(*lm.TerminationConfig.VestingHash)
			if err != nil || len(raw) != 32 {
				return nil, fmt.Errorf("%w: malformed vesting_hash", engineerr.ErrInvalidSchedule)
			}
			copy(tc.VestingHash[:], raw)
		case len(lm.TerminationConfig.Vesting) > 0:
			tc.VestingKind = lockup.VestingSchedule
			vcps := make([]schedule.Checkpoint, 0, len(lm.TerminationConfig.Vesting))
			for _, c := range lm.TerminationConfig.Vesting {
				vcps = append(vcps, schedule.Checkpoint{Timestamp: c.Timestamp, Balance: c.Balance})
			}
			tc.Vesting = schedule.New(vcps)
		default:
			tc.VestingKind = lockup.VestingNone
		}
		l.TerminationConfig = tc
	}
	return l, nil
}

// appendLockup assigns the next index, records it under the beneficiary,
// and persists the record.
func (in *Intake) appendLockup(l *lockup.Lockup) (lockup.Index, error) {
	n, err := in.store.NumLockups()
	if err != nil {
		return 0, err
	}
	idx := lockup.Index(n)
	if err := in.store.PutLockup(idx, l); err != nil {
		return 0, err
	}
	if err := in.store.SetNumLockups(n + 1); err != nil {
		return 0, err
	}
	if err := in.store.AddAccountLockup(l.AccountID, idx); err != nil {
		return 0, err
	}
	return idx, nil
}
