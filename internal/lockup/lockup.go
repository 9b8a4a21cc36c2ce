// Package lockup defines the per-beneficiary grant record (Lockup) and its
// read-only wire projection (View), and the pure point-in-time
// computations over them (unclaimed balance).
package lockup

import (
	"github.com/lumera-labs/lockup-vesting/internal/money"
	"github.com/lumera-labs/lockup-vesting/internal/schedule"
)

// AccountID identifies a beneficiary, terminator, or depositor. The engine
// only ever compares these for equality; it never interprets them.
type AccountID string

// VestingKind discriminates the three states a TerminationConfig's vesting
// schedule can be in.
type VestingKind int

const (
	// VestingNone means termination uses the lockup's own schedule as the
	// vesting curve (§3: "When present with no inner schedule...").
	VestingNone VestingKind = iota
	// VestingHash means the vesting schedule is hidden behind a SHA-256
	// commitment until revealed at termination time.
	VestingHash
	// VestingSchedule means the vesting schedule is known up front and was
	// validated against rule V at lockup-creation time.
	VestingSchedule
)

// TerminationConfig governs whether and how a terminator may revoke the
// unvested remainder of a lockup.
type TerminationConfig struct {
	TerminatorID AccountID
	VestingKind  VestingKind
	VestingHash  [32]byte          // valid iff VestingKind == VestingHash
	Vesting      schedule.Schedule // valid iff VestingKind == VestingSchedule
}

// Index is the permanent, never-reused identifier of a Lockup within a
// Contract's state. It is the only lockup identifier.
type Index uint64

// Lockup is one beneficiary's grant: a release schedule, how much of it has
// already been paid out, and an optional termination configuration.
type Lockup struct {
	AccountID         AccountID
	Schedule          schedule.Schedule
	ClaimedBalance    money.Balance
	TerminationConfig *TerminationConfig // nil: non-terminable
}

// TotalBalance returns the schedule's declared total.
func (l *Lockup) TotalBalance() money.Balance {
	return l.Schedule.TotalBalance()
}

// UnclaimedBalance returns unlocked(now) - claimed, the amount a
// beneficiary could claim right now.
func (l *Lockup) UnclaimedBalance(now money.Timestamp) money.Balance {
	unlocked := l.Schedule.UnlockedAt(now)
	if unlocked.LessThan(l.ClaimedBalance) {
		// Can't happen under correct operation (claimed never exceeds
		// unlocked), but never return a value that would underflow.
		return money.Balance{}
	}
	return unlocked.Sub(l.ClaimedBalance)
}

// IsRetired reports whether the lockup has paid out its entire total and
// should be hidden from account_lockups listings while its record remains
// for audit (§3 Lifecycle).
func (l *Lockup) IsRetired() bool {
	return l.ClaimedBalance.Equal(l.TotalBalance())
}

// View is the read-only projection returned to clients (§4.2).
type View struct {
	Index            Index           `json:"index"`
	AccountID        AccountID       `json:"account_id"`
	TotalBalance     money.Balance   `json:"total_balance"`
	ClaimedBalance   money.Balance   `json:"claimed_balance"`
	UnclaimedBalance money.Balance   `json:"unclaimed_balance"`
	Timestamp        money.Timestamp `json:"timestamp"`
	Terminable       bool            `json:"terminable"`
}

// ToView projects a Lockup at a given index and time into its wire View.
func ToView(idx Index, l *Lockup, now money.Timestamp) View {
	return View{
		Index:            idx,
		AccountID:        l.AccountID,
		TotalBalance:     l.TotalBalance(),
		ClaimedBalance:   l.ClaimedBalance,
		UnclaimedBalance: l.UnclaimedBalance(now),
		Timestamp:        now,
		Terminable:       l.TerminationConfig != nil,
	}
}
