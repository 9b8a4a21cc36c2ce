// Package schedule implements the piecewise-linear release-curve
// arithmetic that underlies every lockup and vesting schedule: validation,
// point-in-time interpolation, canonical hashing, and the vesting/lockup
// compatibility rule.
package schedule

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/lumera-labs/lockup-vesting/internal/money"
)

var (
	// ErrTooShort is returned when a schedule has fewer than two checkpoints.
	ErrTooShort = errors.New("schedule: must have at least two checkpoints")
	// ErrTimestampsNotIncreasing is returned when checkpoint timestamps are
	// not strictly increasing.
	ErrTimestampsNotIncreasing = errors.New("schedule: checkpoint timestamps must be strictly increasing")
	// ErrBalancesNotNonDecreasing is returned when checkpoint balances are
	// not monotonically non-decreasing.
	ErrBalancesNotNonDecreasing = errors.New("schedule: checkpoint balances must be non-decreasing")
	// ErrFirstBalanceNotZero is returned when the first checkpoint's
	// balance isn't zero.
	ErrFirstBalanceNotZero = errors.New("schedule: first checkpoint balance must be zero")
	// ErrTotalMismatch is returned when the last checkpoint's balance
	// doesn't match the declared total.
	ErrTotalMismatch = errors.New("schedule: last checkpoint balance must equal declared total")
	// ErrIncompatibleVesting is returned when a vesting schedule fails to
	// dominate its lockup schedule at some checkpoint time (rule V).
	ErrIncompatibleVesting = errors.New("schedule: vesting schedule does not dominate lockup schedule at all checkpoints")
)

// Checkpoint is a (timestamp, cumulative-balance) vertex of a schedule:
// "by this time, cumulatively this much has vested/unlocked."
type Checkpoint struct {
	Timestamp money.Timestamp
	Balance   money.Balance
}

// Schedule is a non-empty ordered sequence of Checkpoints describing a
// piecewise-linear release curve. Between adjacent checkpoints the curve
// is linear; outside the range it is clamped (0 before the first
// checkpoint, the total after the last).
type Schedule struct {
	Checkpoints []Checkpoint
}

// New constructs a Schedule from checkpoints without validating it; callers
// that need the §3 invariants enforced must call Validate.
func New(checkpoints []Checkpoint) Schedule {
	return Schedule{Checkpoints: append([]Checkpoint(nil), checkpoints...)}
}

// TotalBalance returns the schedule's declared total: the last
// checkpoint's balance.
func (s Schedule) TotalBalance() money.Balance {
	if len(s.Checkpoints) == 0 {
		return money.Balance{}
	}
	return s.Checkpoints[len(s.Checkpoints)-1].Balance
}

// Validate checks every §3 invariant and that the final checkpoint balance
// equals declaredTotal.
func (s Schedule) Validate(declaredTotal money.Balance) error {
	if len(s.Checkpoints) < 2 {
		return ErrTooShort
	}
	if !s.Checkpoints[0].Balance.IsZero() {
		return ErrFirstBalanceNotZero
	}
	for i := 1; i < len(s.Checkpoints); i++ {
		prev, cur := s.Checkpoints[i-1], s.Checkpoints[i]
		if !prev.Timestamp.Before(cur.Timestamp) {
			return ErrTimestampsNotIncreasing
		}
		if cur.Balance.LessThan(prev.Balance) {
			return ErrBalancesNotNonDecreasing
		}
	}
	if !s.TotalBalance().Equal(declaredTotal) {
		return fmt.Errorf("%w: final=%s declared=%s", ErrTotalMismatch, s.TotalBalance(), declaredTotal)
	}
	return nil
}

// UnlockedAt returns the cumulative released balance at time t: 0 before
// the first checkpoint, the declared total at or after the last, and a
// floor-divided linear interpolation in between. The interpolation never
// rounds up — at a checkpoint boundary the exact checkpoint balance is
// returned.
func (s Schedule) UnlockedAt(t money.Timestamp) money.Balance {
	n := len(s.Checkpoints)
	if n == 0 {
		return money.Balance{}
	}
	if t.Before(s.Checkpoints[0].Timestamp) {
		return money.Balance{}
	}
	last := s.Checkpoints[n-1]
	if !t.Before(last.Timestamp) {
		return last.Balance
	}
	// Find the segment [i, i+1] with checkpoints[i].Timestamp <= t <
	// checkpoints[i+1].Timestamp. The schedule is small (a handful of
	// cliffs/periods in practice); linear scan keeps this allocation-free.
	i := 0
	for i+1 < n && !t.Before(s.Checkpoints[i+1].Timestamp) {
		i++
	}
	lo, hi := s.Checkpoints[i], s.Checkpoints[i+1]
	if lo.Balance.Equal(hi.Balance) {
		return lo.Balance
	}
	elapsed := uint64(t) - uint64(lo.Timestamp)
	span := uint64(hi.Timestamp) - uint64(lo.Timestamp)
	delta := hi.Balance.Sub(lo.Balance)
	return lo.Balance.Add(money.MulDivFloorByTime(delta, elapsed, span))
}

// canonicalBytes encodes the schedule per §9: concatenation of a u32
// big-endian timestamp and a u128 big-endian balance per checkpoint, no
// delimiters, length-prefixed by checkpoint count so two schedules of
// different length never collide on a shared prefix.
func (s Schedule) canonicalBytes() []byte {
	var buf bytes.Buffer
	var countPrefix [4]byte
	binary.BigEndian.PutUint32(countPrefix[:], uint32(len(s.Checkpoints)))
	buf.Write(countPrefix[:])
	for _, cp := range s.Checkpoints {
		var ts [4]byte
		binary.BigEndian.PutUint32(ts[:], uint32(cp.Timestamp))
		buf.Write(ts[:])
		b16 := cp.Balance.Bytes16()
		buf.Write(b16[:])
	}
	return buf.Bytes()
}

// Hash returns the SHA-256 commitment over the schedule's canonical
// serialization, used by the termination engine's hash-commit/reveal
// protocol (§3 TerminationConfig, §4.4).
func (s Schedule) Hash() [32]byte {
	return sha256.Sum256(s.canonicalBytes())
}

// Compatible implements rule V: a vesting schedule v is compatible with a
// lockup schedule l iff, for every checkpoint time appearing in either
// schedule, UnlockedAt(v, t) >= UnlockedAt(l, t). The beneficiary can never
// owe the terminator tokens already unlocked.
func Compatible(vesting, lockup Schedule) error {
	times := make(map[money.Timestamp]struct{}, len(vesting.Checkpoints)+len(lockup.Checkpoints))
	for _, cp := range vesting.Checkpoints {
		times[cp.Timestamp] = struct{}{}
	}
	for _, cp := range lockup.Checkpoints {
		times[cp.Timestamp] = struct{}{}
	}
	for t := range times {
		if vesting.UnlockedAt(t).LessThan(lockup.UnlockedAt(t)) {
			return fmt.Errorf("%w: at t=%d vested=%s unlocked=%s", ErrIncompatibleVesting, t, vesting.UnlockedAt(t), lockup.UnlockedAt(t))
		}
	}
	return nil
}
