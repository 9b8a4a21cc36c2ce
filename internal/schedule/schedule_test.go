package schedule

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumera-labs/lockup-vesting/internal/money"
)

func bal(v uint64) money.Balance { return money.NewFromUint64(v) }

func cp(t uint64, v uint64) Checkpoint {
	return Checkpoint{Timestamp: money.Timestamp(t), Balance: bal(v)}
}

// S1 — linear one-year schedule, 1/3 then 1/2 claim points.
func TestUnlockedAt_LinearOneYear(t *testing.T) {
	const year = uint64(365 * 24 * 3600)
	s := New([]Checkpoint{cp(1000, 0), cp(1000+year, 60_000)})
	require.NoError(t, s.Validate(bal(60_000)))

	require.Equal(t, bal(0), s.UnlockedAt(money.Timestamp(999)))
	require.Equal(t, bal(20_000), s.UnlockedAt(money.Timestamp(1000+year/3)))
	require.Equal(t, bal(30_000), s.UnlockedAt(money.Timestamp(1000+year/2)))
	require.Equal(t, bal(60_000), s.UnlockedAt(money.Timestamp(1000+year)))
	require.Equal(t, bal(60_000), s.UnlockedAt(money.Timestamp(1000+year+1)))
}

// S2 — cliff schedule.
func TestUnlockedAt_Cliff(t *testing.T) {
	const year = uint64(365 * 24 * 3600)
	const T = uint64(1_700_000_000)
	const A = uint64(1_000_000)
	s := New([]Checkpoint{
		cp(T+year-1, 0),
		cp(T+year, A/10),
		cp(T+2*year, 3*A/10),
		cp(T+3*year, 6*A/10),
		cp(T+4*year, A),
	})
	require.NoError(t, s.Validate(bal(A)))

	require.Equal(t, bal(0), s.UnlockedAt(money.Timestamp(T+year/3)))
	require.Equal(t, bal(A/10), s.UnlockedAt(money.Timestamp(T+year)))
	require.Equal(t, bal(2*A/10), s.UnlockedAt(money.Timestamp(T+year+year/2)))
}

func TestValidate_Invariants(t *testing.T) {
	t.Run("too short", func(t *testing.T) {
		s := New([]Checkpoint{cp(0, 0)})
		require.ErrorIs(t, s.Validate(bal(0)), ErrTooShort)
	})
	t.Run("timestamps not increasing", func(t *testing.T) {
		s := New([]Checkpoint{cp(10, 0), cp(10, 100)})
		require.ErrorIs(t, s.Validate(bal(100)), ErrTimestampsNotIncreasing)
	})
	t.Run("balances decreasing", func(t *testing.T) {
		s := New([]Checkpoint{cp(0, 100), cp(10, 50)})
		require.Error(t, s.Validate(bal(50)))
	})
	t.Run("first balance nonzero", func(t *testing.T) {
		s := New([]Checkpoint{cp(0, 10), cp(10, 100)})
		require.ErrorIs(t, s.Validate(bal(100)), ErrFirstBalanceNotZero)
	})
	t.Run("total mismatch", func(t *testing.T) {
		s := New([]Checkpoint{cp(0, 0), cp(10, 100)})
		require.ErrorIs(t, s.Validate(bal(99)), ErrTotalMismatch)
	})
	t.Run("valid two point", func(t *testing.T) {
		s := New([]Checkpoint{cp(0, 0), cp(10, 100)})
		require.NoError(t, s.Validate(bal(100)))
	})
}

func TestHash_DeterministicAndSensitive(t *testing.T) {
	a := New([]Checkpoint{cp(0, 0), cp(10, 100)})
	b := New([]Checkpoint{cp(0, 0), cp(10, 100)})
	c := New([]Checkpoint{cp(0, 0), cp(11, 100)})

	require.Equal(t, a.Hash(), b.Hash())
	require.NotEqual(t, a.Hash(), c.Hash())
}

func TestCompatible_RuleV(t *testing.T) {
	lockup := New([]Checkpoint{cp(0, 0), cp(100, 1000)})

	t.Run("identical schedule is compatible", func(t *testing.T) {
		require.NoError(t, Compatible(lockup, lockup))
	})

	t.Run("vesting behind lockup is incompatible", func(t *testing.T) {
		vesting := New([]Checkpoint{cp(0, 0), cp(200, 1000)})
		// At t=100 lockup has fully unlocked (1000) but vesting has only
		// unlocked 500 -- vesting does NOT dominate, must be rejected.
		require.ErrorIs(t, Compatible(vesting, lockup), ErrIncompatibleVesting)
	})

	t.Run("vesting ahead of lockup is compatible", func(t *testing.T) {
		vesting := New([]Checkpoint{cp(0, 0), cp(50, 1000)})
		require.NoError(t, Compatible(vesting, lockup))
	})
}

// property 2: monotone non-decreasing unlocked balance.
func TestUnlockedAt_Monotone(t *testing.T) {
	s := New([]Checkpoint{cp(0, 0), cp(10, 40), cp(20, 40), cp(30, 100)})
	require.NoError(t, s.Validate(bal(100)))
	prev := s.UnlockedAt(money.Timestamp(0))
	for tt := uint64(1); tt <= 40; tt++ {
		cur := s.UnlockedAt(money.Timestamp(tt))
		require.False(t, cur.LessThan(prev), "unlocked balance decreased at t=%d", tt)
		prev = cur
	}
}
