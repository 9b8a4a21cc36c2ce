// Package money defines the fixed-width numeric primitives of the ledger:
// Timestamp (seconds since epoch) and Balance (an exact, overflow-checked
// 128-bit token amount carried in a 256-bit register so intermediate
// products never wrap).
package money

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Timestamp is seconds since epoch. The engine only ever receives block
// time in nanoseconds and must floor-divide by 1e9 at the boundary; see
// FromUnixNano.
type Timestamp uint64

// FromUnixNano converts a nanosecond block timestamp to engine Timestamp,
// truncating (never rounding up) per the schedule arithmetic's "no
// rounding up" rule.
func FromUnixNano(nanos uint64) Timestamp {
	return Timestamp(nanos / 1_000_000_000)
}

func (t Timestamp) Before(o Timestamp) bool { return t < o }
func (t Timestamp) After(o Timestamp) bool  { return t > o }

// Balance is an exact unsigned integer token amount. It is backed by a
// 256-bit register so that Balance*Balance, Balance*duration and similar
// products used in schedule interpolation and LP-grant computation never
// overflow before the final floor-division truncates back into range.
// Go's zero value is a valid zero balance.
type Balance struct {
	v uint256.Int
}

// maxBalance is the largest value a Balance may legitimately hold: 2^128-1,
// matching the spec's "unsigned 128-bit integer" definition. Values above
// this only ever appear as transient 256-bit products inside MulDivFloor.
var maxBalance = func() uint256.Int {
	one := uint256.NewInt(1)
	shifted := new(uint256.Int).Lsh(one, 128)
	return *new(uint256.Int).Sub(shifted, one)
}()

// NewFromUint64 builds a Balance from a plain uint64 amount.
func NewFromUint64(v uint64) Balance {
	return Balance{v: *uint256.NewInt(v)}
}

// ParseBalance parses a base-10 string into a Balance, failing if the value
// exceeds the 128-bit domain.
func ParseBalance(s string) (Balance, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Balance{}, fmt.Errorf("money: %q: %w", s, err)
	}
	if v.Gt(&maxBalance) {
		return Balance{}, fmt.Errorf("money: %q exceeds 128-bit balance domain", s)
	}
	return Balance{v: *v}, nil
}

func (b Balance) String() string { return b.v.Dec() }

// Uint64 returns the balance as a plain uint64, panicking if it doesn't
// fit. Used only where a Balance is known by construction to represent a
// bounded quantity like an elapsed duration, never a full 128-bit amount.
func (b Balance) Uint64() uint64 {
	if !b.v.IsUint64() {
		panic("money: balance does not fit in uint64")
	}
	return b.v.Uint64()
}

// Bytes16 renders the balance as a 16-byte big-endian u128, for canonical
// serialization (schedule hashing, §9).
func (b Balance) Bytes16() [16]byte {
	full := b.v.Bytes32()
	var out [16]byte
	copy(out[:], full[16:])
	return out
}

// MarshalJSON renders the balance as a base-10 JSON string (u128 values
// routinely exceed the safe integer range of a JSON number).
func (b Balance) MarshalJSON() ([]byte, error) {
	return []byte(`"` + b.v.Dec() + `"`), nil
}

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (b *Balance) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseBalance(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// IsZero reports whether the balance is exactly zero.
func (b Balance) IsZero() bool { return b.v.IsZero() }

// Cmp compares two balances: -1, 0, +1.
func (b Balance) Cmp(o Balance) int { return b.v.Cmp(&o.v) }

func (b Balance) LessThan(o Balance) bool    { return b.Cmp(o) < 0 }
func (b Balance) GreaterThan(o Balance) bool { return b.Cmp(o) > 0 }
func (b Balance) Equal(o Balance) bool       { return b.Cmp(o) == 0 }

// Add returns b+o. Panics on overflow: per the spec, balance overflow is a
// programmer error and must fail loudly rather than saturate or wrap.
func (b Balance) Add(o Balance) Balance {
	var out uint256.Int
	if out.AddOverflow(&b.v, &o.v) {
		panic("money: balance addition overflowed 256-bit register")
	}
	if out.Gt(&maxBalance) {
		panic("money: balance addition exceeded 128-bit domain")
	}
	return Balance{v: out}
}

// Sub returns b-o. Panics if o > b (balances are unsigned and underflow is
// always a programmer error here — callers must check ordering first when
// the subtraction is allowed to legitimately fail, e.g. share custody
// underflow, which is handled explicitly by its own caller rather than via
// this method).
func (b Balance) Sub(o Balance) Balance {
	if b.v.Lt(&o.v) {
		panic("money: balance subtraction underflowed")
	}
	var out uint256.Int
	out.Sub(&b.v, &o.v)
	return Balance{v: out}
}

// TrySub returns b-o and ok=false (rather than panicking) when o > b, for
// the one call site (LP-share custody, §4.8) where underflow is an expected,
// recoverable condition rather than a programmer error.
func (b Balance) TrySub(o Balance) (Balance, bool) {
	if b.v.Lt(&o.v) {
		return Balance{}, false
	}
	var out uint256.Int
	out.Sub(&b.v, &o.v)
	return Balance{v: out}, true
}

// MulDivFloor computes floor(a*b/d) using a 256-bit intermediate
// (uint256 natively carries the overflow flag for the multiply; since a, b
// and d are all within the 128-bit domain, a*b fits in 256 bits and never
// overflows the register). d must be nonzero.
func MulDivFloor(a, b Balance, d Balance) Balance {
	if d.v.IsZero() {
		panic("money: MulDivFloor division by zero")
	}
	var product uint256.Int
	if product.MulOverflow(&a.v, &b.v) {
		panic("money: MulDivFloor intermediate product overflowed 256-bit register")
	}
	var out uint256.Int
	out.Div(&product, &d.v)
	return Balance{v: out}
}

// MulDivFloorByTime computes floor(delta * numSeconds / denSeconds), the
// shape schedule interpolation needs (§4.1: released = lo.balance +
// (hi.balance-lo.balance)*(t-lo.timestamp)/(hi.timestamp-lo.timestamp)).
// denSeconds must be nonzero.
func MulDivFloorByTime(delta Balance, numSeconds, denSeconds uint64) Balance {
	if denSeconds == 0 {
		panic("money: MulDivFloorByTime division by zero")
	}
	var num uint256.Int
	if num.MulOverflow(&delta.v, uint256.NewInt(numSeconds)) {
		panic("money: MulDivFloorByTime intermediate product overflowed 256-bit register")
	}
	var out uint256.Int
	out.Div(&num, uint256.NewInt(denSeconds))
	return Balance{v: out}
}

// MulDivFloorConst computes floor(a*b*numConst / (d*denConst)), the shape
// the LP-grant formula needs (§4.6: "u · pool_token_amount · 12 · 2 / (S ·
// 10)"). numConst/denConst are small fixed protocol constants, not
// balances, so they're taken as plain uint64 and folded into the 256-bit
// product/divisor directly.
func MulDivFloorConst(a, b Balance, numConst uint64, d Balance, denConst uint64) Balance {
	if d.v.IsZero() {
		panic("money: MulDivFloorConst division by zero")
	}
	var num uint256.Int
	if num.MulOverflow(&a.v, &b.v) {
		panic("money: MulDivFloorConst numerator product overflowed 256-bit register")
	}
	if num.MulOverflow(&num, uint256.NewInt(numConst)) {
		panic("money: MulDivFloorConst numerator*const overflowed 256-bit register")
	}
	var den uint256.Int
	if den.MulOverflow(&d.v, uint256.NewInt(denConst)) {
		panic("money: MulDivFloorConst denominator*const overflowed 256-bit register")
	}
	var out uint256.Int
	out.Div(&num, &den)
	return Balance{v: out}
}
