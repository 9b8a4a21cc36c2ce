package store

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/lumera-labs/lockup-vesting/internal/lockup"
	"github.com/lumera-labs/lockup-vesting/internal/money"
	"github.com/lumera-labs/lockup-vesting/internal/schedule"
)

// The on-disk lockup encoding is a compact, length-prefixed binary format
// in the borsh idiom §6 calls for: fixed-order fields, u32 length prefixes
// for variable-length data, no padding, no self-description. It is private
// to this package -- callers only ever see *lockup.Lockup.

func encodeSchedule(buf []byte, s schedule.Schedule) []byte {
	buf = appendUint32(buf, uint32(len(s.Checkpoints)))
	for _, cp := range s.Checkpoints {
		buf = appendUint64(buf, uint64(cp.Timestamp))
		b16 := cp.Balance.Bytes16()
		buf = append(buf, b16[:]...)
	}
	return buf
}

func decodeSchedule(b []byte) (schedule.Schedule, []byte, error) {
	n, b, err := takeUint32(b)
	if err != nil {
		return schedule.Schedule{}, nil, err
	}
	cps := make([]schedule.Checkpoint, 0, n)
	for i := uint32(0); i < n; i++ {
		var ts uint64
		ts, b, err = takeUint64(b)
		if err != nil {
			return schedule.Schedule{}, nil, err
		}
		if len(b) < 16 {
			return schedule.Schedule{}, nil, fmt.Errorf("store: truncated checkpoint balance")
		}
		var b16 [16]byte
		copy(b16[:], b[:16])
		b = b[16:]
		bal, err := money.ParseBalance(decimalFromBytes16(b16))
		if err != nil {
			return schedule.Schedule{}, nil, err
		}
		cps = append(cps, schedule.Checkpoint{Timestamp: money.Timestamp(ts), Balance: bal})
	}
	return schedule.New(cps), b, nil
}

func encodeTerminationConfig(buf []byte, tc *lockup.TerminationConfig) []byte {
	if tc == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	buf = appendString(buf, string(tc.TerminatorID))
	buf = append(buf, byte(tc.VestingKind))
	switch tc.VestingKind {
	case lockup.VestingHash:
		buf = append(buf, tc.VestingHash[:]...)
	case lockup.VestingSchedule:
		buf = encodeSchedule(buf, tc.Vesting)
	}
	return buf
}

func decodeTerminationConfig(b []byte) (*lockup.TerminationConfig, []byte, error) {
	if len(b) < 1 {
		return nil, nil, fmt.Errorf("store: truncated termination config tag")
	}
	present := b[0]
	b = b[1:]
	if present == 0 {
		return nil, b, nil
	}
	var terminator string
	var err error
	terminator, b, err = takeString(b)
	if err != nil {
		return nil, nil, err
	}
	if len(b) < 1 {
		return nil, nil, fmt.Errorf("store: truncated vesting kind")
	}
	kind := lockup.VestingKind(b[0])
	b = b[1:]
	tc := &lockup.TerminationConfig{TerminatorID: lockup.AccountID(terminator), VestingKind: kind}
	switch kind {
	case lockup.VestingHash:
		if len(b) < 32 {
			return nil, nil, fmt.Errorf("store: truncated vesting hash")
		}
		copy(tc.VestingHash[:], b[:32])
		b = b[32:]
	case lockup.VestingSchedule:
		tc.Vesting, b, err = decodeSchedule(b)
		if err != nil {
			return nil, nil, err
		}
	}
	return tc, b, nil
}

// EncodeLockup serializes a Lockup record for the L/<index> key.
func EncodeLockup(l *lockup.Lockup) []byte {
	var buf []byte
	buf = appendString(buf, string(l.AccountID))
	buf = encodeSchedule(buf, l.Schedule)
	b16 := l.ClaimedBalance.Bytes16()
	buf = append(buf, b16[:]...)
	buf = encodeTerminationConfig(buf, l.TerminationConfig)
	return buf
}

// DecodeLockup deserializes a Lockup record from the L/<index> value.
func DecodeLockup(b []byte) (*lockup.Lockup, error) {
	account, b, err := takeString(b)
	if err != nil {
		return nil, err
	}
	sched, b, err := decodeSchedule(b)
	if err != nil {
		return nil, err
	}
	if len(b) < 16 {
		return nil, fmt.Errorf("store: truncated claimed balance")
	}
	var b16 [16]byte
	copy(b16[:], b[:16])
	b = b[16:]
	claimed, err := money.ParseBalance(decimalFromBytes16(b16))
	if err != nil {
		return nil, err
	}
	tc, _, err := decodeTerminationConfig(b)
	if err != nil {
		return nil, err
	}
	return &lockup.Lockup{
		AccountID:         lockup.AccountID(account),
		Schedule:          sched,
		ClaimedBalance:    claimed,
		TerminationConfig: tc,
	}, nil
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendString(buf []byte, s string) []byte {
	buf = appendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func takeUint32(b []byte) (uint32, []byte, error) {
	if len(b) < 4 {
		return 0, nil, fmt.Errorf("store: truncated uint32")
	}
	return binary.BigEndian.Uint32(b[:4]), b[4:], nil
}

func takeUint64(b []byte) (uint64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, fmt.Errorf("store: truncated uint64")
	}
	return binary.BigEndian.Uint64(b[:8]), b[8:], nil
}

func takeString(b []byte) (string, []byte, error) {
	n, b, err := takeUint32(b)
	if err != nil {
		return "", nil, err
	}
	if uint32(len(b)) < n {
		return "", nil, fmt.Errorf("store: truncated string")
	}
	return string(b[:n]), b[n:], nil
}

// decimalFromBytes16 renders a 16-byte big-endian u128 as a base-10 string
// so it can flow back through money.ParseBalance, keeping Balance's
// internal representation private to the money package.
func decimalFromBytes16(b [16]byte) string {
	var full [32]byte
	copy(full[16:], b[:])
	v := new(uint256.Int).SetBytes32(full[:])
	return v.Dec()
}
