// Package store persists the engine's Contract state (spec.md §6) in a
// pebble key-value database, using exactly the conceptual key layout the
// spec lays out: L/<index>, AL/<account>, W/<exchange>/<pool>, and a
// handful of scalar slots.
package store

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/pebble"

	"github.com/lumera-labs/lockup-vesting/internal/acl"
	"github.com/lumera-labs/lockup-vesting/internal/lockup"
	"github.com/lumera-labs/lockup-vesting/internal/money"
)

const (
	prefixLockup    = "L/"
	prefixAccount   = "AL/"
	prefixShares    = "W/"
	keyTokenAccount = "token_account_id"
	keyIncentTotal  = "incent_total_amount"
	keyIncentLocked = "incent_locked_amount"
	keyEnabled      = "enabled"
	keyNumLockups   = "num_lockups"
)

// Store wraps a *pebble.DB with typed accessors for every piece of
// persisted state the engine needs.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if absent) a pebble database at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func lockupKey(idx lockup.Index) []byte {
	var buf [len(prefixLockup) + 8]byte
	copy(buf[:], prefixLockup)
	binary.BigEndian.PutUint64(buf[len(prefixLockup):], uint64(idx))
	return buf[:]
}

func accountKey(account lockup.AccountID) []byte {
	return []byte(prefixAccount + string(account))
}

func sharesKey(key acl.PoolKey) []byte {
	return []byte(fmt.Sprintf("%s%s/%d", prefixShares, key.Exchange, key.Pool))
}

// PutLockup writes a lockup record at its index.
func (s *Store) PutLockup(idx lockup.Index, l *lockup.Lockup) error {
	return s.db.Set(lockupKey(idx), EncodeLockup(l), pebble.Sync)
}

// GetLockup reads a lockup record, returning ok=false if absent.
func (s *Store) GetLockup(idx lockup.Index) (*lockup.Lockup, bool, error) {
	v, closer, err := s.db.Get(lockupKey(idx))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	l, err := DecodeLockup(v)
	if err != nil {
		return nil, false, err
	}
	return l, true, nil
}

// NumLockups returns the total count of ever-created lockups (the next
// index to assign equals this value; indices are never reused).
func (s *Store) NumLockups() (uint64, error) {
	v, closer, err := s.db.Get([]byte(keyNumLockups))
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()
	return binary.BigEndian.Uint64(v), nil
}

// SetNumLockups persists the lockup count.
func (s *Store) SetNumLockups(n uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	return s.db.Set([]byte(keyNumLockups), buf[:], pebble.Sync)
}

// encodeIndexSet encodes the AL/<account> value: a sorted, de-duplicated set
// of lockup indices, as a flat big-endian uint64 array.
func encodeIndexSet(indices []lockup.Index) []byte {
	out := make([]byte, 0, len(indices)*8)
	for _, idx := range indices {
		out = appendUint64(out, uint64(idx))
	}
	return out
}

func decodeIndexSet(b []byte) []lockup.Index {
	out := make([]lockup.Index, 0, len(b)/8)
	for len(b) >= 8 {
		out = append(out, lockup.Index(binary.BigEndian.Uint64(b[:8])))
		b = b[8:]
	}
	return out
}

// AccountLockups returns the set of lockup indices for which account is
// the beneficiary.
func (s *Store) AccountLockups(account lockup.AccountID) ([]lockup.Index, error) {
	v, closer, err := s.db.Get(accountKey(account))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return decodeIndexSet(v), nil
}

// AddAccountLockup appends idx to account's index set, keeping it sorted
// and free of duplicates.
func (s *Store) AddAccountLockup(account lockup.AccountID, idx lockup.Index) error {
	existing, err := s.AccountLockups(account)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e == idx {
			return nil
		}
	}
	existing = append(existing, idx)
	sort.Slice(existing, func(i, j int) bool { return existing[i] < existing[j] })
	return s.db.Set(accountKey(account), encodeIndexSet(existing), pebble.Sync)
}

// RemoveAccountLockup drops idx from account's index set (used when a
// lockup retires -- §3 Lifecycle: "disappears from account_lockups").
func (s *Store) RemoveAccountLockup(account lockup.AccountID, idx lockup.Index) error {
	existing, err := s.AccountLockups(account)
	if err != nil {
		return err
	}
	out := existing[:0]
	for _, e := range existing {
		if e != idx {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return s.db.Delete(accountKey(account), pebble.Sync)
	}
	return s.db.Set(accountKey(account), encodeIndexSet(out), pebble.Sync)
}

// SharesBalance returns the custodied share balance for key.
func (s *Store) SharesBalance(key acl.PoolKey) (money.Balance, bool, error) {
	v, closer, err := s.db.Get(sharesKey(key))
	if err == pebble.ErrNotFound {
		return money.Balance{}, false, nil
	}
	if err != nil {
		return money.Balance{}, false, err
	}
	defer closer.Close()
	var b16 [16]byte
	copy(b16[:], v)
	bal, err := money.ParseBalance(decimalFromBytes16(b16))
	if err != nil {
		return money.Balance{}, false, err
	}
	return bal, true, nil
}

// SetSharesBalance writes the custodied share balance for key.
func (s *Store) SetSharesBalance(key acl.PoolKey, amount money.Balance) error {
	b16 := amount.Bytes16()
	return s.db.Set(sharesKey(key), b16[:], pebble.Sync)
}

// ListWhitelisted enumerates every custodied (exchange,pool) key with its
// current share balance.
func (s *Store) ListWhitelisted() (map[acl.PoolKey]money.Balance, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefixShares),
		UpperBound: []byte(prefixShares + "\xff"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	out := make(map[acl.PoolKey]money.Balance)
	for iter.First(); iter.Valid(); iter.Next() {
		k := strings.TrimPrefix(string(iter.Key()), prefixShares)
		parts := strings.Split(k, "/")
		if len(parts) != 2 {
			continue
		}
		var pool uint64
		if _, err := fmt.Sscanf(parts[1], "%d", &pool); err != nil {
			continue
		}
		var b16 [16]byte
		copy(b16[:], iter.Value())
		bal, err := money.ParseBalance(decimalFromBytes16(b16))
		if err != nil {
			return nil, err
		}
		out[acl.PoolKey{Exchange: lockup.AccountID(parts[0]), Pool: pool}] = bal
	}
	return out, nil
}

func scalarBalanceKey(key string) []byte { return []byte(key) }

// GetScalarBalance reads a u128 scalar slot (incent_total_amount,
// incent_locked_amount), defaulting to zero when absent.
func (s *Store) GetScalarBalance(key string) (money.Balance, error) {
	v, closer, err := s.db.Get(scalarBalanceKey(key))
	if err == pebble.ErrNotFound {
		return money.Balance{}, nil
	}
	if err != nil {
		return money.Balance{}, err
	}
	defer closer.Close()
	var b16 [16]byte
	copy(b16[:], v)
	return money.ParseBalance(decimalFromBytes16(b16))
}

// SetScalarBalance writes a u128 scalar slot.
func (s *Store) SetScalarBalance(key string, v money.Balance) error {
	b16 := v.Bytes16()
	return s.db.Set(scalarBalanceKey(key), b16[:], pebble.Sync)
}

// GetTokenAccountID reads the escrowed token's account id.
func (s *Store) GetTokenAccountID() (lockup.AccountID, error) {
	v, closer, err := s.db.Get([]byte(keyTokenAccount))
	if err == pebble.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer closer.Close()
	return lockup.AccountID(v), nil
}

// SetTokenAccountID writes the escrowed token's account id.
func (s *Store) SetTokenAccountID(id lockup.AccountID) error {
	return s.db.Set([]byte(keyTokenAccount), []byte(id), pebble.Sync)
}

// GetEnabled reads the kill switch, defaulting to true when absent (fresh
// database).
func (s *Store) GetEnabled() (bool, error) {
	v, closer, err := s.db.Get([]byte(keyEnabled))
	if err == pebble.ErrNotFound {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()
	return len(v) == 1 && v[0] == 1, nil
}

// SetEnabled writes the kill switch.
func (s *Store) SetEnabled(enabled bool) error {
	v := byte(0)
	if enabled {
		v = 1
	}
	return s.db.Set([]byte(keyEnabled), []byte{v}, pebble.Sync)
}

// IncentTotalAmount / IncentLockedAmount are the two scalar slots §3
// defines for incentive-pool bookkeeping.
func (s *Store) IncentTotalAmount() (money.Balance, error) {
	return s.GetScalarBalance(keyIncentTotal)
}

func (s *Store) SetIncentTotalAmount(v money.Balance) error {
	return s.SetScalarBalance(keyIncentTotal, v)
}

func (s *Store) IncentLockedAmount() (money.Balance, error) {
	return s.GetScalarBalance(keyIncentLocked)
}

func (s *Store) SetIncentLockedAmount(v money.Balance) error {
	return s.SetScalarBalance(keyIncentLocked, v)
}

// LoadACL reconstructs an *acl.ACL (deposit whitelist, custodied pools and
// their share balances, pause switch) from persisted state at process start.
func (s *Store) LoadACL() (*acl.ACL, error) {
	enabled, err := s.GetEnabled()
	if err != nil {
		return nil, err
	}
	wl, err := s.ListWhitelisted()
	if err != nil {
		return nil, err
	}
	dw, err := s.listDepositWhitelist()
	if err != nil {
		return nil, err
	}
	a := acl.New(dw)
	a.Enabled = enabled
	for k, v := range wl {
		a.Whitelisted[k] = v
	}
	return a, nil
}

const prefixDepositWhitelist = "DW/"

func (s *Store) listDepositWhitelist() ([]lockup.AccountID, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefixDepositWhitelist),
		UpperBound: []byte(prefixDepositWhitelist + "\xff"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []lockup.AccountID
	for iter.First(); iter.Valid(); iter.Next() {
		out = append(out, lockup.AccountID(strings.TrimPrefix(string(iter.Key()), prefixDepositWhitelist)))
	}
	return out, nil
}

// SaveACL persists every mutable field of a (whitelists, pause) snapshot;
// called after any ACL-mutating operation commits.
func (s *Store) SaveACL(a *acl.ACL) error {
	if err := s.SetEnabled(a.Enabled); err != nil {
		return err
	}
	existing, err := s.listDepositWhitelist()
	if err != nil {
		return err
	}
	keep := make(map[lockup.AccountID]struct{}, len(a.DepositWhitelist))
	for acc := range a.DepositWhitelist {
		keep[acc] = struct{}{}
		if err := s.db.Set([]byte(prefixDepositWhitelist+string(acc)), []byte{1}, pebble.Sync); err != nil {
			return err
		}
	}
	for _, acc := range existing {
		if _, ok := keep[acc]; !ok {
			if err := s.db.Delete([]byte(prefixDepositWhitelist+string(acc)), pebble.Sync); err != nil {
				return err
			}
		}
	}
	for k, v := range a.Whitelisted {
		if err := s.SetSharesBalance(k, v); err != nil {
			return err
		}
	}
	return nil
}
