// Package engineerr defines the engine's error taxonomy (spec.md §7). Every
// sentinel here terminates the current operation without partial mutation;
// callers wrap them with fmt.Errorf("...: %w", ...) for context and unwrap
// with errors.Is.
package engineerr

import "errors"

var (
	// ErrInvalidToken: deposit arrived from a ledger other than the
	// contract's configured token_account_id.
	ErrInvalidToken = errors.New("engine: invalid token")
	// ErrUnauthorized: caller not in the required whitelist, or terminator
	// mismatch.
	ErrUnauthorized = errors.New("engine: unauthorized")
	// ErrInvalidSchedule: schedule violates a §3 invariant.
	ErrInvalidSchedule = errors.New("engine: invalid schedule")
	// ErrInvalidTotal: declared total doesn't match the final checkpoint
	// balance, or doesn't match the attached deposit amount.
	ErrInvalidTotal = errors.New("engine: invalid total")
	// ErrIncompatibleVesting: rule V violated.
	ErrIncompatibleVesting = errors.New("engine: incompatible vesting schedule")
	// ErrInvalidRevealedSchedule: hash(revealed) != commitment.
	ErrInvalidRevealedSchedule = errors.New("engine: invalid revealed schedule")
	// ErrNoTerminationConfig: terminate called on a non-terminable lockup.
	ErrNoTerminationConfig = errors.New("engine: lockup has no termination config")
	// ErrNotWhitelisted: (exchange,pool) not in whitelisted_tokens.
	ErrNotWhitelisted = errors.New("engine: exchange/pool not whitelisted")
	// ErrNotEnoughShares: subtract underflow in LP-share custody.
	ErrNotEnoughShares = errors.New("engine: not enough custodied shares")
	// ErrNotEnoughGas: computed callback gas below the required floor.
	ErrNotEnoughGas = errors.New("engine: not enough gas for callback")
	// ErrPaused: enabled=false.
	ErrPaused = errors.New("engine: contract is paused")
	// ErrOvercommit: incent_locked_amount would exceed incent_total_amount.
	ErrOvercommit = errors.New("engine: incentive pool overcommitted")
	// ErrNotFound: a referenced lockup index or account has no record.
	ErrNotFound = errors.New("engine: not found")
	// ErrEmptyWhitelist: removal would leave the deposit whitelist empty.
	ErrEmptyWhitelist = errors.New("engine: removal would empty the deposit whitelist")
)
