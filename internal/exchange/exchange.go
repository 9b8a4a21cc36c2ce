// Package exchange models the engine's second out-of-scope collaborator:
// the external AMM exchange contract that owns LP pools. The engine
// queries pool composition from it and forwards custodied LP shares
// through it; it never executes swaps or prices assets (Non-goals,
// spec.md §1).
package exchange

//go:generate go run go.uber.org/mock/mockgen -source=exchange.go -destination=mock_exchange.go -package=exchange

import (
	"context"

	"github.com/lumera-labs/lockup-vesting/internal/lockup"
	"github.com/lumera-labs/lockup-vesting/internal/money"
)

// PoolID identifies a liquidity pool within an exchange.
type PoolID uint64

// PoolInfo is the pool composition returned by the exchange's RPC, carried
// verbatim from original_source/src/ref_integration.rs's get_pool_info
// shape (SPEC_FULL §3).
type PoolInfo struct {
	TokenAccountIDs   []lockup.AccountID
	Amounts           []money.Balance
	TotalFee          uint32
	SharesTotalSupply money.Balance
}

// IndexOf returns the position of token within TokenAccountIDs, or -1 if
// the pool doesn't hold it.
func (p PoolInfo) IndexOf(token lockup.AccountID) int {
	for i, t := range p.TokenAccountIDs {
		if t == token {
			return i
		}
	}
	return -1
}

// Exchange is the RPC surface the incentive intake (§4.6) and the
// custody/forward-transfer path (§4.8) call against: reading pool
// composition, and forwarding custodied LP shares back out.
type Exchange interface {
	// GetPool returns the current composition of poolID on exchange. A
	// failed query (e.g. the pool doesn't exist, or the RPC call itself
	// fails) drops the LP intake entirely per §7's propagation policy --
	// the caller never acknowledges the shares in that case.
	GetPool(ctx context.Context, poolID PoolID) (PoolInfo, error)

	// Transfer forwards amount of poolID's LP share token to receiver.
	// An error models the asynchronous transfer failing, triggering the
	// caller's share-balance rollback (§4.8 step 5).
	Transfer(ctx context.Context, poolID PoolID, receiver lockup.AccountID, amount money.Balance) error

	// TransferCall is the proxy_mft_transfer_call variant: the exchange
	// runs receiver's handler and reports back the portion of amount it
	// did not use, which the caller restores to custody (§4.8 step 6).
	TransferCall(ctx context.Context, poolID PoolID, receiver lockup.AccountID, amount money.Balance, msg string) (unused money.Balance, err error)
}
