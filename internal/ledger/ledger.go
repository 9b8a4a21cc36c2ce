// Package ledger models the engine's one out-of-scope collaborator for
// token movement: the opaque fungible-token ledger. The engine only ever
// calls Transfer on it and observes success or failure; it never inspects
// the ledger's own accounting.
package ledger

//go:generate go run go.uber.org/mock/mockgen -source=ledger.go -destination=mock_ledger.go -package=ledger

import (
	"context"

	"github.com/lumera-labs/lockup-vesting/internal/lockup"
	"github.com/lumera-labs/lockup-vesting/internal/money"
)

// Ledger is the fungible-token ledger the engine escrows its balance on.
// A real implementation forwards this to the actual token contract/service;
// in tests it is replaced by a generated mock so transfer failure can be
// forced deterministically (S1's and S5's rollback paths).
type Ledger interface {
	// Transfer moves amount of the engine's escrowed token to recipient.
	// An error return models an asynchronous transfer failure (the ledger
	// rejected the transfer, e.g. the recipient has no storage
	// registration) and triggers the caller's compensating rollback.
	Transfer(ctx context.Context, recipient lockup.AccountID, amount money.Balance) error
}
