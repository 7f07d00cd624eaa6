package ledger

import (
	"context"
	"math/big"

	"github.com/nodepilot/custodian/pkg/keys"
)

// Client captures the chain capabilities the reconciliation engine, the sweep
// job, and the API surface depend on. Amounts are micro-unit big.Ints.
type Client interface {
	Head(ctx context.Context) (uint64, error)
	Balance(ctx context.Context, address string) (*big.Int, error)
	Send(ctx context.Context, rawPrivateKey string, amount *big.Int, from, to string) (string, error)
	TransactionByHash(ctx context.Context, hash string) (*Transaction, error)
	CreateAccount(ctx context.Context, password string) (*keys.Account, error)
}

var _ Client = (*HTTPClient)(nil)
