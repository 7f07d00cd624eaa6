package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/nodepilot/custodian/pkg/keys"
)

// FuncClient adapts plain functions to the Client interface. Unset functions
// return an error instead of panicking, so partial fakes stay safe.
type FuncClient struct {
	HeadFunc              func(ctx context.Context) (uint64, error)
	BalanceFunc           func(ctx context.Context, address string) (*big.Int, error)
	SendFunc              func(ctx context.Context, rawPrivateKey string, amount *big.Int, from, to string) (string, error)
	TransactionByHashFunc func(ctx context.Context, hash string) (*Transaction, error)
	CreateAccountFunc     func(ctx context.Context, password string) (*keys.Account, error)
}

var _ Client = FuncClient{}

func (f FuncClient) Head(ctx context.Context) (uint64, error) {
	if f.HeadFunc == nil {
		return 0, fmt.Errorf("ledger: Head not configured")
	}
	return f.HeadFunc(ctx)
}

func (f FuncClient) Balance(ctx context.Context, address string) (*big.Int, error) {
	if f.BalanceFunc == nil {
		return nil, fmt.Errorf("ledger: Balance not configured")
	}
	return f.BalanceFunc(ctx, address)
}

func (f FuncClient) Send(ctx context.Context, rawPrivateKey string, amount *big.Int, from, to string) (string, error) {
	if f.SendFunc == nil {
		return "", fmt.Errorf("ledger: Send not configured")
	}
	return f.SendFunc(ctx, rawPrivateKey, amount, from, to)
}

func (f FuncClient) TransactionByHash(ctx context.Context, hash string) (*Transaction, error) {
	if f.TransactionByHashFunc == nil {
		return nil, fmt.Errorf("ledger: TransactionByHash not configured")
	}
	return f.TransactionByHashFunc(ctx, hash)
}

func (f FuncClient) CreateAccount(ctx context.Context, password string) (*keys.Account, error) {
	if f.CreateAccountFunc == nil {
		return nil, fmt.Errorf("ledger: CreateAccount not configured")
	}
	return f.CreateAccountFunc(ctx, password)
}
