package ledger

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
)

type headResponse struct {
	Height uint64 `json:"height"`
}

type balanceResponse struct {
	Balance string `json:"balance"`
}

// Head returns the height of the chain head.
func (c *HTTPClient) Head(ctx context.Context) (uint64, error) {
	var resp headResponse
	if err := c.doJSON(ctx, http.MethodPost, heightPath, map[string]any{}, &resp); err != nil {
		return 0, &QueryError{Op: "head", Err: err}
	}
	if resp.Height == 0 {
		return 0, &QueryError{Op: "head", Err: fmt.Errorf("chain reported zero height")}
	}
	return resp.Height, nil
}

// Balance returns an account's spendable balance in micro-units.
func (c *HTTPClient) Balance(ctx context.Context, address string) (*big.Int, error) {
	var resp balanceResponse
	if err := c.doJSON(ctx, http.MethodPost, balancePath, map[string]any{"address": address}, &resp); err != nil {
		return nil, &QueryError{Op: "balance", Err: err}
	}
	if resp.Balance == "" {
		return big.NewInt(0), nil
	}
	bal, ok := new(big.Int).SetString(resp.Balance, 10)
	if !ok {
		return nil, &QueryError{Op: "balance", Err: fmt.Errorf("malformed balance %q for %s", resp.Balance, address)}
	}
	return bal, nil
}
