package ledger

import (
	"context"

	"github.com/nodepilot/custodian/pkg/keys"
)

// CreateAccount generates a new chain account whose private key is armored
// under the given password. Key generation is client-side; the chain only
// learns the address once it receives funds.
func (c *HTTPClient) CreateAccount(_ context.Context, password string) (*keys.Account, error) {
	acct, err := keys.Generate(password)
	if err != nil {
		return nil, &KeyGenerationError{Err: err}
	}
	return acct, nil
}
