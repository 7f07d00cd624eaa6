// Package treasury owns the single custodial account that funds validators
// and pays rewards. It is created on first boot, persisted to the datastore,
// and loaded read-only thereafter.
package treasury

import (
	"context"
	"fmt"

	"github.com/nodepilot/custodian/pkg/datastore"
	"github.com/nodepilot/custodian/pkg/keys"
	"github.com/nodepilot/custodian/pkg/ledger"
	"github.com/nodepilot/custodian/pkg/utils"
	"go.uber.org/zap"
)

// Treasury wraps the custodial account. The signing material stays inside
// this package: it is handed to the ledger client for outgoing transfers and
// is never logged or serialized in responses.
type Treasury struct {
	acct *keys.Account
}

// Load reads the treasury account from the datastore, creating and persisting
// it on first run. The account is never mutated afterwards.
func Load(ctx context.Context, ds *datastore.Store, cli ledger.Client, logger *zap.Logger) (*Treasury, error) {
	var acct keys.Account
	ok, err := ds.Get(datastore.KeyAccount, &acct)
	if err != nil {
		return nil, fmt.Errorf("load treasury: %w", err)
	}
	if !ok {
		created, err := cli.CreateAccount(ctx, utils.GeneratePassword())
		if err != nil {
			return nil, fmt.Errorf("create treasury account: %w", err)
		}
		if err := ds.Set(datastore.KeyAccount, created); err != nil {
			return nil, fmt.Errorf("persist treasury account: %w", err)
		}
		acct = *created
		logger.Info("Treasury account created", zap.String("address", acct.Address))
	} else {
		logger.Info("Treasury account loaded", zap.String("address", acct.Address))
	}
	return &Treasury{acct: &acct}, nil
}

// Address returns the treasury's chain address.
func (t *Treasury) Address() string { return t.acct.Address }

// SigningKey returns the raw signing key for outgoing treasury transfers.
func (t *Treasury) SigningKey() string { return t.acct.RawPrivateKey }

// String keeps the account out of accidental log output.
func (t *Treasury) String() string { return "treasury(" + t.acct.Address + ")" }
