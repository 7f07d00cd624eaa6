package ledger

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
)

// txFee is the flat network fee attached to every transfer, in micro-units.
const txFee = 10_000

// Transaction is a confirmed (or pending) transfer as reported by the chain.
// Height is zero until the transaction is included in a block.
type Transaction struct {
	Hash      string `json:"hash"`
	Height    uint64 `json:"height"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// rawTx is the signed transfer envelope submitted to the chain.
type rawTx struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Fee       string `json:"fee"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

type submitResponse struct {
	TxHash string `json:"txhash"`
	Log    string `json:"log"`
}

// TransactionByHash looks up a transaction by reference. Returns ErrNotFound
// while the chain has not indexed it yet.
func (c *HTTPClient) TransactionByHash(ctx context.Context, hash string) (*Transaction, error) {
	var tx Transaction
	err := c.doJSON(ctx, http.MethodPost, txPath, map[string]any{"hash": hash}, &tx)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, &QueryError{Op: "tx", Err: err}
	}
	if tx.Hash == "" {
		// Some nodes answer 200 with an empty body for unindexed hashes.
		return nil, ErrNotFound
	}
	return &tx, nil
}

// Send signs a transfer of amount micro-units with the given raw private key
// and submits it. Returns the transaction reference on acceptance.
func (c *HTTPClient) Send(ctx context.Context, rawPrivateKey string, amount *big.Int, from, to string) (string, error) {
	if amount == nil || amount.Sign() <= 0 {
		return "", &SubmissionError{Err: fmt.Errorf("non-positive amount")}
	}
	keyBytes, err := hex.DecodeString(rawPrivateKey)
	if err != nil || len(keyBytes) != ed25519.PrivateKeySize {
		return "", &SubmissionError{Err: fmt.Errorf("malformed signing key for %s", from)}
	}
	priv := ed25519.PrivateKey(keyBytes)

	tx := rawTx{
		Sender:    from,
		Recipient: to,
		Amount:    amount.String(),
		Fee:       fmt.Sprintf("%d", txFee),
		PublicKey: hex.EncodeToString(priv.Public().(ed25519.PublicKey)),
	}
	unsigned, err := json.Marshal(tx)
	if err != nil {
		return "", &SubmissionError{Err: err}
	}
	tx.Signature = hex.EncodeToString(ed25519.Sign(priv, unsigned))

	var resp submitResponse
	if err := c.doJSON(ctx, http.MethodPost, rawTxPath, tx, &resp); err != nil {
		return "", &SubmissionError{Err: err}
	}
	if resp.TxHash == "" {
		return "", &SubmissionError{Err: fmt.Errorf("rejected: %s", resp.Log)}
	}
	return resp.TxHash, nil
}
