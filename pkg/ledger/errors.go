package ledger

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by TransactionByHash when the chain has not indexed
// the transaction yet. Callers treat it as "retry on a later pass", never as a
// hard failure.
var ErrNotFound = errors.New("ledger: transaction not found")

// QueryError wraps a failed read (balance, height, transaction lookup).
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string { return fmt.Sprintf("ledger: query %s: %v", e.Op, e.Err) }
func (e *QueryError) Unwrap() error { return e.Err }

// SubmissionError wraps a rejected or failed transfer submission. The funds
// did not move; the caller may retry once its preconditions still hold.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string { return fmt.Sprintf("ledger: submit: %v", e.Err) }
func (e *SubmissionError) Unwrap() error { return e.Err }

// KeyGenerationError wraps a failed account creation.
type KeyGenerationError struct {
	Err error
}

func (e *KeyGenerationError) Error() string { return fmt.Sprintf("ledger: keygen: %v", e.Err) }
func (e *KeyGenerationError) Unwrap() error { return e.Err }

// statusError carries a non-2xx HTTP status out of the transport so callers
// can map 404 to ErrNotFound.
type statusError struct {
	Code int
}

func (e *statusError) Error() string { return fmt.Sprintf("http %d", e.Code) }
