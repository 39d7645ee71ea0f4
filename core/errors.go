package core

import (
	"github.com/pkg/errors"
)

var (
	ErrInvalidChain          = errors.New("invalid chain")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrTransactionInProgress = errors.New("transaction already processed or in-progress")
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrContractNotFound      = errors.New("contract not found")
	ErrContractNotConfirmed  = errors.New("contract not confirmed")
	ErrWalletNotFound        = errors.New("wallet not found")
)

// TransactionError is what callers of a guarded operation see when the
// operation was rejected or its handler failed.
type TransactionError struct {
	Message string
	Err     error
}

func NewTransactionError(err error) *TransactionError {
	return &TransactionError{
		Message: err.Error(),
		Err:     err,
	}
}

func (e *TransactionError) Error() string {
	return "TransactionError: " + e.Message
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}
