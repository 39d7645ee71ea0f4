package core

import (
	"context"
	"time"

	"github.com/facebookgo/clock"
)

type (
	TransactionStore interface {
		// TryInsertTransaction is the idempotency guard: it reports
		// InsertOutcomeAlreadyExists when a live record with the same id exists.
		TryInsertTransaction(ctx context.Context, record *TransactionRecord) (InsertOutcome, error)
		GetTransaction(ctx context.Context, id string) (*TransactionRecord, error)
		SaveChainTransactions(ctx context.Context, id string, chainTransactions []string, state TransactionState) error
		SaveTransactionState(ctx context.Context, id string, state TransactionState) error
		DeleteTransaction(ctx context.Context, id string) error
	}

	TransactionRecord struct {
		Id                string           `json:"id"`
		PlayerId          int64            `json:"playerId"`
		OperationName     string           `json:"operationName"`
		RequestBody       string           `json:"requestBody"`
		WalletAddress     string           `json:"walletAddress"`
		ChainTransactions []string         `json:"chainTransactions"`
		State             TransactionState `json:"state"`

		ExpireAt  int64 `json:"expireAt"`
		CreatedAt int64 `json:"createdAt"`
		UpdatedAt int64 `json:"updatedAt"`
	}

	TransactionState int

	AffectedPlayer struct {
		PlayerId      int64  `json:"playerId"`
		WalletAddress string `json:"walletAddress"`
	}
)

const (
	TransactionStateInserted  TransactionState = 0
	TransactionStatePending   TransactionState = 1
	TransactionStateConfirmed TransactionState = 2
	TransactionStateFailed    TransactionState = 100
)

func (s TransactionState) String() string {
	switch s {
	case TransactionStateInserted:
		return "inserted"
	case TransactionStatePending:
		return "pending"
	case TransactionStateConfirmed:
		return "confirmed"
	case TransactionStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is expected.
func (s TransactionState) Terminal() bool {
	return s == TransactionStateConfirmed || s == TransactionStateFailed
}

func NewTransactionRecord(clk clock.Clock, id string, playerId int64, operationName, requestBody, walletAddress string) *TransactionRecord {
	now := clk.Now()
	return &TransactionRecord{
		Id:                id,
		PlayerId:          playerId,
		OperationName:     operationName,
		RequestBody:       requestBody,
		WalletAddress:     walletAddress,
		ChainTransactions: []string{},
		State:             TransactionStateInserted,
		ExpireAt:          now.Add(TRANSACTION_TTL).UnixNano(),
		CreatedAt:         now.UnixNano(),
		UpdatedAt:         now.UnixNano(),
	}
}

func (t *TransactionRecord) Expired(now time.Time) bool {
	return now.UnixNano() >= t.ExpireAt
}
