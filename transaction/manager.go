package transaction

import (
	"context"
	"sync"

	"github.com/DomeLiquid/federation/config"
	"github.com/DomeLiquid/federation/core"
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

type (
	// StateReader builds the inventory state of a wallet from its holdings.
	StateReader interface {
		State(ctx context.Context, walletAddress string) (*core.InventoryState, error)
	}

	// Manager guards operations by transaction id and confirms the chain
	// transactions they submit.
	Manager struct {
		store    core.TransactionStore
		chain    core.ChainService
		states   StateReader
		sink     core.InventorySink
		settings *config.Provider
		clk      clock.Clock
		log      core.Log
		metrics  *metrics

		polls sync.WaitGroup
	}
)

func NewManager(
	store core.TransactionStore,
	chain core.ChainService,
	states StateReader,
	sink core.InventorySink,
	settings *config.Provider,
	clk clock.Clock,
	log core.Log,
	reg prometheus.Registerer,
) *Manager {
	return &Manager{
		store:    store,
		chain:    chain,
		states:   states,
		sink:     sink,
		settings: settings,
		clk:      clk,
		log:      log,
		metrics:  newMetrics(reg),
	}
}

// WithTransaction runs handler at most once per live transaction id. A
// failed handler releases the id so the caller may retry.
func (m *Manager) WithTransaction(
	ctx context.Context,
	operationName, requestBody, walletAddress, transactionId string,
	playerId int64,
	handler func(ctx context.Context) error,
) error {
	record := core.NewTransactionRecord(m.clk, transactionId, playerId, operationName, requestBody, walletAddress)
	outcome, err := m.store.TryInsertTransaction(ctx, record)
	if err != nil {
		return errors.Wrapf(err, "insert transaction %s", transactionId)
	}
	if outcome == core.InsertOutcomeAlreadyExists {
		m.metrics.guarded.WithLabelValues(operationName, "duplicate").Inc()
		m.log.Info().
			Str("transaction", transactionId).
			Str("operation", operationName).
			Msg("duplicate transaction rejected")
		return core.NewTransactionError(errors.Wrap(core.ErrTransactionInProgress, transactionId))
	}

	if err := handler(ctx); err != nil {
		m.metrics.guarded.WithLabelValues(operationName, "failed").Inc()
		m.log.Error().
			Err(err).
			Str("transaction", transactionId).
			Str("operation", operationName).
			Msg("transaction failed")
		if delErr := m.store.DeleteTransaction(context.Background(), transactionId); delErr != nil {
			m.log.Error().Err(delErr).Str("transaction", transactionId).Msg("release transaction")
		}
		return core.NewTransactionError(err)
	}

	m.metrics.guarded.WithLabelValues(operationName, "ok").Inc()
	return nil
}

func (m *Manager) GetTransaction(ctx context.Context, transactionId string) (*core.TransactionRecord, error) {
	return m.store.GetTransaction(ctx, transactionId)
}

// SaveChainTransactions attaches the submitted hashes and moves the record
// to pending.
func (m *Manager) SaveChainTransactions(ctx context.Context, transactionId string, chainTransactions []string) error {
	return m.store.SaveChainTransactions(ctx, transactionId, chainTransactions, core.TransactionStatePending)
}

func (m *Manager) MarkConfirmed(ctx context.Context, transactionId string) error {
	return m.store.SaveTransactionState(ctx, transactionId, core.TransactionStateConfirmed)
}

func (m *Manager) MarkFailed(ctx context.Context, transactionId string) error {
	return m.store.SaveTransactionState(ctx, transactionId, core.TransactionStateFailed)
}
