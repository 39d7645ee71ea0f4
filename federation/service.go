package federation

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"github.com/DomeLiquid/federation/config"
	"github.com/DomeLiquid/federation/core"
	"github.com/DomeLiquid/federation/transaction"
	"github.com/pkg/errors"
)

type (
	Minter interface {
		Mint(ctx context.Context, playerId int64, walletAddress, transactionId string, requests []core.MintRequest) (*transaction.PollHandle, error)
	}

	// Transactions guards operations by id and confirms what they submit.
	Transactions interface {
		WithTransaction(ctx context.Context, operationName, requestBody, walletAddress, transactionId string, playerId int64, handler func(ctx context.Context) error) error
		SaveChainTransactions(ctx context.Context, transactionId string, chainTransactions []string) error
		PollChainTransactions(transactionId string, chainTransactions []string, players []core.AffectedPlayer) *transaction.PollHandle
	}

	StateReader interface {
		State(ctx context.Context, walletAddress string) (*core.InventoryState, error)
	}

	// Service is what the game talks to.
	Service struct {
		transactions Transactions
		minter       Minter
		states       StateReader
		contracts    core.ContractResolver
		chain        core.ChainService
		settings     *config.Provider
		log          core.Log
	}

	mintBatchBody struct {
		PlayerId int64              `json:"playerId"`
		Wallet   string             `json:"wallet"`
		Requests []core.MintRequest `json:"requests"`
	}

	inventoryTransactionBody struct {
		Currencies map[string]int64 `json:"currencies"`
		NewItems   []string         `json:"newItems"`
	}
)

func NewService(
	transactions Transactions,
	minter Minter,
	states StateReader,
	contracts core.ContractResolver,
	chain core.ChainService,
	settings *config.Provider,
	log core.Log,
) *Service {
	return &Service{
		transactions: transactions,
		minter:       minter,
		states:       states,
		contracts:    contracts,
		chain:        chain,
		settings:     settings,
		log:          log,
	}
}

// MintBatch mints requests to wallet at most once per transactionId.
func (s *Service) MintBatch(ctx context.Context, playerId int64, wallet, transactionId string, requests []core.MintRequest) (*transaction.PollHandle, error) {
	if err := validateBatch(wallet, transactionId, requests); err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, errors.Wrap(core.ErrInvalidRequest, "nothing to mint")
	}
	body, err := json.Marshal(mintBatchBody{PlayerId: playerId, Wallet: wallet, Requests: requests})
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}
	return s.guardedMint(ctx, core.MINT_BATCH_OPERATION_NAME, string(body), playerId, wallet, transactionId, requests)
}

// StartInventoryTransaction grants currencies and new items to the player
// owning wallet and returns the inventory state as it is known right now.
// A transaction granting nothing is still recorded under its id.
func (s *Service) StartInventoryTransaction(
	ctx context.Context,
	wallet, transactionId string,
	currencies map[string]int64,
	newItems []string,
) (*core.InventoryState, error) {
	owner, err := s.chain.GetWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	playerId, err := strconv.ParseInt(owner.Identifier, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(core.ErrInvalidRequest, "wallet %s has no player identifier", wallet)
	}

	requests, err := inventoryRequests(currencies, newItems)
	if err != nil {
		return nil, err
	}
	if err := validateBatch(wallet, transactionId, requests); err != nil {
		return nil, err
	}
	body, err := json.Marshal(inventoryTransactionBody{Currencies: currencies, NewItems: newItems})
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}
	if _, err := s.guardedMint(ctx, core.INVENTORY_TRANSACTION_OPERATION_NAME, string(body), playerId, wallet, transactionId, requests); err != nil {
		return nil, err
	}
	return s.states.State(ctx, wallet)
}

func (s *Service) InventoryState(ctx context.Context, wallet string) (*core.InventoryState, error) {
	if wallet == "" {
		return nil, errors.Wrap(core.ErrInvalidRequest, "wallet is required")
	}
	return s.states.State(ctx, wallet)
}

// GetOrCreateWallet returns the wallet identified by playerId, creating it
// on the configured chain when the player has none.
func (s *Service) GetOrCreateWallet(ctx context.Context, playerId int64) (*core.Wallet, error) {
	if playerId <= 0 {
		return nil, errors.Wrapf(core.ErrInvalidRequest, "invalid player id %d", playerId)
	}
	cfg := s.settings.Current()
	chain, err := cfg.ParseChain()
	if err != nil {
		return nil, err
	}

	identifier := strconv.FormatInt(playerId, 10)
	wallets, err := s.chain.GetWalletsByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	for _, wallet := range wallets {
		if wallet.Chain == "" || wallet.Chain == chain {
			return wallet, nil
		}
	}

	wallet, err := s.chain.CreateWallet(ctx, &core.CreateWalletRequest{
		Chain:       chain,
		Identifier:  identifier,
		Description: core.DEFAULT_WALLET_DESCRIPTION,
		Pincode:     cfg.WalletPin(),
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("player", playerId).Str("wallet", wallet.Address).Msg("wallet created")
	return wallet, nil
}

func (s *Service) guardedMint(
	ctx context.Context,
	operationName, body string,
	playerId int64,
	wallet, transactionId string,
	requests []core.MintRequest,
) (*transaction.PollHandle, error) {
	var handle *transaction.PollHandle
	err := s.transactions.WithTransaction(ctx, operationName, body, wallet, transactionId, playerId, func(ctx context.Context) error {
		if len(requests) == 0 {
			return nil
		}
		var err error
		handle, err = s.minter.Mint(ctx, playerId, wallet, transactionId, requests)
		return err
	})
	return handle, err
}

func validateBatch(wallet, transactionId string, requests []core.MintRequest) error {
	if transactionId == "" {
		return errors.Wrap(core.ErrInvalidRequest, "transaction id is required")
	}
	if wallet == "" {
		return errors.Wrap(core.ErrInvalidRequest, "wallet is required")
	}
	for _, req := range requests {
		if !req.Valid() {
			return errors.Wrapf(core.ErrInvalidRequest, "invalid mint of %q amount %d", req.ContentId, req.Amount)
		}
	}
	return nil
}

// inventoryRequests lists currencies first, by name, then new items in
// the given order.
func inventoryRequests(currencies map[string]int64, newItems []string) ([]core.MintRequest, error) {
	names := make([]string, 0, len(currencies))
	for name := range currencies {
		names = append(names, name)
	}
	sort.Strings(names)

	requests := make([]core.MintRequest, 0, len(currencies)+len(newItems))
	for _, name := range names {
		value := currencies[name]
		if value <= 0 || value > math.MaxUint32 {
			return nil, errors.Wrapf(core.ErrInvalidRequest, "currency %s: value %d out of range", name, value)
		}
		requests = append(requests, core.MintRequest{ContentId: name, Amount: uint32(value), Fungible: true})
	}
	for _, contentId := range newItems {
		requests = append(requests, core.MintRequest{ContentId: contentId, Amount: 1})
	}
	return requests, nil
}
