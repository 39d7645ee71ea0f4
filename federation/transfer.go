package federation

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/DomeLiquid/federation/core"
	"github.com/DomeLiquid/federation/transaction"
	"github.com/pkg/errors"
)

type transferBody struct {
	TokenId             string `json:"tokenId"`
	DestinationPlayerId int64  `json:"destinationPlayerId,omitempty"`
	DestinationWallet   string `json:"destinationWallet,omitempty"`
}

// TransferItemToPlayer moves a token from the source player's wallet to the
// destination player's wallet. Both players get their state replaced once
// the transfer confirms.
func (s *Service) TransferItemToPlayer(
	ctx context.Context,
	sourcePlayerId, destinationPlayerId int64,
	tokenId, transactionId string,
) (*transaction.PollHandle, error) {
	if err := validateTransfer(tokenId, transactionId); err != nil {
		return nil, err
	}
	if sourcePlayerId == destinationPlayerId {
		return nil, errors.Wrap(core.ErrInvalidRequest, "cannot transfer to the same player")
	}
	destination, err := s.GetOrCreateWallet(ctx, destinationPlayerId)
	if err != nil {
		return nil, err
	}
	body := transferBody{TokenId: tokenId, DestinationPlayerId: destinationPlayerId}
	return s.transfer(ctx, core.TRANSFER_TO_PLAYER_OPERATION_NAME, body, sourcePlayerId, transactionId,
		core.AffectedPlayer{PlayerId: destinationPlayerId, WalletAddress: destination.Address})
}

// TransferItemExternal moves a token from the source player's wallet to a
// wallet outside the game.
func (s *Service) TransferItemExternal(
	ctx context.Context,
	sourcePlayerId int64,
	destinationWallet, tokenId, transactionId string,
) (*transaction.PollHandle, error) {
	if err := validateTransfer(tokenId, transactionId); err != nil {
		return nil, err
	}
	if strings.TrimSpace(destinationWallet) == "" {
		return nil, errors.Wrap(core.ErrInvalidRequest, "destination wallet is required")
	}
	body := transferBody{TokenId: tokenId, DestinationWallet: destinationWallet}
	return s.transfer(ctx, core.TRANSFER_EXTERNAL_OPERATION_NAME, body, sourcePlayerId, transactionId,
		core.AffectedPlayer{WalletAddress: destinationWallet})
}

// transfer submits one token transfer under transactionId. A destination
// without a player id is not notified.
func (s *Service) transfer(
	ctx context.Context,
	operationName string,
	body transferBody,
	sourcePlayerId int64,
	transactionId string,
	destination core.AffectedPlayer,
) (*transaction.PollHandle, error) {
	source, err := s.GetOrCreateWallet(ctx, sourcePlayerId)
	if err != nil {
		return nil, err
	}
	if source.Address == destination.WalletAddress {
		return nil, errors.Wrap(core.ErrInvalidRequest, "source and destination wallets are the same")
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}

	var handle *transaction.PollHandle
	err = s.transactions.WithTransaction(ctx, operationName, string(encoded), source.Address, transactionId, sourcePlayerId, func(ctx context.Context) error {
		contract, err := s.contracts.GetOrCreateDefaultContract(ctx)
		if err != nil {
			return err
		}
		if err := s.ensureHeld(ctx, source.Address, body.TokenId); err != nil {
			return err
		}

		hash, err := s.chain.Transfer(ctx, &core.TransferRequest{
			Pincode:      s.settings.Current().WalletPin(),
			FromAddress:  source.Address,
			ToAddress:    destination.WalletAddress,
			TokenAddress: contract.Address,
			TokenId:      body.TokenId,
			Amount:       1,
		})
		if err != nil {
			return err
		}
		s.log.Info().
			Str("transaction", transactionId).
			Str("from", source.Address).
			Str("to", destination.WalletAddress).
			Str("token", body.TokenId).
			Str("hash", hash).
			Msg("transfer submitted")

		hashes := []string{hash}
		if err := s.transactions.SaveChainTransactions(ctx, transactionId, hashes); err != nil {
			return err
		}
		players := []core.AffectedPlayer{{PlayerId: sourcePlayerId, WalletAddress: source.Address}}
		if destination.PlayerId > 0 {
			players = append(players, destination)
		}
		handle = s.transactions.PollChainTransactions(transactionId, hashes, players)
		return nil
	})
	return handle, err
}

func validateTransfer(tokenId, transactionId string) error {
	if transactionId == "" {
		return errors.Wrap(core.ErrInvalidRequest, "transaction id is required")
	}
	if tokenId == "" {
		return errors.Wrap(core.ErrInvalidRequest, "token id is required")
	}
	return nil
}

func (s *Service) ensureHeld(ctx context.Context, wallet, tokenId string) error {
	tokens, err := s.chain.GetWalletTokenBalances(ctx, wallet)
	if err != nil {
		return err
	}
	for _, token := range tokens {
		if token.Id == tokenId {
			return nil
		}
	}
	return errors.Wrapf(core.ErrInvalidRequest, "token %s is not held by %s", tokenId, wallet)
}
