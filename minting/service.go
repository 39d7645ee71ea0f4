package minting

import (
	"context"
	"sort"

	"github.com/DomeLiquid/federation/core"
	"github.com/DomeLiquid/federation/transaction"
	"github.com/DomeLiquid/federation/utils"
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
)

type (
	// Confirmer tracks the chain transactions a mint submitted.
	Confirmer interface {
		SaveChainTransactions(ctx context.Context, transactionId string, chainTransactions []string) error
		PollChainTransactions(transactionId string, chainTransactions []string, players []core.AffectedPlayer) *transaction.PollHandle
	}

	// Service decides per content whether to create a token template,
	// refresh its metadata, or mint more of it.
	Service struct {
		contracts core.ContractResolver
		mints     core.MintStore
		chain     core.ChainService
		catalog   core.ContentCatalog
		confirmer Confirmer
		clk       clock.Clock
		log       core.Log
	}

	batch struct {
		contract *core.Contract
		wallet   string
		latest   map[string]*core.MintRecord
		records  []*core.MintRecord
		hashes   []string
		seen     map[string]bool
	}
)

func NewService(
	contracts core.ContractResolver,
	mints core.MintStore,
	chain core.ChainService,
	catalog core.ContentCatalog,
	confirmer Confirmer,
	clk clock.Clock,
	log core.Log,
) *Service {
	return &Service{
		contracts: contracts,
		mints:     mints,
		chain:     chain,
		catalog:   catalog,
		confirmer: confirmer,
		clk:       clk,
		log:       log,
	}
}

// Mint publishes the requested content to walletAddress. When chain
// transactions were submitted it starts their confirmation and returns the
// handle of that poll, otherwise the handle is nil.
func (s *Service) Mint(
	ctx context.Context,
	playerId int64,
	walletAddress, transactionId string,
	requests []core.MintRequest,
) (*transaction.PollHandle, error) {
	contract, err := s.contracts.GetOrCreateDefaultContract(ctx)
	if err != nil {
		return nil, err
	}

	contentIds := make([]string, 0, len(requests))
	distinct := map[string]bool{}
	for _, req := range requests {
		if !distinct[req.ContentId] {
			distinct[req.ContentId] = true
			contentIds = append(contentIds, req.ContentId)
		}
	}
	latest, err := s.mints.LookupLatest(ctx, contract.Name, contentIds)
	if err != nil {
		return nil, err
	}

	b := &batch{
		contract: contract,
		wallet:   walletAddress,
		latest:   latest,
		seen:     map[string]bool{},
	}
	for _, req := range requests {
		if err := s.mintOne(ctx, b, req); err != nil {
			// templates created so far exist on chain, keep them in the ledger
			if insErr := s.insert(ctx, b.records); insErr != nil {
				s.log.Error().
					Err(insErr).
					AnErr("cause", err).
					Str("transaction", transactionId).
					Int("records", len(b.records)).
					Msg("record mints of failed batch")
			}
			return nil, err
		}
	}
	if err := s.insert(ctx, b.records); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("transaction", transactionId).
		Int64("player", playerId).
		Int("requests", len(requests)).
		Int("chainTransactions", len(b.hashes)).
		Msg("mint submitted")

	if len(b.hashes) == 0 {
		return nil, nil
	}
	if err := s.confirmer.SaveChainTransactions(ctx, transactionId, b.hashes); err != nil {
		return nil, err
	}
	players := []core.AffectedPlayer{{PlayerId: playerId, WalletAddress: walletAddress}}
	return s.confirmer.PollChainTransactions(transactionId, b.hashes, players), nil
}

func (s *Service) mintOne(ctx context.Context, b *batch, req core.MintRequest) error {
	item, err := s.catalog.GetContent(ctx, req.ContentId)
	if err != nil {
		return errors.Wrapf(err, "load content %s", req.ContentId)
	}
	if item == nil {
		s.log.Warn().Str("content", req.ContentId).Msg("content not in catalog, minting without metadata")
	}
	fingerprint, err := utils.Fingerprint(item)
	if err != nil {
		return err
	}
	metadata := tokenMetadata(req.ContentId, item)
	destinations := []core.TokenDestination{{Address: b.wallet, Amount: req.Amount}}

	existing := b.latest[req.ContentId]
	if existing == nil {
		template, err := s.chain.CreateTokenTemplate(ctx, b.contract.Id, &core.CreateTokenTemplateRequest{
			TokenMetadata: *metadata,
			Fungible:      req.Fungible,
			Destinations:  destinations,
		})
		if err != nil {
			return errors.Wrapf(err, "create token template for %s", req.ContentId)
		}
		record := core.NewMintRecord(s.clk, b.contract.Name, req.ContentId, template.Id, "", fingerprint)
		b.latest[req.ContentId] = record
		b.records = append(b.records, record)
		b.addHash(template.TransactionHash)
		s.log.Debug().Str("content", req.ContentId).Str("template", template.Id).Msg("token template created")
		return nil
	}

	if fingerprint != "" && fingerprint != existing.MetadataHash {
		if err := s.chain.UpdateTokenTemplateMetadata(ctx, b.contract.Id, existing.TemplateId, metadata); err != nil {
			return errors.Wrapf(err, "update metadata of %s", req.ContentId)
		}
		if err := s.mints.UpdateMetadataHash(ctx, b.contract.Name, req.ContentId, existing.TemplateId, fingerprint); err != nil {
			return err
		}
		s.log.Debug().
			Str("content", req.ContentId).
			Str("template", existing.TemplateId).
			Str("from", existing.MetadataHash).
			Str("to", fingerprint).
			Msg("token template metadata updated")
		existing.MetadataHash = fingerprint
	}

	minted, err := s.chain.MintTokens(ctx, b.contract.Id, existing.TemplateId, destinations)
	if err != nil {
		return errors.Wrapf(err, "mint %s", req.ContentId)
	}
	for _, token := range minted {
		if token.TokenId != "" {
			b.records = append(b.records, core.NewMintRecord(s.clk, b.contract.Name, req.ContentId, existing.TemplateId, token.TokenId, existing.MetadataHash))
		}
		b.addHash(token.TxHash)
	}
	return nil
}

func (s *Service) insert(ctx context.Context, records []*core.MintRecord) error {
	if len(records) == 0 {
		return nil
	}
	outcomes, err := s.mints.InsertMints(ctx, records)
	for i, outcome := range outcomes {
		if outcome == core.InsertOutcomeAlreadyExists {
			s.log.Debug().
				Str("content", records[i].ContentId).
				Str("template", records[i].TemplateId).
				Str("token", records[i].TokenId).
				Msg("mint already recorded")
		}
	}
	return err
}

func (b *batch) addHash(hash string) {
	if hash == "" || b.seen[hash] {
		return
	}
	b.seen[hash] = true
	b.hashes = append(b.hashes, hash)
}

func tokenMetadata(contentId string, item *core.ContentItem) *core.TokenMetadata {
	if item == nil {
		return &core.TokenMetadata{Name: contentId}
	}
	metadata := &core.TokenMetadata{
		Name:        item.Name,
		Description: item.Description,
		ImageUrl:    item.Image,
		ExternalUrl: item.Url,
	}
	if metadata.Name == "" {
		metadata.Name = contentId
	}

	keys := make([]string, 0, len(item.CustomProperties))
	for k := range item.CustomProperties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		metadata.Attributes = append(metadata.Attributes, core.TokenAttribute{
			Name:  k,
			Type:  core.TOKEN_ATTRIBUTE_TYPE_PROPERTY,
			Value: item.CustomProperties[k],
		})
	}
	return metadata
}
