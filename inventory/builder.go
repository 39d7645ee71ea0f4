package inventory

import (
	"context"

	"github.com/DomeLiquid/federation/core"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Builder turns the holdings of a wallet into the game's inventory state.
type Builder struct {
	chain     core.ChainService
	contracts core.ContractResolver
	mints     core.MintStore
	log       core.Log
}

func NewBuilder(chain core.ChainService, contracts core.ContractResolver, mints core.MintStore, log core.Log) *Builder {
	return &Builder{
		chain:     chain,
		contracts: contracts,
		mints:     mints,
		log:       log,
	}
}

func (b *Builder) State(ctx context.Context, walletAddress string) (*core.InventoryState, error) {
	contract, err := b.contracts.GetOrCreateDefaultContract(ctx)
	if err != nil {
		return nil, err
	}
	tokens, err := b.chain.GetWalletTokenBalances(ctx, walletAddress)
	if err != nil {
		return nil, errors.Wrapf(err, "wallet %s balances", walletAddress)
	}

	var tokenIds []string
	for _, token := range tokens {
		if !token.Fungible {
			tokenIds = append(tokenIds, token.Id)
		}
	}
	contentIds := map[string]string{}
	if len(tokenIds) > 0 {
		contentIds, err = b.mints.LookupByTokens(ctx, contract.Name, tokenIds)
		if err != nil {
			return nil, err
		}
	}

	currencies := map[string]decimal.Decimal{}
	state := core.NewInventoryState()
	for _, token := range tokens {
		if token.Name == "" {
			b.log.Warn().Str("wallet", walletAddress).Str("token", token.Id).Msg("token without name skipped")
			continue
		}
		if token.Fungible {
			currencies[token.Name] = currencies[token.Name].Add(token.Balance)
			continue
		}

		key, ok := contentIds[token.Id]
		if !ok {
			key = token.Name
		}
		state.Items[key] = append(state.Items[key], &core.ItemProxy{
			ProxyId:    token.Id,
			Properties: properties(token),
		})
	}
	for name, amount := range currencies {
		state.Currencies[name] = amount.IntPart()
	}
	return state, nil
}

func properties(token *core.WalletToken) []*core.ItemProperty {
	var props []*core.ItemProperty
	add := func(name, value string) {
		if value != "" {
			props = append(props, &core.ItemProperty{Name: name, Value: value})
		}
	}
	add("Name", token.Name)
	add("Description", token.Description)
	add("Image", token.ImageUrl)
	add("Url", token.Url)
	for _, attr := range token.Attributes {
		props = append(props, &core.ItemProperty{Name: attr.Name, Value: attr.Value})
	}
	return props
}
