package contract

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/DomeLiquid/federation/config"
	"github.com/DomeLiquid/federation/core"
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
)

// Resolver finds or creates the contract all content is minted on and
// caches it until Invalidate is called.
type Resolver struct {
	chain    core.ChainService
	settings *config.Provider
	clk      clock.Clock
	log      core.Log

	mu         sync.Mutex
	cached     atomic.Pointer[core.Contract]
	generation atomic.Uint64
}

func NewResolver(chain core.ChainService, settings *config.Provider, clk clock.Clock, log core.Log) *Resolver {
	r := &Resolver{
		chain:    chain,
		settings: settings,
		clk:      clk,
		log:      log,
	}
	settings.Subscribe(func(*config.Config) { r.Invalidate() })
	return r
}

// Invalidate drops the cached contract. A resolution already running
// finishes but its result is not cached.
func (r *Resolver) Invalidate() {
	r.generation.Add(1)
	r.cached.Store(nil)
}

func (r *Resolver) GetOrCreateDefaultContract(ctx context.Context) (*core.Contract, error) {
	if contract := r.cached.Load(); contract != nil {
		return contract, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if contract := r.cached.Load(); contract != nil {
		return contract, nil
	}

	generation := r.generation.Load()
	contract, err := r.resolve(ctx, r.settings.Current())
	if err != nil {
		return nil, err
	}
	if r.generation.Load() == generation {
		r.cached.Store(contract)
	}
	return contract, nil
}

func (r *Resolver) resolve(ctx context.Context, cfg *config.Config) (*core.Contract, error) {
	chain, err := cfg.ParseChain()
	if err != nil {
		return nil, err
	}

	contract, err := r.find(ctx, cfg.ContractName, "")
	if err != nil {
		return nil, err
	}
	if contract != nil && contract.Confirmed {
		return contract, nil
	}

	if contract == nil {
		contract, err = r.chain.CreateContract(ctx, &core.CreateContractRequest{
			Chain:       chain,
			Name:        cfg.ContractName,
			Description: cfg.ContractDescription,
			ImageUrl:    cfg.ContractImageUrl,
			ExternalUrl: cfg.ContractExternalUrl,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "create contract %s", cfg.ContractName)
		}
		r.log.Info().
			Str("contract", contract.Name).
			Str("id", contract.Id).
			Str("chain", string(chain)).
			Msg("contract created")
		if contract.Confirmed {
			return contract, nil
		}
	}

	return r.waitConfirmed(ctx, cfg, contract)
}

func (r *Resolver) find(ctx context.Context, name, id string) (*core.Contract, error) {
	contracts, err := r.chain.ListContracts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list contracts")
	}
	for _, contract := range contracts {
		if id != "" && contract.Id == id {
			return contract, nil
		}
		if id == "" && contract.Name == name {
			return contract, nil
		}
	}
	return nil, nil
}

func (r *Resolver) waitConfirmed(ctx context.Context, cfg *config.Config, contract *core.Contract) (*core.Contract, error) {
	timeout := r.clk.Timer(cfg.ContractConfirmTimeout)
	defer timeout.Stop()
	ticker := r.clk.Ticker(cfg.ContractPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout.C:
			return nil, errors.Wrapf(core.ErrContractNotConfirmed, "contract %s after %s", contract.Id, cfg.ContractConfirmTimeout)
		case <-ticker.C:
		}

		latest, err := r.find(ctx, contract.Name, contract.Id)
		if err != nil {
			r.log.Warn().Err(err).Str("id", contract.Id).Msg("poll contract")
			continue
		}
		if latest != nil && latest.Confirmed {
			r.log.Info().Str("contract", latest.Name).Str("address", latest.Address).Msg("contract confirmed")
			return latest, nil
		}
	}
}
