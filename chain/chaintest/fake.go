// Package chaintest provides an in-memory chain service for tests.
package chaintest

import (
	"context"
	"fmt"
	"sync"

	"github.com/DomeLiquid/federation/core"
)

// Fake records every call. A contract it creates shows up confirmed on the
// ConfirmAfter-th ListContracts call after creation.
type Fake struct {
	mu sync.Mutex

	Contracts    []*core.Contract
	ConfirmAfter int

	// Statuses holds the answers per hash; the last one repeats.
	// Unknown hashes succeed.
	Statuses     map[string][]core.TransactionStatus
	StatusErrors map[string]error

	Tokens  map[string][]*core.WalletToken
	Wallets []*core.Wallet

	// Errs forces a method, by name, to fail.
	Errs map[string]error

	calls         []string
	statusQueries []string
	transfers     []core.TransferRequest
	metadata      map[string][]*core.TokenMetadata
	pending       map[string]int
	nextId        int
}

func NewFake() *Fake {
	return &Fake{
		Statuses:     map[string][]core.TransactionStatus{},
		StatusErrors: map[string]error{},
		Tokens:       map[string][]*core.WalletToken{},
		Errs:         map[string]error{},
		metadata:     map[string][]*core.TokenMetadata{},
		pending:      map[string]int{},
	}
}

func (f *Fake) record(name string) error {
	f.calls = append(f.calls, name)
	return f.Errs[name]
}

func (f *Fake) id(prefix string) string {
	f.nextId++
	return fmt.Sprintf("%s-%d", prefix, f.nextId)
}

// Calls lists method names in call order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

// StatusQueries lists the hashes passed to GetTransactionStatus in order.
func (f *Fake) StatusQueries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.statusQueries...)
}

// Metadata returns the metadata updates sent for a template.
func (f *Fake) Metadata(templateId string) []*core.TokenMetadata {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metadata[templateId]
}

func (f *Fake) CreateContract(_ context.Context, req *core.CreateContractRequest) (*core.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateContract"); err != nil {
		return nil, err
	}
	contract := &core.Contract{
		Id:          f.id("contract"),
		Name:        req.Name,
		Chain:       req.Chain,
		Description: req.Description,
		Confirmed:   f.ConfirmAfter == 0,
	}
	f.pending[contract.Id] = f.ConfirmAfter
	f.Contracts = append(f.Contracts, contract)
	c := *contract
	return &c, nil
}

func (f *Fake) ListContracts(context.Context) ([]*core.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListContracts"); err != nil {
		return nil, err
	}
	out := make([]*core.Contract, 0, len(f.Contracts))
	for _, contract := range f.Contracts {
		if n, ok := f.pending[contract.Id]; ok && !contract.Confirmed {
			f.pending[contract.Id] = n - 1
			if n <= 1 {
				contract.Confirmed = true
				contract.Address = "0x" + contract.Id
			}
		}
		c := *contract
		out = append(out, &c)
	}
	return out, nil
}

func (f *Fake) CreateTokenTemplate(_ context.Context, contractId string, req *core.CreateTokenTemplateRequest) (*core.TokenTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateTokenTemplate"); err != nil {
		return nil, err
	}
	id := f.id("template")
	metadata := req.TokenMetadata
	f.metadata[id] = append(f.metadata[id], &metadata)
	return &core.TokenTemplate{Id: id, TransactionHash: "0x" + id}, nil
}

func (f *Fake) UpdateTokenTemplateMetadata(_ context.Context, _, templateId string, metadata *core.TokenMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateTokenTemplateMetadata"); err != nil {
		return err
	}
	f.metadata[templateId] = append(f.metadata[templateId], metadata)
	return nil
}

func (f *Fake) MintTokens(_ context.Context, _, templateId string, destinations []core.TokenDestination) ([]core.MintedToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("MintTokens"); err != nil {
		return nil, err
	}
	minted := make([]core.MintedToken, 0, len(destinations))
	for range destinations {
		id := f.id("token")
		minted = append(minted, core.MintedToken{TokenId: id, TxHash: "0x" + id})
	}
	return minted, nil
}

func (f *Fake) GetTransactionStatus(_ context.Context, hash string) (core.TransactionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "GetTransactionStatus")
	f.statusQueries = append(f.statusQueries, hash)
	if err := f.StatusErrors[hash]; err != nil {
		return core.TransactionStatusUnknown, err
	}
	statuses, ok := f.Statuses[hash]
	if !ok || len(statuses) == 0 {
		return core.TransactionStatusSucceeded, nil
	}
	status := statuses[0]
	if len(statuses) > 1 {
		f.Statuses[hash] = statuses[1:]
	}
	return status, nil
}

func (f *Fake) GetWalletTokenBalances(_ context.Context, walletAddress string) ([]*core.WalletToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetWalletTokenBalances"); err != nil {
		return nil, err
	}
	return f.Tokens[walletAddress], nil
}

// Transfer moves the token between the wallets in Tokens.
func (f *Fake) Transfer(_ context.Context, req *core.TransferRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Transfer"); err != nil {
		return "", err
	}
	f.transfers = append(f.transfers, *req)

	held := f.Tokens[req.FromAddress]
	for i, token := range held {
		if token.Id == req.TokenId {
			f.Tokens[req.FromAddress] = append(held[:i:i], held[i+1:]...)
			f.Tokens[req.ToAddress] = append(f.Tokens[req.ToAddress], token)
			break
		}
	}
	return "0x" + f.id("transfer"), nil
}

// Transfers lists the transfer requests in call order.
func (f *Fake) Transfers() []core.TransferRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.TransferRequest(nil), f.transfers...)
}

func (f *Fake) GetWallet(_ context.Context, walletAddress string) (*core.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetWallet"); err != nil {
		return nil, err
	}
	for _, w := range f.Wallets {
		if w.Address == walletAddress {
			c := *w
			return &c, nil
		}
	}
	return nil, core.ErrWalletNotFound
}

func (f *Fake) GetWalletsByIdentifier(_ context.Context, identifier string) ([]*core.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetWalletsByIdentifier"); err != nil {
		return nil, err
	}
	var out []*core.Wallet
	for _, w := range f.Wallets {
		if w.Identifier == identifier {
			c := *w
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *Fake) CreateWallet(_ context.Context, req *core.CreateWalletRequest) (*core.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateWallet"); err != nil {
		return nil, err
	}
	id := f.id("wallet")
	wallet := &core.Wallet{
		Id:         id,
		Address:    "0x" + id,
		Identifier: req.Identifier,
		Chain:      req.Chain,
	}
	f.Wallets = append(f.Wallets, wallet)
	c := *wallet
	return &c, nil
}
