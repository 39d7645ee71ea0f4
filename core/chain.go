package core

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type (
	// ChainService is the remote NFT API. Reads may lag writes for a while.
	ChainService interface {
		CreateContract(ctx context.Context, req *CreateContractRequest) (*Contract, error)
		ListContracts(ctx context.Context) ([]*Contract, error)
		CreateTokenTemplate(ctx context.Context, contractId string, req *CreateTokenTemplateRequest) (*TokenTemplate, error)
		UpdateTokenTemplateMetadata(ctx context.Context, contractId, templateId string, metadata *TokenMetadata) error
		MintTokens(ctx context.Context, contractId, templateId string, destinations []TokenDestination) ([]MintedToken, error)
		GetTransactionStatus(ctx context.Context, hash string) (TransactionStatus, error)
		GetWalletTokenBalances(ctx context.Context, walletAddress string) ([]*WalletToken, error)
		// Transfer moves a token between wallets and returns the transaction hash.
		Transfer(ctx context.Context, req *TransferRequest) (string, error)

		GetWallet(ctx context.Context, walletAddress string) (*Wallet, error)
		GetWalletsByIdentifier(ctx context.Context, identifier string) ([]*Wallet, error)
		CreateWallet(ctx context.Context, req *CreateWalletRequest) (*Wallet, error)
	}

	Contract struct {
		Id          string `json:"id"`
		Name        string `json:"name"`
		Chain       Chain  `json:"chain"`
		Address     string `json:"address"`
		Description string `json:"description"`
		Confirmed   bool   `json:"confirmed"`
	}

	CreateContractRequest struct {
		Chain       Chain  `json:"chain"`
		Name        string `json:"name"`
		Description string `json:"description"`
		ImageUrl    string `json:"imageUrl"`
		ExternalUrl string `json:"externalUrl"`
	}

	TokenMetadata struct {
		Name        string           `json:"name"`
		Description string           `json:"description"`
		ImageUrl    string           `json:"imageUrl"`
		ExternalUrl string           `json:"externalUrl"`
		Attributes  []TokenAttribute `json:"attributes"`
	}

	TokenAttribute struct {
		Name  string `json:"name"`
		Type  string `json:"type"`
		Value string `json:"value"`
	}

	TokenDestination struct {
		Address string `json:"address"`
		Amount  uint32 `json:"amount"`
	}

	CreateTokenTemplateRequest struct {
		TokenMetadata
		Fungible     bool               `json:"fungible"`
		Destinations []TokenDestination `json:"destinations"`
	}

	TransferRequest struct {
		Pincode      string `json:"pincode"`
		FromAddress  string `json:"fromAddress"`
		ToAddress    string `json:"toAddress"`
		TokenAddress string `json:"tokenAddress"`
		TokenId      string `json:"tokenId"`
		Amount       uint32 `json:"amount"`
	}

	TokenTemplate struct {
		Id              string `json:"id"`
		TransactionHash string `json:"transactionHash"`
	}

	MintedToken struct {
		TokenId string `json:"tokenId"`
		TxHash  string `json:"txHash"`
	}

	WalletToken struct {
		Id          string           `json:"id"`
		Name        string           `json:"name"`
		Description string           `json:"description"`
		ImageUrl    string           `json:"imageUrl"`
		Url         string           `json:"url"`
		Fungible    bool             `json:"fungible"`
		Balance     decimal.Decimal  `json:"balance"`
		Attributes  []TokenAttribute `json:"attributes"`
	}

	Wallet struct {
		Id         string `json:"id"`
		Address    string `json:"address"`
		Identifier string `json:"identifier"`
		Chain      Chain  `json:"chain"`
	}

	CreateWalletRequest struct {
		Chain       Chain  `json:"chain"`
		Identifier  string `json:"identifier"`
		Description string `json:"description"`
		Pincode     string `json:"pincode"`
	}

	TransactionStatus string

	Chain string
)

const (
	TransactionStatusSucceeded TransactionStatus = "SUCCEEDED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusUnknown   TransactionStatus = "UNKNOWN"
)

const (
	ChainMatic     Chain = "MATIC"
	ChainEthereum  Chain = "ETHEREUM"
	ChainAvalanche Chain = "AVAC"
	ChainBsc       Chain = "BSC"
	ChainArbitrum  Chain = "ARBITRUM"
	ChainBase      Chain = "BASE"
	ChainOptimism  Chain = "OPTIMISM"
	ChainImx       Chain = "IMX"
)

const TOKEN_ATTRIBUTE_TYPE_PROPERTY = "property"

var supportedChains = []Chain{
	ChainMatic,
	ChainEthereum,
	ChainAvalanche,
	ChainBsc,
	ChainArbitrum,
	ChainBase,
	ChainOptimism,
	ChainImx,
}

func ParseChain(s string) (Chain, error) {
	c := Chain(strings.ToUpper(strings.TrimSpace(s)))
	for _, supported := range supportedChains {
		if c == supported {
			return c, nil
		}
	}
	return "", errors.Wrapf(ErrInvalidChain, "%q is not a valid chain", s)
}

func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusSucceeded || s == TransactionStatusFailed
}

// ContractResolver yields the contract all content is minted on.
type ContractResolver interface {
	GetOrCreateDefaultContract(ctx context.Context) (*Contract, error)
}
