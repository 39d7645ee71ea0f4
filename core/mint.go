package core

import (
	"context"

	"github.com/facebookgo/clock"
)

type (
	MintStore interface {
		// LookupLatest returns the most recently inserted record per content id.
		// Content ids without a record are omitted.
		LookupLatest(ctx context.Context, contractName string, contentIds []string) (map[string]*MintRecord, error)
		// LookupByTokens maps token ids to the content id they were minted for.
		// An id with no token row falls back to a template row with that id.
		LookupByTokens(ctx context.Context, contractName string, tokenIds []string) (map[string]string, error)
		// InsertMints inserts row by row. A duplicate row is reported as
		// InsertOutcomeAlreadyExists, never as an error.
		InsertMints(ctx context.Context, records []*MintRecord) ([]InsertOutcome, error)
		UpdateMetadataHash(ctx context.Context, contractName, contentId, templateId, metadataHash string) error
	}

	MintRecord struct {
		ContractName string `json:"contractName"`
		ContentId    string `json:"contentId"`
		TemplateId   string `json:"templateId"`
		TokenId      string `json:"tokenId,omitempty"`
		MetadataHash string `json:"metadataHash"`

		CreatedAt int64 `json:"createdAt"`
	}

	MintRequest struct {
		ContentId string `json:"contentId"`
		Amount    uint32 `json:"amount"`
		Fungible  bool   `json:"fungible"`
	}

	InsertOutcome uint8
)

const (
	InsertOutcomeInserted InsertOutcome = iota + 1
	InsertOutcomeAlreadyExists
)

func (o InsertOutcome) String() string {
	switch o {
	case InsertOutcomeInserted:
		return "inserted"
	case InsertOutcomeAlreadyExists:
		return "already exists"
	default:
		return "unknown"
	}
}

func NewMintRecord(clk clock.Clock, contractName, contentId, templateId, tokenId, metadataHash string) *MintRecord {
	return &MintRecord{
		ContractName: contractName,
		ContentId:    contentId,
		TemplateId:   templateId,
		TokenId:      tokenId,
		MetadataHash: metadataHash,
		CreatedAt:    clk.Now().UnixNano(),
	}
}

func (r MintRequest) Valid() bool {
	return r.ContentId != "" && r.Amount > 0
}
