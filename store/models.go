package store

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/DomeLiquid/federation/core"
	"github.com/DomeLiquid/federation/utils"
	"github.com/pkg/errors"
)

type mintRow struct {
	// derived from the identity columns, so re-inserting the same publication conflicts
	Id           string `gorm:"primaryKey;size:36"`
	ContractName string `gorm:"size:255;not null;index:idx_mint_content,priority:1;index:idx_mint_token,priority:1"`
	ContentId    string `gorm:"size:255;not null;index:idx_mint_content,priority:2"`
	TemplateId   string `gorm:"size:64;not null"`
	TokenId      string `gorm:"size:64;not null;index:idx_mint_token,priority:2"`
	MetadataHash string `gorm:"size:64;not null"`
	CreatedAt    int64  `gorm:"not null;autoCreateTime:false"`
}

func (mintRow) TableName() string {
	return "mint"
}

func newMintRow(r *core.MintRecord) *mintRow {
	return &mintRow{
		Id:           utils.GenUuidFromParts(r.ContractName, r.ContentId, r.TemplateId, r.TokenId),
		ContractName: r.ContractName,
		ContentId:    r.ContentId,
		TemplateId:   r.TemplateId,
		TokenId:      r.TokenId,
		MetadataHash: r.MetadataHash,
		CreatedAt:    r.CreatedAt,
	}
}

func (m *mintRow) record() *core.MintRecord {
	return &core.MintRecord{
		ContractName: m.ContractName,
		ContentId:    m.ContentId,
		TemplateId:   m.TemplateId,
		TokenId:      m.TokenId,
		MetadataHash: m.MetadataHash,
		CreatedAt:    m.CreatedAt,
	}
}

type transactionRow struct {
	Id                string     `gorm:"primaryKey;size:255"`
	PlayerId          int64      `gorm:"not null"`
	OperationName     string     `gorm:"size:128;not null"`
	RequestBody       string     `gorm:"type:text"`
	WalletAddress     string     `gorm:"size:255;not null"`
	ChainTransactions StringList `gorm:"type:text"`
	State             int        `gorm:"not null"`
	ExpireAt          int64      `gorm:"not null;index"`
	CreatedAt         int64      `gorm:"not null;autoCreateTime:false"`
	UpdatedAt         int64      `gorm:"not null;autoUpdateTime:false"`
}

func (transactionRow) TableName() string {
	return "transaction_record"
}

func newTransactionRow(t *core.TransactionRecord) *transactionRow {
	return &transactionRow{
		Id:                t.Id,
		PlayerId:          t.PlayerId,
		OperationName:     t.OperationName,
		RequestBody:       t.RequestBody,
		WalletAddress:     t.WalletAddress,
		ChainTransactions: StringList(t.ChainTransactions),
		State:             int(t.State),
		ExpireAt:          t.ExpireAt,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

func (t *transactionRow) record() *core.TransactionRecord {
	chainTransactions := []string(t.ChainTransactions)
	if chainTransactions == nil {
		chainTransactions = []string{}
	}
	return &core.TransactionRecord{
		Id:                t.Id,
		PlayerId:          t.PlayerId,
		OperationName:     t.OperationName,
		RequestBody:       t.RequestBody,
		WalletAddress:     t.WalletAddress,
		ChainTransactions: chainTransactions,
		State:             core.TransactionState(t.State),
		ExpireAt:          t.ExpireAt,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

// StringList is stored as a JSON array.
type StringList []string

func (j StringList) Value() (driver.Value, error) {
	if j == nil {
		j = StringList{}
	}
	valueString, err := json.Marshal(j)
	return string(valueString), err
}

func (j *StringList) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*j = StringList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.Errorf("unsupported StringList source %T", value)
	}
	if len(raw) == 0 {
		*j = StringList{}
		return nil
	}
	return json.Unmarshal(raw, j)
}
