package store

import (
	"context"

	"github.com/DomeLiquid/federation/core"
	"github.com/pkg/errors"
	"gorm.io/gorm/clause"
)

const latestMintsQuery = `
SELECT id, contract_name, content_id, template_id, token_id, metadata_hash, created_at FROM (
	SELECT m.*, ROW_NUMBER() OVER (
		PARTITION BY m.content_id
		ORDER BY m.created_at DESC, m.rowid DESC
	) AS rn
	FROM mint m
	WHERE m.contract_name = ? AND m.content_id IN ?
) WHERE rn = 1`

func (s *Store) LookupLatest(ctx context.Context, contractName string, contentIds []string) (map[string]*core.MintRecord, error) {
	result := make(map[string]*core.MintRecord, len(contentIds))
	if len(contentIds) == 0 {
		return result, nil
	}

	var rows []*mintRow
	if err := s.db.WithContext(ctx).Raw(latestMintsQuery, contractName, contentIds).Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "lookup latest mints")
	}
	for _, row := range rows {
		result[row.ContentId] = row.record()
	}
	return result, nil
}

func (s *Store) LookupByTokens(ctx context.Context, contractName string, tokenIds []string) (map[string]string, error) {
	result := make(map[string]string, len(tokenIds))
	if len(tokenIds) == 0 {
		return result, nil
	}

	// template rows have no token id and match by template id, token rows win
	var rows []*mintRow
	err := s.db.WithContext(ctx).
		Where("contract_name = ? AND (token_id IN ? OR (token_id = '' AND template_id IN ?))", contractName, tokenIds, tokenIds).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "lookup mints by token")
	}
	for _, row := range rows {
		if row.TokenId == "" {
			result[row.TemplateId] = row.ContentId
		}
	}
	for _, row := range rows {
		if row.TokenId != "" {
			result[row.TokenId] = row.ContentId
		}
	}
	return result, nil
}

func (s *Store) InsertMints(ctx context.Context, records []*core.MintRecord) ([]core.InsertOutcome, error) {
	outcomes := make([]core.InsertOutcome, 0, len(records))
	for _, record := range records {
		row := newMintRow(record)
		result := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(row)
		if result.Error != nil {
			return outcomes, errors.Wrapf(result.Error, "insert mint %s/%s", record.ContentId, record.TemplateId)
		}
		if result.RowsAffected == 0 {
			outcomes = append(outcomes, core.InsertOutcomeAlreadyExists)
			continue
		}
		outcomes = append(outcomes, core.InsertOutcomeInserted)
	}
	return outcomes, nil
}

func (s *Store) UpdateMetadataHash(ctx context.Context, contractName, contentId, templateId, metadataHash string) error {
	err := s.db.WithContext(ctx).
		Model(&mintRow{}).
		Where("contract_name = ? AND content_id = ? AND template_id = ?", contractName, contentId, templateId).
		Update("metadata_hash", metadataHash).Error
	return errors.Wrap(err, "update metadata hash")
}
