package store

import (
	"context"

	"github.com/DomeLiquid/federation/core"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Store) TryInsertTransaction(ctx context.Context, record *core.TransactionRecord) (core.InsertOutcome, error) {
	outcome := core.InsertOutcomeInserted
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// an expired record no longer holds its id even if the sweeper hasn't run yet
		if _, err := s.purgeExpired(tx.Where("id = ?", record.Id)); err != nil {
			return err
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(newTransactionRow(record))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			outcome = core.InsertOutcomeAlreadyExists
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "insert transaction %s", record.Id)
	}
	return outcome, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*core.TransactionRecord, error) {
	var row transactionRow
	err := s.db.WithContext(ctx).
		Where("id = ? AND expire_at > ?", id, s.clk.Now().UnixNano()).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(core.ErrTransactionNotFound, id)
		}
		return nil, errors.Wrapf(err, "get transaction %s", id)
	}
	return row.record(), nil
}

func (s *Store) SaveChainTransactions(ctx context.Context, id string, chainTransactions []string, state core.TransactionState) error {
	return s.updateTransaction(ctx, id, map[string]any{
		"chain_transactions": StringList(chainTransactions),
		"state":              int(state),
	})
}

func (s *Store) SaveTransactionState(ctx context.Context, id string, state core.TransactionState) error {
	return s.updateTransaction(ctx, id, map[string]any{
		"state": int(state),
	})
}

func (s *Store) updateTransaction(ctx context.Context, id string, updates map[string]any) error {
	now := s.clk.Now().UnixNano()
	updates["updated_at"] = now
	result := s.db.WithContext(ctx).
		Model(&transactionRow{}).
		Where("id = ? AND expire_at > ?", id, now).
		Updates(updates)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "update transaction %s", id)
	}
	if result.RowsAffected == 0 {
		return errors.Wrap(core.ErrTransactionNotFound, id)
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&transactionRow{}).Error
	return errors.Wrapf(err, "delete transaction %s", id)
}

// PurgeExpired deletes every transaction record whose ExpireAt has passed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	return s.purgeExpired(s.db.WithContext(ctx))
}

func (s *Store) purgeExpired(db *gorm.DB) (int64, error) {
	result := db.Where("expire_at <= ?", s.clk.Now().UnixNano()).Delete(&transactionRow{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "purge expired transactions")
	}
	return result.RowsAffected, nil
}
