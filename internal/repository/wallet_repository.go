package repository

import (
	"context"
	"errors"

	"talktime/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GetOrCreateWallet retrieves a user's wallet, creating an empty one on
// first touch.
func (r *Repository) GetOrCreateWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err == nil {
		return &wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	wallet = models.Wallet{
		UserID:            userID,
		BalanceCoins:      0,
		WithdrawableMoney: decimal.Zero,
	}
	if err := r.db.WithContext(ctx).Create(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

// GetWallet retrieves a user's wallet without creating one.
func (r *Repository) GetWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// DebitWallet atomically removes coins from a wallet and records the
// Transaction in the same database transaction. The balance guard in the
// WHERE clause makes the debit fail closed: if the balance cannot cover
// the full amount, nothing is applied and ErrInsufficientCoins is
// returned.
func (r *Repository) DebitWallet(ctx context.Context, userID uint, coins int64, txType models.TransactionType, callID *uuid.UUID) (*models.Transaction, error) {
	var record *models.Transaction

	err := r.Transaction(ctx, func(tx *Repository) error {
		wallet, err := tx.GetOrCreateWallet(ctx, userID)
		if err != nil {
			return err
		}

		result := tx.db.WithContext(ctx).Model(&models.Wallet{}).
			Where("id = ? AND balance_coins >= ?", wallet.ID, coins).
			Update("balance_coins", gorm.Expr("balance_coins - ?", coins))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrInsufficientCoins
		}

		record = &models.Transaction{
			WalletID:    wallet.ID,
			UserID:      userID,
			Type:        txType,
			CoinsChange: -coins,
			MoneyChange: decimal.Zero,
			CallID:      callID,
		}
		return tx.db.WithContext(ctx).Create(record).Error
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// CreditWallet atomically adds coins and/or withdrawable money to a
// wallet and records the Transaction in the same database transaction.
func (r *Repository) CreditWallet(ctx context.Context, userID uint, coins int64, money decimal.Decimal, txType models.TransactionType, callID *uuid.UUID) (*models.Transaction, error) {
	var record *models.Transaction

	err := r.Transaction(ctx, func(tx *Repository) error {
		wallet, err := tx.GetOrCreateWallet(ctx, userID)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"balance_coins":      gorm.Expr("balance_coins + ?", coins),
			"withdrawable_money": gorm.Expr("withdrawable_money + ?", money),
		}
		if err := tx.db.WithContext(ctx).Model(&models.Wallet{}).
			Where("id = ?", wallet.ID).
			Updates(updates).Error; err != nil {
			return err
		}

		record = &models.Transaction{
			WalletID:    wallet.ID,
			UserID:      userID,
			Type:        txType,
			CoinsChange: coins,
			MoneyChange: money,
			CallID:      callID,
		}
		return tx.db.WithContext(ctx).Create(record).Error
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetTransactions retrieves a user's transaction log, newest first.
func (r *Repository) GetTransactions(ctx context.Context, userID uint, limit, offset int) ([]models.Transaction, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var txs []models.Transaction
	err = r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&txs).Error
	if err != nil {
		return nil, 0, err
	}

	return txs, total, nil
}
