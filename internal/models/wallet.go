package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypePurchase      TransactionType = "purchase"
	TransactionTypeSpend         TransactionType = "spend"
	TransactionTypeEarn          TransactionType = "earn"
	TransactionTypeRefund        TransactionType = "refund"
	TransactionTypeWithdraw      TransactionType = "withdraw"
	TransactionTypeBonus         TransactionType = "bonus"
	TransactionTypeReferralBonus TransactionType = "referral_bonus"
)

// Wallet holds a user's prepaid coin balance and withdrawable earnings.
// balance_coins never goes negative; every mutation goes through the
// ledger and produces exactly one Transaction row.
type Wallet struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	UserID            uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	BalanceCoins      int64           `gorm:"not null;default:0" json:"balance_coins"`
	WithdrawableMoney decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"withdrawable_money"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Wallet model
func (Wallet) TableName() string {
	return "wallets"
}

// Transaction is an immutable audit record for a wallet mutation.
// Created, never updated or deleted.
type Transaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	WalletID    uint            `gorm:"not null;index" json:"wallet_id"`
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	Type        TransactionType `gorm:"size:50;not null;index" json:"type"`
	CoinsChange int64           `gorm:"not null;default:0" json:"coins_change"`
	MoneyChange decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"money_change"`
	CallID      *uuid.UUID      `gorm:"type:uuid;index" json:"call_id,omitempty"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for Transaction model
func (Transaction) TableName() string {
	return "transactions"
}
