package services

import (
	"context"
	"fmt"
	"log"

	"talktime/internal/models"
	"talktime/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerService is the single write path for wallets. Every balance
// mutation is atomic with respect to concurrent callers on the same
// wallet and produces exactly one Transaction row.
type LedgerService struct {
	repo *repository.Repository
}

func NewLedgerService(repo *repository.Repository) *LedgerService {
	return &LedgerService{repo: repo}
}

// Reserve debits the full amount or nothing. A shortfall returns
// repository.ErrInsufficientCoins with the wallet untouched.
func (s *LedgerService) Reserve(ctx context.Context, userID uint, coins int64, callID *uuid.UUID) (*models.Transaction, error) {
	if coins <= 0 {
		return nil, fmt.Errorf("reserve amount must be positive")
	}
	return s.repo.DebitWallet(ctx, userID, coins, models.TransactionTypeSpend, callID)
}

// Settle applies a signed coin delta against a wallet. Negative deltas
// are debits guarded by the balance check; positive deltas are credits.
func (s *LedgerService) Settle(ctx context.Context, userID uint, deltaCoins int64, txType models.TransactionType, callID *uuid.UUID) (*models.Transaction, error) {
	if deltaCoins < 0 {
		return s.repo.DebitWallet(ctx, userID, -deltaCoins, txType, callID)
	}
	return s.repo.CreditWallet(ctx, userID, deltaCoins, decimal.Zero, txType, callID)
}

// Credit adds coins and/or withdrawable money to a listener's wallet.
func (s *LedgerService) Credit(ctx context.Context, listenerID uint, coins int64, money decimal.Decimal, callID *uuid.UUID) (*models.Transaction, error) {
	return s.repo.CreditWallet(ctx, listenerID, coins, money, models.TransactionTypeEarn, callID)
}

// Refund returns previously reserved coins to a caller. Compensation
// path for a Start that reserved funds and then failed a later step.
// The refund row references the same call as the reservation it reverses,
// so the call's coin trail nets to zero.
func (s *LedgerService) Refund(ctx context.Context, userID uint, coins int64, callID *uuid.UUID) (*models.Transaction, error) {
	log.Printf("[Ledger] Refunding %d coins to user %d", coins, userID)
	return s.repo.CreditWallet(ctx, userID, coins, decimal.Zero, models.TransactionTypeRefund, callID)
}

// Balance returns the current wallet snapshot for a user.
func (s *LedgerService) Balance(ctx context.Context, userID uint) (*models.Wallet, error) {
	return s.repo.GetOrCreateWallet(ctx, userID)
}

// Transactions returns a page of the user's audit log.
func (s *LedgerService) Transactions(ctx context.Context, userID uint, limit, offset int) ([]models.Transaction, int64, error) {
	return s.repo.GetTransactions(ctx, userID, limit, offset)
}
