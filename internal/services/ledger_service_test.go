package services

import (
	"context"
	"errors"
	"testing"

	"talktime/internal/models"
	"talktime/internal/repository"

	"github.com/shopspring/decimal"
)

func TestReserveInsufficientCoinsLeavesWalletUnchanged(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	ts.fundWallet(t, 1, 5)

	_, err := ts.ledger.Reserve(ctx, 1, 10, nil)
	if !errors.Is(err, repository.ErrInsufficientCoins) {
		t.Fatalf("expected ErrInsufficientCoins, got %v", err)
	}

	wallet := ts.walletOf(t, 1)
	if wallet.BalanceCoins != 5 {
		t.Errorf("expected balance 5, got %d", wallet.BalanceCoins)
	}
	if count := ts.transactionCount(t, 1); count != 0 {
		t.Errorf("expected no transactions, got %d", count)
	}
}

func TestReserveDebitsFullAmountAndRecordsTransaction(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	ts.fundWallet(t, 1, 100)

	tx, err := ts.ledger.Reserve(ctx, 1, 10, nil)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	if tx.CoinsChange != -10 {
		t.Errorf("expected coins_change -10, got %d", tx.CoinsChange)
	}
	if tx.Type != models.TransactionTypeSpend {
		t.Errorf("expected spend transaction, got %s", tx.Type)
	}

	wallet := ts.walletOf(t, 1)
	if wallet.BalanceCoins != 90 {
		t.Errorf("expected balance 90, got %d", wallet.BalanceCoins)
	}
	if count := ts.transactionCount(t, 1); count != 1 {
		t.Errorf("expected exactly one transaction, got %d", count)
	}
}

func TestCreditAddsMoneyAndRecordsEarnTransaction(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	ts.fundWallet(t, 2, 0)

	amount := decimal.NewFromFloat(15.00)
	tx, err := ts.ledger.Credit(ctx, 2, 0, amount, nil)
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	if tx.Type != models.TransactionTypeEarn {
		t.Errorf("expected earn transaction, got %s", tx.Type)
	}
	if !tx.MoneyChange.Equal(amount) {
		t.Errorf("expected money_change 15.00, got %s", tx.MoneyChange)
	}

	wallet := ts.walletOf(t, 2)
	if !wallet.WithdrawableMoney.Equal(amount) {
		t.Errorf("expected withdrawable 15.00, got %s", wallet.WithdrawableMoney)
	}
}

func TestRefundRestoresCoinsWithRefundType(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	ts.fundWallet(t, 5, 100)

	reserved, err := ts.ledger.Reserve(ctx, 5, 30, nil)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	refund, err := ts.ledger.Refund(ctx, 5, 30, nil)
	if err != nil {
		t.Fatalf("Refund failed: %v", err)
	}

	if refund.Type != models.TransactionTypeRefund {
		t.Errorf("expected refund transaction, got %s", refund.Type)
	}
	if refund.CoinsChange != 30 {
		t.Errorf("expected coins_change 30, got %d", refund.CoinsChange)
	}
	if reserved.CoinsChange+refund.CoinsChange != 0 {
		t.Errorf("reserve and refund must net to zero, got %d", reserved.CoinsChange+refund.CoinsChange)
	}
	if wallet := ts.walletOf(t, 5); wallet.BalanceCoins != 100 {
		t.Errorf("expected balance restored to 100, got %d", wallet.BalanceCoins)
	}
}

func TestSettleDebitNeverGoesNegative(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	ts.fundWallet(t, 3, 20)

	_, err := ts.ledger.Settle(ctx, 3, -50, models.TransactionTypeSpend, nil)
	if !errors.Is(err, repository.ErrInsufficientCoins) {
		t.Fatalf("expected ErrInsufficientCoins, got %v", err)
	}

	wallet := ts.walletOf(t, 3)
	if wallet.BalanceCoins != 20 {
		t.Errorf("expected balance 20, got %d", wallet.BalanceCoins)
	}
}

func TestSettlePositiveDeltaCredits(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	ts.fundWallet(t, 4, 10)

	if _, err := ts.ledger.Settle(ctx, 4, 40, models.TransactionTypePurchase, nil); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	wallet := ts.walletOf(t, 4)
	if wallet.BalanceCoins != 50 {
		t.Errorf("expected balance 50, got %d", wallet.BalanceCoins)
	}
}
