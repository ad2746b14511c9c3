package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrInsufficientCoins is returned when a debit would drive a wallet
	// balance below zero. The debit is rejected whole; nothing is applied.
	ErrInsufficientCoins = errors.New("insufficient coins")

	// ErrCallAlreadyOngoing is returned when creating a call for a user
	// who is already a party to an ongoing call.
	ErrCallAlreadyOngoing = errors.New("user already has an ongoing call")

	// ErrCallNotFound is returned when a call id does not exist.
	ErrCallNotFound = errors.New("call not found")

	// ErrWalletNotFound is returned when a user has no wallet row.
	ErrWalletNotFound = errors.New("wallet not found")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Transaction runs fn inside a single database transaction. The repository
// passed to fn routes every call through the transaction handle, so a
// multi-row unit (reserve + call creation, claim + debit + credit) commits
// or rolls back as a whole.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}
