package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blockforge/internal/models"
)

// LedgerService owns the per-user credit balance and the append-only
// transaction log. Every balance change goes through Credit or Debit (or
// their Tx variants when composed into a larger atomic unit), so the
// running balance and the log can never diverge.
type LedgerService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewLedgerService(db *gorm.DB, logger *zap.Logger) *LedgerService {
	return &LedgerService{db: db, logger: logger}
}

// Credit adds amount to the user's balance and appends an earn entry.
// Returns the new balance.
func (s *LedgerService) Credit(ctx context.Context, userID uint, amount int64, reason string, taskID *uuid.UUID) (int64, error) {
	var newBalance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		newBalance, err = s.CreditTx(tx, userID, amount, reason, taskID)
		return err
	})
	return newBalance, err
}

// Debit removes amount from the user's balance and appends a spend entry.
// Fails closed with ErrInsufficientFunds when the balance is too low; no
// mutation is left behind in that case.
func (s *LedgerService) Debit(ctx context.Context, userID uint, amount int64, reason string, taskID *uuid.UUID) (int64, error) {
	var newBalance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		newBalance, err = s.DebitTx(tx, userID, amount, reason, taskID)
		return err
	})
	return newBalance, err
}

// CreditTx is the in-transaction form of Credit, for callers that need the
// grant to be atomic with their own writes (charge flags, award rows).
func (s *LedgerService) CreditTx(tx *gorm.DB, userID uint, amount int64, reason string, taskID *uuid.UUID) (int64, error) {
	if amount <= 0 {
		return 0, ErrNonPositiveAmount
	}

	user, err := lockUser(tx, userID)
	if err != nil {
		return 0, err
	}

	newBalance := user.CreditsBalance + amount
	if err := tx.Model(&models.User{}).Where("id = ?", userID).
		Update("credits_balance", newBalance).Error; err != nil {
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}

	entry := models.CreditTransaction{
		UserID: userID,
		Amount: amount,
		Type:   models.TransactionTypeEarn,
		Reason: reason,
		TaskID: taskID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return 0, fmt.Errorf("failed to write ledger entry: %w", err)
	}

	s.logger.Info("credits granted",
		zap.Uint("user_id", userID),
		zap.Int64("amount", amount),
		zap.String("reason", reason),
		zap.Int64("balance", newBalance),
	)
	return newBalance, nil
}

// DebitTx is the in-transaction form of Debit.
func (s *LedgerService) DebitTx(tx *gorm.DB, userID uint, amount int64, reason string, taskID *uuid.UUID) (int64, error) {
	if amount <= 0 {
		return 0, ErrNonPositiveAmount
	}

	user, err := lockUser(tx, userID)
	if err != nil {
		return 0, err
	}

	if user.CreditsBalance < amount {
		return 0, ErrInsufficientFunds
	}

	newBalance := user.CreditsBalance - amount
	if err := tx.Model(&models.User{}).Where("id = ?", userID).
		Update("credits_balance", newBalance).Error; err != nil {
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}

	entry := models.CreditTransaction{
		UserID: userID,
		Amount: -amount,
		Type:   models.TransactionTypeSpend,
		Reason: reason,
		TaskID: taskID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return 0, fmt.Errorf("failed to write ledger entry: %w", err)
	}

	s.logger.Info("credits spent",
		zap.Uint("user_id", userID),
		zap.Int64("amount", amount),
		zap.String("reason", reason),
		zap.Int64("balance", newBalance),
	)
	return newBalance, nil
}

// CanAfford answers "could this user pay cost right now". It is advisory
// only: the balance may change between this read and a later debit, so the
// authoritative check stays inside DebitTx.
func (s *LedgerService) CanAfford(ctx context.Context, userID uint, cost int64) (bool, error) {
	if cost <= 0 {
		return true, nil
	}
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= cost, nil
}

// Balance returns the user's current balance.
func (s *LedgerService) Balance(ctx context.Context, userID uint) (int64, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return user.CreditsBalance, nil
}

// Transactions returns the user's most recent ledger entries.
func (s *LedgerService) Transactions(ctx context.Context, userID uint, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var entries []models.CreditTransaction
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// lockUser loads the user row under a row-level write lock so concurrent
// ledger mutations for the same user serialize at the store.
func lockUser(tx *gorm.DB, userID uint) (*models.User, error) {
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
