package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"blockforge/internal/models"
)

// ReferralBonuses holds the one-shot bonus amounts paid to a referrer.
type ReferralBonuses struct {
	Signup    int64
	FirstTask int64
}

// ReferralService manages referral codes, relationships and the two
// one-shot referrer bonuses. Each bonus is guarded by a boolean flag on
// the referral row; flag flip and credit grant happen in one transaction,
// with the flip done as a compare-and-set so concurrent triggers cannot
// both pay out.
type ReferralService struct {
	db      *gorm.DB
	logger  *zap.Logger
	ledger  *LedgerService
	bonuses ReferralBonuses
}

func NewReferralService(db *gorm.DB, logger *zap.Logger, ledger *LedgerService, bonuses ReferralBonuses) *ReferralService {
	return &ReferralService{
		db:      db,
		logger:  logger,
		ledger:  ledger,
		bonuses: bonuses,
	}
}

// ReferralSummary aggregates a user's referral activity for the UI.
type ReferralSummary struct {
	Code          string            `json:"code"`
	Referrals     []models.Referral `json:"referrals"`
	TotalReferred int               `json:"total_referred"`
	CreditsEarned int64             `json:"credits_earned"`
}

// GetOrCreateCode returns the user's active referral code, generating one
// on first use.
func (s *ReferralService) GetOrCreateCode(ctx context.Context, userID uint) (*models.ReferralCode, error) {
	var code models.ReferralCode
	result := s.db.WithContext(ctx).Where("user_id = ? AND is_active = ?", userID, true).First(&code)

	if result.Error == gorm.ErrRecordNotFound {
		return s.generateCode(ctx, userID)
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &code, nil
}

func (s *ReferralService) generateCode(ctx context.Context, userID uint) (*models.ReferralCode, error) {
	raw, err := randomCode()
	if err != nil {
		return nil, err
	}

	code := models.ReferralCode{
		UserID:   userID,
		Code:     raw,
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(&code).Error; err != nil {
		return nil, fmt.Errorf("failed to create referral code: %w", err)
	}

	s.logger.Info("referral code generated",
		zap.Uint("user_id", userID),
		zap.String("code", raw),
	)
	return &code, nil
}

// randomCode generates a random 8-character code
func randomCode() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b)[:8], nil
}

// ApplyCode links referredUserID to the code's owner and pays the signup
// bonus. The unique index on referrals.referred_user_id enforces "one
// referrer per user" at the store, so a concurrent double-apply creates
// exactly one relationship.
func (s *ReferralService) ApplyCode(ctx context.Context, referredUserID uint, code string) (*models.Referral, error) {
	var referralCode models.ReferralCode
	if err := s.db.WithContext(ctx).Where("code = ? AND is_active = ?", code, true).First(&referralCode).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrInvalidReferralCode
		}
		return nil, err
	}

	if referralCode.UserID == referredUserID {
		return nil, ErrSelfReferral
	}

	referral := models.Referral{
		ReferrerID:     referralCode.UserID,
		ReferredUserID: referredUserID,
		ReferralCode:   referralCode.Code,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&referral).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrAlreadyReferred
			}
			return fmt.Errorf("failed to create referral: %w", err)
		}

		if err := tx.Model(&models.User{}).Where("id = ?", referredUserID).
			Update("referred_by_id", referralCode.UserID).Error; err != nil {
			return err
		}

		// Signup completed the moment the code is applied.
		if err := s.awardSignupBonusTx(tx, referral.ID); err != nil && err != ErrAlreadyAwarded {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("referral code applied",
		zap.String("code", code),
		zap.Uint("referrer_id", referralCode.UserID),
		zap.Uint("referred_user_id", referredUserID),
	)
	return &referral, nil
}

// AwardSignupBonus pays the referrer's signup bonus for a referral at most
// once. Safe to retrigger; later calls get ErrAlreadyAwarded.
func (s *ReferralService) AwardSignupBonus(ctx context.Context, referralID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.awardSignupBonusTx(tx, referralID)
	})
}

func (s *ReferralService) awardSignupBonusTx(tx *gorm.DB, referralID uint) error {
	var referral models.Referral
	if err := tx.Where("id = ?", referralID).First(&referral).Error; err != nil {
		return err
	}

	// The update's WHERE clause is the idempotency check: zero rows
	// affected means another trigger already flipped the flag.
	res := tx.Model(&models.Referral{}).
		Where("id = ? AND signup_bonus_awarded = ?", referralID, false).
		Update("signup_bonus_awarded", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyAwarded
	}

	_, err := s.ledger.CreditTx(tx, referral.ReferrerID, s.bonuses.Signup, "referral:signup", nil)
	return err
}

// AwardFirstTaskBonus pays the referrer's bonus for the referred user's
// first completed billable task. No-op when the user has no referrer.
func (s *ReferralService) AwardFirstTaskBonus(ctx context.Context, referredUserID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.awardFirstTaskBonusTx(tx, referredUserID)
	})
}

func (s *ReferralService) awardFirstTaskBonusTx(tx *gorm.DB, referredUserID uint) error {
	var referral models.Referral
	if err := tx.Where("referred_user_id = ?", referredUserID).First(&referral).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil // no referrer, nothing to pay
		}
		return err
	}

	res := tx.Model(&models.Referral{}).
		Where("id = ? AND task_bonus_awarded = ?", referral.ID, false).
		Update("task_bonus_awarded", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyAwarded
	}

	if _, err := s.ledger.CreditTx(tx, referral.ReferrerID, s.bonuses.FirstTask, "referral:first_task", nil); err != nil {
		return err
	}

	s.logger.Info("referral first-task bonus paid",
		zap.Uint("referrer_id", referral.ReferrerID),
		zap.Uint("referred_user_id", referredUserID),
	)
	return nil
}

// Summary returns the user's referral rows plus the credits earned from
// referral bonuses, read back from the ledger.
func (s *ReferralService) Summary(ctx context.Context, userID uint) (*ReferralSummary, error) {
	code, err := s.GetOrCreateCode(ctx, userID)
	if err != nil {
		return nil, err
	}

	var referrals []models.Referral
	if err := s.db.WithContext(ctx).Where("referrer_id = ?", userID).
		Preload("ReferredUser").Order("created_at DESC").Find(&referrals).Error; err != nil {
		return nil, err
	}

	var earned int64
	row := s.db.WithContext(ctx).Model(&models.CreditTransaction{}).
		Where("user_id = ? AND reason LIKE ?", userID, "referral:%").
		Select("COALESCE(SUM(amount), 0)").Row()
	if err := row.Scan(&earned); err != nil {
		return nil, err
	}

	return &ReferralSummary{
		Code:          code.Code,
		Referrals:     referrals,
		TotalReferred: len(referrals),
		CreditsEarned: earned,
	}, nil
}
