package services

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"blockforge/internal/models"
)

// AchievementService evaluates the achievement catalog against user stats
// and pays each reward at most once. Idempotency comes from the unique
// (user_id, achievement_id) index: the insert is the check, not a
// preceding read.
type AchievementService struct {
	db     *gorm.DB
	logger *zap.Logger
	ledger *LedgerService
}

func NewAchievementService(db *gorm.DB, logger *zap.Logger, ledger *LedgerService) *AchievementService {
	return &AchievementService{db: db, logger: logger, ledger: ledger}
}

// AwardedAchievement is one newly earned achievement with its payout.
type AwardedAchievement struct {
	Achievement    models.Achievement `json:"achievement"`
	CreditsAwarded int64              `json:"credits_awarded"`
}

// userStats are the activity counters achievement requirements run against.
type userStats struct {
	TotalLogins    int
	LoginStreak    int
	TasksCompleted int
	ReferralsMade  int
}

// EvaluateAchievements checks every not-yet-earned achievement for the
// user and awards the satisfied ones. Each award is one transaction:
// unique-guarded UserAchievement insert plus the credit grant. A duplicate
// key means a concurrent evaluation got there first, and the whole award
// rolls back cleanly.
func (s *AchievementService) EvaluateAchievements(ctx context.Context, userID uint) ([]AwardedAchievement, error) {
	stats, err := s.statsFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	var catalog []models.Achievement
	if err := s.db.WithContext(ctx).
		Where("id NOT IN (?)",
			s.db.Model(&models.UserAchievement{}).Select("achievement_id").Where("user_id = ?", userID),
		).Find(&catalog).Error; err != nil {
		return nil, err
	}

	var awarded []AwardedAchievement
	for _, def := range catalog {
		if !satisfied(def, stats) {
			continue
		}

		won, err := s.award(ctx, userID, def)
		if err != nil {
			return awarded, err
		}
		if !won {
			continue
		}
		awarded = append(awarded, AwardedAchievement{
			Achievement:    def,
			CreditsAwarded: def.CreditReward,
		})
	}

	return awarded, nil
}

// award grants one achievement and its credit in a single transaction.
// Returns false when a concurrent evaluation inserted the earned row
// between this evaluation's catalog read and its insert; the whole
// transaction rolls back and nothing is paid.
func (s *AchievementService) award(ctx context.Context, userID uint, def models.Achievement) (bool, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		earned := models.UserAchievement{
			UserID:        userID,
			AchievementID: def.ID,
		}
		if err := tx.Create(&earned).Error; err != nil {
			return err
		}
		_, err := s.ledger.CreditTx(tx, userID, def.CreditReward, "achievement:"+def.Slug, nil)
		return err
	})
	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}

	s.logger.Info("achievement unlocked",
		zap.Uint("user_id", userID),
		zap.String("achievement", def.Slug),
		zap.Int64("reward", def.CreditReward),
	)
	return true, nil
}

// Catalog returns all achievement definitions.
func (s *AchievementService) Catalog(ctx context.Context) ([]models.Achievement, error) {
	var catalog []models.Achievement
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&catalog).Error; err != nil {
		return nil, err
	}
	return catalog, nil
}

// EarnedBy returns the achievements a user has earned.
func (s *AchievementService) EarnedBy(ctx context.Context, userID uint) ([]models.UserAchievement, error) {
	var earned []models.UserAchievement
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Preload("Achievement").Order("earned_at DESC").Find(&earned).Error; err != nil {
		return nil, err
	}
	return earned, nil
}

func (s *AchievementService) statsFor(ctx context.Context, userID uint) (*userStats, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	var referrals int64
	if err := s.db.WithContext(ctx).Model(&models.Referral{}).
		Where("referrer_id = ?", userID).Count(&referrals).Error; err != nil {
		return nil, err
	}

	return &userStats{
		TotalLogins:    user.TotalLogins,
		LoginStreak:    user.LoginStreak,
		TasksCompleted: user.TasksCompleted,
		ReferralsMade:  int(referrals),
	}, nil
}

func satisfied(def models.Achievement, stats *userStats) bool {
	switch def.RequirementType {
	case models.RequirementTotalLogins:
		return stats.TotalLogins >= def.RequirementValue
	case models.RequirementLoginStreak:
		return stats.LoginStreak >= def.RequirementValue
	case models.RequirementTasksCompleted:
		return stats.TasksCompleted >= def.RequirementValue
	case models.RequirementReferralsMade:
		return stats.ReferralsMade >= def.RequirementValue
	default:
		return false
	}
}
