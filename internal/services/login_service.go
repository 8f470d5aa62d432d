package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"blockforge/internal/models"
)

// LoginService grants the daily login bonus. The unique index on
// daily_login_resets (user_id, reset_date) makes each day's grant
// idempotent regardless of how many sessions start that day.
type LoginService struct {
	db           *gorm.DB
	logger       *zap.Logger
	ledger       *LedgerService
	achievements *AchievementService
	curve        RewardCurve
}

func NewLoginService(db *gorm.DB, logger *zap.Logger, ledger *LedgerService, achievements *AchievementService, curve RewardCurve) *LoginService {
	return &LoginService{
		db:           db,
		logger:       logger,
		ledger:       ledger,
		achievements: achievements,
		curve:        curve,
	}
}

// LoginResult describes the outcome of a daily-login call.
type LoginResult struct {
	CreditsAwarded  int64                `json:"credits_awarded"`
	NewStreak       int                  `json:"new_streak"`
	StreakBroken    bool                 `json:"streak_broken"`
	AlreadyGranted  bool                 `json:"already_granted"`
	NewAchievements []AwardedAchievement `json:"new_achievements,omitempty"`
}

// HandleDailyLogin processes one session start. Same-day re-entry returns
// the already-recorded award without writing anything; a new day inserts
// the reset row, credits the streak bonus and updates the profile counters
// in a single transaction.
func (s *LoginService) HandleDailyLogin(ctx context.Context, userID uint, now time.Time) (*LoginResult, error) {
	today := DayOf(now)

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	streak := AdvanceStreak(user.LastLoginDate, today, user.LoginStreak)
	if streak.SameDay {
		return s.recordedResult(ctx, userID, today, user.LoginStreak)
	}

	credits := s.curve.CreditsFor(streak.Streak)
	result := &LoginResult{
		CreditsAwarded: credits,
		NewStreak:      streak.Streak,
		StreakBroken:   streak.Broken,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reset := models.DailyLoginReset{
			UserID:         userID,
			ResetDate:      today,
			CreditsAwarded: credits,
			StreakDay:      streak.Streak,
		}
		if err := tx.Create(&reset).Error; err != nil {
			if isDuplicateKey(err) {
				// A concurrent session won the insert; nothing else to do
				// here, the outer retry path reports its award.
				return ErrAlreadyAwarded
			}
			return err
		}

		if credits > 0 {
			if _, err := s.ledger.CreditTx(tx, userID, credits, "daily_login", nil); err != nil {
				return err
			}
		}

		return tx.Model(&models.User{}).Where("id = ?", userID).
			Updates(map[string]interface{}{
				"login_streak":            streak.Streak,
				"last_login_date":         today,
				"last_streak_reward_date": today,
				"total_logins":            gorm.Expr("total_logins + 1"),
			}).Error
	})

	if err == ErrAlreadyAwarded {
		return s.recordedResult(ctx, userID, today, streak.Streak)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("daily login bonus granted",
		zap.Uint("user_id", userID),
		zap.Int("streak", streak.Streak),
		zap.Bool("streak_broken", streak.Broken),
		zap.Int64("credits", credits),
	)

	// Login-driven achievements (total logins, streak length) may have
	// just unlocked. Evaluation is idempotent, so failures here only cost
	// a retry on the next login.
	awarded, err := s.achievements.EvaluateAchievements(ctx, userID)
	if err != nil {
		s.logger.Error("achievement evaluation after login failed",
			zap.Uint("user_id", userID),
			zap.Error(err),
		)
	} else {
		result.NewAchievements = awarded
	}

	return result, nil
}

// recordedResult replays the grant already stored for (userID, today).
// Nothing is paid again; CreditsAwarded echoes what the day's first login
// received so callers can render the same message.
func (s *LoginService) recordedResult(ctx context.Context, userID uint, today time.Time, streak int) (*LoginResult, error) {
	result := &LoginResult{
		NewStreak:      streak,
		AlreadyGranted: true,
	}

	var reset models.DailyLoginReset
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND reset_date = ?", userID, today).First(&reset).Error
	if err == nil {
		result.NewStreak = reset.StreakDay
		result.CreditsAwarded = reset.CreditsAwarded
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	return result, nil
}

// History returns the user's recent daily bonus grants.
func (s *LoginService) History(ctx context.Context, userID uint, limit int) ([]models.DailyLoginReset, error) {
	if limit <= 0 || limit > 90 {
		limit = 30
	}
	var resets []models.DailyLoginReset
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("reset_date DESC").Limit(limit).Find(&resets).Error; err != nil {
		return nil, err
	}
	return resets, nil
}
