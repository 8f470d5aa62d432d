package models

import (
	"time"
)

// Achievement requirement types
const (
	RequirementTotalLogins    = "total_logins"
	RequirementLoginStreak    = "login_streak"
	RequirementTasksCompleted = "tasks_completed"
	RequirementReferralsMade  = "referrals_made"
)

// Achievement is a static catalog row describing one unlockable reward
type Achievement struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Slug             string    `gorm:"uniqueIndex;size:50;not null" json:"slug"`
	Name             string    `gorm:"size:100;not null" json:"name"`
	Description      string    `gorm:"type:text" json:"description"`
	Icon             string    `gorm:"size:50" json:"icon"`
	RequirementType  string    `gorm:"size:30;not null" json:"requirement_type"`
	RequirementValue int       `gorm:"not null" json:"requirement_value"`
	CreditReward     int64     `gorm:"not null" json:"credit_reward"`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName specifies the table name for Achievement model
func (Achievement) TableName() string {
	return "achievements"
}

// UserAchievement records that a user earned a specific achievement.
// The composite unique index is the idempotency guard: the insert either
// succeeds exactly once or fails with a duplicate-key error.
type UserAchievement struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	UserID        uint         `gorm:"not null;uniqueIndex:idx_user_achievement" json:"user_id"`
	User          *User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	AchievementID uint         `gorm:"not null;uniqueIndex:idx_user_achievement" json:"achievement_id"`
	Achievement   *Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
	EarnedAt      time.Time    `gorm:"autoCreateTime" json:"earned_at"`
}

// TableName specifies the table name for UserAchievement model
func (UserAchievement) TableName() string {
	return "user_achievements"
}
