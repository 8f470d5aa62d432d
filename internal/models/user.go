package models

import (
	"time"
)

// User represents a user in the system
type User struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	Email                string     `gorm:"uniqueIndex;not null" json:"email"`
	Username             string     `gorm:"uniqueIndex;not null" json:"username"`
	AvatarURL            *string    `json:"avatar_url,omitempty"`
	CreditsBalance       int64      `gorm:"not null;default:0" json:"credits_balance"`
	LoginStreak          int        `gorm:"default:0" json:"login_streak"`
	LastLoginDate        *time.Time `json:"last_login_date,omitempty"`
	LastStreakRewardDate *time.Time `json:"last_streak_reward_date,omitempty"`
	TotalLogins          int        `gorm:"default:0" json:"total_logins"`
	TasksCompleted       int        `gorm:"default:0" json:"tasks_completed"`
	ReferredByID         *uint      `gorm:"index" json:"referred_by_id,omitempty"`
	ReferredBy           *User      `gorm:"foreignKey:ReferredByID" json:"referred_by,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}
