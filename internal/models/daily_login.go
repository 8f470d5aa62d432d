package models

import (
	"time"
)

// DailyLoginReset records that a login bonus was granted to a user on a
// given calendar day. The composite unique index on (user_id, reset_date)
// is what makes the daily grant idempotent: a second grant attempt for the
// same day fails the insert instead of paying twice.
type DailyLoginReset struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_user_reset_date" json:"user_id"`
	User           *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ResetDate      time.Time `gorm:"not null;uniqueIndex:idx_user_reset_date" json:"reset_date"`
	CreditsAwarded int64     `gorm:"not null" json:"credits_awarded"`
	StreakDay      int       `gorm:"not null" json:"streak_day"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName specifies the table name for DailyLoginReset model
func (DailyLoginReset) TableName() string {
	return "daily_login_resets"
}
