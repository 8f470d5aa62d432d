package models

import (
	"time"
)

// ReferralCode represents a unique referral code for a user
type ReferralCode struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Code      string    `gorm:"uniqueIndex;size:20;not null" json:"code"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (ReferralCode) TableName() string {
	return "referral_codes"
}

// Referral represents a referral relationship between users. The two
// bonus flags flip at most once each; every flip is paired with exactly
// one CreditTransaction in the same database transaction.
type Referral struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	ReferrerID         uint      `gorm:"not null;index" json:"referrer_id"`
	Referrer           *User     `gorm:"foreignKey:ReferrerID" json:"referrer,omitempty"`
	ReferredUserID     uint      `gorm:"not null;uniqueIndex" json:"referred_user_id"`
	ReferredUser       *User     `gorm:"foreignKey:ReferredUserID" json:"referred_user,omitempty"`
	ReferralCode       string    `gorm:"size:20;not null" json:"referral_code"`
	SignupBonusAwarded bool      `gorm:"not null;default:false" json:"signup_bonus_awarded"`
	TaskBonusAwarded   bool      `gorm:"not null;default:false" json:"task_bonus_awarded"`
	CreatedAt          time.Time `json:"created_at"`
}

func (Referral) TableName() string {
	return "referrals"
}
