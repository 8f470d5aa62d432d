package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction types
const (
	TransactionTypeEarn  = "earn"
	TransactionTypeSpend = "spend"
)

// CreditTransaction represents one immutable balance-changing event.
// The per-user sum of Amount always equals User.CreditsBalance; rows are
// only ever inserted inside the same transaction that moves the balance.
type CreditTransaction struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	User      *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Amount    int64      `gorm:"not null" json:"amount"` // signed: positive = earn, negative = spend
	Type      string     `gorm:"size:10;not null;index" json:"type"`
	Reason    string     `gorm:"size:100;not null" json:"reason"`
	TaskID    *uuid.UUID `gorm:"type:uuid;index" json:"task_id,omitempty"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for CreditTransaction model
func (CreditTransaction) TableName() string {
	return "credit_transactions"
}
