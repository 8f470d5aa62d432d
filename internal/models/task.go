package models

import (
	"time"

	"github.com/google/uuid"
)

// Task statuses
const (
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// Task represents one billable unit of work (e.g. one AI generation).
// CreditsDeducted is the charge-once flag: it flips to true in the same
// transaction as the debit, so a task can never be charged twice.
type Task struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uint       `gorm:"not null;index" json:"user_id"`
	User            *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Type            string     `gorm:"size:50;not null;index" json:"type"`
	CreditsCost     int64      `gorm:"not null;default:0" json:"credits_cost"`
	CreditsDeducted bool       `gorm:"not null;default:false" json:"credits_deducted"`
	Status          string     `gorm:"size:20;not null;default:pending;index" json:"status"`
	ErrorMessage    *string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// TableName specifies the table name for Task model
func (Task) TableName() string {
	return "tasks"
}
