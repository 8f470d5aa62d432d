package services

import (
	"errors"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

var (
	// ErrInsufficientFunds is returned when a debit would take the balance
	// below zero. The balance is left untouched.
	ErrInsufficientFunds = errors.New("insufficient credits")

	// ErrNonPositiveAmount is returned when a ledger mutation is attempted
	// with a zero or negative amount.
	ErrNonPositiveAmount = errors.New("amount must be a positive integer")

	ErrUserNotFound = errors.New("user not found")
	ErrTaskNotFound = errors.New("task not found")

	// ErrAlreadyAwarded signals an idempotent no-op: the bonus flag was
	// already set by an earlier (possibly concurrent) trigger.
	ErrAlreadyAwarded = errors.New("bonus already awarded")

	ErrInvalidReferralCode = errors.New("invalid referral code")
	ErrSelfReferral        = errors.New("cannot use your own referral code")
	ErrAlreadyReferred     = errors.New("user already has a referrer")
)

// isDuplicateKey reports whether err is a unique-constraint violation.
// Postgres surfaces these as SQLSTATE 23505; gorm translates them to
// ErrDuplicatedKey when the driver supports it (sqlite in tests does).
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}
