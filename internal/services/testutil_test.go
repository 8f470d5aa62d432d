package services

import (
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"blockforge/internal/models"
)

// setupTestDB opens a per-test in-memory sqlite database and migrates the
// ledger schema. TranslateError is on so unique violations surface as
// gorm.ErrDuplicatedKey, same as the postgres setup.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	// A single connection serializes concurrent transactions instead of
	// tripping sqlite's writer lock.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.CreditTransaction{},
		&models.Task{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.ReferralCode{},
		&models.Referral{},
		&models.DailyLoginReset{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

// createTestUser inserts a user with the given starting balance.
func createTestUser(t *testing.T, db *gorm.DB, id uint, balance int64) *models.User {
	t.Helper()

	user := models.User{
		ID:             id,
		Email:          fmt.Sprintf("user%d@example.com", id),
		Username:       fmt.Sprintf("user%d", id),
		CreditsBalance: balance,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return &user
}

// ledgerSum returns the sum of a user's ledger entries, for checking the
// reconciliation invariant against the stored balance.
func ledgerSum(t *testing.T, db *gorm.DB, userID uint) int64 {
	t.Helper()

	var sum int64
	row := db.Model(&models.CreditTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").Row()
	if err := row.Scan(&sum); err != nil {
		t.Fatalf("failed to sum ledger entries: %v", err)
	}
	return sum
}
