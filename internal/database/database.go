package database

import (
	"fmt"
	"log"

	"blockforge/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect establishes a connection to the PostgreSQL database
func Connect(dsn string) error {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Error),
		TranslateError: true,
	})

	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established successfully")
	return nil
}

// AutoMigrate runs automatic migrations for all models and seeds the
// achievement catalog.
func AutoMigrate() error {
	ledgerModels := []interface{}{
		&models.User{},
		&models.CreditTransaction{},
		&models.Task{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.ReferralCode{},
		&models.Referral{},
		&models.DailyLoginReset{},
	}

	for _, model := range ledgerModels {
		if err := DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("migration failed for %T: %w", model, err)
		}
	}

	if err := SeedAchievements(DB); err != nil {
		return fmt.Errorf("failed to seed achievements: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// SeedAchievements inserts the default achievement catalog. Existing slugs
// are left untouched so redeploys never duplicate or reset rewards.
func SeedAchievements(db *gorm.DB) error {
	catalog := []models.Achievement{
		{Slug: "first-steps", Name: "First Steps", Description: "Log in for the first time", Icon: "footprints", RequirementType: models.RequirementTotalLogins, RequirementValue: 1, CreditReward: 10},
		{Slug: "regular", Name: "Regular", Description: "Log in 10 times", Icon: "calendar", RequirementType: models.RequirementTotalLogins, RequirementValue: 10, CreditReward: 25},
		{Slug: "devoted", Name: "Devoted", Description: "Log in 50 times", Icon: "star", RequirementType: models.RequirementTotalLogins, RequirementValue: 50, CreditReward: 100},
		{Slug: "week-streak", Name: "On Fire", Description: "Reach a 7-day login streak", Icon: "flame", RequirementType: models.RequirementLoginStreak, RequirementValue: 7, CreditReward: 50},
		{Slug: "month-streak", Name: "Unstoppable", Description: "Reach a 30-day login streak", Icon: "trophy", RequirementType: models.RequirementLoginStreak, RequirementValue: 30, CreditReward: 200},
		{Slug: "first-build", Name: "First Build", Description: "Complete your first generation", Icon: "hammer", RequirementType: models.RequirementTasksCompleted, RequirementValue: 1, CreditReward: 15},
		{Slug: "builder", Name: "Builder", Description: "Complete 25 generations", Icon: "wrench", RequirementType: models.RequirementTasksCompleted, RequirementValue: 25, CreditReward: 75},
		{Slug: "architect", Name: "Architect", Description: "Complete 100 generations", Icon: "castle", RequirementType: models.RequirementTasksCompleted, RequirementValue: 100, CreditReward: 250},
		{Slug: "recruiter", Name: "Recruiter", Description: "Refer your first friend", Icon: "users", RequirementType: models.RequirementReferralsMade, RequirementValue: 1, CreditReward: 20},
		{Slug: "ambassador", Name: "Ambassador", Description: "Refer 10 friends", Icon: "megaphone", RequirementType: models.RequirementReferralsMade, RequirementValue: 10, CreditReward: 150},
	}

	for _, def := range catalog {
		var existing models.Achievement
		err := db.Where("slug = ?", def.Slug).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			if err := db.Create(&def).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
