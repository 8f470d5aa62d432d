package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"blockforge/internal/models"
)

func seedAchievement(t *testing.T, db *gorm.DB, slug, reqType string, reqValue int, reward int64) models.Achievement {
	t.Helper()

	def := models.Achievement{
		Slug:             slug,
		Name:             slug,
		RequirementType:  reqType,
		RequirementValue: reqValue,
		CreditReward:     reward,
	}
	require.NoError(t, db.Create(&def).Error)
	return def
}

func TestEvaluateAchievementsAwardsOnce(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db, testLogger())
	achievements := NewAchievementService(db, testLogger(), ledger)
	ctx := context.Background()

	user := createTestUser(t, db, 1, 0)
	user.TotalLogins = 10
	require.NoError(t, db.Save(user).Error)

	seedAchievement(t, db, "regular", models.RequirementTotalLogins, 10, 25)
	seedAchievement(t, db, "devoted", models.RequirementTotalLogins, 50, 100)

	awarded, err := achievements.EvaluateAchievements(ctx, 1)
	require.NoError(t, err)
	require.Len(t, awarded, 1)
	assert.Equal(t, "regular", awarded[0].Achievement.Slug)
	assert.Equal(t, int64(25), awarded[0].CreditsAwarded)

	balance, err := ledger.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(25), balance)

	// Re-evaluation is a no-op: the earned row keeps the rule out of the
	// candidate set.
	awarded, err = achievements.EvaluateAchievements(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, awarded)

	balance, err = ledger.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(25), balance)

	var count int64
	db.Model(&models.UserAchievement{}).Where("user_id = ?", 1).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestAchievementAwardLostRaceIsSkipped(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db, testLogger())
	achievements := NewAchievementService(db, testLogger(), ledger)
	ctx := context.Background()

	user := createTestUser(t, db, 1, 0)
	user.TotalLogins = 1
	require.NoError(t, db.Save(user).Error)

	def := seedAchievement(t, db, "first-steps", models.RequirementTotalLogins, 1, 10)

	// Another evaluation inserted the earned row between this one's
	// catalog read and its insert. Calling the award transaction directly
	// drives it into the unique violation.
	require.NoError(t, db.Create(&models.UserAchievement{UserID: 1, AchievementID: def.ID}).Error)

	won, err := achievements.award(ctx, 1, def)
	require.NoError(t, err)
	assert.False(t, won)

	// The losing transaction rolled back whole: no credit, still one row.
	balance, err := ledger.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	var count int64
	db.Model(&models.UserAchievement{}).Where("user_id = ?", 1).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestEvaluateAchievementsConcurrentAwardsOnce(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db, testLogger())
	achievements := NewAchievementService(db, testLogger(), ledger)
	ctx := context.Background()

	user := createTestUser(t, db, 1, 0)
	user.TotalLogins = 1
	require.NoError(t, db.Save(user).Error)

	seedAchievement(t, db, "first-steps", models.RequirementTotalLogins, 1, 10)

	const workers = 5
	var wg sync.WaitGroup
	var total int64
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			awarded, err := achievements.EvaluateAchievements(ctx, 1)
			if err != nil {
				errs <- err
				return
			}
			atomic.AddInt64(&total, int64(len(awarded)))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent evaluation failed: %v", err)
	}

	assert.Equal(t, int64(1), total)

	var count int64
	db.Model(&models.UserAchievement{}).Where("user_id = ?", 1).Count(&count)
	assert.Equal(t, int64(1), count)

	balance, err := ledger.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)
	assert.Equal(t, balance, ledgerSum(t, db, 1))
}

func TestEvaluateAchievementsRequirementTypes(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db, testLogger())
	achievements := NewAchievementService(db, testLogger(), ledger)
	ctx := context.Background()

	user := createTestUser(t, db, 1, 0)
	user.LoginStreak = 7
	user.TasksCompleted = 3
	require.NoError(t, db.Save(user).Error)

	referred := createTestUser(t, db, 2, 0)
	require.NoError(t, db.Create(&models.Referral{
		ReferrerID:     1,
		ReferredUserID: referred.ID,
		ReferralCode:   "abc12345",
	}).Error)

	seedAchievement(t, db, "week-streak", models.RequirementLoginStreak, 7, 50)
	seedAchievement(t, db, "first-build", models.RequirementTasksCompleted, 1, 15)
	seedAchievement(t, db, "recruiter", models.RequirementReferralsMade, 1, 20)
	seedAchievement(t, db, "ambassador", models.RequirementReferralsMade, 10, 150)

	awarded, err := achievements.EvaluateAchievements(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, awarded, 3)

	balance, err := ledger.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(85), balance)
	assert.Equal(t, balance, ledgerSum(t, db, 1))
}

func TestAchievementCatalogAndEarned(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db, testLogger())
	achievements := NewAchievementService(db, testLogger(), ledger)
	ctx := context.Background()

	user := createTestUser(t, db, 1, 0)
	user.TotalLogins = 1
	require.NoError(t, db.Save(user).Error)

	seedAchievement(t, db, "first-steps", models.RequirementTotalLogins, 1, 10)
	seedAchievement(t, db, "devoted", models.RequirementTotalLogins, 50, 100)

	_, err := achievements.EvaluateAchievements(ctx, 1)
	require.NoError(t, err)

	catalog, err := achievements.Catalog(ctx)
	require.NoError(t, err)
	assert.Len(t, catalog, 2)

	earned, err := achievements.EarnedBy(ctx, 1)
	require.NoError(t, err)
	require.Len(t, earned, 1)
	require.NotNil(t, earned[0].Achievement)
	assert.Equal(t, "first-steps", earned[0].Achievement.Slug)
}
