package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"blockforge/internal/models"
)

func setupReferralService(t *testing.T) (*gorm.DB, *ReferralService, *LedgerService) {
	t.Helper()

	db := setupTestDB(t)
	logger := testLogger()
	ledger := NewLedgerService(db, logger)
	referrals := NewReferralService(db, logger, ledger, ReferralBonuses{Signup: 50, FirstTask: 25})
	return db, referrals, ledger
}

func TestGetOrCreateCodeIsStable(t *testing.T) {
	db, referrals, _ := setupReferralService(t)
	ctx := context.Background()

	createTestUser(t, db, 1, 0)

	first, err := referrals.GetOrCreateCode(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, first.Code, 8)

	second, err := referrals.GetOrCreateCode(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.Code, second.Code)
}

func TestApplyCodePaysSignupBonus(t *testing.T) {
	db, referrals, ledger := setupReferralService(t)
	ctx := context.Background()

	createTestUser(t, db, 1, 0) // referrer
	createTestUser(t, db, 2, 0) // referred

	code, err := referrals.GetOrCreateCode(ctx, 1)
	require.NoError(t, err)

	referral, err := referrals.ApplyCode(ctx, 2, code.Code)
	require.NoError(t, err)
	assert.Equal(t, uint(1), referral.ReferrerID)
	assert.Equal(t, uint(2), referral.ReferredUserID)

	var stored models.Referral
	require.NoError(t, db.Where("referred_user_id = ?", 2).First(&stored).Error)
	assert.True(t, stored.SignupBonusAwarded)
	assert.False(t, stored.TaskBonusAwarded)

	balance, err := ledger.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	var referred models.User
	require.NoError(t, db.First(&referred, 2).Error)
	require.NotNil(t, referred.ReferredByID)
	assert.Equal(t, uint(1), *referred.ReferredByID)
}

func TestApplyCodeRejections(t *testing.T) {
	db, referrals, _ := setupReferralService(t)
	ctx := context.Background()

	createTestUser(t, db, 1, 0)
	createTestUser(t, db, 2, 0)
	createTestUser(t, db, 3, 0)

	code, err := referrals.GetOrCreateCode(ctx, 1)
	require.NoError(t, err)

	_, err = referrals.ApplyCode(ctx, 2, "nope1234")
	assert.ErrorIs(t, err, ErrInvalidReferralCode)

	_, err = referrals.ApplyCode(ctx, 1, code.Code)
	assert.ErrorIs(t, err, ErrSelfReferral)

	_, err = referrals.ApplyCode(ctx, 2, code.Code)
	require.NoError(t, err)

	// One referrer per user, enforced by the unique index.
	other, err := referrals.GetOrCreateCode(ctx, 3)
	require.NoError(t, err)
	_, err = referrals.ApplyCode(ctx, 2, other.Code)
	assert.ErrorIs(t, err, ErrAlreadyReferred)
}

func TestSignupBonusIsOneShot(t *testing.T) {
	db, referrals, ledger := setupReferralService(t)
	ctx := context.Background()

	createTestUser(t, db, 1, 0)
	createTestUser(t, db, 2, 0)

	code, err := referrals.GetOrCreateCode(ctx, 1)
	require.NoError(t, err)
	referral, err := referrals.ApplyCode(ctx, 2, code.Code)
	require.NoError(t, err)

	// Retriggering the signup bonus must observe the flipped flag.
	err = referrals.AwardSignupBonus(ctx, referral.ID)
	assert.ErrorIs(t, err, ErrAlreadyAwarded)

	balance, err := ledger.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)
	assert.Equal(t, balance, ledgerSum(t, db, 1))
}

func TestSignupBonusConcurrentTriggersPayOnce(t *testing.T) {
	db, referrals, ledger := setupReferralService(t)
	ctx := context.Background()

	createTestUser(t, db, 1, 0)
	createTestUser(t, db, 2, 0)

	// An unpaid referral row, as if the signup just landed.
	referral := models.Referral{
		ReferrerID:     1,
		ReferredUserID: 2,
		ReferralCode:   "abc12345",
	}
	require.NoError(t, db.Create(&referral).Error)

	const workers = 8
	var wg sync.WaitGroup
	var paid int64
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := referrals.AwardSignupBonus(ctx, referral.ID)
			switch {
			case err == nil:
				atomic.AddInt64(&paid, 1)
			case errors.Is(err, ErrAlreadyAwarded):
			default:
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent signup bonus failed: %v", err)
	}

	// The compare-and-set flag flip lets exactly one trigger through.
	assert.Equal(t, int64(1), paid)

	balance, err := ledger.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)
	assert.Equal(t, balance, ledgerSum(t, db, 1))
}

func TestFirstTaskBonusIsOneShot(t *testing.T) {
	db, referrals, ledger := setupReferralService(t)
	ctx := context.Background()

	createTestUser(t, db, 1, 0)
	createTestUser(t, db, 2, 0)

	code, err := referrals.GetOrCreateCode(ctx, 1)
	require.NoError(t, err)
	_, err = referrals.ApplyCode(ctx, 2, code.Code)
	require.NoError(t, err)

	require.NoError(t, referrals.AwardFirstTaskBonus(ctx, 2))

	err = referrals.AwardFirstTaskBonus(ctx, 2)
	assert.ErrorIs(t, err, ErrAlreadyAwarded)

	// 50 signup + 25 first task, each exactly once.
	balance, err := ledger.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(75), balance)
}

func TestReferralSummaryPropagatesStorageErrors(t *testing.T) {
	db, referrals, _ := setupReferralService(t)
	ctx := context.Background()

	createTestUser(t, db, 1, 0)
	_, err := referrals.GetOrCreateCode(ctx, 1)
	require.NoError(t, err)

	// With the ledger table gone the earnings sum must surface the
	// failure, not render as zero credits earned.
	require.NoError(t, db.Migrator().DropTable(&models.CreditTransaction{}))

	_, err = referrals.Summary(ctx, 1)
	assert.Error(t, err)
}

func TestFirstTaskBonusWithoutReferrerIsNoop(t *testing.T) {
	db, referrals, _ := setupReferralService(t)
	ctx := context.Background()

	createTestUser(t, db, 1, 0)

	require.NoError(t, referrals.AwardFirstTaskBonus(ctx, 1))

	var count int64
	db.Model(&models.CreditTransaction{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestFirstTaskBonusFiresFromTaskCompletion(t *testing.T) {
	db, referrals, ledger := setupReferralService(t)
	logger := testLogger()
	tasks := NewTaskService(db, logger, ledger, referrals)
	ctx := context.Background()

	createTestUser(t, db, 1, 0)  // referrer
	createTestUser(t, db, 2, 20) // referred

	code, err := referrals.GetOrCreateCode(ctx, 1)
	require.NoError(t, err)
	_, err = referrals.ApplyCode(ctx, 2, code.Code)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		task, err := tasks.StartTask(ctx, 2, "generate", 5)
		require.NoError(t, err)
		_, err = tasks.ChargeTask(ctx, task.ID)
		require.NoError(t, err)
		_, err = tasks.CompleteTask(ctx, task.ID, nil)
		require.NoError(t, err)
	}

	// Signup 50 + first-task 25; the second completion pays nothing more.
	balance, err := ledger.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(75), balance)
}

func TestReferralSummary(t *testing.T) {
	db, referrals, _ := setupReferralService(t)
	ctx := context.Background()

	createTestUser(t, db, 1, 0)
	createTestUser(t, db, 2, 0)
	createTestUser(t, db, 3, 0)

	code, err := referrals.GetOrCreateCode(ctx, 1)
	require.NoError(t, err)
	_, err = referrals.ApplyCode(ctx, 2, code.Code)
	require.NoError(t, err)
	_, err = referrals.ApplyCode(ctx, 3, code.Code)
	require.NoError(t, err)
	require.NoError(t, referrals.AwardFirstTaskBonus(ctx, 2))

	summary, err := referrals.Summary(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, code.Code, summary.Code)
	assert.Equal(t, 2, summary.TotalReferred)
	assert.Equal(t, int64(125), summary.CreditsEarned) // 50 + 50 + 25
}
