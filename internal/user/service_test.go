package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TheLogeek/Smart-Expense-Tracker/internal/config"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/referral"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/store/storetest"
	"github.com/TheLogeek/Smart-Expense-Tracker/pkg/models"
)

func testConfig() config.SubscriptionConfig {
	return config.SubscriptionConfig{
		TrialDays:         14,
		ReferredTrialDays: 17,
		ReferralBonusDays: 10,
	}
}

func newTestService(db *storetest.Store) *Service {
	logger := zap.NewNop()
	referrals := referral.NewService(db, nil, nil, logger)
	return NewService(db, referrals, testConfig(), logger)
}

func TestGetOrCreateStartsTrial(t *testing.T) {
	db := storetest.New()
	svc := newTestService(db)

	u, created, err := svc.GetOrCreate(context.Background(), 42, "ada", "Ada", "Obi", nil)
	require.NoError(t, err)
	assert.True(t, created)

	assert.True(t, u.IsPro)
	assert.Equal(t, models.PlanTrial, u.SubscriptionPlan)
	require.NotNil(t, u.TrialStartDate)
	require.NotNil(t, u.TrialEndDate)
	assert.Equal(t, u.TrialStartDate.AddDate(0, 0, 14), *u.TrialEndDate)
	assert.Nil(t, u.ReferredBy)
}

func TestGetOrCreateExistingUser(t *testing.T) {
	db := storetest.New()
	db.AddUser(&models.User{TelegramID: 42, SubscriptionPlan: models.PlanFree})
	svc := newTestService(db)

	u, created, err := svc.GetOrCreate(context.Background(), 42, "ada", "Ada", "", nil)
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, models.PlanFree, u.SubscriptionPlan)
}

func TestGetOrCreateReferredTrial(t *testing.T) {
	db := storetest.New()
	svc := newTestService(db)

	referrerID := int64(7)
	u, created, err := svc.GetOrCreate(context.Background(), 42, "ada", "Ada", "", &referrerID)
	require.NoError(t, err)
	assert.True(t, created)

	// Приглашенный получает расширенный триал
	assert.Equal(t, u.TrialStartDate.AddDate(0, 0, 17), *u.TrialEndDate)
	require.NotNil(t, u.ReferredBy)
	assert.Equal(t, referrerID, *u.ReferredBy)

	stored, ok := db.ReferralByReferredID(42)
	require.True(t, ok)
	assert.Equal(t, referrerID, stored.ReferrerID)
}

func TestGetOrCreateSelfReferralIgnored(t *testing.T) {
	db := storetest.New()
	svc := newTestService(db)

	referrerID := int64(42)
	u, _, err := svc.GetOrCreate(context.Background(), 42, "ada", "Ada", "", &referrerID)
	require.NoError(t, err)

	// Самоприглашение не дает расширенный триал
	assert.Equal(t, u.TrialStartDate.AddDate(0, 0, 14), *u.TrialEndDate)
	assert.Nil(t, u.ReferredBy)

	_, ok := db.ReferralByReferredID(42)
	assert.False(t, ok)
}

func TestRegisterFirstProfileGrantsBonus(t *testing.T) {
	trialEnd := time.Now().UTC().Add(3 * 24 * time.Hour)

	db := storetest.New()
	db.AddUser(&models.User{
		TelegramID:       7,
		IsPro:            true,
		SubscriptionPlan: models.PlanTrial,
		TrialEndDate:     &trialEnd,
	})
	svc := newTestService(db)

	referrerID := int64(7)
	_, _, err := svc.GetOrCreate(context.Background(), 42, "ada", "Ada", "", &referrerID)
	require.NoError(t, err)

	require.NoError(t, svc.RegisterFirstProfile(context.Background(), 42))

	referrer, _ := db.UserByTelegramID(7)
	assert.Equal(t, models.PlanPaid, referrer.SubscriptionPlan)
	assert.Equal(t, trialEnd.AddDate(0, 0, 10), *referrer.SubscriptionEndDate)

	// Повторная регистрация профиля бонус не дублирует
	require.NoError(t, svc.RegisterFirstProfile(context.Background(), 42))
	unchanged, _ := db.UserByTelegramID(7)
	assert.Equal(t, *referrer.SubscriptionEndDate, *unchanged.SubscriptionEndDate)
}

func TestRegisterFirstProfileWithoutReferral(t *testing.T) {
	db := storetest.New()
	db.AddUser(&models.User{TelegramID: 42, SubscriptionPlan: models.PlanFree})
	svc := newTestService(db)

	assert.NoError(t, svc.RegisterFirstProfile(context.Background(), 42))
}
