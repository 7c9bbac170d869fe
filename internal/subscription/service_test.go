package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TheLogeek/Smart-Expense-Tracker/internal/store"
	"github.com/TheLogeek/Smart-Expense-Tracker/pkg/models"
)

// fakeUserRepo — in-memory реализация UserRepository для тестов
type fakeUserRepo struct {
	users map[int64]*models.User
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[int64]*models.User)}
	for _, u := range users {
		copied := *u
		repo.users[u.TelegramID] = &copied
	}
	return repo
}

func (r *fakeUserRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	u, ok := r.users[telegramID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *models.User) error {
	if _, ok := r.users[user.TelegramID]; !ok {
		return store.ErrNotFound
	}
	copied := *user
	r.users[user.TelegramID] = &copied
	return nil
}

func (r *fakeUserRepo) GetExpired(ctx context.Context, now time.Time) ([]*models.User, error) {
	var result []*models.User
	for _, u := range r.users {
		if !u.IsPro {
			continue
		}
		if end := u.ActiveEndDate(); end != nil && !end.After(now) {
			copied := *u
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeUserRepo) GetExpiring(ctx context.Context, from, to time.Time) ([]*models.User, error) {
	var result []*models.User
	for _, u := range r.users {
		if !u.IsPro {
			continue
		}
		if end := u.ActiveEndDate(); end != nil && !end.Before(from) && !end.After(to) {
			copied := *u
			result = append(result, &copied)
		}
	}
	return result, nil
}

func TestServiceGetStatusPersistsDowngrade(t *testing.T) {
	expired := time.Now().UTC().Add(-time.Hour)
	repo := newFakeUserRepo(&models.User{
		TelegramID:       42,
		IsPro:            true,
		SubscriptionPlan: models.PlanTrial,
		TrialEndDate:     &expired,
	})
	svc := NewService(repo, zap.NewNop())

	status, err := svc.GetStatus(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, "Free", status.Plan)
	assert.False(t, status.IsPro)

	// Даунгрейд сохранен в хранилище
	stored := repo.users[42]
	assert.Equal(t, models.PlanFree, stored.SubscriptionPlan)
	assert.False(t, stored.IsPro)
}

func TestServiceGetStatusActive(t *testing.T) {
	future := time.Now().UTC().Add(72 * time.Hour)
	repo := newFakeUserRepo(&models.User{
		TelegramID:          42,
		IsPro:               true,
		SubscriptionPlan:    models.PlanPaid,
		SubscriptionEndDate: &future,
	})
	svc := NewService(repo, zap.NewNop())

	status, err := svc.GetStatus(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, "Pro (Paid)", status.Plan)
	assert.True(t, status.IsPro)
	require.NotNil(t, status.ExpiresAt)
	assert.Equal(t, future, *status.ExpiresAt)
}

func TestServiceDowngradeExpired(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	repo := newFakeUserRepo(
		&models.User{TelegramID: 1, IsPro: true, SubscriptionPlan: models.PlanTrial, TrialEndDate: &past},
		&models.User{TelegramID: 2, IsPro: true, SubscriptionPlan: models.PlanPaid, SubscriptionEndDate: &past},
		&models.User{TelegramID: 3, IsPro: true, SubscriptionPlan: models.PlanPaid, SubscriptionEndDate: &future},
		&models.User{TelegramID: 4, SubscriptionPlan: models.PlanFree},
	)
	svc := NewService(repo, zap.NewNop())

	downgraded, err := svc.DowngradeExpired(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, downgraded)

	assert.Equal(t, models.PlanFree, repo.users[1].SubscriptionPlan)
	assert.Equal(t, models.PlanFree, repo.users[2].SubscriptionPlan)
	assert.Equal(t, models.PlanPaid, repo.users[3].SubscriptionPlan)

	// Повторный запуск — no-op
	downgraded, err = svc.DowngradeExpired(context.Background())
	require.NoError(t, err)
	assert.Empty(t, downgraded)
}

func TestServiceGetExpiring(t *testing.T) {
	now := time.Now().UTC()
	soon := now.Add(12 * time.Hour)
	later := now.Add(48 * time.Hour)

	repo := newFakeUserRepo(
		&models.User{TelegramID: 1, IsPro: true, SubscriptionPlan: models.PlanPaid, SubscriptionEndDate: &soon},
		&models.User{TelegramID: 2, IsPro: true, SubscriptionPlan: models.PlanPaid, SubscriptionEndDate: &later},
	)
	svc := NewService(repo, zap.NewNop())

	expiring, err := svc.GetExpiring(context.Background())
	require.NoError(t, err)

	require.Len(t, expiring, 1)
	assert.Equal(t, int64(1), expiring[0].TelegramID)
}

func TestPlans(t *testing.T) {
	plans := Plans()
	require.Len(t, plans, 2)

	monthly, err := PlanByType(models.DurationMonthly)
	require.NoError(t, err)
	assert.Equal(t, 1, monthly.DurationMonths)
	assert.Equal(t, "500", monthly.Price.StringFixed(0))
	assert.Equal(t, "NGN", monthly.Currency)

	yearly, err := PlanByType(models.DurationYearly)
	require.NoError(t, err)
	assert.Equal(t, 12, yearly.DurationMonths)
	assert.Equal(t, "5000", yearly.Price.StringFixed(0))

	_, err = PlanByType("weekly")
	assert.Error(t, err)
}
