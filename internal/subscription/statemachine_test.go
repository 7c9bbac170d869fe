package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheLogeek/Smart-Expense-Tracker/pkg/models"
)

func TestStartTrial(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	user := &models.User{TelegramID: 100}
	err := StartTrial(user, now, 14)
	require.NoError(t, err)

	assert.True(t, user.IsPro)
	assert.Equal(t, models.PlanTrial, user.SubscriptionPlan)
	assert.Equal(t, now, *user.TrialStartDate)
	assert.Equal(t, now.AddDate(0, 0, 14), *user.TrialEndDate)
	assert.Nil(t, user.SubscriptionEndDate)
}

func TestStartTrialReferred(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	user := &models.User{TelegramID: 100}
	err := StartTrial(user, now, 17)
	require.NoError(t, err)

	assert.Equal(t, now.AddDate(0, 0, 17), *user.TrialEndDate)
}

func TestStartTrialInvalid(t *testing.T) {
	now := time.Now().UTC()

	user := &models.User{TelegramID: 100}
	err := StartTrial(user, now, -1)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	user = &models.User{TelegramID: 100, SubscriptionPlan: models.PlanPaid}
	err = StartTrial(user, now, 14)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestExtendOrActivatePaid(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		user    *models.User
		months  int
		wantEnd time.Time
	}{
		{
			name:    "первая покупка с free отсчитывается от now",
			user:    &models.User{SubscriptionPlan: models.PlanFree},
			months:  1,
			wantEnd: time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "продление до истечения наращивает действующий срок",
			user: &models.User{
				SubscriptionPlan:    models.PlanPaid,
				SubscriptionEndDate: timePtr(time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC)),
			},
			months:  1,
			wantEnd: time.Date(2025, 4, 20, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "покупка после истечения отсчитывается от now",
			user: &models.User{
				SubscriptionPlan:    models.PlanPaid,
				SubscriptionEndDate: timePtr(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)),
			},
			months:  1,
			wantEnd: time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "апгрейд с триала сохраняет остаток триала",
			user: &models.User{
				SubscriptionPlan: models.PlanTrial,
				TrialEndDate:     timePtr(time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)),
			},
			months:  1,
			wantEnd: time.Date(2025, 4, 15, 9, 0, 0, 0, time.UTC),
		},
		{
			name:    "годовая подписка прибавляет 12 месяцев",
			user:    &models.User{SubscriptionPlan: models.PlanFree},
			months:  12,
			wantEnd: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ExtendOrActivatePaid(tt.user, now, tt.months, models.DurationMonthly)
			require.NoError(t, err)

			assert.True(t, tt.user.IsPro)
			assert.Equal(t, models.PlanPaid, tt.user.SubscriptionPlan)
			assert.Equal(t, tt.wantEnd, *tt.user.SubscriptionEndDate)
			assert.Nil(t, tt.user.TrialEndDate)
			assert.Nil(t, tt.user.TrialStartDate)
		})
	}
}

func TestExtendOrActivatePaidZeroMonths(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	trialEnd := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)

	// Нулевое продление перебазирует план, не сдвигая якорь
	user := &models.User{
		SubscriptionPlan: models.PlanTrial,
		TrialEndDate:     &trialEnd,
	}
	err := ExtendOrActivatePaid(user, now, 0, "")
	require.NoError(t, err)

	assert.Equal(t, models.PlanPaid, user.SubscriptionPlan)
	assert.Equal(t, trialEnd, *user.SubscriptionEndDate)
	assert.Nil(t, user.SubscriptionDuration)
}

func TestExtendOrActivatePaidInvalid(t *testing.T) {
	now := time.Now().UTC()

	user := &models.User{}
	assert.ErrorIs(t, ExtendOrActivatePaid(user, now, -1, ""), ErrInvalidTransition)
	assert.ErrorIs(t, ExtendOrActivatePaid(user, now, 1, "weekly"), ErrInvalidTransition)
}

func TestAddCalendarMonths(t *testing.T) {
	tests := []struct {
		name   string
		from   time.Time
		months int
		want   time.Time
	}{
		{
			name:   "обычный месяц",
			from:   time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC),
		},
		{
			name:   "31 января поджимается к концу февраля",
			from:   time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC),
		},
		{
			name:   "високосный февраль",
			from:   time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2024, 2, 29, 10, 0, 0, 0, time.UTC),
		},
		{
			name:   "31 число в 30-дневный месяц",
			from:   time.Date(2025, 3, 31, 10, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2025, 4, 30, 10, 0, 0, 0, time.UTC),
		},
		{
			name:   "переход через границу года",
			from:   time.Date(2025, 11, 30, 10, 0, 0, 0, time.UTC),
			months: 2,
			want:   time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC),
		},
		{
			name:   "12 месяцев",
			from:   time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC),
			months: 12,
			want:   time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddCalendarMonths(tt.from, tt.months))
		})
	}
}

func TestGrantBonusDays(t *testing.T) {
	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		user    *models.User
		wantEnd time.Time
	}{
		{
			name: "бонус продлевает активную платную подписку",
			user: &models.User{
				SubscriptionPlan:    models.PlanPaid,
				SubscriptionEndDate: timePtr(time.Date(2025, 5, 20, 8, 0, 0, 0, time.UTC)),
			},
			wantEnd: time.Date(2025, 5, 30, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "бонус на триале конвертирует остаток в платный план",
			user: &models.User{
				SubscriptionPlan: models.PlanTrial,
				TrialEndDate:     timePtr(time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)),
			},
			wantEnd: time.Date(2025, 5, 20, 8, 0, 0, 0, time.UTC),
		},
		{
			name:    "бонус на free отсчитывается от now",
			user:    &models.User{SubscriptionPlan: models.PlanFree},
			wantEnd: time.Date(2025, 5, 11, 8, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := GrantBonusDays(tt.user, now, 10)
			require.NoError(t, err)

			assert.True(t, tt.user.IsPro)
			assert.Equal(t, models.PlanPaid, tt.user.SubscriptionPlan)
			assert.Equal(t, tt.wantEnd, *tt.user.SubscriptionEndDate)
		})
	}

	user := &models.User{}
	assert.ErrorIs(t, GrantBonusDays(user, now, -5), ErrInvalidTransition)
}

func TestCheckAndExpire(t *testing.T) {
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	t.Run("истекший платный период переводит на free", func(t *testing.T) {
		user := &models.User{
			IsPro:               true,
			SubscriptionPlan:    models.PlanPaid,
			SubscriptionEndDate: timePtr(now.Add(-time.Hour)),
		}

		changed := CheckAndExpire(user, now)

		assert.True(t, changed)
		assert.False(t, user.IsPro)
		assert.Equal(t, models.PlanFree, user.SubscriptionPlan)
		assert.Nil(t, user.SubscriptionEndDate)
		assert.Nil(t, user.SubscriptionDuration)
	})

	t.Run("активная подписка не трогается", func(t *testing.T) {
		user := &models.User{
			IsPro:               true,
			SubscriptionPlan:    models.PlanPaid,
			SubscriptionEndDate: timePtr(now.Add(time.Hour)),
		}

		assert.False(t, CheckAndExpire(user, now))
		assert.True(t, user.IsPro)
	})

	t.Run("окончание ровно в now считается истекшим", func(t *testing.T) {
		user := &models.User{
			IsPro:            true,
			SubscriptionPlan: models.PlanTrial,
			TrialEndDate:     timePtr(now),
		}

		assert.True(t, CheckAndExpire(user, now))
	})

	t.Run("повторный вызов идемпотентен", func(t *testing.T) {
		user := &models.User{
			IsPro:               true,
			SubscriptionPlan:    models.PlanPaid,
			SubscriptionEndDate: timePtr(now.Add(-time.Hour)),
		}

		assert.True(t, CheckAndExpire(user, now))
		assert.False(t, CheckAndExpire(user, now))
		assert.False(t, CheckAndExpire(user, now.Add(time.Hour)))
	})

	t.Run("free аккаунт — no-op", func(t *testing.T) {
		user := &models.User{SubscriptionPlan: models.PlanFree}
		assert.False(t, CheckAndExpire(user, now))
	})
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(48 * time.Hour)

	tests := []struct {
		name     string
		user     *models.User
		wantPlan string
		wantPro  bool
	}{
		{
			name:     "free аккаунт",
			user:     &models.User{SubscriptionPlan: models.PlanFree},
			wantPlan: "Free",
			wantPro:  false,
		},
		{
			name: "активный триал",
			user: &models.User{
				SubscriptionPlan: models.PlanTrial,
				TrialEndDate:     &future,
			},
			wantPlan: "Pro (Trial)",
			wantPro:  true,
		},
		{
			name: "активная платная подписка",
			user: &models.User{
				SubscriptionPlan:    models.PlanPaid,
				SubscriptionEndDate: &future,
			},
			wantPlan: "Pro (Paid)",
			wantPro:  true,
		},
		{
			name: "истекший триал проецируется как Free даже до даунгрейда",
			user: &models.User{
				IsPro:            true,
				SubscriptionPlan: models.PlanTrial,
				TrialEndDate:     timePtr(now.Add(-time.Hour)),
			},
			wantPlan: "Free",
			wantPro:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := *tt.user

			status := EffectiveStatus(tt.user, now)

			assert.Equal(t, tt.wantPlan, status.Plan)
			assert.Equal(t, tt.wantPro, status.IsPro)
			// Проекция не мутирует аккаунт
			assert.Equal(t, before, *tt.user)
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
