package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActiveEndDate(t *testing.T) {
	trialEnd := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	paidEnd := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		user User
		want *time.Time
	}{
		{
			name: "free без дат",
			user: User{SubscriptionPlan: PlanFree},
			want: nil,
		},
		{
			name: "триал возвращает trial_end_date",
			user: User{SubscriptionPlan: PlanTrial, TrialEndDate: &trialEnd},
			want: &trialEnd,
		},
		{
			name: "платный план возвращает subscription_end_date",
			user: User{SubscriptionPlan: PlanPaid, SubscriptionEndDate: &paidEnd},
			want: &paidEnd,
		},
		{
			name: "платный план игнорирует остаточную дату триала",
			user: User{SubscriptionPlan: PlanPaid, TrialEndDate: &trialEnd, SubscriptionEndDate: &paidEnd},
			want: &paidEnd,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.ActiveEndDate())
		})
	}
}

func TestValidators(t *testing.T) {
	assert.True(t, IsValidPlan(PlanFree))
	assert.True(t, IsValidPlan(PlanTrial))
	assert.True(t, IsValidPlan(PlanPaid))
	assert.False(t, IsValidPlan("premium"))

	assert.True(t, IsValidDuration(DurationMonthly))
	assert.True(t, IsValidDuration(DurationYearly))
	assert.False(t, IsValidDuration("weekly"))

	assert.True(t, IsValidPaymentStatus(PaymentStatusSuccessful))
	assert.True(t, IsValidPaymentStatus(PaymentStatusPending))
	assert.True(t, IsValidPaymentStatus(PaymentStatusFailed))
	assert.False(t, IsValidPaymentStatus("refunded"))
}
