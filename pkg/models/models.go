package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User представляет аккаунт пользователя в системе
type User struct {
	ID                    int64      `json:"id" db:"id"`
	TelegramID            int64      `json:"telegram_id" db:"telegram_id"`
	Username              string     `json:"username" db:"username"`
	FirstName             string     `json:"first_name" db:"first_name"`
	LastName              string     `json:"last_name" db:"last_name"`
	IsPro                 bool       `json:"is_pro" db:"is_pro"`                               // Активен ли Pro-доступ (триал или платный)
	SubscriptionPlan      string     `json:"subscription_plan" db:"subscription_plan"`         // free, pro_trial, pro_paid
	SubscriptionDuration  *string    `json:"subscription_duration" db:"subscription_duration"` // monthly, yearly (только для pro_paid)
	TrialStartDate        *time.Time `json:"trial_start_date" db:"trial_start_date"`           // UTC
	TrialEndDate          *time.Time `json:"trial_end_date" db:"trial_end_date"`               // UTC
	SubscriptionStartDate *time.Time `json:"subscription_start_date" db:"subscription_start_date"`
	SubscriptionEndDate   *time.Time `json:"subscription_end_date" db:"subscription_end_date"`
	ReferredBy            *int64     `json:"referred_by" db:"referred_by"` // telegram_id пригласившего
	DailyRemindersEnabled bool       `json:"daily_reminders_enabled" db:"daily_reminders_enabled"`
	CreatedAt             time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at" db:"updated_at"`
}

// Payment представляет запись о транзакции платежного шлюза
type Payment struct {
	ID          int64           `json:"id" db:"id"`
	UserID      int64           `json:"user_id" db:"user_id"` // telegram_id пользователя
	Amount      decimal.Decimal `json:"amount" db:"amount"`   // сумма в найрах
	Currency    string          `json:"currency" db:"currency"`
	PlanType    string          `json:"plan_type" db:"plan_type"` // monthly, yearly
	Reference   string          `json:"reference" db:"reference"` // уникальный референс транзакции (ключ идемпотентности)
	Status      string          `json:"status" db:"status"`       // successful, failed, pending
	PaymentDate time.Time       `json:"payment_date" db:"payment_date"`
}

// SubscriptionStatus представляет эффективное состояние подписки на момент запроса
type SubscriptionStatus struct {
	Plan      string     `json:"plan"` // Free, Pro (Trial), Pro (Paid)
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IsPro     bool       `json:"is_pro"`
}

// ProPlan представляет тарифный план Pro-подписки
type ProPlan struct {
	PlanType       string          `json:"plan_type"` // monthly, yearly
	DurationMonths int             `json:"duration_months"`
	Price          decimal.Decimal `json:"price"`
	Currency       string          `json:"currency"`
	Description    string          `json:"description"`
}

// Constants для планов подписки
const (
	PlanFree  = "free"
	PlanTrial = "pro_trial"
	PlanPaid  = "pro_paid"
)

// Constants для длительности платной подписки
const (
	DurationMonthly = "monthly"
	DurationYearly  = "yearly"
)

// Constants для статусов платежей
const (
	PaymentStatusSuccessful = "successful"
	PaymentStatusFailed     = "failed"
	PaymentStatusPending    = "pending"
)

// IsValidPlan проверяет корректность плана подписки
func IsValidPlan(plan string) bool {
	switch plan {
	case PlanFree, PlanTrial, PlanPaid:
		return true
	default:
		return false
	}
}

// IsValidDuration проверяет корректность длительности платной подписки
func IsValidDuration(duration string) bool {
	switch duration {
	case DurationMonthly, DurationYearly:
		return true
	default:
		return false
	}
}

// IsValidPaymentStatus проверяет корректность статуса платежа
func IsValidPaymentStatus(status string) bool {
	switch status {
	case PaymentStatusSuccessful, PaymentStatusFailed, PaymentStatusPending:
		return true
	default:
		return false
	}
}

// ActiveEndDate возвращает дату окончания текущего активного периода,
// nil для бесплатного плана
func (u *User) ActiveEndDate() *time.Time {
	switch u.SubscriptionPlan {
	case PlanPaid:
		return u.SubscriptionEndDate
	case PlanTrial:
		return u.TrialEndDate
	default:
		return nil
	}
}
