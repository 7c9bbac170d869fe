package subscription

import (
	"errors"
	"fmt"
	"time"

	"github.com/TheLogeek/Smart-Expense-Tracker/pkg/models"
)

// ErrInvalidTransition возвращается, когда операция машины состояний вызвана
// в контексте, запрещенном ее предусловиями. Это нарушение контракта
// вызывающего кода, а не пользовательская ошибка.
var ErrInvalidTransition = errors.New("недопустимый переход состояния подписки")

// Все функции в этом файле — чистые переходы машины состояний подписки.
// Они мутируют только переданную модель и не выполняют I/O: сохранение
// результата — ответственность вызывающего кода в рамках его unit of work.
// Все даты хранятся и сравниваются только в UTC.

// StartTrial переводит новый аккаунт в состояние pro_trial на days дней.
// Валидна только для аккаунта, который никогда не имел подписки; историю
// платежей функция не перепроверяет — это обязанность вызывающего кода.
func StartTrial(user *models.User, now time.Time, days int) error {
	if days < 0 {
		return fmt.Errorf("%w: отрицательная длительность триала %d", ErrInvalidTransition, days)
	}
	if user.SubscriptionPlan != "" && user.SubscriptionPlan != models.PlanFree {
		return fmt.Errorf("%w: триал доступен только новому аккаунту, текущий план %s",
			ErrInvalidTransition, user.SubscriptionPlan)
	}

	start := now.UTC()
	end := start.AddDate(0, 0, days)

	user.IsPro = true
	user.SubscriptionPlan = models.PlanTrial
	user.TrialStartDate = &start
	user.TrialEndDate = &end
	user.SubscriptionStartDate = nil
	user.SubscriptionEndDate = nil
	user.SubscriptionDuration = nil

	return nil
}

// ExtendOrActivatePaid активирует или продлевает платный период на months
// календарных месяцев. Новая дата окончания считается от якорной даты:
// текущее окончание, если оно в будущем, иначе now. Продление до истечения
// наращивает действующий срок, покупка после истечения отсчитывается от now.
// months = 0 легален: перебазирует план в pro_paid, не сдвигая якорь назад.
func ExtendOrActivatePaid(user *models.User, now time.Time, months int, duration string) error {
	if months < 0 {
		return fmt.Errorf("%w: отрицательная длительность %d месяцев", ErrInvalidTransition, months)
	}
	if duration != "" && !models.IsValidDuration(duration) {
		return fmt.Errorf("%w: неизвестная длительность подписки %q", ErrInvalidTransition, duration)
	}

	start := now.UTC()
	newEnd := AddCalendarMonths(anchorDate(user, start), months)

	user.IsPro = true
	user.SubscriptionPlan = models.PlanPaid
	user.SubscriptionStartDate = &start
	user.SubscriptionEndDate = &newEnd
	if duration != "" {
		user.SubscriptionDuration = &duration
	}
	user.TrialStartDate = nil
	user.TrialEndDate = nil

	return nil
}

// GrantBonusDays добавляет бонусные дни реферальной программы: перебазирует
// план через ту же якорную логику (нулевое продление) и прибавляет days
// целых дней сверху.
func GrantBonusDays(user *models.User, now time.Time, days int) error {
	if days < 0 {
		return fmt.Errorf("%w: отрицательное количество бонусных дней %d", ErrInvalidTransition, days)
	}

	start := now.UTC()
	newEnd := anchorDate(user, start).AddDate(0, 0, days)

	user.IsPro = true
	user.SubscriptionPlan = models.PlanPaid
	user.SubscriptionStartDate = &start
	user.SubscriptionEndDate = &newEnd
	user.TrialStartDate = nil
	user.TrialEndDate = nil

	return nil
}

// CheckAndExpire переводит аккаунт в free, если активный период закончился.
// Возвращает true, если состояние изменилось. Идемпотентна: повторный вызов
// на уже истекшем аккаунте ничего не меняет.
func CheckAndExpire(user *models.User, now time.Time) bool {
	if user.SubscriptionPlan == "" || user.SubscriptionPlan == models.PlanFree {
		return false
	}

	end := user.ActiveEndDate()
	if end != nil && end.After(now.UTC()) {
		return false
	}

	user.IsPro = false
	user.SubscriptionPlan = models.PlanFree
	user.SubscriptionDuration = nil
	user.TrialStartDate = nil
	user.TrialEndDate = nil
	user.SubscriptionStartDate = nil
	user.SubscriptionEndDate = nil

	return true
}

// EffectiveStatus возвращает проекцию текущего состояния подписки с учетом
// истечения, не мутируя аккаунт и ничего не сохраняя. Даже если строка в
// хранилище устарела, возвращаемое представление отражает реальность.
func EffectiveStatus(user *models.User, now time.Time) models.SubscriptionStatus {
	end := user.ActiveEndDate()
	if end == nil || !end.After(now.UTC()) {
		return models.SubscriptionStatus{Plan: "Free", IsPro: false}
	}

	expires := end.UTC()
	switch user.SubscriptionPlan {
	case models.PlanTrial:
		return models.SubscriptionStatus{Plan: "Pro (Trial)", ExpiresAt: &expires, IsPro: true}
	case models.PlanPaid:
		return models.SubscriptionStatus{Plan: "Pro (Paid)", ExpiresAt: &expires, IsPro: true}
	default:
		return models.SubscriptionStatus{Plan: "Free", IsPro: false}
	}
}

// anchorDate возвращает дату, от которой отсчитывается продление: текущее
// окончание, если оно в будущем, иначе now
func anchorDate(user *models.User, now time.Time) time.Time {
	if end := user.ActiveEndDate(); end != nil && end.After(now) {
		return end.UTC()
	}
	return now
}

// AddCalendarMonths прибавляет календарные месяцы с поджатием дня к концу
// месяца: 31 января + 1 месяц = последний день февраля, а не 2-3 марта,
// как при наивном time.AddDate.
func AddCalendarMonths(t time.Time, months int) time.Time {
	t = t.UTC()
	year, month, day := t.Date()

	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	// день 0 следующего месяца — последний день целевого
	lastDay := time.Date(first.Year(), first.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDay {
		day = lastDay
	}

	return time.Date(first.Year(), first.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
