package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/TheLogeek/Smart-Expense-Tracker/pkg/models"
)

// Цены Pro-подписки в найрах
const (
	MonthlyProPriceNGN = 500
	YearlyProPriceNGN  = 5000
)

// UserRepository интерфейс для работы с аккаунтами пользователей
type UserRepository interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	GetExpired(ctx context.Context, now time.Time) ([]*models.User, error)
	GetExpiring(ctx context.Context, from, to time.Time) ([]*models.User, error)
}

// Service представляет сервис управления жизненным циклом подписки
type Service struct {
	userRepo UserRepository
	logger   *zap.Logger
}

// NewService создает новый сервис подписки
func NewService(userRepo UserRepository, logger *zap.Logger) *Service {
	return &Service{
		userRepo: userRepo,
		logger:   logger,
	}
}

// Plans возвращает доступные тарифные планы Pro-подписки
func Plans() []models.ProPlan {
	monthlyTotal := int64(MonthlyProPriceNGN * 12)
	savingsPercent := (monthlyTotal - YearlyProPriceNGN) * 100 / monthlyTotal

	return []models.ProPlan{
		{
			PlanType:       models.DurationMonthly,
			DurationMonths: 1,
			Price:          decimal.NewFromInt(MonthlyProPriceNGN),
			Currency:       "NGN",
			Description:    "Pro subscription for 1 month",
		},
		{
			PlanType:       models.DurationYearly,
			DurationMonths: 12,
			Price:          decimal.NewFromInt(YearlyProPriceNGN),
			Currency:       "NGN",
			Description:    fmt.Sprintf("Pro subscription for 1 year (save %d%%)", savingsPercent),
		},
	}
}

// PlanByType возвращает тарифный план по его типу
func PlanByType(planType string) (*models.ProPlan, error) {
	for _, plan := range Plans() {
		if plan.PlanType == planType {
			return &plan, nil
		}
	}
	return nil, fmt.Errorf("тарифный план %q не найден", planType)
}

// GetStatus возвращает эффективное состояние подписки пользователя.
// Если при чтении обнаружено истечение, даунгрейд сохраняется в хранилище,
// но возвращаемая проекция корректна независимо от успеха записи.
func (s *Service) GetStatus(ctx context.Context, telegramID int64) (*models.SubscriptionStatus, error) {
	user, err := s.userRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	now := time.Now().UTC()
	status := EffectiveStatus(user, now)

	if CheckAndExpire(user, now) {
		if err := s.userRepo.Update(ctx, user); err != nil {
			s.logger.Error("ошибка сохранения даунгрейда при чтении статуса",
				zap.Error(err), zap.Int64("telegram_id", telegramID))
		} else {
			s.logger.Info("подписка истекла, аккаунт переведен на free",
				zap.Int64("telegram_id", telegramID))
		}
	}

	return &status, nil
}

// DowngradeExpired находит все аккаунты с истекшим триалом или платным
// периодом, переводит их на free и возвращает telegram_id даунгрейднутых.
// Повторный запуск по уже даунгрейднутым аккаунтам — no-op.
func (s *Service) DowngradeExpired(ctx context.Context) ([]int64, error) {
	now := time.Now().UTC()

	expired, err := s.userRepo.GetExpired(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки истекших подписок: %w", err)
	}

	var downgraded []int64
	for _, user := range expired {
		plan := user.SubscriptionPlan
		if !CheckAndExpire(user, now) {
			continue
		}
		if err := s.userRepo.Update(ctx, user); err != nil {
			s.logger.Error("ошибка сохранения даунгрейда",
				zap.Error(err), zap.Int64("telegram_id", user.TelegramID))
			continue
		}
		downgraded = append(downgraded, user.TelegramID)
		s.logger.Info("аккаунт переведен на free",
			zap.Int64("telegram_id", user.TelegramID),
			zap.String("expired_plan", plan))
	}

	return downgraded, nil
}

// GetExpiring возвращает пользователей, чья подписка (триал или платная)
// истекает в ближайшие 24 часа
func (s *Service) GetExpiring(ctx context.Context) ([]*models.User, error) {
	now := time.Now().UTC()

	users, err := s.userRepo.GetExpiring(ctx, now, now.Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки истекающих подписок: %w", err)
	}

	return users, nil
}
