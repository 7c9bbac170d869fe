package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/TheLogeek/Smart-Expense-Tracker/internal/store"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/subscription"
	"github.com/TheLogeek/Smart-Expense-Tracker/pkg/models"
)

// ErrAlreadyReferred сигнализирует, что реферальная связь для приглашенного
// уже записана. Для пользователя это не ошибка, а no-op.
var ErrAlreadyReferred = errors.New("пользователь уже был приглашен")

// Типы реферальных бонусов
const (
	BonusTypeFirstProfile = "first_profile"
	BonusTypeUpgrade      = "upgrade"
)

// Notifier интерфейс уведомлений реферера о начисленном бонусе.
// Вызывается только после успешной фиксации изменений.
type Notifier interface {
	NotifyReferralBonus(ctx context.Context, referrerID, referredID int64, bonusType string, newEndDate *time.Time)
}

// MetricsRecorder интерфейс для записи метрик реферальных бонусов
type MetricsRecorder interface {
	RecordReferralBonus(bonusType string)
}

// Service представляет сервис реферальной программы
type Service struct {
	store    store.Store
	notifier Notifier
	metrics  MetricsRecorder
	logger   *zap.Logger
}

// NewService создает новый сервис рефералов. notifier и metrics опциональны.
func NewService(store store.Store, notifier Notifier, metrics MetricsRecorder, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}
}

// RecordReferral создает реферальную связь. Пользователь может быть приглашен
// только один раз: повторная запись для того же referred_id — no-op с
// сигналом ErrAlreadyReferred.
func (s *Service) RecordReferral(ctx context.Context, referrerID, referredID int64) (*models.Referral, error) {
	if referrerID == referredID {
		return nil, fmt.Errorf("пользователь не может пригласить сам себя")
	}

	existing, err := s.store.Referral().GetByReferredID(ctx, referredID)
	if err == nil && existing != nil {
		s.logger.Info("реферал уже записан",
			zap.Int64("referrer_id", existing.ReferrerID),
			zap.Int64("referred_id", referredID))
		return nil, ErrAlreadyReferred
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("ошибка проверки существующего реферала: %w", err)
	}

	referral := &models.Referral{
		ReferrerID:   referrerID,
		ReferredID:   referredID,
		ReferralDate: time.Now().UTC(),
	}
	if err := s.store.Referral().Create(ctx, referral); err != nil {
		return nil, fmt.Errorf("ошибка создания реферала: %w", err)
	}

	s.logger.Info("создан новый реферал",
		zap.Int64("referrer_id", referrerID),
		zap.Int64("referred_id", referredID))

	return referral, nil
}

// GrantFirstProfileBonus начисляет рефереру одноразовый бонус за первый
// профиль приглашенного. Флаг first_profile_bonus_granted переходит
// false→true ровно один раз; повторный вызов возвращает false и не трогает
// подписку реферера. Возвращает true, если бонус был начислен этим вызовом.
func (s *Service) GrantFirstProfileBonus(ctx context.Context, referredID int64, bonusDays int) (bool, error) {
	var (
		granted    bool
		referrerID int64
		newEndDate *time.Time
	)

	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		referral, err := tx.Referral().GetByReferredID(ctx, referredID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.logger.Warn("реферальная связь не найдена, бонус не начислен",
					zap.Int64("referred_id", referredID))
				return nil
			}
			return err
		}

		if referral.FirstProfileBonusGranted {
			s.logger.Info("бонус за первый профиль уже начислялся",
				zap.Int64("referred_id", referredID))
			return nil
		}

		referrer, err := tx.User().GetByTelegramID(ctx, referral.ReferrerID)
		if err != nil {
			return fmt.Errorf("ошибка получения реферера: %w", err)
		}

		if err := subscription.GrantBonusDays(referrer, time.Now(), bonusDays); err != nil {
			return err
		}
		if err := tx.User().Update(ctx, referrer); err != nil {
			return err
		}

		referral.FirstProfileBonusGranted = true
		if err := tx.Referral().Update(ctx, referral); err != nil {
			return err
		}

		granted = true
		referrerID = referral.ReferrerID
		newEndDate = referrer.SubscriptionEndDate
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("ошибка начисления бонуса за первый профиль: %w", err)
	}
	if !granted {
		return false, nil
	}

	s.afterGrant(ctx, BonusTypeFirstProfile, referrerID, referredID, bonusDays, newEndDate)
	return true, nil
}

// GrantUpgradeBonus начисляет рефереру бонус за платный апгрейд приглашенного.
// Гейта "уже выдан" нет: счетчик upgrade_bonus_count растет при каждом вызове.
// Не более одного вызова на каждый платеж обеспечивает вызывающий код,
// опираясь на идемпотентность верификации по референсу.
func (s *Service) GrantUpgradeBonus(ctx context.Context, referredID int64, bonusDays int) (bool, error) {
	var (
		granted    bool
		referrerID int64
		bonusCount int
		newEndDate *time.Time
	)

	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		referral, err := tx.Referral().GetByReferredID(ctx, referredID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.logger.Warn("реферальная связь не найдена, бонус не начислен",
					zap.Int64("referred_id", referredID))
				return nil
			}
			return err
		}

		referrer, err := tx.User().GetByTelegramID(ctx, referral.ReferrerID)
		if err != nil {
			return fmt.Errorf("ошибка получения реферера: %w", err)
		}

		if err := subscription.GrantBonusDays(referrer, time.Now(), bonusDays); err != nil {
			return err
		}
		if err := tx.User().Update(ctx, referrer); err != nil {
			return err
		}

		referral.UpgradeBonusCount++
		if err := tx.Referral().Update(ctx, referral); err != nil {
			return err
		}

		granted = true
		referrerID = referral.ReferrerID
		bonusCount = referral.UpgradeBonusCount
		newEndDate = referrer.SubscriptionEndDate
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("ошибка начисления бонуса за апгрейд: %w", err)
	}
	if !granted {
		return false, nil
	}

	s.logger.Info("начислен бонус за апгрейд",
		zap.Int64("referrer_id", referrerID),
		zap.Int64("referred_id", referredID),
		zap.Int("upgrade_bonus_count", bonusCount))

	s.afterGrant(ctx, BonusTypeUpgrade, referrerID, referredID, bonusDays, newEndDate)
	return true, nil
}

// GetStats получает статистику рефералов пользователя
func (s *Service) GetStats(ctx context.Context, referrerID int64) (*models.ReferralStats, error) {
	stats, err := s.store.Referral().GetStats(ctx, referrerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики рефералов: %w", err)
	}
	return stats, nil
}

// afterGrant выполняет побочные действия после зафиксированного начисления
func (s *Service) afterGrant(ctx context.Context, bonusType string, referrerID, referredID int64, bonusDays int, newEndDate *time.Time) {
	s.logger.Info("реферальный бонус начислен",
		zap.String("bonus_type", bonusType),
		zap.Int64("referrer_id", referrerID),
		zap.Int64("referred_id", referredID),
		zap.Int("bonus_days", bonusDays))

	if s.metrics != nil {
		s.metrics.RecordReferralBonus(bonusType)
	}
	if s.notifier != nil {
		s.notifier.NotifyReferralBonus(ctx, referrerID, referredID, bonusType, newEndDate)
	}
}
