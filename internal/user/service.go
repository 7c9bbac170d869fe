package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/TheLogeek/Smart-Expense-Tracker/internal/config"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/referral"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/store"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/subscription"
	"github.com/TheLogeek/Smart-Expense-Tracker/pkg/models"
)

// Service представляет сервис управления аккаунтами пользователей
type Service struct {
	store     store.Store
	referrals *referral.Service
	cfg       config.SubscriptionConfig
	logger    *zap.Logger
}

// NewService создает новый сервис пользователей
func NewService(store store.Store, referrals *referral.Service, cfg config.SubscriptionConfig, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		referrals: referrals,
		cfg:       cfg,
		logger:    logger,
	}
}

// GetOrCreate возвращает аккаунт по Telegram ID, создавая его при первом
// обращении. Новому аккаунту сразу стартует триал: 14 дней по умолчанию,
// 17 — если пользователь пришел по реферальной ссылке. Реферальная связь
// записывается один раз; самоприглашение игнорируется.
func (s *Service) GetOrCreate(ctx context.Context, telegramID int64, username, firstName, lastName string, referrerID *int64) (*models.User, bool, error) {
	user, err := s.store.User().GetByTelegramID(ctx, telegramID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	trialDays := s.cfg.TrialDays
	var referredBy *int64

	if referrerID != nil && *referrerID != telegramID {
		if _, err := s.referrals.RecordReferral(ctx, *referrerID, telegramID); err != nil {
			if !errors.Is(err, referral.ErrAlreadyReferred) {
				s.logger.Warn("не удалось записать реферальную связь",
					zap.Error(err),
					zap.Int64("referrer_id", *referrerID),
					zap.Int64("referred_id", telegramID))
			}
		} else {
			referredBy = referrerID
			trialDays = s.cfg.ReferredTrialDays
		}
	}

	user = &models.User{
		TelegramID: telegramID,
		Username:   username,
		FirstName:  firstName,
		LastName:   lastName,
		ReferredBy: referredBy,
	}
	if err := subscription.StartTrial(user, time.Now().UTC(), trialDays); err != nil {
		return nil, false, fmt.Errorf("ошибка старта триала: %w", err)
	}

	if err := s.store.User().Create(ctx, user); err != nil {
		return nil, false, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	s.logger.Info("зарегистрирован новый пользователь",
		zap.Int64("telegram_id", telegramID),
		zap.Int("trial_days", trialDays),
		zap.Bool("referred", referredBy != nil))

	return user, true, nil
}

// RegisterFirstProfile вызывается, когда пользователь создает свой первый
// профиль расходов. Если пользователь был приглашен, рефереру начисляется
// одноразовый бонус. Повторные вызовы безопасны: бонус выдается не более
// одного раза.
func (s *Service) RegisterFirstProfile(ctx context.Context, telegramID int64) error {
	granted, err := s.referrals.GrantFirstProfileBonus(ctx, telegramID, s.cfg.ReferralBonusDays)
	if err != nil {
		return fmt.Errorf("ошибка обработки первого профиля: %w", err)
	}
	if granted {
		s.logger.Info("первый профиль пользователя активировал реферальный бонус",
			zap.Int64("telegram_id", telegramID))
	}
	return nil
}
