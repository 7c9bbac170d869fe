package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/TheLogeek/Smart-Expense-Tracker/internal/metrics"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/notifier"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/store"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/subscription"
)

// SubscriptionSweepJob переводит аккаунты с истекшей подпиской на бесплатный
// план и уведомляет их владельцев. Джоба идемпотентна: повторный запуск по
// уже даунгрейднутым аккаунтам ничего не меняет.
type SubscriptionSweepJob struct {
	subscriptions *subscription.Service
	store         store.Store
	notifier      *notifier.TelegramNotifier
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewSubscriptionSweepJob создает новую джобу даунгрейда истекших подписок
func NewSubscriptionSweepJob(
	subscriptions *subscription.Service,
	store store.Store,
	notifier *notifier.TelegramNotifier,
	metrics *metrics.Metrics,
	logger *zap.Logger,
) *SubscriptionSweepJob {
	return &SubscriptionSweepJob{
		subscriptions: subscriptions,
		store:         store,
		notifier:      notifier,
		metrics:       metrics,
		logger:        logger,
	}
}

// Name возвращает имя джобы
func (j *SubscriptionSweepJob) Name() string {
	return "subscription_sweep"
}

// Run запускает джобу даунгрейда истекших подписок
func (j *SubscriptionSweepJob) Run(ctx context.Context) error {
	j.logger.Info("запуск джобы даунгрейда истекших подписок")

	downgraded, err := j.subscriptions.DowngradeExpired(ctx)
	if err != nil {
		return fmt.Errorf("ошибка даунгрейда истекших подписок: %w", err)
	}

	for _, telegramID := range downgraded {
		j.notifier.NotifyDowngrade(ctx, telegramID)
	}

	if j.metrics != nil {
		j.metrics.RecordDowngrades(len(downgraded))

		if count, err := j.store.User().CountActivePro(ctx); err != nil {
			j.logger.Error("ошибка подсчета активных Pro-аккаунтов", zap.Error(err))
		} else {
			j.metrics.SetActiveProUsers(count)
		}
	}

	j.logger.Info("джоба даунгрейда завершена", zap.Int("downgraded", len(downgraded)))
	return nil
}
