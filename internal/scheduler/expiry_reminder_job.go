package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/TheLogeek/Smart-Expense-Tracker/internal/metrics"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/notifier"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/subscription"
)

// ExpiryReminderJob напоминает пользователям о подписке, истекающей в
// ближайшие 24 часа. Рассчитана на суточный интервал планировщика: при более
// частом запуске пользователь получит напоминание повторно.
type ExpiryReminderJob struct {
	subscriptions *subscription.Service
	notifier      *notifier.TelegramNotifier
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewExpiryReminderJob создает новую джобу напоминаний об истечении
func NewExpiryReminderJob(
	subscriptions *subscription.Service,
	notifier *notifier.TelegramNotifier,
	metrics *metrics.Metrics,
	logger *zap.Logger,
) *ExpiryReminderJob {
	return &ExpiryReminderJob{
		subscriptions: subscriptions,
		notifier:      notifier,
		metrics:       metrics,
		logger:        logger,
	}
}

// Name возвращает имя джобы
func (j *ExpiryReminderJob) Name() string {
	return "expiry_reminder"
}

// Run запускает джобу напоминаний
func (j *ExpiryReminderJob) Run(ctx context.Context) error {
	j.logger.Info("запуск джобы напоминаний об истечении подписки")

	expiring, err := j.subscriptions.GetExpiring(ctx)
	if err != nil {
		return fmt.Errorf("ошибка выборки истекающих подписок: %w", err)
	}

	sent := 0
	for _, user := range expiring {
		endDate := user.ActiveEndDate()
		if endDate == nil {
			continue
		}
		j.notifier.NotifyExpiring(ctx, user.TelegramID, *endDate)
		sent++
	}

	if j.metrics != nil {
		j.metrics.RecordExpiryReminders(sent)
	}

	j.logger.Info("джоба напоминаний завершена",
		zap.Int("expiring", len(expiring)),
		zap.Int("sent", sent))
	return nil
}
