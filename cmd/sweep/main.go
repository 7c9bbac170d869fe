package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/TheLogeek/Smart-Expense-Tracker/internal/config"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/store"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/subscription"
)

// Ручной запуск даунгрейда истекших подписок, на случай когда суточная
// джоба не отработала или нужно прогнать свип до деплоя.
func main() {
	dryRun := flag.Bool("dry-run", false, "Показать истекшие подписки без фактического даунгрейда")
	flag.Parse()

	// Инициализация логгера
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Ошибка инициализации логгера:", err)
	}
	defer logger.Sync()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Ошибка загрузки конфигурации", zap.Error(err))
	}

	// Подключение к базе данных
	db, err := store.NewStore(cfg, logger)
	if err != nil {
		logger.Fatal("Ошибка подключения к базе данных", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()

	if *dryRun {
		expired, err := db.User().GetExpired(ctx, time.Now().UTC())
		if err != nil {
			logger.Fatal("Ошибка выборки истекших подписок", zap.Error(err))
		}

		for _, user := range expired {
			endDate := user.ActiveEndDate()
			fields := []zap.Field{
				zap.Int64("telegram_id", user.TelegramID),
				zap.String("plan", user.SubscriptionPlan),
			}
			if endDate != nil {
				fields = append(fields, zap.Time("end_date", *endDate))
			}
			logger.Info("будет переведен на free", fields...)
		}

		logger.Info("Dry-run завершен", zap.Int("expired_count", len(expired)))
		return
	}

	subscriptionService := subscription.NewService(db.User(), logger)

	downgraded, err := subscriptionService.DowngradeExpired(ctx)
	if err != nil {
		logger.Fatal("Ошибка даунгрейда истекших подписок", zap.Error(err))
	}

	logger.Info("Свип завершен успешно", zap.Int("downgraded_count", len(downgraded)))
}
