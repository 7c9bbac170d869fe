package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/TheLogeek/Smart-Expense-Tracker/internal/bot"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/config"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/metrics"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/migrations"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/notifier"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/payment"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/referral"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/scheduler"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/store"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/subscription"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/user"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/webhook"
)

func main() {
	// Инициализация логгера
	logger, err := initLogger()
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("запуск приложения Smart Expense Tracker")

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("ошибка загрузки конфигурации", zap.Error(err))
	}

	// Инициализация базы данных
	db, err := store.NewStore(cfg, logger)
	if err != nil {
		logger.Fatal("ошибка инициализации базы данных", zap.Error(err))
	}
	defer db.Close()

	// Применение миграций
	if err := migrations.RunMigrations(cfg, logger); err != nil {
		logger.Fatal("ошибка применения миграций", zap.Error(err))
	}

	// Инициализация Telegram бота
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal("ошибка инициализации Telegram бота", zap.Error(err))
	}
	botAPI.Debug = cfg.Telegram.Debug

	botInfo, err := botAPI.GetMe()
	if err != nil {
		logger.Fatal("ошибка получения информации о боте", zap.Error(err))
	}
	logger.Info("Telegram бот инициализирован",
		zap.String("username", botInfo.UserName),
		zap.Int64("id", botInfo.ID))

	// Инициализация метрик
	metricsSystem := metrics.New()
	metricsHandler := metrics.NewHandler(metricsSystem, logger)

	// Инициализация Paystack клиента
	paystackClient := payment.NewPaystackClient(cfg.Paystack.SecretKey, cfg.Paystack.BaseURL, logger)
	logger.Info("Paystack клиент инициализирован", zap.String("base_url", cfg.Paystack.BaseURL))

	// Инициализация сервисов
	tgNotifier := notifier.NewTelegramNotifier(botAPI, logger)
	subscriptionService := subscription.NewService(db.User(), logger)
	paymentService := payment.NewService(db, paystackClient, metricsSystem, logger)
	referralService := referral.NewService(db, tgNotifier, metricsSystem, logger)
	userService := user.NewService(db, referralService, cfg.Subscription, logger)

	// Инициализация обработчика команд
	handler := bot.NewHandler(botAPI, userService, subscriptionService, paymentService, referralService, cfg.Paystack.CallbackURL, logger)

	// Инициализация планировщика задач: суточный даунгрейд и напоминания
	taskScheduler := scheduler.NewScheduler(logger)
	taskScheduler.AddJob(scheduler.NewSubscriptionSweepJob(subscriptionService, db, tgNotifier, metricsSystem, logger))
	taskScheduler.AddJob(scheduler.NewExpiryReminderJob(subscriptionService, tgNotifier, metricsSystem, logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Обработка сигналов для graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Запуск HTTP сервера для метрик и webhook'ов
	go startHTTPServer(ctx, cfg, metricsHandler, paymentService, referralService, logger)

	// Запуск планировщика задач (раз в сутки)
	go taskScheduler.Start(ctx, 24*time.Hour)

	// Запуск обработки обновлений
	go handleUpdates(ctx, botAPI, handler, logger)

	logger.Info("приложение запущено и готово к работе",
		zap.String("port", cfg.App.Port))

	// Ожидание сигнала завершения
	<-sigChan
	logger.Info("получен сигнал завершения, начинаем graceful shutdown")

	botAPI.StopReceivingUpdates()
	cancel()

	logger.Info("приложение завершено")
}

// initLogger инициализирует логгер
func initLogger() (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.OutputPaths = []string{"stdout", "logs/app.log"}
	config.ErrorOutputPaths = []string{"stderr", "logs/error.log"}

	// Создаем директорию для логов если её нет
	if err := os.MkdirAll("logs", 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории логов: %w", err)
	}

	return config.Build()
}

// handleUpdates обрабатывает обновления от Telegram
func handleUpdates(ctx context.Context, botAPI *tgbotapi.BotAPI, handler *bot.Handler, logger *zap.Logger) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := botAPI.GetUpdatesChan(updateConfig)

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}

			go func(update tgbotapi.Update) {
				if err := handler.HandleUpdate(ctx, update); err != nil {
					logger.Error("ошибка обработки обновления",
						zap.Int64("chat_id", update.Message.Chat.ID),
						zap.Error(err))
				}
			}(update)

		case <-ctx.Done():
			logger.Info("остановка обработки обновлений")
			return
		}
	}
}

// startHTTPServer запускает HTTP сервер для метрик и webhook'ов Paystack
func startHTTPServer(
	ctx context.Context,
	cfg *config.Config,
	handler *metrics.Handler,
	paymentService *payment.Service,
	referralService *referral.Service,
	logger *zap.Logger,
) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler.MetricsHandler())
	mux.HandleFunc("/health", handler.HealthHandler)

	webhookHandler := webhook.NewPaystackWebhookHandler(
		paymentService, referralService,
		cfg.Subscription.ReferralBonusDays,
		cfg.Paystack.SecretKey, logger)
	mux.HandleFunc("/webhook/paystack", webhookHandler.HandleWebhook)
	mux.HandleFunc("/payments/verify", webhookHandler.HandleVerify)

	server := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: mux,
	}

	logger.Info("HTTP сервер запущен", zap.String("address", server.Addr))

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ошибка HTTP сервера", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("ошибка при остановке HTTP сервера", zap.Error(err))
	}

	logger.Info("HTTP сервер остановлен")
}
