package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

// Config содержит все настройки приложения
type Config struct {
	Telegram     TelegramConfig
	Database     DatabaseConfig
	Paystack     PaystackConfig
	Subscription SubscriptionConfig
	App          AppConfig
}

// TelegramConfig настройки для Telegram бота
type TelegramConfig struct {
	Token string
	Debug bool
}

// DatabaseConfig настройки для подключения к базе данных
type DatabaseConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MigrationPath string
}

// PaystackConfig настройки платежного шлюза Paystack
type PaystackConfig struct {
	SecretKey   string
	BaseURL     string
	CallbackURL string
}

// SubscriptionConfig параметры жизненного цикла подписки
type SubscriptionConfig struct {
	TrialDays         int // длительность триала по умолчанию
	ReferredTrialDays int // длительность триала для приглашенных
	ReferralBonusDays int // бонус рефереру за событие
}

// AppConfig общие настройки приложения
type AppConfig struct {
	Environment string
	LogLevel    string
	Port        string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	// .env опционален: в продакшене переменные приходят из окружения
	_ = godotenv.Load()

	cfg := &Config{
		Telegram: TelegramConfig{
			Token: os.Getenv("TELEGRAM_BOT_TOKEN"),
			Debug: getEnvBool("TELEGRAM_DEBUG", false),
		},
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnv("DB_PORT", "5432"),
			User:          getEnv("DB_USER", "postgres"),
			Password:      os.Getenv("DB_PASSWORD"),
			DBName:        getEnv("DB_NAME", "expense_tracker"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			MigrationPath: getEnv("DB_MIGRATION_PATH", "scripts/migrations"),
		},
		Paystack: PaystackConfig{
			SecretKey:   os.Getenv("PAYSTACK_SECRET_KEY"),
			BaseURL:     getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
			CallbackURL: os.Getenv("PAYSTACK_CALLBACK_URL"),
		},
		Subscription: SubscriptionConfig{
			TrialDays:         getEnvInt("TRIAL_DAYS", 14),
			ReferredTrialDays: getEnvInt("REFERRED_TRIAL_DAYS", 17),
			ReferralBonusDays: getEnvInt("REFERRAL_BONUS_DAYS", 10),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Port:        getEnv("PORT", "8080"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет обязательные поля конфигурации
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN не задан")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD не задан")
	}
	if c.Paystack.SecretKey == "" {
		return fmt.Errorf("PAYSTACK_SECRET_KEY не задан")
	}
	if c.Subscription.TrialDays <= 0 || c.Subscription.ReferredTrialDays <= 0 {
		return fmt.Errorf("длительность триала должна быть положительной")
	}
	if c.Subscription.ReferralBonusDays <= 0 {
		return fmt.Errorf("REFERRAL_BONUS_DAYS должен быть положительным")
	}
	return nil
}

// GetDSN возвращает строку подключения к базе данных
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// ZapLevel возвращает уровень логирования zap по строке конфигурации
func (a *AppConfig) ZapLevel() zapcore.Level {
	switch a.LogLevel {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// IsProduction проверяет, запущено ли приложение в продакшене
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt возвращает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool возвращает булево значение переменной окружения
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
