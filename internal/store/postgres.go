package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/TheLogeek/Smart-Expense-Tracker/internal/config"
	"github.com/TheLogeek/Smart-Expense-Tracker/pkg/models"
)

// ErrNotFound возвращается, когда запрошенная запись отсутствует в хранилище
var ErrNotFound = errors.New("запись не найдена")

// Querier — общий интерфейс выполнения запросов, который реализуют и пул
// подключений, и транзакция pgx. Репозитории работают через него, поэтому
// один и тот же код выполняется как вне, так и внутри транзакции.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store представляет интерфейс для работы с базой данных
type Store interface {
	User() UserRepository
	Payment() PaymentRepository
	Referral() ReferralRepository
	// WithinTx выполняет fn в одной транзакции: все операции репозиториев
	// переданного Store либо фиксируются вместе, либо откатываются вместе.
	WithinTx(ctx context.Context, fn func(Store) error) error
	DB() *pgxpool.Pool
	Close() error
}

// UserRepository интерфейс для работы с аккаунтами пользователей
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	GetExpired(ctx context.Context, now time.Time) ([]*models.User, error)
	GetExpiring(ctx context.Context, from, to time.Time) ([]*models.User, error)
	CountActivePro(ctx context.Context) (int, error)
}

// PaymentRepository интерфейс для работы с журналом платежей
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByReference(ctx context.Context, reference string) (*models.Payment, error)
	HasSuccessful(ctx context.Context, reference string) (bool, error)
}

// ReferralRepository интерфейс для работы с реферальными связями
type ReferralRepository interface {
	Create(ctx context.Context, referral *models.Referral) error
	GetByReferredID(ctx context.Context, referredID int64) (*models.Referral, error)
	Update(ctx context.Context, referral *models.Referral) error
	GetStats(ctx context.Context, referrerID int64) (*models.ReferralStats, error)
}

// store реализует интерфейс Store
type store struct {
	pool     *pgxpool.Pool // nil внутри транзакции
	logger   *zap.Logger
	user     UserRepository
	payment  PaymentRepository
	referral ReferralRepository
}

// NewStore создает новое подключение к базе данных
func NewStore(cfg *config.Config, logger *zap.Logger) (Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ошибка проверки подключения к базе данных: %w", err)
	}

	logger.Info("успешное подключение к базе данных PostgreSQL")

	s := newWithQuerier(pool, logger)
	s.pool = pool
	return s, nil
}

// newWithQuerier собирает набор репозиториев поверх переданного Querier
func newWithQuerier(db Querier, logger *zap.Logger) *store {
	return &store{
		logger:   logger,
		user:     NewUserRepository(db, logger),
		payment:  NewPaymentRepository(db, logger),
		referral: NewReferralRepository(db, logger),
	}
}

// User возвращает репозиторий пользователей
func (s *store) User() UserRepository {
	return s.user
}

// Payment возвращает репозиторий платежей
func (s *store) Payment() PaymentRepository {
	return s.payment
}

// Referral возвращает репозиторий рефералов
func (s *store) Referral() ReferralRepository {
	return s.referral
}

// WithinTx выполняет fn в одной транзакции. Вложенный вызов не открывает
// новую транзакцию, а продолжает текущую.
func (s *store) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка открытия транзакции: %w", err)
	}

	if err := fn(newWithQuerier(tx, s.logger)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Error("ошибка отката транзакции", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// DB возвращает пул подключений к базе данных
func (s *store) DB() *pgxpool.Pool {
	return s.pool
}

// Close закрывает подключение к базе данных
func (s *store) Close() error {
	if s.pool != nil {
		s.logger.Info("закрытие подключения к базе данных")
		s.pool.Close()
	}
	return nil
}

// userRepository реализует UserRepository
type userRepository struct {
	db     Querier
	logger *zap.Logger
}

// NewUserRepository создает новый репозиторий пользователей
func NewUserRepository(db Querier, logger *zap.Logger) UserRepository {
	return &userRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `id, telegram_id, username, first_name, last_name, is_pro,
       subscription_plan, subscription_duration, trial_start_date, trial_end_date,
       subscription_start_date, subscription_end_date, referred_by,
       daily_reminders_enabled, created_at, updated_at`

// Create создает нового пользователя
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (telegram_id, username, first_name, last_name, is_pro,
		                   subscription_plan, subscription_duration, trial_start_date, trial_end_date,
		                   subscription_start_date, subscription_end_date, referred_by,
		                   daily_reminders_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.SubscriptionPlan == "" {
		user.SubscriptionPlan = models.PlanFree
	}

	err := r.db.QueryRow(ctx, query,
		user.TelegramID, user.Username, user.FirstName, user.LastName, user.IsPro,
		user.SubscriptionPlan, user.SubscriptionDuration, user.TrialStartDate, user.TrialEndDate,
		user.SubscriptionStartDate, user.SubscriptionEndDate, user.ReferredBy,
		user.DailyRemindersEnabled, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)

	if err != nil {
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	r.logger.Info("пользователь создан",
		zap.Int64("user_id", user.ID),
		zap.Int64("telegram_id", user.TelegramID),
		zap.String("subscription_plan", user.SubscriptionPlan))

	return nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (r *userRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`

	user := &models.User{}
	err := r.db.QueryRow(ctx, query, telegramID).Scan(
		&user.ID, &user.TelegramID, &user.Username, &user.FirstName, &user.LastName, &user.IsPro,
		&user.SubscriptionPlan, &user.SubscriptionDuration, &user.TrialStartDate, &user.TrialEndDate,
		&user.SubscriptionStartDate, &user.SubscriptionEndDate, &user.ReferredBy,
		&user.DailyRemindersEnabled, &user.CreatedAt, &user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("пользователь с telegram_id %d: %w", telegramID, ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка получения пользователя по Telegram ID: %w", err)
	}

	return user, nil
}

// Update обновляет пользователя
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET username = $2, first_name = $3, last_name = $4, is_pro = $5,
		    subscription_plan = $6, subscription_duration = $7, trial_start_date = $8, trial_end_date = $9,
		    subscription_start_date = $10, subscription_end_date = $11, referred_by = $12,
		    daily_reminders_enabled = $13, updated_at = $14
		WHERE telegram_id = $1`

	user.UpdatedAt = time.Now().UTC()

	result, err := r.db.Exec(ctx, query,
		user.TelegramID, user.Username, user.FirstName, user.LastName, user.IsPro,
		user.SubscriptionPlan, user.SubscriptionDuration, user.TrialStartDate, user.TrialEndDate,
		user.SubscriptionStartDate, user.SubscriptionEndDate, user.ReferredBy,
		user.DailyRemindersEnabled, user.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("ошибка обновления пользователя: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("пользователь с telegram_id %d: %w", user.TelegramID, ErrNotFound)
	}

	return nil
}

// GetExpired получает Pro-пользователей, чей триал или платный период
// закончился к моменту now
func (r *userRepository) GetExpired(ctx context.Context, now time.Time) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE is_pro = TRUE
		  AND ((subscription_plan = $2 AND trial_end_date <= $1)
		    OR (subscription_plan = $3 AND subscription_end_date <= $1))`

	return r.queryUsers(ctx, query, now.UTC(), models.PlanTrial, models.PlanPaid)
}

// GetExpiring получает Pro-пользователей, чья подписка истекает в интервале
// [from, to]
func (r *userRepository) GetExpiring(ctx context.Context, from, to time.Time) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE is_pro = TRUE
		  AND ((subscription_plan = $3 AND trial_end_date >= $1 AND trial_end_date <= $2)
		    OR (subscription_plan = $4 AND subscription_end_date >= $1 AND subscription_end_date <= $2))`

	return r.queryUsers(ctx, query, from.UTC(), to.UTC(), models.PlanTrial, models.PlanPaid)
}

// CountActivePro подсчитывает количество аккаунтов с активным Pro-доступом
func (r *userRepository) CountActivePro(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE is_pro = TRUE`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета Pro-аккаунтов: %w", err)
	}
	return count, nil
}

// queryUsers выполняет запрос со стандартным набором колонок пользователя
func (r *userRepository) queryUsers(ctx context.Context, query string, args ...any) ([]*models.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки пользователей: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		err := rows.Scan(
			&user.ID, &user.TelegramID, &user.Username, &user.FirstName, &user.LastName, &user.IsPro,
			&user.SubscriptionPlan, &user.SubscriptionDuration, &user.TrialStartDate, &user.TrialEndDate,
			&user.SubscriptionStartDate, &user.SubscriptionEndDate, &user.ReferredBy,
			&user.DailyRemindersEnabled, &user.CreatedAt, &user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}
