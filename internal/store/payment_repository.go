package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/TheLogeek/Smart-Expense-Tracker/pkg/models"
)

// PostgresPaymentRepository реализует PaymentRepository для PostgreSQL
type PostgresPaymentRepository struct {
	db     Querier
	logger *zap.Logger
}

// NewPaymentRepository создает новый репозиторий платежей
func NewPaymentRepository(db Querier, logger *zap.Logger) PaymentRepository {
	return &PostgresPaymentRepository{
		db:     db,
		logger: logger,
	}
}

// Create добавляет запись о платеже в журнал. Уникальный индекс по reference
// гарантирует не более одной записи на референс транзакции.
func (r *PostgresPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments_log (user_id, amount, currency, plan_type, reference, status, payment_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = time.Now().UTC()
	}
	if payment.Currency == "" {
		payment.Currency = "NGN"
	}

	err := r.db.QueryRow(
		ctx, query,
		payment.UserID,
		payment.Amount,
		payment.Currency,
		payment.PlanType,
		payment.Reference,
		payment.Status,
		payment.PaymentDate,
	).Scan(&payment.ID)

	if err != nil {
		return fmt.Errorf("ошибка создания записи о платеже: %w", err)
	}

	r.logger.Info("платеж записан в журнал",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("user_id", payment.UserID),
		zap.String("reference", payment.Reference),
		zap.String("status", payment.Status))

	return nil
}

// GetByReference получает платеж по референсу транзакции
func (r *PostgresPaymentRepository) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	query := `
		SELECT id, user_id, amount, currency, plan_type, reference, status, payment_date
		FROM payments_log
		WHERE reference = $1`

	payment := &models.Payment{}
	err := r.db.QueryRow(ctx, query, reference).Scan(
		&payment.ID,
		&payment.UserID,
		&payment.Amount,
		&payment.Currency,
		&payment.PlanType,
		&payment.Reference,
		&payment.Status,
		&payment.PaymentDate,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("платеж с референсом %s: %w", reference, ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка получения платежа: %w", err)
	}

	return payment, nil
}

// HasSuccessful проверяет, есть ли в журнале успешный платеж с этим
// референсом. Используется как проверка идемпотентности при повторной
// верификации.
func (r *PostgresPaymentRepository) HasSuccessful(ctx context.Context, reference string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM payments_log WHERE reference = $1 AND status = $2)`

	var exists bool
	err := r.db.QueryRow(ctx, query, reference, models.PaymentStatusSuccessful).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки платежа по референсу: %w", err)
	}

	return exists, nil
}
