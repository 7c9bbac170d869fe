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

// PostgresReferralRepository реализует ReferralRepository для PostgreSQL
type PostgresReferralRepository struct {
	db     Querier
	logger *zap.Logger
}

// NewReferralRepository создает новый репозиторий рефералов
func NewReferralRepository(db Querier, logger *zap.Logger) ReferralRepository {
	return &PostgresReferralRepository{
		db:     db,
		logger: logger,
	}
}

// Create создает новую реферальную связь. Уникальный индекс по referred_id
// гарантирует, что пользователь может быть приглашен только один раз.
func (r *PostgresReferralRepository) Create(ctx context.Context, referral *models.Referral) error {
	query := `
		INSERT INTO referrals (referrer_id, referred_id, first_profile_bonus_granted,
		                       upgrade_bonus_count, referral_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	if referral.ReferralDate.IsZero() {
		referral.ReferralDate = time.Now().UTC()
	}

	err := r.db.QueryRow(
		ctx, query,
		referral.ReferrerID,
		referral.ReferredID,
		referral.FirstProfileBonusGranted,
		referral.UpgradeBonusCount,
		referral.ReferralDate,
	).Scan(&referral.ID)

	if err != nil {
		return fmt.Errorf("ошибка создания реферала: %w", err)
	}

	return nil
}

// GetByReferredID получает реферальную связь по ID приглашенного пользователя
func (r *PostgresReferralRepository) GetByReferredID(ctx context.Context, referredID int64) (*models.Referral, error) {
	query := `
		SELECT id, referrer_id, referred_id, first_profile_bonus_granted,
		       upgrade_bonus_count, referral_date
		FROM referrals
		WHERE referred_id = $1`

	referral := &models.Referral{}
	err := r.db.QueryRow(ctx, query, referredID).Scan(
		&referral.ID,
		&referral.ReferrerID,
		&referral.ReferredID,
		&referral.FirstProfileBonusGranted,
		&referral.UpgradeBonusCount,
		&referral.ReferralDate,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("реферал для referred_id %d: %w", referredID, ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка получения реферала: %w", err)
	}

	return referral, nil
}

// Update обновляет флаг и счетчик выданных бонусов реферальной связи
func (r *PostgresReferralRepository) Update(ctx context.Context, referral *models.Referral) error {
	query := `
		UPDATE referrals
		SET first_profile_bonus_granted = $2, upgrade_bonus_count = $3
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		referral.ID,
		referral.FirstProfileBonusGranted,
		referral.UpgradeBonusCount,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления реферала: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("реферал с id %d: %w", referral.ID, ErrNotFound)
	}

	return nil
}

// GetStats получает статистику рефералов пользователя
func (r *PostgresReferralRepository) GetStats(ctx context.Context, referrerID int64) (*models.ReferralStats, error) {
	query := `
		SELECT
			COUNT(*) AS total_referrals,
			COUNT(CASE WHEN first_profile_bonus_granted THEN 1 END) AS first_profile_grants,
			COALESCE(SUM(upgrade_bonus_count), 0) AS upgrade_grants
		FROM referrals
		WHERE referrer_id = $1`

	stats := &models.ReferralStats{}
	err := r.db.QueryRow(ctx, query, referrerID).Scan(
		&stats.TotalReferrals,
		&stats.FirstProfileGrants,
		&stats.UpgradeGrants,
	)

	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики рефералов: %w", err)
	}

	return stats, nil
}
