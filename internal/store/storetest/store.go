// Package storetest содержит in-memory реализацию store.Store для юнит-тестов
// сервисов без реальной базы данных.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TheLogeek/Smart-Expense-Tracker/internal/store"
	"github.com/TheLogeek/Smart-Expense-Tracker/pkg/models"
)

// Store — потокобезопасное in-memory хранилище. WithinTx выполняет fn над тем
// же хранилищем без изоляции: для проверки бизнес-логики этого достаточно.
type Store struct {
	mu        sync.Mutex
	users     map[int64]*models.User     // по telegram_id
	payments  map[string]*models.Payment // по референсу
	referrals map[int64]*models.Referral // по referred_id
	seq       int64
}

// New создает пустое in-memory хранилище
func New() *Store {
	return &Store{
		users:     make(map[int64]*models.User),
		payments:  make(map[string]*models.Payment),
		referrals: make(map[int64]*models.Referral),
	}
}

// AddUser кладет копию пользователя в хранилище
func (s *Store) AddUser(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *user
	s.users[user.TelegramID] = &copied
}

// UserByTelegramID возвращает копию пользователя для проверок в тестах
func (s *Store) UserByTelegramID(telegramID int64) (*models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[telegramID]
	if !ok {
		return nil, false
	}
	copied := *u
	return &copied, true
}

// PaymentCount возвращает количество записей в журнале платежей
func (s *Store) PaymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

// ReferralByReferredID возвращает копию реферальной связи для проверок
func (s *Store) ReferralByReferredID(referredID int64) (*models.Referral, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.referrals[referredID]
	if !ok {
		return nil, false
	}
	copied := *r
	return &copied, true
}

// User возвращает репозиторий пользователей
func (s *Store) User() store.UserRepository { return &userRepo{s} }

// Payment возвращает репозиторий платежей
func (s *Store) Payment() store.PaymentRepository { return &paymentRepo{s} }

// Referral возвращает репозиторий рефералов
func (s *Store) Referral() store.ReferralRepository { return &referralRepo{s} }

// WithinTx выполняет fn над тем же хранилищем
func (s *Store) WithinTx(ctx context.Context, fn func(store.Store) error) error {
	return fn(s)
}

// DB отсутствует у in-memory хранилища
func (s *Store) DB() *pgxpool.Pool { return nil }

// Close ничего не делает
func (s *Store) Close() error { return nil }

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.TelegramID]; ok {
		return fmt.Errorf("пользователь с telegram_id %d уже существует", user.TelegramID)
	}
	r.s.seq++
	user.ID = r.s.seq
	copied := *user
	r.s.users[user.TelegramID] = &copied
	return nil
}

func (r *userRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[telegramID]
	if !ok {
		return nil, fmt.Errorf("пользователь с telegram_id %d: %w", telegramID, store.ErrNotFound)
	}
	copied := *u
	return &copied, nil
}

func (r *userRepo) Update(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.TelegramID]; !ok {
		return fmt.Errorf("пользователь с telegram_id %d: %w", user.TelegramID, store.ErrNotFound)
	}
	copied := *user
	r.s.users[user.TelegramID] = &copied
	return nil
}

func (r *userRepo) GetExpired(ctx context.Context, now time.Time) ([]*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []*models.User
	for _, u := range r.s.users {
		if !u.IsPro {
			continue
		}
		if end := u.ActiveEndDate(); end != nil && !end.After(now) {
			copied := *u
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *userRepo) GetExpiring(ctx context.Context, from, to time.Time) ([]*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []*models.User
	for _, u := range r.s.users {
		if !u.IsPro {
			continue
		}
		if end := u.ActiveEndDate(); end != nil && !end.Before(from) && !end.After(to) {
			copied := *u
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *userRepo) CountActivePro(ctx context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, u := range r.s.users {
		if u.IsPro {
			count++
		}
	}
	return count, nil
}

type paymentRepo struct{ s *Store }

func (r *paymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.payments[payment.Reference]; ok {
		return fmt.Errorf("платеж с референсом %s уже существует", payment.Reference)
	}
	r.s.seq++
	payment.ID = r.s.seq
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = time.Now().UTC()
	}
	copied := *payment
	r.s.payments[payment.Reference] = &copied
	return nil
}

func (r *paymentRepo) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[reference]
	if !ok {
		return nil, fmt.Errorf("платеж с референсом %s: %w", reference, store.ErrNotFound)
	}
	copied := *p
	return &copied, nil
}

func (r *paymentRepo) HasSuccessful(ctx context.Context, reference string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[reference]
	return ok && p.Status == models.PaymentStatusSuccessful, nil
}

type referralRepo struct{ s *Store }

func (r *referralRepo) Create(ctx context.Context, referral *models.Referral) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.referrals[referral.ReferredID]; ok {
		return fmt.Errorf("реферал для referred_id %d уже существует", referral.ReferredID)
	}
	r.s.seq++
	referral.ID = r.s.seq
	if referral.ReferralDate.IsZero() {
		referral.ReferralDate = time.Now().UTC()
	}
	copied := *referral
	r.s.referrals[referral.ReferredID] = &copied
	return nil
}

func (r *referralRepo) GetByReferredID(ctx context.Context, referredID int64) (*models.Referral, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ref, ok := r.s.referrals[referredID]
	if !ok {
		return nil, fmt.Errorf("реферал для referred_id %d: %w", referredID, store.ErrNotFound)
	}
	copied := *ref
	return &copied, nil
}

func (r *referralRepo) Update(ctx context.Context, referral *models.Referral) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for referredID, existing := range r.s.referrals {
		if existing.ID == referral.ID {
			copied := *referral
			r.s.referrals[referredID] = &copied
			return nil
		}
	}
	return fmt.Errorf("реферал с id %d: %w", referral.ID, store.ErrNotFound)
}

func (r *referralRepo) GetStats(ctx context.Context, referrerID int64) (*models.ReferralStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stats := &models.ReferralStats{}
	for _, ref := range r.s.referrals {
		if ref.ReferrerID != referrerID {
			continue
		}
		stats.TotalReferrals++
		if ref.FirstProfileBonusGranted {
			stats.FirstProfileGrants++
		}
		stats.UpgradeGrants += ref.UpgradeBonusCount
	}
	return stats, nil
}
