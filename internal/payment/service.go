package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/TheLogeek/Smart-Expense-Tracker/internal/store"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/subscription"
	"github.com/TheLogeek/Smart-Expense-Tracker/pkg/models"
)

var (
	// ErrGatewayUnavailable — транспортный сбой при обращении к шлюзу.
	// Отличим от отказа шлюза: вызывающий код может предложить пользователю
	// повторить верификацию вместо "платеж отклонен".
	ErrGatewayUnavailable = errors.New("платежный шлюз недоступен")

	// ErrUnknownAccount — метаданные транзакции ссылаются на аккаунт,
	// которого нет в хранилище. Платеж не применяется; аномалия логируется
	// для ручной сверки, так как деньги могли быть списаны.
	ErrUnknownAccount = errors.New("аккаунт из метаданных платежа не найден")
)

// kobosPerNaira — курс пересчета: Paystack принимает суммы в кобо
var kobosPerNaira = decimal.NewFromInt(100)

// ResultStatus представляет исход верификации платежа
type ResultStatus string

const (
	ResultApplied        ResultStatus = "applied"         // платеж применен, подписка продлена
	ResultAlreadyApplied ResultStatus = "already_applied" // референс уже был применен ранее
	ResultDenied         ResultStatus = "denied"          // шлюз не подтвердил оплату
)

// VerifyResult представляет типизированный результат верификации
type VerifyResult struct {
	Status         ResultStatus
	Message        string
	Reference      string
	UserTelegramID int64
	PlanType       string
	ReferredBy     *int64     // telegram_id пригласившего, если аккаунт реферальный
	NewEndDate     *time.Time // новая дата окончания подписки (для applied)
}

// Gateway интерфейс платежного шлюза. Внедряется снаружи, чтобы сервис
// можно было тестировать на фейке.
type Gateway interface {
	InitializePayment(ctx context.Context, email string, amountKobo int64, metadata TransactionMetadata, callbackURL string) (*InitializeResponse, error)
	VerifyTransaction(ctx context.Context, reference string) (*VerifyResponse, error)
}

// MetricsRecorder интерфейс для записи метрик верификации платежей
type MetricsRecorder interface {
	RecordPaymentVerification(result string)
	ObserveGatewayVerifyDuration(seconds float64)
}

// Service представляет сервис верификации и применения платежей
type Service struct {
	store   store.Store
	gateway Gateway
	metrics MetricsRecorder
	logger  *zap.Logger
}

// NewService создает новый сервис платежей
func NewService(store store.Store, gateway Gateway, metrics MetricsRecorder, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		gateway: gateway,
		metrics: metrics,
		logger:  logger,
	}
}

// InitiatePayment инициализирует транзакцию для выбранного тарифного плана
// и возвращает ссылку на оплату и референс
func (s *Service) InitiatePayment(ctx context.Context, user *models.User, planType, callbackURL string) (*InitializeResponse, error) {
	plan, err := subscription.PlanByType(planType)
	if err != nil {
		return nil, err
	}

	email := user.Username
	if email == "" {
		email = fmt.Sprintf("%d", user.TelegramID)
	}
	email += "@telegram.org"

	amountKobo := plan.Price.Mul(kobosPerNaira).IntPart()

	resp, err := s.gateway.InitializePayment(ctx, email, amountKobo, TransactionMetadata{
		UserTelegramID: user.TelegramID,
		PlanType:       plan.PlanType,
		DurationMonths: plan.DurationMonths,
	}, callbackURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if !resp.Status {
		return nil, fmt.Errorf("шлюз отклонил инициализацию платежа: %s", resp.Message)
	}

	return resp, nil
}

// VerifyAndApply запрашивает у шлюза статус транзакции по референсу и на
// подтвержденном успехе применяет платеж: запись в журнал и продление
// подписки фиксируются в одной транзакции. Операция идемпотентна по
// референсу: повторная верификация уже примененного платежа не продлевает
// подписку второй раз.
func (s *Service) VerifyAndApply(ctx context.Context, reference string) (*VerifyResult, error) {
	started := time.Now()
	resp, err := s.gateway.VerifyTransaction(ctx, reference)
	if s.metrics != nil {
		s.metrics.ObserveGatewayVerifyDuration(time.Since(started).Seconds())
	}
	if err != nil {
		s.recordResult("transient_error")
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if !resp.Status {
		s.recordResult(string(ResultDenied))
		return &VerifyResult{
			Status:    ResultDenied,
			Message:   fmt.Sprintf("Paystack API call failed: %s", resp.Message),
			Reference: reference,
		}, nil
	}

	// Внешний status=true еще не означает оплату: решает вложенный статус
	if resp.Data.Status != TransactionStatusSuccess {
		s.recordResult(string(ResultDenied))
		gatewayMsg := resp.Data.GatewayResponse
		if gatewayMsg == "" {
			gatewayMsg = resp.Message
		}
		return &VerifyResult{
			Status:    ResultDenied,
			Message:   fmt.Sprintf("Transaction status is %q. Gateway response: %s", resp.Data.Status, gatewayMsg),
			Reference: reference,
		}, nil
	}

	meta := resp.Data.Metadata
	plan, err := subscription.PlanByType(meta.PlanType)
	if err != nil {
		s.recordResult(string(ResultDenied))
		return nil, fmt.Errorf("некорректные метаданные транзакции %s: %w", reference, err)
	}

	months := meta.DurationMonths
	if months <= 0 {
		months = plan.DurationMonths
	}

	now := time.Now().UTC()
	var result *VerifyResult

	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		user, err := tx.User().GetByTelegramID(ctx, meta.UserTelegramID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: telegram_id %d, референс %s",
					ErrUnknownAccount, meta.UserTelegramID, reference)
			}
			return err
		}

		applied, err := tx.Payment().HasSuccessful(ctx, reference)
		if err != nil {
			return err
		}
		if applied {
			result = &VerifyResult{
				Status:         ResultAlreadyApplied,
				Message:        "Payment already applied.",
				Reference:      reference,
				UserTelegramID: user.TelegramID,
				PlanType:       plan.PlanType,
				ReferredBy:     user.ReferredBy,
			}
			return nil
		}

		record := &models.Payment{
			UserID:      user.TelegramID,
			Amount:      plan.Price,
			Currency:    plan.Currency,
			PlanType:    plan.PlanType,
			Reference:   reference,
			Status:      models.PaymentStatusSuccessful,
			PaymentDate: now,
		}
		if err := tx.Payment().Create(ctx, record); err != nil {
			return err
		}

		if err := subscription.ExtendOrActivatePaid(user, now, months, plan.PlanType); err != nil {
			return err
		}
		if err := tx.User().Update(ctx, user); err != nil {
			return err
		}

		result = &VerifyResult{
			Status:         ResultApplied,
			Message:        "Payment verified successfully and subscription activated!",
			Reference:      reference,
			UserTelegramID: user.TelegramID,
			PlanType:       plan.PlanType,
			ReferredBy:     user.ReferredBy,
			NewEndDate:     user.SubscriptionEndDate,
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, ErrUnknownAccount) {
			s.recordResult("unknown_account")
			s.logger.Error("платеж подтвержден шлюзом, но аккаунт не найден: требуется ручная сверка",
				zap.String("reference", reference),
				zap.Int64("telegram_id", meta.UserTelegramID))
		} else {
			s.recordResult("storage_error")
		}
		return nil, err
	}

	s.recordResult(string(result.Status))
	s.logger.Info("верификация платежа завершена",
		zap.String("reference", reference),
		zap.String("result", string(result.Status)),
		zap.Int64("telegram_id", result.UserTelegramID))

	return result, nil
}

// recordResult записывает метрику исхода верификации
func (s *Service) recordResult(result string) {
	if s.metrics != nil {
		s.metrics.RecordPaymentVerification(result)
	}
}
