package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/TheLogeek/Smart-Expense-Tracker/internal/payment"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/referral"
)

// PaystackWebhookHandler обрабатывает webhook'и от Paystack
type PaystackWebhookHandler struct {
	paymentService  *payment.Service
	referralService *referral.Service
	bonusDays       int
	secretKey       string
	logger          *zap.Logger
}

// NewPaystackWebhookHandler создает новый обработчик webhook'ов
func NewPaystackWebhookHandler(
	paymentService *payment.Service,
	referralService *referral.Service,
	bonusDays int,
	secretKey string,
	logger *zap.Logger,
) *PaystackWebhookHandler {
	return &PaystackWebhookHandler{
		paymentService:  paymentService,
		referralService: referralService,
		bonusDays:       bonusDays,
		secretKey:       secretKey,
		logger:          logger,
	}
}

// PaymentWebhook представляет событие webhook'а от Paystack
type PaymentWebhook struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

// HandleWebhook обрабатывает входящий webhook от Paystack. Событие — лишь
// сигнал: фактический статус всегда перепроверяется прямым запросом к шлюзу
// по референсу.
func (h *PaystackWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("получен webhook запрос",
		zap.String("method", r.Method),
		zap.String("url", r.URL.String()),
		zap.String("user_agent", r.UserAgent()))

	if r.Method != http.MethodPost {
		h.logger.Warn("неверный метод webhook запроса", zap.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("ошибка чтения тела запроса", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer r.Body.Close()

	if !h.verifySignature(r.Header.Get("x-paystack-signature"), body) {
		h.logger.Warn("неверная подпись webhook'а")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var webhook PaymentWebhook
	if err := json.Unmarshal(body, &webhook); err != nil {
		h.logger.Error("ошибка парсинга webhook'а", zap.Error(err))
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	h.logger.Info("получен webhook от Paystack",
		zap.String("event", webhook.Event),
		zap.String("reference", webhook.Data.Reference))

	switch webhook.Event {
	case "charge.success":
		if err := h.handleChargeSuccess(r.Context(), webhook.Data.Reference); err != nil {
			h.logger.Error("ошибка обработки успешного платежа", zap.Error(err))
			// 5xx заставит Paystack повторить доставку; верификация
			// идемпотентна по референсу, так что повтор безопасен
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	default:
		h.logger.Info("событие webhook'а пропущено", zap.String("event", webhook.Event))
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleChargeSuccess верифицирует и применяет платеж по референсу. Бонус
// рефереру начисляется только если платеж был применен именно этим вызовом:
// на already_applied бонус не выдается повторно.
func (h *PaystackWebhookHandler) handleChargeSuccess(ctx context.Context, reference string) error {
	result, err := h.paymentService.VerifyAndApply(ctx, reference)
	if err != nil {
		if errors.Is(err, payment.ErrUnknownAccount) {
			// Аномалия уже залогирована для ручной сверки; Paystack
			// не должен ретраить бесконечно
			return nil
		}
		return err
	}

	h.logger.Info("платеж обработан",
		zap.String("reference", reference),
		zap.String("result", string(result.Status)))

	if result.Status == payment.ResultApplied && result.ReferredBy != nil {
		if _, err := h.referralService.GrantUpgradeBonus(ctx, result.UserTelegramID, h.bonusDays); err != nil {
			// Платеж уже применен; сбой бонуса не должен провоцировать
			// повторную доставку webhook'а
			h.logger.Error("ошибка начисления бонуса за апгрейд",
				zap.Error(err),
				zap.String("reference", reference),
				zap.Int64("referred_id", result.UserTelegramID))
		}
	}

	return nil
}

// VerifyRequest представляет запрос ручной верификации платежа
type VerifyRequest struct {
	Reference string `json:"reference"`
}

// VerifyResponse представляет ответ ручной верификации платежа
type VerifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleVerify обрабатывает ручную переверификацию платежа по референсу,
// например когда пользователь вернулся со страницы оплаты, а webhook еще не
// дошел. Транзиентный сбой шлюза отвечает 503, отказ шлюза — 200 со статусом
// denied: клиенту нужно различать "повторите позже" и "платеж не прошел".
func (h *PaystackWebhookHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reference == "" {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	result, err := h.paymentService.VerifyAndApply(r.Context(), req.Reference)
	if err != nil {
		if errors.Is(err, payment.ErrGatewayUnavailable) {
			writeJSON(w, http.StatusServiceUnavailable, VerifyResponse{
				Status:  "transient_error",
				Message: "Payment gateway is unavailable, please retry shortly.",
			})
			return
		}
		h.logger.Error("ошибка ручной верификации платежа",
			zap.Error(err), zap.String("reference", req.Reference))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if result.Status == payment.ResultApplied && result.ReferredBy != nil {
		if _, err := h.referralService.GrantUpgradeBonus(r.Context(), result.UserTelegramID, h.bonusDays); err != nil {
			h.logger.Error("ошибка начисления бонуса за апгрейд",
				zap.Error(err), zap.String("reference", req.Reference))
		}
	}

	writeJSON(w, http.StatusOK, VerifyResponse{
		Status:  string(result.Status),
		Message: result.Message,
	})
}

// writeJSON сериализует ответ в JSON
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// verifySignature проверяет подпись webhook'а. Paystack подписывает тело
// HMAC-SHA512 секретным ключом и передает hex-дайджест в заголовке.
func (h *PaystackWebhookHandler) verifySignature(signature string, body []byte) bool {
	if h.secretKey == "" || signature == "" {
		// Если секретный ключ не настроен, пропускаем проверку
		return true
	}

	mac := hmac.New(sha512.New, []byte(h.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}
