package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TheLogeek/Smart-Expense-Tracker/internal/payment"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/referral"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/store/storetest"
	"github.com/TheLogeek/Smart-Expense-Tracker/pkg/models"
)

const testSecretKey = "sk_test_secret"

type fakeGateway struct {
	verifyResp *payment.VerifyResponse
	verifyErr  error
}

func (g *fakeGateway) InitializePayment(ctx context.Context, email string, amountKobo int64, metadata payment.TransactionMetadata, callbackURL string) (*payment.InitializeResponse, error) {
	return nil, errors.New("не используется в тесте")
}

func (g *fakeGateway) VerifyTransaction(ctx context.Context, reference string) (*payment.VerifyResponse, error) {
	return g.verifyResp, g.verifyErr
}

func newTestHandler(db *storetest.Store, gateway payment.Gateway) *PaystackWebhookHandler {
	logger := zap.NewNop()
	paymentService := payment.NewService(db, gateway, nil, logger)
	referralService := referral.NewService(db, nil, nil, logger)
	return NewPaystackWebhookHandler(paymentService, referralService, 10, testSecretKey, logger)
}

func sign(body []byte) string {
	mac := hmac.New(sha512.New, []byte(testSecretKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookBody(t *testing.T, event, reference string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"event": event,
		"data":  map[string]any{"reference": reference, "status": "success"},
	})
	require.NoError(t, err)
	return body
}

func successResponse(telegramID int64) *payment.VerifyResponse {
	return &payment.VerifyResponse{
		Status:  true,
		Message: "Verification successful",
		Data: payment.TransactionData{
			Status:    payment.TransactionStatusSuccess,
			Reference: "ref-001",
			Metadata: payment.TransactionMetadata{
				UserTelegramID: telegramID,
				PlanType:       models.DurationMonthly,
				DurationMonths: 1,
			},
		},
	}
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	db := storetest.New()
	handler := newTestHandler(db, &fakeGateway{})

	body := webhookBody(t, "charge.success", "ref-001")
	req := httptest.NewRequest(http.MethodPost, "/webhook/paystack", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", "deadbeef")
	rec := httptest.NewRecorder()

	handler.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, db.PaymentCount())
}

func TestHandleWebhookChargeSuccess(t *testing.T) {
	referrerEnd := time.Now().UTC().Add(24 * time.Hour)

	db := storetest.New()
	db.AddUser(&models.User{
		TelegramID:          7,
		IsPro:               true,
		SubscriptionPlan:    models.PlanPaid,
		SubscriptionEndDate: &referrerEnd,
	})
	referrer := int64(7)
	db.AddUser(&models.User{TelegramID: 42, SubscriptionPlan: models.PlanFree, ReferredBy: &referrer})

	handler := newTestHandler(db, &fakeGateway{verifyResp: successResponse(42)})

	// Реферальная связь для бонуса за апгрейд
	refSvc := referral.NewService(db, nil, nil, zap.NewNop())
	_, err := refSvc.RecordReferral(context.Background(), 7, 42)
	require.NoError(t, err)

	body := webhookBody(t, "charge.success", "ref-001")
	req := httptest.NewRequest(http.MethodPost, "/webhook/paystack", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", sign(body))
	rec := httptest.NewRecorder()

	handler.HandleWebhook(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	// Платеж применен
	payer, _ := db.UserByTelegramID(42)
	assert.Equal(t, models.PlanPaid, payer.SubscriptionPlan)
	assert.Equal(t, 1, db.PaymentCount())

	// Рефереру начислен бонус за апгрейд
	link, _ := db.ReferralByReferredID(42)
	assert.Equal(t, 1, link.UpgradeBonusCount)
	refUser, _ := db.UserByTelegramID(7)
	assert.Equal(t, referrerEnd.AddDate(0, 0, 10), *refUser.SubscriptionEndDate)
}

func TestHandleWebhookDuplicateDelivery(t *testing.T) {
	db := storetest.New()
	referrer := int64(7)
	db.AddUser(&models.User{TelegramID: 7, SubscriptionPlan: models.PlanFree})
	db.AddUser(&models.User{TelegramID: 42, SubscriptionPlan: models.PlanFree, ReferredBy: &referrer})

	handler := newTestHandler(db, &fakeGateway{verifyResp: successResponse(42)})

	refSvc := referral.NewService(db, nil, nil, zap.NewNop())
	_, err := refSvc.RecordReferral(context.Background(), 7, 42)
	require.NoError(t, err)

	body := webhookBody(t, "charge.success", "ref-001")

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhook/paystack", bytes.NewReader(body))
		req.Header.Set("x-paystack-signature", sign(body))
		rec := httptest.NewRecorder()
		handler.HandleWebhook(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// Повторная доставка не дублирует ни платеж, ни бонус
	assert.Equal(t, 1, db.PaymentCount())
	link, _ := db.ReferralByReferredID(42)
	assert.Equal(t, 1, link.UpgradeBonusCount)
}

func TestHandleWebhookIgnoresOtherEvents(t *testing.T) {
	db := storetest.New()
	handler := newTestHandler(db, &fakeGateway{})

	body := webhookBody(t, "transfer.success", "ref-001")
	req := httptest.NewRequest(http.MethodPost, "/webhook/paystack", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", sign(body))
	rec := httptest.NewRecorder()

	handler.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, db.PaymentCount())
}

func TestHandleVerifyTransientError(t *testing.T) {
	db := storetest.New()
	handler := newTestHandler(db, &fakeGateway{verifyErr: errors.New("connection refused")})

	body, _ := json.Marshal(VerifyRequest{Reference: "ref-001"})
	req := httptest.NewRequest(http.MethodPost, "/payments/verify", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.HandleVerify(rec, req)

	// Транзиентный сбой — это "повторите позже", а не отказ
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp VerifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "transient_error", resp.Status)
}

func TestHandleVerifyDenied(t *testing.T) {
	db := storetest.New()
	db.AddUser(&models.User{TelegramID: 42, SubscriptionPlan: models.PlanFree})

	handler := newTestHandler(db, &fakeGateway{verifyResp: &payment.VerifyResponse{
		Status:  false,
		Message: "Transaction reference not found",
	}})

	body, _ := json.Marshal(VerifyRequest{Reference: "ref-404"})
	req := httptest.NewRequest(http.MethodPost, "/payments/verify", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.HandleVerify(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp VerifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(payment.ResultDenied), resp.Status)
}

func TestHandleVerifyBadRequest(t *testing.T) {
	db := storetest.New()
	handler := newTestHandler(db, &fakeGateway{})

	req := httptest.NewRequest(http.MethodPost, "/payments/verify", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	handler.HandleVerify(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
