package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// TransactionStatusSuccess — единственный статус транзакции, который шлюз
// считает подтверждением оплаты. Любой другой вложенный статус (failed,
// abandoned и т.д.) трактуется как отказ.
const TransactionStatusSuccess = "success"

// PaystackClient представляет клиент для работы с Paystack API
type PaystackClient struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// TransactionMetadata представляет метаданные, которые мы прикладываем к
// транзакции при инициализации и читаем обратно при верификации
type TransactionMetadata struct {
	UserTelegramID int64  `json:"user_telegram_id"`
	PlanType       string `json:"plan_type"`
	DurationMonths int    `json:"duration_months"`
}

// InitializeRequest представляет запрос на инициализацию транзакции
type InitializeRequest struct {
	Email       string              `json:"email"`
	AmountKobo  int64               `json:"amount"` // сумма в кобо (1 найра = 100 кобо)
	CallbackURL string              `json:"callback_url,omitempty"`
	Metadata    TransactionMetadata `json:"metadata"`
}

// InitializeResponse представляет ответ на инициализацию транзакции
type InitializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// TransactionData представляет вложенный объект транзакции в ответе шлюза
type TransactionData struct {
	Status          string              `json:"status"`
	Reference       string              `json:"reference"`
	AmountKobo      int64               `json:"amount"`
	GatewayResponse string              `json:"gateway_response"`
	Metadata        TransactionMetadata `json:"metadata"`
	PaidAt          string              `json:"paid_at"`
}

// VerifyResponse представляет ответ верификации транзакции. Status отражает
// успех самого API-вызова; фактический статус транзакции лежит в Data.Status.
type VerifyResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    TransactionData `json:"data"`
}

// NewPaystackClient создает новый клиент Paystack
func NewPaystackClient(secretKey, baseURL string, logger *zap.Logger) *PaystackClient {
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}

	return &PaystackClient{
		secretKey: secretKey,
		baseURL:   baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// InitializePayment инициализирует транзакцию в Paystack и возвращает ссылку
// на оплату и референс
func (c *PaystackClient) InitializePayment(ctx context.Context, email string, amountKobo int64, metadata TransactionMetadata, callbackURL string) (*InitializeResponse, error) {
	reqBody, err := json.Marshal(InitializeRequest{
		Email:       email,
		AmountKobo:  amountKobo,
		CallbackURL: callbackURL,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации запроса: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transaction/initialize", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания HTTP запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка отправки запроса: %w", err)
	}
	defer resp.Body.Close()

	var initResp InitializeResponse
	if err := json.NewDecoder(resp.Body).Decode(&initResp); err != nil {
		return nil, fmt.Errorf("ошибка парсинга ответа: %w", err)
	}

	c.logger.Info("транзакция инициализирована в Paystack",
		zap.String("reference", initResp.Data.Reference),
		zap.Int64("amount_kobo", amountKobo),
		zap.Int64("user_telegram_id", metadata.UserTelegramID),
		zap.String("plan_type", metadata.PlanType),
		zap.Bool("status", initResp.Status))

	return &initResp, nil
}

// VerifyTransaction запрашивает у шлюза статус транзакции по референсу.
// Возвращает ошибку только при транспортных сбоях; отказ шлюза приходит
// в теле ответа со Status=false либо с не-success статусом транзакции.
func (c *PaystackClient) VerifyTransaction(ctx context.Context, reference string) (*VerifyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания HTTP запроса: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка отправки запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("неожиданный статус ответа шлюза: %d", resp.StatusCode)
	}

	var verifyResp VerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&verifyResp); err != nil {
		return nil, fmt.Errorf("ошибка парсинга ответа: %w", err)
	}

	c.logger.Info("получен результат верификации транзакции",
		zap.String("reference", reference),
		zap.Bool("api_status", verifyResp.Status),
		zap.String("transaction_status", verifyResp.Data.Status),
		zap.String("gateway_response", verifyResp.Data.GatewayResponse))

	return &verifyResp, nil
}
