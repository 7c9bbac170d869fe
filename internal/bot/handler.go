package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/TheLogeek/Smart-Expense-Tracker/internal/payment"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/period"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/referral"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/subscription"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/user"
	"github.com/TheLogeek/Smart-Expense-Tracker/pkg/models"
)

// Handler обрабатывает команды Telegram бота
type Handler struct {
	bot           *tgbotapi.BotAPI
	users         *user.Service
	subscriptions *subscription.Service
	payments      *payment.Service
	referrals     *referral.Service
	callbackURL   string
	logger        *zap.Logger
}

// NewHandler создает новый обработчик команд
func NewHandler(
	bot *tgbotapi.BotAPI,
	users *user.Service,
	subscriptions *subscription.Service,
	payments *payment.Service,
	referrals *referral.Service,
	callbackURL string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		bot:           bot,
		users:         users,
		subscriptions: subscriptions,
		payments:      payments,
		referrals:     referrals,
		callbackURL:   callbackURL,
		logger:        logger,
	}
}

// HandleUpdate обрабатывает обновление от Telegram
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.Message == nil || !update.Message.IsCommand() {
		return nil
	}

	msg := update.Message
	from := msg.From

	// Любая команда регистрирует пользователя, /start может нести
	// реферальный payload вида ref_<telegram_id>
	var referrerID *int64
	if msg.Command() == "start" {
		if id, ok := parseReferralPayload(msg.CommandArguments()); ok {
			referrerID = &id
		}
	}

	u, created, err := h.users.GetOrCreate(ctx, from.ID, from.UserName, from.FirstName, from.LastName, referrerID)
	if err != nil {
		return fmt.Errorf("ошибка регистрации пользователя: %w", err)
	}

	switch msg.Command() {
	case "start":
		return h.handleStart(ctx, u, created)
	case "status":
		return h.handleStatus(ctx, u)
	case "upgrade":
		return h.handleUpgrade(ctx, u, strings.TrimSpace(msg.CommandArguments()))
	case "newprofile":
		return h.handleNewProfile(ctx, u)
	case "referral":
		return h.handleReferral(ctx, u)
	default:
		return h.send(u.TelegramID, "Unknown command. Try /status, /upgrade, /newprofile or /referral.")
	}
}

// handleStart приветствует пользователя
func (h *Handler) handleStart(ctx context.Context, u *models.User, created bool) error {
	if created && u.TrialEndDate != nil {
		return h.send(u.TelegramID, fmt.Sprintf(
			"👋 Welcome to Smart Expense Tracker!\n\n"+
				"Your Pro trial is active until %s. "+
				"Create your first expense profile with /newprofile.",
			formatWAT(*u.TrialEndDate)))
	}
	return h.send(u.TelegramID, "👋 Welcome back! Check /status for your subscription details.")
}

// handleStatus показывает эффективное состояние подписки
func (h *Handler) handleStatus(ctx context.Context, u *models.User) error {
	status, err := h.subscriptions.GetStatus(ctx, u.TelegramID)
	if err != nil {
		return fmt.Errorf("ошибка получения статуса подписки: %w", err)
	}

	text := fmt.Sprintf("📋 Subscription: %s", status.Plan)
	if status.ExpiresAt != nil {
		text += fmt.Sprintf("\nActive until: %s", formatWAT(*status.ExpiresAt))
	}
	if !status.IsPro {
		text += "\n\nUpgrade with /upgrade monthly or /upgrade yearly."
	}
	return h.send(u.TelegramID, text)
}

// handleUpgrade без аргумента показывает тарифы, с аргументом инициирует платеж
func (h *Handler) handleUpgrade(ctx context.Context, u *models.User, planType string) error {
	if planType == "" {
		var b strings.Builder
		b.WriteString("💎 Pro plans:\n\n")
		for _, plan := range subscription.Plans() {
			fmt.Fprintf(&b, "• %s — ₦%s (%s)\n", plan.PlanType, plan.Price.StringFixed(0), plan.Description)
		}
		b.WriteString("\nChoose with /upgrade monthly or /upgrade yearly.")
		return h.send(u.TelegramID, b.String())
	}

	resp, err := h.payments.InitiatePayment(ctx, u, planType, h.callbackURL)
	if err != nil {
		h.logger.Error("ошибка инициализации платежа",
			zap.Error(err), zap.Int64("telegram_id", u.TelegramID))
		return h.send(u.TelegramID, "Sorry, we couldn't start the payment. Please try again later.")
	}

	return h.send(u.TelegramID, fmt.Sprintf(
		"💳 Complete your payment here:\n%s\n\n"+
			"Your subscription activates automatically once Paystack confirms the payment.",
		resp.Data.AuthorizationURL))
}

// handleNewProfile моделирует создание первого профиля расходов: само
// ведение расходов живет в другом модуле, здесь важен только триггер
// реферального бонуса
func (h *Handler) handleNewProfile(ctx context.Context, u *models.User) error {
	if err := h.users.RegisterFirstProfile(ctx, u.TelegramID); err != nil {
		return err
	}
	return h.send(u.TelegramID, "✅ Expense profile created! Start logging your spending.")
}

// handleReferral показывает реферальную ссылку и статистику
func (h *Handler) handleReferral(ctx context.Context, u *models.User) error {
	stats, err := h.referrals.GetStats(ctx, u.TelegramID)
	if err != nil {
		return fmt.Errorf("ошибка получения статистики рефералов: %w", err)
	}

	link := fmt.Sprintf("https://t.me/%s?start=ref_%d", h.bot.Self.UserName, u.TelegramID)
	return h.send(u.TelegramID, fmt.Sprintf(
		"🔗 Your referral link:\n%s\n\n"+
			"Invited friends: %d\n"+
			"First-profile bonuses: %d\n"+
			"Upgrade bonuses: %d\n\n"+
			"Friends who join via your link get a 17-day trial, and you earn +10 Pro days "+
			"when they create a profile or upgrade!",
		link, stats.TotalReferrals, stats.FirstProfileGrants, stats.UpgradeGrants))
}

// send отправляет текстовое сообщение пользователю
func (h *Handler) send(telegramID int64, text string) error {
	msg := tgbotapi.NewMessage(telegramID, text)
	if _, err := h.bot.Send(msg); err != nil {
		return fmt.Errorf("ошибка отправки сообщения: %w", err)
	}
	return nil
}

// parseReferralPayload извлекает telegram_id реферера из payload /start
func parseReferralPayload(payload string) (int64, bool) {
	const prefix = "ref_"
	if !strings.HasPrefix(payload, prefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(payload, prefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// formatWAT форматирует дату в западноафриканском времени
func formatWAT(t time.Time) string {
	return t.In(period.WAT).Format("January 2, 2006")
}
