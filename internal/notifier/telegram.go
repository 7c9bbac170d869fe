package notifier

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/TheLogeek/Smart-Expense-Tracker/internal/period"
	"github.com/TheLogeek/Smart-Expense-Tracker/internal/referral"
)

// TelegramNotifier отправляет пользователям сервисные уведомления о подписке.
// Тексты на английском: аудитория бота — нигерийские пользователи.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	logger *zap.Logger
}

// NewTelegramNotifier создает новый нотификатор
func NewTelegramNotifier(bot *tgbotapi.BotAPI, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		bot:    bot,
		logger: logger,
	}
}

// NotifyDowngrade уведомляет пользователя о переводе на бесплатный план
func (n *TelegramNotifier) NotifyDowngrade(ctx context.Context, telegramID int64) {
	text := "⏰ Your Pro subscription has expired.\n\n" +
		"Your account has been switched to the Free plan. " +
		"Upgrade anytime with /upgrade to get back unlimited profiles, " +
		"smart insights and daily reminders!"
	n.send(telegramID, text)
}

// NotifyExpiring уведомляет пользователя, что подписка истекает в ближайшие
// сутки. Дата показывается по западноафриканскому времени.
func (n *TelegramNotifier) NotifyExpiring(ctx context.Context, telegramID int64, endDate time.Time) {
	text := fmt.Sprintf(
		"⚠️ Heads up! Your Pro access expires on %s.\n\n"+
			"Renew now with /upgrade so you don't lose your Pro features.",
		formatWAT(endDate))
	n.send(telegramID, text)
}

// NotifyReferralBonus уведомляет реферера о начисленном бонусе
func (n *TelegramNotifier) NotifyReferralBonus(ctx context.Context, referrerID, referredID int64, bonusType string, newEndDate *time.Time) {
	var text string
	switch bonusType {
	case referral.BonusTypeFirstProfile:
		text = "🎉 Great news! Your friend just set up their first expense profile.\n\n" +
			"You've earned +10 days of Pro access as a thank you!"
	case referral.BonusTypeUpgrade:
		text = "🎉 Your friend just upgraded to Pro!\n\n" +
			"You've earned +10 days of Pro access. Keep sharing your referral link!"
	default:
		text = "🎉 You've earned bonus Pro days from your referral!"
	}

	if newEndDate != nil {
		text += fmt.Sprintf("\n\nYour Pro access now runs until %s.", formatWAT(*newEndDate))
	}

	n.send(referrerID, text)
}

// send отправляет сообщение; ошибка доставки логируется, но не прерывает
// вызывающий процесс
func (n *TelegramNotifier) send(telegramID int64, text string) {
	msg := tgbotapi.NewMessage(telegramID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Warn("не удалось отправить уведомление",
			zap.Error(err),
			zap.Int64("telegram_id", telegramID))
		return
	}
	n.logger.Debug("уведомление отправлено", zap.Int64("telegram_id", telegramID))
}

// formatWAT форматирует дату в западноафриканском времени
func formatWAT(t time.Time) string {
	return t.In(period.WAT).Format("January 2, 2006 at 15:04 (WAT)")
}
