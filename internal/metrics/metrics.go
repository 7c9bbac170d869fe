package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics содержит метрики Prometheus для мониторинга подписок и платежей
type Metrics struct {
	paymentVerifications  *prometheus.CounterVec
	gatewayVerifyDuration prometheus.Histogram
	referralBonuses       *prometheus.CounterVec
	downgradedTotal       prometheus.Counter
	expiryRemindersTotal  prometheus.Counter
	activeProUsers        prometheus.Gauge
}

// New создает и регистрирует метрики в реестре по умолчанию
func New() *Metrics {
	return &Metrics{
		paymentVerifications: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_verifications_total",
				Help: "Количество верификаций платежей по исходу",
			},
			[]string{"result"},
		),
		gatewayVerifyDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "payment_gateway_verify_duration_seconds",
				Help:    "Длительность запроса верификации к платежному шлюзу",
				Buckets: prometheus.DefBuckets,
			},
		),
		referralBonuses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "referral_bonuses_total",
				Help: "Количество начисленных реферальных бонусов по типу",
			},
			[]string{"bonus_type"},
		),
		downgradedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "subscriptions_downgraded_total",
				Help: "Количество аккаунтов, переведенных на free по истечении",
			},
		),
		expiryRemindersTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "subscription_expiry_reminders_total",
				Help: "Количество отправленных напоминаний об истечении подписки",
			},
		),
		activeProUsers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_pro_users",
				Help: "Текущее количество аккаунтов с активным Pro-доступом",
			},
		),
	}
}

// RecordPaymentVerification записывает исход верификации платежа
func (m *Metrics) RecordPaymentVerification(result string) {
	m.paymentVerifications.WithLabelValues(result).Inc()
}

// ObserveGatewayVerifyDuration записывает длительность запроса к шлюзу
func (m *Metrics) ObserveGatewayVerifyDuration(seconds float64) {
	m.gatewayVerifyDuration.Observe(seconds)
}

// RecordReferralBonus записывает начисление реферального бонуса
func (m *Metrics) RecordReferralBonus(bonusType string) {
	m.referralBonuses.WithLabelValues(bonusType).Inc()
}

// RecordDowngrades записывает количество даунгрейднутых аккаунтов
func (m *Metrics) RecordDowngrades(count int) {
	m.downgradedTotal.Add(float64(count))
}

// RecordExpiryReminders записывает количество отправленных напоминаний
func (m *Metrics) RecordExpiryReminders(count int) {
	m.expiryRemindersTotal.Add(float64(count))
}

// SetActiveProUsers обновляет gauge активных Pro-аккаунтов
func (m *Metrics) SetActiveProUsers(count int) {
	m.activeProUsers.Set(float64(count))
}
