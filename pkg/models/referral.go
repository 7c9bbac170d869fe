package models

import (
	"time"
)

// Referral представляет реферальную связь между пользователями.
// Один пользователь может быть приглашен только один раз (referred_id уникален).
type Referral struct {
	ID                       int64     `json:"id" db:"id"`
	ReferrerID               int64     `json:"referrer_id" db:"referrer_id"` // telegram_id пригласившего
	ReferredID               int64     `json:"referred_id" db:"referred_id"` // telegram_id приглашенного
	FirstProfileBonusGranted bool      `json:"first_profile_bonus_granted" db:"first_profile_bonus_granted"`
	UpgradeBonusCount        int       `json:"upgrade_bonus_count" db:"upgrade_bonus_count"` // только растет
	ReferralDate             time.Time `json:"referral_date" db:"referral_date"`
}

// ReferralStats представляет статистику рефералов пользователя
type ReferralStats struct {
	TotalReferrals     int `json:"total_referrals"`
	FirstProfileGrants int `json:"first_profile_grants"`
	UpgradeGrants      int `json:"upgrade_grants"`
}
