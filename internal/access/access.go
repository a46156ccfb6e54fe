// Package access computes a user's entitlement tier and the limits derived
// from it. Everything here is a pure function of its inputs and the supplied
// clock; gating decisions for the whole application are centralized here.
package access

import (
	"time"

	"palmlens-backend/internal/models"
)

// Tier is the entitlement level governing quotas and section access.
type Tier string

const (
	TierTrial    Tier = "trial"
	TierPro      Tier = "pro"
	TierUltimate Tier = "ultimate"
	TierExpired  Tier = "expired"
)

// Unlimited marks a limit with no cap.
const Unlimited = -1

// Reading sections. Core sections are accessible at every non-expired tier;
// premium sections require pro or ultimate.
const (
	SectionPersonality      = "personality"
	SectionLifePath         = "life_path"
	SectionCareer           = "career"
	SectionRelationships    = "relationships"
	SectionHealth           = "health"
	SectionLucky            = "lucky"
	SectionMonthlyHoroscope = "monthly_horoscope"
	SectionCompatibility    = "compatibility"
	SectionPDFExport        = "pdf_export"
)

// Resolve computes the tier from the subscription and trial window.
// An active paid plan always wins regardless of trial state; an expired trial
// with no subscription yields expired. Total, never fails.
func Resolve(user *models.User, sub *models.Subscription, now time.Time) Tier {
	if sub != nil && sub.Status == models.SubscriptionStatusActive {
		switch sub.Plan {
		case models.PlanUltimate:
			return TierUltimate
		default:
			return TierPro
		}
	}
	if user != nil && user.TrialExpiresAt != nil && now.Before(*user.TrialExpiresAt) {
		return TierTrial
	}
	return TierExpired
}

// ProfileLimit returns the maximum number of profiles for a tier.
func ProfileLimit(tier Tier) int {
	switch tier {
	case TierPro:
		return 3
	case TierUltimate:
		return Unlimited
	default:
		return 1
	}
}

// ReadingLimit returns the reading cap for a tier. The pro cap applies per
// calendar month; the trial cap is a lifetime allotment of one reading.
func ReadingLimit(tier Tier) int {
	switch tier {
	case TierTrial:
		return 1
	case TierPro:
		return 10
	case TierUltimate:
		return Unlimited
	default:
		return 0
	}
}

// ReadingLimitIsLifetime reports whether the tier's reading cap counts every
// reading ever made rather than a monthly window.
func ReadingLimitIsLifetime(tier Tier) bool {
	return tier == TierTrial
}

var premiumSections = map[string]bool{
	SectionRelationships:    true,
	SectionHealth:           true,
	SectionLucky:            true,
	SectionMonthlyHoroscope: true,
	SectionCompatibility:    true,
	SectionPDFExport:        true,
}

var coreSections = map[string]bool{
	SectionPersonality: true,
	SectionLifePath:    true,
	SectionCareer:      true,
}

// SectionAccessible reports whether a content section is visible at a tier.
func SectionAccessible(section string, tier Tier) bool {
	if tier == TierExpired {
		return false
	}
	if coreSections[section] {
		return true
	}
	if premiumSections[section] {
		return tier == TierPro || tier == TierUltimate
	}
	return false
}
