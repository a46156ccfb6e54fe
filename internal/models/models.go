package models

import "time"

// SubscriptionPlan is a paid plan tier.
type SubscriptionPlan string

// SubscriptionStatus captures the billing lifecycle of a subscription.
type SubscriptionStatus string

// ReadingStatus captures the lifecycle of a palm reading.
type ReadingStatus string

const (
	PlanPro      SubscriptionPlan = "pro"
	PlanUltimate SubscriptionPlan = "ultimate"
)

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
)

const (
	ReadingStatusPending    ReadingStatus = "pending"
	ReadingStatusProcessing ReadingStatus = "processing"
	ReadingStatusCompleted  ReadingStatus = "completed"
	ReadingStatusFailed     ReadingStatus = "failed"
)

// IsTerminal reports whether a reading can no longer change state.
func (s ReadingStatus) IsTerminal() bool {
	return s == ReadingStatusCompleted || s == ReadingStatusFailed
}

// User represents a user in the system, created on first authentication.
type User struct {
	ID             string     `json:"id"`
	AuthID         string     `json:"-"`
	Email          string     `json:"email"`
	Name           *string    `json:"name,omitempty"`
	TrialStartedAt *time.Time `json:"trial_started_at,omitempty"`
	TrialExpiresAt *time.Time `json:"trial_expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Subscription tracks the paid tier for a user. Rows are upserted by billing
// webhook events, never created by the application directly.
type Subscription struct {
	ID                   string             `json:"id"`
	UserID               string             `json:"user_id"`
	StripeCustomerID     string             `json:"-"`
	StripeSubscriptionID string             `json:"-"`
	Plan                 SubscriptionPlan   `json:"plan"`
	Status               SubscriptionStatus `json:"status"`
	CurrentPeriodEnd     *time.Time         `json:"current_period_end,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// Profile is a named subject of readings (self or a loved one).
type Profile struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Name        string     `json:"name"`
	DOB         *time.Time `json:"dob,omitempty"`
	AvatarEmoji *string    `json:"avatar_emoji,omitempty"`
	IsDefault   bool       `json:"is_default"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Reading is a durable record of one palm analysis request and its outcome.
// Analysis is non-nil if and only if Status is completed.
type Reading struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	ProfileID string        `json:"profile_id"`
	Status    ReadingStatus `json:"status"`
	ImageKey  *string       `json:"image_key,omitempty"`
	Analysis  *PalmAnalysis `json:"analysis,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// PalmAnalysis is the fixed six-section shape produced by the vision model.
type PalmAnalysis struct {
	Personality   PersonalitySection `json:"personality"`
	LifePath      LifePathSection    `json:"life_path"`
	Career        CareerSection      `json:"career"`
	Relationships SummarySection     `json:"relationships"`
	Health        SummarySection     `json:"health"`
	Lucky         LuckySection       `json:"lucky"`
}

// PersonalitySection describes personality traits read from the palm.
type PersonalitySection struct {
	Summary string   `json:"summary"`
	Traits  []string `json:"traits"`
}

// LifePathSection describes the three major palm lines.
type LifePathSection struct {
	Summary string    `json:"summary"`
	Lines   PalmLines `json:"lines"`
}

// PalmLines holds per-line interpretations.
type PalmLines struct {
	Life  string `json:"life"`
	Head  string `json:"head"`
	Heart string `json:"heart"`
}

// CareerSection describes career guidance derived from the palm.
type CareerSection struct {
	Summary   string   `json:"summary"`
	Fields    []string `json:"fields"`
	Strengths []string `json:"strengths"`
}

// SummarySection is a single-summary analysis section.
type SummarySection struct {
	Summary string `json:"summary"`
}

// LuckySection holds lucky numbers and a symbol.
type LuckySection struct {
	Numbers []int  `json:"numbers"`
	Symbol  string `json:"symbol"`
}

// CompatibilityReport is the fixed-shape pairwise reading between two profiles.
// ZodiacCompatibility is present only when both profiles carry a date of birth.
type CompatibilityReport struct {
	ProfileA            ProfileRef              `json:"profile_a"`
	ProfileB            ProfileRef              `json:"profile_b"`
	OverallScore        int                     `json:"overall_score"`
	Summary             string                  `json:"summary"`
	Strengths           []string                `json:"strengths"`
	Challenges          []string                `json:"challenges"`
	Advice              string                  `json:"advice"`
	Categories          CompatibilityCategories `json:"categories"`
	ZodiacCompatibility *ZodiacCompatibility    `json:"zodiac_compatibility,omitempty"`
}

// ProfileRef is the subset of profile data embedded in a compatibility report.
type ProfileRef struct {
	Name  string  `json:"name"`
	Emoji *string `json:"emoji,omitempty"`
}

// CompatibilityCategories holds the four category sub-scores.
type CompatibilityCategories struct {
	Communication CategoryScore `json:"communication"`
	Emotional     CategoryScore `json:"emotional"`
	Lifestyle     CategoryScore `json:"lifestyle"`
	Goals         CategoryScore `json:"goals"`
}

// CategoryScore is one scored compatibility category.
type CategoryScore struct {
	Score       int    `json:"score"`
	Description string `json:"description"`
}

// ZodiacCompatibility is the optional zodiac block of a compatibility report.
type ZodiacCompatibility struct {
	SignA       string `json:"sign_a"`
	SignB       string `json:"sign_b"`
	Description string `json:"description"`
}

// Horoscope is a cached horoscope generated for a profile on a given date.
type Horoscope struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profile_id"`
	Period    string    `json:"period"`
	Date      time.Time `json:"date"`
	Sign      string    `json:"sign"`
	Content   []byte    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
