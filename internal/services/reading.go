package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"palmlens-backend/internal/access"
	"palmlens-backend/internal/apperr"
	"palmlens-backend/internal/models"
	"palmlens-backend/internal/repository"
	"palmlens-backend/internal/session"
	"palmlens-backend/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const analysisTimeout = 2 * time.Minute

type readingStore interface {
	CreateWithQuota(ctx context.Context, reading *models.Reading, limit int, lifetime bool, windowStart time.Time) error
	GetOwned(ctx context.Context, id, userID string) (*models.Reading, error)
	ListByUser(ctx context.Context, userID string, profileID *string) ([]*models.Reading, error)
	MarkProcessing(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, analysis *models.PalmAnalysis) error
	Fail(ctx context.Context, id string) error
	FailStuck(ctx context.Context, olderThan time.Time) (int64, error)
}

type userStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	StartTrial(ctx context.Context, userID string, startedAt, expiresAt time.Time) error
}

type profileStore interface {
	GetOwned(ctx context.Context, id, userID string) (*models.Profile, error)
	SetDOBIfEmpty(ctx context.Context, id string, dob time.Time) error
}

type subscriptionStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.Subscription, error)
}

type sessionConsumer interface {
	Consume(ctx context.Context, token string) (*session.Record, error)
	Restore(ctx context.Context, token string, rec *session.Record) error
}

type palmAnalyzer interface {
	AnalyzePalm(ctx context.Context, imageURL string) (*models.PalmAnalysis, error)
}

type imageStore interface {
	Copy(ctx context.Context, srcKey, dstKey string) error
	ImageURL(ctx context.Context, key string) string
}

type readingNotifier interface {
	NotifyReading(userID string, reading *models.Reading)
}

// ReadingService orchestrates creation, quota enforcement and state
// transitions of durable reading records.
type ReadingService struct {
	readings  readingStore
	users     userStore
	profiles  profileStore
	subs      subscriptionStore
	sessions  sessionConsumer
	vision    palmAnalyzer
	images    imageStore
	notifier  readingNotifier
	trialDays int
	now       func() time.Time
}

// NewReadingService creates a new reading service
func NewReadingService(
	readings readingStore,
	users userStore,
	profiles profileStore,
	subs subscriptionStore,
	sessions sessionConsumer,
	vision palmAnalyzer,
	images imageStore,
	notifier readingNotifier,
	trialDays int,
) *ReadingService {
	return &ReadingService{
		readings:  readings,
		users:     users,
		profiles:  profiles,
		subs:      subs,
		sessions:  sessions,
		vision:    vision,
		images:    images,
		notifier:  notifier,
		trialDays: trialDays,
		now:       time.Now,
	}
}

// Create inserts a new pending reading for the given profile, enforcing the
// tier quota. The user's trial window starts lazily on their very first
// reading. When imageKey is set, asynchronous analysis is kicked off.
func (s *ReadingService) Create(ctx context.Context, userID, profileID string, imageKey *string) (*models.Reading, error) {
	if _, err := s.profiles.GetOwned(ctx, profileID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Profile not found")
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	reading, err := s.insertPending(ctx, userID, profileID, uuid.New().String(), imageKey)
	if err != nil {
		return nil, err
	}

	if imageKey != nil {
		go s.process(reading)
	}

	return reading, nil
}

// ConsumeSession converts a confirmed anonymous session into a durable
// reading. The hand-off is retryable: the session is restored whenever the
// durable side fails, and redis GETDEL guarantees a single winner.
func (s *ReadingService) ConsumeSession(ctx context.Context, userID, profileID, token string) (*models.Reading, error) {
	profile, err := s.profiles.GetOwned(ctx, profileID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Profile not found")
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	rec, err := s.sessions.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, apperr.Validation("Session expired. Please start over.")
		}
		return nil, err
	}

	if !rec.Confirmed {
		s.restoreSession(token, rec)
		return nil, apperr.Validation("Palm photo has not been confirmed. Please confirm it first.")
	}

	readingID := uuid.New().String()
	durableKey := storage.ReadingKey(userID, readingID)
	if err := s.images.Copy(ctx, rec.PhotoKey, durableKey); err != nil {
		s.restoreSession(token, rec)
		return nil, apperr.Upstream("Unable to store palm image. Please try again.", err)
	}

	reading, err := s.insertPending(ctx, userID, profileID, readingID, &durableKey)
	if err != nil {
		s.restoreSession(token, rec)
		return nil, err
	}

	if rec.DOB != "" && profile.DOB == nil {
		if dob, parseErr := time.Parse("2006-01-02", rec.DOB); parseErr == nil {
			if err := s.profiles.SetDOBIfEmpty(ctx, profileID, dob); err != nil {
				log.Warn().Err(err).Str("profile_id", profileID).Msg("Failed to backfill profile dob")
			}
		}
	}

	go s.process(reading)
	return reading, nil
}

// insertPending runs the shared tier, trial and quota logic and inserts the
// pending row.
func (s *ReadingService) insertPending(ctx context.Context, userID, profileID, readingID string, imageKey *string) (*models.Reading, error) {
	user, sub, tier, err := s.resolveTier(ctx, userID)
	if err != nil {
		return nil, err
	}

	// A user who has never had a reading gets their trial started now, so
	// the quota below is evaluated against the trial tier.
	if user.TrialStartedAt == nil && tier == access.TierExpired {
		start := s.now()
		expires := start.AddDate(0, 0, s.trialDays)
		if err := s.users.StartTrial(ctx, userID, start, expires); err != nil {
			return nil, err
		}
		user.TrialStartedAt = &start
		user.TrialExpiresAt = &expires
		tier = access.Resolve(user, sub, s.now())
	}

	if tier == access.TierExpired {
		return nil, apperr.PaymentRequired(
			"Your trial has expired. Please upgrade to continue.",
			string(tier), string(access.TierPro),
		)
	}

	reading := &models.Reading{
		ID:        readingID,
		UserID:    userID,
		ProfileID: profileID,
		Status:    models.ReadingStatusPending,
		ImageKey:  imageKey,
		CreatedAt: s.now(),
	}

	limit := access.ReadingLimit(tier)
	lifetime := access.ReadingLimitIsLifetime(tier)
	err = s.readings.CreateWithQuota(ctx, reading, limit, lifetime, monthStart(s.now()))
	if err != nil {
		if errors.Is(err, repository.ErrQuotaExceeded) {
			return nil, apperr.QuotaExceeded("Reading quota reached for this period.", string(tier))
		}
		return nil, err
	}
	return reading, nil
}

func (s *ReadingService) restoreSession(token string, rec *session.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.sessions.Restore(ctx, token, rec); err != nil {
		log.Error().Err(err).Msg("Failed to restore session after conversion failure")
	}
}

// Get retrieves a reading owned by the user
func (s *ReadingService) Get(ctx context.Context, readingID, userID string) (*models.Reading, error) {
	reading, err := s.readings.GetOwned(ctx, readingID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Reading not found")
		}
		return nil, err
	}
	return reading, nil
}

// List retrieves a user's readings, optionally filtered by profile
func (s *ReadingService) List(ctx context.Context, userID string, profileID *string) ([]*models.Reading, error) {
	return s.readings.ListByUser(ctx, userID, profileID)
}

// Outcome is the terminal result applied by Advance. Analysis must be set
// for a completed outcome and must be nil for a failed one.
type Outcome struct {
	Completed bool
	Analysis  *models.PalmAnalysis
}

// Advance moves a reading into a terminal state. Advancing a reading that is
// already terminal is a deterministic validation error.
func (s *ReadingService) Advance(ctx context.Context, readingID string, outcome Outcome) error {
	var err error
	if outcome.Completed {
		if outcome.Analysis == nil {
			return apperr.Validation("A completed outcome requires an analysis payload")
		}
		err = s.readings.Complete(ctx, readingID, outcome.Analysis)
	} else {
		err = s.readings.Fail(ctx, readingID)
	}

	if err != nil {
		if errors.Is(err, repository.ErrTerminal) {
			return apperr.Validation("Reading is already finalized")
		}
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Reading not found")
		}
		return err
	}
	return nil
}

// FailStuck fails non-terminal readings older than maxAge. Called from the
// watchdog so a lost provider response cannot strand a reading in pending.
func (s *ReadingService) FailStuck(ctx context.Context, maxAge time.Duration) (int64, error) {
	return s.readings.FailStuck(ctx, s.now().Add(-maxAge))
}

// process runs the full palm analysis off the request path and resolves the
// reading to completed or failed.
func (s *ReadingService) process(reading *models.Reading) {
	ctx, cancel := context.WithTimeout(context.Background(), analysisTimeout)
	defer cancel()

	if err := s.readings.MarkProcessing(ctx, reading.ID); err != nil {
		log.Error().Err(err).Str("reading_id", reading.ID).Msg("Failed to mark reading processing")
		return
	}
	reading.Status = models.ReadingStatusProcessing

	if reading.ImageKey == nil {
		log.Error().Str("reading_id", reading.ID).Msg("Reading has no image to analyze")
		s.finalize(ctx, reading, Outcome{})
		return
	}

	imageURL := s.images.ImageURL(ctx, *reading.ImageKey)
	analysis, err := s.vision.AnalyzePalm(ctx, imageURL)
	if err != nil {
		log.Error().Err(err).Str("reading_id", reading.ID).Msg("Palm analysis failed")
		s.finalize(ctx, reading, Outcome{})
		return
	}

	s.finalize(ctx, reading, Outcome{Completed: true, Analysis: analysis})
}

func (s *ReadingService) finalize(ctx context.Context, reading *models.Reading, outcome Outcome) {
	if err := s.Advance(ctx, reading.ID, outcome); err != nil {
		log.Error().Err(err).Str("reading_id", reading.ID).Msg("Failed to finalize reading")
		return
	}

	if outcome.Completed {
		reading.Status = models.ReadingStatusCompleted
		reading.Analysis = outcome.Analysis
	} else {
		reading.Status = models.ReadingStatusFailed
	}

	log.Info().
		Str("reading_id", reading.ID).
		Str("status", string(reading.Status)).
		Msg("Reading finalized")

	if s.notifier != nil {
		s.notifier.NotifyReading(reading.UserID, reading)
	}
}

func (s *ReadingService) resolveTier(ctx context.Context, userID string) (*models.User, *models.Subscription, access.Tier, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, "", apperr.NotFound("User not found")
		}
		return nil, nil, "", err
	}

	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, nil, "", err
		}
		sub = nil
	}

	return user, sub, access.Resolve(user, sub, s.now()), nil
}

// monthStart returns the first instant of t's calendar month in UTC.
func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
