package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"palmlens-backend/internal/access"
	"palmlens-backend/internal/models"
	"palmlens-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated subject extracted from a bearer token.
type Identity struct {
	AuthID string
	Email  string
	Name   *string
}

type userEnsurer interface {
	Ensure(ctx context.Context, authID, email string, name *string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type readingCounter interface {
	CountByUser(ctx context.Context, userID string) (int, error)
	CountByUserSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// UserService handles identity validation and user provisioning.
type UserService struct {
	users     userEnsurer
	subs      subscriptionStore
	readings  readingCounter
	jwtSecret string
	now       func() time.Time
}

// NewUserService creates a new user service
func NewUserService(users userEnsurer, subs subscriptionStore, readings readingCounter, jwtSecret string) *UserService {
	return &UserService{
		users:     users,
		subs:      subs,
		readings:  readings,
		jwtSecret: jwtSecret,
		now:       time.Now,
	}
}

// ValidateToken validates a bearer token issued by the identity provider and
// returns the subject it identifies. The subject is trusted as an opaque key.
func (s *UserService) ValidateToken(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("sub not found in token")
	}

	identity := &Identity{AuthID: sub}
	if email, ok := claims["email"].(string); ok {
		identity.Email = email
	}
	if name, ok := claims["name"].(string); ok && name != "" {
		identity.Name = &name
	}
	return identity, nil
}

// IssueToken signs a token for a subject. Used by tooling and tests; in
// production tokens come from the identity provider sharing the same secret.
func (s *UserService) IssueToken(identity *Identity, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":   identity.AuthID,
		"email": identity.Email,
		"exp":   s.now().Add(ttl).Unix(),
		"iat":   s.now().Unix(),
	}
	if identity.Name != nil {
		claims["name"] = *identity.Name
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Ensure returns the user for an identity, creating the user and their
// default profile on first authentication.
func (s *UserService) Ensure(ctx context.Context, identity *Identity) (*models.User, error) {
	return s.users.Ensure(ctx, identity.AuthID, identity.Email, identity.Name)
}

// AccessInfo carries the tier and quota snapshot for the client.
type AccessInfo struct {
	Tier           access.Tier `json:"tier"`
	TrialExpiresAt *time.Time  `json:"trial_expires_at,omitempty"`
	ProfileLimit   int         `json:"profile_limit"`
	ReadingLimit   int         `json:"reading_limit"`
	ReadingsUsed   int         `json:"readings_used"`
}

// AccessInfo computes the current tier and reading quota usage for a user.
func (s *UserService) AccessInfo(ctx context.Context, userID string) (*AccessInfo, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		sub = nil
	}

	tier := access.Resolve(user, sub, s.now())

	var used int
	if access.ReadingLimitIsLifetime(tier) {
		used, err = s.readings.CountByUser(ctx, userID)
	} else {
		used, err = s.readings.CountByUserSince(ctx, userID, monthStart(s.now()))
	}
	if err != nil {
		return nil, err
	}

	return &AccessInfo{
		Tier:           tier,
		TrialExpiresAt: user.TrialExpiresAt,
		ProfileLimit:   access.ProfileLimit(tier),
		ReadingLimit:   access.ReadingLimit(tier),
		ReadingsUsed:   used,
	}, nil
}

// Tier resolves the user's current access tier.
func (s *UserService) Tier(ctx context.Context, userID string) (access.Tier, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}

	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return "", err
		}
		sub = nil
	}

	return access.Resolve(user, sub, s.now()), nil
}
