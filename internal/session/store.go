// Package session holds short-lived state for users who have not yet
// authenticated, keyed by a cryptographically random token delivered via
// cookie. An expired session behaves identically to one that never existed.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrNotFound is returned for unknown and expired tokens alike; callers must
// treat it as the single absence case and ask the user to start over.
var ErrNotFound = errors.New("session not found")

const keyPrefix = "palm_session:"

// Record is the stored state of one anonymous upload.
type Record struct {
	PhotoKey  string `json:"photo_key"`
	DOB       string `json:"dob,omitempty"`
	Confirmed bool   `json:"confirmed"`
}

// Store is a redis-backed ephemeral session store.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore creates a session store with a fixed TTL for new sessions.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Create stores a new unconfirmed session and returns its opaque token.
func (s *Store) Create(ctx context.Context, photoKey, dob string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	rec := Record{PhotoKey: photoKey, DOB: dob}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session record: %w", err)
	}

	if err := s.rdb.Set(ctx, keyPrefix+token, data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	return token, nil
}

// Get returns the record for a token, or ErrNotFound.
func (s *Store) Get(ctx context.Context, token string) (*Record, error) {
	data, err := s.rdb.Get(ctx, keyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return decode(data)
}

// Confirm marks a session as confirmed in place, preserving the remaining
// TTL. Returns false if the token is unknown or expired.
func (s *Store) Confirm(ctx context.Context, token string) (bool, error) {
	rec, err := s.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	rec.Confirmed = true
	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("failed to marshal session record: %w", err)
	}

	err = s.rdb.SetArgs(ctx, keyPrefix+token, data, redis.SetArgs{KeepTTL: true}).Err()
	if err != nil {
		return false, fmt.Errorf("failed to confirm session: %w", err)
	}

	return true, nil
}

// Consume atomically reads and deletes a session so only one caller can
// convert it into a durable reading. Returns ErrNotFound if absent.
func (s *Store) Consume(ctx context.Context, token string) (*Record, error) {
	data, err := s.rdb.GetDel(ctx, keyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to consume session: %w", err)
	}
	return decode(data)
}

// Restore re-writes a consumed session with a fresh TTL so a failed
// conversion can be retried.
func (s *Store) Restore(ctx context.Context, token string, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+token, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	return nil
}

func decode(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session record: %w", err)
	}
	return &rec, nil
}

// generateToken returns an unguessable URL-safe token.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
