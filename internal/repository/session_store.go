package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/exambuddy/exambuddy-backend/internal/config"
	"github.com/exambuddy/exambuddy-backend/internal/model"
	"github.com/redis/go-redis/v9"
)

// SessionStore persists live session state to Redis for crash recovery.
// Every record carries the configured TTL, so abandoned sessions expire on
// their own; the engine never actively evicts them.
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSessionStore creates a new SessionStore with the given retention window.
func NewSessionStore(rdb *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{rdb: rdb, ttl: ttl}
}

// Save writes the full session record under its session key, resetting the
// expiration marker. Called after every mutating operation.
func (s *SessionStore) Save(ctx context.Context, sess *model.ExamSession) error {
	rec := model.SessionRecord{
		ExamSession: *sess,
		ExpiresAt:   time.Now().UTC().Add(s.ttl),
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := s.rdb.Set(ctx, config.CacheKey.SessionKey(sess.SessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Get loads a persisted session record. Returns (nil, nil) when the record
// does not exist or has already expired.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*model.SessionRecord, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.SessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var rec model.SessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &rec, nil
}

// Delete removes a persisted session record. Returns whether a record existed.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.rdb.Del(ctx, config.CacheKey.SessionKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return n > 0, nil
}
