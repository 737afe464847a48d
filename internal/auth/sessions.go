package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maintrack/maintrack/internal/shared"
)

// SessionStore keeps live login sessions in Redis. A token whose session is gone is revoked.
type SessionStore struct {
	client *redis.Client
	prefix string
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client, prefix: "maintrack:session:"}
}

// Create records the session for ttl.
func (s *SessionStore) Create(ctx context.Context, id string, userID int64, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(id), strconv.FormatInt(userID, 10), ttl).Err(); err != nil {
		return fmt.Errorf("auth: store session: %w", err)
	}
	return nil
}

// Lookup returns the user bound to the session, or ErrInvalidToken when absent.
func (s *SessionStore) Lookup(ctx context.Context, id string) (int64, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, shared.ErrInvalidToken
		}
		return 0, fmt.Errorf("auth: load session: %w", err)
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, shared.ErrInvalidToken
	}
	return userID, nil
}

// Delete revokes the session.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("auth: delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) key(id string) string {
	return s.prefix + id
}
