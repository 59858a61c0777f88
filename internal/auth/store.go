package auth

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrTokenNotFound = errors.New("token not found or already used")

// TokenStore holds the short-lived credential material: one-time login
// codes, refresh tokens, and the sign-out denylist.
type TokenStore interface {
	SaveLoginCode(ctx context.Context, code, userID string, ttl time.Duration) error
	// TakeLoginCode returns the user id for a code and consumes it; a second
	// take of the same code fails with ErrTokenNotFound.
	TakeLoginCode(ctx context.Context, code string) (string, error)
	SaveRefreshToken(ctx context.Context, token, userID string, ttl time.Duration) error
	TakeRefreshToken(ctx context.Context, token string) (string, error)
	RevokeJTI(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

const (
	loginCodeKeyPrefix = "login_code:"
	refreshKeyPrefix   = "refresh_token:"
	revokedKeyPrefix   = "revoked_jti:"
)

// RedisStore is the Redis-backed TokenStore used in production.
type RedisStore struct {
	Client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{Client: client}
}

func (s *RedisStore) SaveLoginCode(ctx context.Context, code, userID string, ttl time.Duration) error {
	return s.Client.Set(ctx, loginCodeKeyPrefix+code, userID, ttl).Err()
}

func (s *RedisStore) TakeLoginCode(ctx context.Context, code string) (string, error) {
	return s.take(ctx, loginCodeKeyPrefix+code)
}

func (s *RedisStore) SaveRefreshToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	return s.Client.Set(ctx, refreshKeyPrefix+token, userID, ttl).Err()
}

func (s *RedisStore) TakeRefreshToken(ctx context.Context, token string) (string, error) {
	return s.take(ctx, refreshKeyPrefix+token)
}

func (s *RedisStore) RevokeJTI(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.Client.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err()
}

func (s *RedisStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, err := s.Client.Get(ctx, revokedKeyPrefix+jti).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) take(ctx context.Context, key string) (string, error) {
	value, err := s.Client.GetDel(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}
