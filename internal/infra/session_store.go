package infra

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"gestionlearn.com/internal/constants"
	"gestionlearn.com/internal/domain"
)

// RedisSessionStore records revoked refresh tokens by jti. Entries expire with
// the token they describe.
type RedisSessionStore struct {
	rdb *redis.Client
}

var _ domain.SessionStore = (*RedisSessionStore)(nil)

func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

func (s *RedisSessionStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, constants.RedisKeyRevokedSession+tokenID, 1, ttl).Err()
}

func (s *RedisSessionStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, constants.RedisKeyRevokedSession+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
