package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Keys with expiry stored in redis
// Used as token blacklist
type BlacklistRepo struct {
	RDB redis.Cmdable
}

func (r *BlacklistRepo) SetWithTTL(ctx context.Context, key string, value string, ttl time.Duration) error {
	err := r.RDB.Set(ctx, key, value, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *BlacklistRepo) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.RDB.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return n == 1, nil
}
