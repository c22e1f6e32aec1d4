package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists daily counters in Redis. Increment uses INCR, which is
// atomic by itself; EXPIRE is attached only on the first increment of a key
// (detected by INCR returning 1) so the counter expires 48 hours after its
// first increment, after its day has ended, without a separate sweep process.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, ttl: 48 * time.Hour}
}

func redisKey(principalID, dateKey string) string {
	return fmt.Sprintf("echolia:quota:%s:%s", dateKey, principalID)
}

func (r *RedisStore) Increment(ctx context.Context, principalID, dateKey string) (int64, error) {
	key := redisKey(principalID, dateKey)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("quota: redis incr: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
			return 0, fmt.Errorf("quota: redis expire: %w", err)
		}
	}
	return count, nil
}

func (r *RedisStore) Peek(ctx context.Context, principalID, dateKey string) (int64, error) {
	key := redisKey(principalID, dateKey)
	count, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("quota: redis get: %w", err)
	}
	return count, nil
}
