package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Redis struct{ C *redis.Client }

func NewRedis(addr string) *Redis {
	return &Redis{C: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *Redis) Ping(ctx context.Context) error { return r.C.Ping(ctx).Err() }
func (r *Redis) Close() error                   { return r.C.Close() }

// Allow implements a fixed-window counter: INCR a per-minute bucket keyed by
// caller, EXPIRE it on first hit, reject once the count passes the limit.
// Coarse but deterministic across multiple service instances.
func (r *Redis) Allow(ctx context.Context, key string, limitPerMin int) (bool, error) {
	if limitPerMin <= 0 {
		return true, nil
	}
	bucket := time.Now().Unix() / 60
	redisKey := fmt.Sprintf("rl:%s:%d", key, bucket)

	cnt, err := r.C.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		_ = r.C.Expire(ctx, redisKey, 61*time.Second).Err()
	}
	return cnt <= int64(limitPerMin), nil
}
