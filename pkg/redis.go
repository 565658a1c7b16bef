package pkg

import (
	"context"
	"dashboard"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTimeout = 5 * time.Second

func redisContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, redisTimeout)
}

// RedisGet retrieves a value from Redis and JSON-deserializes it into dest.
// Returns redis.Nil if the key does not exist.
func RedisGet(ctx context.Context, key string, dest any) error {
	ctx, cancel := redisContext(ctx)
	defer cancel()

	data, err := dashboard.Redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}

	return json.Unmarshal(data, dest)
}

// RedisDelete removes keys from Redis.
func RedisDelete(ctx context.Context, keys ...string) error {
	ctx, cancel := redisContext(ctx)
	defer cancel()

	return dashboard.Redis.Del(ctx, keys...).Err()
}

// IsRedisNil returns true if the error is a redis key-not-found error.
func IsRedisNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

// RedisVersion reads a counter written by RedisBumpVersion. A missing key is version 0.
func RedisVersion(ctx context.Context, key string) (int64, error) {
	ctx, cancel := redisContext(ctx)
	defer cancel()

	version, err := dashboard.Redis.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return version, err
}

// RedisBumpVersion increments the counter so pending RedisSetIfVersion calls fail.
func RedisBumpVersion(ctx context.Context, key string) error {
	ctx, cancel := redisContext(ctx)
	defer cancel()

	return dashboard.Redis.Incr(ctx, key).Err()
}

var errVersionMoved = errors.New("version moved")

// RedisSetIfVersion stores the JSON value only while versionKey still holds
// version. The check and the write run in one WATCH transaction. It reports
// whether the value was written.
func RedisSetIfVersion(ctx context.Context, versionKey string, version int64, key string, value any, ttl time.Duration) (bool, error) {
	ctx, cancel := redisContext(ctx)
	defer cancel()

	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}

	err = dashboard.Redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errVersionMoved
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}, versionKey)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errVersionMoved), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		return false, err
	}
}
