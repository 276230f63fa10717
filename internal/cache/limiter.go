// Package cache содержит Redis-компоненты сервиса.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "quotes:login:"

// LoginLimiter — счётчик попыток входа в фиксированном окне.
// Ключ — нормализованный username; окно начинается с первой попытки.
type LoginLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// NewLoginLimiter создаёт клиент Redis из URL (например, redis://:pass@host:6379/0)
// и проверяет соединение.
func NewLoginLimiter(ctx context.Context, redisURL string, limit int64, window time.Duration) (*LoginLimiter, error) {
	const op = "cache.NewLoginLimiter"

	if limit <= 0 || window <= 0 {
		return nil, fmt.Errorf("%s: limit and window must be positive", op)
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &LoginLimiter{rdb: rdb, prefix: defaultPrefix, limit: limit, window: window}, nil
}

func (l *LoginLimiter) key(name string) string { return l.prefix + name }

// Allow учитывает попытку и сообщает, укладывается ли она в лимит.
func (l *LoginLimiter) Allow(ctx context.Context, name string) (bool, error) {
	const op = "cache.LoginLimiter.Allow"

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, l.key(name))
	pipe.ExpireNX(ctx, l.key(name), l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return incr.Val() <= l.limit, nil
}

// Reset сбрасывает счётчик после успешного входа.
func (l *LoginLimiter) Reset(ctx context.Context, name string) error {
	const op = "cache.LoginLimiter.Reset"

	if err := l.rdb.Del(ctx, l.key(name)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Ping проверяет доступность Redis.
func (l *LoginLimiter) Ping(ctx context.Context) error { return l.rdb.Ping(ctx).Err() }

// Close закрывает клиент Redis.
func (l *LoginLimiter) Close() error { return l.rdb.Close() }
