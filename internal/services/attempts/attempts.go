// Package attempts ограничивает число попыток ввода купона одним пользователем за окно времени.
// Счётчики хранятся в Redis, поэтому лимит общий для всех экземпляров сервиса.
package attempts

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "coupon:attempts:"

// Limiter считает попытки в Redis по ключу coupon:attempts:<uid>.
type Limiter struct {
	client      redis.Cmdable
	maxAttempts int
	window      time.Duration
}

// New создаёт Limiter. maxAttempts <= 0 отключает ограничение.
func New(client redis.Cmdable, maxAttempts int, window time.Duration) *Limiter {
	return &Limiter{
		client:      client,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

// Allow регистрирует попытку пользователя и сообщает, укладывается ли она в лимит.
// Окно отсчитывается от первой попытки.
func (l *Limiter) Allow(ctx context.Context, userUID string) (bool, error) {
	const op = "attempts.Allow"
	if l.maxAttempts <= 0 {
		return true, nil
	}

	key := keyPrefix + userUID
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
	}

	return count <= int64(l.maxAttempts), nil
}
