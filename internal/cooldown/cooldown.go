// Package cooldown rate-limits bot commands with a fixed Redis window per
// user and action. Redis being down fails open: a flooded command is better
// than a dead bot.
package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyFormat = "cooldown:%d:%s"

type Limiter struct {
	redis *redis.Client // nil disables limiting
	log   *zap.Logger
}

func New(rdb *redis.Client, log *zap.Logger) *Limiter {
	return &Limiter{redis: rdb, log: log}
}

// Allow reports whether the user may run the action now, permitting limit
// invocations per window.
func (l *Limiter) Allow(ctx context.Context, userID int64, action string, limit int, window time.Duration) bool {
	if l.redis == nil {
		return true
	}

	key := fmt.Sprintf(keyFormat, userID, action)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		l.log.Warn("cooldown check failed, allowing",
			zap.String("action", action), zap.Error(err))
		return true
	}
	if count == 1 {
		l.redis.Expire(ctx, key, window)
	}
	return count <= int64(limit)
}
