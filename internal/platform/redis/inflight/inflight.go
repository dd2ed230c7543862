// Package inflight guards a webhook event against concurrent processing on
// several instances.
package inflight

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/matchpay/pkg/config"
	"github.com/fatflowers/matchpay/pkg/tool"
)

// ErrHeld is returned by Acquire when another holder owns the key.
var ErrHeld = errors.New("in-flight lock is held")

const keyPrefix = "webhook:inflight:"

// Locker hands out short-lived exclusive locks keyed by event id.
type Locker interface {
	// Acquire returns a release func, or ErrHeld when the key is taken.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Noop grants every lock. Used when redis is not configured.
type Noop struct{}

func (Noop) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	rdb redis.UniversalClient
	ttl time.Duration
	log *zap.SugaredLogger
}

func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration, log *zap.SugaredLogger) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{rdb: rdb, ttl: ttl, log: log}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := tool.GenerateUUIDV7()
	ok, err := l.rdb.SetNX(ctx, keyPrefix+key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire in-flight lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return func() {
		// the request context may already be done
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.rdb, []string{keyPrefix + key}, token).Err(); err != nil {
			l.log.Warnw("release in-flight lock failed", "key", key, "err", err)
		}
	}, nil
}

// New returns a RedisLocker when redis.addr is set, Noop otherwise.
func New(lc fx.Lifecycle, cfg *config.Config, log *zap.SugaredLogger) Locker {
	if cfg.Redis.Addr == "" {
		log.Infow("redis not configured, webhook in-flight lock disabled")
		return Noop{}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := rdb.Ping(ctx).Err(); err != nil {
				log.Warnw("redis ping failed", "addr", cfg.Redis.Addr, "err", err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return rdb.Close()
		},
	})
	return NewRedisLocker(rdb, cfg.Redis.LockTTL, log)
}

var Module = fx.Options(
	fx.Provide(New),
)
