package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	DefaultRedisTTL   = 10 * time.Second
	defaultRetryDelay = 25 * time.Millisecond
	maxRetryDelay     = 250 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock that was taken over by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every instance that talks to the same redis.
// The TTL bounds how long a crashed holder can block a key.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    zerolog.Logger
}

func NewRedis(client *redis.Client, prefix string, ttl time.Duration, log zerolog.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &Redis{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		log:    log.With().Str("component", "lock.redis").Logger(),
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := r.prefix + key
	token := uuid.NewString()
	delay := defaultRetryDelay

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Join(ErrNotAcquired, ctx.Err())
			}
			return nil, fmt.Errorf("redis setnx %s: %w", redisKey, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-timer.C:
		}
		if delay *= 2; delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}

	return func() {
		// release must outlive a cancelled request context
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, r.client, []string{redisKey}, token).Err(); err != nil {
			r.log.Warn().Err(err).Str("key", redisKey).Msg("lock release failed")
		}
	}, nil
}
