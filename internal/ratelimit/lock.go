package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker is a single-holder redis lock. A lock expires after its ttl even if
// the holder never releases it.
type Locker struct {
	client redis.Cmdable
	script *redis.Script
}

// ReleaseFunc drops a held lock. It is a no-op once the lock has expired or
// been taken by someone else.
type ReleaseFunc func(ctx context.Context) error

func NewLocker(client redis.Cmdable) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

// Acquire reports ok=false without error when another holder owns key.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, bool, error) {
	if l == nil || l.client == nil {
		return nil, false, errors.New("lock client not configured")
	}
	if key == "" {
		return nil, false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return nil, false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}

	release := func(ctx context.Context) error {
		return l.script.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}
