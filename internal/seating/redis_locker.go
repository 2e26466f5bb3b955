package seating

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the lock key only if it still carries our token so
// an instance whose lease lapsed cannot release someone else's lock.
var unlockScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// ErrLockTimeout is returned when the distributed flight lock could not
// be acquired within the configured wait.
var ErrLockTimeout = errors.New("seating: flight lock wait exceeded")

// RedisLocker extends the per-flight critical section across instances
// with a Redis lease (SET NX PX).  The in-process LocalLocker is taken
// first so local callers queue without hammering Redis.
type RedisLocker struct {
	rdb    *redis.Client
	local  *LocalLocker
	prefix string
	lease  time.Duration
	wait   time.Duration
	retry  time.Duration
}

// NewRedisLocker returns a RedisLocker.  lease bounds how long a crashed
// holder can keep a flight locked; wait bounds how long Lock retries.
func NewRedisLocker(rdb *redis.Client, lease, wait time.Duration) *RedisLocker {
	if lease <= 0 {
		lease = 5 * time.Second
	}
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &RedisLocker{
		rdb:    rdb,
		local:  NewLocalLocker(),
		prefix: "seatlock:",
		lease:  lease,
		wait:   wait,
		retry:  25 * time.Millisecond,
	}
}

// Lock implements Locker.
func (l *RedisLocker) Lock(ctx context.Context, flight string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	unlockLocal, err := l.local.Lock(ctx, flight)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrLockTimeout
		}
		return nil, err
	}

	key := l.prefix + flight
	token := uuid.NewString()
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.lease).Result()
		if err == nil && ok {
			break
		}
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			unlockLocal()
			return nil, err
		}
		select {
		case <-ctx.Done():
			unlockLocal()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrLockTimeout
			}
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	return func() {
		// Release with a fresh context; the caller's may already be done.
		rctx, rcancel := context.WithTimeout(context.Background(), time.Second)
		defer rcancel()
		_ = unlockScript.Run(rctx, l.rdb, []string{key}, token).Err()
		unlockLocal()
	}, nil
}
