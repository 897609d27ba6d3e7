package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker guarantees at most one in-flight run per source. TryLock never
// blocks waiting for a holder: ok is false when another run owns the source.
// The returned release func must be called once the run is finished.
type Locker interface {
	TryLock(ctx context.Context, sourceID int64) (release func(), ok bool, err error)
}

// MemoryLocker is a Locker for a single process.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[int64]struct{}
}

// NewMemoryLocker creates an empty MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[int64]struct{})}
}

func (l *MemoryLocker) TryLock(_ context.Context, sourceID int64) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[sourceID]; busy {
		return nil, false, nil
	}
	l.held[sourceID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, sourceID)
			l.mu.Unlock()
		})
	}, true, nil
}

// DefaultLockTTL bounds how long a crashed process can keep a source locked.
// A live holder renews its lock every third of the TTL, so a run may outlast it.
const DefaultLockTTL = 10 * time.Minute

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the expiry only if the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker shares run locks between processes through Redis SET NX.
type RedisLocker struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisLocker creates a RedisLocker. Keys are named prefix + source ID.
func NewRedisLocker(client redis.Cmdable, prefix string, ttl time.Duration) *RedisLocker {
	if prefix == "" {
		prefix = "feedsift:run-lock:"
	}
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl}
}

func (l *RedisLocker) TryLock(ctx context.Context, sourceID int64) (func(), bool, error) {
	key := fmt.Sprintf("%s%d", l.prefix, sourceID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquiring run lock for source %d: %w", sourceID, err)
	}
	if !ok {
		return nil, false, nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(sourceID, key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				slog.Warn("releasing run lock", "source_id", sourceID, "error", err)
			}
		})
	}, true, nil
}

// keepAlive extends the lock until stop is closed or the lock is found to
// belong to someone else.
func (l *RedisLocker) keepAlive(sourceID int64, key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		n, err := extendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int64()
		cancel()
		switch {
		case err != nil:
			slog.Warn("extending run lock", "source_id", sourceID, "error", err)
		case n == 0:
			slog.Warn("run lock lost before the run finished", "source_id", sourceID)
			return
		}
	}
}
