package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/agura-market/agura_market/internal/apperr"
)

// ErrPurchaseInFlight means another cash-in for the same product has not returned yet.
var ErrPurchaseInFlight = fmt.Errorf("a payment for this product is already in progress: %w", apperr.ErrConflict)

// Locker grants at most one in-flight purchase per product. The returned
// release func must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, productID string) (release func(), err error)
}

// MemoryLocker serialises purchases within a single process.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryLocker builds an in-process keyed try-lock.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (l *MemoryLocker) Acquire(_ context.Context, productID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[productID]; busy {
		return nil, ErrPurchaseInFlight
	}
	l.held[productID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, productID)
			l.mu.Unlock()
		})
	}, nil
}

const lockPrefix = "purchase:lock:v1:"

// Deletes the key only while it still holds our token, so an expired lock
// re-acquired by another replica is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serialises purchases across replicas with SET NX PX.
type RedisLocker struct {
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisLocker builds a distributed lock. ttl must exceed the gateway timeout.
func NewRedisLocker(cache *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	return &RedisLocker{cache: cache, ttl: ttl, logger: logger}
}

func (l *RedisLocker) Acquire(ctx context.Context, productID string) (func(), error) {
	key := lockPrefix + productID
	token := uuid.NewString()

	ok, err := l.cache.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire purchase lock: %w", err)
	}
	if !ok {
		return nil, ErrPurchaseInFlight
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.cache, []string{key}, token).Err(); err != nil && l.logger != nil {
				l.logger.Warn("release purchase lock failed", slog.String("product_id", productID), slog.Any("error", err))
			}
		})
	}, nil
}
