package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const paymentLockPrefix = "lock:payment:"

// ErrLockHeld is returned when another dispatch holds the lock.
var ErrLockHeld = errors.New("payment lock is held")

// releaseScript deletes the lock only if it still carries the caller token, so
// a dispatch that outlived its TTL cannot free a lock taken by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// PaymentLock serialises dispatch of the same payment hash across processes.
type PaymentLock struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewPaymentLock(logger *slog.Logger, client *redis.Client, ttl time.Duration) *PaymentLock {
	return &PaymentLock{client: client, ttl: ttl, logger: logger}
}

// Acquire takes the lock for paymentHash. The returned release func is safe
// to call more than once.
func (l *PaymentLock) Acquire(ctx context.Context, paymentHash string) (func(), error) {
	key := paymentLockPrefix + paymentHash
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire payment lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// the caller ctx may already be cancelled
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("Failed to release payment lock", "payment_hash", paymentHash, "error", err)
		}
	}, nil
}
