// Package redis stores state shared between the wallet processes: the latest
// price snapshot and the per-payment dispatch locks.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lnwallet-ledger/internal/domain/price"
	"github.com/redis/go-redis/v9"
)

// PriceCache keeps the latest price snapshot under a single key so a freshly
// started process can serve conversions before its first refresh.
type PriceCache struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

func NewPriceCache(logger *slog.Logger, client *redis.Client, key string) *PriceCache {
	return &PriceCache{client: client, key: key, logger: logger}
}

// Save overwrites the cached snapshot. The value never expires; staleness is
// judged by the reader from ObservedAt.
func (c *PriceCache) Save(ctx context.Context, snapshot price.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal price snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key, payload, 0).Err(); err != nil {
		c.logger.Error("Failed to cache price snapshot", "key", c.key, "error", err)
		return fmt.Errorf("failed to cache price snapshot: %w", err)
	}
	return nil
}

// Load returns the cached snapshot, or NoPriceAvailableError when none was saved.
func (c *PriceCache) Load(ctx context.Context) (price.Snapshot, error) {
	payload, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return price.Snapshot{}, &price.NoPriceAvailableError{}
		}
		return price.Snapshot{}, fmt.Errorf("failed to load price snapshot: %w", err)
	}

	var snapshot price.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return price.Snapshot{}, fmt.Errorf("failed to unmarshal price snapshot: %w", err)
	}
	return snapshot, nil
}
