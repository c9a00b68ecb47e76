// Package redis caches current wallet balances. The cache is a read-through
// layer over the ledger-derived balance; historical queries never touch it.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const balanceKeyPrefix = "wallet:balance:"

// BalanceCache stores current balances keyed by wallet id with a TTL.
// Balances are serialized as decimal strings to preserve precision.
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewBalanceCache creates a balance cache backed by the given Redis client
func NewBalanceCache(logger *slog.Logger, client *redis.Client, ttl time.Duration) *BalanceCache {
	return &BalanceCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Get returns the cached balance for the wallet. The second return value
// reports whether the cache held an entry.
func (c *BalanceCache) Get(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, bool, error) {
	raw, err := c.client.Get(ctx, balanceKey(walletID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("failed to read cached balance: %w", err)
	}

	balance, err := decimal.NewFromString(raw)
	if err != nil {
		// A corrupt entry is treated as a miss so it gets overwritten
		c.logger.Warn("Dropping malformed cached balance", "wallet_id", walletID.String(), "value", raw)
		return decimal.Zero, false, nil
	}

	return balance, true, nil
}

// Set stores the balance for the wallet with the configured TTL
func (c *BalanceCache) Set(ctx context.Context, walletID uuid.UUID, balance decimal.Decimal) error {
	if err := c.client.Set(ctx, balanceKey(walletID), balance.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache balance: %w", err)
	}
	return nil
}

// Invalidate drops the cached balance for the wallet. Called whenever a
// settlement makes an entry touching the wallet terminal.
func (c *BalanceCache) Invalidate(ctx context.Context, walletID uuid.UUID) error {
	if err := c.client.Del(ctx, balanceKey(walletID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached balance: %w", err)
	}
	return nil
}

func balanceKey(walletID uuid.UUID) string {
	return balanceKeyPrefix + walletID.String()
}
