package redis

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*BalanceCache, *miniredis.Miniredis) {
	t.Helper()

	srv, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewBalanceCache(logger, client, 10*time.Minute), srv
}

func TestBalanceCache_SetAndGet(t *testing.T) {
	ctx := context.Background()
	cache, srv := newTestCache(t)
	walletID := uuid.New()

	balance := decimal.RequireFromString("123.45")
	require.NoError(t, cache.Set(ctx, walletID, balance))

	got, hit, err := cache.Get(ctx, walletID)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.True(t, got.Equal(balance))

	ttl := srv.TTL(balanceKey(walletID))
	assert.Equal(t, 10*time.Minute, ttl)
}

func TestBalanceCache_GetMissesOnAbsentKey(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	got, hit, err := cache.Get(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.True(t, got.IsZero())
}

func TestBalanceCache_MalformedValueIsAMiss(t *testing.T) {
	ctx := context.Background()
	cache, srv := newTestCache(t)
	walletID := uuid.New()

	require.NoError(t, srv.Set(balanceKey(walletID), "not-a-decimal"))

	got, hit, err := cache.Get(ctx, walletID)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.True(t, got.IsZero())
}

func TestBalanceCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)
	walletID := uuid.New()

	require.NoError(t, cache.Set(ctx, walletID, decimal.NewFromInt(50)))
	require.NoError(t, cache.Invalidate(ctx, walletID))

	_, hit, err := cache.Get(ctx, walletID)
	require.NoError(t, err)
	assert.False(t, hit)

	// Invalidating a wallet with no cached balance is not an error
	assert.NoError(t, cache.Invalidate(ctx, uuid.New()))
}

func TestBalanceCache_GetReportsConnectionErrors(t *testing.T) {
	ctx := context.Background()
	cache, srv := newTestCache(t)

	srv.Close()

	_, hit, err := cache.Get(ctx, uuid.New())
	assert.Error(t, err)
	assert.False(t, hit)
}
