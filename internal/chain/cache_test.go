package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource counts lookups and returns a fixed balance.
type fakeSource struct {
	calls   int
	balance float64
	err     error
}

func (f *fakeSource) Balance(_ context.Context, _ string) (float64, error) {
	f.calls++
	return f.balance, f.err
}

func newTestCache(t *testing.T, source BalanceSource, ttl time.Duration) (*BalanceCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache, err := NewBalanceCache("redis://"+mr.Addr(), ttl, source, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache, mr
}

func TestBalanceCacheHitsSourceOnce(t *testing.T) {
	src := &fakeSource{balance: 1.25}
	cache, _ := newTestCache(t, src, 30*time.Second)
	ctx := context.Background()

	got, err := cache.Balance(ctx, "wallet1")
	require.NoError(t, err)
	assert.Equal(t, 1.25, got)
	assert.Equal(t, 1, src.calls)

	// Second lookup is served from the cache.
	got, err = cache.Balance(ctx, "wallet1")
	require.NoError(t, err)
	assert.Equal(t, 1.25, got)
	assert.Equal(t, 1, src.calls)
}

func TestBalanceCacheExpires(t *testing.T) {
	src := &fakeSource{balance: 2.5}
	cache, mr := newTestCache(t, src, 10*time.Second)
	ctx := context.Background()

	_, err := cache.Balance(ctx, "wallet1")
	require.NoError(t, err)

	mr.FastForward(11 * time.Second)

	_, err = cache.Balance(ctx, "wallet1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestBalanceCacheSeparateWallets(t *testing.T) {
	src := &fakeSource{balance: 3}
	cache, _ := newTestCache(t, src, time.Minute)
	ctx := context.Background()

	_, err := cache.Balance(ctx, "w1")
	require.NoError(t, err)
	_, err = cache.Balance(ctx, "w2")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestBalanceCachePropagatesSourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("rpc down")}
	cache, _ := newTestCache(t, src, time.Minute)

	_, err := cache.Balance(context.Background(), "w1")
	assert.Error(t, err)
}

func TestNewBalanceCacheBadURL(t *testing.T) {
	_, err := NewBalanceCache("not-a-url", time.Minute, &fakeSource{}, zerolog.Nop())
	assert.Error(t, err)
}
