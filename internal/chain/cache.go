package chain

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/wnt/solforge/internal/metrics"
)

const balanceKeyPrefix = "balance:"

// BalanceCache puts a short-TTL Redis cache in front of a BalanceSource
// so repeated profile views do not hammer the RPC endpoint. Cache
// failures degrade to a direct lookup.
type BalanceCache struct {
	client *redis.Client
	source BalanceSource
	ttl    time.Duration
	logger zerolog.Logger
}

// NewBalanceCache connects to Redis and wraps the given source.
func NewBalanceCache(redisURL string, ttl time.Duration, source BalanceSource, log zerolog.Logger) (*BalanceCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &BalanceCache{
		client: client,
		source: source,
		ttl:    ttl,
		logger: log.With().Str("component", "balance_cache").Logger(),
	}, nil
}

// Balance returns the cached balance when fresh, otherwise resolves it
// from the underlying source and caches the result.
func (c *BalanceCache) Balance(ctx context.Context, wallet string) (float64, error) {
	key := balanceKeyPrefix + wallet

	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		if sol, parseErr := strconv.ParseFloat(cached, 64); parseErr == nil {
			metrics.RecordBalanceLookup("cached")
			return sol, nil
		}
	} else if err != redis.Nil {
		c.logger.Warn().Err(err).Str("wallet", wallet).Msg("Balance cache read failed")
	}

	sol, err := c.source.Balance(ctx, wallet)
	if err != nil {
		return 0, err
	}

	if setErr := c.client.Set(ctx, key, strconv.FormatFloat(sol, 'f', -1, 64), c.ttl).Err(); setErr != nil {
		c.logger.Warn().Err(setErr).Str("wallet", wallet).Msg("Balance cache write failed")
	}

	return sol, nil
}

// Close closes the Redis connection.
func (c *BalanceCache) Close() error {
	return c.client.Close()
}
