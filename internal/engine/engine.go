package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wnt/solforge/internal/config"
	"github.com/wnt/solforge/internal/metrics"
	"github.com/wnt/solforge/internal/models"
	"github.com/wnt/solforge/internal/persist"
)

// Engine executes the transactional ledger operations. Every mutating
// operation is a full read-modify-write cycle over the single snapshot,
// serialized through one mutex so two concurrent requests can never
// compute conflicting mutations from the same stale snapshot. Entities
// returned to callers are deep copies; the live snapshot never leaves
// the lock.
type Engine struct {
	cfg      config.Config
	adapter  persist.Adapter
	defaults models.Defaults
	logger   zerolog.Logger

	mu sync.Mutex

	// Overridable for deterministic tests.
	now   func() time.Time
	newID func() string
}

// New creates an engine on top of a persistence adapter.
func New(cfg config.Config, adapter persist.Adapter, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		adapter:  adapter,
		defaults: cfg.Defaults(),
		logger:   log.With().Str("component", "engine").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// load fetches the current normalized snapshot. Callers must hold e.mu.
func (e *Engine) load(ctx context.Context) (*models.Store, error) {
	store, err := e.adapter.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return store, nil
}

// persist writes the whole snapshot back. Callers must hold e.mu.
func (e *Engine) persist(ctx context.Context, store *models.Store) error {
	if err := e.adapter.Save(ctx, store); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	metrics.RecordStoreStats(len(store.Coins), len(store.Profiles))
	return nil
}

// ListCoins returns all coins, live coins first, newest first within each
// status.
func (e *Engine) ListCoins(ctx context.Context) ([]*models.Coin, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	store, err := e.load(ctx)
	if err != nil {
		return nil, err
	}

	coins := make([]*models.Coin, len(store.Coins))
	for i, c := range store.Coins {
		coins[i] = c.Clone()
	}
	sort.SliceStable(coins, func(i, j int) bool {
		if coins[i].Status != coins[j].Status {
			return coins[i].Status == models.CoinStatusLive
		}
		return coins[i].CreatedAt.After(coins[j].CreatedAt)
	})
	return coins, nil
}

// GetProfile returns the profile for a wallet, creating and persisting an
// empty one when the wallet has not been seen before.
func (e *Engine) GetProfile(ctx context.Context, wallet string) (*models.Profile, error) {
	if wallet == "" {
		return nil, ErrMissingWallet
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	store, err := e.load(ctx)
	if err != nil {
		return nil, err
	}

	if p, ok := store.Profiles[wallet]; ok {
		return p.Clone(), nil
	}

	p := store.Profile(wallet, e.defaults, e.now())
	if err := e.persist(ctx, store); err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// Activity returns up to limit recent activity entries, newest first.
func (e *Engine) Activity(ctx context.Context, limit int) ([]models.ActivityEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	store, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	logs := store.Logs
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	out := make([]models.ActivityEntry, len(logs))
	for i, entry := range logs {
		out[i] = entry.Clone()
	}
	return out, nil
}

// creditCreatorReward accumulates a creator-reward amount on a wallet's
// profile, broken down by coin. Amounts are strictly positive by the time
// this is called; repeated calls accumulate.
func (e *Engine) creditCreatorReward(store *models.Store, wallet, coinID string, sol float64, at time.Time) {
	if wallet == "" || sol <= 0 {
		return
	}
	p := store.Profile(wallet, e.defaults, at)
	p.Rewards.TotalSol += sol
	p.Rewards.ByCoin[coinID] += sol
}

// creditReferralReward accumulates a referral-reward amount on the
// referrer's profile, broken down by the referred wallet.
func (e *Engine) creditReferralReward(store *models.Store, referrer, referred string, sol float64, at time.Time) {
	if referrer == "" || sol <= 0 {
		return
	}
	p := store.Profile(referrer, e.defaults, at)
	p.ReferralRewards.TotalSol += sol
	p.ReferralRewards.ByWallet[referred] += sol
}
