package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnt/solforge/internal/config"
	"github.com/wnt/solforge/internal/models"
)

// Realistic base58 wallet addresses; referral crediting checks plausibility.
const (
	creatorWallet  = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	traderWallet   = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	referrerWallet = "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1"
	otherWallet    = "3yFwqXBfZY4jBVUafQ1YEXw189y2dN3V5KQq9uzBAS1v"
)

// memAdapter keeps the snapshot in memory; saves can be made to fail to
// exercise the persistence error path.
type memAdapter struct {
	defaults models.Defaults
	store    *models.Store
	saves    int
	failSave bool
}

func (m *memAdapter) Load(_ context.Context) (*models.Store, error) {
	if m.store == nil {
		m.store = models.NormalizeStore(models.NewStore(), m.defaults)
	}
	return m.store, nil
}

func (m *memAdapter) Save(_ context.Context, store *models.Store) error {
	if m.failSave {
		return errors.New("backing store unreachable")
	}
	m.saves++
	m.store = store
	return nil
}

func (m *memAdapter) Close() error { return nil }

func testConfig() config.Config {
	return config.Config{
		PersistMode:        config.PersistFile,
		FeePct:             1,
		TradeSplitDev:      40,
		TradeSplitCreator:  40,
		TradeSplitReferral: 10,
		TradeSplitReserve:  10,
		IssueSplitDev:      50,
		IssueSplitReferral: 10,
		IssueSplitReserve:  40,
		LiveThresholdSol:   0.01,
		CreatorGrantPct:    2,
		OwnerMaxPct:        5,
		TotalSupply:        1_000_000_000,
		StartingMC:         6500,
		MCFloor:            1000,
		MCBumpPerSol:       100,
		ChartCap:           120,
		LogCap:             300,
		LogLevel:           "error",
	}
}

func newTestEngine(t *testing.T) (*Engine, *memAdapter) {
	t.Helper()
	cfg := testConfig()
	adapter := &memAdapter{defaults: cfg.Defaults()}
	return New(cfg, adapter, zerolog.Nop()), adapter
}

func issueLive(t *testing.T, e *Engine, contribution float64) *models.Coin {
	t.Helper()
	coin, err := e.IssueCoin(context.Background(), IssueParams{
		Name:                "Forge Coin",
		Symbol:              "FRG",
		CreatorWallet:       creatorWallet,
		InitialContribution: contribution,
	})
	require.NoError(t, err)
	return coin
}

// checkInvariants asserts the properties that must hold after every
// operation.
func checkInvariants(t *testing.T, store *models.Store, chartCap int) {
	t.Helper()
	for _, c := range store.Coins {
		assert.LessOrEqual(t, c.HeldTokens(), c.TotalSupply, "holders exceed supply for %s", c.ID)
		assert.GreaterOrEqual(t, c.ATH, c.MC, "ath below mc for %s", c.ID)
		assert.LessOrEqual(t, len(c.Chart), chartCap, "chart over cap for %s", c.ID)
		for w, amt := range c.Holders {
			assert.GreaterOrEqual(t, amt, int64(0), "negative holding %s/%s", c.ID, w)
		}
	}
}

func TestIssueCoinDraft(t *testing.T) {
	e, adapter := newTestEngine(t)
	ctx := context.Background()

	coin, err := e.IssueCoin(ctx, IssueParams{
		Name:          "Draft Coin",
		Symbol:        "drf",
		CreatorWallet: creatorWallet,
	})
	require.NoError(t, err)

	assert.Equal(t, models.CoinStatusDraft, coin.Status)
	assert.Equal(t, "DRF", coin.Symbol)
	assert.Equal(t, 0.0, coin.MC)
	assert.Empty(t, coin.Chart)

	// The creator grant is issued regardless of status.
	grant := int64(1_000_000_000 * 2 / 100)
	assert.Equal(t, grant, coin.Holders[creatorWallet])

	// Trading a draft coin is rejected with the not-live error.
	_, _, err = e.ExecuteTrade(ctx, TradeParams{
		Wallet: traderWallet, CoinID: coin.ID, Side: models.SideBuy, SolAmount: 1,
	})
	assert.ErrorIs(t, err, ErrCoinNotLive)

	checkInvariants(t, adapter.store, e.cfg.ChartCap)
}

func TestIssueCoinLive(t *testing.T) {
	e, adapter := newTestEngine(t)

	coin := issueLive(t, e, 1.0)

	assert.Equal(t, models.CoinStatusLive, coin.Status)
	assert.Equal(t, 6500.0, coin.MC)
	require.Len(t, coin.Chart, 5)
	assert.Equal(t, 1.0, coin.VolumeSol)

	// Fee of 1% on 1.0 SOL, split dev 50 / referral 10 / reserve 40.
	// With no referrer bound the referral share falls to the reserve.
	assert.InDelta(t, 0.005, adapter.store.Treasury.DevSol, 1e-12)
	assert.InDelta(t, 0.005, adapter.store.Treasury.ReserveSol, 1e-12)

	// Creation transaction recorded on the creator's profile.
	creator := adapter.store.Profiles[creatorWallet]
	require.NotNil(t, creator)
	require.NotEmpty(t, creator.Txs)
	assert.Equal(t, models.TxTypeCreate, creator.Txs[0].Side)
	assert.InDelta(t, 0.01, creator.Txs[0].FeeSol, 1e-12)

	// Activity log entry present.
	require.NotEmpty(t, adapter.store.Logs)
	assert.Equal(t, models.ActivityIssue, adapter.store.Logs[0].Type)

	checkInvariants(t, adapter.store, e.cfg.ChartCap)
}

func TestIssueCoinRoutesReferralShare(t *testing.T) {
	e, adapter := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.SetReferral(ctx, creatorWallet, referrerWallet))
	issueLive(t, e, 1.0)

	ref := adapter.store.Profiles[referrerWallet]
	require.NotNil(t, ref)
	assert.InDelta(t, 0.001, ref.ReferralRewards.TotalSol, 1e-12)
	assert.InDelta(t, 0.001, ref.ReferralRewards.ByWallet[creatorWallet], 1e-12)
	// Reserve only receives its own share when the referral routed.
	assert.InDelta(t, 0.004, adapter.store.Treasury.ReserveSol, 1e-12)
}

func TestIssueCoinValidation(t *testing.T) {
	e, adapter := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		params  IssueParams
		wantErr error
	}{
		{"missing wallet", IssueParams{Name: "A", Symbol: "AA"}, ErrMissingWallet},
		{"missing name", IssueParams{Symbol: "AA", CreatorWallet: creatorWallet}, ErrMissingName},
		{"symbol too short", IssueParams{Name: "A", Symbol: "A", CreatorWallet: creatorWallet}, ErrInvalidSymbol},
		{"symbol too long", IssueParams{Name: "A", Symbol: "ABCDEFGHIJK", CreatorWallet: creatorWallet}, ErrInvalidSymbol},
		{"symbol bad charset", IssueParams{Name: "A", Symbol: "AB$", CreatorWallet: creatorWallet}, ErrInvalidSymbol},
		{"negative contribution", IssueParams{Name: "A", Symbol: "AA", CreatorWallet: creatorWallet, InitialContribution: -1}, ErrNegativeAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.IssueCoin(ctx, tt.params)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Validation failures have no persistence side effects.
	assert.Equal(t, 0, adapter.saves)
}

func TestExecuteTradeBuy(t *testing.T) {
	e, adapter := newTestEngine(t)
	ctx := context.Background()

	coin := issueLive(t, e, 1.0)
	devBefore := adapter.store.Treasury.DevSol

	got, profile, err := e.ExecuteTrade(ctx, TradeParams{
		Wallet: traderWallet, CoinID: coin.ID, Side: models.SideBuy, SolAmount: 0.05,
	})
	require.NoError(t, err)

	// tokensPerSol = floor(1e9 / 6500) = 153846; tokens = floor(0.05 * 153846)
	wantTokens := int64(7692)
	assert.Equal(t, wantTokens, got.Holders[traderWallet])
	require.NotNil(t, profile.Holding(coin.ID))
	assert.Equal(t, wantTokens, profile.Holding(coin.ID).Amount)

	// Fee 1% of 0.05 = 0.0005; net 0.0495 bumps mc by 4.95.
	assert.InDelta(t, 6504.95, got.MC, 1e-9)
	assert.InDelta(t, got.MC, got.ATH, 1e-9)
	assert.Equal(t, got.MC, got.Chart[len(got.Chart)-1])
	assert.InDelta(t, 1.05, got.VolumeSol, 1e-12)

	// Fee split: dev 40%, creator 40%, referral 10% (falls to reserve,
	// no referrer), reserve 10%.
	assert.InDelta(t, 0.0002, adapter.store.Treasury.DevSol-devBefore, 1e-12)
	assert.InDelta(t, 0.0002, got.CreatorRewardsSol, 1e-12)
	creator := adapter.store.Profiles[creatorWallet]
	assert.InDelta(t, 0.0002, creator.Rewards.TotalSol, 1e-12)
	assert.InDelta(t, 0.0002, creator.Rewards.ByCoin[coin.ID], 1e-12)

	// Transaction history, newest first.
	require.NotEmpty(t, profile.Txs)
	assert.Equal(t, string(models.SideBuy), profile.Txs[0].Side)
	assert.Equal(t, wantTokens, profile.Txs[0].Tokens)

	// Activity log carries the split breakdown.
	require.NotEmpty(t, adapter.store.Logs)
	require.NotNil(t, adapter.store.Logs[0].Fee)
	assert.InDelta(t, 0.0005, adapter.store.Logs[0].Fee.TotalSol, 1e-12)

	checkInvariants(t, adapter.store, e.cfg.ChartCap)
}

func TestExecuteTradeReferralShare(t *testing.T) {
	e, adapter := newTestEngine(t)
	ctx := context.Background()

	coin := issueLive(t, e, 1.0)
	require.NoError(t, e.SetReferral(ctx, traderWallet, referrerWallet))

	_, _, err := e.ExecuteTrade(ctx, TradeParams{
		Wallet: traderWallet, CoinID: coin.ID, Side: models.SideBuy, SolAmount: 1.0,
	})
	require.NoError(t, err)

	// 10% of the 0.01 fee routes to the referrer.
	ref := adapter.store.Profiles[referrerWallet]
	require.NotNil(t, ref)
	assert.InDelta(t, 0.001, ref.ReferralRewards.TotalSol, 1e-12)
	assert.InDelta(t, 0.001, ref.ReferralRewards.ByWallet[traderWallet], 1e-12)
}

func TestExecuteTradeSell(t *testing.T) {
	e, adapter := newTestEngine(t)
	ctx := context.Background()

	coin := issueLive(t, e, 1.0)
	_, _, err := e.ExecuteTrade(ctx, TradeParams{
		Wallet: traderWallet, CoinID: coin.ID, Side: models.SideBuy, SolAmount: 0.05,
	})
	require.NoError(t, err)

	// Selling far more than held caps at the current holding and prunes
	// the position.
	got, profile, err := e.ExecuteTrade(ctx, TradeParams{
		Wallet: traderWallet, CoinID: coin.ID, Side: models.SideSell, SolAmount: 1000,
	})
	require.NoError(t, err)

	_, stillHolds := got.Holders[traderWallet]
	assert.False(t, stillHolds)
	assert.Nil(t, profile.Holding(coin.ID))

	// A huge sell drives mc down to the floor, never below.
	assert.Equal(t, e.cfg.MCFloor, got.MC)

	checkInvariants(t, adapter.store, e.cfg.ChartCap)
}

func TestExecuteTradeSellWithoutHolding(t *testing.T) {
	e, adapter := newTestEngine(t)
	ctx := context.Background()

	coin := issueLive(t, e, 1.0)
	holdersBefore := len(coin.Holders)
	savesBefore := adapter.saves

	_, _, err := e.ExecuteTrade(ctx, TradeParams{
		Wallet: traderWallet, CoinID: coin.ID, Side: models.SideSell, SolAmount: 0.01,
	})
	assert.ErrorIs(t, err, ErrInsufficientHolding)

	// Rejected attempts change nothing.
	assert.Len(t, adapter.store.Coin(coin.ID).Holders, holdersBefore)
	assert.Equal(t, savesBefore, adapter.saves)
}

func TestOwnershipCap(t *testing.T) {
	e, adapter := newTestEngine(t)
	ctx := context.Background()

	coin := issueLive(t, e, 1.0)
	grant := coin.Holders[creatorWallet]

	// 300 SOL buys ~46M tokens; the grant already holds 2% of supply, so
	// the resulting creator holding would exceed the 5% cap.
	_, _, err := e.ExecuteTrade(ctx, TradeParams{
		Wallet: creatorWallet, CoinID: coin.ID, Side: models.SideBuy, SolAmount: 300,
	})
	assert.ErrorIs(t, err, ErrOwnershipCap)
	assert.Equal(t, grant, adapter.store.Coin(coin.ID).Holders[creatorWallet])
	assert.Equal(t, 6500.0, adapter.store.Coin(coin.ID).MC)

	// A non-creator is never subject to the cap.
	_, _, err = e.ExecuteTrade(ctx, TradeParams{
		Wallet: traderWallet, CoinID: coin.ID, Side: models.SideBuy, SolAmount: 400,
	})
	require.NoError(t, err)
	assert.Greater(t, adapter.store.Coin(coin.ID).Holders[traderWallet], int64(coin.TotalSupply*5/100))

	// A small creator buy under the cap is fine.
	_, _, err = e.ExecuteTrade(ctx, TradeParams{
		Wallet: creatorWallet, CoinID: coin.ID, Side: models.SideBuy, SolAmount: 0.05,
	})
	require.NoError(t, err)

	checkInvariants(t, adapter.store, e.cfg.ChartCap)
}

func TestExecuteTradeValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	coin := issueLive(t, e, 1.0)

	_, _, err := e.ExecuteTrade(ctx, TradeParams{CoinID: coin.ID, Side: models.SideBuy, SolAmount: 1})
	assert.ErrorIs(t, err, ErrMissingWallet)

	_, _, err = e.ExecuteTrade(ctx, TradeParams{Wallet: traderWallet, CoinID: coin.ID, Side: "hold", SolAmount: 1})
	assert.ErrorIs(t, err, ErrInvalidSide)

	_, _, err = e.ExecuteTrade(ctx, TradeParams{Wallet: traderWallet, CoinID: coin.ID, Side: models.SideBuy, SolAmount: 0})
	assert.ErrorIs(t, err, ErrNonPositiveAmount)

	_, _, err = e.ExecuteTrade(ctx, TradeParams{Wallet: traderWallet, CoinID: "nope", Side: models.SideBuy, SolAmount: 1})
	assert.ErrorIs(t, err, ErrCoinNotFound)
}

func TestSetReferral(t *testing.T) {
	e, adapter := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.SetReferral(ctx, traderWallet, referrerWallet))
	assert.Equal(t, referrerWallet, adapter.store.Referrals[traderWallet])
	assert.Equal(t, referrerWallet, adapter.store.Profiles[traderWallet].Referrer)

	// First write wins; a second set never changes the stored referrer.
	err := e.SetReferral(ctx, traderWallet, otherWallet)
	assert.ErrorIs(t, err, ErrReferralExists)
	assert.Equal(t, referrerWallet, adapter.store.Referrals[traderWallet])

	assert.ErrorIs(t, e.SetReferral(ctx, traderWallet, traderWallet), ErrSelfReferral)
	assert.ErrorIs(t, e.SetReferral(ctx, "", referrerWallet), ErrMissingWallet)
	assert.ErrorIs(t, e.SetReferral(ctx, traderWallet, ""), ErrMissingReferrer)
}

func TestWithdraw(t *testing.T) {
	e, adapter := newTestEngine(t)
	ctx := context.Background()

	coin := issueLive(t, e, 1.0)
	_, _, err := e.ExecuteTrade(ctx, TradeParams{
		Wallet: traderWallet, CoinID: coin.ID, Side: models.SideBuy, SolAmount: 10,
	})
	require.NoError(t, err)

	creator := adapter.store.Profiles[creatorWallet]
	accrued := creator.Rewards.TotalSol
	require.Greater(t, accrued, 0.0)

	got, err := e.Withdraw(ctx, creatorWallet, WithdrawCreator, otherWallet)
	require.NoError(t, err)
	assert.Equal(t, accrued, got)
	assert.Equal(t, 0.0, creator.Rewards.TotalSol)
	assert.Empty(t, creator.Rewards.ByCoin)

	// A second immediate withdrawal returns zero.
	got, err = e.Withdraw(ctx, creatorWallet, WithdrawCreator, otherWallet)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	// Withdrawal recorded in the history with the pre-zero amount.
	assert.Equal(t, models.TxTypeWithdrawCreator, creator.Txs[1].Side)
	assert.Equal(t, accrued, creator.Txs[1].Sol)
}

func TestWithdrawReferral(t *testing.T) {
	e, adapter := newTestEngine(t)
	ctx := context.Background()

	coin := issueLive(t, e, 1.0)
	require.NoError(t, e.SetReferral(ctx, traderWallet, referrerWallet))
	_, _, err := e.ExecuteTrade(ctx, TradeParams{
		Wallet: traderWallet, CoinID: coin.ID, Side: models.SideBuy, SolAmount: 5,
	})
	require.NoError(t, err)

	ref := adapter.store.Profiles[referrerWallet]
	accrued := ref.ReferralRewards.TotalSol
	require.Greater(t, accrued, 0.0)

	got, err := e.Withdraw(ctx, referrerWallet, WithdrawReferral, otherWallet)
	require.NoError(t, err)
	assert.Equal(t, accrued, got)
	assert.Equal(t, 0.0, ref.ReferralRewards.TotalSol)
}

func TestWithdrawManual(t *testing.T) {
	e, adapter := newTestEngine(t)
	ctx := context.Background()

	coin := issueLive(t, e, 1.0)
	_, _, err := e.ExecuteTrade(ctx, TradeParams{
		Wallet: traderWallet, CoinID: coin.ID, Side: models.SideBuy, SolAmount: 10,
	})
	require.NoError(t, err)

	creator := adapter.store.Profiles[creatorWallet]
	before := creator.Rewards.TotalSol

	got, err := e.Withdraw(ctx, creatorWallet, WithdrawManual, otherWallet)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
	// Manual withdrawal is accounting only; balances untouched.
	assert.Equal(t, before, creator.Rewards.TotalSol)
	assert.Equal(t, models.TxTypeWithdrawManual, creator.Txs[0].Side)
}

func TestWithdrawValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Withdraw(ctx, "", WithdrawCreator, "")
	assert.ErrorIs(t, err, ErrMissingWallet)

	_, err = e.Withdraw(ctx, traderWallet, "SIDEWAYS", "")
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestListCoinsOrder(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	times := []time.Time{
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC),
	}
	i := 0
	e.now = func() time.Time { t := times[i%len(times)]; i++; return t }

	// Issue in mixed order: live, draft, live.
	issueLive(t, e, 1.0)
	_, err := e.IssueCoin(ctx, IssueParams{Name: "D", Symbol: "DD", CreatorWallet: creatorWallet})
	require.NoError(t, err)
	issueLive(t, e, 1.0)

	coins, err := e.ListCoins(ctx)
	require.NoError(t, err)
	require.Len(t, coins, 3)
	assert.Equal(t, models.CoinStatusLive, coins[0].Status)
	assert.Equal(t, models.CoinStatusLive, coins[1].Status)
	assert.Equal(t, models.CoinStatusDraft, coins[2].Status)
	// Newest live coin first.
	assert.True(t, coins[0].CreatedAt.After(coins[1].CreatedAt))
}

func TestGetProfileCreatesOnce(t *testing.T) {
	e, adapter := newTestEngine(t)
	ctx := context.Background()

	created := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	e.now = func() time.Time { return created }

	p1, err := e.GetProfile(ctx, traderWallet)
	require.NoError(t, err)
	require.NotNil(t, p1)
	// New profiles are stamped with the engine clock, not the wall clock.
	assert.Equal(t, created, p1.CreatedAt)
	savesAfterCreate := adapter.saves
	assert.Equal(t, 1, savesAfterCreate)

	p2, err := e.GetProfile(ctx, traderWallet)
	require.NoError(t, err)
	// Each read hands out its own copy of the same stored profile.
	assert.NotSame(t, p1, p2)
	assert.Equal(t, p1, p2)
	// Reads of an existing profile do not persist.
	assert.Equal(t, savesAfterCreate, adapter.saves)

	_, err = e.GetProfile(ctx, "")
	assert.ErrorIs(t, err, ErrMissingWallet)
}

func TestReturnedEntitiesDetachedFromSnapshot(t *testing.T) {
	e, adapter := newTestEngine(t)
	ctx := context.Background()

	coin := issueLive(t, e, 1.0)
	got, profile, err := e.ExecuteTrade(ctx, TradeParams{
		Wallet: traderWallet, CoinID: coin.ID, Side: models.SideBuy, SolAmount: 0.05,
	})
	require.NoError(t, err)

	// Mutating a returned entity never reaches the stored snapshot.
	got.Holders[traderWallet] = 0
	got.Chart[0] = -1
	profile.Rewards.ByCoin["bogus"] = 1
	profile.Txs[0].Sol = -1

	stored := adapter.store.Coin(coin.ID)
	assert.Equal(t, int64(7692), stored.Holders[traderWallet])
	assert.Equal(t, 6500.0, stored.Chart[0])
	storedProfile := adapter.store.Profiles[traderWallet]
	assert.NotContains(t, storedProfile.Rewards.ByCoin, "bogus")
	assert.Equal(t, 0.05, storedProfile.Txs[0].Sol)
}

func TestTradeResultsEncodeDuringConcurrentTrades(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	coin := issueLive(t, e, 1.0)

	// Each goroutine encodes its own result while the others keep
	// mutating the same coin through the engine.
	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			got, profile, err := e.ExecuteTrade(ctx, TradeParams{
				Wallet: traderWallet, CoinID: coin.ID, Side: models.SideBuy, SolAmount: 0.01,
			})
			if !assert.NoError(t, err) {
				return
			}
			_, err = json.Marshal(got)
			assert.NoError(t, err)
			_, err = json.Marshal(profile)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestTradeChartEvictsOldest(t *testing.T) {
	cfg := testConfig()
	cfg.ChartCap = 6
	adapter := &memAdapter{defaults: cfg.Defaults()}
	e := New(cfg, adapter, zerolog.Nop())
	ctx := context.Background()

	coin := issueLive(t, e, 1.0)
	require.Len(t, coin.Chart, 5)

	var got *models.Coin
	for i := 0; i < 8; i++ {
		var err error
		got, _, err = e.ExecuteTrade(ctx, TradeParams{
			Wallet: traderWallet, CoinID: coin.ID, Side: models.SideBuy, SolAmount: 0.05,
		})
		require.NoError(t, err)
	}

	// Eight samples appended onto the five seeds, trimmed to the cap with
	// the oldest dropped: the survivors are the mc after trades 3..8.
	require.Len(t, got.Chart, 6)
	assert.InDelta(t, 6500+3*4.95, got.Chart[0], 1e-9)
	assert.InDelta(t, 6500+8*4.95, got.Chart[5], 1e-9)
	assert.Equal(t, got.MC, got.Chart[5])

	checkInvariants(t, adapter.store, cfg.ChartCap)
}

func TestPersistenceErrorSurfaces(t *testing.T) {
	e, adapter := newTestEngine(t)
	ctx := context.Background()

	coin := issueLive(t, e, 1.0)
	adapter.failSave = true

	_, _, err := e.ExecuteTrade(ctx, TradeParams{
		Wallet: traderWallet, CoinID: coin.ID, Side: models.SideBuy, SolAmount: 1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersist)
	assert.False(t, IsRejection(err))
}

func TestConcurrentOperationsLoseNothing(t *testing.T) {
	e, adapter := newTestEngine(t)
	ctx := context.Background()

	coin := issueLive(t, e, 1.0)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _, err := e.ExecuteTrade(ctx, TradeParams{
				Wallet: traderWallet, CoinID: coin.ID, Side: models.SideBuy, SolAmount: 0.1,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Every trade's effect survives: volume reflects all n buys plus the
	// issuance contribution, and the history holds one record per trade.
	final := adapter.store.Coin(coin.ID)
	assert.InDelta(t, 1.0+float64(n)*0.1, final.VolumeSol, 1e-9)
	assert.Len(t, adapter.store.Profiles[traderWallet].Txs, n)
	checkInvariants(t, adapter.store, e.cfg.ChartCap)
}
