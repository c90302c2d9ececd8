package engine

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/wnt/solforge/internal/logger"
	"github.com/wnt/solforge/internal/metrics"
	"github.com/wnt/solforge/internal/models"
	"github.com/wnt/solforge/internal/utils"
)

// TradeParams are the caller inputs for a buy or sell.
type TradeParams struct {
	Wallet    string
	CoinID    string
	Side      models.TradeSide
	SolAmount float64
}

func (p *TradeParams) validate() error {
	p.Wallet = strings.TrimSpace(p.Wallet)
	p.CoinID = strings.TrimSpace(p.CoinID)

	if p.Wallet == "" {
		return ErrMissingWallet
	}
	if p.CoinID == "" {
		return ErrCoinNotFound
	}
	if p.Side != models.SideBuy && p.Side != models.SideSell {
		return ErrInvalidSide
	}
	if p.SolAmount <= 0 || math.IsNaN(p.SolAmount) || math.IsInf(p.SolAmount, 0) {
		return ErrNonPositiveAmount
	}
	return nil
}

// tokensFor derives the token quantity for a trade from the simplified
// pricing rule: a near-constant price per token at the current market cap.
// Monotonic by construction: higher mc means fewer tokens per SOL.
func (e *Engine) tokensFor(coin *models.Coin, sol float64) int64 {
	mc := math.Max(coin.MC, e.cfg.MCFloor)
	tokensPerSol := math.Floor(float64(coin.TotalSupply) / mc)
	tokens := int64(math.Floor(sol * tokensPerSol))
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// ExecuteTrade settles a buy or sell against a live coin: fee split,
// token movement, market-cap adjustment and bookkeeping in one atomic
// read-modify-write cycle. All precondition checks happen before any
// mutation, so a rejected trade leaves the snapshot untouched.
func (e *Engine) ExecuteTrade(ctx context.Context, params TradeParams) (*models.Coin, *models.Profile, error) {
	if err := params.validate(); err != nil {
		metrics.RecordLedgerOp("trade", "rejected")
		return nil, nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	store, err := e.load(ctx)
	if err != nil {
		metrics.RecordLedgerOp("trade", "failed")
		return nil, nil, err
	}

	coin := store.Coin(params.CoinID)
	if coin == nil {
		metrics.RecordLedgerOp("trade", "rejected")
		return nil, nil, ErrCoinNotFound
	}
	if coin.Status != models.CoinStatusLive {
		metrics.RecordLedgerOp("trade", "rejected")
		return nil, nil, ErrCoinNotLive
	}

	now := e.now()
	trader := store.Profile(params.Wallet, e.defaults, now)
	feeSol := params.SolAmount * e.cfg.FeePct / 100
	net := params.SolAmount - feeSol
	tokens := e.tokensFor(coin, params.SolAmount)

	// Precondition checks, before any mutation.
	switch params.Side {
	case models.SideBuy:
		remaining := coin.RemainingSupply()
		if remaining == 0 {
			metrics.RecordLedgerOp("trade", "rejected")
			return nil, nil, ErrSupplyExhausted
		}
		if tokens > remaining {
			tokens = remaining
		}
		// Ownership cap applies to the coin's creator only; the issuance
		// grant already on the books counts toward the resulting holding.
		if params.Wallet == coin.CreatorWallet {
			capTokens := int64(float64(coin.TotalSupply) * utils.ClampPct(e.cfg.OwnerMaxPct) / 100)
			if coin.Holders[params.Wallet]+tokens > capTokens {
				metrics.RecordLedgerOp("trade", "rejected")
				return nil, nil, ErrOwnershipCap
			}
		}
	case models.SideSell:
		held := coin.Holders[params.Wallet]
		if held <= 0 {
			metrics.RecordLedgerOp("trade", "rejected")
			return nil, nil, ErrInsufficientHolding
		}
		// Cannot sell more than owned.
		if tokens > held {
			tokens = held
		}
	}

	fee := e.splitTradeFee(store, coin, params.Wallet, feeSol, now)

	switch params.Side {
	case models.SideBuy:
		coin.Holders[params.Wallet] += tokens
		trader.AdjustHolding(coin.ID, tokens, now)
		coin.MC += net * e.cfg.MCBumpPerSol
	case models.SideSell:
		coin.Holders[params.Wallet] -= tokens
		if coin.Holders[params.Wallet] <= 0 {
			delete(coin.Holders, params.Wallet)
		}
		trader.AdjustHolding(coin.ID, -tokens, now)
		coin.MC -= net * e.cfg.MCBumpPerSol
	}

	if coin.MC < e.cfg.MCFloor {
		coin.MC = e.cfg.MCFloor
	}
	if coin.MC > coin.ATH {
		coin.ATH = coin.MC
	}
	coin.Chart = append(coin.Chart, coin.MC)
	if len(coin.Chart) > e.cfg.ChartCap {
		coin.Chart = coin.Chart[len(coin.Chart)-e.cfg.ChartCap:]
	}
	coin.VolumeSol += params.SolAmount

	trader.PrependTx(models.TxRecord{
		ID:        e.newID(),
		Timestamp: now,
		CoinID:    coin.ID,
		Side:      string(params.Side),
		Sol:       params.SolAmount,
		Tokens:    tokens,
		FeeSol:    feeSol,
	})

	store.AppendLog(models.ActivityEntry{
		ID:        e.newID(),
		Timestamp: now,
		Type:      models.ActivityTrade,
		Wallet:    params.Wallet,
		CoinID:    coin.ID,
		Side:      string(params.Side),
		Sol:       params.SolAmount,
		Tokens:    tokens,
		Fee:       &fee,
	}, e.cfg.LogCap)

	if err := e.persist(ctx, store); err != nil {
		metrics.RecordLedgerOp("trade", "failed")
		return nil, nil, err
	}

	metrics.RecordLedgerOp("trade", "success")
	tradeLogger := logger.WithWallet(logger.WithCoin(e.logger, coin.ID), params.Wallet)
	tradeLogger.Info().
		Str("side", string(params.Side)).
		Float64("sol", params.SolAmount).
		Int64("tokens", tokens).
		Float64("mc", coin.MC).
		Msg("Trade settled")
	return coin.Clone(), trader.Clone(), nil
}

// splitTradeFee distributes a trade fee across the dev treasury, the
// coin's creator, the trader's referrer and the reserve treasury. The
// referral share falls through to the reserve when the trader has no
// bound, plausible referrer.
func (e *Engine) splitTradeFee(store *models.Store, coin *models.Coin, trader string, total float64, at time.Time) models.FeeSplit {
	fee := models.FeeSplit{
		TotalSol:   total,
		DevSol:     total * e.cfg.TradeSplitDev / 100,
		CreatorSol: total * e.cfg.TradeSplitCreator / 100,
		ReserveSol: total * e.cfg.TradeSplitReserve / 100,
	}
	referralShare := total * e.cfg.TradeSplitReferral / 100

	if fee.CreatorSol > 0 {
		coin.CreatorRewardsSol += fee.CreatorSol
		e.creditCreatorReward(store, coin.CreatorWallet, coin.ID, fee.CreatorSol, at)
	}

	referrer := store.Referrals[trader]
	if referrer != "" && utils.PlausibleAddress(referrer) {
		fee.ReferralSol = referralShare
		e.creditReferralReward(store, referrer, trader, referralShare, at)
	} else {
		fee.ReserveSol += referralShare
	}

	store.Treasury.DevSol += fee.DevSol
	store.Treasury.ReserveSol += fee.ReserveSol
	return fee
}
