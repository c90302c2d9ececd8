package engine

import (
	"context"
	"strings"
	"time"

	"github.com/wnt/solforge/internal/logger"
	"github.com/wnt/solforge/internal/metrics"
	"github.com/wnt/solforge/internal/models"
	"github.com/wnt/solforge/internal/utils"
)

// IssueParams are the caller inputs for coin issuance.
type IssueParams struct {
	Name                string
	Symbol              string
	Story               string
	Logo                string
	InitialContribution float64
	CreatorWallet       string
}

func (p *IssueParams) validate() error {
	p.Name = strings.TrimSpace(p.Name)
	p.Symbol = strings.ToUpper(strings.TrimSpace(p.Symbol))
	p.CreatorWallet = strings.TrimSpace(p.CreatorWallet)

	if p.CreatorWallet == "" {
		return ErrMissingWallet
	}
	if p.Name == "" {
		return ErrMissingName
	}
	if len(p.Symbol) < 2 || len(p.Symbol) > 10 {
		return ErrInvalidSymbol
	}
	for _, c := range p.Symbol {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return ErrInvalidSymbol
		}
	}
	if p.InitialContribution < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// IssueCoin creates a new coin. Coins funded at or above the live
// threshold go LIVE immediately and pay the issuance fee; anything below
// stays DRAFT with no market. The status decision is permanent. The
// creator receives a one-time grant of the configured supply percentage,
// outside the ownership cap applied to ordinary buys.
func (e *Engine) IssueCoin(ctx context.Context, params IssueParams) (*models.Coin, error) {
	if err := params.validate(); err != nil {
		metrics.RecordLedgerOp("issue", "rejected")
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	store, err := e.load(ctx)
	if err != nil {
		metrics.RecordLedgerOp("issue", "failed")
		return nil, err
	}

	now := e.now()
	live := params.InitialContribution >= e.cfg.LiveThresholdSol

	coin := &models.Coin{
		ID:            e.newID(),
		Name:          params.Name,
		Symbol:        params.Symbol,
		Story:         params.Story,
		Logo:          params.Logo,
		CreatorWallet: params.CreatorWallet,
		Status:        models.CoinStatusDraft,
		TotalSupply:   e.cfg.TotalSupply,
		CreatedAt:     now,
	}
	if live {
		coin.Status = models.CoinStatusLive
	}

	creator := store.Profile(params.CreatorWallet, e.defaults, now)

	var fee models.FeeSplit
	if live {
		coin.VolumeSol = params.InitialContribution
		if e.cfg.FeePct > 0 {
			fee = e.splitIssueFee(store, params.CreatorWallet, params.InitialContribution, now)
		}
	}

	// One-time issuance grant; counts toward the creator's holding but is
	// not subject to the trade-time ownership cap.
	grant := int64(float64(coin.TotalSupply) * utils.ClampPct(e.cfg.CreatorGrantPct) / 100)
	coin.Holders = map[string]int64{}
	if grant > 0 {
		coin.Holders[params.CreatorWallet] = grant
		creator.AdjustHolding(coin.ID, grant, now)
	}

	coin = models.NormalizeCoin(coin, e.defaults)
	store.Coins = append(store.Coins, coin)

	creator.PrependTx(models.TxRecord{
		ID:        e.newID(),
		Timestamp: now,
		CoinID:    coin.ID,
		Side:      models.TxTypeCreate,
		Sol:       params.InitialContribution,
		Tokens:    grant,
		FeeSol:    fee.TotalSol,
	})

	entry := models.ActivityEntry{
		ID:        e.newID(),
		Timestamp: now,
		Type:      models.ActivityIssue,
		Wallet:    params.CreatorWallet,
		CoinID:    coin.ID,
		Sol:       params.InitialContribution,
		Tokens:    grant,
		Detail:    string(coin.Status),
	}
	if fee.TotalSol > 0 {
		entry.Fee = &fee
	}
	store.AppendLog(entry, e.cfg.LogCap)

	if err := e.persist(ctx, store); err != nil {
		metrics.RecordLedgerOp("issue", "failed")
		return nil, err
	}

	metrics.RecordLedgerOp("issue", "success")
	coinLogger := logger.WithCoin(e.logger, coin.ID)
	coinLogger.Info().
		Str("symbol", coin.Symbol).
		Str("status", string(coin.Status)).
		Float64("contribution", params.InitialContribution).
		Msg("Coin issued")
	return coin.Clone(), nil
}

// splitIssueFee deducts the issuance fee from the contribution and
// distributes it across the dev, referral and reserve buckets. The
// referral share routes to the creator's referrer when one is bound and
// plausible, otherwise it falls through to the reserve.
func (e *Engine) splitIssueFee(store *models.Store, creatorWallet string, contribution float64, at time.Time) models.FeeSplit {
	total := contribution * e.cfg.FeePct / 100
	fee := models.FeeSplit{
		TotalSol:   total,
		DevSol:     total * e.cfg.IssueSplitDev / 100,
		ReserveSol: total * e.cfg.IssueSplitReserve / 100,
	}
	referralShare := total * e.cfg.IssueSplitReferral / 100

	referrer := store.Referrals[creatorWallet]
	if referrer != "" && utils.PlausibleAddress(referrer) {
		fee.ReferralSol = referralShare
		e.creditReferralReward(store, referrer, creatorWallet, referralShare, at)
	} else {
		fee.ReserveSol += referralShare
	}

	store.Treasury.DevSol += fee.DevSol
	store.Treasury.ReserveSol += fee.ReserveSol
	return fee
}
