package engine

import (
	"context"
	"strings"

	"github.com/wnt/solforge/internal/logger"
	"github.com/wnt/solforge/internal/metrics"
	"github.com/wnt/solforge/internal/models"
)

// WithdrawKind selects which reward bucket a withdrawal drains.
type WithdrawKind string

const (
	WithdrawCreator  WithdrawKind = "CREATOR"
	WithdrawReferral WithdrawKind = "REFERRAL"

	// WithdrawManual records the request for out-of-band settlement
	// without touching any balance.
	WithdrawManual WithdrawKind = "MANUAL"
)

// Withdraw drains a reward bucket: it reads the accumulated total, zeroes
// the bucket atomically and returns the pre-zero amount. Withdrawing an
// empty bucket succeeds trivially with zero. MANUAL withdrawals only
// record the request; the actual fund movement happens elsewhere.
func (e *Engine) Withdraw(ctx context.Context, wallet string, kind WithdrawKind, destination string) (float64, error) {
	wallet = strings.TrimSpace(wallet)
	destination = strings.TrimSpace(destination)

	if wallet == "" {
		metrics.RecordLedgerOp("withdraw", "rejected")
		return 0, ErrMissingWallet
	}

	var side string
	switch kind {
	case WithdrawCreator:
		side = models.TxTypeWithdrawCreator
	case WithdrawReferral:
		side = models.TxTypeWithdrawReferral
	case WithdrawManual:
		side = models.TxTypeWithdrawManual
	default:
		metrics.RecordLedgerOp("withdraw", "rejected")
		return 0, ErrInvalidKind
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	store, err := e.load(ctx)
	if err != nil {
		metrics.RecordLedgerOp("withdraw", "failed")
		return 0, err
	}

	now := e.now()
	p := store.Profile(wallet, e.defaults, now)

	var amount float64
	switch kind {
	case WithdrawCreator:
		amount = p.Rewards.TotalSol
		p.Rewards = models.Rewards{ByCoin: map[string]float64{}}
	case WithdrawReferral:
		amount = p.ReferralRewards.TotalSol
		p.ReferralRewards = models.ReferralRewards{ByWallet: map[string]float64{}}
	case WithdrawManual:
		amount = 0
	}

	p.PrependTx(models.TxRecord{
		ID:        e.newID(),
		Timestamp: now,
		Side:      side,
		Sol:       amount,
	})

	store.AppendLog(models.ActivityEntry{
		ID:        e.newID(),
		Timestamp: now,
		Type:      models.ActivityWithdraw,
		Wallet:    wallet,
		Side:      string(kind),
		Sol:       amount,
		Detail:    destination,
	}, e.cfg.LogCap)

	if err := e.persist(ctx, store); err != nil {
		metrics.RecordLedgerOp("withdraw", "failed")
		return 0, err
	}

	metrics.RecordLedgerOp("withdraw", "success")
	walletLogger := logger.WithWallet(e.logger, wallet)
	walletLogger.Info().
		Str("kind", string(kind)).
		Float64("sol", amount).
		Msg("Withdrawal recorded")
	return amount, nil
}
