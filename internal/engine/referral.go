package engine

import (
	"context"
	"strings"

	"github.com/wnt/solforge/internal/logger"
	"github.com/wnt/solforge/internal/metrics"
	"github.com/wnt/solforge/internal/models"
)

// SetReferral binds a wallet to its referrer. The edge is write-once:
// the first successful set is permanent and any later attempt is
// rejected without touching the stored referrer.
func (e *Engine) SetReferral(ctx context.Context, wallet, referrer string) error {
	wallet = strings.TrimSpace(wallet)
	referrer = strings.TrimSpace(referrer)

	if wallet == "" {
		metrics.RecordLedgerOp("referral", "rejected")
		return ErrMissingWallet
	}
	if referrer == "" {
		metrics.RecordLedgerOp("referral", "rejected")
		return ErrMissingReferrer
	}
	if wallet == referrer {
		metrics.RecordLedgerOp("referral", "rejected")
		return ErrSelfReferral
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	store, err := e.load(ctx)
	if err != nil {
		metrics.RecordLedgerOp("referral", "failed")
		return err
	}

	if _, exists := store.Referrals[wallet]; exists {
		metrics.RecordLedgerOp("referral", "rejected")
		return ErrReferralExists
	}

	now := e.now()
	store.Referrals[wallet] = referrer
	p := store.Profile(wallet, e.defaults, now)
	p.Referrer = referrer

	store.AppendLog(models.ActivityEntry{
		ID:        e.newID(),
		Timestamp: now,
		Type:      models.ActivityReferral,
		Wallet:    wallet,
		Detail:    referrer,
	}, e.cfg.LogCap)

	if err := e.persist(ctx, store); err != nil {
		metrics.RecordLedgerOp("referral", "failed")
		return err
	}

	metrics.RecordLedgerOp("referral", "success")
	walletLogger := logger.WithWallet(e.logger, wallet)
	walletLogger.Info().
		Str("referrer", referrer).
		Msg("Referral bound")
	return nil
}
