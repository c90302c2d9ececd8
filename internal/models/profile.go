package models

import (
	"time"
)

// TradeSide distinguishes the two directions of a trade.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// Transaction record types beyond plain trades.
const (
	TxTypeCreate           = "create"
	TxTypeWithdrawCreator  = "withdraw_creator"
	TxTypeWithdrawReferral = "withdraw_referral"
	TxTypeWithdrawManual   = "withdraw_manual"
)

// Holding is one wallet's position in one coin. A profile carries at most
// one holding per coin; zero-amount holdings are pruned after mutations.
type Holding struct {
	CoinID string    `json:"coinId"`
	Amount int64     `json:"amount"`
	LastAt time.Time `json:"lastAt"`
}

// TxRecord is one entry in a profile's transaction history,
// most-recent-first.
type TxRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	CoinID    string    `json:"coinId"`
	Side      string    `json:"side"`
	Sol       float64   `json:"sol"`
	Tokens    int64     `json:"tokens"`
	FeeSol    float64   `json:"feeSol"`
}

// Rewards accumulates creator-reward earnings for a wallet, broken down by
// the coin they were earned on. Zeroed atomically on withdrawal.
type Rewards struct {
	TotalSol float64            `json:"totalSol"`
	ByCoin   map[string]float64 `json:"byCoin"`
}

// ReferralRewards accumulates referral earnings for a wallet, broken down
// by the referred wallet that generated them. Zeroed atomically on
// withdrawal.
type ReferralRewards struct {
	TotalSol float64            `json:"totalSol"`
	ByWallet map[string]float64 `json:"byWallet"`
}

// Profile is per-wallet bookkeeping, keyed by wallet address in the store.
type Profile struct {
	Wallet          string          `json:"wallet"`
	Holdings        []Holding       `json:"holdings"`
	Txs             []TxRecord      `json:"txs"`
	Rewards         Rewards         `json:"rewards"`
	ReferralRewards ReferralRewards `json:"referralRewards"`

	// Referrer is set at most once; the referral edge in the store is the
	// authoritative copy and this field mirrors it.
	Referrer string `json:"referrer,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Clone returns a deep copy that can be read and encoded outside the
// snapshot lock while the original keeps mutating.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Holdings = make([]Holding, len(p.Holdings))
	copy(cp.Holdings, p.Holdings)
	cp.Txs = make([]TxRecord, len(p.Txs))
	copy(cp.Txs, p.Txs)
	cp.Rewards.ByCoin = make(map[string]float64, len(p.Rewards.ByCoin))
	for k, v := range p.Rewards.ByCoin {
		cp.Rewards.ByCoin[k] = v
	}
	cp.ReferralRewards.ByWallet = make(map[string]float64, len(p.ReferralRewards.ByWallet))
	for k, v := range p.ReferralRewards.ByWallet {
		cp.ReferralRewards.ByWallet[k] = v
	}
	return &cp
}

// Holding returns the profile's holding for a coin, or nil.
func (p *Profile) Holding(coinID string) *Holding {
	for i := range p.Holdings {
		if p.Holdings[i].CoinID == coinID {
			return &p.Holdings[i]
		}
	}
	return nil
}

// AdjustHolding adds delta tokens to the profile's holding for a coin,
// creating the entry when absent and pruning it when the balance reaches
// zero. The resulting amount is never negative.
func (p *Profile) AdjustHolding(coinID string, delta int64, at time.Time) {
	for i := range p.Holdings {
		if p.Holdings[i].CoinID != coinID {
			continue
		}
		p.Holdings[i].Amount += delta
		p.Holdings[i].LastAt = at
		if p.Holdings[i].Amount <= 0 {
			p.Holdings = append(p.Holdings[:i], p.Holdings[i+1:]...)
		}
		return
	}
	if delta > 0 {
		p.Holdings = append(p.Holdings, Holding{CoinID: coinID, Amount: delta, LastAt: at})
	}
}

// PrependTx inserts a transaction record at the head of the history.
func (p *Profile) PrependTx(tx TxRecord) {
	p.Txs = append([]TxRecord{tx}, p.Txs...)
}
