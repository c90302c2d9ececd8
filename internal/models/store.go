package models

import (
	"time"
)

// Activity log entry types.
const (
	ActivityIssue    = "issue"
	ActivityTrade    = "trade"
	ActivityReferral = "referral"
	ActivityWithdraw = "withdraw"
)

// FeeSplit is the breakdown of a single fee event across its destination
// buckets. Shares are absolute SOL amounts, not percentages.
type FeeSplit struct {
	TotalSol    float64 `json:"totalSol"`
	DevSol      float64 `json:"devSol"`
	CreatorSol  float64 `json:"creatorSol,omitempty"`
	ReferralSol float64 `json:"referralSol,omitempty"`
	ReserveSol  float64 `json:"reserveSol"`
}

// ActivityEntry is one record in the bounded, most-recent-first activity
// log. Trade and issue entries carry the fee split that was applied.
type ActivityEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Wallet    string    `json:"wallet"`
	CoinID    string    `json:"coinId,omitempty"`
	Side      string    `json:"side,omitempty"`
	Sol       float64   `json:"sol,omitempty"`
	Tokens    int64     `json:"tokens,omitempty"`
	Fee       *FeeSplit `json:"fee,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Clone returns a copy with its own FeeSplit, detached from the log.
func (e ActivityEntry) Clone() ActivityEntry {
	if e.Fee != nil {
		fee := *e.Fee
		e.Fee = &fee
	}
	return e
}

// Treasury holds the process-wide fee accumulators. Both values only ever
// grow.
type Treasury struct {
	DevSol     float64 `json:"devSol"`
	ReserveSol float64 `json:"reserveSol"`
}

// Store is the single authoritative snapshot: every coin, profile, referral
// edge, the treasury and the activity log, persisted as one atomic unit.
// There is exactly one logical Store per deployment.
type Store struct {
	Coins     []*Coin             `json:"coins"`
	Profiles  map[string]*Profile `json:"profiles"`
	Referrals map[string]string   `json:"referrals"`
	Treasury  Treasury            `json:"treasury"`
	Logs      []ActivityEntry     `json:"logs"`
}

// NewStore returns an empty store with all containers allocated.
func NewStore() *Store {
	return &Store{
		Coins:     []*Coin{},
		Profiles:  map[string]*Profile{},
		Referrals: map[string]string{},
		Logs:      []ActivityEntry{},
	}
}

// Coin returns the coin with the given id, or nil.
func (s *Store) Coin(id string) *Coin {
	for _, c := range s.Coins {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Profile returns the profile for a wallet, creating an empty one stamped
// with at when the wallet has not been seen before.
func (s *Store) Profile(wallet string, d Defaults, at time.Time) *Profile {
	if p, ok := s.Profiles[wallet]; ok {
		return p
	}
	p := NormalizeProfile(&Profile{Wallet: wallet, CreatedAt: at}, d)
	if ref, ok := s.Referrals[wallet]; ok {
		p.Referrer = ref
	}
	s.Profiles[wallet] = p
	return p
}

// AppendLog prepends an activity entry, evicting the oldest entries past
// the configured cap.
func (s *Store) AppendLog(entry ActivityEntry, limit int) {
	s.Logs = append([]ActivityEntry{entry}, s.Logs...)
	if limit > 0 && len(s.Logs) > limit {
		s.Logs = s.Logs[:limit]
	}
}
