package models

import (
	"time"
)

// CoinStatus is the lifecycle state of a coin. The transition DRAFT -> LIVE
// is decided once at issuance and never revisited.
type CoinStatus string

const (
	CoinStatusDraft CoinStatus = "DRAFT"
	CoinStatusLive  CoinStatus = "LIVE"
)

// Coin is a simulated tradable asset. Holder balances, the market-cap proxy
// and its chart all live on the coin itself; there is no separate order book.
type Coin struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Symbol        string     `json:"symbol"`
	Story         string     `json:"story"`
	Logo          string     `json:"logo"`
	CreatorWallet string     `json:"creatorWallet"`
	Status        CoinStatus `json:"status"`

	// TotalSupply is fixed at issuance. Holders maps wallet address to
	// token balance; the sum of balances never exceeds TotalSupply.
	TotalSupply int64            `json:"totalSupply"`
	Holders     map[string]int64 `json:"holders"`

	// MC is the synthetic market-cap proxy driving the pricing rule.
	// ATH tracks its high-water mark, Chart its recent samples
	// (most-recent-last, capped length).
	MC    float64   `json:"mc"`
	ATH   float64   `json:"ath"`
	Chart []float64 `json:"chart"`

	VolumeSol         float64 `json:"volumeSol"`
	CreatorRewardsSol float64 `json:"creatorRewardsSol"`

	CreatedAt time.Time `json:"createdAt"`
}

// Clone returns a deep copy that can be read and encoded outside the
// snapshot lock while the original keeps mutating.
func (c *Coin) Clone() *Coin {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Holders = make(map[string]int64, len(c.Holders))
	for w, amt := range c.Holders {
		cp.Holders[w] = amt
	}
	cp.Chart = make([]float64, len(c.Chart))
	copy(cp.Chart, c.Chart)
	return &cp
}

// HeldTokens returns the total number of tokens currently allocated to
// holders.
func (c *Coin) HeldTokens() int64 {
	var sum int64
	for _, amt := range c.Holders {
		sum += amt
	}
	return sum
}

// RemainingSupply returns the unallocated portion of TotalSupply.
func (c *Coin) RemainingSupply() int64 {
	rem := c.TotalSupply - c.HeldTokens()
	if rem < 0 {
		return 0
	}
	return rem
}
