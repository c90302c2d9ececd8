package models

import (
	"strings"
	"time"

	"github.com/wnt/solforge/internal/utils"
)

// Defaults carries the configured constants the normalizers fall back to
// when a persisted record is missing or malformed. Snapshots written by
// older deployments may lack whole fields; normalization brings every
// entity back to an invariant-satisfying shape.
type Defaults struct {
	TotalSupply  int64
	StartingMC   float64
	MCFloor      float64
	ChartSeedLen int
	ChartCap     int
	LogCap       int
}

// NormalizeCoin returns the coin with every field defaulted, coerced and
// clamped to the invariants. It is idempotent: normalizing an
// already-normalized coin changes nothing.
func NormalizeCoin(c *Coin, d Defaults) *Coin {
	if c == nil {
		c = &Coin{}
	}
	c.Name = strings.TrimSpace(c.Name)
	c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
	c.Story = strings.TrimSpace(c.Story)
	c.Logo = strings.TrimSpace(c.Logo)
	c.CreatorWallet = strings.TrimSpace(c.CreatorWallet)

	if c.Status != CoinStatusLive {
		c.Status = CoinStatusDraft
	}
	if c.TotalSupply <= 0 {
		c.TotalSupply = d.TotalSupply
	}
	if c.Holders == nil {
		c.Holders = map[string]int64{}
	}
	for w, amt := range c.Holders {
		if amt < 0 {
			c.Holders[w] = 0
		}
	}

	c.MC = utils.NonNegative(c.MC)
	if c.Status == CoinStatusLive {
		if c.MC <= 0 {
			c.MC = d.StartingMC
		}
		if c.MC < d.MCFloor {
			c.MC = d.MCFloor
		}
	} else {
		// Draft coins have no market.
		c.MC = 0
	}
	if c.ATH < c.MC {
		c.ATH = c.MC
	}

	if c.Chart == nil {
		c.Chart = []float64{}
	}
	if c.Status == CoinStatusLive && len(c.Chart) == 0 {
		// Seed so chart consumers never observe an empty series.
		seed := d.ChartSeedLen
		if seed <= 0 {
			seed = 5
		}
		for i := 0; i < seed; i++ {
			c.Chart = append(c.Chart, c.MC)
		}
	}
	if d.ChartCap > 0 && len(c.Chart) > d.ChartCap {
		c.Chart = c.Chart[len(c.Chart)-d.ChartCap:]
	}

	c.VolumeSol = utils.NonNegative(c.VolumeSol)
	c.CreatorRewardsSol = utils.NonNegative(c.CreatorRewardsSol)

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return c
}

// NormalizeProfile returns the profile with all containers allocated,
// zero-amount holdings pruned and reward buckets clamped non-negative.
// Idempotent.
func NormalizeProfile(p *Profile, d Defaults) *Profile {
	if p == nil {
		p = &Profile{}
	}
	p.Wallet = strings.TrimSpace(p.Wallet)
	p.Referrer = strings.TrimSpace(p.Referrer)

	if p.Holdings == nil {
		p.Holdings = []Holding{}
	}
	kept := p.Holdings[:0]
	for _, h := range p.Holdings {
		if h.CoinID == "" || h.Amount <= 0 {
			continue
		}
		kept = append(kept, h)
	}
	p.Holdings = kept

	if p.Txs == nil {
		p.Txs = []TxRecord{}
	}

	p.Rewards.TotalSol = utils.NonNegative(p.Rewards.TotalSol)
	if p.Rewards.ByCoin == nil {
		p.Rewards.ByCoin = map[string]float64{}
	}
	for k, v := range p.Rewards.ByCoin {
		p.Rewards.ByCoin[k] = utils.NonNegative(v)
	}

	p.ReferralRewards.TotalSol = utils.NonNegative(p.ReferralRewards.TotalSol)
	if p.ReferralRewards.ByWallet == nil {
		p.ReferralRewards.ByWallet = map[string]float64{}
	}
	for k, v := range p.ReferralRewards.ByWallet {
		p.ReferralRewards.ByWallet[k] = utils.NonNegative(v)
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return p
}

// NormalizeTreasury clamps the treasury accumulators non-negative.
func NormalizeTreasury(t Treasury) Treasury {
	t.DevSol = utils.NonNegative(t.DevSol)
	t.ReserveSol = utils.NonNegative(t.ReserveSol)
	return t
}

// NormalizeStore normalizes every entity in the snapshot and repairs the
// cross-references between them: referral edges are mirrored onto
// profiles, and the activity log is trimmed to its cap. Tolerates
// partially-written or older-shaped snapshots.
func NormalizeStore(s *Store, d Defaults) *Store {
	if s == nil {
		s = NewStore()
	}
	if s.Coins == nil {
		s.Coins = []*Coin{}
	}
	for i, c := range s.Coins {
		s.Coins[i] = NormalizeCoin(c, d)
	}
	if s.Profiles == nil {
		s.Profiles = map[string]*Profile{}
	}
	for w, p := range s.Profiles {
		if p == nil {
			p = &Profile{Wallet: w}
		}
		if p.Wallet == "" {
			p.Wallet = w
		}
		s.Profiles[w] = NormalizeProfile(p, d)
	}
	if s.Referrals == nil {
		s.Referrals = map[string]string{}
	}
	for w, ref := range s.Referrals {
		if p, ok := s.Profiles[w]; ok && p.Referrer == "" {
			p.Referrer = ref
		}
	}
	s.Treasury = NormalizeTreasury(s.Treasury)
	if s.Logs == nil {
		s.Logs = []ActivityEntry{}
	}
	if d.LogCap > 0 && len(s.Logs) > d.LogCap {
		s.Logs = s.Logs[:d.LogCap]
	}
	return s
}
