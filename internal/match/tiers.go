package match

import (
	"sort"

	"github.com/dlsarena/backend/internal/config"
	"github.com/shopspring/decimal"
)

// Tier is a named fixed wager
type Tier struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

var hundred = decimal.NewFromInt(100)

// TiersFromConfig builds the wager table. Amounts are never taken from clients.
func TiersFromConfig(cfg *config.Config) map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"mini":    cfg.WagerMini,
		"beast":   cfg.WagerBeast,
		"monster": cfg.WagerMonster,
	}
}

// Split divides the pool of a settled match into the winner's payout and
// the platform fee.
func Split(wager, feePercent decimal.Decimal) (payout, fee decimal.Decimal) {
	pool := wager.Mul(decimal.NewFromInt(2))
	fee = pool.Mul(feePercent).Div(hundred)
	return pool.Sub(fee), fee
}

func sortedTiers(tiers map[string]decimal.Decimal) []Tier {
	out := make([]Tier, 0, len(tiers))
	for name, amount := range tiers {
		out = append(out, Tier{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Amount.LessThan(out[j].Amount) })
	return out
}
