// Package risk enforces per-trade size limits. Limits apply to every actor,
// human or agent, and sit in front of the pool so an oversized order is
// rejected before it can move the price.
package risk

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrTradeTooLarge is returned when a single trade exceeds a configured
// maximum.
var ErrTradeTooLarge = errors.New("risk: trade exceeds size limit")

// Limiter caps the size of a single trade. A zero limit disables that check.
type Limiter struct {
	// MaxTradeCash is the largest cash amount a single buy may spend.
	MaxTradeCash decimal.Decimal

	// MaxTradeTokens is the largest token amount a single sell may offer.
	MaxTradeTokens decimal.Decimal
}

// NewLimiter creates a limiter. Negative limits are treated as zero.
func NewLimiter(maxCash, maxTokens float64) *Limiter {
	return &Limiter{
		MaxTradeCash:   nonNegative(maxCash),
		MaxTradeTokens: nonNegative(maxTokens),
	}
}

// Enabled reports whether any limit is active.
func (l *Limiter) Enabled() bool {
	return l != nil && (l.MaxTradeCash.IsPositive() || l.MaxTradeTokens.IsPositive())
}

// CheckBuy validates the cash side of a buy.
func (l *Limiter) CheckBuy(cash float64) error {
	if l == nil {
		return nil
	}
	return check(decimal.NewFromFloat(cash), l.MaxTradeCash, "cash")
}

// CheckSell validates the token side of a sell.
func (l *Limiter) CheckSell(tokens float64) error {
	if l == nil {
		return nil
	}
	return check(decimal.NewFromFloat(tokens), l.MaxTradeTokens, "tokens")
}

func check(amount, limit decimal.Decimal, unit string) error {
	if !limit.IsPositive() {
		return nil
	}
	if amount.GreaterThan(limit) {
		return fmt.Errorf("%w: %s %s > max %s", ErrTradeTooLarge, amount.StringFixed(8), unit, limit.String())
	}
	return nil
}

func nonNegative(f float64) decimal.Decimal {
	if f <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}
