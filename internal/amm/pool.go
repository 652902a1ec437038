// Package amm implements the constant-product automated market maker that
// prices the single traded token against cash.
//
// The pool holds two reserves whose product k is fixed between resets:
//
//	tokenReserve * cashReserve = k
//
// Every trade moves along the curve; the price is the reserve ratio
// cashReserve / tokenReserve. Quoting and applying share one code path so a
// preview shown to a trader is exactly what the trade fills at.
package amm

import (
	"errors"
	"math"

	"github.com/atmx/amm-market/internal/model"
)

var (
	// ErrInvalidAmount is returned for non-positive, NaN or infinite trade
	// amounts, and for amounts too small to produce any output.
	ErrInvalidAmount = errors.New("amm: trade amount must be a positive number")

	// ErrInvalidReserves is returned when a pool is created or reset with a
	// non-positive reserve.
	ErrInvalidReserves = errors.New("amm: reserves must be positive")

	// ErrPoolDepletion is returned when a trade would drive a reserve to zero
	// or below. Unreachable for finite inputs; the trade is refused.
	ErrPoolDepletion = errors.New("amm: trade would deplete a reserve")

	// ErrInconsistentState is returned when tokenReserve * cashReserve drifts
	// from the invariant after a mutation. The mutation is rolled back.
	ErrInconsistentState = errors.New("amm: constant-product invariant violated")

	// ErrDivisionByZero is returned by Price when the token reserve is zero.
	ErrDivisionByZero = errors.New("amm: token reserve is zero")
)

// InvariantTolerance is the relative tolerance for the k check.
const InvariantTolerance = 1e-9

// Quote is the outcome of a prospective trade against the current state.
type Quote struct {
	AmountIn        float64 `json:"amount_in"`
	AmountOut       float64 `json:"amount_out"` // net of fees
	Fee             float64 `json:"fee"`
	NewPrice        float64 `json:"new_price"`
	PriceImpactPct  float64 `json:"price_impact_pct"`
	NewTokenReserve float64 `json:"new_token_reserve"`
	NewCashReserve  float64 `json:"new_cash_reserve"`
}

// Pool is a constant-product liquidity pool. It is not safe for concurrent
// use; the market simulator serializes all access.
type Pool struct {
	tokenReserve  float64
	cashReserve   float64
	invariant     float64
	feesCollected float64

	// sellFee is the fraction of gross sell proceeds withheld from the seller.
	sellFee float64
}

// Option configures a Pool.
type Option func(*Pool)

// WithSellFeeBps sets the exit fee charged on sells, in basis points.
func WithSellFeeBps(bps float64) Option {
	return func(p *Pool) {
		if bps < 0 {
			bps = 0
		}
		if bps > 10000 {
			bps = 10000
		}
		p.sellFee = bps / 10000
	}
}

// New creates a pool seeded with the given reserves.
func New(tokenReserve, cashReserve float64, opts ...Option) (*Pool, error) {
	p := &Pool{}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.Reset(tokenReserve, cashReserve); err != nil {
		return nil, err
	}
	return p, nil
}

// Reset replaces the reserves and recomputes the invariant. This is the only
// operation that changes k.
func (p *Pool) Reset(tokenReserve, cashReserve float64) error {
	if !validAmount(tokenReserve) || !validAmount(cashReserve) {
		return ErrInvalidReserves
	}
	p.tokenReserve = tokenReserve
	p.cashReserve = cashReserve
	p.invariant = tokenReserve * cashReserve
	p.feesCollected = 0
	return nil
}

// TokenReserve returns the token side of the pool.
func (p *Pool) TokenReserve() float64 { return p.tokenReserve }

// CashReserve returns the cash side of the pool.
func (p *Pool) CashReserve() float64 { return p.cashReserve }

// Invariant returns k as recorded at the last reset.
func (p *Pool) Invariant() float64 { return p.invariant }

// FeesCollected returns the cash withheld from sellers since the last reset.
func (p *Pool) FeesCollected() float64 { return p.feesCollected }

// SellFeeBps returns the configured exit fee in basis points.
func (p *Pool) SellFeeBps() float64 { return p.sellFee * 10000 }

// Price returns the marginal price of one token in cash.
func (p *Pool) Price() (float64, error) {
	if p.tokenReserve == 0 {
		return 0, ErrDivisionByZero
	}
	return p.cashReserve / p.tokenReserve, nil
}

// MarketCap values totalSupply tokens at the current price.
func (p *Pool) MarketCap(totalSupply float64) float64 {
	price, err := p.Price()
	if err != nil {
		return 0
	}
	return price * totalSupply
}

// QuoteBuy computes the tokens received for cashIn:
//
//	tokensOut = tokenReserve - k / (cashReserve + cashIn)
func (p *Pool) QuoteBuy(cashIn float64) (Quote, error) {
	if !validAmount(cashIn) {
		return Quote{}, ErrInvalidAmount
	}
	price, err := p.Price()
	if err != nil {
		return Quote{}, err
	}

	newCash := p.cashReserve + cashIn
	newTokens := p.invariant / newCash
	tokensOut := math.Max(0, p.tokenReserve-newTokens)
	newPrice := newCash / newTokens

	q := Quote{
		AmountIn:        cashIn,
		AmountOut:       tokensOut,
		NewPrice:        newPrice,
		PriceImpactPct:  (newPrice/price - 1) * 100,
		NewTokenReserve: newTokens,
		NewCashReserve:  newCash,
	}
	if err := checkQuote(q); err != nil {
		return Quote{}, err
	}
	return q, nil
}

// QuoteSell computes the cash received for tokensIn:
//
//	grossOut = cashReserve - k / (tokenReserve + tokensIn)
//
// The exit fee is taken from grossOut; the reserves move by the gross amount.
func (p *Pool) QuoteSell(tokensIn float64) (Quote, error) {
	if !validAmount(tokensIn) {
		return Quote{}, ErrInvalidAmount
	}
	price, err := p.Price()
	if err != nil {
		return Quote{}, err
	}

	newTokens := p.tokenReserve + tokensIn
	newCash := p.invariant / newTokens
	grossOut := math.Max(0, p.cashReserve-newCash)
	fee := grossOut * p.sellFee
	newPrice := newCash / newTokens

	q := Quote{
		AmountIn:        tokensIn,
		AmountOut:       grossOut - fee,
		Fee:             fee,
		NewPrice:        newPrice,
		PriceImpactPct:  (newPrice/price - 1) * 100,
		NewTokenReserve: newTokens,
		NewCashReserve:  newCash,
	}
	if err := checkQuote(q); err != nil {
		return Quote{}, err
	}
	return q, nil
}

// checkQuote rejects a quote whose resulting state cannot be priced: a
// reserve or the new price outside (0, +Inf), or a non-finite impact.
func checkQuote(q Quote) error {
	if !positiveFinite(q.NewTokenReserve) || !positiveFinite(q.NewCashReserve) ||
		!positiveFinite(q.NewPrice) || !finite(q.PriceImpactPct) ||
		!finite(q.AmountOut) || !finite(q.Fee) {
		return ErrPoolDepletion
	}
	return nil
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

func positiveFinite(x float64) bool { return x > 0 && !math.IsInf(x, 0) }

// ApplyBuy executes a buy of cashIn and returns the quote it filled at.
func (p *Pool) ApplyBuy(cashIn float64) (Quote, error) {
	q, err := p.QuoteBuy(cashIn)
	if err != nil {
		return Quote{}, err
	}
	if q.AmountOut <= 0 {
		return Quote{}, ErrInvalidAmount
	}
	return q, p.apply(q)
}

// ApplySell executes a sell of tokensIn and returns the quote it filled at.
func (p *Pool) ApplySell(tokensIn float64) (Quote, error) {
	q, err := p.QuoteSell(tokensIn)
	if err != nil {
		return Quote{}, err
	}
	if q.AmountOut <= 0 {
		return Quote{}, ErrInvalidAmount
	}
	if err := p.apply(q); err != nil {
		return Quote{}, err
	}
	p.feesCollected += q.Fee
	return q, nil
}

func (p *Pool) apply(q Quote) error {
	if err := checkQuote(q); err != nil {
		return err
	}

	prevTokens, prevCash := p.tokenReserve, p.cashReserve
	p.tokenReserve = q.NewTokenReserve
	p.cashReserve = q.NewCashReserve

	if err := p.CheckInvariant(); err != nil {
		p.tokenReserve, p.cashReserve = prevTokens, prevCash
		return err
	}
	return nil
}

// CheckInvariant verifies tokenReserve * cashReserve against k within
// InvariantTolerance.
func (p *Pool) CheckInvariant() error {
	if !(p.tokenReserve > 0) || !(p.cashReserve > 0) {
		return ErrPoolDepletion
	}
	product := p.tokenReserve * p.cashReserve
	if math.Abs(product-p.invariant) > InvariantTolerance*p.invariant {
		return ErrInconsistentState
	}
	return nil
}

// State returns the serializable pool state.
func (p *Pool) State() model.PoolState {
	return model.PoolState{
		TokenReserve:  p.tokenReserve,
		CashReserve:   p.cashReserve,
		Invariant:     p.invariant,
		FeesCollected: p.feesCollected,
	}
}

// Restore loads a persisted state. The stored invariant is kept (it may
// differ from the product by rounding accumulated over many trades) but must
// agree with the reserves within tolerance.
func (p *Pool) Restore(s model.PoolState) error {
	if !validAmount(s.TokenReserve) || !validAmount(s.CashReserve) {
		return ErrInvalidReserves
	}
	invariant := s.Invariant
	if invariant <= 0 {
		invariant = s.TokenReserve * s.CashReserve
	}
	restored := Pool{
		tokenReserve:  s.TokenReserve,
		cashReserve:   s.CashReserve,
		invariant:     invariant,
		feesCollected: s.FeesCollected,
		sellFee:       p.sellFee,
	}
	if err := restored.CheckInvariant(); err != nil {
		return err
	}
	*p = restored
	return nil
}

func validAmount(x float64) bool {
	return x > 0 && !math.IsInf(x, 0) && !math.IsNaN(x)
}
