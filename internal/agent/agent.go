// Package agent contains the decision function that drives the autonomous
// traders. Decide is pure: it reads an agent and the market signals, draws
// from the supplied random source, and returns a Decision without touching
// balances or the pool.
package agent

import (
	"math"

	"github.com/atmx/amm-market/internal/model"
)

// Rand is the random source used by the simulation. *math/rand.Rand
// satisfies it; tests inject fixed sequences.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Action is what an agent wants to do this tick.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Decision is the outcome of Decide. Amount is cash for buys and tokens
// for sells.
type Decision struct {
	Action Action  `json:"action"`
	Amount float64 `json:"amount"`
}

// Hold is the no-op decision.
var Hold = Decision{Action: ActionHold}

// PriceTier adds Signal to one side once the price crosses Price and
// multiplies the opposite side by Damping.
type PriceTier struct {
	Price   float64 `json:"price"`
	Signal  float64 `json:"signal"`
	Damping float64 `json:"damping"`
}

// Params are the tunable constants of the decision function.
type Params struct {
	// Price-level dampening. Expensive tiers trigger at or above Price and
	// push towards selling; cheap tiers trigger at or below Price and push
	// towards buying. The extreme tier wins over the mild one.
	ExpensiveMild    PriceTier `json:"expensive_mild"`
	ExpensiveExtreme PriceTier `json:"expensive_extreme"`
	CheapMild        PriceTier `json:"cheap_mild"`
	CheapExtreme     PriceTier `json:"cheap_extreme"`

	TrendWeight float64 `json:"trend_weight"`

	ContrarianWeight  float64 `json:"contrarian_weight"`
	ContrarianMovePct float64 `json:"contrarian_move_pct"`

	GreedWeight float64 `json:"greed_weight"`
	ProfitPrice float64 `json:"profit_price"`

	FearWeight  float64 `json:"fear_weight"`
	FearDropPct float64 `json:"fear_drop_pct"`

	// JitterAmplitude scales the uniform noise added to each signal.
	JitterAmplitude float64 `json:"jitter_amplitude"`

	// SignalCap bounds buy+sell; 0 disables the cap.
	SignalCap      float64 `json:"signal_cap"`
	TradeThreshold float64 `json:"trade_threshold"`

	BuyFraction       float64 `json:"buy_fraction"`
	MaxBuyCash        float64 `json:"max_buy_cash"`
	SellFraction      float64 `json:"sell_fraction"`
	SellReserveTokens float64 `json:"sell_reserve_tokens"`
	MaxSellTokens     float64 `json:"max_sell_tokens"`
}

// DefaultParams returns the tuning used in production. The starting price
// is 0.1, so the tiers sit at 5x/10x above and 2x/5x below it.
func DefaultParams() Params {
	return Params{
		ExpensiveMild:    PriceTier{Price: 0.5, Signal: 0.2, Damping: 0.7},
		ExpensiveExtreme: PriceTier{Price: 1.0, Signal: 0.5, Damping: 0.3},
		CheapMild:        PriceTier{Price: 0.05, Signal: 0.2, Damping: 0.7},
		CheapExtreme:     PriceTier{Price: 0.02, Signal: 0.5, Damping: 0.3},

		TrendWeight: 0.5,

		ContrarianWeight:  0.7,
		ContrarianMovePct: 5,

		GreedWeight: 0.3,
		ProfitPrice: 0.1,

		FearWeight:  0.6,
		FearDropPct: 2,

		JitterAmplitude: 0.8,

		SignalCap:      1.5,
		TradeThreshold: 0.15,

		BuyFraction:       0.8,
		MaxBuyCash:        100,
		SellFraction:      0.6,
		SellReserveTokens: 50,
		MaxSellTokens:     1000,
	}
}

// Decide evaluates one agent against the current price and the 24h percent
// change. It consumes two draws for jitter (when enabled) and one for sizing.
func Decide(a model.Agent, price, pctChange float64, p Params, r Rand) Decision {
	pers := a.Personality
	var buy, sell float64

	// Price level. Damping is applied once all other contributions are in.
	buyDamping, sellDamping := 1.0, 1.0
	switch {
	case p.ExpensiveExtreme.Price > 0 && price >= p.ExpensiveExtreme.Price:
		sell += p.ExpensiveExtreme.Signal
		buyDamping = p.ExpensiveExtreme.Damping
	case p.ExpensiveMild.Price > 0 && price >= p.ExpensiveMild.Price:
		sell += p.ExpensiveMild.Signal
		buyDamping = p.ExpensiveMild.Damping
	case p.CheapExtreme.Price > 0 && price <= p.CheapExtreme.Price:
		buy += p.CheapExtreme.Signal
		sellDamping = p.CheapExtreme.Damping
	case p.CheapMild.Price > 0 && price <= p.CheapMild.Price:
		buy += p.CheapMild.Signal
		sellDamping = p.CheapMild.Damping
	}

	// Trend following.
	if pctChange > 0 {
		buy += pers.TrendFollowing * p.TrendWeight
	} else {
		sell += pers.TrendFollowing * p.TrendWeight
	}

	// Contrarian, only on large moves.
	if pctChange > p.ContrarianMovePct {
		sell += pers.Contrarian * p.ContrarianWeight
	} else if pctChange < -p.ContrarianMovePct {
		buy += pers.Contrarian * p.ContrarianWeight
	}

	// Greed: take profit on tokens above the starting endowment.
	if a.Balances.Tokens > a.InitialTokens && price > p.ProfitPrice {
		sell += pers.Greed * p.GreedWeight
	}

	// Fear.
	if pctChange < -p.FearDropPct {
		sell += pers.Fear * p.FearWeight
	}

	if p.JitterAmplitude > 0 {
		buy += (r.Float64() - 0.5) * p.JitterAmplitude
		sell += (r.Float64() - 0.5) * p.JitterAmplitude
	}

	buy *= buyDamping
	sell *= sellDamping

	if total := buy + sell; p.SignalCap > 0 && total > p.SignalCap {
		scale := p.SignalCap / total
		buy *= scale
		sell *= scale
	}

	switch {
	case buy > sell && buy > p.TradeThreshold:
		maxAmount := math.Min(a.Balances.Cash*p.BuyFraction, capOrInf(p.MaxBuyCash))
		return sized(ActionBuy, maxAmount, buy, r)
	case sell > buy && sell > p.TradeThreshold:
		maxAmount := math.Min(a.Balances.Tokens*p.SellFraction, a.Balances.Tokens-p.SellReserveTokens)
		maxAmount = math.Min(maxAmount, capOrInf(p.MaxSellTokens))
		return sized(ActionSell, maxAmount, sell, r)
	}
	return Hold
}

func sized(action Action, maxAmount, signal float64, r Rand) Decision {
	if maxAmount <= 0 {
		return Hold
	}
	amount := math.Min(r.Float64()*maxAmount*signal, maxAmount)
	if !(amount > 0) {
		return Hold
	}
	return Decision{Action: action, Amount: amount}
}

func capOrInf(v float64) float64 {
	if v <= 0 {
		return math.Inf(1)
	}
	return v
}
