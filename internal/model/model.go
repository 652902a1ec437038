// Package model defines the core domain types shared across the market simulator.
// Amounts are float64 inside the engine; the HTTP layer converts them to
// shopspring/decimal at the edge.
package model

import "time"

// Side is the direction of a trade from the actor's point of view.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trade is an immutable record of an executed swap against the pool.
// Once recorded, it is owned by the ledger and never modified.
type Trade struct {
	ID             string    `json:"id"`
	Side           Side      `json:"side"`
	ActorID        string    `json:"actor_id"`
	ActorName      string    `json:"actor_name"`
	CashAmount     float64   `json:"cash_amount"`
	TokenAmount    float64   `json:"token_amount"`
	ResultingPrice float64   `json:"resulting_price"`
	Timestamp      time.Time `json:"timestamp"`
}

// PricePoint is one sample of the pool price.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// Balances is the per-actor accounting shared by agents and human accounts.
type Balances struct {
	Cash        float64 `json:"cash"`
	Tokens      float64 `json:"tokens"`
	TotalTraded float64 `json:"total_traded"` // cumulative cash volume
}

// Personality biases an agent's trading decisions. Every field is in [0, 1].
type Personality struct {
	Aggression     float64 `json:"aggression"`
	Greed          float64 `json:"greed"`
	Fear           float64 `json:"fear"`
	Patience       float64 `json:"patience"`
	TrendFollowing float64 `json:"trend_following"`
	Contrarian     float64 `json:"contrarian"`
}

// Agent is an autonomous trader.
type Agent struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Balances      Balances    `json:"balances"`
	InitialTokens float64     `json:"initial_tokens"`
	Personality   Personality `json:"personality"`
	LastTradeTime time.Time   `json:"last_trade_time"`
}

// Account is a human-controlled trader.
type Account struct {
	ID       string    `json:"id"`
	Balances Balances  `json:"balances"`
	JoinedAt time.Time `json:"joined_at"`
}

// PoolState is the serializable form of the liquidity pool.
type PoolState struct {
	TokenReserve  float64 `json:"token_reserve"`
	CashReserve   float64 `json:"cash_reserve"`
	Invariant     float64 `json:"invariant"`
	FeesCollected float64 `json:"fees_collected"`
}

// Blob keys for the persisted snapshot. Each part is stored independently.
const (
	BlobAccounts        = "accounts"
	BlobLedger          = "ledger"
	BlobPriceSeries     = "priceSeries"
	BlobLiquidityPool   = "liquidityPool"
	BlobAgentPopulation = "agentPopulation"
)

// Snapshot is the full restorable market state.
// A nil Pool or Agents means the part was absent and defaults apply.
type Snapshot struct {
	Accounts []Account    `json:"accounts"`
	Trades   []Trade      `json:"trades"`
	Prices   []PricePoint `json:"prices"`
	Pool     *PoolState   `json:"pool"`
	Agents   []Agent      `json:"agents"`
}

// LeaderboardEntry ranks one actor by token holdings.
type LeaderboardEntry struct {
	Rank    int     `json:"rank"`
	ActorID string  `json:"actor_id"`
	Name    string  `json:"name"`
	Tokens  float64 `json:"tokens"`
	Cash    float64 `json:"cash"`
	IsAgent bool    `json:"is_agent"`
}

// VolumeBucket is the cash volume traded in one fixed-width time bucket.
type VolumeBucket struct {
	BucketCenter time.Time `json:"bucket_center"`
	Volume       float64   `json:"volume"`
}
