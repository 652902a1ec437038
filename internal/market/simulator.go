// Package market ties the pool, the trade ledger, the price series and the
// agent population into one simulated market. Every mutation goes through a
// single mutex, so human trades, agent ticks, credits and resets are
// serialized and each tick is atomic.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atmx/amm-market/internal/agent"
	"github.com/atmx/amm-market/internal/amm"
	"github.com/atmx/amm-market/internal/ledger"
	"github.com/atmx/amm-market/internal/metrics"
	"github.com/atmx/amm-market/internal/model"
	"github.com/atmx/amm-market/internal/population"
	"github.com/atmx/amm-market/internal/promo"
	"github.com/atmx/amm-market/internal/risk"
	"github.com/atmx/amm-market/internal/series"
)

// ChangeHorizon is the look-back used for the headline percent change.
const ChangeHorizon = 24 * time.Hour

// Config holds the simulation constants.
type Config struct {
	AgentCount         int
	TradesPerTickMin   int
	TradesPerTickMax   int
	AgentCooldown      time.Duration
	ParticipationScale float64

	InitialTokenReserve float64
	InitialCashReserve  float64
	TotalSupply         float64
	SellFeeBps          float64

	StartingCash   float64
	LedgerCapacity int
	Retention      time.Duration

	AgentParams agent.Params
}

// DefaultConfig returns the stock market: 1000 agents against a
// 10000 token / 1000 cash pool.
func DefaultConfig() Config {
	return Config{
		AgentCount:         1000,
		TradesPerTickMin:   3,
		TradesPerTickMax:   18,
		AgentCooldown:      2 * time.Second,
		ParticipationScale: population.DefaultParticipationScale,

		InitialTokenReserve: 10000,
		InitialCashReserve:  1000,
		TotalSupply:         10000,
		SellFeeBps:          30,

		StartingCash:   100,
		LedgerCapacity: ledger.DefaultCapacity,
		Retention:      series.DefaultRetention,

		AgentParams: agent.DefaultParams(),
	}
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithRand sets the random source. It is only used under the simulator lock.
func WithRand(r agent.Rand) Option {
	return func(s *Simulator) { s.rng = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// WithNotifier sets where state-change events go.
func WithNotifier(n Notifier) Option {
	return func(s *Simulator) { s.notifier = n }
}

// WithLimiter sets the per-trade size limits.
func WithLimiter(l *risk.Limiter) Option {
	return func(s *Simulator) { s.limiter = l }
}

// WithPromoTable sets the redeemable codes.
func WithPromoTable(t *promo.Table) Option {
	return func(s *Simulator) { s.promos = t }
}

// WithPopulationOptions passes options to the agent population.
func WithPopulationOptions(opts ...population.Option) Option {
	return func(s *Simulator) { s.popOpts = append(s.popOpts, opts...) }
}

// WithSeeding overrides how new agents are named and endowed.
func WithSeeding(names population.NameSource, wealth population.WealthDistribution) Option {
	return func(s *Simulator) {
		s.names = names
		s.wealth = wealth
	}
}

// Simulator is the market. All exported methods are safe for concurrent use.
type Simulator struct {
	cfg      Config
	rng      agent.Rand
	now      func() time.Time
	notifier Notifier
	limiter  *risk.Limiter
	promos   *promo.Table
	popOpts  []population.Option
	names    population.NameSource
	wealth   population.WealthDistribution

	mu       sync.Mutex
	pool     *amm.Pool
	ledger   *ledger.Ledger
	series   *series.Series
	agents   *population.Population
	accounts map[string]*model.Account
	order    []string // account IDs in creation order
}

// New creates a simulator with a fresh pool and a freshly seeded population.
func New(cfg Config, opts ...Option) (*Simulator, error) {
	s := &Simulator{
		cfg:      cfg,
		now:      time.Now,
		accounts: make(map[string]*model.Account),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.promos == nil {
		s.promos = promo.DefaultTable()
	}
	if cfg.TradesPerTickMin < 0 || cfg.TradesPerTickMax < cfg.TradesPerTickMin {
		return nil, fmt.Errorf("market: invalid trades per tick range [%d, %d]",
			cfg.TradesPerTickMin, cfg.TradesPerTickMax)
	}

	pool, err := amm.New(cfg.InitialTokenReserve, cfg.InitialCashReserve, amm.WithSellFeeBps(cfg.SellFeeBps))
	if err != nil {
		return nil, fmt.Errorf("market: initial pool: %w", err)
	}
	s.pool = pool
	s.ledger = ledger.New(cfg.LedgerCapacity)
	s.series = series.New(cfg.Retention)
	s.agents = population.New(s.rng, s.popOpts...)
	s.agents.Initialize(cfg.AgentCount, s.names, s.wealth, s.now())
	s.publishPool()
	return s, nil
}

// Config returns the simulator configuration.
func (s *Simulator) Config() Config { return s.cfg }

// --- Execute path ---

// Fill is the result of an executed trade.
type Fill struct {
	Trade          model.Trade    `json:"trade"`
	Fee            float64        `json:"fee"`
	PriceImpactPct float64        `json:"price_impact_pct"`
	Balances       model.Balances `json:"balances"`
}

// ExecuteBuy spends amount cash of actorID on tokens.
func (s *Simulator) ExecuteBuy(ctx context.Context, actorID string, amount float64) (Fill, error) {
	return s.executeLocked(ctx, model.SideBuy, actorID, amount)
}

// ExecuteSell sells amount tokens of actorID for cash.
func (s *Simulator) ExecuteSell(ctx context.Context, actorID string, amount float64) (Fill, error) {
	return s.executeLocked(ctx, model.SideSell, actorID, amount)
}

func (s *Simulator) executeLocked(ctx context.Context, side model.Side, actorID string, amount float64) (Fill, error) {
	if err := ctx.Err(); err != nil {
		return Fill{}, err
	}
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	fill, err := s.execute(side, actorID, amount, s.now())
	if err != nil {
		s.reject(side, actorID, amount, err)
		return Fill{}, err
	}
	metrics.TradeLatency.WithLabelValues(string(side)).Observe(time.Since(start).Seconds())
	slog.Info("trade executed",
		"trade_id", fill.Trade.ID,
		"actor", actorID,
		"side", side,
		"cash", fill.Trade.CashAmount,
		"tokens", fill.Trade.TokenAmount,
		"price", fill.Trade.ResultingPrice,
	)
	return fill, nil
}

// actor is a resolved trading identity: an agent or a human account.
type actor struct {
	id    string
	name  string
	bal   *model.Balances
	agent *model.Agent
}

func (s *Simulator) lookup(id string) (actor, bool) {
	if a, ok := s.agents.Get(id); ok {
		return actor{id: a.ID, name: a.Name, bal: &a.Balances, agent: a}, true
	}
	if acc, ok := s.accounts[id]; ok {
		return actor{id: acc.ID, name: acc.ID, bal: &acc.Balances}, true
	}
	return actor{}, false
}

// execute runs one trade. Callers hold s.mu. Any error leaves every piece of
// state untouched.
func (s *Simulator) execute(side model.Side, actorID string, amount float64, now time.Time) (Fill, error) {
	if !validAmount(amount) {
		return Fill{}, fmt.Errorf("%s %v: %w", side, amount, ErrInvalidAmount)
	}
	act, ok := s.lookup(actorID)
	if !ok {
		return Fill{}, fmt.Errorf("%s by %q: %w", side, actorID, ErrUnknownActor)
	}

	var (
		q   amm.Quote
		err error
	)
	switch side {
	case model.SideBuy:
		if amount > act.bal.Cash {
			return Fill{}, fmt.Errorf("buy %v with cash %v: %w", amount, act.bal.Cash, ErrInsufficientBalance)
		}
		if err := s.limiter.CheckBuy(amount); err != nil {
			return Fill{}, err
		}
		q, err = s.pool.ApplyBuy(amount)
	case model.SideSell:
		if amount > act.bal.Tokens {
			return Fill{}, fmt.Errorf("sell %v with tokens %v: %w", amount, act.bal.Tokens, ErrInsufficientBalance)
		}
		if err := s.limiter.CheckSell(amount); err != nil {
			return Fill{}, err
		}
		q, err = s.pool.ApplySell(amount)
	default:
		return Fill{}, fmt.Errorf("side %q: %w", side, ErrInvalidAmount)
	}
	if err != nil {
		if IsConsistencyFault(err) {
			slog.Error("pool consistency fault",
				"side", side,
				"actor", actorID,
				"amount", amount,
				"error", err,
			)
		}
		return Fill{}, fmt.Errorf("%s %v: %w", side, amount, err)
	}

	trade := model.Trade{
		ID:             uuid.New().String(),
		Side:           side,
		ActorID:        act.id,
		ActorName:      act.name,
		ResultingPrice: q.NewPrice,
		Timestamp:      now,
	}
	if side == model.SideBuy {
		act.bal.Cash -= amount
		act.bal.Tokens += q.AmountOut
		trade.CashAmount = amount
		trade.TokenAmount = q.AmountOut
	} else {
		act.bal.Tokens -= amount
		act.bal.Cash += q.AmountOut
		trade.CashAmount = q.AmountOut
		trade.TokenAmount = amount
	}
	act.bal.TotalTraded += trade.CashAmount
	if act.agent != nil {
		act.agent.LastTradeTime = now
	}

	s.ledger.Record(trade)
	s.series.Append(model.PricePoint{Timestamp: now, Price: q.NewPrice})

	kind := "human"
	if act.agent != nil {
		kind = "agent"
	}
	metrics.TradesTotal.WithLabelValues(string(side), kind).Inc()
	metrics.TradeVolume.WithLabelValues(string(side)).Add(trade.CashAmount)
	s.publishPool()

	s.notify(Event{Type: EventTrade, Price: q.NewPrice, Trade: &trade, ActorID: act.id, Timestamp: now})

	return Fill{
		Trade:          trade,
		Fee:            q.Fee,
		PriceImpactPct: q.PriceImpactPct,
		Balances:       *act.bal,
	}, nil
}

func (s *Simulator) reject(side model.Side, actorID string, amount float64, err error) {
	reason := Reason(err)
	metrics.TradeRejections.WithLabelValues(reason).Inc()
	slog.Debug("trade rejected",
		"actor", actorID,
		"side", side,
		"amount", amount,
		"reason", reason,
	)
}

// --- Agent ticks ---

// TickReport summarizes one simulation tick.
type TickReport struct {
	Eligible  int `json:"eligible"`
	Attempted int `json:"attempted"`
	Executed  int `json:"executed"`
	Rejected  int `json:"rejected"`
}

// Tick runs one round of agent trading. Price and percent change are read
// once at the start; every decision in the tick sees the same signals.
func (s *Simulator) Tick(ctx context.Context) (TickReport, error) {
	if err := ctx.Err(); err != nil {
		return TickReport{}, err
	}
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	price, err := s.pool.Price()
	if err != nil {
		slog.Error("tick: pool price unavailable", "error", err)
		return TickReport{}, err
	}
	pct := s.series.PercentChange(now, ChangeHorizon, price)

	eligible := s.agents.SelectActive(now, s.cfg.AgentCooldown,
		population.DefaultParticipation(s.cfg.ParticipationScale))
	report := TickReport{Eligible: len(eligible)}
	metrics.ActiveAgents.Set(float64(len(eligible)))

	k := s.cfg.TradesPerTickMin + s.rng.Intn(s.cfg.TradesPerTickMax-s.cfg.TradesPerTickMin+1)
	if k > len(eligible) {
		k = len(eligible)
	}

	for i := 0; i < k; i++ {
		id := eligible[s.rng.Intn(len(eligible))]
		a, ok := s.agents.Get(id)
		if !ok {
			continue
		}
		d := agent.Decide(*a, price, pct, s.cfg.AgentParams, s.rng)
		metrics.AgentDecisions.WithLabelValues(string(d.Action)).Inc()
		if d.Action == agent.ActionHold {
			continue
		}

		report.Attempted++
		side := model.SideBuy
		if d.Action == agent.ActionSell {
			side = model.SideSell
		}
		fill, err := s.execute(side, id, d.Amount, now)
		if err != nil {
			report.Rejected++
			s.reject(side, id, d.Amount, err)
			continue
		}
		report.Executed++
		slog.Debug("agent trade",
			"agent", a.Name,
			"side", side,
			"cash", fill.Trade.CashAmount,
			"tokens", fill.Trade.TokenAmount,
			"price", fill.Trade.ResultingPrice,
		)
	}

	metrics.TickDuration.Observe(time.Since(start).Seconds())
	if report.Executed > 0 {
		newPrice, _ := s.pool.Price()
		s.notify(Event{Type: EventTick, Price: newPrice, Tick: &report, Timestamp: now})
	}
	return report, nil
}

// --- Queries ---

// CurrentPrice returns the pool price.
func (s *Simulator) CurrentPrice() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.Price()
}

// PercentChange returns the 24h percent change.
func (s *Simulator) PercentChange() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	price, err := s.pool.Price()
	if err != nil {
		return 0
	}
	return s.series.PercentChange(s.now(), ChangeHorizon, price)
}

// Info is the market summary shown in the header of the display.
type Info struct {
	Price         float64 `json:"price"`
	Change24hPct  float64 `json:"change_24h_pct"`
	MarketCap     float64 `json:"market_cap"`
	TokenReserve  float64 `json:"token_reserve"`
	CashReserve   float64 `json:"cash_reserve"`
	Volume24h     float64 `json:"volume_24h"`
	FeesCollected float64 `json:"fees_collected"`
	Agents        int     `json:"agents"`
	Accounts      int     `json:"accounts"`
}

// MarketInfo returns the current market summary.
func (s *Simulator) MarketInfo() (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	price, err := s.pool.Price()
	if err != nil {
		return Info{}, err
	}
	return Info{
		Price:         price,
		Change24hPct:  s.series.PercentChange(now, ChangeHorizon, price),
		MarketCap:     s.pool.MarketCap(s.cfg.TotalSupply),
		TokenReserve:  s.pool.TokenReserve(),
		CashReserve:   s.pool.CashReserve(),
		Volume24h:     s.ledger.VolumeSince(now.Add(-ChangeHorizon)),
		FeesCollected: s.pool.FeesCollected(),
		Agents:        s.agents.Len(),
		Accounts:      len(s.accounts),
	}, nil
}

// QuoteBuy previews a buy of cash without executing it.
func (s *Simulator) QuoteBuy(cash float64) (amm.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.QuoteBuy(cash)
}

// QuoteSell previews a sell of tokens without executing it.
func (s *Simulator) QuoteSell(tokens float64) (amm.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.QuoteSell(tokens)
}

// RecentTrades returns up to n trades, most recent first. n <= 0 returns none.
func (s *Simulator) RecentTrades(n int) []model.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Recent(n)
}

// Trades returns every retained trade, most recent first.
func (s *Simulator) Trades() []model.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.All()
}

// Leaderboard ranks all actors by token balance, descending. Ties keep
// insertion order: agents in population order, then accounts in creation
// order. n <= 0 returns none.
func (s *Simulator) Leaderboard(n int) []model.LeaderboardEntry {
	if n <= 0 {
		return []model.LeaderboardEntry{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]model.LeaderboardEntry, 0, s.agents.Len()+len(s.order))
	for _, a := range s.agents.All() {
		entries = append(entries, model.LeaderboardEntry{
			ActorID: a.ID,
			Name:    a.Name,
			Tokens:  a.Balances.Tokens,
			Cash:    a.Balances.Cash,
			IsAgent: true,
		})
	}
	for _, id := range s.order {
		acc := s.accounts[id]
		entries = append(entries, model.LeaderboardEntry{
			ActorID: acc.ID,
			Name:    acc.ID,
			Tokens:  acc.Balances.Tokens,
			Cash:    acc.Balances.Cash,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Tokens > entries[j].Tokens
	})
	if n < len(entries) {
		entries = entries[:n]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// ChartSeries returns the price points for a named timeframe. Unknown names
// use the default timeframe.
func (s *Simulator) ChartSeries(timeframe string) []model.PricePoint {
	tf, _ := series.LookupTimeframe(timeframe)
	s.mu.Lock()
	defer s.mu.Unlock()
	price, _ := s.pool.Price()
	return s.series.Window(s.now(), tf.Window, price)
}

// VolumeBuckets returns bucketed trade volume for a named timeframe.
func (s *Simulator) VolumeBuckets(timeframe string) []model.VolumeBucket {
	tf, _ := series.LookupTimeframe(timeframe)
	s.mu.Lock()
	defer s.mu.Unlock()
	return series.BucketedVolume(s.now(), tf.Window, tf.Bucket, s.ledger.All())
}

// Account returns a human account.
func (s *Simulator) Account(id string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return model.Account{}, fmt.Errorf("account %q: %w", id, ErrUnknownActor)
	}
	return *acc, nil
}

// Agent returns an agent by ID.
func (s *Simulator) Agent(id string) (model.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents.Get(id)
	if !ok {
		return model.Agent{}, fmt.Errorf("agent %q: %w", id, ErrUnknownActor)
	}
	return *a, nil
}

// --- Mutations ---

// OpenAccount creates a human account with the configured starting cash. An
// existing account is returned unchanged with created=false. An empty id gets
// a generated one.
func (s *Simulator) OpenAccount(ctx context.Context, id string) (acc model.Account, created bool, err error) {
	if err := ctx.Err(); err != nil {
		return model.Account{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.New().String()
	}
	if existing, ok := s.accounts[id]; ok {
		return *existing, false, nil
	}
	if _, ok := s.agents.Get(id); ok {
		return model.Account{}, false, fmt.Errorf("account %q: %w", id, ErrActorExists)
	}

	now := s.now()
	a := &model.Account{
		ID:       id,
		Balances: model.Balances{Cash: s.cfg.StartingCash},
		JoinedAt: now,
	}
	s.accounts[id] = a
	s.order = append(s.order, id)

	slog.Info("account opened", "id", id, "cash", a.Balances.Cash)
	price, _ := s.pool.Price()
	s.notify(Event{Type: EventAccount, Price: price, ActorID: id, Timestamp: now})
	return *a, true, nil
}

// CreditCash adds amount cash to an actor.
func (s *Simulator) CreditCash(ctx context.Context, actorID string, amount float64) (model.Balances, error) {
	return s.credit(ctx, actorID, amount, func(b *model.Balances) { b.Cash += amount })
}

// CreditTokens adds amount tokens to an actor. The pool is not involved.
func (s *Simulator) CreditTokens(ctx context.Context, actorID string, amount float64) (model.Balances, error) {
	return s.credit(ctx, actorID, amount, func(b *model.Balances) { b.Tokens += amount })
}

// Redeem credits the cash behind a promo code. Codes are reusable.
func (s *Simulator) Redeem(ctx context.Context, actorID, code string) (float64, model.Balances, error) {
	amount, err := s.promos.Redeem(code)
	if err != nil {
		metrics.TradeRejections.WithLabelValues(Reason(err)).Inc()
		return 0, model.Balances{}, err
	}
	bal, err := s.CreditCash(ctx, actorID, amount)
	if err != nil {
		return 0, model.Balances{}, err
	}
	slog.Info("promo code redeemed", "actor", actorID, "amount", amount)
	return amount, bal, nil
}

func (s *Simulator) credit(ctx context.Context, actorID string, amount float64, apply func(*model.Balances)) (model.Balances, error) {
	if err := ctx.Err(); err != nil {
		return model.Balances{}, err
	}
	if !validAmount(amount) {
		return model.Balances{}, fmt.Errorf("credit %v: %w", amount, ErrInvalidAmount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	act, ok := s.lookup(actorID)
	if !ok {
		return model.Balances{}, fmt.Errorf("credit %q: %w", actorID, ErrUnknownActor)
	}
	apply(act.bal)

	slog.Info("balance credited", "actor", actorID, "amount", amount)
	price, _ := s.pool.Price()
	s.notify(Event{Type: EventCredit, Price: price, ActorID: actorID, Amount: amount, Timestamp: s.now()})
	return *act.bal, nil
}

// ResetMarket restores the pool to its initial reserves, clears the trade and
// price history, and re-seeds the agent population. Human accounts keep
// their balances.
func (s *Simulator) ResetMarket(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pool.Reset(s.cfg.InitialTokenReserve, s.cfg.InitialCashReserve); err != nil {
		return fmt.Errorf("reset pool: %w", err)
	}
	s.ledger.Reset()
	s.series.Reset()
	now := s.now()
	s.agents.Initialize(s.cfg.AgentCount, s.names, s.wealth, now)
	s.publishPool()

	price, _ := s.pool.Price()
	slog.Info("market reset", "price", price, "agents", s.agents.Len())
	s.notify(Event{Type: EventReset, Price: price, Timestamp: now})
	return nil
}

// --- Persistence ---

// Snapshot returns a deep copy of the restorable state.
func (s *Simulator) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := make([]model.Account, 0, len(s.order))
	for _, id := range s.order {
		accounts = append(accounts, *s.accounts[id])
	}
	pool := s.pool.State()
	return model.Snapshot{
		Accounts: accounts,
		Trades:   s.ledger.All(),
		Prices:   s.series.Points(),
		Pool:     &pool,
		Agents:   s.agents.All(),
	}
}

// Restore replaces the market state with snap. A missing pool falls back to
// the initial reserves and missing agents to a fresh population. An invalid
// pool state is rejected before anything changes.
func (s *Simulator) Restore(snap model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.Pool != nil {
		if err := s.pool.Restore(*snap.Pool); err != nil {
			return fmt.Errorf("restore pool: %w", err)
		}
	} else if err := s.pool.Reset(s.cfg.InitialTokenReserve, s.cfg.InitialCashReserve); err != nil {
		return fmt.Errorf("reset pool: %w", err)
	}

	s.accounts = make(map[string]*model.Account, len(snap.Accounts))
	s.order = s.order[:0]
	for _, acc := range snap.Accounts {
		if acc.ID == "" {
			continue
		}
		if _, dup := s.accounts[acc.ID]; dup {
			continue
		}
		s.accounts[acc.ID] = &acc
		s.order = append(s.order, acc.ID)
	}

	s.ledger.Restore(snap.Trades)
	s.series.Restore(snap.Prices)
	if len(snap.Agents) == 0 {
		s.agents.Initialize(s.cfg.AgentCount, s.names, s.wealth, s.now())
	} else {
		s.agents.Restore(snap.Agents)
	}
	s.publishPool()

	slog.Info("market restored",
		"accounts", len(s.order),
		"trades", s.ledger.Len(),
		"prices", s.series.Len(),
		"agents", s.agents.Len(),
	)
	return nil
}

func (s *Simulator) notify(e Event) {
	if s.notifier != nil {
		s.notifier.Notify(e)
	}
}

func (s *Simulator) publishPool() {
	price, err := s.pool.Price()
	if err != nil {
		return
	}
	metrics.SetPool(price, s.pool.TokenReserve(), s.pool.CashReserve())
}

func validAmount(x float64) bool {
	return x > 0 && !math.IsInf(x, 0) && !math.IsNaN(x)
}
