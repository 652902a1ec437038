// Package trade provides the HTTP handlers for quoting and executing trades
// against the simulated market, querying market data, and the admin
// endpoints.
//
// The engine works in float64; every monetary value crossing the HTTP
// boundary is shopspring/decimal rounded to MoneyPlaces.
package trade

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/amm-market/internal/amm"
	"github.com/atmx/amm-market/internal/market"
	"github.com/atmx/amm-market/internal/model"
)

// MoneyPlaces is the decimal precision of monetary JSON values.
const MoneyPlaces = 8

const (
	defaultTradeLimit       = 20
	defaultLeaderboardLimit = 10
	maxLimit                = 200
)

// Service handles market HTTP requests. Serialization of trades is the
// simulator's job; the service holds no locks.
type Service struct {
	sim      *market.Simulator
	adminKey string
}

// NewService creates a new trade service. An empty adminKey disables the
// admin endpoints.
func NewService(sim *market.Simulator, adminKey string) *Service {
	return &Service{
		sim:      sim,
		adminKey: adminKey,
	}
}

// Routes registers the handlers on r, relative to the API prefix.
func (s *Service) Routes(r chi.Router) {
	r.Get("/market", s.GetMarket)
	r.Get("/quote/buy", s.QuoteBuy)
	r.Get("/quote/sell", s.QuoteSell)
	r.Post("/accounts", s.CreateAccount)
	r.Get("/accounts/{actorID}", s.GetAccount)
	r.Post("/trade", s.ExecuteTrade)
	r.Get("/trades", s.ListTrades)
	r.Get("/leaderboard", s.GetLeaderboard)
	r.Get("/chart/{timeframe}", s.GetChart)
	r.Get("/volume/{timeframe}", s.GetVolume)
	r.Post("/redeem", s.Redeem)

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.RequireAdmin)
		r.Post("/credit-cash", s.CreditCash)
		r.Post("/credit-tokens", s.CreditTokens)
		r.Post("/reset", s.ResetMarket)
	})
}

// --- Request/Response types ---

// TradeRequest is the JSON body for POST /trade.
type TradeRequest struct {
	ActorID string          `json:"actor_id"`
	Side    string          `json:"side"`   // "buy" or "sell"
	Amount  decimal.Decimal `json:"amount"` // cash for buys, tokens for sells
}

// TradeResponse is the JSON body returned from POST /trade.
type TradeResponse struct {
	TradeID        string          `json:"trade_id"`
	ActorID        string          `json:"actor_id"`
	Side           string          `json:"side"`
	CashAmount     decimal.Decimal `json:"cash_amount"`
	TokenAmount    decimal.Decimal `json:"token_amount"`
	Fee            decimal.Decimal `json:"fee"`
	ResultingPrice decimal.Decimal `json:"resulting_price"`
	PriceImpactPct decimal.Decimal `json:"price_impact_pct"`
	Balances       BalancesView    `json:"balances"`
	Timestamp      time.Time       `json:"timestamp"`
}

// BalancesView is an actor's holdings.
type BalancesView struct {
	Cash        decimal.Decimal `json:"cash"`
	Tokens      decimal.Decimal `json:"tokens"`
	TotalTraded decimal.Decimal `json:"total_traded"`
}

// AccountResponse describes a human account or an agent.
type AccountResponse struct {
	ActorID  string       `json:"actor_id"`
	Name     string       `json:"name"`
	IsAgent  bool         `json:"is_agent"`
	Balances BalancesView `json:"balances"`
	JoinedAt *time.Time   `json:"joined_at,omitempty"`
}

// MarketResponse is the market summary.
type MarketResponse struct {
	Price         decimal.Decimal `json:"price"`
	Change24hPct  decimal.Decimal `json:"change_24h_pct"`
	MarketCap     decimal.Decimal `json:"market_cap"`
	TokenReserve  decimal.Decimal `json:"token_reserve"`
	CashReserve   decimal.Decimal `json:"cash_reserve"`
	Volume24h     decimal.Decimal `json:"volume_24h"`
	FeesCollected decimal.Decimal `json:"fees_collected"`
	Agents        int             `json:"agents"`
	Accounts      int             `json:"accounts"`
}

// QuoteResponse previews a trade.
type QuoteResponse struct {
	Side           string          `json:"side"`
	AmountIn       decimal.Decimal `json:"amount_in"`
	AmountOut      decimal.Decimal `json:"amount_out"`
	Fee            decimal.Decimal `json:"fee"`
	NewPrice       decimal.Decimal `json:"new_price"`
	PriceImpactPct decimal.Decimal `json:"price_impact_pct"`
}

// TradeView is one ledger entry.
type TradeView struct {
	TradeID        string          `json:"trade_id"`
	Side           string          `json:"side"`
	ActorID        string          `json:"actor_id"`
	ActorName      string          `json:"actor_name"`
	CashAmount     decimal.Decimal `json:"cash_amount"`
	TokenAmount    decimal.Decimal `json:"token_amount"`
	ResultingPrice decimal.Decimal `json:"resulting_price"`
	Timestamp      time.Time       `json:"timestamp"`
}

// LeaderboardEntry is one ranked actor.
type LeaderboardEntry struct {
	Rank    int             `json:"rank"`
	ActorID string          `json:"actor_id"`
	Name    string          `json:"name"`
	Tokens  decimal.Decimal `json:"tokens"`
	Cash    decimal.Decimal `json:"cash"`
	IsAgent bool            `json:"is_agent"`
}

// PricePointView is one chart sample.
type PricePointView struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

// VolumeBucketView is one volume bar.
type VolumeBucketView struct {
	BucketCenter time.Time       `json:"bucket_center"`
	Volume       decimal.Decimal `json:"volume"`
}

// AccountRequest is the optional JSON body for POST /accounts.
type AccountRequest struct {
	ActorID string `json:"actor_id"`
}

// RedeemRequest is the JSON body for POST /redeem.
type RedeemRequest struct {
	ActorID string `json:"actor_id"`
	Code    string `json:"code"`
}

// RedeemResponse reports a redeemed code.
type RedeemResponse struct {
	ActorID  string          `json:"actor_id"`
	Credited decimal.Decimal `json:"credited"`
	Balances BalancesView    `json:"balances"`
}

// CreditRequest is the JSON body for the admin credit endpoints.
type CreditRequest struct {
	ActorID string          `json:"actor_id"`
	Amount  decimal.Decimal `json:"amount"`
}

// --- HTTP Handlers ---

// GetMarket handles GET /api/v1/market
func (s *Service) GetMarket(w http.ResponseWriter, r *http.Request) {
	info, err := s.sim.MarketInfo()
	if err != nil {
		writeMarketError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MarketResponse{
		Price:         money(info.Price),
		Change24hPct:  decimal.NewFromFloat(info.Change24hPct).Round(2),
		MarketCap:     money(info.MarketCap),
		TokenReserve:  money(info.TokenReserve),
		CashReserve:   money(info.CashReserve),
		Volume24h:     money(info.Volume24h),
		FeesCollected: money(info.FeesCollected),
		Agents:        info.Agents,
		Accounts:      info.Accounts,
	})
}

// QuoteBuy handles GET /api/v1/quote/buy?amount=
func (s *Service) QuoteBuy(w http.ResponseWriter, r *http.Request) {
	s.quote(w, r, model.SideBuy)
}

// QuoteSell handles GET /api/v1/quote/sell?amount=
func (s *Service) QuoteSell(w http.ResponseWriter, r *http.Request) {
	s.quote(w, r, model.SideSell)
}

func (s *Service) quote(w http.ResponseWriter, r *http.Request, side model.Side) {
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, "amount must be a decimal number", market.ReasonInvalidAmount, http.StatusBadRequest)
		return
	}

	var q amm.Quote
	if side == model.SideBuy {
		q, err = s.sim.QuoteBuy(amount.InexactFloat64())
	} else {
		q, err = s.sim.QuoteSell(amount.InexactFloat64())
	}
	if err != nil {
		writeMarketError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, QuoteResponse{
		Side:           string(side),
		AmountIn:       money(q.AmountIn),
		AmountOut:      money(q.AmountOut),
		Fee:            money(q.Fee),
		NewPrice:       money(q.NewPrice),
		PriceImpactPct: decimal.NewFromFloat(q.PriceImpactPct).Round(4),
	})
}

// CreateAccount handles POST /api/v1/accounts
// The body is optional; without an actor_id a new ID is generated.
func (s *Service) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, "invalid request body", "INVALID_REQUEST", http.StatusBadRequest)
		return
	}

	acc, created, err := s.sim.OpenAccount(r.Context(), req.ActorID)
	if err != nil {
		writeMarketError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, accountView(acc))
}

// GetAccount handles GET /api/v1/accounts/{actorID}
// Agents are visible here too.
func (s *Service) GetAccount(w http.ResponseWriter, r *http.Request) {
	actorID := chi.URLParam(r, "actorID")

	if acc, err := s.sim.Account(actorID); err == nil {
		writeJSON(w, http.StatusOK, accountView(acc))
		return
	}
	a, err := s.sim.Agent(actorID)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AccountResponse{
		ActorID:  a.ID,
		Name:     a.Name,
		IsAgent:  true,
		Balances: balancesView(a.Balances),
	})
}

// ExecuteTrade handles POST /api/v1/trade
// Executes against the pool and returns the fill and updated balances.
func (s *Service) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", "INVALID_REQUEST", http.StatusBadRequest)
		return
	}

	// --- Input validation ---
	if req.ActorID == "" {
		writeError(w, "actor_id is required", "INVALID_REQUEST", http.StatusBadRequest)
		return
	}
	if req.Side != string(model.SideBuy) && req.Side != string(model.SideSell) {
		writeError(w, "side must be buy or sell", "INVALID_REQUEST", http.StatusBadRequest)
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, "amount must be positive", market.ReasonInvalidAmount, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	amount := req.Amount.InexactFloat64()

	var (
		fill market.Fill
		err  error
	)
	if req.Side == string(model.SideBuy) {
		fill, err = s.sim.ExecuteBuy(ctx, req.ActorID, amount)
	} else {
		fill, err = s.sim.ExecuteSell(ctx, req.ActorID, amount)
	}
	if err != nil {
		writeMarketError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TradeResponse{
		TradeID:        fill.Trade.ID,
		ActorID:        fill.Trade.ActorID,
		Side:           string(fill.Trade.Side),
		CashAmount:     money(fill.Trade.CashAmount),
		TokenAmount:    money(fill.Trade.TokenAmount),
		Fee:            money(fill.Fee),
		ResultingPrice: money(fill.Trade.ResultingPrice),
		PriceImpactPct: decimal.NewFromFloat(fill.PriceImpactPct).Round(4),
		Balances:       balancesView(fill.Balances),
		Timestamp:      fill.Trade.Timestamp,
	})
}

// ListTrades handles GET /api/v1/trades?limit=
// Returns the most recent trades first.
func (s *Service) ListTrades(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultTradeLimit)
	trades := s.sim.RecentTrades(limit)

	out := make([]TradeView, 0, len(trades))
	for _, t := range trades {
		out = append(out, TradeView{
			TradeID:        t.ID,
			Side:           string(t.Side),
			ActorID:        t.ActorID,
			ActorName:      t.ActorName,
			CashAmount:     money(t.CashAmount),
			TokenAmount:    money(t.TokenAmount),
			ResultingPrice: money(t.ResultingPrice),
			Timestamp:      t.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetLeaderboard handles GET /api/v1/leaderboard?limit=
func (s *Service) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultLeaderboardLimit)
	board := s.sim.Leaderboard(limit)

	out := make([]LeaderboardEntry, 0, len(board))
	for _, e := range board {
		out = append(out, LeaderboardEntry{
			Rank:    e.Rank,
			ActorID: e.ActorID,
			Name:    e.Name,
			Tokens:  money(e.Tokens),
			Cash:    money(e.Cash),
			IsAgent: e.IsAgent,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetChart handles GET /api/v1/chart/{timeframe}
func (s *Service) GetChart(w http.ResponseWriter, r *http.Request) {
	points := s.sim.ChartSeries(chi.URLParam(r, "timeframe"))

	out := make([]PricePointView, 0, len(points))
	for _, p := range points {
		out = append(out, PricePointView{Timestamp: p.Timestamp, Price: money(p.Price)})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetVolume handles GET /api/v1/volume/{timeframe}
func (s *Service) GetVolume(w http.ResponseWriter, r *http.Request) {
	buckets := s.sim.VolumeBuckets(chi.URLParam(r, "timeframe"))

	out := make([]VolumeBucketView, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, VolumeBucketView{BucketCenter: b.BucketCenter, Volume: money(b.Volume)})
	}
	writeJSON(w, http.StatusOK, out)
}

// Redeem handles POST /api/v1/redeem
func (s *Service) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", "INVALID_REQUEST", http.StatusBadRequest)
		return
	}
	if req.ActorID == "" || req.Code == "" {
		writeError(w, "actor_id and code are required", "INVALID_REQUEST", http.StatusBadRequest)
		return
	}

	amount, bal, err := s.sim.Redeem(r.Context(), req.ActorID, req.Code)
	if err != nil {
		writeMarketError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RedeemResponse{
		ActorID:  req.ActorID,
		Credited: money(amount),
		Balances: balancesView(bal),
	})
}

// --- Admin ---

// RequireAdmin rejects requests without a matching X-Admin-Key header.
func (s *Service) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey == "" {
			writeError(w, "admin endpoints are disabled", "FORBIDDEN", http.StatusForbidden)
			return
		}
		key := r.Header.Get("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.adminKey)) != 1 {
			writeError(w, "invalid admin key", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreditCash handles POST /api/v1/admin/credit-cash
func (s *Service) CreditCash(w http.ResponseWriter, r *http.Request) {
	s.credit(w, r, "cash")
}

// CreditTokens handles POST /api/v1/admin/credit-tokens
func (s *Service) CreditTokens(w http.ResponseWriter, r *http.Request) {
	s.credit(w, r, "tokens")
}

func (s *Service) credit(w http.ResponseWriter, r *http.Request, asset string) {
	var req CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", "INVALID_REQUEST", http.StatusBadRequest)
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, "amount must be positive", market.ReasonInvalidAmount, http.StatusBadRequest)
		return
	}

	var (
		bal model.Balances
		err error
	)
	if asset == "cash" {
		bal, err = s.sim.CreditCash(r.Context(), req.ActorID, req.Amount.InexactFloat64())
	} else {
		bal, err = s.sim.CreditTokens(r.Context(), req.ActorID, req.Amount.InexactFloat64())
	}
	if err != nil {
		writeMarketError(w, err)
		return
	}

	slog.Info("admin credit", "actor", req.ActorID, "asset", asset, "amount", req.Amount.String())
	writeJSON(w, http.StatusOK, AccountResponse{ActorID: req.ActorID, Balances: balancesView(bal)})
}

// ResetMarket handles POST /api/v1/admin/reset
func (s *Service) ResetMarket(w http.ResponseWriter, r *http.Request) {
	if err := s.sim.ResetMarket(r.Context()); err != nil {
		writeMarketError(w, err)
		return
	}
	s.GetMarket(w, r)
}

// --- helpers ---

func money(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(MoneyPlaces)
}

func balancesView(b model.Balances) BalancesView {
	return BalancesView{
		Cash:        money(b.Cash),
		Tokens:      money(b.Tokens),
		TotalTraded: money(b.TotalTraded),
	}
}

func accountView(acc model.Account) AccountResponse {
	joined := acc.JoinedAt
	return AccountResponse{
		ActorID:  acc.ID,
		Name:     acc.ID,
		Balances: balancesView(acc.Balances),
		JoinedAt: &joined,
	}
}

func parseLimit(r *http.Request, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return fallback
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

// statusFor maps a reason code to an HTTP status.
func statusFor(reason string) int {
	switch reason {
	case market.ReasonInvalidAmount, market.ReasonInvalidCode:
		return http.StatusBadRequest
	case market.ReasonUnknownActor:
		return http.StatusNotFound
	case market.ReasonInsufficientBalance, market.ReasonActorExists,
		market.ReasonPoolDepletion, market.ReasonTradeTooLarge:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeMarketError(w http.ResponseWriter, err error) {
	reason := market.Reason(err)
	status := statusFor(reason)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "reason", reason, "error", err)
	}
	writeError(w, err.Error(), reason, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message, code string, status int) {
	writeJSON(w, status, map[string]string{"error": message, "code": code})
}
