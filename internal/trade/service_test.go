package trade_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/amm-market/internal/market"
	"github.com/atmx/amm-market/internal/population"
	"github.com/atmx/amm-market/internal/promo"
	"github.com/atmx/amm-market/internal/trade"
)

const adminKey = "test-admin-key"

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newTestEnv creates a test Service over a small seeded market and a chi router.
func newTestEnv(t *testing.T) (*trade.Service, *market.Simulator, chi.Router) {
	t.Helper()

	next := 0
	ids := func() string {
		next++
		return fmt.Sprintf("agent-%d", next)
	}
	promos, err := promo.NewTable(map[string]decimal.Decimal{
		promo.HashCode("welcome"): d("250"),
	})
	if err != nil {
		t.Fatalf("promo table: %v", err)
	}

	cfg := market.DefaultConfig()
	cfg.AgentCount = 3
	start := time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)
	sim, err := market.New(cfg,
		market.WithRand(rand.New(rand.NewSource(42))),
		market.WithClock(func() time.Time { return start }),
		market.WithPopulationOptions(population.WithIDFunc(ids)),
		market.WithPromoTable(promos),
	)
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	svc := trade.NewService(sim, adminKey)

	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)

	return svc, sim, r
}

func do(t *testing.T, router chi.Router, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doTrade(t *testing.T, router chi.Router, req trade.TradeRequest) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, router, "POST", "/api/v1/trade", req)
}

func openAccount(t *testing.T, router chi.Router, id string) {
	t.Helper()
	w := do(t, router, "POST", "/api/v1/accounts", trade.AccountRequest{ActorID: id})
	if w.Code != http.StatusCreated {
		t.Fatalf("open account %q: expected 201, got %d: %s", id, w.Code, w.Body.String())
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, w)["code"]
}

// --- Trade execution tests ---

func TestExecuteTrade_Buy(t *testing.T) {
	_, _, router := newTestEnv(t)
	openAccount(t, router, "alice")

	w := doTrade(t, router, trade.TradeRequest{
		ActorID: "alice",
		Side:    "buy",
		Amount:  d("100"),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decode[trade.TradeResponse](t, w)
	if resp.TradeID == "" {
		t.Error("trade_id should be set")
	}
	if !resp.CashAmount.Equal(d("100")) {
		t.Errorf("cash_amount: expected 100, got %s", resp.CashAmount)
	}
	if !resp.TokenAmount.Equal(d("909.09090909")) {
		t.Errorf("token_amount: expected 909.09090909, got %s", resp.TokenAmount)
	}
	if !resp.ResultingPrice.Equal(d("0.121")) {
		t.Errorf("resulting_price: expected 0.121, got %s", resp.ResultingPrice)
	}
	if !resp.Balances.Cash.IsZero() {
		t.Errorf("cash: expected 0, got %s", resp.Balances.Cash)
	}
	if !resp.Balances.TotalTraded.Equal(d("100")) {
		t.Errorf("total_traded: expected 100, got %s", resp.Balances.TotalTraded)
	}
}

func TestExecuteTrade_SellAfterBuy(t *testing.T) {
	_, _, router := newTestEnv(t)
	openAccount(t, router, "alice")
	doTrade(t, router, trade.TradeRequest{ActorID: "alice", Side: "buy", Amount: d("50")})

	w := doTrade(t, router, trade.TradeRequest{ActorID: "alice", Side: "sell", Amount: d("100")})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[trade.TradeResponse](t, w)
	if !resp.Fee.IsPositive() {
		t.Errorf("sell should pay a fee, got %s", resp.Fee)
	}
	if !resp.PriceImpactPct.IsNegative() {
		t.Errorf("sell should move the price down, got impact %s", resp.PriceImpactPct)
	}
}

func TestExecuteTrade_Rejections(t *testing.T) {
	_, sim, router := newTestEnv(t)
	openAccount(t, router, "alice")

	tests := []struct {
		name   string
		req    trade.TradeRequest
		status int
		code   string
	}{
		{"missing actor", trade.TradeRequest{Side: "buy", Amount: d("1")}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"bad side", trade.TradeRequest{ActorID: "alice", Side: "hold", Amount: d("1")}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"zero amount", trade.TradeRequest{ActorID: "alice", Side: "buy", Amount: decimal.Zero}, http.StatusBadRequest, market.ReasonInvalidAmount},
		{"negative amount", trade.TradeRequest{ActorID: "alice", Side: "sell", Amount: d("-5")}, http.StatusBadRequest, market.ReasonInvalidAmount},
		{"unknown actor", trade.TradeRequest{ActorID: "nobody", Side: "buy", Amount: d("1")}, http.StatusNotFound, market.ReasonUnknownActor},
		{"insufficient cash", trade.TradeRequest{ActorID: "alice", Side: "buy", Amount: d("100.01")}, http.StatusConflict, market.ReasonInsufficientBalance},
		{"insufficient tokens", trade.TradeRequest{ActorID: "alice", Side: "sell", Amount: d("1")}, http.StatusConflict, market.ReasonInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doTrade(t, router, tt.req)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if got := errorCode(t, w); got != tt.code {
				t.Errorf("code: expected %s, got %s", tt.code, got)
			}
		})
	}

	if n := len(sim.Trades()); n != 0 {
		t.Errorf("rejected trades must not reach the ledger, got %d", n)
	}
}

func TestExecuteTrade_MalformedBody(t *testing.T) {
	_, _, router := newTestEnv(t)
	req := httptest.NewRequest("POST", "/api/v1/trade", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

// --- Market data tests ---

func TestGetMarket(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := do(t, router, "GET", "/api/v1/market", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode[trade.MarketResponse](t, w)
	if !resp.Price.Equal(d("0.1")) {
		t.Errorf("price: expected 0.1, got %s", resp.Price)
	}
	if !resp.MarketCap.Equal(d("1000")) {
		t.Errorf("market_cap: expected 1000, got %s", resp.MarketCap)
	}
	if resp.Agents != 3 {
		t.Errorf("agents: expected 3, got %d", resp.Agents)
	}
	if !resp.Volume24h.IsZero() {
		t.Errorf("volume_24h: expected 0, got %s", resp.Volume24h)
	}
}

func TestQuote(t *testing.T) {
	_, sim, router := newTestEnv(t)

	w := do(t, router, "GET", "/api/v1/quote/buy?amount=100", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	q := decode[trade.QuoteResponse](t, w)
	if !q.AmountOut.Equal(d("909.09090909")) {
		t.Errorf("amount_out: expected 909.09090909, got %s", q.AmountOut)
	}
	if !q.NewPrice.Equal(d("0.121")) {
		t.Errorf("new_price: expected 0.121, got %s", q.NewPrice)
	}

	w = do(t, router, "GET", "/api/v1/quote/sell?amount=1000", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	q = decode[trade.QuoteResponse](t, w)
	if !q.Fee.IsPositive() {
		t.Errorf("sell quote should carry a fee, got %s", q.Fee)
	}

	for _, path := range []string{"/api/v1/quote/buy", "/api/v1/quote/buy?amount=abc", "/api/v1/quote/sell?amount=-1"} {
		if w := do(t, router, "GET", path, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, w.Code)
		}
	}

	price, _ := sim.CurrentPrice()
	if price != 0.1 {
		t.Errorf("quotes must not move the price, got %v", price)
	}
}

func TestListTradesAndLeaderboard(t *testing.T) {
	_, _, router := newTestEnv(t)
	openAccount(t, router, "alice")
	openAccount(t, router, "bob")
	doTrade(t, router, trade.TradeRequest{ActorID: "alice", Side: "buy", Amount: d("10")})
	doTrade(t, router, trade.TradeRequest{ActorID: "bob", Side: "buy", Amount: d("20")})

	w := do(t, router, "GET", "/api/v1/trades?limit=1", nil)
	trades := decode[[]trade.TradeView](t, w)
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].ActorID != "bob" {
		t.Errorf("newest trade first: expected bob, got %s", trades[0].ActorID)
	}

	w = do(t, router, "GET", "/api/v1/leaderboard?limit=100", nil)
	board := decode[[]trade.LeaderboardEntry](t, w)
	if len(board) != 5 {
		t.Fatalf("expected 5 entries (3 agents, 2 accounts), got %d", len(board))
	}
	for i, e := range board {
		if e.Rank != i+1 {
			t.Errorf("entry %d: expected rank %d, got %d", i, i+1, e.Rank)
		}
		if i > 0 && e.Tokens.GreaterThan(board[i-1].Tokens) {
			t.Errorf("leaderboard not sorted by tokens at %d", i)
		}
	}
}

func TestChartAndVolume(t *testing.T) {
	_, _, router := newTestEnv(t)
	openAccount(t, router, "alice")
	doTrade(t, router, trade.TradeRequest{ActorID: "alice", Side: "buy", Amount: d("10")})

	w := do(t, router, "GET", "/api/v1/chart/1h", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	points := decode[[]trade.PricePointView](t, w)
	if len(points) != 1 {
		t.Fatalf("expected 1 price point, got %d", len(points))
	}

	w = do(t, router, "GET", "/api/v1/volume/1h", nil)
	buckets := decode[[]trade.VolumeBucketView](t, w)
	total := decimal.Zero
	for _, b := range buckets {
		total = total.Add(b.Volume)
	}
	if !total.Equal(d("10")) {
		t.Errorf("bucketed volume: expected 10, got %s", total)
	}
}

// --- Account tests ---

func TestCreateAccount(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := do(t, router, "POST", "/api/v1/accounts", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	acc := decode[trade.AccountResponse](t, w)
	if len(acc.ActorID) != 36 {
		t.Errorf("expected a generated uuid, got %q", acc.ActorID)
	}
	if !acc.Balances.Cash.Equal(d("100")) {
		t.Errorf("starting cash: expected 100, got %s", acc.Balances.Cash)
	}

	openAccount(t, router, "alice")
	if w := do(t, router, "POST", "/api/v1/accounts", trade.AccountRequest{ActorID: "alice"}); w.Code != http.StatusOK {
		t.Errorf("existing account: expected 200, got %d", w.Code)
	}

	w = do(t, router, "POST", "/api/v1/accounts", trade.AccountRequest{ActorID: "agent-1"})
	if w.Code != http.StatusConflict {
		t.Fatalf("agent id: expected 409, got %d", w.Code)
	}
	if got := errorCode(t, w); got != market.ReasonActorExists {
		t.Errorf("code: expected %s, got %s", market.ReasonActorExists, got)
	}
}

func TestGetAccount(t *testing.T) {
	_, _, router := newTestEnv(t)
	openAccount(t, router, "alice")

	acc := decode[trade.AccountResponse](t, do(t, router, "GET", "/api/v1/accounts/alice", nil))
	if acc.IsAgent || acc.JoinedAt == nil {
		t.Errorf("alice should be a human account with a join time: %+v", acc)
	}

	ag := decode[trade.AccountResponse](t, do(t, router, "GET", "/api/v1/accounts/agent-2", nil))
	if !ag.IsAgent || ag.Name == "" {
		t.Errorf("agent-2 should be a named agent: %+v", ag)
	}

	if w := do(t, router, "GET", "/api/v1/accounts/ghost", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestRedeem(t *testing.T) {
	_, _, router := newTestEnv(t)
	openAccount(t, router, "alice")

	w := do(t, router, "POST", "/api/v1/redeem", trade.RedeemRequest{ActorID: "alice", Code: promo.HashCode("welcome")})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[trade.RedeemResponse](t, w)
	if !resp.Credited.Equal(d("250")) || !resp.Balances.Cash.Equal(d("350")) {
		t.Errorf("expected 250 credited to 350 cash, got %s / %s", resp.Credited, resp.Balances.Cash)
	}

	w = do(t, router, "POST", "/api/v1/redeem", trade.RedeemRequest{ActorID: "alice", Code: promo.HashCode("nope")})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown code: expected 400, got %d", w.Code)
	}
	if got := errorCode(t, w); got != market.ReasonInvalidCode {
		t.Errorf("code: expected %s, got %s", market.ReasonInvalidCode, got)
	}
}

// --- Admin tests ---

func TestAdmin_RequiresKey(t *testing.T) {
	_, _, router := newTestEnv(t)
	openAccount(t, router, "alice")
	body := trade.CreditRequest{ActorID: "alice", Amount: d("5")}

	if w := do(t, router, "POST", "/api/v1/admin/credit-cash", body); w.Code != http.StatusUnauthorized {
		t.Errorf("no key: expected 401, got %d", w.Code)
	}
	if w := do(t, router, "POST", "/api/v1/admin/credit-cash", body, "X-Admin-Key", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: expected 401, got %d", w.Code)
	}
}

func TestAdmin_DisabledWithoutKey(t *testing.T) {
	_, sim, _ := newTestEnv(t)
	svc := trade.NewService(sim, "")
	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)

	w := do(t, r, "POST", "/api/v1/admin/reset", nil, "X-Admin-Key", "")
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestAdmin_CreditAndReset(t *testing.T) {
	_, sim, router := newTestEnv(t)
	openAccount(t, router, "alice")

	w := do(t, router, "POST", "/api/v1/admin/credit-tokens",
		trade.CreditRequest{ActorID: "alice", Amount: d("42")}, "X-Admin-Key", adminKey)
	if w.Code != http.StatusOK {
		t.Fatalf("credit tokens: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if acc := decode[trade.AccountResponse](t, w); !acc.Balances.Tokens.Equal(d("42")) {
		t.Errorf("tokens: expected 42, got %s", acc.Balances.Tokens)
	}

	w = do(t, router, "POST", "/api/v1/admin/credit-cash",
		trade.CreditRequest{ActorID: "alice", Amount: d("0")}, "X-Admin-Key", adminKey)
	if w.Code != http.StatusBadRequest {
		t.Errorf("zero credit: expected 400, got %d", w.Code)
	}

	doTrade(t, router, trade.TradeRequest{ActorID: "alice", Side: "buy", Amount: d("50")})
	w = do(t, router, "POST", "/api/v1/admin/reset", nil, "X-Admin-Key", adminKey)
	if w.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d", w.Code)
	}
	if resp := decode[trade.MarketResponse](t, w); !resp.Price.Equal(d("0.1")) {
		t.Errorf("reset price: expected 0.1, got %s", resp.Price)
	}
	if n := len(sim.Trades()); n != 0 {
		t.Errorf("reset should clear the ledger, got %d trades", n)
	}
	acc, err := sim.Account("alice")
	if err != nil {
		t.Fatalf("alice should survive a reset: %v", err)
	}
	if acc.Balances.Cash != 50 {
		t.Errorf("alice cash after reset: expected 50, got %v", acc.Balances.Cash)
	}
}

func TestExecuteTrade_CanceledRequest(t *testing.T) {
	svc, _, router := newTestEnv(t)
	openAccount(t, router, "alice")

	body, _ := json.Marshal(trade.TradeRequest{ActorID: "alice", Side: "buy", Amount: d("1")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest("POST", "/api/v1/trade", bytes.NewReader(body)).WithContext(ctx)
	w := httptest.NewRecorder()
	svc.ExecuteTrade(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for a canceled request, got %d", w.Code)
	}
}

func TestOversizedTrade_RefusedWithoutBreakingMarket(t *testing.T) {
	_, _, router := newTestEnv(t)
	openAccount(t, router, "alice")

	w := do(t, router, "GET", "/api/v1/quote/buy?amount=1e200", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("quote: expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if got := errorCode(t, w); got != market.ReasonPoolDepletion {
		t.Errorf("quote code: expected %s, got %s", market.ReasonPoolDepletion, got)
	}

	w = do(t, router, "POST", "/api/v1/admin/credit-cash",
		trade.CreditRequest{ActorID: "alice", Amount: d("1e200")}, "X-Admin-Key", adminKey)
	if w.Code != http.StatusOK {
		t.Fatalf("credit: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doTrade(t, router, trade.TradeRequest{ActorID: "alice", Side: "buy", Amount: d("1e200")})
	if w.Code != http.StatusConflict {
		t.Fatalf("trade: expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if got := errorCode(t, w); got != market.ReasonPoolDepletion {
		t.Errorf("trade code: expected %s, got %s", market.ReasonPoolDepletion, got)
	}

	w = do(t, router, "GET", "/api/v1/market", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("market: expected 200, got %d", w.Code)
	}
	if resp := decode[trade.MarketResponse](t, w); !resp.Price.Equal(d("0.1")) {
		t.Errorf("price after refused trade: expected 0.1, got %s", resp.Price)
	}
}
