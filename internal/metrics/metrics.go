// Package metrics provides Prometheus instrumentation for the market simulator.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts executed trades by side and actor kind (agent/human).
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amm_trades_total",
		Help: "Total number of trades executed",
	}, []string{"side", "actor"})

	// TradeLatency measures the execute path, lock wait included.
	TradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "amm_trade_latency_seconds",
		Help:    "Trade execution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"side"})

	// TradeVolume tracks cumulative cash volume.
	TradeVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amm_trade_volume_cash_total",
		Help: "Cumulative trade volume in cash",
	}, []string{"side"})

	// TickDuration measures a full simulation tick.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "amm_tick_duration_seconds",
		Help:    "Simulation tick duration in seconds",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})

	// ActiveAgents is the number of eligible agents on the last tick.
	ActiveAgents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "amm_active_agents",
		Help: "Agents selected as active on the last tick",
	})

	// AgentDecisions counts agent decisions by action.
	AgentDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amm_agent_decisions_total",
		Help: "Agent decisions by action",
	}, []string{"action"})

	// TradeRejections counts rejected trades by reason code.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amm_trade_rejections_total",
		Help: "Trades rejected by reason",
	}, []string{"reason"})

	// PoolPrice is the current spot price.
	PoolPrice = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "amm_pool_price",
		Help: "Current pool spot price (cash per token)",
	})

	// PoolReserves tracks reserves by asset (token/cash).
	PoolReserves = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "amm_pool_reserves",
		Help: "Current pool reserves",
	}, []string{"asset"})

	// PersistFailures counts failed snapshot saves.
	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amm_persist_failures_total",
		Help: "Snapshot saves that failed",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "amm_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// WebSocketDropped counts messages dropped for slow clients or a full hub.
	WebSocketDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amm_websocket_dropped_total",
		Help: "WebSocket messages dropped",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amm_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "amm_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// SetPool publishes the pool gauges.
func SetPool(price, tokenReserve, cashReserve float64) {
	PoolPrice.Set(price)
	PoolReserves.WithLabelValues("token").Set(tokenReserve)
	PoolReserves.WithLabelValues("cash").Set(cashReserve)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, routePattern(r), strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, routePattern(r)).Observe(duration)
	})
}

// routePattern uses the chi route pattern for the path label to avoid high
// cardinality from account IDs and timeframes.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
