package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/atmx/amm-market/internal/config"
	"github.com/atmx/amm-market/internal/market"
	"github.com/atmx/amm-market/internal/metrics"
	"github.com/atmx/amm-market/internal/promo"
	"github.com/atmx/amm-market/internal/risk"
	"github.com/atmx/amm-market/internal/scheduler"
	"github.com/atmx/amm-market/internal/store"
	"github.com/atmx/amm-market/internal/trade"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// --- Initialize store ---
	st, cleanup, err := openStore(cfg)
	if err != nil {
		slog.Error("store init failed", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	// --- Promo codes ---
	promos := promo.DefaultTable()
	if cfg.PromoCodes != "" {
		entries, err := promo.ParseEntries(cfg.PromoCodes)
		if err == nil {
			err = promos.Merge(entries)
		}
		if err != nil {
			slog.Error("invalid PROMO_CODES", "err", err)
			os.Exit(1)
		}
	}

	// --- WebSocket hub ---
	hubCtx, stopHub := context.WithCancel(context.Background())
	wsHub := trade.NewWSHub()
	go wsHub.Run(hubCtx)

	// --- Simulator ---
	seed := cfg.Seed()
	var persister *store.Persister
	sim, err := market.New(cfg.Market(),
		market.WithRand(rand.New(rand.NewSource(seed))),
		market.WithLimiter(risk.NewLimiter(cfg.MaxTradeCash, cfg.MaxTradeTokens)),
		market.WithPromoTable(promos),
		market.WithNotifier(market.Notifiers{
			wsHub,
			market.NotifierFunc(func(market.Event) {
				if persister != nil {
					persister.Kick()
				}
			}),
		}),
	)
	if err != nil {
		slog.Error("simulator init failed", "err", err)
		os.Exit(1)
	}

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 10*time.Second)
	snap, err := store.LoadSnapshot(loadCtx, st)
	cancelLoad()
	if err != nil {
		slog.Warn("snapshot partially loaded", "err", err)
	}
	if err := sim.Restore(snap); err != nil {
		slog.Warn("snapshot rejected, starting fresh", "err", err)
	}
	info, _ := sim.MarketInfo()
	slog.Info("market ready", "price", info.Price, "agents", info.Agents, "accounts", info.Accounts, "seed", seed)

	// --- Persistence ---
	persistCtx, stopPersist := context.WithCancel(context.Background())
	persister = store.NewPersister(st, sim, cfg.PersistInterval)
	go persister.Run(persistCtx)

	// --- Tick scheduler ---
	sched := scheduler.New(cfg.Scheduler(), func(ctx context.Context) error {
		_, err := sim.Tick(ctx)
		return err
	}, rand.New(rand.NewSource(seed+1)))
	sched.Start()

	// --- HTTP router ---
	tradeSvc := trade.NewService(sim, cfg.AdminAPIKey)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Admin-Key")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"amm-market"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for live trades and ticks.
		r.Get("/ws", wsHub.HandleWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Logger)
			r.Use(middleware.Timeout(30 * time.Second))
			tradeSvc.Routes(r)
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("amm-market listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down amm-market...")
	sched.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	stopHub()

	stopPersist()
	select {
	case <-persister.Done():
	case <-time.After(15 * time.Second):
		slog.Error("final snapshot did not finish in time")
	}
	fmt.Println("amm-market stopped")
}

// openStore picks the snapshot store: Postgres (optionally behind a Redis
// cache), Redis alone, or memory.
func openStore(cfg *config.Config) (store.Store, func(), error) {
	var cleanup []func()
	done := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, done, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
	}

	if cfg.DatabaseURL == "" {
		if rdb != nil {
			slog.Info("using Redis store")
			return store.NewRedisStore(rdb), done, nil
		}
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		return store.NewMemoryStore(), done, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		done()
		return nil, func() {}, fmt.Errorf("database connection failed: %w", err)
	}
	cleanup = append(cleanup, pool.Close)

	pg := store.NewPostgresStore(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		done()
		return nil, func() {}, fmt.Errorf("ensure schema: %w", err)
	}
	slog.Info("connected to PostgreSQL")

	if rdb != nil {
		slog.Info("Redis cache enabled", "ttl", cfg.RedisCacheTTL)
		return store.NewCachedStore(pg, rdb, cfg.RedisCacheTTL), done, nil
	}
	return pg, done, nil
}
