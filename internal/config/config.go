// Package config loads server settings from the environment, reading a .env
// file first when one is present.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/atmx/amm-market/internal/market"
	"github.com/atmx/amm-market/internal/scheduler"
)

type Config struct {
	// Server
	Port            string
	LogLevel        string
	AdminAPIKey     string
	CORSAllowOrigin string

	// Storage
	DatabaseURL     string
	RedisURL        string
	RedisCacheTTL   time.Duration
	PersistInterval time.Duration

	// Simulation
	AgentCount         int
	TickMinDelay       time.Duration
	TickMaxDelay       time.Duration
	TradesPerTickMin   int
	TradesPerTickMax   int
	AgentCooldown      time.Duration
	ParticipationScale float64
	RandomSeed         int64

	// Pool
	InitialTokenReserve float64
	InitialCashReserve  float64
	TotalSupply         float64
	SellFeeBps          float64

	// Accounts
	StartingCash float64
	PromoCodes   string

	// Risk Management
	MaxTradeCash   float64
	MaxTradeTokens float64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		// Server
		Port:            envStr("PORT", "8080"),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		AdminAPIKey:     envStr("ADMIN_API_KEY", ""),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),

		// Storage
		DatabaseURL:     envStr("DATABASE_URL", ""),
		RedisURL:        envStr("REDIS_URL", ""),
		RedisCacheTTL:   envDuration("REDIS_CACHE_TTL", 30*time.Second),
		PersistInterval: envDuration("PERSIST_INTERVAL", time.Second),

		// Simulation
		AgentCount:         envInt("AGENT_COUNT", 1000),
		TickMinDelay:       envDuration("TICK_MIN_DELAY", 500*time.Millisecond),
		TickMaxDelay:       envDuration("TICK_MAX_DELAY", 3*time.Second),
		TradesPerTickMin:   envInt("TRADES_PER_TICK_MIN", 3),
		TradesPerTickMax:   envInt("TRADES_PER_TICK_MAX", 18),
		AgentCooldown:      envDuration("AGENT_COOLDOWN", 2*time.Second),
		ParticipationScale: envFloat("PARTICIPATION_SCALE", 0.4),
		RandomSeed:         int64(envInt("RANDOM_SEED", 0)),

		// Pool
		InitialTokenReserve: envFloat("INITIAL_TOKEN_RESERVE", 10000),
		InitialCashReserve:  envFloat("INITIAL_CASH_RESERVE", 1000),
		TotalSupply:         envFloat("TOTAL_SUPPLY", 10000),
		SellFeeBps:          envFloat("SELL_FEE_BPS", 30),

		// Accounts
		StartingCash: envFloat("STARTING_CASH", 100),
		PromoCodes:   envStr("PROMO_CODES", ""),

		// Risk Management
		MaxTradeCash:   envFloat("MAX_TRADE_CASH", 0),
		MaxTradeTokens: envFloat("MAX_TRADE_TOKENS", 0),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	if c.AgentCount < 0 {
		errs = append(errs, "AGENT_COUNT must not be negative")
	}
	if c.TradesPerTickMin < 0 || c.TradesPerTickMax < c.TradesPerTickMin {
		errs = append(errs, "TRADES_PER_TICK_MIN/MAX must satisfy 0 <= min <= max")
	}
	if c.TickMinDelay <= 0 || c.TickMaxDelay < c.TickMinDelay {
		errs = append(errs, "TICK_MIN_DELAY/MAX_DELAY must satisfy 0 < min <= max")
	}
	if c.InitialTokenReserve <= 0 || c.InitialCashReserve <= 0 {
		errs = append(errs, "INITIAL_TOKEN_RESERVE and INITIAL_CASH_RESERVE must be positive")
	}
	if c.SellFeeBps < 0 || c.SellFeeBps >= 10000 {
		errs = append(errs, "SELL_FEE_BPS must be in [0, 10000)")
	}
	if c.ParticipationScale < 0 || c.ParticipationScale > 1 {
		errs = append(errs, "PARTICIPATION_SCALE must be in [0, 1]")
	}
	if c.StartingCash < 0 {
		errs = append(errs, "STARTING_CASH must not be negative")
	}

	if c.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY not set, admin endpoints are disabled")
	}
	if c.DatabaseURL == "" && c.RedisURL == "" {
		slog.Warn("no DATABASE_URL or REDIS_URL, market state will not survive a restart")
	}
	if c.MaxTradeCash == 0 && c.MaxTradeTokens == 0 {
		slog.Warn("MAX_TRADE_CASH and MAX_TRADE_TOKENS are both 0, no per-trade limits active")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// Market returns the simulator configuration.
func (c *Config) Market() market.Config {
	mc := market.DefaultConfig()
	mc.AgentCount = c.AgentCount
	mc.TradesPerTickMin = c.TradesPerTickMin
	mc.TradesPerTickMax = c.TradesPerTickMax
	mc.AgentCooldown = c.AgentCooldown
	mc.ParticipationScale = c.ParticipationScale
	mc.InitialTokenReserve = c.InitialTokenReserve
	mc.InitialCashReserve = c.InitialCashReserve
	mc.TotalSupply = c.TotalSupply
	mc.SellFeeBps = c.SellFeeBps
	mc.StartingCash = c.StartingCash
	return mc
}

// Scheduler returns the tick delay bounds.
func (c *Config) Scheduler() scheduler.Config {
	return scheduler.Config{MinDelay: c.TickMinDelay, MaxDelay: c.TickMaxDelay}
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Seed returns RANDOM_SEED, or a time-based seed when it is 0.
func (c *Config) Seed() int64 {
	if c.RandomSeed != 0 {
		return c.RandomSeed
	}
	return time.Now().UnixNano()
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envDuration accepts Go durations ("750ms", "2s") or plain milliseconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
