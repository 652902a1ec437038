// Package scheduler drives the simulation clock: it runs a tick function
// after a randomized delay, over and over, until closed.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Rand is the random source for delays. *math/rand.Rand satisfies it. The
// scheduler only touches it from its own goroutine.
type Rand interface {
	Float64() float64
}

// TickFunc runs one simulation step.
type TickFunc func(ctx context.Context) error

// Config holds the delay bounds between ticks.
type Config struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

// DefaultConfig returns a 0.5s-3s delay range.
func DefaultConfig() Config {
	return Config{
		MinDelay: 500 * time.Millisecond,
		MaxDelay: 3 * time.Second,
	}
}

// Scheduler runs a TickFunc with a fresh random delay before every tick.
type Scheduler struct {
	cfg  Config
	fn   TickFunc
	rng  Rand
	rngM sync.Mutex

	ticks  atomic.Int64
	errors atomic.Int64

	startOnce sync.Once
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a scheduler. Non-positive bounds fall back to DefaultConfig;
// a MaxDelay below MinDelay is raised to MinDelay.
func New(cfg Config, fn TickFunc, r Rand) *Scheduler {
	def := DefaultConfig()
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = def.MinDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	return &Scheduler{
		cfg:    cfg,
		fn:     fn,
		rng:    r,
		closed: make(chan struct{}),
	}
}

// Start launches the loop. Calling it more than once has no effect.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.run()
	})
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	timer := time.NewTimer(s.NextDelay())
	defer timer.Stop()

	for {
		select {
		case <-s.closed:
			return
		case <-timer.C:
			s.tick()
			timer.Reset(s.NextDelay())
		}
	}
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.MaxDelay)
	defer cancel()

	s.ticks.Add(1)
	if err := s.fn(ctx); err != nil {
		s.errors.Add(1)
		slog.Warn("tick failed", "error", err)
	}
}

// NextDelay draws a delay uniformly from [MinDelay, MaxDelay].
func (s *Scheduler) NextDelay() time.Duration {
	span := s.cfg.MaxDelay - s.cfg.MinDelay
	if span <= 0 || s.rng == nil {
		return s.cfg.MinDelay
	}
	s.rngM.Lock()
	f := s.rng.Float64()
	s.rngM.Unlock()
	return s.cfg.MinDelay + time.Duration(f*float64(span))
}

// Ticks returns the number of ticks run so far.
func (s *Scheduler) Ticks() int64 { return s.ticks.Load() }

// Errors returns the number of ticks that returned an error.
func (s *Scheduler) Errors() int64 { return s.errors.Load() }

// Close stops the loop and waits for an in-flight tick to finish.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	s.wg.Wait()
}
