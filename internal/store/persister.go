package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/atmx/amm-market/internal/metrics"
	"github.com/atmx/amm-market/internal/model"
)

// SnapshotSource produces the state to persist.
type SnapshotSource interface {
	Snapshot() model.Snapshot
}

// Persister writes snapshots in the background. Kicks are coalesced into a
// single pending save, so a burst of trades costs one write.
type Persister struct {
	st          Store
	src         SnapshotSource
	minInterval time.Duration
	timeout     time.Duration

	kick chan struct{}
	done chan struct{}
}

// NewPersister creates a persister. minInterval is the least time between
// two saves; zero saves on every kick.
func NewPersister(st Store, src SnapshotSource, minInterval time.Duration) *Persister {
	return &Persister{
		st:          st,
		src:         src,
		minInterval: minInterval,
		timeout:     10 * time.Second,
		kick:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// Kick requests a save. It never blocks.
func (p *Persister) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run saves on every kick until ctx is done, then performs a final save.
func (p *Persister) Run(ctx context.Context) {
	defer close(p.done)

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			p.Flush(context.Background())
			return
		case <-p.kick:
		}

		if wait := p.minInterval - time.Since(last); wait > 0 {
			select {
			case <-ctx.Done():
				p.Flush(context.Background())
				return
			case <-time.After(wait):
			}
		}
		p.Flush(ctx)
		last = time.Now()
	}
}

// Done is closed once Run has returned.
func (p *Persister) Done() <-chan struct{} { return p.done }

// Flush saves the current snapshot synchronously.
func (p *Persister) Flush(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := SaveSnapshot(ctx, p.st, p.src.Snapshot()); err != nil {
		metrics.PersistFailures.Inc()
		slog.Warn("snapshot save failed", "error", err)
		return err
	}
	return nil
}
