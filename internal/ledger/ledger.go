// Package ledger keeps the bounded, most-recent-first history of executed
// trades that feeds the trade tape and the volume aggregation.
package ledger

import (
	"time"

	"github.com/atmx/amm-market/internal/model"
)

// DefaultCapacity is the number of trades retained.
const DefaultCapacity = 200

// Ledger is a fixed-capacity trade history. Eviction is strictly by recency.
// It is not safe for concurrent use.
type Ledger struct {
	capacity int
	trades   []model.Trade // newest first
}

// New creates a ledger holding at most capacity trades.
// A non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		capacity: capacity,
		trades:   make([]model.Trade, 0, capacity),
	}
}

// Capacity returns the retention bound.
func (l *Ledger) Capacity() int { return l.capacity }

// Len returns the number of retained trades.
func (l *Ledger) Len() int { return len(l.trades) }

// Record prepends a trade and evicts the oldest entries beyond capacity.
func (l *Ledger) Record(t model.Trade) {
	if len(l.trades) < l.capacity {
		l.trades = append(l.trades, model.Trade{})
	}
	copy(l.trades[1:], l.trades[:len(l.trades)-1])
	l.trades[0] = t
}

// Recent returns up to n trades, most recent first. n <= 0 returns none.
func (l *Ledger) Recent(n int) []model.Trade {
	if n <= 0 {
		return []model.Trade{}
	}
	if n > len(l.trades) {
		n = len(l.trades)
	}
	out := make([]model.Trade, n)
	copy(out, l.trades[:n])
	return out
}

// All returns every retained trade, most recent first.
func (l *Ledger) All() []model.Trade {
	return l.Recent(len(l.trades))
}

// VolumeSince sums the cash amount of trades at or after since.
func (l *Ledger) VolumeSince(since time.Time) float64 {
	var total float64
	for _, t := range l.trades {
		if t.Timestamp.Before(since) {
			continue
		}
		total += t.CashAmount
	}
	return total
}

// Reset drops all trades.
func (l *Ledger) Reset() {
	l.trades = l.trades[:0]
}

// Restore replaces the history with trades (most recent first), keeping only
// the newest capacity entries.
func (l *Ledger) Restore(trades []model.Trade) {
	if len(trades) > l.capacity {
		trades = trades[:l.capacity]
	}
	l.trades = append(l.trades[:0], trades...)
}
