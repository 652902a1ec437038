// Package series holds the pool's price history and derives the chart data
// consumed by the display layer: trailing windows, percent change and
// bucketed trade volume.
package series

import (
	"sort"
	"time"

	"github.com/atmx/amm-market/internal/model"
)

// DefaultRetention is how long price samples are kept.
const DefaultRetention = 7 * 24 * time.Hour

// Timeframe pairs a chart window with the volume bucket width used for it.
type Timeframe struct {
	Name   string        `json:"name"`
	Window time.Duration `json:"window"`
	Bucket time.Duration `json:"bucket"`
}

// DefaultTimeframe is used for unknown timeframe names.
const DefaultTimeframe = "1h"

// Timeframes is the chart timeframe table.
var Timeframes = map[string]Timeframe{
	"1h": {Name: "1h", Window: time.Hour, Bucket: 5 * time.Minute},
	"4h": {Name: "4h", Window: 4 * time.Hour, Bucket: 15 * time.Minute},
	"1d": {Name: "1d", Window: 24 * time.Hour, Bucket: time.Hour},
	"7d": {Name: "7d", Window: 7 * 24 * time.Hour, Bucket: 4 * time.Hour},
}

// LookupTimeframe resolves a timeframe by name. Unknown names resolve to
// DefaultTimeframe and ok=false.
func LookupTimeframe(name string) (tf Timeframe, ok bool) {
	if tf, ok = Timeframes[name]; ok {
		return tf, true
	}
	return Timeframes[DefaultTimeframe], false
}

// Series is an append-only, time-ordered list of price samples.
// It is not safe for concurrent use.
type Series struct {
	retention time.Duration
	points    []model.PricePoint
}

// New creates a series that retains samples for retention.
// A non-positive retention falls back to DefaultRetention.
func New(retention time.Duration) *Series {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Series{retention: retention}
}

// Len returns the number of retained samples.
func (s *Series) Len() int { return len(s.points) }

// Append adds a sample and prunes everything older than the retention
// window, measured from the new sample's timestamp.
func (s *Series) Append(p model.PricePoint) {
	s.points = append(s.points, p)
	s.prune(p.Timestamp)
}

func (s *Series) prune(now time.Time) {
	cutoff := now.Add(-s.retention)
	i := sort.Search(len(s.points), func(i int) bool {
		return !s.points[i].Timestamp.Before(cutoff)
	})
	if i > 0 {
		s.points = append(s.points[:0], s.points[i:]...)
	}
}

// Window returns the samples within the trailing d of now. When there are
// none it synthesizes a single sample at currentPrice so consumers never see
// an empty series.
func (s *Series) Window(now time.Time, d time.Duration, currentPrice float64) []model.PricePoint {
	start := now.Add(-d)
	var out []model.PricePoint
	for _, p := range s.points {
		if p.Timestamp.Before(start) || p.Timestamp.After(now) {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return []model.PricePoint{{Timestamp: now, Price: currentPrice}}
	}
	return out
}

// PercentChange compares currentPrice with the latest sample at or before
// now-horizon, i.e. the price as it stood exactly one horizon ago. Older
// retained samples are never the base, so a 7-day history still yields a
// 24h change. It returns 0 when fewer than two samples exist or no sample
// reaches back that far.
func (s *Series) PercentChange(now time.Time, horizon time.Duration, currentPrice float64) float64 {
	if len(s.points) < 2 {
		return 0
	}
	start := now.Add(-horizon)
	i := sort.Search(len(s.points), func(i int) bool {
		return s.points[i].Timestamp.After(start)
	})
	if i == 0 {
		return 0
	}
	base := s.points[i-1].Price
	if base == 0 {
		return 0
	}
	return (currentPrice - base) / base * 100
}

// BucketedVolume sums trade cash amounts into [t, t+width) buckets covering
// [now-d, now]. Leading empty buckets are skipped; once a bucket with volume
// is emitted, every later bucket is emitted too.
func BucketedVolume(now time.Time, d, width time.Duration, trades []model.Trade) []model.VolumeBucket {
	if width <= 0 || d <= 0 {
		return nil
	}
	start := now.Add(-d)
	n := int(d/width) + 1
	volumes := make([]float64, n)
	for _, t := range trades {
		if t.Timestamp.Before(start) || t.Timestamp.After(now) {
			continue
		}
		idx := int(t.Timestamp.Sub(start) / width)
		if idx >= n {
			continue
		}
		volumes[idx] += t.CashAmount
	}

	var out []model.VolumeBucket
	for i, v := range volumes {
		bucketStart := start.Add(time.Duration(i) * width)
		if bucketStart.After(now) {
			break
		}
		if v > 0 || len(out) > 0 {
			out = append(out, model.VolumeBucket{
				BucketCenter: bucketStart.Add(width / 2),
				Volume:       v,
			})
		}
	}
	return out
}

// Points returns a copy of every retained sample, oldest first.
func (s *Series) Points() []model.PricePoint {
	out := make([]model.PricePoint, len(s.points))
	copy(out, s.points)
	return out
}

// Reset drops all samples.
func (s *Series) Reset() {
	s.points = s.points[:0]
}

// Restore replaces the samples. Points are sorted by time and pruned against
// the newest one.
func (s *Series) Restore(points []model.PricePoint) {
	s.points = append(s.points[:0], points...)
	sort.SliceStable(s.points, func(i, j int) bool {
		return s.points[i].Timestamp.Before(s.points[j].Timestamp)
	})
	if len(s.points) > 0 {
		s.prune(s.points[len(s.points)-1].Timestamp)
	}
}
