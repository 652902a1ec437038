package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/amm-market/internal/model"
)

var now = time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)

func point(ago time.Duration, price float64) model.PricePoint {
	return model.PricePoint{Timestamp: now.Add(-ago), Price: price}
}

func cashTrade(ago time.Duration, cash float64) model.Trade {
	return model.Trade{Side: model.SideBuy, CashAmount: cash, Timestamp: now.Add(-ago)}
}

func TestAppend_PrunesOlderThanRetention(t *testing.T) {
	s := New(0)
	s.Append(point(8*24*time.Hour, 0.09))
	s.Append(point(7*24*time.Hour+time.Second, 0.095))
	s.Append(point(3*24*time.Hour, 0.1))
	s.Append(point(0, 0.11))

	points := s.Points()
	require.Len(t, points, 2)
	for _, p := range points {
		assert.False(t, p.Timestamp.Before(now.Add(-DefaultRetention)),
			"point at %s is older than retention", p.Timestamp)
	}
}

func TestAppend_KeepsPointExactlyAtRetentionBoundary(t *testing.T) {
	s := New(0)
	s.Append(point(DefaultRetention, 0.1))
	s.Append(point(0, 0.2))
	assert.Equal(t, 2, s.Len())
}

func TestWindow_FiltersTrailingDuration(t *testing.T) {
	s := New(0)
	s.Append(point(2*time.Hour, 0.1))
	s.Append(point(30*time.Minute, 0.12))
	s.Append(point(time.Minute, 0.13))

	got := s.Window(now, time.Hour, 0.13)
	require.Len(t, got, 2)
	assert.Equal(t, 0.12, got[0].Price)
	assert.Equal(t, 0.13, got[1].Price)
}

func TestWindow_EmptySynthesizesCurrentPrice(t *testing.T) {
	s := New(0)
	s.Append(point(5*time.Hour, 0.1))

	got := s.Window(now, time.Hour, 0.42)
	require.Len(t, got, 1)
	assert.Equal(t, now, got[0].Timestamp)
	assert.Equal(t, 0.42, got[0].Price)
}

func TestPercentChange(t *testing.T) {
	tests := []struct {
		name    string
		points  []model.PricePoint
		current float64
		want    float64
	}{
		{
			name:    "no points",
			current: 0.1,
			want:    0,
		},
		{
			name:    "single point",
			points:  []model.PricePoint{point(25*time.Hour, 0.1)},
			current: 0.2,
			want:    0,
		},
		{
			name:    "nothing before horizon",
			points:  []model.PricePoint{point(2*time.Hour, 0.1), point(time.Hour, 0.2)},
			current: 0.2,
			want:    0,
		},
		{
			name: "latest point before horizon is the base",
			points: []model.PricePoint{
				point(30*time.Hour, 0.05),
				point(25*time.Hour, 0.1),
				point(time.Hour, 0.3),
			},
			current: 0.15,
			want:    50,
		},
		{
			name: "week-old sample is not the base",
			points: []model.PricePoint{
				point(6*24*time.Hour, 0.01),
				point(25*time.Hour, 0.1),
				point(time.Hour, 0.2),
			},
			current: 0.2,
			want:    100,
		},
		{
			name:    "drop",
			points:  []model.PricePoint{point(24*time.Hour, 0.2), point(time.Hour, 0.1)},
			current: 0.1,
			want:    -50,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(0)
			for _, p := range tt.points {
				s.Append(p)
			}
			assert.InDelta(t, tt.want, s.PercentChange(now, 24*time.Hour, tt.current), 1e-9)
		})
	}
}

func TestBucketedVolume_SuppressesLeadingEmptyBuckets(t *testing.T) {
	trades := []model.Trade{
		cashTrade(22*time.Minute, 5), // bucket [35m, 40m)
		cashTrade(21*time.Minute, 5), // same bucket
		cashTrade(2*time.Minute, 7),  // bucket [55m, 60m)
		cashTrade(3*time.Hour, 1000), // outside window
	}

	got := BucketedVolume(now, time.Hour, 5*time.Minute, trades)

	// Buckets start at now-1h and step 5m up to and including now: 13 in
	// total. The first emitted one is [35m, 40m) at index 7.
	require.Len(t, got, 6)
	assert.Equal(t, now.Add(-time.Hour+7*5*time.Minute+150*time.Second), got[0].BucketCenter)
	assert.Equal(t, 10.0, got[0].Volume)

	// Middle buckets are kept even when empty.
	assert.Equal(t, 0.0, got[1].Volume)
	assert.Equal(t, 7.0, got[4].Volume)
	assert.Equal(t, 0.0, got[5].Volume)
}

func TestBucketedVolume_NoTrades(t *testing.T) {
	assert.Empty(t, BucketedVolume(now, time.Hour, 5*time.Minute, nil))
}

func TestBucketedVolume_InvalidWidth(t *testing.T) {
	assert.Nil(t, BucketedVolume(now, time.Hour, 0, []model.Trade{cashTrade(time.Minute, 1)}))
}

func TestLookupTimeframe(t *testing.T) {
	tests := []struct {
		name   string
		bucket time.Duration
		ok     bool
	}{
		{"1h", 5 * time.Minute, true},
		{"4h", 15 * time.Minute, true},
		{"1d", time.Hour, true},
		{"7d", 4 * time.Hour, true},
		{"1y", 5 * time.Minute, false},
	}
	for _, tt := range tests {
		tf, ok := LookupTimeframe(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.bucket, tf.Bucket, tt.name)
	}
}

func TestRestore_SortsAndPrunes(t *testing.T) {
	s := New(0)
	s.Restore([]model.PricePoint{
		point(time.Hour, 0.2),
		point(10*24*time.Hour, 0.05),
		point(2*time.Hour, 0.1),
	})
	points := s.Points()
	require.Len(t, points, 2)
	assert.Equal(t, 0.1, points[0].Price)
	assert.Equal(t, 0.2, points[1].Price)

	s.Reset()
	assert.Equal(t, 0, s.Len())
}
