package candle

import (
	"strings"
	"testing"

	"github.com/captainplanet9000/cival-dashboard-sub013/shared"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog"
)

func setupAggregator(t *testing.T, granularity shared.Granularity, historySize int32) *Aggregator {
	logger := zerolog.New(nil)
	cfg := &AggregatorConfig{
		Market:      "binance:BTC/USD",
		Granularity: granularity,
		HistorySize: historySize,
		Logger:      &logger,
	}

	aggregator, err := NewAggregator(cfg)
	assert.NoError(t, err)

	return aggregator
}

func tickAt(timestamp int64, price float64, volume float64) shared.Tick {
	return shared.Tick{
		Venue:     "binance",
		Symbol:    "BTC/USD",
		Timestamp: timestamp,
		Price:     price,
		Volume:    volume,
	}
}

func TestAggregatorConfigValidate(t *testing.T) {
	logger := zerolog.New(nil)

	tests := []struct {
		name        string
		cfg         AggregatorConfig
		wantErr     bool
		errContains string
	}{
		{
			name: "valid config",
			cfg: AggregatorConfig{
				Market:      "binance:BTC/USD",
				Granularity: shared.OneMinute,
				Logger:      &logger,
			},
			wantErr: false,
		},
		{
			name: "missing market",
			cfg: AggregatorConfig{
				Granularity: shared.OneMinute,
				Logger:      &logger,
			},
			wantErr:     true,
			errContains: "market cannot be an empty string",
		},
		{
			name: "negative history size",
			cfg: AggregatorConfig{
				Market:      "binance:BTC/USD",
				Granularity: shared.OneMinute,
				HistorySize: -1,
				Logger:      &logger,
			},
			wantErr:     true,
			errContains: "history size cannot be negative",
		},
		{
			name: "missing logger",
			cfg: AggregatorConfig{
				Market:      "binance:BTC/USD",
				Granularity: shared.OneMinute,
			},
			wantErr:     true,
			errContains: "logger cannot be nil",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.cfg.Validate()
			if test.wantErr {
				assert.Error(t, err)
				if !strings.Contains(err.Error(), test.errContains) {
					t.Errorf("expected error containing %q, got %q", test.errContains, err.Error())
				}
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAggregatorIngest(t *testing.T) {
	aggregator := setupAggregator(t, shared.OneMinute, 0)

	// Ensure ingesting into an empty aggregator seeds the in-progress candle.
	completed := aggregator.Ingest(tickAt(0, 100, 1))
	assert.Nil(t, completed)

	current, ok := aggregator.Current()
	assert.True(t, ok)
	assert.Equal(t, current.Open, float64(100))
	assert.Equal(t, current.High, float64(100))
	assert.Equal(t, current.Low, float64(100))
	assert.Equal(t, current.Close, float64(100))
	assert.Equal(t, current.PeriodStart, int64(0))
	assert.False(t, current.Complete)

	// Ensure in-period ticks mutate the in-progress candle in place.
	completed = aggregator.Ingest(tickAt(30_000, 101, 2))
	assert.Nil(t, completed)

	current, ok = aggregator.Current()
	assert.True(t, ok)
	assert.Equal(t, current.High, float64(101))
	assert.Equal(t, current.Close, float64(101))
	assert.Equal(t, current.Volume, float64(3))

	// Ensure crossing the period boundary completes the candle exactly once
	// and opens a new in-progress candle.
	completed = aggregator.Ingest(tickAt(61_000, 99, 1))
	assert.NotNil(t, completed)
	assert.True(t, completed.Complete)
	assert.Equal(t, completed.PeriodStart, int64(0))
	assert.Equal(t, completed.Open, float64(100))
	assert.Equal(t, completed.High, float64(101))
	assert.Equal(t, completed.Low, float64(100))
	assert.Equal(t, completed.Close, float64(101))

	history := aggregator.History()
	assert.Equal(t, len(history), 1)
	assert.Equal(t, history[0], *completed)

	current, ok = aggregator.Current()
	assert.True(t, ok)
	assert.Equal(t, current.PeriodStart, int64(60_000))
	assert.Equal(t, current.Open, float64(99))
	assert.Equal(t, current.High, float64(99))
	assert.Equal(t, current.Low, float64(99))
	assert.Equal(t, current.Close, float64(99))

	// Ensure out-of-order ticks are dropped, not reordered.
	completed = aggregator.Ingest(tickAt(59_000, 50, 5))
	assert.Nil(t, completed)

	current, ok = aggregator.Current()
	assert.True(t, ok)
	assert.Equal(t, current.Low, float64(99))
	assert.Equal(t, current.Volume, float64(1))

	// Ensure current returns a copy that does not mutate aggregator state.
	current.Close = -1
	fresh, ok := aggregator.Current()
	assert.True(t, ok)
	assert.Equal(t, fresh.Close, float64(99))
}

func TestAggregatorInvariants(t *testing.T) {
	aggregator := setupAggregator(t, shared.OneMinute, 0)

	ticks := []shared.Tick{
		tickAt(0, 100, 1),
		tickAt(10_000, 104, 2),
		tickAt(20_000, 98, 1.5),
		tickAt(61_000, 99, 3),
		tickAt(90_000, 96, 0.5),
		tickAt(125_000, 101, 2),
		tickAt(150_000, 103, 1),
	}

	var tickVolume float64
	for _, tick := range ticks {
		aggregator.Ingest(tick)
		tickVolume += tick.Volume
	}

	// Ensure completed candles respect the low <= open, close <= high invariant.
	history := aggregator.History()
	assert.Equal(t, len(history), 2)
	for _, candle := range history {
		assert.True(t, candle.Low <= candle.Open)
		assert.True(t, candle.Low <= candle.Close)
		assert.True(t, candle.Open <= candle.High)
		assert.True(t, candle.Close <= candle.High)
	}

	// Ensure aggregation conserves volume across candles.
	var candleVolume float64
	for _, candle := range history {
		candleVolume += candle.Volume
	}
	current, ok := aggregator.Current()
	assert.True(t, ok)
	candleVolume += current.Volume
	assert.Equal(t, candleVolume, tickVolume)
}

func TestAggregatorAmend(t *testing.T) {
	aggregator := setupAggregator(t, shared.OneMinute, 0)

	prev := tickAt(10_000, 100, 2)
	aggregator.Ingest(tickAt(0, 99, 1))
	aggregator.Ingest(prev)

	// Ensure amending replaces the close and adjusts volume by the
	// replacement delta.
	aggregator.Amend(prev, tickAt(10_000, 102, 3))

	current, ok := aggregator.Current()
	assert.True(t, ok)
	assert.Equal(t, current.Close, float64(102))
	assert.Equal(t, current.High, float64(102))
	assert.Equal(t, current.Volume, float64(4))

	// Ensure high and low remain watermarks of observed prices.
	replacement := tickAt(10_000, 100.5, 3)
	aggregator.Amend(tickAt(10_000, 102, 3), replacement)

	current, ok = aggregator.Current()
	assert.True(t, ok)
	assert.Equal(t, current.Close, 100.5)
	assert.Equal(t, current.High, float64(102))
	assert.Equal(t, current.Low, float64(99))
	assert.Equal(t, current.Volume, float64(4))

	// Ensure amending with no in-progress candle falls back to an ingest.
	rebased := setupAggregator(t, shared.OneMinute, 0)
	rebased.Amend(prev, tickAt(10_000, 101, 2))
	current, ok = rebased.Current()
	assert.True(t, ok)
	assert.Equal(t, current.Open, float64(101))
	assert.Equal(t, current.Volume, float64(2))
}

func TestAggregatorRebase(t *testing.T) {
	aggregator := setupAggregator(t, shared.OneMinute, 0)

	// Build eleven minutes of ticks, thirty seconds apart, starting on a
	// period boundary.
	var ticks []shared.Tick
	for idx := range int64(22) {
		ticks = append(ticks, tickAt(idx*30_000, 100+float64(idx), 1))
	}
	for _, tick := range ticks {
		aggregator.Ingest(tick)
	}
	assert.Equal(t, len(aggregator.History()), 10)

	// Ensure rebasing to a coarser granularity re-derives candles from the
	// retained ticks.
	insufficient := aggregator.Rebase(shared.FiveMinute, ticks)
	assert.False(t, insufficient)
	assert.Equal(t, aggregator.Granularity(), shared.FiveMinute)

	history := aggregator.History()
	assert.Equal(t, len(history), 2)
	assert.Equal(t, history[0].PeriodStart, int64(0))
	assert.Equal(t, history[0].Open, float64(100))
	assert.Equal(t, history[0].Close, float64(109))
	assert.Equal(t, history[0].Volume, float64(10))
	assert.Equal(t, history[1].PeriodStart, int64(300_000))

	current, ok := aggregator.Current()
	assert.True(t, ok)
	assert.Equal(t, current.PeriodStart, int64(600_000))

	// Ensure a first candle derived from a mid-period tick window is
	// discarded as partial.
	offset := make([]shared.Tick, 0, len(ticks))
	for _, tick := range ticks {
		shifted := tick
		shifted.Timestamp += 150_000
		offset = append(offset, shifted)
	}
	insufficient = aggregator.Rebase(shared.FiveMinute, offset)
	assert.False(t, insufficient)

	history = aggregator.History()
	assert.Equal(t, len(history), 1)
	assert.Equal(t, history[0].PeriodStart, int64(300_000))

	// Ensure rebasing with too little retained history reports insufficiency.
	insufficient = aggregator.Rebase(shared.OneHour, ticks)
	assert.True(t, insufficient)
	assert.Equal(t, len(aggregator.History()), 0)

	// Ensure rebasing with no ticks reports insufficiency.
	insufficient = aggregator.Rebase(shared.OneMinute, nil)
	assert.True(t, insufficient)
	_, ok = aggregator.Current()
	assert.False(t, ok)
}

func TestAggregatorSeedHistory(t *testing.T) {
	aggregator := setupAggregator(t, shared.OneMinute, 0)

	aggregator.Ingest(tickAt(300_000, 100, 1))
	aggregator.Ingest(tickAt(361_000, 101, 1))

	backfill := []shared.Candle{
		{Open: 90, High: 92, Low: 89, Close: 91, Volume: 5, PeriodStart: 120_000, Granularity: shared.OneMinute},
		{Open: 91, High: 95, Low: 91, Close: 94, Volume: 4, PeriodStart: 180_000, Granularity: shared.OneMinute},
		// Overlaps the derived candle and must be skipped.
		{Open: 94, High: 99, Low: 94, Close: 98, Volume: 2, PeriodStart: 300_000, Granularity: shared.OneMinute},
		// Wrong granularity and must be skipped.
		{Open: 80, High: 85, Low: 80, Close: 84, Volume: 9, PeriodStart: 240_000, Granularity: shared.FiveMinute},
	}
	aggregator.SeedHistory(backfill)

	history := aggregator.History()
	assert.Equal(t, len(history), 3)
	assert.Equal(t, history[0].PeriodStart, int64(120_000))
	assert.Equal(t, history[1].PeriodStart, int64(180_000))
	assert.Equal(t, history[2].PeriodStart, int64(300_000))
	assert.True(t, history[0].Complete)
	assert.Equal(t, history[2].Open, float64(100))
}

func TestAggregatorHistoryBound(t *testing.T) {
	aggregator := setupAggregator(t, shared.OneMinute, 2)

	// Ensure history evicts the oldest completed candle past capacity.
	for idx := range int64(5) {
		aggregator.Ingest(tickAt(idx*60_000, 100+float64(idx), 1))
	}

	history := aggregator.History()
	assert.Equal(t, len(history), 2)
	assert.Equal(t, history[0].PeriodStart, int64(120_000))
	assert.Equal(t, history[1].PeriodStart, int64(180_000))
}
