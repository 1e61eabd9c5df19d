package candle

import (
	"errors"
	"fmt"

	"github.com/captainplanet9000/cival-dashboard-sub013/shared"
	"github.com/rs/zerolog"
)

// AggregatorConfig represents the candle aggregator configuration.
type AggregatorConfig struct {
	// Market is the market key whose ticks are aggregated.
	Market string
	// Granularity is the initial aggregation period.
	Granularity shared.Granularity
	// HistorySize is the maximum number of completed candles retained.
	HistorySize int32
	// Logger is the aggregator logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane defaults are set.
func (cfg *AggregatorConfig) Validate() error {
	var errs error

	if cfg.Market == "" {
		errs = errors.Join(errs, fmt.Errorf("market cannot be an empty string"))
	}
	if cfg.HistorySize < 0 {
		errs = errors.Join(errs, fmt.Errorf("history size cannot be negative"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Aggregator buckets a market's ticks into OHLCV candles at a selectable
// granularity. It maintains one mutable in-progress candle and a bounded
// history of completed candles.
//
// An aggregator is owned by a single pipeline goroutine: Ingest, Amend,
// Rebase and SeedHistory must not be called concurrently.
type Aggregator struct {
	cfg           *AggregatorConfig
	granularity   shared.Granularity
	current       *shared.Candle
	history       *shared.CandleSnapshot
	lastTimestamp int64
}

// NewAggregator initializes a new candle aggregator.
func NewAggregator(cfg *AggregatorConfig) (*Aggregator, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating aggregator config: %w", err)
	}

	size := cfg.HistorySize
	if size == 0 {
		size = shared.DefaultCandleSnapshotSize
	}

	history, err := shared.NewCandleSnapshot(size)
	if err != nil {
		return nil, fmt.Errorf("creating candle history snapshot: %w", err)
	}

	return &Aggregator{
		cfg:         cfg,
		granularity: cfg.Granularity,
		history:     history,
	}, nil
}

// Granularity returns the aggregator's active granularity.
func (a *Aggregator) Granularity() shared.Granularity {
	return a.granularity
}

// Ingest applies the provided tick to the in-progress candle. When the tick
// crosses a period boundary the in-progress candle is completed, appended to
// history and returned; otherwise nil is returned. Ticks older than the last
// ingested timestamp are dropped, not reordered.
func (a *Aggregator) Ingest(tick shared.Tick) *shared.Candle {
	if tick.Timestamp < a.lastTimestamp {
		a.cfg.Logger.Debug().Msgf("dropping out of order tick for %s: %d < %d",
			a.cfg.Market, tick.Timestamp, a.lastTimestamp)
		return nil
	}

	a.lastTimestamp = tick.Timestamp
	periodStart := a.granularity.PeriodStart(tick.Timestamp)

	if a.current == nil || a.current.PeriodStart != periodStart {
		completed := a.closeCurrent()
		a.current = &shared.Candle{
			Open:        tick.Price,
			Low:         tick.Price,
			High:        tick.Price,
			Close:       tick.Price,
			Volume:      tick.Volume,
			Market:      a.cfg.Market,
			Granularity: a.granularity,
			PeriodStart: periodStart,
		}

		return completed
	}

	if tick.Price > a.current.High {
		a.current.High = tick.Price
	}
	if tick.Price < a.current.Low {
		a.current.Low = tick.Price
	}
	a.current.Close = tick.Price
	a.current.Volume += tick.Volume

	return nil
}

// Amend applies the last-write-wins policy for a tick sharing the latest
// ingested timestamp: the later tick replaces its predecessor, so the close
// takes the replacement price and the volume is adjusted by the replacement
// delta. High and low remain cumulative watermarks of observed prices.
func (a *Aggregator) Amend(prev shared.Tick, tick shared.Tick) {
	if a.current == nil || a.current.PeriodStart != a.granularity.PeriodStart(tick.Timestamp) {
		a.Ingest(tick)
		return
	}

	if tick.Price > a.current.High {
		a.current.High = tick.Price
	}
	if tick.Price < a.current.Low {
		a.current.Low = tick.Price
	}
	a.current.Close = tick.Price
	a.current.Volume += tick.Volume - prev.Volume
	if a.current.Volume < 0 {
		a.current.Volume = 0
	}
}

// Current returns a copy of the in-progress candle.
func (a *Aggregator) Current() (shared.Candle, bool) {
	if a.current == nil {
		return shared.Candle{}, false
	}

	return *a.current, true
}

// History returns the completed candles retained by the aggregator, ordered
// oldest to newest.
func (a *Aggregator) History() []shared.Candle {
	return a.history.All()
}

// Rebase re-points the aggregator at the provided granularity and re-derives
// candle state from the retained ticks. A derived candle whose period began
// before the first retained tick is discarded as partial. Rebase reports
// whether the retained ticks were insufficient to derive any completed candle
// for the new granularity.
func (a *Aggregator) Rebase(granularity shared.Granularity, ticks []shared.Tick) bool {
	a.granularity = granularity
	a.current = nil
	a.lastTimestamp = 0
	a.history.Reset(nil)

	for idx := range ticks {
		a.Ingest(ticks[idx])
	}

	if len(ticks) > 0 {
		derived := a.history.All()
		firstPeriod := granularity.PeriodStart(ticks[0].Timestamp)
		if len(derived) > 0 && derived[0].PeriodStart == firstPeriod &&
			ticks[0].Timestamp != firstPeriod {
			// The first retained tick landed mid-period, so the first derived
			// candle does not cover its full period.
			a.history.Reset(derived[1:])
		}
	}

	insufficient := a.history.Count() == 0
	if insufficient {
		a.cfg.Logger.Debug().Msgf("insufficient retained ticks to derive %s candles for %s",
			granularity.String(), a.cfg.Market)
	}

	return insufficient
}

// SeedHistory installs backfilled completed candles behind the aggregator's
// derived history. Periods must remain strictly increasing, so backfilled
// candles overlapping derived history or the in-progress period are skipped.
func (a *Aggregator) SeedHistory(candles []shared.Candle) {
	derived := a.history.All()

	merged := make([]shared.Candle, 0, len(candles)+len(derived))
	for idx := range candles {
		seed := candles[idx]
		if seed.Granularity != a.granularity {
			continue
		}
		if a.current != nil && seed.PeriodStart >= a.current.PeriodStart {
			continue
		}
		if len(derived) > 0 && seed.PeriodStart >= derived[0].PeriodStart {
			continue
		}

		seed.Complete = true
		merged = append(merged, seed)
	}

	merged = append(merged, derived...)
	a.history.Reset(merged)
}

// closeCurrent completes the in-progress candle and appends it to history.
func (a *Aggregator) closeCurrent() *shared.Candle {
	if a.current == nil {
		return nil
	}

	a.current.Complete = true

	// Keep history periods strictly increasing.
	last, ok := a.history.Last()
	if !ok || last.PeriodStart < a.current.PeriodStart {
		a.history.Update(*a.current)
	}

	completed := *a.current
	a.current = nil
	return &completed
}
