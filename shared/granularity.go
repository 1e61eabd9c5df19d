package shared

import (
	"fmt"
	"time"
)

// Granularity represents the candle aggregation period.
type Granularity int

const (
	OneMinute Granularity = iota
	FiveMinute
	FifteenMinute
	ThirtyMinute
	OneHour
	FourHour
	OneDay
	OneWeek
)

// String stringifies the provided granularity.
func (g Granularity) String() string {
	switch g {
	case OneMinute:
		return "1m"
	case FiveMinute:
		return "5m"
	case FifteenMinute:
		return "15m"
	case ThirtyMinute:
		return "30m"
	case OneHour:
		return "1h"
	case FourHour:
		return "4h"
	case OneDay:
		return "1d"
	case OneWeek:
		return "1w"
	default:
		return "unknown"
	}
}

// Duration returns the period covered by the provided granularity.
func (g Granularity) Duration() time.Duration {
	switch g {
	case OneMinute:
		return time.Minute
	case FiveMinute:
		return time.Minute * 5
	case FifteenMinute:
		return time.Minute * 15
	case ThirtyMinute:
		return time.Minute * 30
	case OneHour:
		return time.Hour
	case FourHour:
		return time.Hour * 4
	case OneDay:
		return time.Hour * 24
	case OneWeek:
		return time.Hour * 24 * 7
	default:
		return 0
	}
}

// Milliseconds returns the period covered by the provided granularity in milliseconds.
func (g Granularity) Milliseconds() int64 {
	return g.Duration().Milliseconds()
}

// PeriodStart returns the epoch-aligned start of the period containing the
// provided millisecond timestamp.
func (g Granularity) PeriodStart(timestamp int64) int64 {
	ms := g.Milliseconds()
	if ms == 0 {
		return timestamp
	}

	return timestamp - timestamp%ms
}

// ParseGranularity parses a granularity from its string form.
func ParseGranularity(value string) (Granularity, error) {
	switch value {
	case "1m":
		return OneMinute, nil
	case "5m":
		return FiveMinute, nil
	case "15m":
		return FifteenMinute, nil
	case "30m":
		return ThirtyMinute, nil
	case "1h":
		return OneHour, nil
	case "4h":
		return FourHour, nil
	case "1d":
		return OneDay, nil
	case "1w":
		return OneWeek, nil
	default:
		return 0, fmt.Errorf("unknown granularity: %s", value)
	}
}
