package chart

import (
	"github.com/captainplanet9000/cival-dashboard-sub013/shared"
)

// SeriesPoint represents a single point of the line or area view.
type SeriesPoint struct {
	X   int64   `json:"x"`
	Y   float64 `json:"y"`
	Tag string  `json:"tag"`
}

// ToSeries projects the provided ticks into an ordered point series for the
// line or area view. It is a total, pure function: no input mutates and an
// empty tick set yields an empty series.
func ToSeries(ticks []shared.Tick) []SeriesPoint {
	if len(ticks) == 0 {
		return []SeriesPoint{}
	}

	points := make([]SeriesPoint, 0, len(ticks))
	for idx := range ticks {
		points = append(points, SeriesPoint{
			X:   ticks[idx].Timestamp,
			Y:   ticks[idx].Price,
			Tag: ticks[idx].Side.String(),
		})
	}

	return points
}

// ToVWAP projects the provided ticks into a cumulative volume-weighted
// average price series. Ticks without volume weigh in as single units so a
// volume-less feed still produces a usable overlay.
func ToVWAP(ticks []shared.Tick) []SeriesPoint {
	if len(ticks) == 0 {
		return []SeriesPoint{}
	}

	points := make([]SeriesPoint, 0, len(ticks))

	var weightedSum, volumeSum float64
	for idx := range ticks {
		volume := ticks[idx].Volume
		if volume == 0 {
			volume = 1
		}

		weightedSum += ticks[idx].Price * volume
		volumeSum += volume

		points = append(points, SeriesPoint{
			X:   ticks[idx].Timestamp,
			Y:   weightedSum / volumeSum,
			Tag: "vwap",
		})
	}

	return points
}
