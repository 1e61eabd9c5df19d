package chart

import (
	"math"

	"github.com/captainplanet9000/cival-dashboard-sub013/shared"
)

// CandleBox represents the draw geometry for a single candle, in canvas
// coordinates with the origin at the top left.
type CandleBox struct {
	X          float64 `json:"x"`
	BodyTop    float64 `json:"bodyTop"`
	BodyBottom float64 `json:"bodyBottom"`
	WickTop    float64 `json:"wickTop"`
	WickBottom float64 `json:"wickBottom"`
	Bullish    bool    `json:"bullish"`
}

// ToCandleGeometry projects the provided candles into per-candle draw
// geometry scaled to the target canvas size. The vertical frame is the
// [min(low), max(high)] range of the visible candles only, so the window
// always fills the canvas. An empty candle set or non-positive dimensions
// yield an empty result rather than an error, keeping the render loop
// resilient.
func ToCandleGeometry(candles []shared.Candle, width float64, height float64) []CandleBox {
	if len(candles) == 0 || width <= 0 || height <= 0 {
		return []CandleBox{}
	}

	low := math.Inf(1)
	high := math.Inf(-1)
	for idx := range candles {
		low = math.Min(low, candles[idx].Low)
		high = math.Max(high, candles[idx].High)
	}

	span := high - low
	scaleY := func(price float64) float64 {
		if span == 0 {
			// A flat window centers every level on the canvas.
			return height / 2
		}
		return height * (high - price) / span
	}

	slot := width / float64(len(candles))
	boxes := make([]CandleBox, 0, len(candles))
	for idx := range candles {
		candle := candles[idx]
		bodyHigh := math.Max(candle.Open, candle.Close)
		bodyLow := math.Min(candle.Open, candle.Close)

		boxes = append(boxes, CandleBox{
			X:          slot*float64(idx) + slot/2,
			BodyTop:    scaleY(bodyHigh),
			BodyBottom: scaleY(bodyLow),
			WickTop:    scaleY(candle.High),
			WickBottom: scaleY(candle.Low),
			Bullish:    candle.Bullish(),
		})
	}

	return boxes
}
