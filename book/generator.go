package book

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultStep is the default relative price spacing between ladder levels.
	DefaultStep = 0.001
	// DefaultBaseVolume is the default volume at the level nearest to the
	// current price.
	DefaultBaseVolume = 120
	// DefaultDepth is the default number of levels generated per side.
	DefaultDepth = 10
)

// Level represents a single price level of the synthetic ladder.
type Level struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// Book represents a synthetic bid and ask ladder. Bids descend from just
// below the reference price; asks ascend from just above it.
type Book struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}

// GeneratorConfig represents the synthetic book generator configuration.
type GeneratorConfig struct {
	// Step is the relative price spacing between adjacent levels.
	Step float64
	// BaseVolume is the volume at the level nearest to the current price.
	BaseVolume float64
}

// Validate asserts the config sane defaults are set.
func (cfg *GeneratorConfig) Validate() error {
	var errs error

	if cfg.Step < 0 {
		errs = errors.Join(errs, fmt.Errorf("step cannot be negative"))
	}
	if cfg.BaseVolume < 0 {
		errs = errors.Join(errs, fmt.Errorf("base volume cannot be negative"))
	}

	return errs
}

// Generator derives a presentation-only order book ladder from a reference
// price. The system has no real depth feed: ladder levels are spaced by a
// fixed relative step and volumes follow a Gaussian falloff of level distance,
// so nearer levels show plausible deeper liquidity. The output is a visual
// placeholder and must never be treated as venue truth.
//
// Generation is deterministic: identical inputs always produce identical
// ladders.
type Generator struct {
	cfg *GeneratorConfig
}

// NewGenerator initializes a new synthetic book generator.
func NewGenerator(cfg *GeneratorConfig) (*Generator, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating generator config: %w", err)
	}

	if cfg.Step == 0 {
		cfg.Step = DefaultStep
	}
	if cfg.BaseVolume == 0 {
		cfg.BaseVolume = DefaultBaseVolume
	}

	return &Generator{
		cfg: cfg,
	}, nil
}

// Generate derives a synthetic ladder of depth levels per side around the
// provided price. A non-positive price or depth yields an empty book.
func (g *Generator) Generate(price float64, depth int) Book {
	if price <= 0 || depth <= 0 {
		return Book{}
	}

	sigma := float64(depth) / 3
	bids := make([]Level, 0, depth)
	asks := make([]Level, 0, depth)

	for idx := range depth {
		offset := g.cfg.Step * float64(idx+1)
		volume := g.cfg.BaseVolume * math.Exp(-float64(idx*idx)/(2*sigma*sigma))

		bids = append(bids, Level{
			Price:  price * (1 - offset),
			Volume: volume,
		})
		asks = append(asks, Level{
			Price:  price * (1 + offset),
			Volume: volume,
		})
	}

	return Book{
		Bids: bids,
		Asks: asks,
	}
}
