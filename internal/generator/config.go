package generator

import "time"

// Config drives the synthetic event generator.
type Config struct {
	NumWallets     int
	NumEvents      int
	HighRiskChance float64
	BurstChance    float64
	Span           time.Duration
	Seed           int64
}

// DefaultConfig returns baseline settings for local development datasets.
func DefaultConfig() Config {
	return Config{
		NumWallets:     200,
		NumEvents:      10000,
		HighRiskChance: 0.05,
		BurstChance:    0.02,
		Span:           30 * 24 * time.Hour,
		Seed:           42,
	}
}
