package domain

import "fmt"

// Dimension identifies one of the five facets of on-chain credit behaviour
// tracked for every wallet.
type Dimension string

const (
	DimensionDefiReliability         Dimension = "defi_reliability"
	DimensionTradingConsistency      Dimension = "trading_consistency"
	DimensionStakingCommitment       Dimension = "staking_commitment"
	DimensionGovernanceParticipation Dimension = "governance_participation"
	DimensionLiquidityProvider       Dimension = "liquidity_provider"
)

// AllDimensions returns the fixed dimension set in a stable order.
func AllDimensions() []Dimension {
	return []Dimension{
		DimensionDefiReliability,
		DimensionTradingConsistency,
		DimensionStakingCommitment,
		DimensionGovernanceParticipation,
		DimensionLiquidityProvider,
	}
}

// ParseDimension validates a raw dimension name supplied by external callers.
func ParseDimension(raw string) (Dimension, error) {
	d := Dimension(raw)
	for _, known := range AllDimensions() {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown dimension %q", raw)
}

// Trend classifies the recent direction of a dimension's score.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)
