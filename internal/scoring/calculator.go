package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/config"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/domain"
)

// Calculator converts a categorized event into candidate score updates. It is
// pure: the same profile and event always yield the same updates.
type Calculator struct {
	cfg config.CalculatorConfig
}

// NewCalculator builds a Calculator from the provided weighting tables.
func NewCalculator(cfg config.CalculatorConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// Updates computes one candidate update per dimension with nonzero impact.
// Deltas whose magnitude falls below the minimum-change threshold are dropped
// to avoid history churn from negligible impacts.
func (c *Calculator) Updates(profile domain.CreditProfile, event domain.CategorizedEvent) []domain.ScoreUpdate {
	var updates []domain.ScoreUpdate

	for _, dim := range domain.AllDimensions() {
		weight := event.Impact[dim]
		if weight == 0 {
			continue
		}
		state, ok := profile.Dimensions[dim]
		if !ok {
			continue
		}

		base := weight *
			c.valueMultiplier(event.Value) *
			(1 - event.RiskScore*c.cfg.RiskPenaltyWeight) *
			(1 + event.DataWeight*c.cfg.DataWeightCoefficient)

		impact := base * c.dimensionMultiplier(dim, event) * c.protocolMultiplier(event.Protocol)
		delta := impact * c.cfg.ScaleFactor
		reason := fmt.Sprintf("%s activity on %s", dim, protocolLabel(event.Protocol))

		// Very risky events harm the score instead of improving it; trading
		// consistency is penalized hardest for them.
		if event.RiskScore >= c.cfg.HighRiskCutoff {
			penalty := delta * c.cfg.HighRiskPenaltyFactor
			if dim == domain.DimensionTradingConsistency {
				penalty *= c.cfg.TradingHighRiskFactor
			}
			delta = -penalty
			reason = fmt.Sprintf("high-risk %s activity on %s", dim, protocolLabel(event.Protocol))
		}

		if math.Abs(delta) < c.cfg.MinChange {
			continue
		}

		newScore := domain.ClampScore(state.Score + delta)
		if newScore == state.Score {
			continue
		}

		updates = append(updates, domain.ScoreUpdate{
			Dimension: dim,
			OldScore:  state.Score,
			NewScore:  newScore,
			Impact:    impact,
			Reason:    reason,
		})
	}

	return updates
}

func (c *Calculator) valueMultiplier(value float64) float64 {
	for _, band := range c.cfg.ValueBands {
		if value >= band.Threshold {
			return band.Multiplier
		}
	}
	if len(c.cfg.ValueBands) == 0 {
		return 1.0
	}
	return c.cfg.ValueBands[len(c.cfg.ValueBands)-1].Multiplier
}

func (c *Calculator) dimensionMultiplier(dim domain.Dimension, event domain.CategorizedEvent) float64 {
	mult, ok := c.cfg.DimensionMultipliers[dim]
	if !ok {
		mult = 1.0
	}
	// Staking rewards long-horizon, low-risk behaviour more strongly.
	if dim == domain.DimensionStakingCommitment && event.RiskScore < c.cfg.StakingLowRiskCutoff {
		mult += c.cfg.StakingLowRiskBonus
	}
	return mult
}

// protocolMultiplier looks up the reliability weighting for a protocol. The
// lookup is capped so no single event can exceed the configured ceiling.
func (c *Calculator) protocolMultiplier(protocol string) float64 {
	mult, ok := c.cfg.ProtocolReliability[strings.ToLower(strings.TrimSpace(protocol))]
	if !ok {
		return 1.0
	}
	if mult > c.cfg.ProtocolCeiling {
		return c.cfg.ProtocolCeiling
	}
	return mult
}

func protocolLabel(protocol string) string {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	if protocol == "" {
		return "unknown protocol"
	}
	return protocol
}
