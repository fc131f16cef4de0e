package scoring

import (
	"math"
	"time"

	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/config"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/domain"
)

// Sufficiency classifies how much data backs a dimension's score.
type Sufficiency string

const (
	SufficiencyInsufficient Sufficiency = "insufficient"
	SufficiencyMinimal      Sufficiency = "minimal"
	SufficiencyAdequate     Sufficiency = "adequate"
	SufficiencyExcellent    Sufficiency = "excellent"
)

// ConfidenceInterval bounds the plausible range of a dimension's true score.
type ConfidenceInterval struct {
	Lower float64
	Upper float64
}

// ConfidenceAssessment is the analyzer's verdict for one dimension.
type ConfidenceAssessment struct {
	Confidence  float64
	Interval    ConfidenceInterval
	Sufficiency Sufficiency
}

// ConfidenceAnalyzer derives a trust estimate for a dimension's score from
// data volume, freshness, trend consistency, and cross-dimension agreement.
// Pure and deterministic for identical inputs.
type ConfidenceAnalyzer struct {
	cfg config.ConfidenceConfig
}

// NewConfidenceAnalyzer builds an analyzer from the provided tunables.
func NewConfidenceAnalyzer(cfg config.ConfidenceConfig) *ConfidenceAnalyzer {
	return &ConfidenceAnalyzer{cfg: cfg}
}

// Assess scores the trustworthiness of dim within the context of profile.
// The now argument anchors the freshness factor so results stay reproducible.
func (a *ConfidenceAnalyzer) Assess(dim domain.ScoreDimension, profile domain.CreditProfile, self domain.Dimension, now time.Time) ConfidenceAssessment {
	confidence := a.cfg.Baseline
	confidence += a.sufficiencyDelta(dim.DataPoints)
	confidence += a.freshnessDelta(dim.LastCalculated, now)
	confidence += a.trendDelta(dim.Trend)
	confidence += a.crossDimensionDelta(dim, profile, self)
	confidence = domain.ClampConfidence(confidence)

	halfWidth := a.cfg.IntervalWidthFactor * (domain.ConfidenceMax - confidence)
	return ConfidenceAssessment{
		Confidence: confidence,
		Interval: ConfidenceInterval{
			Lower: domain.ClampScore(dim.Score - halfWidth),
			Upper: domain.ClampScore(dim.Score + halfWidth),
		},
		Sufficiency: a.Sufficiency(dim.DataPoints),
	}
}

// Sufficiency returns the step classification for a data point count.
func (a *ConfidenceAnalyzer) Sufficiency(dataPoints int) Sufficiency {
	switch {
	case dataPoints < a.cfg.MinimalPoints:
		return SufficiencyInsufficient
	case dataPoints < a.cfg.AdequatePoints:
		return SufficiencyMinimal
	case dataPoints < a.cfg.ExcellentPoints:
		return SufficiencyAdequate
	default:
		return SufficiencyExcellent
	}
}

func (a *ConfidenceAnalyzer) sufficiencyDelta(dataPoints int) float64 {
	switch a.Sufficiency(dataPoints) {
	case SufficiencyInsufficient:
		return a.cfg.InsufficientDelta
	case SufficiencyMinimal:
		return a.cfg.MinimalDelta
	case SufficiencyAdequate:
		return a.cfg.AdequateDelta
	default:
		return a.cfg.ExcellentDelta
	}
}

func (a *ConfidenceAnalyzer) freshnessDelta(lastCalculated, now time.Time) float64 {
	if lastCalculated.IsZero() {
		// Never calculated: no freshness signal either way.
		return 0
	}
	age := now.Sub(lastCalculated)
	switch {
	case age < time.Hour:
		return a.cfg.FreshHourDelta
	case age < 24*time.Hour:
		return a.cfg.FreshDayDelta
	case age < 7*24*time.Hour:
		return a.cfg.FreshWeekDelta
	default:
		return a.cfg.StaleDelta
	}
}

func (a *ConfidenceAnalyzer) trendDelta(trend domain.Trend) float64 {
	switch trend {
	case domain.TrendStable:
		return a.cfg.StableDelta
	case domain.TrendImproving:
		return a.cfg.ImprovingDelta
	case domain.TrendDeclining:
		return a.cfg.DecliningDelta
	default:
		return 0
	}
}

// crossDimensionDelta rewards agreement between this dimension's score and the
// mean of the wallet's other dimensions that have accumulated data.
func (a *ConfidenceAnalyzer) crossDimensionDelta(dim domain.ScoreDimension, profile domain.CreditProfile, self domain.Dimension) float64 {
	var sum float64
	var count int
	for name, other := range profile.Dimensions {
		if name == self || other.DataPoints == 0 {
			continue
		}
		sum += other.Score
		count++
	}
	if count == 0 {
		return a.cfg.NoPeerPenalty
	}

	deviation := math.Abs(dim.Score - sum/float64(count))
	switch {
	case deviation < a.cfg.CloseDeviation:
		return a.cfg.CloseDelta
	case deviation < a.cfg.MidDeviation:
		return a.cfg.MidDelta
	case deviation < a.cfg.FarDeviation:
		return 0
	default:
		return a.cfg.FarPenalty
	}
}
