package scoring

import (
	"math"
	"time"

	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/config"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/domain"
)

// TrendAnalysis summarises the direction and quality of a dimension's recent
// score history.
type TrendAnalysis struct {
	Trend          domain.Trend
	Strength       float64
	Volatility     float64
	Momentum       float64
	ProjectedScore float64
	Duration       time.Duration
}

// TrendAnalyzer derives trend classifications from per-dimension score logs.
// Analysis is pure given a history snapshot; the history itself is owned and
// appended by the engine.
type TrendAnalyzer struct {
	cfg config.TrendConfig
}

// NewTrendAnalyzer builds an analyzer from the provided tunables.
func NewTrendAnalyzer(cfg config.TrendConfig) *TrendAnalyzer {
	return &TrendAnalyzer{cfg: cfg}
}

// Analyze computes the trend fields for one ordered-by-time score log.
// Histories shorter than the configured minimum yield the neutral default.
func (t *TrendAnalyzer) Analyze(history []domain.HistoryEntry) TrendAnalysis {
	n := len(history)
	if n < t.cfg.MinDataPoints {
		projected := domain.ScoreNeutral
		if n > 0 {
			projected = history[n-1].Score
		}
		return TrendAnalysis{
			Trend:          domain.TrendStable,
			ProjectedScore: projected,
		}
	}

	slope := indexSlope(history)
	band := t.cfg.DeadBandBase / float64(n)

	analysis := TrendAnalysis{
		Trend:          classifySlope(slope, band),
		Strength:       math.Min(math.Abs(slope)*t.cfg.StrengthScale, 100),
		Volatility:     t.volatility(history),
		Momentum:       t.momentum(history, slope),
		ProjectedScore: t.projection(history),
		Duration:       t.duration(history, band),
	}
	return analysis
}

// indexSlope runs an ordinary least-squares regression of score against the
// entry index and returns the slope in score units per event.
func indexSlope(history []domain.HistoryEntry) float64 {
	n := float64(len(history))
	var sumX, sumY, sumXY, sumXX float64
	for i, entry := range history {
		x := float64(i)
		sumX += x
		sumY += entry.Score
		sumXY += x * entry.Score
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// timeSlope regresses score against elapsed hours, for forward projection.
func timeSlope(history []domain.HistoryEntry) float64 {
	n := float64(len(history))
	origin := history[0].Timestamp
	var sumX, sumY, sumXY, sumXX float64
	for _, entry := range history {
		x := entry.Timestamp.Sub(origin).Hours()
		sumX += x
		sumY += entry.Score
		sumXY += x * entry.Score
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func classifySlope(slope, band float64) domain.Trend {
	switch {
	case slope > band:
		return domain.TrendImproving
	case slope < -band:
		return domain.TrendDeclining
	default:
		return domain.TrendStable
	}
}

// volatility is the standard deviation of the most recent bounded window of
// scores, capped at 100.
func (t *TrendAnalyzer) volatility(history []domain.HistoryEntry) float64 {
	window := history
	if t.cfg.VolatilityWindow > 0 && len(history) > t.cfg.VolatilityWindow {
		window = history[len(history)-t.cfg.VolatilityWindow:]
	}

	n := float64(len(window))
	var mean float64
	for _, entry := range window {
		mean += entry.Score
	}
	mean /= n

	var variance float64
	for _, entry := range window {
		diff := entry.Score - mean
		variance += diff * diff
	}
	variance /= n

	return math.Min(math.Sqrt(variance), 100)
}

// momentum compares the short recent sub-window's trend against the full
// history trend. Same direction and stronger scores positive; an opposing
// recent direction is penalized. Clamped to [-100,100].
func (t *TrendAnalyzer) momentum(history []domain.HistoryEntry, fullSlope float64) float64 {
	recentLen := len(history) / 3
	if recentLen < t.cfg.MomentumMinPoints {
		recentLen = t.cfg.MomentumMinPoints
	}
	if recentLen > len(history) {
		recentLen = len(history)
	}
	recentSlope := indexSlope(history[len(history)-recentLen:])

	var momentum float64
	if recentSlope*fullSlope < 0 {
		momentum = -math.Abs(recentSlope-fullSlope) * t.cfg.StrengthScale
	} else {
		momentum = (math.Abs(recentSlope) - math.Abs(fullSlope)) * t.cfg.StrengthScale
	}

	if momentum > 100 {
		return 100
	}
	if momentum < -100 {
		return -100
	}
	return momentum
}

// projection extrapolates the time-based regression line forward by the
// configured horizon and clamps the result into the score range.
func (t *TrendAnalyzer) projection(history []domain.HistoryEntry) float64 {
	last := history[len(history)-1].Score
	slopePerHour := timeSlope(history)
	projected := last + slopePerHour*t.cfg.ProjectionHorizon.Hours()
	return domain.ClampScore(projected)
}

// duration walks backward from the most recent entry while consecutive
// pairwise deltas keep the same trend classification.
func (t *TrendAnalyzer) duration(history []domain.HistoryEntry, band float64) time.Duration {
	if len(history) < 2 {
		return 0
	}

	last := len(history) - 1
	current := classifySlope(history[last].Score-history[last-1].Score, band)

	start := last - 1
	for start > 0 {
		prev := classifySlope(history[start].Score-history[start-1].Score, band)
		if prev != current {
			break
		}
		start--
	}
	return history[last].Timestamp.Sub(history[start].Timestamp)
}
