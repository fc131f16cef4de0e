package domain

import "time"

// Score and confidence bounds shared across the engine.
const (
	ScoreMin     = 0.0
	ScoreMax     = 1000.0
	ScoreNeutral = 500.0

	ConfidenceMin = 0.0
	ConfidenceMax = 100.0
)

// ScoreDimension holds the evolving state of a single credit dimension. It is
// mutated only by the scoring engine applying a confidence-approved update.
type ScoreDimension struct {
	Score          float64
	Confidence     float64
	DataPoints     int
	Trend          Trend
	LastCalculated time.Time
}

// CreditProfile aggregates the per-wallet credit state. All five dimensions
// are always present; a profile is never partially initialized.
type CreditProfile struct {
	Address     string
	Dimensions  map[Dimension]*ScoreDimension
	LastUpdated time.Time
}

// NewCreditProfile builds the neutral starting profile for a wallet.
func NewCreditProfile(address string, now time.Time) CreditProfile {
	dims := make(map[Dimension]*ScoreDimension, len(AllDimensions()))
	for _, d := range AllDimensions() {
		dims[d] = &ScoreDimension{
			Score: ScoreNeutral,
			Trend: TrendStable,
		}
	}
	return CreditProfile{
		Address:     address,
		Dimensions:  dims,
		LastUpdated: now,
	}
}

// Clone returns a deep copy safe to hand to external readers.
func (p CreditProfile) Clone() CreditProfile {
	dims := make(map[Dimension]*ScoreDimension, len(p.Dimensions))
	for d, sd := range p.Dimensions {
		copied := *sd
		dims[d] = &copied
	}
	return CreditProfile{
		Address:     p.Address,
		Dimensions:  dims,
		LastUpdated: p.LastUpdated,
	}
}

// ClampScore bounds a score into the valid range.
func ClampScore(score float64) float64 {
	if score < ScoreMin {
		return ScoreMin
	}
	if score > ScoreMax {
		return ScoreMax
	}
	return score
}

// ClampConfidence bounds a confidence value into the valid range.
func ClampConfidence(confidence float64) float64 {
	if confidence < ConfidenceMin {
		return ConfidenceMin
	}
	if confidence > ConfidenceMax {
		return ConfidenceMax
	}
	return confidence
}
