package scoring

import (
	"testing"
	"time"

	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/config"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/domain"
)

func TestConfidenceFreshWalletBaseline(t *testing.T) {
	analyzer := NewConfidenceAnalyzer(config.DefaultScoringConfig().Confidence)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	profile := domain.NewCreditProfile("0xwallet1", now)

	dim := *profile.Dimensions[domain.DimensionDefiReliability]
	got := analyzer.Assess(dim, profile, domain.DimensionDefiReliability, now)

	// 50 baseline - 20 insufficient + 0 never-calculated + 5 stable - 10 no peers.
	if got.Confidence != 25 {
		t.Fatalf("expected confidence 25 for a fresh wallet, got %.2f", got.Confidence)
	}
	if got.Sufficiency != SufficiencyInsufficient {
		t.Fatalf("expected insufficient sufficiency, got %s", got.Sufficiency)
	}
}

func TestConfidenceSufficiencySteps(t *testing.T) {
	analyzer := NewConfidenceAnalyzer(config.DefaultScoringConfig().Confidence)

	cases := []struct {
		dataPoints int
		want       Sufficiency
	}{
		{0, SufficiencyInsufficient},
		{4, SufficiencyInsufficient},
		{5, SufficiencyMinimal},
		{19, SufficiencyMinimal},
		{20, SufficiencyAdequate},
		{49, SufficiencyAdequate},
		{50, SufficiencyExcellent},
		{500, SufficiencyExcellent},
	}
	for _, tc := range cases {
		if got := analyzer.Sufficiency(tc.dataPoints); got != tc.want {
			t.Fatalf("expected %s for %d data points, got %s", tc.want, tc.dataPoints, got)
		}
	}
}

func TestConfidenceRisesWithDataAndFreshness(t *testing.T) {
	analyzer := NewConfidenceAnalyzer(config.DefaultScoringConfig().Confidence)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	profile := domain.NewCreditProfile("0xwallet1", now)

	// Peers carry data, so cross-dimension agreement applies instead of the
	// no-peer penalty.
	for _, d := range domain.AllDimensions() {
		profile.Dimensions[d].DataPoints = 10
	}

	dim := domain.ScoreDimension{
		Score:          520,
		DataPoints:     60,
		Trend:          domain.TrendStable,
		LastCalculated: now.Add(-30 * time.Minute),
	}
	got := analyzer.Assess(dim, profile, domain.DimensionDefiReliability, now)

	// 50 + 20 excellent + 10 fresh + 5 stable + 10 close agreement.
	if got.Confidence != 95 {
		t.Fatalf("expected confidence 95, got %.2f", got.Confidence)
	}
}

func TestConfidenceStaleDataPenalized(t *testing.T) {
	analyzer := NewConfidenceAnalyzer(config.DefaultScoringConfig().Confidence)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	profile := domain.NewCreditProfile("0xwallet1", now)

	fresh := domain.ScoreDimension{
		Score:          500,
		DataPoints:     25,
		Trend:          domain.TrendStable,
		LastCalculated: now.Add(-10 * time.Minute),
	}
	stale := fresh
	stale.LastCalculated = now.Add(-30 * 24 * time.Hour)

	freshConf := analyzer.Assess(fresh, profile, domain.DimensionDefiReliability, now).Confidence
	staleConf := analyzer.Assess(stale, profile, domain.DimensionDefiReliability, now).Confidence
	if staleConf >= freshConf {
		t.Fatalf("expected stale confidence %.2f below fresh %.2f", staleConf, freshConf)
	}
}

func TestConfidenceCrossDimensionDisagreement(t *testing.T) {
	analyzer := NewConfidenceAnalyzer(config.DefaultScoringConfig().Confidence)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	profile := domain.NewCreditProfile("0xwallet1", now)
	for _, d := range domain.AllDimensions() {
		profile.Dimensions[d].DataPoints = 10
		profile.Dimensions[d].Score = 800
	}

	agreeing := domain.ScoreDimension{Score: 790, DataPoints: 25, Trend: domain.TrendStable}
	outlier := domain.ScoreDimension{Score: 200, DataPoints: 25, Trend: domain.TrendStable}

	agree := analyzer.Assess(agreeing, profile, domain.DimensionDefiReliability, now).Confidence
	diverge := analyzer.Assess(outlier, profile, domain.DimensionDefiReliability, now).Confidence
	if diverge >= agree {
		t.Fatalf("expected outlier confidence %.2f below agreeing %.2f", diverge, agree)
	}
}

func TestConfidenceIntervalWidthAndClamping(t *testing.T) {
	analyzer := NewConfidenceAnalyzer(config.DefaultScoringConfig().Confidence)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	profile := domain.NewCreditProfile("0xwallet1", now)

	dim := *profile.Dimensions[domain.DimensionDefiReliability]
	got := analyzer.Assess(dim, profile, domain.DimensionDefiReliability, now)

	// Confidence 25 -> half-width 2.0 * 75 = 150 around the neutral 500.
	if got.Interval.Lower != 350 || got.Interval.Upper != 650 {
		t.Fatalf("expected interval [350,650], got [%.2f,%.2f]", got.Interval.Lower, got.Interval.Upper)
	}

	dim.Score = 60
	low := analyzer.Assess(dim, profile, domain.DimensionDefiReliability, now)
	if low.Interval.Lower != domain.ScoreMin {
		t.Fatalf("expected lower bound clamped to %v, got %.2f", domain.ScoreMin, low.Interval.Lower)
	}
	if low.Interval.Upper <= low.Interval.Lower {
		t.Fatalf("expected a non-empty interval, got [%.2f,%.2f]", low.Interval.Lower, low.Interval.Upper)
	}
}

func TestConfidenceWithinBounds(t *testing.T) {
	analyzer := NewConfidenceAnalyzer(config.DefaultScoringConfig().Confidence)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	profile := domain.NewCreditProfile("0xwallet1", now)

	extremes := []domain.ScoreDimension{
		{Score: 0, DataPoints: 0, Trend: domain.TrendDeclining, LastCalculated: now.Add(-365 * 24 * time.Hour)},
		{Score: 1000, DataPoints: 1000, Trend: domain.TrendImproving, LastCalculated: now},
	}
	for _, dim := range extremes {
		got := analyzer.Assess(dim, profile, domain.DimensionDefiReliability, now)
		if got.Confidence < domain.ConfidenceMin || got.Confidence > domain.ConfidenceMax {
			t.Fatalf("expected confidence within [%v,%v], got %.2f",
				domain.ConfidenceMin, domain.ConfidenceMax, got.Confidence)
		}
	}
}
