package scoring

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/config"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func riskEvent(addr, tx string, ts time.Time, value, risk float64) domain.CategorizedEvent {
	return domain.CategorizedEvent{
		TxHash:    tx,
		Address:   addr,
		Impact:    map[domain.Dimension]float64{domain.DimensionDefiReliability: 0.5},
		RiskScore: risk,
		Value:     value,
		Timestamp: ts,
	}
}

func TestAnomalyQuietBeforeBaseline(t *testing.T) {
	detector := NewDetector(config.DefaultScoringConfig().Anomaly, testLogger())
	origin := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// Fewer lifetime events than the baseline minimum: the ratio checks must
	// stay silent no matter how bursty the activity looks.
	for i := 0; i < 8; i++ {
		ev := riskEvent("0xwallet1", "0xtx", origin.Add(time.Duration(i)*time.Minute), 100, 0)
		if reports := detector.Inspect(ev); len(reports) != 0 {
			t.Fatalf("expected no reports before the lifetime baseline, got %d at event %d", len(reports), i)
		}
	}
}

func TestAnomalyVolumeAndFrequencySpike(t *testing.T) {
	detector := NewDetector(config.DefaultScoringConfig().Anomaly, testLogger())
	origin := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// Establish a baseline: one small transaction every six hours.
	for i := 0; i < 10; i++ {
		ev := riskEvent("0xwallet1", "0xbase", origin.Add(time.Duration(i)*6*time.Hour), 1, 0)
		detector.Inspect(ev)
	}

	// Then a burst of large transactions inside a single hour.
	burstStart := origin.Add(54*time.Hour + time.Minute)
	var types []domain.AnomalyType
	for i := 0; i < 5; i++ {
		ev := riskEvent("0xwallet1", "0xburst", burstStart.Add(time.Duration(i)*time.Minute), 50, 0)
		for _, report := range detector.Inspect(ev) {
			types = append(types, report.Type)
			if report.Address != "0xwallet1" {
				t.Fatalf("expected report for 0xwallet1, got %s", report.Address)
			}
			if len(report.TxHashes) == 0 {
				t.Fatalf("expected contributing transactions on report %s", report.Type)
			}
		}
	}

	if !containsType(types, domain.AnomalySuspiciousVolume) {
		t.Fatalf("expected a suspicious_volume report, got %v", types)
	}
	if !containsType(types, domain.AnomalyUnusualPattern) {
		t.Fatalf("expected an unusual_pattern report, got %v", types)
	}
}

func TestAnomalyFraudCluster(t *testing.T) {
	detector := NewDetector(config.DefaultScoringConfig().Anomaly, testLogger())
	origin := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	var last []domain.AnomalyReport
	for i := 0; i < 5; i++ {
		ev := riskEvent("0xwallet1", "0xfraud", origin.Add(time.Duration(i)*time.Minute), 1, 0.9)
		last = detector.Inspect(ev)
		if i < 2 && len(last) != 0 {
			t.Fatalf("expected no report before the cluster size is reached, got %d at event %d", len(last), i)
		}
	}

	fraud := findType(last, domain.AnomalyPotentialFraud)
	if fraud == nil {
		t.Fatalf("expected a potential_fraud report, got %v", last)
	}
	if fraud.Severity != domain.SeverityCritical {
		t.Fatalf("expected critical severity for a 5-event cluster, got %s", fraud.Severity)
	}
	if len(fraud.TxHashes) != 5 {
		t.Fatalf("expected 5 contributing transactions, got %d", len(fraud.TxHashes))
	}
}

func TestAnomalyFraudClusterScopedPerWallet(t *testing.T) {
	detector := NewDetector(config.DefaultScoringConfig().Anomaly, testLogger())
	origin := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// High-risk events spread across wallets never form a cluster.
	for i := 0; i < 6; i++ {
		addr := "0xwallet1"
		if i%2 == 1 {
			addr = "0xwallet2"
		}
		ev := riskEvent(addr, "0xtx", origin.Add(time.Duration(i)*time.Minute), 1, 0.9)
		if i < 4 {
			if reports := detector.Inspect(ev); len(reports) != 0 {
				t.Fatalf("expected no cross-wallet cluster at event %d, got %d reports", i, len(reports))
			}
		} else {
			detector.Inspect(ev)
		}
	}
}

func TestAnomalyRecentAndTotals(t *testing.T) {
	detector := NewDetector(config.DefaultScoringConfig().Anomaly, testLogger())
	origin := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		detector.Inspect(riskEvent("0xwallet1", "0xfraud", origin.Add(time.Duration(i)*time.Minute), 1, 0.95))
	}

	if detector.TotalDetected() == 0 {
		t.Fatalf("expected the running total to count the fraud report")
	}
	if got := detector.Recent(origin); len(got) == 0 {
		t.Fatalf("expected the report to be visible via Recent")
	}
	if got := detector.Recent(origin.Add(time.Hour)); len(got) != 0 {
		t.Fatalf("expected no reports after the cutoff, got %d", len(got))
	}
}

func containsType(types []domain.AnomalyType, want domain.AnomalyType) bool {
	for _, tpe := range types {
		if tpe == want {
			return true
		}
	}
	return false
}

func findType(reports []domain.AnomalyReport, want domain.AnomalyType) *domain.AnomalyReport {
	for i := range reports {
		if reports[i].Type == want {
			return &reports[i]
		}
	}
	return nil
}
