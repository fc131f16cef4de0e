package domain

import "time"

// AnomalyType labels the behavioural pattern that triggered a report.
type AnomalyType string

const (
	AnomalySuspiciousVolume AnomalyType = "suspicious_volume"
	AnomalyUnusualPattern   AnomalyType = "unusual_pattern"
	AnomalyPotentialFraud   AnomalyType = "potential_fraud"
)

// Severity grades how far a pattern exceeded its detection threshold.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AtLeast reports whether s is at or above the provided severity.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank(s) >= severityRank(other)
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// AnomalyReport records a detected deviation from a wallet's own behavioural
// baseline. Reports are logged for manual review and never mutated.
type AnomalyReport struct {
	Type        AnomalyType
	Severity    Severity
	Address     string
	Description string
	TxHashes    []string
	DetectedAt  time.Time
}
