package domain

import "time"

// CategorizedEvent is the closed, validated representation of a classified
// blockchain event handed to the engine by the upstream categorization
// pipeline. Treated as immutable once received.
type CategorizedEvent struct {
	TxHash     string
	Address    string
	Impact     map[Dimension]float64
	RiskScore  float64
	DataWeight float64
	Value      float64
	Protocol   string
	Timestamp  time.Time
}

// Validate enforces the event contract at the ingestion boundary. Invalid
// events are rejected before they reach any engine state.
func (e CategorizedEvent) Validate() error {
	if e.Address == "" {
		return &ValidationError{Field: "address", Reason: "is required"}
	}
	if e.TxHash == "" {
		return &ValidationError{Field: "txHash", Reason: "is required"}
	}
	if e.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Reason: "is required"}
	}
	if e.RiskScore < 0 || e.RiskScore > 1 {
		return &ValidationError{Field: "riskScore", Reason: "must be within [0,1]"}
	}
	if e.DataWeight < 0 {
		return &ValidationError{Field: "dataWeight", Reason: "must be non-negative"}
	}
	if e.Value < 0 {
		return &ValidationError{Field: "value", Reason: "must be non-negative"}
	}
	for dim, weight := range e.Impact {
		if _, err := ParseDimension(string(dim)); err != nil {
			return &ValidationError{Field: "impact", Reason: "unknown dimension " + string(dim)}
		}
		if weight < 0 || weight > 1 {
			return &ValidationError{Field: "impact." + string(dim), Reason: "weight must be within [0,1]"}
		}
	}
	return nil
}

// HasImpact reports whether any dimension carries a nonzero impact weight.
func (e CategorizedEvent) HasImpact() bool {
	for _, weight := range e.Impact {
		if weight != 0 {
			return true
		}
	}
	return false
}

// Priority orders scheduled updates. Immediate items bypass the queue.
type Priority string

const (
	PriorityNormal    Priority = "normal"
	PriorityHigh      Priority = "high"
	PriorityImmediate Priority = "immediate"
)

// Rank maps a priority to its queue ordering weight (higher first).
func (p Priority) Rank() int {
	switch p {
	case PriorityImmediate:
		return 2
	case PriorityHigh:
		return 1
	default:
		return 0
	}
}

// ParsePriority normalizes a caller-supplied priority hint, defaulting to
// normal for empty or unrecognized values.
func ParsePriority(raw string) Priority {
	switch Priority(raw) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityImmediate:
		return PriorityImmediate
	default:
		return PriorityNormal
	}
}

// SLAClass selects the publication latency guarantee for an update.
type SLAClass string

const (
	// SLAPositive governs score-improving updates (published fast).
	SLAPositive SLAClass = "positive"
	// SLANegative governs score-harming updates (deliberately slower).
	SLANegative SLAClass = "negative"
)
