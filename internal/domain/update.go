package domain

import "time"

// ScoreUpdate is the ephemeral output of the score calculator for a single
// dimension. It lives only within one event-processing cycle.
type ScoreUpdate struct {
	Dimension  Dimension
	OldScore   float64
	NewScore   float64
	Confidence float64
	Impact     float64
	Reason     string
}

// Delta returns the signed score change carried by the update.
func (u ScoreUpdate) Delta() float64 {
	return u.NewScore - u.OldScore
}

// ScheduledUpdate tracks an approved update through the publication queue.
type ScheduledUpdate struct {
	Address     string
	Updates     []ScoreUpdate
	Priority    Priority
	SLA         SLAClass
	ScheduledAt time.Time
	Deadline    time.Time
	Attempts    int
}

// ScoreUpdateResult summarises one ProcessEvent call for the caller.
type ScoreUpdateResult struct {
	Address       string
	Updated       []ScoreUpdate
	Anomalies     []AnomalyReport
	MinConfidence float64
	Elapsed       time.Duration
}

// HistoryEntry is one append-only record in a wallet's per-dimension score
// log. The log is ring-capped by the engine to bound memory.
type HistoryEntry struct {
	Timestamp  time.Time
	Dimension  Dimension
	Score      float64
	Confidence float64
	Trigger    string
}
