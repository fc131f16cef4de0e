package scoring

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/config"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/domain"
)

// Detector flags behaviourally anomalous bursts against each wallet's own
// historical baseline. Reports are logged for manual review and never block
// the triggering event's scoring.
type Detector struct {
	cfg    config.AnomalyConfig
	logger *slog.Logger

	mu      sync.Mutex
	windows map[string]*behaviorWindow
	reports []domain.AnomalyReport
	total   int64
}

type behaviorWindow struct {
	mu             sync.Mutex
	events         []windowEvent
	lifetimeCount  int
	lifetimeVolume float64
	firstSeen      time.Time
}

type windowEvent struct {
	ts     time.Time
	value  float64
	risk   float64
	txHash string
}

// NewDetector builds a Detector with its own per-wallet state.
func NewDetector(cfg config.AnomalyConfig, logger *slog.Logger) *Detector {
	return &Detector{
		cfg:     cfg,
		logger:  logger,
		windows: make(map[string]*behaviorWindow),
	}
}

// Inspect records the event in the wallet's rolling window and returns any
// triggered anomaly reports.
func (d *Detector) Inspect(event domain.CategorizedEvent) []domain.AnomalyReport {
	window := d.windowFor(event.Address)

	window.mu.Lock()
	window.observe(event, d.cfg.WindowSize)
	reports := d.evaluate(window, event)
	window.mu.Unlock()

	if len(reports) > 0 {
		d.record(reports)
	}
	return reports
}

// Recent returns reports detected at or after the provided time, newest last.
func (d *Detector) Recent(since time.Time) []domain.AnomalyReport {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []domain.AnomalyReport
	for _, report := range d.reports {
		if !report.DetectedAt.Before(since) {
			out = append(out, report)
		}
	}
	return out
}

// TotalDetected returns the running count of all reports ever emitted.
func (d *Detector) TotalDetected() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.total
}

func (d *Detector) windowFor(address string) *behaviorWindow {
	d.mu.Lock()
	defer d.mu.Unlock()

	window, ok := d.windows[address]
	if !ok {
		window = &behaviorWindow{}
		d.windows[address] = window
	}
	return window
}

func (w *behaviorWindow) observe(event domain.CategorizedEvent, maxSize int) {
	if w.lifetimeCount == 0 {
		w.firstSeen = event.Timestamp
	}
	w.lifetimeCount++
	w.lifetimeVolume += event.Value

	w.events = append(w.events, windowEvent{
		ts:     event.Timestamp,
		value:  event.Value,
		risk:   event.RiskScore,
		txHash: event.TxHash,
	})
	if maxSize > 0 && len(w.events) > maxSize {
		w.events = append(w.events[:0], w.events[len(w.events)-maxSize:]...)
	}
}

func (d *Detector) evaluate(w *behaviorWindow, event domain.CategorizedEvent) []domain.AnomalyReport {
	var reports []domain.AnomalyReport

	if report, ok := d.checkVolume(w, event); ok {
		reports = append(reports, report)
	}
	if report, ok := d.checkFrequency(w, event); ok {
		reports = append(reports, report)
	}
	if report, ok := d.checkFraudCluster(w, event); ok {
		reports = append(reports, report)
	}
	return reports
}

// checkVolume compares the recent window's volume against the wallet's
// lifetime average for the same span.
func (d *Detector) checkVolume(w *behaviorWindow, event domain.CategorizedEvent) (domain.AnomalyReport, bool) {
	expected, ok := d.expectedRate(w, event.Timestamp, w.lifetimeVolume)
	if !ok || expected <= 0 {
		return domain.AnomalyReport{}, false
	}

	var recent float64
	var hashes []string
	cutoff := event.Timestamp.Add(-d.cfg.RecentWindow)
	for _, ev := range w.events {
		if ev.ts.Before(cutoff) {
			continue
		}
		recent += ev.value
		hashes = append(hashes, ev.txHash)
	}

	ratio := recent / expected
	if ratio <= d.cfg.VolumeRatio {
		return domain.AnomalyReport{}, false
	}

	return domain.AnomalyReport{
		Type:     domain.AnomalySuspiciousVolume,
		Severity: severityFromExceedance(ratio / d.cfg.VolumeRatio),
		Address:  event.Address,
		Description: fmt.Sprintf("recent volume %.2f is %.1fx the lifetime average for a %s span",
			recent, ratio, d.cfg.RecentWindow),
		TxHashes:   hashes,
		DetectedAt: event.Timestamp,
	}, true
}

// checkFrequency compares recent transaction frequency against the wallet's
// lifetime average.
func (d *Detector) checkFrequency(w *behaviorWindow, event domain.CategorizedEvent) (domain.AnomalyReport, bool) {
	expected, ok := d.expectedRate(w, event.Timestamp, float64(w.lifetimeCount))
	if !ok || expected <= 0 {
		return domain.AnomalyReport{}, false
	}

	var recent int
	var hashes []string
	cutoff := event.Timestamp.Add(-d.cfg.RecentWindow)
	for _, ev := range w.events {
		if ev.ts.Before(cutoff) {
			continue
		}
		recent++
		hashes = append(hashes, ev.txHash)
	}

	ratio := float64(recent) / expected
	if ratio <= d.cfg.FrequencyRatio {
		return domain.AnomalyReport{}, false
	}

	return domain.AnomalyReport{
		Type:     domain.AnomalyUnusualPattern,
		Severity: severityFromExceedance(ratio / d.cfg.FrequencyRatio),
		Address:  event.Address,
		Description: fmt.Sprintf("%d transactions in %s is %.1fx the lifetime frequency",
			recent, d.cfg.RecentWindow, ratio),
		TxHashes:   hashes,
		DetectedAt: event.Timestamp,
	}, true
}

// checkFraudCluster looks for a burst of high-risk events inside a short window.
func (d *Detector) checkFraudCluster(w *behaviorWindow, event domain.CategorizedEvent) (domain.AnomalyReport, bool) {
	cutoff := event.Timestamp.Add(-d.cfg.FraudWindow)

	var hashes []string
	var riskSum float64
	for _, ev := range w.events {
		if ev.ts.Before(cutoff) || ev.risk < d.cfg.FraudRiskCutoff {
			continue
		}
		hashes = append(hashes, ev.txHash)
		riskSum += ev.risk
	}
	if len(hashes) < d.cfg.FraudClusterSize {
		return domain.AnomalyReport{}, false
	}

	severity := domain.SeverityHigh
	if len(hashes) >= d.cfg.FraudClusterSize+2 || riskSum/float64(len(hashes)) >= 0.95 {
		severity = domain.SeverityCritical
	}

	return domain.AnomalyReport{
		Type:     domain.AnomalyPotentialFraud,
		Severity: severity,
		Address:  event.Address,
		Description: fmt.Sprintf("%d high-risk events (risk >= %.2f) within %s",
			len(hashes), d.cfg.FraudRiskCutoff, d.cfg.FraudWindow),
		TxHashes:   hashes,
		DetectedAt: event.Timestamp,
	}, true
}

// expectedRate scales the lifetime total down to the recent-window span.
// Ratio checks stay silent until enough lifetime history has accumulated.
func (d *Detector) expectedRate(w *behaviorWindow, now time.Time, lifetimeTotal float64) (float64, bool) {
	if w.lifetimeCount < d.cfg.MinLifetimeEvents {
		return 0, false
	}
	elapsed := now.Sub(w.firstSeen)
	if elapsed <= d.cfg.RecentWindow {
		return 0, false
	}
	return lifetimeTotal * float64(d.cfg.RecentWindow) / float64(elapsed), true
}

func severityFromExceedance(exceedance float64) domain.Severity {
	switch {
	case exceedance >= 3:
		return domain.SeverityCritical
	case exceedance >= 2:
		return domain.SeverityHigh
	case exceedance >= 1.5:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

func (d *Detector) record(reports []domain.AnomalyReport) {
	d.mu.Lock()
	d.total += int64(len(reports))
	d.reports = append(d.reports, reports...)
	if d.cfg.ReportBuffer > 0 && len(d.reports) > d.cfg.ReportBuffer {
		d.reports = append(d.reports[:0], d.reports[len(d.reports)-d.cfg.ReportBuffer:]...)
	}
	d.mu.Unlock()

	for _, report := range reports {
		d.logger.Warn("anomaly detected",
			"type", string(report.Type),
			"severity", string(report.Severity),
			"address", report.Address,
			"description", report.Description,
			"transactions", len(report.TxHashes),
		)
	}
}
