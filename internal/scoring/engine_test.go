package scoring

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/config"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/domain"
)

type persistRecorder struct {
	mu       sync.Mutex
	profiles []domain.CreditProfile
	entries  []domain.HistoryEntry
	fail     bool
}

func (p *persistRecorder) SaveProfile(_ context.Context, profile domain.CreditProfile) error {
	if p.fail {
		return errors.New("store unavailable")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles = append(p.profiles, profile)
	return nil
}

func (p *persistRecorder) AppendHistory(_ context.Context, _ string, entries []domain.HistoryEntry) error {
	if p.fail {
		return errors.New("store unavailable")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entries...)
	return nil
}

func newTestEngine(t *testing.T, mutate func(*config.ScoringConfig)) *Engine {
	t.Helper()
	cfg := config.DefaultScoringConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	engine := NewEngine(cfg, testLogger(), nil)
	t.Cleanup(engine.Close)
	return engine
}

func defiEvent(addr, tx string, ts time.Time) domain.CategorizedEvent {
	return domain.CategorizedEvent{
		TxHash:     tx,
		Address:    addr,
		Impact:     map[domain.Dimension]float64{domain.DimensionDefiReliability: 1.0},
		RiskScore:  0.1,
		DataWeight: 0.8,
		Value:      1.5,
		Protocol:   "aave",
		Timestamp:  ts,
	}
}

func TestEngineFirstEventUpdatesProfile(t *testing.T) {
	engine := newTestEngine(t, nil)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	result, err := engine.ProcessEvent(context.Background(), defiEvent("0xwallet1", "0xtx1", ts), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Updated) != 1 {
		t.Fatalf("expected 1 applied update, got %d", len(result.Updated))
	}
	if result.Updated[0].Delta() <= 0 {
		t.Fatalf("expected a positive delta, got %.4f", result.Updated[0].Delta())
	}

	profile, ok := engine.Profile("0xwallet1")
	if !ok {
		t.Fatalf("expected profile for 0xwallet1")
	}
	defi := profile.Dimensions[domain.DimensionDefiReliability]
	if defi.Score <= domain.ScoreNeutral {
		t.Fatalf("expected defi score above neutral, got %.2f", defi.Score)
	}
	if defi.DataPoints != 1 {
		t.Fatalf("expected 1 data point, got %d", defi.DataPoints)
	}
	if defi.Confidence < 30 {
		t.Fatalf("expected confidence above the publication gate, got %.2f", defi.Confidence)
	}

	// Untouched dimensions stay at the neutral defaults.
	staking := profile.Dimensions[domain.DimensionStakingCommitment]
	if staking.Score != domain.ScoreNeutral || staking.DataPoints != 0 {
		t.Fatalf("expected untouched staking dimension at neutral, got %+v", staking)
	}

	history := engine.History("0xwallet1", domain.DimensionDefiReliability, time.Time{}, time.Time{})
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	if history[0].Score != defi.Score {
		t.Fatalf("expected history entry score %.2f, got %.2f", defi.Score, history[0].Score)
	}
}

func TestEngineRejectsInvalidEvent(t *testing.T) {
	engine := newTestEngine(t, nil)

	event := defiEvent("", "0xtx1", time.Now())
	if _, err := engine.ProcessEvent(context.Background(), event, ""); !domain.IsValidation(err) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if stats := engine.Stats(); stats.EventsRejected != 1 {
		t.Fatalf("expected 1 rejected event, got %d", stats.EventsRejected)
	}
}

func TestEngineConfidenceGateDropsUpdates(t *testing.T) {
	engine := newTestEngine(t, func(cfg *config.ScoringConfig) {
		cfg.Engine.MinConfidence = 90
	})
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	result, err := engine.ProcessEvent(context.Background(), defiEvent("0xwallet1", "0xtx1", ts), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Updated) != 0 {
		t.Fatalf("expected all updates gated out, got %d", len(result.Updated))
	}

	// A gated update leaves no trace on the profile or its history.
	profile, _ := engine.Profile("0xwallet1")
	defi := profile.Dimensions[domain.DimensionDefiReliability]
	if defi.Score != domain.ScoreNeutral || defi.DataPoints != 0 {
		t.Fatalf("expected profile untouched after gating, got %+v", defi)
	}
	if history := engine.History("0xwallet1", "", time.Time{}, time.Time{}); len(history) != 0 {
		t.Fatalf("expected no history after gating, got %d entries", len(history))
	}
	if stats := engine.Stats(); stats.UpdatesDiscarded != 1 {
		t.Fatalf("expected 1 discarded update, got %d", stats.UpdatesDiscarded)
	}
}

func TestEngineZeroImpactIsNoOp(t *testing.T) {
	engine := newTestEngine(t, nil)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	event := defiEvent("0xwallet1", "0xtx1", ts)
	event.Impact = map[domain.Dimension]float64{domain.DimensionDefiReliability: 0}

	result, err := engine.ProcessEvent(context.Background(), event, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Updated) != 0 {
		t.Fatalf("expected no updates for a zero-impact event, got %d", len(result.Updated))
	}
	if history := engine.History("0xwallet1", "", time.Time{}, time.Time{}); len(history) != 0 {
		t.Fatalf("expected no history for a zero-impact event, got %d entries", len(history))
	}
}

func TestEngineHighRiskEscalatesToImmediate(t *testing.T) {
	engine := newTestEngine(t, nil)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var published []domain.ScoreUpdate
	engine.Subscribe(func(addr string, updates []domain.ScoreUpdate) {
		published = append(published, updates...)
	})

	event := defiEvent("0xwallet1", "0xtx1", ts)
	event.RiskScore = 0.9

	result, err := engine.ProcessEvent(context.Background(), event, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Updated) != 1 {
		t.Fatalf("expected 1 applied update, got %d", len(result.Updated))
	}
	if result.Updated[0].Delta() >= 0 {
		t.Fatalf("expected a score-harming delta for high risk, got %.4f", result.Updated[0].Delta())
	}

	// Escalated updates bypass the queue, so the subscriber fires inline.
	if len(published) != 1 {
		t.Fatalf("expected immediate publication, got %d delivered", len(published))
	}
	if metrics := engine.Scheduler().Metrics(); metrics.Immediate != 1 {
		t.Fatalf("expected 1 immediate update, got %d", metrics.Immediate)
	}
}

func TestEnginePositiveUpdateIsQueued(t *testing.T) {
	engine := newTestEngine(t, nil)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var published int
	engine.Subscribe(func(string, []domain.ScoreUpdate) { published++ })

	if _, err := engine.ProcessEvent(context.Background(), defiEvent("0xwallet1", "0xtx1", ts), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if published != 0 {
		t.Fatalf("expected positive update held in the queue, got %d delivered", published)
	}
	if metrics := engine.Scheduler().Metrics(); metrics.QueueDepth != 1 {
		t.Fatalf("expected queue depth 1, got %d", metrics.QueueDepth)
	}
}

func TestEngineHistoryLimitEnforced(t *testing.T) {
	engine := newTestEngine(t, func(cfg *config.ScoringConfig) {
		cfg.Engine.HistoryLimit = 3
	})
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	clock := ts
	engine.WithClock(func() time.Time { return clock })

	for i := 0; i < 6; i++ {
		clock = ts.Add(time.Duration(i) * time.Hour)
		event := defiEvent("0xwallet1", "0xtx", clock)
		event.Impact = map[domain.Dimension]float64{domain.DimensionDefiReliability: 0.1}
		if _, err := engine.ProcessEvent(context.Background(), event, ""); err != nil {
			t.Fatalf("unexpected error at event %d: %v", i, err)
		}
	}

	history := engine.History("0xwallet1", domain.DimensionDefiReliability, time.Time{}, time.Time{})
	if len(history) != 3 {
		t.Fatalf("expected history capped at 3 entries, got %d", len(history))
	}
	// The newest entries survive the cap.
	if !history[len(history)-1].Timestamp.After(history[0].Timestamp) {
		t.Fatalf("expected ascending history timestamps, got %+v", history)
	}
}

func TestEngineHistoryTimeRangeFilter(t *testing.T) {
	engine := newTestEngine(t, nil)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	clock := ts
	engine.WithClock(func() time.Time { return clock })

	for i := 0; i < 4; i++ {
		clock = ts.Add(time.Duration(i) * time.Hour)
		event := defiEvent("0xwallet1", "0xtx", clock)
		event.Impact = map[domain.Dimension]float64{domain.DimensionDefiReliability: 0.1}
		if _, err := engine.ProcessEvent(context.Background(), event, ""); err != nil {
			t.Fatalf("unexpected error at event %d: %v", i, err)
		}
	}

	got := engine.History("0xwallet1", domain.DimensionDefiReliability, ts.Add(time.Hour), ts.Add(2*time.Hour))
	if len(got) != 2 {
		t.Fatalf("expected 2 entries in range, got %d", len(got))
	}
}

func TestEnginePerWalletSerialization(t *testing.T) {
	engine := newTestEngine(t, nil)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	const workers = 4
	const perWorker = 5

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				event := defiEvent("0xwallet1", "0xtx", ts.Add(time.Duration(w*perWorker+i)*time.Minute))
				event.Impact = map[domain.Dimension]float64{domain.DimensionDefiReliability: 0.1}
				if _, err := engine.ProcessEvent(context.Background(), event, ""); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	profile, ok := engine.Profile("0xwallet1")
	if !ok {
		t.Fatalf("expected profile for 0xwallet1")
	}
	defi := profile.Dimensions[domain.DimensionDefiReliability]
	if defi.DataPoints != workers*perWorker {
		t.Fatalf("expected %d data points, got %d", workers*perWorker, defi.DataPoints)
	}

	history := engine.History("0xwallet1", domain.DimensionDefiReliability, time.Time{}, time.Time{})
	if len(history) != workers*perWorker {
		t.Fatalf("expected %d history entries, got %d", workers*perWorker, len(history))
	}
}

func TestEngineConcurrentQueriesDuringProcessing(t *testing.T) {
	engine := newTestEngine(t, nil)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Seed the wallet so the readers have state to traverse from the start.
	if _, err := engine.ProcessEvent(context.Background(), defiEvent("0xwallet1", "0xseed", ts), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const events = 50
	const readers = 4

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < events; i++ {
			event := defiEvent("0xwallet1", "0xtx", ts.Add(time.Duration(i+1)*time.Minute))
			event.Impact = map[domain.Dimension]float64{domain.DimensionDefiReliability: 0.1}
			if _, err := engine.ProcessEvent(context.Background(), event, ""); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}
	}()

	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < events; i++ {
				if _, ok := engine.Profile("0xwallet1"); !ok {
					t.Errorf("expected profile for 0xwallet1")
				}
				engine.History("0xwallet1", domain.DimensionDefiReliability, time.Time{}, time.Time{})
				if _, err := engine.Confidence("0xwallet1", domain.DimensionDefiReliability); err != nil {
					t.Errorf("unexpected confidence error: %v", err)
				}
				if _, err := engine.TrendFor("0xwallet1", domain.DimensionDefiReliability); err != nil {
					t.Errorf("unexpected trend error: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	history := engine.History("0xwallet1", domain.DimensionDefiReliability, time.Time{}, time.Time{})
	if len(history) != events+1 {
		t.Fatalf("expected %d history entries, got %d", events+1, len(history))
	}
}

func TestEnginePersistsProfileAndHistory(t *testing.T) {
	rec := &persistRecorder{}
	cfg := config.DefaultScoringConfig()
	engine := NewEngine(cfg, testLogger(), rec)
	t.Cleanup(engine.Close)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if _, err := engine.ProcessEvent(context.Background(), defiEvent("0xwallet1", "0xtx1", ts), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rec.profiles) != 1 {
		t.Fatalf("expected 1 profile snapshot, got %d", len(rec.profiles))
	}
	if len(rec.entries) != 1 {
		t.Fatalf("expected 1 persisted history entry, got %d", len(rec.entries))
	}
	if rec.profiles[0].Address != "0xwallet1" {
		t.Fatalf("expected snapshot for 0xwallet1, got %s", rec.profiles[0].Address)
	}
}

func TestEnginePersistFailureSurfaces(t *testing.T) {
	rec := &persistRecorder{fail: true}
	cfg := config.DefaultScoringConfig()
	engine := NewEngine(cfg, testLogger(), rec)
	t.Cleanup(engine.Close)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	result, err := engine.ProcessEvent(context.Background(), defiEvent("0xwallet1", "0xtx1", ts), "")
	if err == nil {
		t.Fatalf("expected a persistence error")
	}

	// The in-memory update still applied atomically before persistence.
	if len(result.Updated) != 1 {
		t.Fatalf("expected the update applied despite the store failure, got %d", len(result.Updated))
	}
	if stats := engine.Stats(); stats.PersistFailures != 1 {
		t.Fatalf("expected 1 persist failure, got %d", stats.PersistFailures)
	}
}

func TestEngineRestoreSeedsState(t *testing.T) {
	engine := newTestEngine(t, nil)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	profile := domain.NewCreditProfile("0xwallet1", ts)
	profile.Dimensions[domain.DimensionDefiReliability].Score = 640
	profile.Dimensions[domain.DimensionDefiReliability].DataPoints = 12

	engine.Restore(profile, []domain.HistoryEntry{
		{Timestamp: ts, Dimension: domain.DimensionDefiReliability, Score: 640},
	})

	got, ok := engine.Profile("0xwallet1")
	if !ok {
		t.Fatalf("expected restored profile")
	}
	if got.Dimensions[domain.DimensionDefiReliability].Score != 640 {
		t.Fatalf("expected restored score 640, got %.2f", got.Dimensions[domain.DimensionDefiReliability].Score)
	}
	if history := engine.History("0xwallet1", "", time.Time{}, time.Time{}); len(history) != 1 {
		t.Fatalf("expected 1 restored history entry, got %d", len(history))
	}
}

func TestEngineClosedRejectsEvents(t *testing.T) {
	engine := newTestEngine(t, nil)
	engine.Close()

	_, err := engine.ProcessEvent(context.Background(), defiEvent("0xwallet1", "0xtx1", time.Now()), "")
	if !errors.Is(err, ErrEngineClosed) {
		t.Fatalf("expected ErrEngineClosed, got %v", err)
	}
}

func TestEngineQueriesForUnknownWallet(t *testing.T) {
	engine := newTestEngine(t, nil)

	if _, ok := engine.Profile("0xnobody"); ok {
		t.Fatalf("expected no profile for an unseen wallet")
	}
	if _, err := engine.Confidence("0xnobody", domain.DimensionDefiReliability); !errors.Is(err, ErrUnknownAddress) {
		t.Fatalf("expected ErrUnknownAddress, got %v", err)
	}
	if _, err := engine.TrendFor("0xnobody", domain.DimensionDefiReliability); !errors.Is(err, ErrUnknownAddress) {
		t.Fatalf("expected ErrUnknownAddress, got %v", err)
	}
}
