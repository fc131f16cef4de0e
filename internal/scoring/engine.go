package scoring

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/config"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/domain"
)

// ErrEngineClosed is returned by ProcessEvent after Close has been called.
var ErrEngineClosed = errors.New("scoring engine is closed")

// ErrUnknownAddress is returned by queries for wallets the engine has never seen.
var ErrUnknownAddress = errors.New("unknown wallet address")

// Persister is the pluggable snapshot store for profiles and history. The
// engine remains fully functional without one; persistence failures never
// leave the in-memory profile partially updated.
type Persister interface {
	SaveProfile(ctx context.Context, profile domain.CreditProfile) error
	AppendHistory(ctx context.Context, address string, entries []domain.HistoryEntry) error
}

// Subscriber receives score updates at the moment they become externally
// visible, i.e. after passing through the update scheduler.
type Subscriber func(address string, updates []domain.ScoreUpdate)

// EngineStats is a point-in-time snapshot of engine counters.
type EngineStats struct {
	EventsProcessed   int64
	EventsRejected    int64
	UpdatesApplied    int64
	UpdatesDiscarded  int64
	AnomaliesDetected int64
	PersistFailures   int64
	Wallets           int
	Scheduler         SchedulerMetrics
}

// Engine owns all per-wallet credit state and drives the scoring components
// for each incoming event. Work for the same wallet is serialized through a
// striped per-address mutex; different wallets proceed in parallel.
type Engine struct {
	cfg       config.ScoringConfig
	logger    *slog.Logger
	calc      *Calculator
	conf      *ConfidenceAnalyzer
	trend     *TrendAnalyzer
	detector  *Detector
	scheduler *Scheduler
	persister Persister
	nowFn     func() time.Time

	stripes []sync.Mutex

	mu      sync.RWMutex
	wallets map[string]*walletState

	subMu  sync.Mutex
	subs   map[int]Subscriber
	nextID int

	closed atomic.Bool

	eventsProcessed  atomic.Int64
	eventsRejected   atomic.Int64
	updatesApplied   atomic.Int64
	updatesDiscarded atomic.Int64
	persistFailures  atomic.Int64
}

type walletState struct {
	profile domain.CreditProfile
	history map[domain.Dimension][]domain.HistoryEntry
}

// NewEngine constructs the engine and its components. persister may be nil
// for a memory-only deployment. Call Start before processing events.
func NewEngine(cfg config.ScoringConfig, logger *slog.Logger, persister Persister) *Engine {
	stripes := cfg.Engine.LockStripes
	if stripes <= 0 {
		stripes = 64
	}

	e := &Engine{
		cfg:       cfg,
		logger:    logger,
		calc:      NewCalculator(cfg.Calculator),
		conf:      NewConfidenceAnalyzer(cfg.Confidence),
		trend:     NewTrendAnalyzer(cfg.Trend),
		detector:  NewDetector(cfg.Anomaly, logger),
		persister: persister,
		nowFn:     time.Now,
		stripes:   make([]sync.Mutex, stripes),
		wallets:   make(map[string]*walletState),
		subs:      make(map[int]Subscriber),
	}
	e.scheduler = NewScheduler(cfg.Scheduler, logger, e.deliver)
	return e
}

// WithClock overrides the time provider (used primarily in tests).
func (e *Engine) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		e.nowFn = nowFn
		e.scheduler.WithClock(nowFn)
	}
}

// Scheduler exposes the publication scheduler, primarily for observability.
func (e *Engine) Scheduler() *Scheduler {
	return e.scheduler
}

// Start launches the scheduler sweep loop.
func (e *Engine) Start() {
	e.scheduler.Start()
}

// Close stops accepting events and shuts the scheduler down. In-flight event
// processing completes; no profile is left half-updated.
func (e *Engine) Close() {
	if e.closed.Swap(true) {
		return
	}
	e.scheduler.Stop()
}

// ProcessEvent runs the full scoring algorithm for one categorized event and
// returns what changed. Validation errors surface synchronously; a
// confidence-gate rejection is a normal empty result, not an error.
func (e *Engine) ProcessEvent(ctx context.Context, event domain.CategorizedEvent, priorityHint string) (domain.ScoreUpdateResult, error) {
	started := time.Now()

	if e.closed.Load() {
		return domain.ScoreUpdateResult{}, ErrEngineClosed
	}
	if err := event.Validate(); err != nil {
		e.eventsRejected.Add(1)
		return domain.ScoreUpdateResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.ScoreUpdateResult{}, err
	}

	stripe := &e.stripes[stripeIndex(event.Address, len(e.stripes))]
	stripe.Lock()

	state := e.loadOrCreate(event.Address)
	now := e.nowFn()

	anomalies := e.detector.Inspect(event)
	priority := e.classifyPriority(event, anomalies, priorityHint)

	applied, discarded, entries := e.applyUpdates(state, event, now)
	e.updatesDiscarded.Add(int64(discarded))

	stripe.Unlock()

	result := domain.ScoreUpdateResult{
		Address:   event.Address,
		Updated:   applied,
		Anomalies: anomalies,
		Elapsed:   time.Since(started),
	}
	e.eventsProcessed.Add(1)

	if len(applied) == 0 {
		return result, nil
	}

	e.updatesApplied.Add(int64(len(applied)))
	result.MinConfidence = minConfidence(applied)

	if err := e.scheduler.Schedule(domain.ScheduledUpdate{
		Address:  event.Address,
		Updates:  applied,
		Priority: priority,
		SLA:      classifySLA(applied),
	}); err != nil {
		return result, fmt.Errorf("schedule publication: %w", err)
	}

	if err := e.persist(ctx, event.Address, entries); err != nil {
		e.persistFailures.Add(1)
		e.logger.Error("profile persistence failed", "address", event.Address, "error", err)
		return result, fmt.Errorf("persist profile: %w", err)
	}

	result.Elapsed = time.Since(started)
	return result, nil
}

// applyUpdates runs the calculator, gates candidates on confidence, refreshes
// trend state, and applies survivors to the profile as a single atomic step.
// Caller holds the wallet's stripe lock.
func (e *Engine) applyUpdates(state *walletState, event domain.CategorizedEvent, now time.Time) (applied []domain.ScoreUpdate, discarded int, entries []domain.HistoryEntry) {
	candidates := e.calc.Updates(state.profile, event)
	if len(candidates) == 0 {
		return nil, 0, nil
	}

	for _, candidate := range candidates {
		current := state.profile.Dimensions[candidate.Dimension]

		// Gate on the confidence the dimension would carry after the update.
		prospective := domain.ScoreDimension{
			Score:          candidate.NewScore,
			DataPoints:     current.DataPoints + 1,
			Trend:          current.Trend,
			LastCalculated: now,
		}
		assessment := e.conf.Assess(prospective, state.profile, candidate.Dimension, now)
		if assessment.Confidence < e.cfg.Engine.MinConfidence {
			discarded++
			continue
		}
		candidate.Confidence = assessment.Confidence

		entry := domain.HistoryEntry{
			Timestamp:  now,
			Dimension:  candidate.Dimension,
			Score:      candidate.NewScore,
			Confidence: candidate.Confidence,
			Trigger:    fmt.Sprintf("%s (tx %s)", candidate.Reason, event.TxHash),
		}
		state.appendHistory(candidate.Dimension, entry, e.cfg.Engine.HistoryLimit)
		entries = append(entries, entry)

		analysis := e.trend.Analyze(state.history[candidate.Dimension])

		current.Score = candidate.NewScore
		current.Confidence = candidate.Confidence
		current.DataPoints++
		current.Trend = analysis.Trend
		current.LastCalculated = now

		applied = append(applied, candidate)
	}

	if len(applied) > 0 {
		state.profile.LastUpdated = now
	}
	return applied, discarded, entries
}

// classifyPriority applies the immediate-escalation rule: negative behaviour
// overrides whatever priority the caller asked for.
func (e *Engine) classifyPriority(event domain.CategorizedEvent, anomalies []domain.AnomalyReport, hint string) domain.Priority {
	priority := domain.ParsePriority(hint)
	if !e.cfg.Engine.ImmediateEscalation {
		return priority
	}

	negative := event.RiskScore >= e.cfg.Engine.RiskCutoff
	for _, report := range anomalies {
		if report.Severity.AtLeast(domain.SeverityHigh) {
			negative = true
			break
		}
	}
	if negative {
		return domain.PriorityImmediate
	}
	return priority
}

// persist snapshots the profile and new history entries to the pluggable
// store, bounded by the configured timeout. Runs after the per-wallet lock is
// released so a slow store never stalls scoring for that wallet.
func (e *Engine) persist(ctx context.Context, address string, entries []domain.HistoryEntry) error {
	if e.persister == nil {
		return nil
	}

	profile, ok := e.Profile(address)
	if !ok {
		return nil
	}

	pctx, cancel := context.WithTimeout(ctx, e.cfg.Engine.PersistTimeout)
	defer cancel()

	if err := e.persister.SaveProfile(pctx, profile); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	return e.persister.AppendHistory(pctx, address, entries)
}

// lookup resolves a wallet's state and its stripe mutex. Callers must hold
// the stripe lock before touching profile or history internals; the state map
// lock alone does not exclude concurrent ProcessEvent mutation.
func (e *Engine) lookup(address string) (*walletState, *sync.Mutex, bool) {
	e.mu.RLock()
	state, ok := e.wallets[address]
	e.mu.RUnlock()
	if !ok {
		return nil, nil, false
	}
	return state, &e.stripes[stripeIndex(address, len(e.stripes))], true
}

// Profile returns a deep copy of the wallet's profile.
func (e *Engine) Profile(address string) (domain.CreditProfile, bool) {
	state, stripe, ok := e.lookup(address)
	if !ok {
		return domain.CreditProfile{}, false
	}

	stripe.Lock()
	defer stripe.Unlock()
	return state.profile.Clone(), true
}

// History returns the wallet's score log, optionally filtered by dimension
// and time range. Entries are ordered oldest first.
func (e *Engine) History(address string, dim domain.Dimension, from, to time.Time) []domain.HistoryEntry {
	state, stripe, ok := e.lookup(address)
	if !ok {
		return nil
	}

	stripe.Lock()
	defer stripe.Unlock()

	var out []domain.HistoryEntry
	for _, d := range domain.AllDimensions() {
		if dim != "" && d != dim {
			continue
		}
		for _, entry := range state.history[d] {
			if !from.IsZero() && entry.Timestamp.Before(from) {
				continue
			}
			if !to.IsZero() && entry.Timestamp.After(to) {
				continue
			}
			out = append(out, entry)
		}
	}
	sortHistory(out)
	return out
}

// Confidence re-assesses the current confidence for one dimension.
func (e *Engine) Confidence(address string, dim domain.Dimension) (ConfidenceAssessment, error) {
	state, stripe, ok := e.lookup(address)
	if !ok {
		return ConfidenceAssessment{}, ErrUnknownAddress
	}

	stripe.Lock()
	snapshot := state.profile.Clone()
	stripe.Unlock()

	current, ok := snapshot.Dimensions[dim]
	if !ok {
		return ConfidenceAssessment{}, fmt.Errorf("unknown dimension %q", dim)
	}
	return e.conf.Assess(*current, snapshot, dim, e.nowFn()), nil
}

// TrendFor runs a fresh trend analysis over a dimension's history.
func (e *Engine) TrendFor(address string, dim domain.Dimension) (TrendAnalysis, error) {
	state, stripe, ok := e.lookup(address)
	if !ok {
		return TrendAnalysis{}, ErrUnknownAddress
	}

	stripe.Lock()
	history := append([]domain.HistoryEntry(nil), state.history[dim]...)
	stripe.Unlock()

	return e.trend.Analyze(history), nil
}

// Anomalies returns reports detected at or after since, for review tooling.
func (e *Engine) Anomalies(since time.Time) []domain.AnomalyReport {
	return e.detector.Recent(since)
}

// Subscribe registers a callback invoked when updates become externally
// visible. The returned function cancels the subscription.
func (e *Engine) Subscribe(fn Subscriber) func() {
	e.subMu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = fn
	e.subMu.Unlock()

	return func() {
		e.subMu.Lock()
		delete(e.subs, id)
		e.subMu.Unlock()
	}
}

// Restore seeds the engine with a previously persisted profile and history,
// used for warm starts. Not intended for use while events are flowing.
func (e *Engine) Restore(profile domain.CreditProfile, history []domain.HistoryEntry) {
	state := &walletState{
		profile: profile.Clone(),
		history: make(map[domain.Dimension][]domain.HistoryEntry),
	}
	for _, entry := range history {
		state.appendHistory(entry.Dimension, entry, e.cfg.Engine.HistoryLimit)
	}

	stripe := &e.stripes[stripeIndex(profile.Address, len(e.stripes))]
	stripe.Lock()
	e.mu.Lock()
	e.wallets[profile.Address] = state
	e.mu.Unlock()
	stripe.Unlock()
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() EngineStats {
	e.mu.RLock()
	wallets := len(e.wallets)
	e.mu.RUnlock()

	return EngineStats{
		EventsProcessed:   e.eventsProcessed.Load(),
		EventsRejected:    e.eventsRejected.Load(),
		UpdatesApplied:    e.updatesApplied.Load(),
		UpdatesDiscarded:  e.updatesDiscarded.Load(),
		AnomaliesDetected: e.detector.TotalDetected(),
		PersistFailures:   e.persistFailures.Load(),
		Wallets:           wallets,
		Scheduler:         e.scheduler.Metrics(),
	}
}

// deliver is the scheduler's publish hook: it fans the update out to all
// subscribers. Subscriber panics are not recovered; keep callbacks cheap.
func (e *Engine) deliver(update *domain.ScheduledUpdate) error {
	e.subMu.Lock()
	subs := make([]Subscriber, 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.subMu.Unlock()

	for _, fn := range subs {
		fn(update.Address, update.Updates)
	}
	return nil
}

func (e *Engine) loadOrCreate(address string) *walletState {
	e.mu.RLock()
	state, ok := e.wallets[address]
	e.mu.RUnlock()
	if ok {
		return state
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if state, ok = e.wallets[address]; ok {
		return state
	}
	state = &walletState{
		profile: domain.NewCreditProfile(address, e.nowFn()),
		history: make(map[domain.Dimension][]domain.HistoryEntry),
	}
	e.wallets[address] = state
	return state
}

func (w *walletState) appendHistory(dim domain.Dimension, entry domain.HistoryEntry, limit int) {
	log := append(w.history[dim], entry)
	if limit > 0 && len(log) > limit {
		log = append(log[:0], log[len(log)-limit:]...)
	}
	w.history[dim] = log
}

func classifySLA(updates []domain.ScoreUpdate) domain.SLAClass {
	var net float64
	for _, u := range updates {
		net += u.Delta()
	}
	if net > 0 {
		return domain.SLAPositive
	}
	return domain.SLANegative
}

func minConfidence(updates []domain.ScoreUpdate) float64 {
	min := updates[0].Confidence
	for _, u := range updates[1:] {
		if u.Confidence < min {
			min = u.Confidence
		}
	}
	return min
}

func stripeIndex(address string, stripes int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(address))
	return int(h.Sum32() % uint32(stripes))
}

func sortHistory(entries []domain.HistoryEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}
