package scoring

import (
	"container/heap"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/config"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/domain"
)

// ErrSchedulerStopped is returned by Schedule once shutdown has begun.
var ErrSchedulerStopped = errors.New("scheduler is stopped")

// PublishFunc delivers an update to its external consumers. A non-nil error
// marks the attempt as failed and triggers the retry path.
type PublishFunc func(update *domain.ScheduledUpdate) error

// SchedulerMetrics is a point-in-time snapshot of scheduler counters.
type SchedulerMetrics struct {
	Scheduled     int64
	Published     int64
	Immediate     int64
	Retried       int64
	Abandoned     int64
	SLAViolations int64
	QueueDepth    int
}

// Scheduler enforces the asymmetric publication latency guarantees: updates
// are queued against an SLA deadline and released by a periodic sweep, except
// immediate-priority items which bypass the queue entirely.
type Scheduler struct {
	cfg     config.SchedulerConfig
	logger  *slog.Logger
	publish PublishFunc
	nowFn   func() time.Time

	mu      sync.Mutex
	queue   updateQueue
	stopped bool

	stopCh chan struct{}
	doneCh chan struct{}

	scheduled     atomic.Int64
	published     atomic.Int64
	immediate     atomic.Int64
	retried       atomic.Int64
	abandoned     atomic.Int64
	slaViolations atomic.Int64

	// onAbandon, when set, observes updates dropped after exhausting retries.
	onAbandon func(update *domain.ScheduledUpdate)
}

// NewScheduler constructs a Scheduler. Call Start to launch the sweep loop.
func NewScheduler(cfg config.SchedulerConfig, logger *slog.Logger, publish PublishFunc) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		logger:  logger,
		publish: publish,
		nowFn:   time.Now,
		stopCh:  make(chan struct{}),
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *Scheduler) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// OnAbandon registers an observer for abandoned updates.
func (s *Scheduler) OnAbandon(fn func(update *domain.ScheduledUpdate)) {
	s.onAbandon = fn
}

// Start launches the periodic sweep on its own goroutine.
func (s *Scheduler) Start() {
	s.doneCh = make(chan struct{})
	go s.loop()
}

// Stop signals the sweep loop to exit and rejects subsequent Schedule calls.
// In-flight processing completes before Stop returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stopCh)
	if s.doneCh != nil {
		<-s.doneCh
	}
}

// Schedule stamps the update with its SLA deadline and either processes it
// inline (immediate priority) or inserts it into the publication queue.
func (s *Scheduler) Schedule(update domain.ScheduledUpdate) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSchedulerStopped
	}

	update.ScheduledAt = s.nowFn()
	update.Deadline = update.ScheduledAt.Add(s.slaFor(update.SLA))
	s.scheduled.Add(1)

	if update.Priority == domain.PriorityImmediate {
		s.mu.Unlock()
		s.immediate.Add(1)
		s.process(&update)
		return nil
	}

	heap.Push(&s.queue, &update)
	s.mu.Unlock()
	return nil
}

// Metrics returns a snapshot of the scheduler counters.
func (s *Scheduler) Metrics() SchedulerMetrics {
	s.mu.Lock()
	depth := s.queue.Len()
	s.mu.Unlock()

	return SchedulerMetrics{
		Scheduled:     s.scheduled.Load(),
		Published:     s.published.Load(),
		Immediate:     s.immediate.Load(),
		Retried:       s.retried.Load(),
		Abandoned:     s.abandoned.Load(),
		SLAViolations: s.slaViolations.Load(),
		QueueDepth:    depth,
	}
}

func (s *Scheduler) loop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep takes a snapshot of due items under the queue lock, then processes
// them outside it so concurrent Schedule calls are never blocked on publish.
func (s *Scheduler) sweep() {
	now := s.nowFn()

	s.mu.Lock()
	var due []*domain.ScheduledUpdate
	for s.queue.Len() > 0 {
		next := s.queue.items[0]
		if now.Before(next.Deadline.Add(-s.earlyWindow(next.Priority))) {
			// Heap order is priority-major, so lower-priority items may still
			// be due; scan the rest instead of stopping at the head.
			if remaining := s.popOtherDue(now); len(remaining) > 0 {
				due = append(due, remaining...)
			}
			break
		}
		due = append(due, heap.Pop(&s.queue).(*domain.ScheduledUpdate))
	}
	s.mu.Unlock()

	for _, update := range due {
		s.process(update)
	}
}

// popOtherDue removes queued items past their early-processing window even
// when a higher-priority item at the head is not yet due. Caller holds mu.
func (s *Scheduler) popOtherDue(now time.Time) []*domain.ScheduledUpdate {
	var due []*domain.ScheduledUpdate
	var keep []*domain.ScheduledUpdate

	for s.queue.Len() > 0 {
		item := heap.Pop(&s.queue).(*domain.ScheduledUpdate)
		if now.Before(item.Deadline.Add(-s.earlyWindow(item.Priority))) {
			keep = append(keep, item)
			continue
		}
		due = append(due, item)
	}
	for _, item := range keep {
		heap.Push(&s.queue, item)
	}
	return due
}

func (s *Scheduler) process(update *domain.ScheduledUpdate) {
	update.Attempts++

	if err := s.publish(update); err != nil {
		s.handleFailure(update, err)
		return
	}

	s.published.Add(1)
	latency := s.nowFn().Sub(update.ScheduledAt)
	if sla := s.slaFor(update.SLA); latency > sla {
		s.slaViolations.Add(1)
		s.logger.Warn("publication SLA violated",
			"address", update.Address,
			"sla", string(update.SLA),
			"latency", latency,
			"overage", latency-sla,
		)
	}
}

// handleFailure re-queues a failed update at high priority until the attempt
// budget is exhausted, then abandons it with an observable failure event.
func (s *Scheduler) handleFailure(update *domain.ScheduledUpdate, err error) {
	if update.Attempts >= s.cfg.MaxAttempts {
		s.abandon(update, err)
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.abandon(update, err)
		return
	}
	update.Priority = domain.PriorityHigh
	heap.Push(&s.queue, update)
	s.mu.Unlock()

	s.retried.Add(1)
	s.logger.Warn("publication failed, re-queued",
		"address", update.Address,
		"attempts", update.Attempts,
		"error", err,
	)
}

func (s *Scheduler) abandon(update *domain.ScheduledUpdate, err error) {
	s.abandoned.Add(1)
	s.logger.Error("update abandoned after max attempts",
		"address", update.Address,
		"attempts", update.Attempts,
		"error", err,
	)
	if s.onAbandon != nil {
		s.onAbandon(update)
	}
}

func (s *Scheduler) slaFor(class domain.SLAClass) time.Duration {
	if class == domain.SLAPositive {
		return s.cfg.PositiveSLA
	}
	return s.cfg.NegativeSLA
}

func (s *Scheduler) earlyWindow(priority domain.Priority) time.Duration {
	switch priority {
	case domain.PriorityHigh:
		return s.cfg.HighEarlyWindow
	default:
		return s.cfg.NormalEarlyWindow
	}
}

// updateQueue is a heap ordered by priority (immediate > high > normal) and
// then by ascending deadline.
type updateQueue struct {
	items []*domain.ScheduledUpdate
}

func (q *updateQueue) Len() int { return len(q.items) }

func (q *updateQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.Priority.Rank() != b.Priority.Rank() {
		return a.Priority.Rank() > b.Priority.Rank()
	}
	return a.Deadline.Before(b.Deadline)
}

func (q *updateQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *updateQueue) Push(x any) {
	q.items = append(q.items, x.(*domain.ScheduledUpdate))
}

func (q *updateQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	return item
}
