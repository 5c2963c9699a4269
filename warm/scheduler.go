// Package warm implements the warming scheduler: it drains a priority-ordered
// queue of animation ids, driving entries from cold to warm (or error) under
// a concurrency cap.
package warm

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	prewarmcache "github.com/wolfeidau/prewarm-cache"
	"github.com/wolfeidau/prewarm-cache/cache"
	"github.com/wolfeidau/prewarm-cache/telemetry"
)

const (
	defaultMaxConcurrent = 2
	defaultWarmTimeout   = 5 * time.Second
)

// WarmFunc performs the opaque warm operation for one entry: decode, upload,
// whatever readiness means for the asset. It receives a copy of the entry and
// reports success or failure; latency and outcome are entirely up to the
// implementation.
type WarmFunc func(ctx context.Context, e prewarmcache.Entry) error

// Config holds scheduler configuration.
type Config struct {
	// Strategy is the admission policy for newly registered entries.
	// Default: balanced.
	Strategy prewarmcache.Strategy

	// MaxConcurrent bounds how many warm operations run at once. Default: 2.
	MaxConcurrent int64

	// WarmTimeout is carried in configuration for callers that want to wrap
	// their WarmFunc, but the scheduler itself never enforces it: a stalled
	// warm operation is never timed out or retried. Default: 5s.
	WarmTimeout time.Duration

	// WarmFunc performs the warm operation. Nil means warms succeed
	// immediately, which is only useful in tests.
	WarmFunc WarmFunc

	// Listener receives warmed / error / warm-complete events.
	Listener prewarmcache.Listener

	// Collector records warm attempts, outcomes, and durations.
	Collector *telemetry.Collector

	// Logger for scheduler events.
	Logger *slog.Logger
}

// Scheduler drains the pending queue against the entry store.
//
// Concurrency model:
//   - Enqueue/AdmitNew and Drain are called from caller goroutines; warm
//     operations run on goroutines spawned by Drain, bounded by a weighted
//     semaphore.
//   - s.mu serialises the queue, the in-flight set, and the drain-cycle flag.
//   - The in-flight set makes warming idempotent per id: a second trigger
//     while a warm is running is a no-op, not a join.
type Scheduler struct {
	store     *cache.Store
	warmFn    WarmFunc
	listener  prewarmcache.Listener
	collector *telemetry.Collector
	logger    *slog.Logger
	strategy  prewarmcache.Strategy
	sem       *semaphore.Weighted
	now       func() time.Time

	mu          sync.Mutex
	cond        *sync.Cond
	queue       []string
	inflight    map[string]struct{}
	cycleActive bool
}

// NewScheduler creates a scheduler over the given store.
func NewScheduler(store *cache.Store, cfg Config) *Scheduler {
	if cfg.Strategy == "" {
		cfg.Strategy = prewarmcache.StrategyBalanced
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.WarmTimeout <= 0 {
		cfg.WarmTimeout = defaultWarmTimeout
	}
	if cfg.WarmFunc == nil {
		cfg.WarmFunc = func(context.Context, prewarmcache.Entry) error { return nil }
	}
	if cfg.Listener == nil {
		cfg.Listener = prewarmcache.NopListener{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Scheduler{
		store:     store,
		warmFn:    cfg.WarmFunc,
		listener:  cfg.Listener,
		collector: cfg.Collector,
		logger:    cfg.Logger,
		strategy:  cfg.Strategy,
		sem:       semaphore.NewWeighted(cfg.MaxConcurrent),
		now:       time.Now,
		inflight:  make(map[string]struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Strategy returns the configured admission strategy.
func (s *Scheduler) Strategy() prewarmcache.Strategy {
	return s.strategy
}

// AdmitNew applies the admission policy to newly registered ids, enqueues the
// admitted ones, and starts draining. It returns how many were admitted.
func (s *Scheduler) AdmitNew(ctx context.Context, ids []string) int {
	var admitted []string
	for _, id := range ids {
		e, ok := s.store.Get(id)
		if ok && s.strategy.Admits(e.Priority) {
			admitted = append(admitted, id)
		}
	}
	if len(admitted) == 0 {
		return 0
	}
	s.Enqueue(admitted...)
	s.Drain(ctx)
	return len(admitted)
}

// Enqueue appends ids to the pending queue and re-sorts the whole queue by
// descending priority weight. The sort is stable, so equal-priority ids keep
// their arrival order.
func (s *Scheduler) Enqueue(ids ...string) {
	if len(ids) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = append(s.queue, ids...)
	s.cycleActive = true

	weights := make(map[string]int, len(s.queue))
	for _, id := range s.queue {
		if e, ok := s.store.Get(id); ok {
			weights[id] = e.Priority.Weight()
		} else {
			weights[id] = prewarmcache.PriorityNormal.Weight()
		}
	}
	sort.SliceStable(s.queue, func(i, j int) bool {
		return weights[s.queue[i]] > weights[s.queue[j]]
	})
}

// Drain starts warm operations for queued ids while concurrency slots are
// free. It returns without waiting for the warms it started; use Flush to
// wait for the scheduler to go idle.
func (s *Scheduler) Drain(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.queue) > 0 {
		if !s.sem.TryAcquire(1) {
			return
		}
		id := s.queue[0]
		s.queue = s.queue[1:]

		if _, busy := s.inflight[id]; busy {
			// Already being warmed; the duplicate trigger is a no-op.
			s.sem.Release(1)
			continue
		}
		s.inflight[id] = struct{}{}

		go s.warmOne(ctx, id)
	}
}

// Warm warms a single entry synchronously, respecting the concurrency cap.
// Unknown ids and entries already in flight are no-ops. Failures are recorded
// on the entry and surfaced via the listener, never returned.
func (s *Scheduler) Warm(ctx context.Context, id string) {
	s.mu.Lock()
	if _, busy := s.inflight[id]; busy {
		s.mu.Unlock()
		return
	}
	s.inflight[id] = struct{}{}
	s.cycleActive = true
	s.mu.Unlock()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.mu.Lock()
		delete(s.inflight, id)
		s.mu.Unlock()
		s.cond.Broadcast()
		return
	}
	s.warmOne(ctx, id)
}

// WarmNext warms the highest-priority cold entry, if any. Ties are broken by
// insertion order.
func (s *Scheduler) WarmNext(ctx context.Context) {
	if id, ok := s.store.NextCold(); ok {
		s.Warm(ctx, id)
	}
}

// warmOne performs one warm attempt. The caller must have reserved the id in
// the in-flight set and acquired a semaphore slot; warmOne releases both.
func (s *Scheduler) warmOne(ctx context.Context, id string) {
	defer s.finish(ctx, id)

	if !s.store.BeginWarm(id) {
		// Unknown id: a defined no-op, not an attempt.
		return
	}

	e, _ := s.store.Get(id)
	start := s.now()
	err := s.warmFn(ctx, e)
	elapsed := s.now().Sub(start)

	s.collector.RecordWarmAttempt(ctx)

	if err != nil {
		s.collector.RecordWarmFailure(ctx)
		if _, ok := s.store.FailWarm(id, err); ok {
			s.logger.Warn("warm failed", "id", id, "error", err)
			s.listener.WarmError(id, err)
		} else {
			// Evicted while in flight; drop the orphaned failure.
			s.logger.Debug("warm failed for evicted entry", "id", id, "error", err)
		}
		return
	}

	s.collector.RecordWarmSuccess(ctx, elapsed)
	if entry, ok := s.store.CompleteWarm(id, s.now(), elapsed); ok {
		s.logger.Debug("warmed animation", "id", id, "duration", elapsed)
		s.listener.AnimationWarmed(entry)
	} else {
		s.logger.Debug("warm completed for evicted entry", "id", id)
	}
}

// finish releases the id's slot, continues the drain, and emits WarmComplete
// exactly once per drain cycle when the queue and the in-flight set are both
// empty.
func (s *Scheduler) finish(ctx context.Context, id string) {
	s.sem.Release(1)

	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()

	s.Drain(ctx)

	s.mu.Lock()
	complete := len(s.queue) == 0 && len(s.inflight) == 0 && s.cycleActive
	if complete {
		s.cycleActive = false
	}
	s.mu.Unlock()

	if complete {
		s.listener.WarmComplete()
	}

	s.cond.Broadcast()
}

// Flush blocks until the pending queue and the in-flight set are both empty.
// It kicks the drain first so queued ids cannot be stranded.
func (s *Scheduler) Flush() {
	s.Drain(context.Background())

	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.queue) > 0 || len(s.inflight) > 0 {
		s.cond.Wait()
	}
}

// Pending returns a copy of the queued ids, in warm order.
func (s *Scheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.queue))
	copy(out, s.queue)
	return out
}

// ClearQueue drops all queued ids without warming them. In-flight warms are
// not interrupted.
func (s *Scheduler) ClearQueue() {
	s.mu.Lock()
	s.queue = nil
	s.mu.Unlock()
	s.cond.Broadcast()
}
