// Package engine wires the prewarm cache together: entry store, warming
// scheduler, expiration sweeper, predictor, and metrics collector behind one
// facade.
package engine

import (
	"context"
	"log/slog"
	"time"

	prewarmcache "github.com/wolfeidau/prewarm-cache"
	"github.com/wolfeidau/prewarm-cache/cache"
	"github.com/wolfeidau/prewarm-cache/predict"
	"github.com/wolfeidau/prewarm-cache/sweep"
	"github.com/wolfeidau/prewarm-cache/telemetry"
	"github.com/wolfeidau/prewarm-cache/warm"
)

// Config holds the full engine configuration. The zero value gives the
// defaults: balanced strategy, 50MB budget, 2 concurrent warms, 5m
// expiration checked every 30s, prediction on with 3 prefetches, hot after 3
// accesses.
type Config struct {
	// Strategy is the admission policy for newly registered entries.
	Strategy prewarmcache.Strategy

	// MemoryBudgetMB is the advisory memory budget in MiB.
	MemoryBudgetMB float64

	// MaxConcurrentWarms bounds concurrent warm operations.
	MaxConcurrentWarms int64

	// WarmTimeout is carried for WarmFunc implementations to consult; the
	// engine itself never times a warm out.
	WarmTimeout time.Duration

	// Expiration is how long a warm entry may go unaccessed before the
	// sweeper demotes it.
	Expiration time.Duration

	// SweepInterval is how often the sweeper runs.
	SweepInterval time.Duration

	// DisablePrediction turns Predict into a no-op.
	DisablePrediction bool

	// PrefetchCount caps predictions per call.
	PrefetchCount int

	// HotThreshold is the access count promoting warm entries to hot.
	HotThreshold int64

	// Disabled turns registration, warming, and sweeping into no-ops.
	// Access, eviction, and stats still work against whatever is cached.
	Disabled bool

	// WarmFunc performs the opaque warm operation.
	WarmFunc warm.WarmFunc

	// Listener receives engine events.
	Listener prewarmcache.Listener

	// Instruments mirrors collector metrics to OpenTelemetry. Optional.
	Instruments *telemetry.Instruments

	// Logger for engine events.
	Logger *slog.Logger
}

// Engine is the prewarm cache facade. All components share one entry store;
// the engine owns their lifecycles.
type Engine struct {
	config    Config
	logger    *slog.Logger
	collector *telemetry.Collector
	store     *cache.Store
	scheduler *warm.Scheduler
	sweeper   *sweep.Sweeper
	predictor *predict.Predictor
}

// New creates an engine.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Listener == nil {
		cfg.Listener = prewarmcache.NopListener{}
	}

	collector := telemetry.NewCollector(cfg.Instruments)

	store := cache.NewStore(cache.Config{
		HotThreshold:   cfg.HotThreshold,
		MemoryBudgetMB: cfg.MemoryBudgetMB,
		Listener:       cfg.Listener,
		Collector:      collector,
		Logger:         cfg.Logger.With("component", "store"),
	})

	scheduler := warm.NewScheduler(store, warm.Config{
		Strategy:      cfg.Strategy,
		MaxConcurrent: cfg.MaxConcurrentWarms,
		WarmTimeout:   cfg.WarmTimeout,
		WarmFunc:      cfg.WarmFunc,
		Listener:      cfg.Listener,
		Collector:     collector,
		Logger:        cfg.Logger.With("component", "warm"),
	})

	sweeper := sweep.New(store, sweep.Config{
		Expiration:  cfg.Expiration,
		Interval:    cfg.SweepInterval,
		Instruments: cfg.Instruments,
		Logger:      cfg.Logger.With("component", "sweep"),
	})

	predictor := predict.New(store, predict.Config{
		Enabled:       !cfg.DisablePrediction,
		PrefetchCount: cfg.PrefetchCount,
	})

	return &Engine{
		config:    cfg,
		logger:    cfg.Logger,
		collector: collector,
		store:     store,
		scheduler: scheduler,
		sweeper:   sweeper,
		predictor: predictor,
	}
}

// Start launches the background sweeper. It is a no-op when the engine is
// disabled.
func (e *Engine) Start(ctx context.Context) {
	if e.config.Disabled {
		return
	}
	e.sweeper.Start(ctx)
}

// Stop stops the background sweeper and waits for in-flight warms to finish.
func (e *Engine) Stop() {
	if !e.config.Disabled {
		e.sweeper.Stop()
	}
	e.scheduler.Flush()
}

// Register creates cold entries for the definitions, applies the admission
// policy, and starts warming the admitted ones. It returns how many entries
// were created. Registration is a no-op when the engine is disabled.
func (e *Engine) Register(ctx context.Context, defs ...prewarmcache.AnimationDefinition) int {
	if e.config.Disabled {
		return 0
	}
	created := e.store.Register(defs)
	if len(created) > 0 {
		e.scheduler.AdmitNew(ctx, created)
	}
	return len(created)
}

// Get returns a copy of an entry.
func (e *Engine) Get(id string) (prewarmcache.Entry, bool) {
	return e.store.Get(id)
}

// Access returns an entry's payload, counting a hit when the entry is ready.
func (e *Engine) Access(id string) (any, bool) {
	return e.store.Access(id)
}

// Warm warms one entry synchronously. No-op when disabled.
func (e *Engine) Warm(ctx context.Context, id string) {
	if e.config.Disabled {
		return
	}
	e.scheduler.Warm(ctx, id)
}

// WarmNext warms the highest-priority cold entry. No-op when disabled.
func (e *Engine) WarmNext(ctx context.Context) {
	if e.config.Disabled {
		return
	}
	e.scheduler.WarmNext(ctx)
}

// Flush blocks until no warm is queued or in flight.
func (e *Engine) Flush() {
	e.scheduler.Flush()
}

// Predict returns ids likely needed next given the usage context.
func (e *Engine) Predict(pctx prewarmcache.PredictionContext) []string {
	return e.predictor.Predict(pctx)
}

// PredictAndWarm feeds predictions straight into the warm queue and returns
// them. No-op when disabled.
func (e *Engine) PredictAndWarm(ctx context.Context, pctx prewarmcache.PredictionContext) []string {
	predicted := e.predictor.Predict(pctx)
	if e.config.Disabled || len(predicted) == 0 {
		return predicted
	}
	e.scheduler.Enqueue(predicted...)
	e.scheduler.Drain(ctx)
	return predicted
}

// Evict removes one entry.
func (e *Engine) Evict(id string) bool {
	return e.store.Evict(id)
}

// EvictByType removes all entries of a type, returning the count.
func (e *Engine) EvictByType(t prewarmcache.AnimationType) int {
	return e.store.EvictByType(t)
}

// EvictAll removes every entry, returning the count.
func (e *Engine) EvictAll() int {
	return e.store.EvictAll()
}

// MarkHot promotes a warm entry to hot.
func (e *Engine) MarkHot(id string) bool {
	return e.store.MarkHot(id)
}

// MarkCold forces an entry back to cold, reviving errored or expired ones.
func (e *Engine) MarkCold(id string) bool {
	return e.store.MarkCold(id)
}

// Sweep runs one expiration sweep immediately.
func (e *Engine) Sweep(ctx context.Context) sweep.Result {
	return e.sweeper.RunOnce(ctx)
}

// Pending returns the queued warm ids in warm order.
func (e *Engine) Pending() []string {
	return e.scheduler.Pending()
}

// Stats is the engine-level statistics snapshot.
type Stats struct {
	telemetry.Stats
	HitRate      float64 `json:"hit_rate"`
	Entries      int     `json:"entries"`
	UsageMB      float64 `json:"usage_mb"`
	PendingWarms int     `json:"pending_warms"`
}

// Stats returns a snapshot of the collector plus current store state.
func (e *Engine) Stats() Stats {
	snap := e.collector.Snapshot()
	return Stats{
		Stats:        snap,
		HitRate:      snap.HitRate(),
		Entries:      e.store.Len(),
		UsageMB:      e.store.UsageMB(),
		PendingWarms: len(e.scheduler.Pending()),
	}
}

// Reset clears the entry store and the pending queue and zeroes all
// counters. In-flight warms are not interrupted; their completions find no
// entry and are dropped.
func (e *Engine) Reset() {
	e.scheduler.ClearQueue()
	e.store.Clear()
	e.collector.Reset()
	e.logger.Info("engine reset")
}
