// Package cache implements the entry store for the animation prewarm cache.
// The store owns every cache entry and is the single source of truth for the
// warming scheduler, the expiration sweeper, and the predictor.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	prewarmcache "github.com/wolfeidau/prewarm-cache"
	"github.com/wolfeidau/prewarm-cache/telemetry"
)

const (
	defaultHotThreshold   = 3
	defaultMemoryBudgetMB = 50

	// memoryWarnFraction is the share of the budget at which the one-shot
	// memory warning fires.
	memoryWarnFraction = 0.9
)

// Config holds store configuration.
type Config struct {
	// HotThreshold is the access count at which a warm entry is promoted to
	// hot. Default: 3.
	HotThreshold int64

	// MemoryBudgetMB is the advisory memory budget. Crossing 90% of it fires
	// a one-shot memory warning; the store never evicts on its own.
	// Default: 50.
	MemoryBudgetMB float64

	// Listener receives store events. Nil means no notifications.
	Listener prewarmcache.Listener

	// Collector receives hit/miss/eviction/memory metrics. Nil disables
	// metric recording.
	Collector *telemetry.Collector

	// Logger for store events.
	Logger *slog.Logger
}

// Store owns the id → entry map and its invariants: ids are unique, an
// entry's size is charged from registration to eviction regardless of status,
// and every mutation happens under the store mutex.
type Store struct {
	listener  prewarmcache.Listener
	collector *telemetry.Collector
	logger    *slog.Logger
	now       func() time.Time

	hotThreshold int64
	budgetMB     float64

	mu         sync.Mutex
	entries    map[string]*prewarmcache.Entry
	order      []string // insertion order, for deterministic cold selection
	usageBytes int64
	warned     bool
}

// NewStore creates an empty store.
func NewStore(cfg Config) *Store {
	if cfg.HotThreshold <= 0 {
		cfg.HotThreshold = defaultHotThreshold
	}
	if cfg.MemoryBudgetMB <= 0 {
		cfg.MemoryBudgetMB = defaultMemoryBudgetMB
	}
	if cfg.Listener == nil {
		cfg.Listener = prewarmcache.NopListener{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Store{
		listener:     cfg.Listener,
		collector:    cfg.Collector,
		logger:       cfg.Logger,
		now:          time.Now,
		hotThreshold: cfg.HotThreshold,
		budgetMB:     cfg.MemoryBudgetMB,
		entries:      make(map[string]*prewarmcache.Entry),
	}
}

// Register creates a cold entry for each definition whose id is not already
// present and returns the ids that were created, in input order. Existing
// entries are left untouched.
func (s *Store) Register(defs []prewarmcache.AnimationDefinition) []string {
	s.mu.Lock()

	var created []string
	for _, def := range defs {
		if _, ok := s.entries[def.ID]; ok {
			continue
		}

		priority := def.Priority
		if priority == "" {
			priority = prewarmcache.PriorityNormal
		}

		e := &prewarmcache.Entry{
			ID:         def.ID,
			Type:       def.Type,
			Priority:   priority,
			Status:     prewarmcache.StatusCold,
			SizeBytes:  prewarmcache.EstimateSize(def.DurationMs, def.Framerate),
			LastAccess: s.now(),
			Data:       def.Data,
		}
		s.entries[def.ID] = e
		s.order = append(s.order, def.ID)
		s.usageBytes += e.SizeBytes
		created = append(created, def.ID)
	}

	warn, usageMB := s.checkBudgetLocked()
	s.mu.Unlock()

	if len(created) > 0 {
		s.logger.Debug("registered animations",
			"created", len(created),
			"skipped", len(defs)-len(created),
			"usage_mb", usageMB,
		)
	}
	if warn {
		s.listener.MemoryWarning(usageMB, s.budgetMB)
	}
	return created
}

// Get returns a copy of the entry, without mutating it.
func (s *Store) Get(id string) (prewarmcache.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return prewarmcache.Entry{}, false
	}
	return *e, true
}

// Access looks up an entry's payload, counting a hit when the entry is warm
// or hot and a miss otherwise (including when the id is unknown). A found
// entry has its access count and last access time updated, and is promoted
// to hot once the count reaches the hot threshold while warm or hot.
func (s *Store) Access(id string) (any, bool) {
	start := time.Now()

	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		s.collector.RecordAccess(context.Background(), false, time.Since(start))
		return nil, false
	}

	e.AccessCount++
	e.LastAccess = s.now()

	hit := e.Status.Ready()
	if hit && e.AccessCount >= s.hotThreshold {
		e.Status = prewarmcache.StatusHot
	}
	snapshot := *e
	s.mu.Unlock()

	s.collector.RecordAccess(context.Background(), hit, time.Since(start))
	s.listener.AnimationAccessed(snapshot)
	return snapshot.Data, hit
}

// MarkHot promotes a warm entry to hot. Entries in any other state are left
// untouched; hot promotion never revives or pre-empts the warm lifecycle.
func (s *Store) MarkHot(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || !e.Status.Ready() {
		return false
	}
	e.Status = prewarmcache.StatusHot
	return true
}

// MarkCold forces an entry back to cold and clears its readiness flags,
// whatever its prior state. This is the only way an error or expired entry
// re-enters the warmable pool.
func (s *Store) MarkCold(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return false
	}
	e.Status = prewarmcache.StatusCold
	e.FirstFrameReady = false
	e.FullyDecoded = false
	e.AccessCount = 0
	e.Err = ""
	return true
}

// Evict removes the entry with the given id. Evicting an unknown id changes
// nothing.
func (s *Store) Evict(id string) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.removeLocked(id, e)
	s.checkBudgetLocked()
	s.mu.Unlock()

	s.collector.RecordEvictions(context.Background(), 1)
	s.listener.AnimationEvicted(id)
	return true
}

// EvictByType removes every entry of the given type and returns how many
// were removed.
func (s *Store) EvictByType(t prewarmcache.AnimationType) int {
	s.mu.Lock()
	var removed []string
	for id, e := range s.entries {
		if e.Type == t {
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		s.removeLocked(id, s.entries[id])
	}
	s.checkBudgetLocked()
	s.mu.Unlock()

	s.collector.RecordEvictions(context.Background(), len(removed))
	for _, id := range removed {
		s.listener.AnimationEvicted(id)
	}
	return len(removed)
}

// EvictAll removes every entry and returns how many were removed.
func (s *Store) EvictAll() int {
	s.mu.Lock()
	removed := make([]string, len(s.order))
	copy(removed, s.order)
	s.entries = make(map[string]*prewarmcache.Entry)
	s.order = s.order[:0]
	s.usageBytes = 0
	s.checkBudgetLocked()
	s.mu.Unlock()

	s.collector.RecordEvictions(context.Background(), len(removed))
	for _, id := range removed {
		s.listener.AnimationEvicted(id)
	}
	return len(removed)
}

// Clear drops every entry without emitting eviction events or counting
// evictions. Used by Reset, which zeroes the metrics anyway.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*prewarmcache.Entry)
	s.order = s.order[:0]
	s.usageBytes = 0
	s.warned = false
}

func (s *Store) removeLocked(id string, e *prewarmcache.Entry) {
	delete(s.entries, id)
	s.usageBytes -= e.SizeBytes
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of tracked entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// UsageBytes returns the sum of SizeBytes over all entries, regardless of
// status. Only eviction reduces it.
func (s *Store) UsageBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usageBytes
}

// UsageMB returns UsageBytes expressed in MiB.
func (s *Store) UsageMB() float64 {
	return float64(s.UsageBytes()) / (1024 * 1024)
}

// Snapshot returns a copy of every entry in insertion order.
func (s *Store) Snapshot() []prewarmcache.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]prewarmcache.Entry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.entries[id])
	}
	return out
}

// checkBudgetLocked records current usage and decides whether the one-shot
// memory warning should fire. The warning re-arms once usage falls back
// under the threshold.
func (s *Store) checkBudgetLocked() (warn bool, usageMB float64) {
	usageMB = float64(s.usageBytes) / (1024 * 1024)
	s.collector.ObserveMemory(context.Background(), usageMB)

	threshold := s.budgetMB * memoryWarnFraction
	switch {
	case usageMB >= threshold && !s.warned:
		s.warned = true
		s.logger.Warn("memory budget pressure",
			"usage_mb", usageMB,
			"budget_mb", s.budgetMB,
		)
		return true, usageMB
	case usageMB < threshold:
		s.warned = false
	}
	return false, usageMB
}
