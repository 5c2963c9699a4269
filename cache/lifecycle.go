package cache

import (
	"time"

	prewarmcache "github.com/wolfeidau/prewarm-cache"
)

// Warm lifecycle operations, called by the warming scheduler. The in-flight
// idempotency guard lives in the scheduler; these methods only apply the
// state transitions.

// BeginWarm moves an entry to warming. It returns false when the id is
// unknown, which the scheduler treats as a no-op.
func (s *Store) BeginWarm(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return false
	}
	e.Status = prewarmcache.StatusWarming
	return true
}

// CompleteWarm marks an entry warm and fully ready, recording when and how
// long the warm took. It returns false when the entry was evicted while the
// warm was in flight; the orphaned completion is dropped.
func (s *Store) CompleteWarm(id string, warmedAt time.Time, d time.Duration) (prewarmcache.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return prewarmcache.Entry{}, false
	}
	e.Status = prewarmcache.StatusWarm
	e.FirstFrameReady = true
	e.FullyDecoded = true
	e.WarmedAt = warmedAt
	e.WarmDuration = d
	e.Err = ""
	return *e, true
}

// FailWarm marks an entry as errored with the failure message. Like
// CompleteWarm, it drops the result when the entry no longer exists.
func (s *Store) FailWarm(id string, err error) (prewarmcache.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return prewarmcache.Entry{}, false
	}
	e.Status = prewarmcache.StatusError
	e.FirstFrameReady = false
	e.FullyDecoded = false
	e.Err = err.Error()
	return *e, true
}

// NextCold returns the id of the highest-priority cold entry, breaking ties
// by insertion order. ok is false when no cold entry exists.
func (s *Store) NextCold() (id string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	best := -1
	for _, oid := range s.order {
		e := s.entries[oid]
		if e.Status != prewarmcache.StatusCold {
			continue
		}
		if w := e.Priority.Weight(); w > best {
			best = w
			id = oid
			ok = true
		}
	}
	return id, ok
}

// FirstColdOfType returns the id of the first cold entry of the given type in
// insertion order. Used by the predictor, which only ever suggests cold
// entries.
func (s *Store) FirstColdOfType(t prewarmcache.AnimationType) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, oid := range s.order {
		e := s.entries[oid]
		if e.Type == t && e.Status == prewarmcache.StatusCold {
			return oid, true
		}
	}
	return "", false
}

// ExpireIdle demotes warm entries whose last access is before cutoff to
// expired and returns how many were demoted. Hot entries are never swept;
// they earned retention priority. Nothing is touched when no entry
// qualifies.
func (s *Store) ExpireIdle(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for _, e := range s.entries {
		if e.Status == prewarmcache.StatusWarm && e.LastAccess.Before(cutoff) {
			e.Status = prewarmcache.StatusExpired
			expired++
		}
	}
	return expired
}
