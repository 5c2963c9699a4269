// Package sweep provides the periodic expiration sweeper: it demotes warm
// entries that have not been accessed within the expiration window to
// expired.
package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wolfeidau/prewarm-cache/cache"
	"github.com/wolfeidau/prewarm-cache/telemetry"
)

// Config holds sweeper configuration.
type Config struct {
	// Expiration is how long a warm entry may go unaccessed before a sweep
	// demotes it to expired. Default is 5 minutes.
	Expiration time.Duration

	// Interval is how often sweeps run. Default is 30 seconds.
	Interval time.Duration

	// Instruments receives per-sweep metrics. Optional.
	Instruments *telemetry.Instruments

	// Logger for sweep events.
	Logger *slog.Logger
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Expiration: 5 * time.Minute,
		Interval:   30 * time.Second,
		Logger:     slog.Default(),
	}
}

// Sweeper runs expiration sweeps against the entry store on a fixed period.
// Hot entries are never swept; only warm entries age out.
type Sweeper struct {
	config Config
	store  *cache.Store
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	running bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a sweeper over the given store.
func New(store *cache.Store, cfg Config) *Sweeper {
	if cfg.Expiration <= 0 {
		cfg.Expiration = 5 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Sweeper{
		config: cfg,
		store:  store,
		logger: cfg.Logger,
		now:    time.Now,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins background sweeps.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.run(ctx)
}

// Stop stops background sweeps and waits for the loop to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// Result contains the results of one sweep.
type Result struct {
	Expired  int
	Duration time.Duration
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) Result {
	return s.runOnce(ctx)
}

func (s *Sweeper) runOnce(ctx context.Context) Result {
	start := s.now()
	cutoff := start.Add(-s.config.Expiration)

	expired := s.store.ExpireIdle(cutoff)

	result := Result{
		Expired:  expired,
		Duration: s.now().Sub(start),
	}

	s.config.Instruments.RecordSweep(ctx, result.Expired, result.Duration)

	if result.Expired > 0 {
		s.logger.Info("sweep complete",
			"expired", result.Expired,
			"duration", result.Duration,
		)
	} else {
		s.logger.Debug("sweep complete, nothing to expire")
	}

	return result
}
