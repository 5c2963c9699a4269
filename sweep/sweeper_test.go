package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	prewarmcache "github.com/wolfeidau/prewarm-cache"
	"github.com/wolfeidau/prewarm-cache/cache"
)

func seedStore(t *testing.T) *cache.Store {
	t.Helper()
	store := cache.NewStore(cache.Config{})
	store.Register([]prewarmcache.AnimationDefinition{
		{ID: "warm-idle", Type: prewarmcache.TypeIdle},
		{ID: "hot-speak", Type: prewarmcache.TypeSpeak},
		{ID: "cold-listen", Type: prewarmcache.TypeListen},
	})
	store.CompleteWarm("warm-idle", time.Now(), time.Millisecond)
	store.CompleteWarm("hot-speak", time.Now(), time.Millisecond)
	store.MarkHot("hot-speak")
	return store
}

func TestRunOnceExpiresIdleWarmEntries(t *testing.T) {
	store := seedStore(t)

	s := New(store, Config{Expiration: 5 * time.Minute})
	// Pretend an hour has passed since the entries were last touched.
	s.now = func() time.Time { return time.Now().Add(time.Hour) }

	result := s.RunOnce(context.Background())
	require.Equal(t, 1, result.Expired)

	e, _ := store.Get("warm-idle")
	require.Equal(t, prewarmcache.StatusExpired, e.Status)

	e, _ = store.Get("hot-speak")
	require.Equal(t, prewarmcache.StatusHot, e.Status)

	e, _ = store.Get("cold-listen")
	require.Equal(t, prewarmcache.StatusCold, e.Status)
}

func TestRunOnceNothingToExpire(t *testing.T) {
	store := seedStore(t)

	s := New(store, Config{Expiration: 5 * time.Minute})
	result := s.RunOnce(context.Background())
	require.Equal(t, 0, result.Expired)

	e, _ := store.Get("warm-idle")
	require.Equal(t, prewarmcache.StatusWarm, e.Status)
}

func TestStartStop(t *testing.T) {
	store := seedStore(t)

	s := New(store, Config{Expiration: 5 * time.Minute, Interval: 5 * time.Millisecond})
	s.now = func() time.Time { return time.Now().Add(time.Hour) }

	s.Start(context.Background())
	// Starting twice is a no-op.
	s.Start(context.Background())

	require.Eventually(t, func() bool {
		e, _ := store.Get("warm-idle")
		return e.Status == prewarmcache.StatusExpired
	}, time.Second, time.Millisecond)

	s.Stop()
	// Stop is idempotent and a stopped sweeper never restarts.
	s.Stop()
	s.Start(context.Background())
}
