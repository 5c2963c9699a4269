// Package predict ranks animations likely to be needed next, based on the
// most recent animation's type and a static transition table.
package predict

import (
	prewarmcache "github.com/wolfeidau/prewarm-cache"
	"github.com/wolfeidau/prewarm-cache/cache"
)

const defaultPrefetchCount = 3

// transitions maps an animation type to the types likely to follow it, in
// ranked order. The table reflects the typical avatar conversation loop:
// idle while waiting, speak/listen exchanges, occasional reactions and
// gestures.
var transitions = map[prewarmcache.AnimationType][]prewarmcache.AnimationType{
	prewarmcache.TypeIdle:       {prewarmcache.TypeSpeak, prewarmcache.TypeListen, prewarmcache.TypeReact},
	prewarmcache.TypeSpeak:      {prewarmcache.TypeListen, prewarmcache.TypeIdle, prewarmcache.TypeGesture},
	prewarmcache.TypeListen:     {prewarmcache.TypeThink, prewarmcache.TypeSpeak, prewarmcache.TypeReact},
	prewarmcache.TypeThink:      {prewarmcache.TypeSpeak, prewarmcache.TypeExpression, prewarmcache.TypeGesture},
	prewarmcache.TypeReact:      {prewarmcache.TypeIdle, prewarmcache.TypeExpression, prewarmcache.TypeSpeak},
	prewarmcache.TypeGesture:    {prewarmcache.TypeSpeak, prewarmcache.TypeIdle},
	prewarmcache.TypeTransition: {prewarmcache.TypeIdle, prewarmcache.TypeSpeak},
	prewarmcache.TypeExpression: {prewarmcache.TypeIdle, prewarmcache.TypeReact},
}

// LikelyNext returns the ranked list of types likely to follow t.
func LikelyNext(t prewarmcache.AnimationType) []prewarmcache.AnimationType {
	return transitions[t]
}

// Config holds predictor configuration.
type Config struct {
	// Enabled turns prediction on. When false, Predict always returns nil.
	Enabled bool

	// PrefetchCount caps how many ids one call predicts. Default: 3.
	PrefetchCount int
}

// Predictor is a read-only view over the entry store. It never mutates
// entries and only ever suggests cold ones; warm, hot, errored, and expired
// entries are never candidates for re-warming.
type Predictor struct {
	store         *cache.Store
	enabled       bool
	prefetchCount int
}

// New creates a predictor over the given store.
func New(store *cache.Store, cfg Config) *Predictor {
	if cfg.PrefetchCount <= 0 {
		cfg.PrefetchCount = defaultPrefetchCount
	}
	return &Predictor{
		store:         store,
		enabled:       cfg.Enabled,
		prefetchCount: cfg.PrefetchCount,
	}
}

// Predict returns ids likely needed next, most likely first. It returns nil
// when prediction is disabled, the context carries no recent animations, or
// the most recent animation is unknown. Only the first recent id is
// consulted: its type selects a row of the transition table, and for each
// likely type the first cold entry of that type (in registration order) is
// suggested, up to the prefetch count.
func (p *Predictor) Predict(pctx prewarmcache.PredictionContext) []string {
	if !p.enabled || len(pctx.RecentAnimations) == 0 {
		return nil
	}

	recent, ok := p.store.Get(pctx.RecentAnimations[0])
	if !ok {
		return nil
	}

	var predicted []string
	for _, t := range transitions[recent.Type] {
		if len(predicted) >= p.prefetchCount {
			break
		}
		if id, ok := p.store.FirstColdOfType(t); ok {
			predicted = append(predicted, id)
		}
	}
	return predicted
}
