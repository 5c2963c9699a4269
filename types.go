// Package prewarmcache provides the shared types for the animation prewarm
// cache: animation definitions, cache entries and their lifecycle states, and
// the event listener interface the engine notifies on.
package prewarmcache

import "time"

// AnimationType classifies an animation asset by its role in the avatar's
// behaviour. The predictor's transition table is keyed on these.
type AnimationType string

// Known animation types.
const (
	TypeIdle       AnimationType = "idle"
	TypeSpeak      AnimationType = "speak"
	TypeListen     AnimationType = "listen"
	TypeThink      AnimationType = "think"
	TypeReact      AnimationType = "react"
	TypeGesture    AnimationType = "gesture"
	TypeTransition AnimationType = "transition"
	TypeExpression AnimationType = "expression"
)

// Priority controls admission and warm ordering.
type Priority string

// Priorities, highest first.
const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// Weight returns the numeric ordering weight for a priority.
// Unknown values weigh the same as normal.
func (p Priority) Weight() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityLow:
		return 1
	default:
		return 2
	}
}

// Status is the lifecycle state of a cache entry.
//
// Transitions: cold → warming → warm → hot, warming → error on failure, and
// warm → expired via the sweeper. Only MarkCold leaves error or expired.
type Status string

// Entry lifecycle states.
const (
	StatusCold    Status = "cold"
	StatusWarming Status = "warming"
	StatusWarm    Status = "warm"
	StatusHot     Status = "hot"
	StatusExpired Status = "expired"
	StatusError   Status = "error"
)

// Ready reports whether an entry in this state can serve an access as a hit.
func (s Status) Ready() bool {
	return s == StatusWarm || s == StatusHot
}

// Strategy selects the admission policy for newly registered entries.
type Strategy string

// Admission strategies.
const (
	// StrategyAggressive queues every newly registered entry for warming.
	StrategyAggressive Strategy = "aggressive"
	// StrategyBalanced queues critical and high priority entries.
	StrategyBalanced Strategy = "balanced"
	// StrategyConservative queues critical priority entries only.
	StrategyConservative Strategy = "conservative"
	// StrategyManual queues nothing; callers warm explicitly.
	StrategyManual Strategy = "manual"
)

// Admits reports whether the strategy admits an entry of the given priority
// to the warm queue at registration time.
func (s Strategy) Admits(p Priority) bool {
	switch s {
	case StrategyAggressive:
		return true
	case StrategyBalanced:
		return p == PriorityCritical || p == PriorityHigh
	case StrategyConservative:
		return p == PriorityCritical
	default:
		return false
	}
}

// AnimationDefinition describes an animation asset to be tracked by the cache.
// Definitions are immutable inputs; the cache copies what it needs.
type AnimationDefinition struct {
	// ID uniquely identifies the animation. Registering an ID that already
	// exists is a no-op.
	ID string `json:"id"`

	// Type classifies the animation for prediction and bulk eviction.
	Type AnimationType `json:"type"`

	// Priority controls admission and warm ordering. Empty means normal.
	Priority Priority `json:"priority,omitempty"`

	// DurationMs is the animation length in milliseconds. Zero means 1000.
	DurationMs int `json:"duration_ms,omitempty"`

	// Framerate is frames per second. Zero means 30.
	Framerate int `json:"framerate,omitempty"`

	// Data is an opaque payload returned to callers on access. The cache
	// never inspects it.
	Data any `json:"data,omitempty"`
}

// Entry is one tracked animation asset and its cache metadata. Entries are
// owned by the store; methods returning an Entry return a copy.
type Entry struct {
	ID       string        `json:"id"`
	Type     AnimationType `json:"type"`
	Priority Priority      `json:"priority"`
	Status   Status        `json:"status"`

	// SizeBytes is the estimated memory footprint, computed once at
	// registration. It counts toward the memory budget regardless of status.
	SizeBytes int64 `json:"size_bytes"`

	// AccessCount only increases via Access. MarkCold and Reset zero it.
	AccessCount int64 `json:"access_count"`

	// LastAccess is updated on every Access and drives expiration.
	LastAccess time.Time `json:"last_access"`

	// WarmedAt and WarmDuration record the most recent successful warm.
	WarmedAt     time.Time     `json:"warmed_at,omitzero"`
	WarmDuration time.Duration `json:"warm_duration,omitempty"`

	// FirstFrameReady and FullyDecoded describe partial readiness. Both are
	// false in cold and error, both true once warm.
	FirstFrameReady bool `json:"first_frame_ready"`
	FullyDecoded    bool `json:"fully_decoded"`

	// Err is the most recent warm failure message, empty unless Status is
	// error.
	Err string `json:"error,omitempty"`

	// Data is the opaque payload from the definition.
	Data any `json:"-"`
}

// PredictionContext is a snapshot of usage context supplied by the caller
// when asking for predictions.
type PredictionContext struct {
	CurrentState      string   `json:"current_state,omitempty"`
	UserActivity      string   `json:"user_activity,omitempty"`
	ConversationPhase string   `json:"conversation_phase,omitempty"`
	RecentAnimations  []string `json:"recent_animations"`
}
