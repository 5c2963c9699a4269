package prewarmcache

// Listener receives engine notifications. Callbacks are invoked synchronously
// from the operation that caused them, so implementations must return
// quickly; the engine never retries or buffers a notification.
//
// Entries are passed by value so listeners cannot mutate store state.
type Listener interface {
	// AnimationWarmed fires after a warm completes successfully.
	AnimationWarmed(e Entry)

	// AnimationAccessed fires on every access of a known entry, hit or miss.
	AnimationAccessed(e Entry)

	// AnimationEvicted fires once per entry removed by an eviction call.
	AnimationEvicted(id string)

	// MemoryWarning fires once when usage crosses 90% of the configured
	// budget. It re-arms when usage drops back under the threshold.
	MemoryWarning(usageMB, budgetMB float64)

	// WarmComplete fires once per drain cycle, when the pending queue and
	// the in-flight set both become empty.
	WarmComplete()

	// WarmError fires when a warm operation fails.
	WarmError(id string, err error)
}

// NopListener is a Listener that ignores every event. Embed it to implement
// only the callbacks you care about.
type NopListener struct{}

func (NopListener) AnimationWarmed(Entry)      {}
func (NopListener) AnimationAccessed(Entry)    {}
func (NopListener) AnimationEvicted(string)    {}
func (NopListener) MemoryWarning(_, _ float64) {}
func (NopListener) WarmComplete()              {}
func (NopListener) WarmError(string, error)    {}

var _ Listener = NopListener{}
