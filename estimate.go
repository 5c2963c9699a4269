package prewarmcache

// Defaults applied by EstimateSize when a definition omits duration or
// framerate.
const (
	DefaultDurationMs = 1000
	DefaultFramerate  = 30

	// bytesPerFrame is the assumed decoded footprint of one frame.
	bytesPerFrame = 10 * 1024
)

// EstimateSize computes the memory footprint of an animation from its
// declared duration and framerate: ceil(frames) * 10KiB. The result is a
// worst-case reservation, charged from registration rather than from warm.
func EstimateSize(durationMs, framerate int) int64 {
	if durationMs <= 0 {
		durationMs = DefaultDurationMs
	}
	if framerate <= 0 {
		framerate = DefaultFramerate
	}
	frames := (int64(durationMs)*int64(framerate) + 999) / 1000
	return frames * bytesPerFrame
}
