package core

// PlaybackClock advances mission progress over wall-clock time at a
// configurable speed multiplier. Progress never leaves [0,1]. One clock
// instance exists per active mission; it is reset to zero on mission entry
// and discarded on exit.
type PlaybackClock struct {
	progress        float64
	speedMultiplier float64
	playing         bool

	// totalDurationSeconds is the wall time a full playback takes at 1x.
	totalDurationSeconds float64

	// completed latches once progress reaches 1.0 during a tick so the
	// controller emits mission-complete exactly once.
	completed bool
}

// NewPlaybackClock constructs a stopped clock at progress 0. A non-positive
// total duration falls back to one second so Tick never divides by zero.
func NewPlaybackClock(totalDurationSeconds float64) *PlaybackClock {
	if totalDurationSeconds <= 0 {
		totalDurationSeconds = 1
	}
	return &PlaybackClock{
		speedMultiplier:      1,
		totalDurationSeconds: totalDurationSeconds,
	}
}

// Progress returns the current playback position in [0,1].
func (c *PlaybackClock) Progress() float64 { return c.progress }

// Playing reports whether the clock is advancing.
func (c *PlaybackClock) Playing() bool { return c.playing }

// Speed returns the current speed multiplier.
func (c *PlaybackClock) Speed() float64 { return c.speedMultiplier }

// Play starts advancement. At progress 1 it is a no-op: the caller must seek
// or reset before replaying.
func (c *PlaybackClock) Play() {
	if c.progress >= 1 {
		return
	}
	c.playing = true
}

// Pause stops advancement; a no-op unless playing.
func (c *PlaybackClock) Pause() {
	c.playing = false
}

// Toggle flips between playing and paused.
func (c *PlaybackClock) Toggle() {
	if c.playing {
		c.Pause()
	} else {
		c.Play()
	}
}

// SeekTo sets progress directly, clamping to [0,1]. NaN and out-of-range
// inputs are normalized, not errors. Seeking works in any state and does not
// change playing/paused. Seeking back below 1 re-arms completion so a later
// arrival at 1 notifies again.
func (c *PlaybackClock) SeekTo(progress float64) {
	c.progress = clamp01(progress)
	if c.progress < 1 {
		c.completed = false
	}
}

// SetSpeed sets the multiplier, effective on the next tick. Any positive
// value is accepted; the discrete 1x/2x/5x/10x cycling lives in the UI.
func (c *PlaybackClock) SetSpeed(multiplier float64) {
	if multiplier <= 0 {
		return
	}
	c.speedMultiplier = multiplier
}

// Tick advances progress by deltaSeconds of wall time when playing. It
// returns true exactly once, on the tick during which progress reaches 1.0;
// the clock then stops.
func (c *PlaybackClock) Tick(deltaSeconds float64) (completed bool) {
	if !c.playing || deltaSeconds <= 0 {
		return false
	}

	c.progress += deltaSeconds * c.speedMultiplier / c.totalDurationSeconds
	if c.progress < 1 {
		return false
	}

	c.progress = 1
	c.playing = false
	if c.completed {
		return false
	}
	c.completed = true
	return true
}
