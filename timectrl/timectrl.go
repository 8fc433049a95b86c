package timectrl

import (
	"sync"
	"time"
)

// Mode describes how the FrameLoop advances.
type Mode int

const (
	// RealTime waits out each frame interval on the wall clock.
	RealTime Mode = iota
	// Accelerated runs frames back to back while still reporting the
	// configured interval as the frame delta. Useful for tests and headless
	// fast playback.
	Accelerated
)

// FrameListener is invoked once per frame with the frame's delta and the
// current wall-clock time.
type FrameListener func(delta time.Duration, now time.Time)

// FrameLoop drives per-frame updates for the engine. All registered listeners
// run synchronously on the loop goroutine, one frame at a time; the engine
// has no other execution context.
type FrameLoop struct {
	mu        sync.Mutex
	Interval  time.Duration
	Mode      Mode
	listeners []FrameListener

	stop     chan struct{}
	stopOnce sync.Once
}

// NewFrameLoop constructs a loop with the given frame interval.
func NewFrameLoop(interval time.Duration, mode Mode) *FrameLoop {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &FrameLoop{
		Interval: interval,
		Mode:     mode,
		stop:     make(chan struct{}),
	}
}

// AddListener registers a callback invoked on every frame. Listeners must be
// registered before Start.
func (fl *FrameLoop) AddListener(fn FrameListener) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.listeners = append(fl.listeners, fn)
}

// Stop ends the loop after the current frame. Repeated calls are no-ops.
func (fl *FrameLoop) Stop() {
	fl.stopOnce.Do(func() { close(fl.stop) })
}

// Start runs the loop for the specified total duration of frame time in a
// separate goroutine (forever when duration is zero). It returns a channel
// that is closed when the loop finishes.
func (fl *FrameLoop) Start(duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		fl.mu.Lock()
		listeners := append([]FrameListener(nil), fl.listeners...)
		fl.mu.Unlock()

		var ticker *time.Ticker
		if fl.Mode == RealTime {
			ticker = time.NewTicker(fl.Interval)
			defer ticker.Stop()
		}

		elapsed := time.Duration(0)
		for {
			if duration > 0 && elapsed >= duration {
				return
			}

			if ticker != nil {
				select {
				case <-fl.stop:
					return
				case <-ticker.C:
				}
			} else {
				select {
				case <-fl.stop:
					return
				default:
				}
			}
			elapsed += fl.Interval

			now := time.Now().UTC()
			for _, fn := range listeners {
				fn(fl.Interval, now)
			}
		}
	}()
	return done
}
