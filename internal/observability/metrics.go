package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineCollector bundles Prometheus metrics for the mission playback engine
// and provides a ready-to-serve /metrics handler.
type EngineCollector struct {
	gatherer prometheus.Gatherer

	FramesTotal   prometheus.Counter
	FrameDuration prometheus.Histogram

	MissionEntries    *prometheus.CounterVec
	WaypointEvents    *prometheus.CounterVec
	MissionsCompleted *prometheus.CounterVec

	MissionActive prometheus.Gauge
	TrackedBodies prometheus.Gauge
}

// NewEngineCollector registers engine Prometheus metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewEngineCollector(reg prometheus.Registerer) (*EngineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	frames, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_frames_total",
		Help: "Total number of frame updates processed while a mission was active.",
	}), "engine_frames_total")
	if err != nil {
		return nil, err
	}

	frameDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_frame_duration_seconds",
		Help:    "Engine per-frame update duration in seconds.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
	})
	frameDuration, err = registerHistogram(reg, frameDuration, "engine_frame_duration_seconds")
	if err != nil {
		return nil, err
	}

	entries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_mission_entries_total",
		Help: "Mission entry attempts, labeled by mission ID and outcome.",
	}, []string{"mission", "outcome"})
	entries, err = registerCounterVec(reg, entries, "engine_mission_entries_total")
	if err != nil {
		return nil, err
	}

	waypoints := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_waypoint_events_total",
		Help: "Waypoint-reached notifications dispatched, labeled by mission ID.",
	}, []string{"mission"})
	waypoints, err = registerCounterVec(reg, waypoints, "engine_waypoint_events_total")
	if err != nil {
		return nil, err
	}

	completed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_missions_completed_total",
		Help: "Mission-complete notifications dispatched, labeled by mission ID.",
	}, []string{"mission"})
	completed, err = registerCounterVec(reg, completed, "engine_missions_completed_total")
	if err != nil {
		return nil, err
	}

	active, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "engine_mission_active",
		Help: "1 while a mission is loaded, 0 otherwise.",
	}), "engine_mission_active")
	if err != nil {
		return nil, err
	}
	bodies, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "engine_tracked_bodies",
		Help: "Number of bodies repositioned each frame.",
	}), "engine_tracked_bodies")
	if err != nil {
		return nil, err
	}

	return &EngineCollector{
		gatherer:          gatherer,
		FramesTotal:       frames,
		FrameDuration:     frameDuration,
		MissionEntries:    entries,
		WaypointEvents:    waypoints,
		MissionsCompleted: completed,
		MissionActive:     active,
		TrackedBodies:     bodies,
	}, nil
}

// ObserveFrame records one engine frame update.
func (c *EngineCollector) ObserveFrame(d time.Duration) {
	if c == nil {
		return
	}
	if c.FramesTotal != nil {
		c.FramesTotal.Inc()
	}
	if c.FrameDuration != nil {
		c.FrameDuration.Observe(d.Seconds())
	}
}

// MissionEntry records a mission entry attempt with its outcome
// ("accepted" or "rejected").
func (c *EngineCollector) MissionEntry(mission, outcome string) {
	if c == nil || c.MissionEntries == nil {
		return
	}
	c.MissionEntries.WithLabelValues(mission, outcome).Inc()
}

// WaypointReached records one waypoint-reached notification.
func (c *EngineCollector) WaypointReached(mission string) {
	if c == nil || c.WaypointEvents == nil {
		return
	}
	c.WaypointEvents.WithLabelValues(mission).Inc()
}

// MissionCompleted records one mission-complete notification.
func (c *EngineCollector) MissionCompleted(mission string) {
	if c == nil || c.MissionsCompleted == nil {
		return
	}
	c.MissionsCompleted.WithLabelValues(mission).Inc()
}

// SetMissionActive drives the active-mission gauge.
func (c *EngineCollector) SetMissionActive(active bool) {
	if c == nil || c.MissionActive == nil {
		return
	}
	if active {
		c.MissionActive.Set(1)
	} else {
		c.MissionActive.Set(0)
	}
}

// SetTrackedBodies drives the tracked-bodies gauge.
func (c *EngineCollector) SetTrackedBodies(n int) {
	if c == nil || c.TrackedBodies == nil {
		return
	}
	c.TrackedBodies.Set(float64(n))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *EngineCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
