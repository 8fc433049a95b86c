package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/orreryworks/mission-simulator/internal/logging"
	"github.com/orreryworks/mission-simulator/internal/observability"
	"github.com/orreryworks/mission-simulator/kb"
	"github.com/orreryworks/mission-simulator/model"
)

// SceneUpdater receives computed body positions once per frame. Repositioning
// meshes is the scene's responsibility; the controller only supplies
// positions.
type SceneUpdater interface {
	UpdateBodyPosition(key string, pos Vec3) error
}

// CameraRig receives camera-follow requests while a mission is playing.
type CameraRig interface {
	Follow(position, lookAt Vec3)
}

// MissionListener observes playback. OnProgress fires every frame while a
// mission is active; OnWaypointReached fires once per forward crossing of a
// waypoint (and may re-fire after a backward seek); OnMissionComplete fires
// exactly once when progress reaches 1.0.
type MissionListener interface {
	OnProgress(progress float64, date time.Time, waypointIndex int)
	OnWaypointReached(index int, wp model.Waypoint)
	OnMissionComplete()
}

// cameraFollowDistance offsets the rig from the body it is looking at, in
// scene units.
const cameraFollowDistance = 12.0

// MissionController composes the playback clock, the mission timeline, and
// the ephemeris. It owns at most one timeline and one clock at a time:
// entering a new mission replaces the active one, never stacks. All methods
// are driven from the host frame loop on a single goroutine.
type MissionController struct {
	catalog   *kb.Catalog
	ephemeris *Ephemeris

	scene   SceneUpdater
	camera  CameraRig
	log     logging.Logger
	metrics *observability.EngineCollector

	listeners []MissionListener

	playbackSeconds float64

	// Per-mission state, nil/zero while inactive.
	active            bool
	timeline          *MissionTimeline
	clock             *PlaybackClock
	lastProgress      float64
	lastNotifiedIndex int
}

// ControllerOption configures a MissionController.
type ControllerOption func(*MissionController)

// WithSceneUpdater wires the external scene representation.
func WithSceneUpdater(s SceneUpdater) ControllerOption {
	return func(mc *MissionController) { mc.scene = s }
}

// WithCameraRig wires the external camera rig.
func WithCameraRig(c CameraRig) ControllerOption {
	return func(mc *MissionController) { mc.camera = c }
}

// WithLogger sets the structured logger. Defaults to a noop logger.
func WithLogger(l logging.Logger) ControllerOption {
	return func(mc *MissionController) { mc.log = l }
}

// WithMetrics wires the Prometheus collector.
func WithMetrics(m *observability.EngineCollector) ControllerOption {
	return func(mc *MissionController) { mc.metrics = m }
}

// WithPlaybackSeconds sets the wall-clock duration of a full playback at 1x
// speed. Defaults to 30 seconds.
func WithPlaybackSeconds(seconds float64) ControllerOption {
	return func(mc *MissionController) { mc.playbackSeconds = seconds }
}

// NewMissionController constructs an inactive controller over the catalog and
// provider.
func NewMissionController(catalog *kb.Catalog, ephemeris *Ephemeris, opts ...ControllerOption) *MissionController {
	mc := &MissionController{
		catalog:         catalog,
		ephemeris:       ephemeris,
		log:             logging.Noop(),
		playbackSeconds: 30,
	}
	for _, opt := range opts {
		opt(mc)
	}
	return mc
}

// AddListener registers a playback listener. Registration is additive, so
// multiple call sites never overwrite each other.
func (mc *MissionController) AddListener(l MissionListener) {
	if l == nil {
		return
	}
	mc.listeners = append(mc.listeners, l)
}

// Active reports whether a mission is currently loaded.
func (mc *MissionController) Active() bool { return mc.active }

// Mission returns the active mission, or nil while inactive.
func (mc *MissionController) Mission() *model.Mission {
	if !mc.active {
		return nil
	}
	return mc.timeline.Mission()
}

// Progress returns the current playback position, or 0 while inactive.
func (mc *MissionController) Progress() float64 {
	if !mc.active {
		return 0
	}
	return mc.clock.Progress()
}

// CurrentDate returns the simulated date at the current playback position.
// The zero time is returned while inactive.
func (mc *MissionController) CurrentDate() time.Time {
	if !mc.active {
		return time.Time{}
	}
	return mc.timeline.DateAtProgress(mc.clock.Progress())
}

// EnterMission validates and activates the named mission. All configuration
// errors (unknown mission, too few waypoints, non-monotonic dates, waypoints
// referencing bodies the catalog does not know) surface here; on failure the
// previously active mission, if any, is left untouched. On success the
// controller performs one synchronous sync to the mission's initial date so
// bodies are not at stale positions before the first frame.
func (mc *MissionController) EnterMission(ctx context.Context, missionID string) error {
	ctx, span := otel.Tracer("mission-simulator/core").Start(ctx, "EnterMission")
	span.SetAttributes(attribute.String("mission.id", missionID))
	defer span.End()

	mission, err := mc.catalog.Mission(missionID)
	if err != nil {
		mc.recordEntry(missionID, "rejected")
		return fmt.Errorf("enter mission: %w", err)
	}

	timeline, err := NewMissionTimeline(mission)
	if err != nil {
		mc.recordEntry(missionID, "rejected")
		return fmt.Errorf("enter mission: %w", err)
	}

	for i, wp := range mission.Waypoints {
		if wp.BodyKey != "" && mc.catalog.Body(wp.BodyKey) == nil {
			mc.recordEntry(missionID, "rejected")
			return fmt.Errorf("enter mission: waypoint %d of %q references unknown body %q: %w",
				i, missionID, wp.BodyKey, kb.ErrBodyNotFound)
		}
	}

	// Prove every catalog body is positionable at the initial date before
	// replacing any prior state.
	startDate := timeline.DateAtProgress(0)
	positions, err := mc.computePositions(startDate)
	if err != nil {
		mc.recordEntry(missionID, "rejected")
		return fmt.Errorf("enter mission: %w", err)
	}

	if mc.active {
		mc.ExitMission()
	}

	mc.timeline = timeline
	mc.clock = NewPlaybackClock(mc.playbackSeconds)
	mc.lastProgress = 0
	mc.lastNotifiedIndex = -1
	mc.active = true

	mc.pushPositions(positions)
	mc.followCamera(0, startDate, positions)

	mc.recordEntry(missionID, "accepted")
	if mc.metrics != nil {
		mc.metrics.SetMissionActive(true)
		mc.metrics.SetTrackedBodies(len(positions))
	}
	mc.log.Info(ctx, "mission entered",
		logging.String("mission_id", missionID),
		logging.Int("waypoints", len(mission.Waypoints)),
		logging.Float("span_days", timeline.SpanDays()),
		logging.String("start_date", startDate.Format(time.RFC3339)),
	)
	return nil
}

// ExitMission deactivates playback and disposes the timeline and clock. It is
// safe to call at any point, including from listeners mid-update; once
// deactivated, no further notification fires. Body positions are not rewound;
// ambient animation takes over from wherever playback left them.
func (mc *MissionController) ExitMission() {
	if !mc.active {
		return
	}
	missionID := mc.timeline.Mission().ID
	mc.active = false
	mc.timeline = nil
	mc.clock = nil
	if mc.metrics != nil {
		mc.metrics.SetMissionActive(false)
	}
	mc.log.Info(context.Background(), "mission exited", logging.String("mission_id", missionID))
}

// Play starts playback; a no-op while inactive or at progress 1.
func (mc *MissionController) Play() {
	if mc.active {
		mc.clock.Play()
	}
}

// Pause suspends playback; a no-op unless playing.
func (mc *MissionController) Pause() {
	if mc.active {
		mc.clock.Pause()
	}
}

// Toggle flips between playing and paused.
func (mc *MissionController) Toggle() {
	if mc.active {
		mc.clock.Toggle()
	}
}

// SeekTo jumps playback to the given progress, clamped to [0,1]. Seeking
// backward re-arms waypoint crossings so they re-fire on the next forward
// pass.
func (mc *MissionController) SeekTo(progress float64) {
	if !mc.active {
		return
	}
	mc.clock.SeekTo(progress)
	if mc.clock.Progress() < mc.lastProgress {
		mc.lastNotifiedIndex = -1
	}
	mc.lastProgress = mc.clock.Progress()
}

// SetSpeed sets the playback speed multiplier, effective on the next tick.
func (mc *MissionController) SetSpeed(multiplier float64) {
	if mc.active {
		mc.clock.SetSpeed(multiplier)
	}
}

// Update advances playback by one frame. It is invoked from the host frame
// loop; the order below is load-bearing: clock advancement happens before
// date resolution, which happens before position computation, which happens
// before notification dispatch. The active flag is rechecked between steps so
// an ExitMission from a listener deactivates cleanly with no partial
// notifications.
func (mc *MissionController) Update(delta time.Duration) {
	if !mc.active {
		return
	}
	start := time.Now()

	completed := mc.clock.Tick(delta.Seconds())
	progress := mc.clock.Progress()
	date := mc.timeline.DateAtProgress(progress)

	positions, err := mc.computePositions(date)
	if err != nil {
		// Unreachable after EnterMission validation; log rather than crash
		// the host render loop.
		mc.log.Error(context.Background(), "position computation failed",
			logging.String("error", err.Error()))
		return
	}
	mc.pushPositions(positions)

	idx := mc.timeline.WaypointIndexAt(progress)
	mc.followCamera(progress, date, positions)

	mission := mc.timeline.Mission()
	for _, wpIdx := range mc.waypointsToNotify(idx, progress) {
		if !mc.active {
			return
		}
		if mc.metrics != nil {
			mc.metrics.WaypointReached(mission.ID)
		}
		for _, l := range mc.listeners {
			l.OnWaypointReached(wpIdx, mission.Waypoints[wpIdx])
			if !mc.active {
				return
			}
		}
		mc.lastNotifiedIndex = wpIdx
	}

	for _, l := range mc.listeners {
		l.OnProgress(progress, date, idx)
		if !mc.active {
			return
		}
	}

	if completed {
		if mc.metrics != nil {
			mc.metrics.MissionCompleted(mission.ID)
		}
		mc.log.Info(context.Background(), "mission complete", logging.String("mission_id", mission.ID))
		for _, l := range mc.listeners {
			l.OnMissionComplete()
			if !mc.active {
				return
			}
		}
	}

	mc.lastProgress = progress
	if mc.metrics != nil {
		mc.metrics.ObserveFrame(time.Since(start))
	}
}

// waypointsToNotify merges interval crossings over (lastProgress, progress]
// with the epsilon match, so both a large tick that jumps a waypoint's window
// and a dwell inside one produce exactly one notification per forward pass.
// The result is deduplicated and sorted ascending: Update advances
// lastNotifiedIndex per notification, so the slice order must guarantee the
// index ends at the highest waypoint fired.
func (mc *MissionController) waypointsToNotify(epsilonIdx int, progress float64) []int {
	crossed := mc.timeline.WaypointsCrossed(mc.lastProgress, progress)

	// The departure waypoint sits exactly on the open left edge of the first
	// crossing interval; include it on the first forward pass from 0.
	if mc.lastNotifiedIndex < 0 && mc.lastProgress == 0 {
		crossed = append(crossed, 0)
	}
	if epsilonIdx >= 0 {
		crossed = append(crossed, epsilonIdx)
	}

	// Drop anything at or before the last notified index. A backward seek
	// resets lastNotifiedIndex to -1, re-arming every waypoint.
	out := crossed[:0]
	for _, idx := range crossed {
		if idx <= mc.lastNotifiedIndex {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen == idx {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}

type bodyPosition struct {
	key string
	pos Vec3
}

// computePositions evaluates every catalog body at the given date without
// touching the scene, so validation and the commit stay separate.
func (mc *MissionController) computePositions(date time.Time) ([]bodyPosition, error) {
	keys := mc.ephemeris.BodyKeys()
	out := make([]bodyPosition, 0, len(keys))
	for _, key := range keys {
		pos, err := mc.ephemeris.PositionAt(key, date)
		if err != nil {
			return nil, err
		}
		out = append(out, bodyPosition{key: key, pos: pos})
	}
	return out, nil
}

func (mc *MissionController) pushPositions(positions []bodyPosition) {
	if mc.scene == nil {
		return
	}
	for _, bp := range positions {
		if err := mc.scene.UpdateBodyPosition(bp.key, bp.pos); err != nil {
			mc.log.Warn(context.Background(), "scene update failed",
				logging.String("body", bp.key),
				logging.String("error", err.Error()))
		}
	}
}

// followCamera points the rig at the body named by the most recently passed
// waypoint that has one, offset away from the origin so the body stays in
// view against the Sun.
func (mc *MissionController) followCamera(progress float64, date time.Time, positions []bodyPosition) {
	if mc.camera == nil {
		return
	}

	mission := mc.timeline.Mission()
	marks := mc.timeline.WaypointProgressPositions()
	focusKey := ""
	for i, wp := range mission.Waypoints {
		if marks[i] > progress {
			break
		}
		if wp.BodyKey != "" {
			focusKey = wp.BodyKey
		}
	}
	if focusKey == "" {
		return
	}

	var look Vec3
	for _, bp := range positions {
		if bp.key == focusKey {
			look = bp.pos
			break
		}
	}
	away := look.Normalized().Scale(cameraFollowDistance)
	if away == (Vec3{}) {
		away = Vec3{X: 0, Y: cameraFollowDistance, Z: 0}
	}
	mc.camera.Follow(look.Add(away), look)
}

func (mc *MissionController) recordEntry(missionID, outcome string) {
	if mc.metrics != nil {
		mc.metrics.MissionEntry(missionID, outcome)
	}
}
