package core

import (
	"context"
	"testing"
	"time"

	"github.com/orreryworks/mission-simulator/model"
)

type capturingScene struct {
	positions map[string]Vec3
	calls     int
}

func (s *capturingScene) UpdateBodyPosition(key string, pos Vec3) error {
	if s.positions == nil {
		s.positions = make(map[string]Vec3)
	}
	s.positions[key] = pos
	s.calls++
	return nil
}

type capturingCamera struct {
	follows int
	lookAt  Vec3
}

func (c *capturingCamera) Follow(position, lookAt Vec3) {
	c.follows++
	c.lookAt = lookAt
}

type recordingListener struct {
	progress  []float64
	dates     []time.Time
	waypoints []int
	completes int

	// onWaypoint, when set, runs inside the waypoint notification. Used to
	// exercise reentrant ExitMission.
	onWaypoint func(index int)
}

func (r *recordingListener) OnProgress(progress float64, date time.Time, waypointIndex int) {
	r.progress = append(r.progress, progress)
	r.dates = append(r.dates, date)
}

func (r *recordingListener) OnWaypointReached(index int, wp model.Waypoint) {
	r.waypoints = append(r.waypoints, index)
	if r.onWaypoint != nil {
		r.onWaypoint(index)
	}
}

func (r *recordingListener) OnMissionComplete() {
	r.completes++
}

func controllerFixture(t *testing.T, opts ...ControllerOption) (*MissionController, *capturingScene, *recordingListener) {
	t.Helper()
	catalog := testCatalog(t)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mission := &model.Mission{
		ID: "transfer", Name: "Transfer", Color: "#ff8800",
		Waypoints: []model.Waypoint{
			{Date: start, Label: "Departure", BodyKey: "earth"},
			{Date: start.AddDate(0, 0, 10), Label: "Cruise"},
			{Date: start.AddDate(0, 0, 30), Label: "Arrival", BodyKey: "mars"},
		},
	}
	if err := catalog.AddMission(mission); err != nil {
		t.Fatalf("AddMission: %v", err)
	}

	scene := &capturingScene{}
	listener := &recordingListener{}
	opts = append([]ControllerOption{
		WithSceneUpdater(scene),
		WithPlaybackSeconds(30),
	}, opts...)
	mc := NewMissionController(catalog, NewEphemeris(catalog), opts...)
	mc.AddListener(listener)
	return mc, scene, listener
}

func TestMissionController_EnterSyncsInitialPositions(t *testing.T) {
	mc, scene, listener := controllerFixture(t)

	if err := mc.EnterMission(context.Background(), "transfer"); err != nil {
		t.Fatalf("EnterMission: %v", err)
	}

	if !mc.Active() {
		t.Fatalf("controller should be active after entry")
	}
	// Both catalog bodies positioned before the first Update.
	if len(scene.positions) != 2 {
		t.Fatalf("expected 2 bodies positioned at entry, got %d", len(scene.positions))
	}
	if len(listener.progress) != 0 {
		t.Fatalf("no progress notification should fire before the first Update")
	}
	if got := mc.CurrentDate(); !got.Equal(mc.Mission().Waypoints[0].Date) {
		t.Fatalf("CurrentDate after entry = %v, want mission start", got)
	}
}

func TestMissionController_RejectsUnknownMission(t *testing.T) {
	mc, _, _ := controllerFixture(t)

	if err := mc.EnterMission(context.Background(), "apollo99"); err == nil {
		t.Fatalf("expected error for unknown mission")
	}
	if mc.Active() {
		t.Fatalf("controller must stay inactive after rejected entry")
	}
}

func TestMissionController_RejectedEntryKeepsPriorMission(t *testing.T) {
	mc, _, _ := controllerFixture(t)

	if err := mc.EnterMission(context.Background(), "transfer"); err != nil {
		t.Fatalf("EnterMission: %v", err)
	}
	mc.Play()

	if err := mc.EnterMission(context.Background(), "apollo99"); err == nil {
		t.Fatalf("expected error for unknown mission")
	}
	if !mc.Active() || mc.Mission().ID != "transfer" {
		t.Fatalf("rejected entry must leave the active mission untouched")
	}
}

func TestMissionController_RejectsMissionWithUnknownBody(t *testing.T) {
	catalog := testCatalog(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := catalog.AddMission(&model.Mission{
		ID: "ghost",
		Waypoints: []model.Waypoint{
			{Date: start, Label: "a", BodyKey: "earth"},
			{Date: start.AddDate(0, 0, 5), Label: "b", BodyKey: "vulcan"},
		},
	}); err != nil {
		t.Fatalf("AddMission: %v", err)
	}

	mc := NewMissionController(catalog, NewEphemeris(catalog))
	if err := mc.EnterMission(context.Background(), "ghost"); err == nil {
		t.Fatalf("expected rejection for waypoint referencing unknown body")
	}
	if mc.Active() {
		t.Fatalf("controller must stay inactive")
	}
}

func TestMissionController_UpdateDispatchOrder(t *testing.T) {
	mc, scene, listener := controllerFixture(t)

	if err := mc.EnterMission(context.Background(), "transfer"); err != nil {
		t.Fatalf("EnterMission: %v", err)
	}
	mc.Play()

	callsBefore := scene.calls
	mc.Update(3 * time.Second) // 3s of 30s => progress  0.1

	if scene.calls <= callsBefore {
		t.Fatalf("expected positions pushed during Update")
	}
	if len(listener.progress) != 1 {
		t.Fatalf("expected exactly one progress notification, got %d", len(listener.progress))
	}
	if got := listener.progress[0]; got < 0.099 || got > 0.101 {
		t.Fatalf("progress notification = %v, want ~0.1", got)
	}
	wantDate := mc.Mission().Waypoints[0].Date.Add(3 * 24 * time.Hour)
	if drift := listener.dates[0].Sub(wantDate); drift < -time.Millisecond || drift > time.Millisecond {
		t.Fatalf("date notification = %v, want ~%v (0.1 of a 30-day span)", listener.dates[0], wantDate)
	}
}

func TestMissionController_WaypointZeroFiresOnFirstUpdate(t *testing.T) {
	mc, _, listener := controllerFixture(t)

	if err := mc.EnterMission(context.Background(), "transfer"); err != nil {
		t.Fatalf("EnterMission: %v", err)
	}
	mc.Update(16 * time.Millisecond) // paused; progress stays 0

	if len(listener.waypoints) != 1 || listener.waypoints[0] != 0 {
		t.Fatalf("expected departure waypoint notification, got %v", listener.waypoints)
	}

	// Dwelling at progress 0 must not re-fire it.
	mc.Update(16 * time.Millisecond)
	if len(listener.waypoints) != 1 {
		t.Fatalf("waypoint 0 re-fired while dwelling: %v", listener.waypoints)
	}
}

func TestMissionController_LargeTickDoesNotSkipWaypoints(t *testing.T) {
	mc, _, listener := controllerFixture(t)

	if err := mc.EnterMission(context.Background(), "transfer"); err != nil {
		t.Fatalf("EnterMission: %v", err)
	}
	mc.SetSpeed(10)
	mc.Play()

	// One 3s tick at 10x covers the whole 30s playback: every waypoint and
	// the completion must still be reported, in order.
	mc.Update(3 * time.Second)

	want := []int{0, 1, 2}
	if len(listener.waypoints) != len(want) {
		t.Fatalf("waypoints notified = %v, want %v", listener.waypoints, want)
	}
	for i, idx := range want {
		if listener.waypoints[i] != idx {
			t.Fatalf("waypoints notified = %v, want %v", listener.waypoints, want)
		}
	}
	if listener.completes != 1 {
		t.Fatalf("completes = %d, want 1", listener.completes)
	}
}

func TestMissionController_ApproachThenCrossingFiresOnce(t *testing.T) {
	mc, _, listener := controllerFixture(t)

	if err := mc.EnterMission(context.Background(), "transfer"); err != nil {
		t.Fatalf("EnterMission: %v", err)
	}
	mc.Play()

	// First tick stops just below the middle waypoint at 1/3, inside its
	// epsilon window; the next tick crosses it. That must produce one
	// notification in index order, not an early out-of-order one followed by
	// a second on the crossing.
	mc.Update(9981 * time.Millisecond)
	mc.Update(100 * time.Millisecond)

	want := []int{0, 1}
	if len(listener.waypoints) != len(want) {
		t.Fatalf("waypoints notified = %v, want %v", listener.waypoints, want)
	}
	for i, idx := range want {
		if listener.waypoints[i] != idx {
			t.Fatalf("waypoints notified = %v, want %v", listener.waypoints, want)
		}
	}
}

func TestMissionController_CompleteFiresExactlyOnce(t *testing.T) {
	mc, _, listener := controllerFixture(t)

	if err := mc.EnterMission(context.Background(), "transfer"); err != nil {
		t.Fatalf("EnterMission: %v", err)
	}
	mc.Play()

	mc.Update(30 * time.Second)
	mc.Update(1 * time.Second)
	mc.Update(1 * time.Second)

	if listener.completes != 1 {
		t.Fatalf("completes = %d, want exactly 1", listener.completes)
	}
}

func TestMissionController_BackwardSeekRefiresWaypoint(t *testing.T) {
	mc, _, listener := controllerFixture(t)

	if err := mc.EnterMission(context.Background(), "transfer"); err != nil {
		t.Fatalf("EnterMission: %v", err)
	}
	mc.Play()
	mc.Update(15 * time.Second) // past the middle waypoint at 1/3

	firstPass := len(listener.waypoints)
	if firstPass == 0 {
		t.Fatalf("expected waypoint notifications on first pass")
	}

	mc.SeekTo(0.1)
	mc.Update(15 * time.Second) // crosses the middle waypoint again

	refired := false
	for _, idx := range listener.waypoints[firstPass:] {
		if idx == 1 {
			refired = true
		}
	}
	if !refired {
		t.Fatalf("expected middle waypoint to re-fire after backward seek, got %v", listener.waypoints[firstPass:])
	}
}

func TestMissionController_ExitBeforeTickLeavesNoDanglingCallbacks(t *testing.T) {
	mc, scene, listener := controllerFixture(t)

	if err := mc.EnterMission(context.Background(), "transfer"); err != nil {
		t.Fatalf("EnterMission: %v", err)
	}
	mc.ExitMission()

	if mc.Active() {
		t.Fatalf("controller should be inactive after exit")
	}

	callsAfterExit := scene.calls
	mc.Update(16 * time.Millisecond)
	mc.Update(16 * time.Millisecond)

	if scene.calls != callsAfterExit {
		t.Fatalf("stale Update pushed positions after exit")
	}
	if len(listener.progress) != 0 || len(listener.waypoints) != 0 || listener.completes != 0 {
		t.Fatalf("stale Update dispatched notifications after exit")
	}
}

func TestMissionController_ExitFromListenerStopsDispatch(t *testing.T) {
	mc, _, listener := controllerFixture(t)
	listener.onWaypoint = func(int) { mc.ExitMission() }

	if err := mc.EnterMission(context.Background(), "transfer"); err != nil {
		t.Fatalf("EnterMission: %v", err)
	}
	mc.SetSpeed(10)
	mc.Play()
	mc.Update(3 * time.Second)

	// The first waypoint notification deactivates the controller; nothing
	// after it may fire.
	if len(listener.waypoints) != 1 {
		t.Fatalf("waypoints after reentrant exit = %v, want exactly one", listener.waypoints)
	}
	if len(listener.progress) != 0 {
		t.Fatalf("progress fired after deactivation")
	}
	if listener.completes != 0 {
		t.Fatalf("completion fired after deactivation")
	}
}

func TestMissionController_EnterReplacesActiveMission(t *testing.T) {
	mc, _, _ := controllerFixture(t)

	start := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := mc.catalog.AddMission(&model.Mission{
		ID: "second",
		Waypoints: []model.Waypoint{
			{Date: start, Label: "a"},
			{Date: start.AddDate(0, 0, 2), Label: "b"},
		},
	}); err != nil {
		t.Fatalf("AddMission: %v", err)
	}

	if err := mc.EnterMission(context.Background(), "transfer"); err != nil {
		t.Fatalf("EnterMission transfer: %v", err)
	}
	mc.Play()
	mc.Update(3 * time.Second)

	if err := mc.EnterMission(context.Background(), "second"); err != nil {
		t.Fatalf("EnterMission second: %v", err)
	}
	if mc.Mission().ID != "second" {
		t.Fatalf("active mission = %q, want second", mc.Mission().ID)
	}
	if mc.Progress() != 0 {
		t.Fatalf("progress after replacing mission = %v, want reset to 0", mc.Progress())
	}
	if mc.clock.Playing() {
		t.Fatalf("replacement mission should start paused")
	}
}

func TestMissionController_CameraFollowsWaypointBody(t *testing.T) {
	camera := &capturingCamera{}
	mc, scene, _ := controllerFixture(t, WithCameraRig(camera))

	if err := mc.EnterMission(context.Background(), "transfer"); err != nil {
		t.Fatalf("EnterMission: %v", err)
	}

	// The departure waypoint focuses Earth; entry performs one synchronous
	// camera sync.
	if camera.follows == 0 {
		t.Fatalf("expected a camera follow request at entry")
	}
	if camera.lookAt != scene.positions["earth"] {
		t.Fatalf("camera look target = %+v, want earth at %+v", camera.lookAt, scene.positions["earth"])
	}
}

func TestMissionController_ControlSurfaceInactiveNoOps(t *testing.T) {
	mc, _, _ := controllerFixture(t)

	// None of these may panic or activate anything while inactive.
	mc.Play()
	mc.Pause()
	mc.Toggle()
	mc.SeekTo(0.5)
	mc.SetSpeed(5)
	mc.ExitMission()
	mc.Update(time.Second)

	if mc.Active() || mc.Progress() != 0 {
		t.Fatalf("inactive control surface mutated state")
	}
}
