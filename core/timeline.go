package core

import (
	"fmt"
	"time"

	"github.com/orreryworks/mission-simulator/model"
)

// waypointEpsilon is the progress window within which WaypointIndexAt treats
// the playback position as "at" a waypoint.
const waypointEpsilon = 0.002

// MissionTimeline maps normalized playback progress [0,1] onto the calendar
// span of a mission. Waypoints are markers on a single globally linear
// timeline: playback speed is uniform in calendar time, never eased between
// waypoints. One timeline instance exists per active mission and is discarded
// when mission mode exits.
type MissionTimeline struct {
	mission *model.Mission

	// waypointProgress holds each waypoint's position on the normalized
	// timeline, proportional to elapsed days from the first waypoint. The
	// first entry is always 0 and the last always 1.
	waypointProgress []float64
}

// NewMissionTimeline builds a timeline for the mission. Missions with fewer
// than two waypoints or non-increasing waypoint dates are configuration
// errors and are rejected.
func NewMissionTimeline(mission *model.Mission) (*MissionTimeline, error) {
	if mission == nil {
		return nil, fmt.Errorf("mission timeline: nil mission")
	}
	if len(mission.Waypoints) < 2 {
		return nil, fmt.Errorf("mission timeline: mission %q has %d waypoints, need at least 2",
			mission.ID, len(mission.Waypoints))
	}

	first := mission.Waypoints[0].Date
	last := mission.Waypoints[len(mission.Waypoints)-1].Date
	span := last.Sub(first)

	progress := make([]float64, len(mission.Waypoints))
	prev := first
	for i, wp := range mission.Waypoints {
		if i > 0 && !wp.Date.After(prev) {
			return nil, fmt.Errorf("mission timeline: mission %q waypoint %d date %s does not advance past %s",
				mission.ID, i, wp.Date.Format(time.RFC3339), prev.Format(time.RFC3339))
		}
		prev = wp.Date

		if span <= 0 {
			// Zero-span guard: avoid dividing by zero. Unreachable with
			// strictly increasing dates, kept for defense at the boundary.
			progress[i] = 0
			continue
		}
		progress[i] = clamp01(float64(wp.Date.Sub(first)) / float64(span))
	}
	progress[len(progress)-1] = 1

	return &MissionTimeline{
		mission:          mission,
		waypointProgress: progress,
	}, nil
}

// Mission returns the mission this timeline was built for.
func (t *MissionTimeline) Mission() *model.Mission {
	return t.mission
}

// SpanDays returns the mission's calendar span in days.
func (t *MissionTimeline) SpanDays() float64 {
	return t.mission.Span().Hours() / 24
}

// WaypointProgressPositions returns each waypoint's normalized position on
// the timeline. The slice is owned by the timeline; callers must not mutate.
func (t *MissionTimeline) WaypointProgressPositions() []float64 {
	return t.waypointProgress
}

// DateAtProgress linearly interpolates progress back to a calendar date
// across the whole mission span. Progress is clamped to [0,1] first, so
// DateAtProgress(0) is exactly the first waypoint's date and
// DateAtProgress(1) exactly the last's.
func (t *MissionTimeline) DateAtProgress(progress float64) time.Time {
	progress = clamp01(progress)
	first := t.mission.Waypoints[0].Date
	if progress == 0 {
		return first
	}
	last := t.mission.Waypoints[len(t.mission.Waypoints)-1].Date
	if progress == 1 {
		return last
	}
	return first.Add(time.Duration(progress * float64(last.Sub(first))))
}

// WaypointIndexAt returns the index of the waypoint whose timeline position
// is within a small epsilon of the given progress, or -1 when none matches.
// This is a "currently at" query for HUD display; forward-crossing detection
// during playback is interval-based in the controller.
func (t *MissionTimeline) WaypointIndexAt(progress float64) int {
	progress = clamp01(progress)
	for i, p := range t.waypointProgress {
		if progress >= p-waypointEpsilon && progress <= p+waypointEpsilon {
			return i
		}
	}
	return -1
}

// WaypointsCrossed returns the indices of waypoints whose timeline positions
// lie in (from, to], in order. Used by the controller so a large tick cannot
// jump over a waypoint's epsilon window without the event firing.
func (t *MissionTimeline) WaypointsCrossed(from, to float64) []int {
	if to <= from {
		return nil
	}
	var crossed []int
	for i, p := range t.waypointProgress {
		if p > from && p <= to {
			crossed = append(crossed, i)
		}
	}
	// The first waypoint sits at progress 0, which the half-open interval
	// excludes; the controller reports it separately on the first forward
	// pass.
	return crossed
}

func clamp01(v float64) float64 {
	// NaN compares false on both branches, so it falls through to 0.
	if v > 1 {
		return 1
	}
	if v >= 0 {
		return v
	}
	return 0
}
