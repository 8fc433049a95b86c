package model

import "time"

// Waypoint is a dated, named event within a mission's timeline. Label and
// Facts are display-only; the engine never interprets them. Dates must be
// strictly increasing across a mission's waypoint list.
type Waypoint struct {
	Date  time.Time
	Label string
	Facts []string

	// BodyKey optionally names the body the mission is near at this
	// waypoint (camera focus target). Must resolve in the catalog when set.
	BodyKey string
}

// Mission is a named ordered sequence of waypoints plus a rendering color.
// Immutable after load.
type Mission struct {
	ID        string
	Name      string
	Color     string // hex, display-only
	Waypoints []Waypoint
}

// Span returns the calendar duration between the first and last waypoint.
// Zero when the mission has fewer than two waypoints.
func (m *Mission) Span() time.Duration {
	if len(m.Waypoints) < 2 {
		return 0
	}
	return m.Waypoints[len(m.Waypoints)-1].Date.Sub(m.Waypoints[0].Date)
}
