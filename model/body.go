package model

import "time"

// MotionSource indicates how a body's position is determined.
type MotionSource int

const (
	MotionSourceUnknown   MotionSource = iota
	MotionSourceKeplerian              // classical elements, heliocentric
	MotionSourceTLE                    // SGP4 propagation, geocentric, offset by Earth
)

// OrbitalElements are the display-space Keplerian elements for a body.
// Semi-major axis is in scene units, not physically scaled AU; the epoch is
// the calendar date at which mean anomaly is zero.
type OrbitalElements struct {
	SemiMajorAxisSceneUnits float64
	Eccentricity            float64 // in [0, 1)
	OrbitalPeriodDays       float64 // > 0
	ReferenceEpoch          time.Time
	InclinationDegrees      float64
	ArgumentOfPeriapsisDeg  float64
}

// Body represents a celestial body (planet, moon, spacecraft) known to the
// catalog. Keplerian bodies carry orbital elements; TLE bodies carry the two
// TLE lines instead.
type Body struct {
	Key  string
	Name string

	MotionSource MotionSource
	Elements     OrbitalElements

	// TLE lines, used when MotionSource is MotionSourceTLE.
	TLELine1 string
	TLELine2 string
}
