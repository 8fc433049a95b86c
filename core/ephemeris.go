package core

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/orreryworks/mission-simulator/kb"
	"github.com/orreryworks/mission-simulator/model"
)

const (
	twoPi       = 2 * math.Pi
	hoursPerDay = 24.0

	// keplerIterations bounds the Newton solve for the eccentric anomaly.
	// The eccentricities in the catalog are all below 0.25, where a handful
	// of iterations converges well past display precision.
	keplerIterations = 8
)

// Ephemeris computes scene-space positions for catalog bodies at an arbitrary
// simulated date. PositionAt is a pure function of (body key, date): it holds
// no per-call state, so repeated calls with the same inputs are
// bit-reproducible and syncing all bodies to a mission date is idempotent.
type Ephemeris struct {
	catalog *kb.Catalog

	// sats holds SGP4 state for TLE bodies, built once at construction.
	sats map[string]satellite.Satellite

	earthKey        string
	sceneUnitsPerKm float64
}

// EphemerisOption configures an Ephemeris.
type EphemerisOption func(*Ephemeris)

// WithEarthKey overrides the catalog key used as the geocentric origin for
// TLE bodies. Defaults to "earth".
func WithEarthKey(key string) EphemerisOption {
	return func(e *Ephemeris) { e.earthKey = key }
}

// WithSceneUnitsPerKm overrides the display scale applied to SGP4 positions,
// which go-satellite reports in kilometres.
func WithSceneUnitsPerKm(scale float64) EphemerisOption {
	return func(e *Ephemeris) { e.sceneUnitsPerKm = scale }
}

// NewEphemeris constructs a provider over the given catalog. SGP4 state for
// TLE bodies is initialised eagerly so PositionAt stays pure.
func NewEphemeris(catalog *kb.Catalog, opts ...EphemerisOption) *Ephemeris {
	e := &Ephemeris{
		catalog:         catalog,
		sats:            make(map[string]satellite.Satellite),
		earthKey:        "earth",
		sceneUnitsPerKm: 0.0005,
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, b := range catalog.AllBodies() {
		if b.MotionSource == model.MotionSourceTLE && b.TLELine1 != "" && b.TLELine2 != "" {
			e.sats[b.Key] = satellite.TLEToSat(b.TLELine1, b.TLELine2, satellite.GravityWGS72)
		}
	}
	return e
}

// BodyKeys returns the keys of every body this provider can position, in
// deterministic order.
func (e *Ephemeris) BodyKeys() []string {
	bodies := e.catalog.AllBodies()
	keys := make([]string, 0, len(bodies))
	for _, b := range bodies {
		keys = append(keys, b.Key)
	}
	return keys
}

// PositionAt returns the body's scene-space position at the given date,
// centered at the Sun. An unknown body key is a configuration error: callers
// must not mask missing orbital data by defaulting to the origin.
func (e *Ephemeris) PositionAt(key string, date time.Time) (Vec3, error) {
	b := e.catalog.Body(key)
	if b == nil {
		return Vec3{}, fmt.Errorf("%w: %q", kb.ErrBodyNotFound, key)
	}

	switch b.MotionSource {
	case model.MotionSourceKeplerian:
		return keplerianPosition(b.Elements, date), nil
	case model.MotionSourceTLE:
		return e.tlePosition(b, date)
	default:
		return Vec3{}, fmt.Errorf("%w: body %q has no usable motion source", kb.ErrBadInput, key)
	}
}

// keplerianPosition places a body on its display-space ellipse at the given
// date. The orbital plane is the scene's X-Z plane (Y up); inclination tilts
// the plane about the X axis.
func keplerianPosition(el model.OrbitalElements, date time.Time) Vec3 {
	elapsedDays := date.Sub(el.ReferenceEpoch).Hours() / hoursPerDay

	// Mean anomaly advances uniformly over the orbital period.
	frac := math.Mod(elapsedDays, el.OrbitalPeriodDays) / el.OrbitalPeriodDays
	if frac < 0 {
		frac += 1
	}
	meanAnomaly := twoPi * frac

	eccAnomaly := solveKepler(meanAnomaly, el.Eccentricity)

	sinE, cosE := math.Sincos(eccAnomaly)
	radius := el.SemiMajorAxisSceneUnits * (1 - el.Eccentricity*cosE)
	trueAnomaly := math.Atan2(
		math.Sqrt(1-el.Eccentricity*el.Eccentricity)*sinE,
		cosE-el.Eccentricity,
	)

	theta := trueAnomaly + el.ArgumentOfPeriapsisDeg*math.Pi/180
	planar := Vec3{
		X: radius * math.Cos(theta),
		Y: 0,
		Z: radius * math.Sin(theta),
	}
	return planar.RotateAboutX(el.InclinationDegrees * math.Pi / 180)
}

// solveKepler solves M = E - e*sin(E) for the eccentric anomaly E with a
// fixed-bound Newton iteration. Termination is guaranteed by the iteration
// cap; residual error at these eccentricities is below display precision.
func solveKepler(meanAnomaly, eccentricity float64) float64 {
	if eccentricity == 0 {
		return meanAnomaly
	}
	E := meanAnomaly
	for i := 0; i < keplerIterations; i++ {
		f := E - eccentricity*math.Sin(E) - meanAnomaly
		fp := 1 - eccentricity*math.Cos(E)
		delta := f / fp
		E -= delta
		if math.Abs(delta) < 1e-12 {
			break
		}
	}
	return E
}

// tlePosition propagates a TLE body with SGP4 and offsets the geocentric
// result by Earth's heliocentric scene position. go-satellite works in
// kilometres; the result is scaled into scene units.
func (e *Ephemeris) tlePosition(b *model.Body, date time.Time) (Vec3, error) {
	sat, ok := e.sats[b.Key]
	if !ok {
		return Vec3{}, fmt.Errorf("%w: body %q has no TLE data", kb.ErrBadInput, b.Key)
	}

	earth := e.catalog.Body(e.earthKey)
	if earth == nil {
		return Vec3{}, fmt.Errorf("%w: %q (required to anchor TLE body %q)", kb.ErrBodyNotFound, e.earthKey, b.Key)
	}
	if earth.MotionSource != model.MotionSourceKeplerian {
		return Vec3{}, fmt.Errorf("%w: anchor body %q for TLE body %q must have orbital elements",
			kb.ErrBadInput, e.earthKey, b.Key)
	}
	origin := keplerianPosition(earth.Elements, date)

	year, month, day := date.Date()
	hour, min, sec := date.Clock()
	posECI, _ := satellite.Propagate(sat, year, int(month), day, hour, min, sec)

	offset := Vec3{
		X: posECI.X * e.sceneUnitsPerKm,
		Y: posECI.Y * e.sceneUnitsPerKm,
		Z: posECI.Z * e.sceneUnitsPerKm,
	}
	return origin.Add(offset), nil
}
