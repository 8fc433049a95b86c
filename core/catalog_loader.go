package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/orreryworks/mission-simulator/kb"
	"github.com/orreryworks/mission-simulator/model"
)

// CatalogSummary is a small summary of what was loaded from JSON. It's mainly
// useful for logging from main().
type CatalogSummary struct {
	BodyKeys   []string
	MissionIDs []string
}

// internal JSON shapes - kept unexported so we're free to evolve them.
type catalogJSON struct {
	Bodies   []bodyJSON    `json:"bodies"`
	Missions []missionJSON `json:"missions"`
}

type bodyJSON struct {
	Key      string        `json:"key"`
	Name     string        `json:"name"`
	Motion   string        `json:"motion"` // "keplerian" | "tle"
	Elements *elementsJSON `json:"elements"`
	TLELine1 string        `json:"tle_line1"`
	TLELine2 string        `json:"tle_line2"`
}

type elementsJSON struct {
	SemiMajorAxis   float64   `json:"semi_major_axis"` // scene units
	Eccentricity    float64   `json:"eccentricity"`
	PeriodDays      float64   `json:"orbital_period_days"`
	ReferenceEpoch  time.Time `json:"reference_epoch"`
	InclinationDeg  float64   `json:"inclination_deg"`
	ArgPeriapsisDeg float64   `json:"arg_periapsis_deg"`
}

type missionJSON struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Color     string         `json:"color"`
	Waypoints []waypointJSON `json:"waypoints"`
}

type waypointJSON struct {
	Date  time.Time `json:"date"`
	Label string    `json:"label"`
	Facts []string  `json:"facts"`
	Body  string    `json:"body"`
}

// LoadCatalog reads a JSON catalog from r and populates the catalog with
// bodies and missions. Structural problems the engine would otherwise trip
// over at mission entry (empty keys, malformed elements, missions with fewer
// than two waypoints, non-increasing waypoint dates, waypoints referencing
// unknown bodies) fail the load outright: mission data is static and a bad
// catalog is a configuration error, not something to degrade around.
func LoadCatalog(ctx context.Context, catalog *kb.Catalog, r io.Reader) (*CatalogSummary, error) {
	_, span := otel.Tracer("mission-simulator/core").Start(ctx, "LoadCatalog")
	defer span.End()

	if catalog == nil {
		return nil, fmt.Errorf("LoadCatalog: catalog is nil")
	}

	var payload catalogJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadCatalog: decode failed: %w", err)
	}

	result := &CatalogSummary{
		BodyKeys:   make([]string, 0, len(payload.Bodies)),
		MissionIDs: make([]string, 0, len(payload.Missions)),
	}

	// 1) Bodies
	for _, jb := range payload.Bodies {
		body, err := bodyFromJSON(jb)
		if err != nil {
			return nil, fmt.Errorf("LoadCatalog: %w", err)
		}
		if err := catalog.AddBody(body); err != nil {
			return nil, fmt.Errorf("LoadCatalog: %w", err)
		}
		result.BodyKeys = append(result.BodyKeys, body.Key)
	}

	// 2) Missions, validated against the bodies loaded above.
	for _, jm := range payload.Missions {
		mission, err := missionFromJSON(jm, catalog)
		if err != nil {
			return nil, fmt.Errorf("LoadCatalog: %w", err)
		}
		if err := catalog.AddMission(mission); err != nil {
			return nil, fmt.Errorf("LoadCatalog: %w", err)
		}
		result.MissionIDs = append(result.MissionIDs, mission.ID)
	}

	span.SetAttributes(
		attribute.Int("catalog.bodies", len(result.BodyKeys)),
		attribute.Int("catalog.missions", len(result.MissionIDs)),
	)
	return result, nil
}

func bodyFromJSON(jb bodyJSON) (*model.Body, error) {
	if jb.Key == "" {
		return nil, fmt.Errorf("body with empty key")
	}

	body := &model.Body{
		Key:  jb.Key,
		Name: jb.Name,
	}

	switch motionFromString(jb.Motion) {
	case model.MotionSourceTLE:
		if jb.TLELine1 == "" || jb.TLELine2 == "" {
			return nil, fmt.Errorf("body %q: TLE motion requires both TLE lines", jb.Key)
		}
		body.MotionSource = model.MotionSourceTLE
		body.TLELine1 = jb.TLELine1
		body.TLELine2 = jb.TLELine2

	default:
		if jb.Elements == nil {
			return nil, fmt.Errorf("body %q: keplerian motion requires elements", jb.Key)
		}
		el := jb.Elements
		if el.PeriodDays <= 0 {
			return nil, fmt.Errorf("body %q: orbital period must be positive, got %v", jb.Key, el.PeriodDays)
		}
		if el.Eccentricity < 0 || el.Eccentricity >= 1 {
			return nil, fmt.Errorf("body %q: eccentricity must be in [0,1), got %v", jb.Key, el.Eccentricity)
		}
		if el.ReferenceEpoch.IsZero() {
			return nil, fmt.Errorf("body %q: reference epoch is required", jb.Key)
		}
		body.MotionSource = model.MotionSourceKeplerian
		body.Elements = model.OrbitalElements{
			SemiMajorAxisSceneUnits: el.SemiMajorAxis,
			Eccentricity:            el.Eccentricity,
			OrbitalPeriodDays:       el.PeriodDays,
			ReferenceEpoch:          el.ReferenceEpoch,
			InclinationDegrees:      el.InclinationDeg,
			ArgumentOfPeriapsisDeg:  el.ArgPeriapsisDeg,
		}
	}

	return body, nil
}

func missionFromJSON(jm missionJSON, catalog *kb.Catalog) (*model.Mission, error) {
	if jm.ID == "" {
		return nil, fmt.Errorf("mission with empty id")
	}
	if len(jm.Waypoints) < 2 {
		return nil, fmt.Errorf("mission %q has %d waypoints, need at least 2", jm.ID, len(jm.Waypoints))
	}

	waypoints := make([]model.Waypoint, 0, len(jm.Waypoints))
	var prev time.Time
	for i, jw := range jm.Waypoints {
		if jw.Date.IsZero() {
			return nil, fmt.Errorf("mission %q waypoint %d has no date", jm.ID, i)
		}
		if i > 0 && !jw.Date.After(prev) {
			return nil, fmt.Errorf("mission %q waypoint %d date %s does not advance past %s",
				jm.ID, i, jw.Date.Format(time.RFC3339), prev.Format(time.RFC3339))
		}
		prev = jw.Date

		if jw.Body != "" && catalog.Body(jw.Body) == nil {
			return nil, fmt.Errorf("mission %q waypoint %d references unknown body %q", jm.ID, i, jw.Body)
		}

		waypoints = append(waypoints, model.Waypoint{
			Date:    jw.Date,
			Label:   jw.Label,
			Facts:   jw.Facts,
			BodyKey: jw.Body,
		})
	}

	return &model.Mission{
		ID:        jm.ID,
		Name:      jm.Name,
		Color:     jm.Color,
		Waypoints: waypoints,
	}, nil
}

// motionFromString maps the JSON "motion" string to MotionSource constants.
// Unknown and empty values default to keplerian, which is what nearly every
// catalog entry uses.
func motionFromString(s string) model.MotionSource {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tle", "sgp4":
		return model.MotionSourceTLE
	default:
		return model.MotionSourceKeplerian
	}
}
