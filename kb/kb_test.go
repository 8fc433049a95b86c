package kb

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/orreryworks/mission-simulator/model"
)

func keplerianBody(key string) *model.Body {
	return &model.Body{
		Key:          key,
		Name:         key,
		MotionSource: model.MotionSourceKeplerian,
		Elements: model.OrbitalElements{
			SemiMajorAxisSceneUnits: 10,
			Eccentricity:            0.1,
			OrbitalPeriodDays:       365,
			ReferenceEpoch:          time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestAddAndGetBody(t *testing.T) {
	store := NewCatalog()
	if err := store.AddBody(keplerianBody("earth")); err != nil {
		t.Fatalf("AddBody error: %v", err)
	}
	got := store.Body("earth")
	if got == nil || got.Name != "earth" {
		t.Fatalf("Body returned %#v, want earth", got)
	}
	if store.Body("missing") != nil {
		t.Fatalf("Body for unknown key should be nil")
	}
}

func TestAddBodyDuplicate(t *testing.T) {
	store := NewCatalog()
	if err := store.AddBody(keplerianBody("earth")); err != nil {
		t.Fatalf("first AddBody error: %v", err)
	}
	err := store.AddBody(keplerianBody("earth"))
	if !errors.Is(err, ErrBodyExists) {
		t.Fatalf("duplicate AddBody error = %v, want ErrBodyExists", err)
	}
}

func TestAddBodyBadInput(t *testing.T) {
	store := NewCatalog()
	if err := store.AddBody(nil); !errors.Is(err, ErrBadInput) {
		t.Fatalf("AddBody(nil) error = %v, want ErrBadInput", err)
	}
	if err := store.AddBody(&model.Body{}); !errors.Is(err, ErrBadInput) {
		t.Fatalf("AddBody(empty key) error = %v, want ErrBadInput", err)
	}
}

func TestOrbitalElements(t *testing.T) {
	store := NewCatalog()
	if err := store.AddBody(keplerianBody("earth")); err != nil {
		t.Fatalf("AddBody error: %v", err)
	}

	el, err := store.OrbitalElements("earth")
	if err != nil {
		t.Fatalf("OrbitalElements error: %v", err)
	}
	if el.OrbitalPeriodDays != 365 {
		t.Fatalf("OrbitalElements period = %v, want 365", el.OrbitalPeriodDays)
	}

	if _, err := store.OrbitalElements("vulcan"); !errors.Is(err, ErrBodyNotFound) {
		t.Fatalf("OrbitalElements for unknown body = %v, want ErrBodyNotFound", err)
	}
}

func TestAllBodiesSorted(t *testing.T) {
	store := NewCatalog()
	for _, key := range []string{"neptune", "earth", "mars"} {
		if err := store.AddBody(keplerianBody(key)); err != nil {
			t.Fatalf("AddBody(%s) error: %v", key, err)
		}
	}

	bodies := store.AllBodies()
	want := []string{"earth", "mars", "neptune"}
	if len(bodies) != len(want) {
		t.Fatalf("AllBodies returned %d bodies, want %d", len(bodies), len(want))
	}
	for i, key := range want {
		if bodies[i].Key != key {
			t.Fatalf("AllBodies[%d] = %q, want %q", i, bodies[i].Key, key)
		}
	}
}

func TestAddAndGetMission(t *testing.T) {
	store := NewCatalog()
	m := &model.Mission{ID: "voyager1", Name: "Voyager 1"}
	if err := store.AddMission(m); err != nil {
		t.Fatalf("AddMission error: %v", err)
	}

	got, err := store.Mission("voyager1")
	if err != nil || got.Name != "Voyager 1" {
		t.Fatalf("Mission returned (%#v, %v), want Voyager 1", got, err)
	}

	if _, err := store.Mission("apollo99"); !errors.Is(err, ErrMissionNotFound) {
		t.Fatalf("Mission for unknown id = %v, want ErrMissionNotFound", err)
	}
}

func TestAddMissionDuplicate(t *testing.T) {
	store := NewCatalog()
	if err := store.AddMission(&model.Mission{ID: "m1"}); err != nil {
		t.Fatalf("first AddMission error: %v", err)
	}
	if err := store.AddMission(&model.Mission{ID: "m1"}); !errors.Is(err, ErrMissionExists) {
		t.Fatalf("duplicate AddMission error = %v, want ErrMissionExists", err)
	}
}

func TestMissionIDsSorted(t *testing.T) {
	store := NewCatalog()
	for _, id := range []string{"voyager2", "cassini", "voyager1"} {
		if err := store.AddMission(&model.Mission{ID: id}); err != nil {
			t.Fatalf("AddMission(%s) error: %v", id, err)
		}
	}

	ids := store.MissionIDs()
	want := []string{"cassini", "voyager1", "voyager2"}
	for i, id := range want {
		if ids[i] != id {
			t.Fatalf("MissionIDs = %v, want %v", ids, want)
		}
	}
}

func TestClear(t *testing.T) {
	store := NewCatalog()
	if err := store.AddBody(keplerianBody("earth")); err != nil {
		t.Fatalf("AddBody error: %v", err)
	}
	if err := store.AddMission(&model.Mission{ID: "m1"}); err != nil {
		t.Fatalf("AddMission error: %v", err)
	}

	store.Clear()
	if len(store.AllBodies()) != 0 || len(store.MissionIDs()) != 0 {
		t.Fatalf("Clear left data behind")
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := NewCatalog()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.AddBody(keplerianBody(fmt.Sprintf("b-%d", i)))
		}()
		go func() {
			defer wg.Done()
			_ = store.AllBodies()
			_, _ = store.OrbitalElements(fmt.Sprintf("b-%d", i))
		}()
	}
	wg.Wait()

	if got := len(store.AllBodies()); got != 16 {
		t.Fatalf("expected 16 bodies after concurrent writes, got %d", got)
	}
}
