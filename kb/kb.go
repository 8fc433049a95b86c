package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/orreryworks/mission-simulator/model"
)

var (
	ErrBodyExists      = errors.New("body already exists")
	ErrBodyNotFound    = errors.New("body not found")
	ErrMissionExists   = errors.New("mission already exists")
	ErrMissionNotFound = errors.New("mission not found")
	ErrBadInput        = errors.New("invalid input")
)

// Catalog is an in-memory, thread-safe store of celestial bodies and mission
// definitions. Bodies and missions are loaded once at startup and treated as
// immutable afterwards; the engine only reads from the catalog.
type Catalog struct {
	mu sync.RWMutex

	bodies   map[string]*model.Body
	missions map[string]*model.Mission
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		bodies:   make(map[string]*model.Body),
		missions: make(map[string]*model.Mission),
	}
}

// AddBody registers a body. It returns an error if the key is empty or
// already present.
func (c *Catalog) AddBody(b *model.Body) error {
	if b == nil || b.Key == "" {
		return fmt.Errorf("%w: nil or empty body", ErrBadInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.bodies[b.Key]; exists {
		return fmt.Errorf("%w: %q", ErrBodyExists, b.Key)
	}
	c.bodies[b.Key] = b
	return nil
}

// Body returns the body with the given key, or nil if not found.
func (c *Catalog) Body(key string) *model.Body {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bodies[key]
}

// OrbitalElements returns the elements for a Keplerian body. Absence of a
// referenced body is a configuration error, so callers get an explicit error
// rather than a zero value.
func (c *Catalog) OrbitalElements(key string) (model.OrbitalElements, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, ok := c.bodies[key]
	if !ok {
		return model.OrbitalElements{}, fmt.Errorf("%w: %q", ErrBodyNotFound, key)
	}
	return b.Elements, nil
}

// AllBodies returns every registered body, sorted by key so the per-frame
// update iterates in a deterministic order.
func (c *Catalog) AllBodies() []*model.Body {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*model.Body, 0, len(c.bodies))
	for _, b := range c.bodies {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// AddMission registers a mission definition. It returns an error if the ID is
// empty or already present.
func (c *Catalog) AddMission(m *model.Mission) error {
	if m == nil || m.ID == "" {
		return fmt.Errorf("%w: nil or empty mission", ErrBadInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.missions[m.ID]; exists {
		return fmt.Errorf("%w: %q", ErrMissionExists, m.ID)
	}
	c.missions[m.ID] = m
	return nil
}

// Mission returns the mission with the given ID, or an error if not found.
func (c *Catalog) Mission(id string) (*model.Mission, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.missions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissionNotFound, id)
	}
	return m, nil
}

// MissionIDs returns the IDs of all registered missions, sorted.
func (c *Catalog) MissionIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.missions))
	for id := range c.missions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clear removes all bodies and missions.
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bodies = make(map[string]*model.Body)
	c.missions = make(map[string]*model.Mission)
}
