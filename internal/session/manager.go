package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/spooldash/spooldash/internal/costing"
	"github.com/spooldash/spooldash/internal/model"
)

// Controller owns the state of one edit session. All access goes through
// its mutex; one session is never shared between two concurrent edits.
type Controller struct {
	mu       sync.Mutex
	id       string
	state    State
	catalog  costing.Catalog
	defaults costing.Rates
	currency string
}

// ID returns the session identifier.
func (c *Controller) ID() string { return c.id }

// State returns the current state snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Apply runs the events through the reducer in order and returns the
// resulting state. The whole batch is one atomic step: no observer sees a
// state where the breakdown is stale relative to an applied field change.
func (c *Controller) Apply(evs ...Event) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range evs {
		c.state = Reduce(c.state, ev, c.catalog, c.defaults)
	}
	return c.state
}

// Load hydrates the session from a persisted calculation.
func (c *Controller) Load(calc model.CostCalculation) State {
	return c.Apply(HydrationEvents(calc)...)
}

// ResetToNew clears the session back to a fresh seeded form.
func (c *Controller) ResetToNew() State {
	return c.Apply(Reset{Currency: c.currency})
}

// Refresh swaps in a newer catalog snapshot and freshly resolved defaults,
// then recomputes so the breakdown reflects the new reference data.
func (c *Controller) Refresh(cat costing.Catalog, defaults costing.Rates) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.catalog = cat
	c.defaults = defaults
	c.state = recompute(c.state, c.catalog, c.defaults)
	return c.state
}

// Manager tracks the live edit sessions by id.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Controller
}

// NewManager returns an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Controller)}
}

// Create opens a new session seeded with the given defaults and currency.
func (m *Manager) Create(cat costing.Catalog, defaults costing.Rates, currency string) *Controller {
	c := &Controller{
		id:       uuid.NewString(),
		catalog:  cat,
		defaults: defaults,
		currency: currency,
	}
	c.state = Reduce(State{}, Seed{Currency: currency}, cat, defaults)

	m.mu.Lock()
	m.sessions[c.id] = c
	m.mu.Unlock()
	return c
}

// Get looks up a live session.
func (m *Manager) Get(id string) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[id]
	return c, ok
}

// Delete discards a session.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
