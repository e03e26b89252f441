package catalog

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spooldash/spooldash/internal/events"
)

// Resolver memoizes the loaded catalog. Printer and filament change events
// drop the snapshot so the next Get reloads; cost events are ignored since
// they never alter reference data.
type Resolver struct {
	provider Provider
	log      *zap.Logger

	mu     sync.Mutex
	cached *Catalog
}

// NewResolver returns a resolver that invalidates on bus events. The
// returned stop function detaches it from the bus.
func NewResolver(provider Provider, bus *events.Bus, log *zap.Logger) (*Resolver, func()) {
	r := &Resolver{provider: provider, log: log}

	ch, cancel := bus.Subscribe()
	go func() {
		for ev := range ch {
			if ev.Resource == events.ResourcePrinter || ev.Resource == events.ResourceFilament {
				r.Invalidate()
			}
		}
	}()
	return r, cancel
}

// Get returns the memoized catalog, loading it on first use or after an
// invalidation.
func (r *Resolver) Get(ctx context.Context) (*Catalog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil {
		return r.cached, nil
	}
	c, err := Load(ctx, r.provider)
	if err != nil {
		return nil, err
	}
	r.log.Debug("catalog loaded",
		zap.Int("printers", len(c.Printers)),
		zap.Int("filaments", len(c.Filaments)),
		zap.Int("groups", len(c.Groups)))
	r.cached = c
	return c, nil
}

// Invalidate drops the cached snapshot.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.cached = nil
	r.mu.Unlock()
}
