// Package gateway saves, deletes and lists cost calculations. Save always
// recomputes the breakdown from the current form fields right before
// writing so a persisted record can never carry stale components, and it
// stores every computed value next to the raw inputs so the record is
// auditable on its own.
package gateway

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/spooldash/spooldash/internal/costing"
	"github.com/spooldash/spooldash/internal/events"
	"github.com/spooldash/spooldash/internal/model"
	"github.com/spooldash/spooldash/internal/session"
	"github.com/spooldash/spooldash/internal/store"
)

// ValidationError reports a form-level problem that blocks a save before
// any write is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// Gateway fronts the store for the cost resource with a list cache that any
// cost change event purges, whether the change came from this process path
// or from a concurrent writer.
type Gateway struct {
	store *store.Store
	log   *zap.Logger

	mu    sync.Mutex
	cache map[string]cachedList
}

type cachedList struct {
	items []model.CostCalculation
	total int
}

// New returns a gateway whose list cache is invalidated by cost events on
// bus. The returned stop function detaches it from the bus.
func New(st *store.Store, bus *events.Bus, log *zap.Logger) (*Gateway, func()) {
	g := &Gateway{store: st, log: log, cache: make(map[string]cachedList)}

	ch, cancel := bus.Subscribe()
	go func() {
		for ev := range ch {
			if ev.Resource == events.ResourceCost {
				g.invalidate()
			}
		}
	}()
	return g, cancel
}

// Save persists the session's calculation, creating or updating depending
// on whether the session carries a calculation id. The breakdown is
// recomputed from the fields; the session's stored breakdown is never
// trusted.
func (g *Gateway) Save(ctx context.Context, st session.State, cat costing.Catalog, defaults costing.Rates) (model.CostCalculation, error) {
	if st.Fields.PrinterID == nil {
		return model.CostCalculation{}, &ValidationError{Field: "printer_id", Reason: "a printer must be selected"}
	}
	if st.Fields.FilamentID == nil {
		return model.CostCalculation{}, &ValidationError{Field: "filament_id", Reason: "a filament must be selected"}
	}

	bd := costing.Compute(st.Inputs(), cat, defaults)
	rates := costing.ResolvedRates(st.Inputs(), defaults)

	params := store.CostParams{
		PrinterID:  st.Fields.PrinterID,
		FilamentID: st.Fields.FilamentID,

		PrintTimeHours:  st.Fields.PrintTimeHours,
		LaborTimeHours:  st.Fields.LaborTimeHours,
		FilamentWeightG: st.Fields.FilamentWeightG,

		EnergyCostPerKwh: model.Float(rates.EnergyCostPerKwh),
		LaborCostPerHour: model.Float(rates.LaborCostPerHour),
		FailureRate:      model.Float(rates.FailureRate),
		MarkupRate:       model.Float(rates.MarkupRate),

		MaterialCost:     model.Float(bd.MaterialCost),
		EnergyCost:       model.Float(bd.EnergyCost),
		DepreciationCost: model.Float(bd.DepreciationCost),
		LaborCost:        model.Float(bd.LaborCost),
		ConsumablesCost:  model.Float(bd.ConsumablesCost),
		BasePrice:        model.Float(bd.BasePrice),
		UpliftedPrice:    model.Float(bd.UpliftedPrice),
		FinalPrice:       model.Float(bd.FinalPrice),

		Currency:  model.Str(st.Fields.Currency),
		ItemNames: model.Str(st.Fields.ItemNames),
		Notes:     model.Str(st.Fields.Notes),
	}

	if st.CalculationID != nil {
		calc, err := g.store.UpdateCost(ctx, *st.CalculationID, params)
		if err != nil {
			return model.CostCalculation{}, fmt.Errorf("update calculation %d: %w", *st.CalculationID, err)
		}
		g.log.Info("cost calculation updated", zap.Int64("id", calc.ID))
		return calc, nil
	}

	calc, err := g.store.CreateCost(ctx, params)
	if err != nil {
		return model.CostCalculation{}, fmt.Errorf("create calculation: %w", err)
	}
	g.log.Info("cost calculation created", zap.Int64("id", calc.ID))
	return calc, nil
}

// Remove deletes a calculation from the history.
func (g *Gateway) Remove(ctx context.Context, id int64) error {
	if err := g.store.DeleteCost(ctx, id); err != nil {
		return fmt.Errorf("delete calculation %d: %w", id, err)
	}
	g.log.Info("cost calculation deleted", zap.Int64("id", id))
	return nil
}

// List returns the filtered history, serving repeated queries from the
// cache until a cost change invalidates it.
func (g *Gateway) List(ctx context.Context, f store.CostFilter) ([]model.CostCalculation, int, error) {
	key := cacheKey(f)

	g.mu.Lock()
	if hit, ok := g.cache[key]; ok {
		g.mu.Unlock()
		return hit.items, hit.total, nil
	}
	g.mu.Unlock()

	items, total, err := g.store.ListCosts(ctx, f)
	if err != nil {
		return nil, 0, err
	}

	g.mu.Lock()
	g.cache[key] = cachedList{items: items, total: total}
	g.mu.Unlock()
	return items, total, nil
}

func (g *Gateway) invalidate() {
	g.mu.Lock()
	g.cache = make(map[string]cachedList)
	g.mu.Unlock()
}

func cacheKey(f store.CostFilter) string {
	limit := -1
	if f.Limit != nil {
		limit = *f.Limit
	}
	return fmt.Sprintf("p=%v f=%v sort=%s limit=%d offset=%d",
		f.PrinterIDs, f.FilamentIDs, f.Sort, limit, f.Offset)
}
