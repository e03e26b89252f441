package gateway

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spooldash/spooldash/internal/catalog"
	"github.com/spooldash/spooldash/internal/costing"
	"github.com/spooldash/spooldash/internal/db"
	"github.com/spooldash/spooldash/internal/events"
	"github.com/spooldash/spooldash/internal/migrations"
	"github.com/spooldash/spooldash/internal/model"
	"github.com/spooldash/spooldash/internal/session"
	"github.com/spooldash/spooldash/internal/store"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

type fixture struct {
	store    *store.Store
	gateway  *Gateway
	catalog  *catalog.Catalog
	defaults costing.Rates
	printer  model.Printer
	filament model.Filament
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := migrations.Up(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	bus := events.NewBus()
	st := store.New(database, bus)
	g, stop := New(st, bus, zap.NewNop())
	t.Cleanup(stop)

	printer, err := st.CreatePrinter(ctx, store.PrinterParams{
		Name:                    model.Str("X1C"),
		PowerWatts:              model.Float(200),
		DepreciationCostPerHour: model.Float(0.5),
	})
	if err != nil {
		t.Fatalf("create printer: %v", err)
	}
	filament, err := st.CreateFilament(ctx, store.FilamentParams{
		Name:   model.Str("PLA Black"),
		Price:  model.Float(20),
		Weight: model.Float(1000),
	})
	if err != nil {
		t.Fatalf("create filament: %v", err)
	}

	cat, err := catalog.Load(ctx, st)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	return &fixture{
		store:   st,
		gateway: g,
		catalog: cat,
		defaults: costing.Rates{
			EnergyCostPerKwh: 0.15,
			LaborCostPerHour: 10,
			ConsumablesCost:  1,
			FailureRate:      0.05,
			MarkupRate:       0.20,
		},
		printer:  printer,
		filament: filament,
	}
}

// filledState drives the session reducer the way the form would, producing
// the worked-example state.
func (fx *fixture) filledState() session.State {
	evs := []session.Event{
		session.Seed{Currency: "USD"},
		session.SetRef{Field: session.FieldPrinterID, Value: &fx.printer.ID},
		session.SetRef{Field: session.FieldFilamentID, Value: &fx.filament.ID},
		session.SetNumber{Field: session.FieldPrintTimeHours, Value: model.Float(2)},
		session.SetNumber{Field: session.FieldLaborTimeHours, Value: model.Float(0.5)},
		session.SetNumber{Field: session.FieldFilamentWeightG, Value: model.Float(50)},
		session.SetText{Field: session.FieldItemNames, Value: "Benchy x2"},
	}
	var st session.State
	for _, ev := range evs {
		st = session.Reduce(st, ev, fx.catalog, fx.defaults)
	}
	return st
}

func TestSaveRequiresPrinterAndFilament(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	st := session.Reduce(session.State{}, session.Seed{Currency: "USD"}, fx.catalog, fx.defaults)

	_, err := fx.gateway.Save(ctx, st, fx.catalog, fx.defaults)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "printer_id" {
		t.Fatalf("expected printer_id validation error, got %v", err)
	}

	st = session.Reduce(st, session.SetRef{Field: session.FieldPrinterID, Value: &fx.printer.ID}, fx.catalog, fx.defaults)
	_, err = fx.gateway.Save(ctx, st, fx.catalog, fx.defaults)
	if !errors.As(err, &verr) || verr.Field != "filament_id" {
		t.Fatalf("expected filament_id validation error, got %v", err)
	}
}

func TestSavePersistsRecomputedBreakdownAndResolvedRates(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	calc, err := fx.gateway.Save(ctx, fx.filledState(), fx.catalog, fx.defaults)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	nearlyEqual(t, "material cost", *calc.MaterialCost, 1.0)
	nearlyEqual(t, "energy cost", *calc.EnergyCost, 0.06)
	nearlyEqual(t, "depreciation cost", *calc.DepreciationCost, 1.0)
	nearlyEqual(t, "labor cost", *calc.LaborCost, 5.0)
	nearlyEqual(t, "consumables cost", *calc.ConsumablesCost, 1.0)
	nearlyEqual(t, "base price", *calc.BasePrice, 8.06)
	nearlyEqual(t, "uplifted price", *calc.UpliftedPrice, 10.1556)
	nearlyEqual(t, "final price", *calc.FinalPrice, 10.1556)

	// The record carries the resolved rates, not nils, so it stays
	// auditable after the defaults change.
	nearlyEqual(t, "energy rate", *calc.EnergyCostPerKwh, 0.15)
	nearlyEqual(t, "labor rate", *calc.LaborCostPerHour, 10)
	nearlyEqual(t, "failure rate", *calc.FailureRate, 0.05)
	nearlyEqual(t, "markup rate", *calc.MarkupRate, 0.20)

	if calc.ItemNames != "Benchy x2" || calc.Currency != "USD" {
		t.Fatalf("item names = %q, currency = %q", calc.ItemNames, calc.Currency)
	}
}

func TestSavePersistsPinnedFinalPrice(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	st := fx.filledState()
	st = session.Reduce(st, session.SetNumber{Field: session.FieldFinalPrice, Value: model.Float(42)}, fx.catalog, fx.defaults)

	calc, err := fx.gateway.Save(ctx, st, fx.catalog, fx.defaults)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	nearlyEqual(t, "pinned final price", *calc.FinalPrice, 42)
	// The computed components are stored unchanged next to the pin.
	nearlyEqual(t, "uplifted price", *calc.UpliftedPrice, 10.1556)
}

func TestSaveLoadSaveRoundTripIsStable(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	first, err := fx.gateway.Save(ctx, fx.filledState(), fx.catalog, fx.defaults)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}

	var st session.State
	for _, ev := range session.HydrationEvents(first) {
		st = session.Reduce(st, ev, fx.catalog, fx.defaults)
	}

	second, err := fx.gateway.Save(ctx, st, fx.catalog, fx.defaults)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("round trip created a new record: %d != %d", second.ID, first.ID)
	}
	nearlyEqual(t, "base price", *second.BasePrice, *first.BasePrice)
	nearlyEqual(t, "uplifted price", *second.UpliftedPrice, *first.UpliftedPrice)
	nearlyEqual(t, "final price", *second.FinalPrice, *first.FinalPrice)
}

func TestRemove(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	calc, err := fx.gateway.Save(ctx, fx.filledState(), fx.catalog, fx.defaults)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := fx.gateway.Remove(ctx, calc.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := fx.gateway.Remove(ctx, calc.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}
}

func TestListCacheInvalidatesOnCostEvents(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.gateway.Save(ctx, fx.filledState(), fx.catalog, fx.defaults); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Invalidation rides the bus; give the subscriber a moment to drain
	// the save event before priming the cache.
	waitForTotal(t, fx, 1)

	if _, err := fx.gateway.Save(ctx, fx.filledState(), fx.catalog, fx.defaults); err != nil {
		t.Fatalf("second save: %v", err)
	}
	waitForTotal(t, fx, 2)
}

func waitForTotal(t *testing.T, fx *fixture, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, total, err := fx.gateway.List(context.Background(), store.CostFilter{})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if total == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("list total = %d, want %d", total, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
