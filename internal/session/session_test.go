package session

import (
	"math"
	"testing"

	"github.com/spooldash/spooldash/internal/costing"
	"github.com/spooldash/spooldash/internal/model"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

type fixedCatalog struct {
	printers  map[int64]model.Printer
	filaments map[int64]model.Filament
}

func (c *fixedCatalog) Printer(id int64) (model.Printer, bool) {
	p, ok := c.printers[id]
	return p, ok
}

func (c *fixedCatalog) Filament(id int64) (model.Filament, bool) {
	f, ok := c.filaments[id]
	return f, ok
}

func (c *fixedCatalog) GroupPrice(int64) (float64, bool) { return 0, false }

func testCatalog() *fixedCatalog {
	return &fixedCatalog{
		printers: map[int64]model.Printer{
			1: {ID: 1, Name: "X1C", PowerWatts: model.Float(200), DepreciationCostPerHour: model.Float(0.5)},
		},
		filaments: map[int64]model.Filament{
			7: {ID: 7, Name: "PLA Black", Price: model.Float(20), Weight: model.Float(1000)},
		},
	}
}

func testDefaults() costing.Rates {
	return costing.Rates{
		EnergyCostPerKwh: 0.15,
		LaborCostPerHour: 10,
		ConsumablesCost:  1,
		FailureRate:      0.05,
		MarkupRate:       0.20,
	}
}

func TestSeedWritesComputedFinalPriceBack(t *testing.T) {
	cat, defaults := testCatalog(), testDefaults()

	st := Reduce(State{}, Seed{Currency: "USD"}, cat, defaults)

	if st.FinalPriceManuallySet {
		t.Fatal("fresh form must not report a manual override")
	}
	if st.Fields.FinalPrice == nil {
		t.Fatal("seed must write the computed final price into the form")
	}
	nearlyEqual(t, "final price field", *st.Fields.FinalPrice, st.Breakdown.UpliftedPrice)
	if st.Fields.Currency != "USD" {
		t.Fatalf("currency = %q, want USD", st.Fields.Currency)
	}
	nearlyEqual(t, "seeded energy rate", *st.Fields.EnergyCostPerKwh, 0.15)
}

func TestEditsRecomputeAndTrackFinalPrice(t *testing.T) {
	cat, defaults := testCatalog(), testDefaults()

	st := Reduce(State{}, Seed{Currency: "USD"}, cat, defaults)
	st = Reduce(st, SetRef{Field: FieldPrinterID, Value: model.Int(1)}, cat, defaults)
	st = Reduce(st, SetRef{Field: FieldFilamentID, Value: model.Int(7)}, cat, defaults)
	st = Reduce(st, SetNumber{Field: FieldPrintTimeHours, Value: model.Float(2)}, cat, defaults)
	st = Reduce(st, SetNumber{Field: FieldLaborTimeHours, Value: model.Float(0.5)}, cat, defaults)
	st = Reduce(st, SetNumber{Field: FieldFilamentWeightG, Value: model.Float(50)}, cat, defaults)

	nearlyEqual(t, "base price", st.Breakdown.BasePrice, 8.06)
	nearlyEqual(t, "uplifted price", st.Breakdown.UpliftedPrice, 10.1556)
	if st.FinalPriceManuallySet {
		t.Fatal("write-back must not set the manual override flag")
	}
	nearlyEqual(t, "final price field", *st.Fields.FinalPrice, 10.1556)
}

func TestManualFinalPriceOverrideSticks(t *testing.T) {
	cat, defaults := testCatalog(), testDefaults()

	st := Reduce(State{}, Seed{Currency: "USD"}, cat, defaults)
	st = Reduce(st, SetNumber{Field: FieldFinalPrice, Value: model.Float(42)}, cat, defaults)

	if !st.FinalPriceManuallySet {
		t.Fatal("typing into final price must set the manual override")
	}
	nearlyEqual(t, "pinned final price", st.Breakdown.FinalPrice, 42)

	// Subsequent edits recompute the breakdown but keep the pinned price.
	st = Reduce(st, SetNumber{Field: FieldLaborTimeHours, Value: model.Float(3)}, cat, defaults)

	if !st.FinalPriceManuallySet {
		t.Fatal("editing another field must not clear the override")
	}
	nearlyEqual(t, "pinned final price after edit", *st.Fields.FinalPrice, 42)
	nearlyEqual(t, "pinned breakdown final", st.Breakdown.FinalPrice, 42)
	if st.Breakdown.UpliftedPrice == 42 {
		t.Fatal("uplifted price should have diverged from the pinned value")
	}
}

func TestClearingFinalPriceResumesWriteBack(t *testing.T) {
	cat, defaults := testCatalog(), testDefaults()

	st := Reduce(State{}, Seed{Currency: "USD"}, cat, defaults)
	st = Reduce(st, SetNumber{Field: FieldFinalPrice, Value: model.Float(42)}, cat, defaults)
	st = Reduce(st, SetNumber{Field: FieldFinalPrice, Value: nil}, cat, defaults)

	if st.FinalPriceManuallySet {
		t.Fatal("clearing the field must clear the override")
	}
	if st.Fields.FinalPrice == nil {
		t.Fatal("write-back must repopulate the cleared field")
	}
	nearlyEqual(t, "restored final price", *st.Fields.FinalPrice, st.Breakdown.UpliftedPrice)
}

func savedCalculation(finalPrice *float64) model.CostCalculation {
	return model.CostCalculation{
		ID:               11,
		PrinterID:        model.Int(1),
		FilamentID:       model.Int(7),
		PrintTimeHours:   model.Float(2),
		LaborTimeHours:   model.Float(0.5),
		FilamentWeightG:  model.Float(50),
		EnergyCostPerKwh: model.Float(0.15),
		LaborCostPerHour: model.Float(10),
		ConsumablesCost:  model.Float(1),
		FailureRate:      model.Float(0.05),
		MarkupRate:       model.Float(0.20),
		MaterialCost:     model.Float(1),
		EnergyCost:       model.Float(0.06),
		DepreciationCost: model.Float(1),
		LaborCost:        model.Float(5),
		BasePrice:        model.Float(8.06),
		UpliftedPrice:    model.Float(10.1556),
		FinalPrice:       finalPrice,
		Currency:         "USD",
		ItemNames:        "Benchy x2",
	}
}

func applyAll(st State, evs []Event, cat costing.Catalog, defaults costing.Rates) State {
	for _, ev := range evs {
		st = Reduce(st, ev, cat, defaults)
	}
	return st
}

func TestHydrationCopiesBreakdownWithoutRecompute(t *testing.T) {
	cat, defaults := testCatalog(), testDefaults()
	// Defaults deliberately differ from the saved rates so a recompute
	// during hydration would be visible.
	defaults.LaborCostPerHour = 99

	calc := savedCalculation(model.Float(12.5))
	st := applyAll(State{}, HydrationEvents(calc), cat, defaults)

	if st.Hydrating {
		t.Fatal("hydration must be closed after EndHydrate")
	}
	if st.CalculationID == nil || *st.CalculationID != 11 {
		t.Fatalf("calculation id = %v, want 11", st.CalculationID)
	}
	if !st.FinalPriceManuallySet {
		t.Fatal("a persisted final price must hydrate as a manual override")
	}
	nearlyEqual(t, "hydrated labor cost", st.Breakdown.LaborCost, 5)
	nearlyEqual(t, "hydrated final price", st.Breakdown.FinalPrice, 12.5)
	nearlyEqual(t, "hydrated final field", *st.Fields.FinalPrice, 12.5)
	if st.Fields.ItemNames != "Benchy x2" {
		t.Fatalf("item names = %q", st.Fields.ItemNames)
	}
}

func TestHydrationWithoutFinalPriceLeavesNoOverride(t *testing.T) {
	cat, defaults := testCatalog(), testDefaults()

	calc := savedCalculation(nil)
	st := applyAll(State{}, HydrationEvents(calc), cat, defaults)

	if st.FinalPriceManuallySet {
		t.Fatal("hydrating without a final price must not flag an override")
	}
	nearlyEqual(t, "final falls back to uplifted", st.Breakdown.FinalPrice, 10.1556)
}

func TestEditAfterHydrationRecomputes(t *testing.T) {
	cat, defaults := testCatalog(), testDefaults()

	calc := savedCalculation(nil)
	st := applyAll(State{}, HydrationEvents(calc), cat, defaults)
	st = Reduce(st, SetNumber{Field: FieldLaborTimeHours, Value: model.Float(1)}, cat, defaults)

	nearlyEqual(t, "labor cost after edit", st.Breakdown.LaborCost, 10)
	nearlyEqual(t, "final tracks recompute", *st.Fields.FinalPrice, st.Breakdown.UpliftedPrice)
}

func TestResetClearsHydratedSession(t *testing.T) {
	cat, defaults := testCatalog(), testDefaults()

	st := applyAll(State{}, HydrationEvents(savedCalculation(model.Float(12.5))), cat, defaults)
	st = Reduce(st, Reset{Currency: "EUR"}, cat, defaults)

	if st.CalculationID != nil {
		t.Fatal("reset must detach from the persisted calculation")
	}
	if st.FinalPriceManuallySet {
		t.Fatal("reset must clear the manual override")
	}
	if st.Fields.Currency != "EUR" {
		t.Fatalf("currency = %q, want EUR", st.Fields.Currency)
	}
}

func TestManagerLifecycle(t *testing.T) {
	cat, defaults := testCatalog(), testDefaults()
	m := NewManager()

	ctrl := m.Create(cat, defaults, "USD")
	if ctrl.ID() == "" {
		t.Fatal("session id must be set")
	}

	got, ok := m.Get(ctrl.ID())
	if !ok || got != ctrl {
		t.Fatal("manager must return the created session")
	}

	st := ctrl.Apply(SetNumber{Field: FieldLaborTimeHours, Value: model.Float(2)})
	nearlyEqual(t, "labor cost via controller", st.Breakdown.LaborCost, 20)

	m.Delete(ctrl.ID())
	if _, ok := m.Get(ctrl.ID()); ok {
		t.Fatal("deleted session must not resolve")
	}
}

func TestControllerRefreshAppliesNewCatalog(t *testing.T) {
	cat, defaults := testCatalog(), testDefaults()
	m := NewManager()

	ctrl := m.Create(cat, defaults, "USD")
	ctrl.Apply(
		SetRef{Field: FieldPrinterID, Value: model.Int(1)},
		SetNumber{Field: FieldPrintTimeHours, Value: model.Float(2)},
	)

	updated := testCatalog()
	updated.printers[1] = model.Printer{ID: 1, Name: "X1C", PowerWatts: model.Float(400), DepreciationCostPerHour: model.Float(0.5)}

	st := ctrl.Refresh(updated, defaults)
	nearlyEqual(t, "energy cost after refresh", st.Breakdown.EnergyCost, 0.4*2*0.15)
}
