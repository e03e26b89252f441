package store

import (
	"context"
	"errors"
	"testing"

	"github.com/spooldash/spooldash/internal/model"
)

func TestCostCreateGetRoundTrip(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	printer := mustPrinter(t, s, "X1C", 200, 0.5)
	filament := mustFilament(t, s, "PLA Black", FilamentParams{Price: model.Float(20), Weight: model.Float(1000)})

	created, err := s.CreateCost(ctx, CostParams{
		PrinterID:       &printer.ID,
		FilamentID:      &filament.ID,
		PrintTimeHours:  model.Float(2),
		LaborTimeHours:  model.Float(0.5),
		FilamentWeightG: model.Float(50),
		MaterialCost:    model.Float(1),
		BasePrice:       model.Float(8.06),
		UpliftedPrice:   model.Float(10.1556),
		FinalPrice:      model.Float(10.1556),
		Currency:        model.Str("USD"),
		ItemNames:       model.Str("Benchy x2"),
	})
	if err != nil {
		t.Fatalf("create cost: %v", err)
	}

	got, err := s.GetCost(ctx, created.ID)
	if err != nil {
		t.Fatalf("get cost: %v", err)
	}
	if got.PrinterID == nil || *got.PrinterID != printer.ID {
		t.Fatalf("printer id = %v, want %d", got.PrinterID, printer.ID)
	}
	if got.Printer == nil || got.Printer.Name != "X1C" {
		t.Fatalf("joined printer = %+v", got.Printer)
	}
	if got.Filament == nil || got.Filament.Name != "PLA Black" {
		t.Fatalf("joined filament = %+v", got.Filament)
	}
	if got.FinalPrice == nil || *got.FinalPrice != 10.1556 {
		t.Fatalf("final price = %v", got.FinalPrice)
	}
	if got.Currency != "USD" || got.ItemNames != "Benchy x2" {
		t.Fatalf("currency = %q, item names = %q", got.Currency, got.ItemNames)
	}
	if got.Created.IsZero() {
		t.Fatal("created timestamp must be set")
	}
}

func TestCostCreateRejectsUnknownRefs(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	_, err := s.CreateCost(ctx, CostParams{PrinterID: model.Int(404)})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown printer, got %v", err)
	}

	_, err = s.CreateCost(ctx, CostParams{FilamentID: model.Int(404)})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown filament, got %v", err)
	}
}

func TestCostGetNotFound(t *testing.T) {
	t.Parallel()
	s := testStore(t)

	_, err := s.GetCost(context.Background(), 404)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCostUpdateMergesFields(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	created, err := s.CreateCost(ctx, CostParams{
		PrintTimeHours: model.Float(2),
		FinalPrice:     model.Float(10),
		Notes:          model.Str("first draft"),
	})
	if err != nil {
		t.Fatalf("create cost: %v", err)
	}

	updated, err := s.UpdateCost(ctx, created.ID, CostParams{
		FinalPrice: model.Float(12.5),
	})
	if err != nil {
		t.Fatalf("update cost: %v", err)
	}
	if *updated.FinalPrice != 12.5 {
		t.Fatalf("final price = %v, want 12.5", *updated.FinalPrice)
	}
	// Untouched fields survive the update.
	if updated.PrintTimeHours == nil || *updated.PrintTimeHours != 2 {
		t.Fatalf("print time = %v, want 2", updated.PrintTimeHours)
	}
	if updated.Notes != "first draft" {
		t.Fatalf("notes = %q", updated.Notes)
	}
}

func TestCostDelete(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	created, err := s.CreateCost(ctx, CostParams{FinalPrice: model.Float(1)})
	if err != nil {
		t.Fatalf("create cost: %v", err)
	}
	if err := s.DeleteCost(ctx, created.ID); err != nil {
		t.Fatalf("delete cost: %v", err)
	}
	if _, err := s.GetCost(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteCost(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete must report ErrNotFound, got %v", err)
	}
}

// seedHistory inserts three calculations: one per printer and one with no
// printer at all, to exercise the NULL-matching filter sentinel.
func seedHistory(t *testing.T, s *Store) (p1, p2 model.Printer) {
	t.Helper()
	ctx := context.Background()

	p1 = mustPrinter(t, s, "A1 mini", 150, 0.2)
	p2 = mustPrinter(t, s, "X1C", 200, 0.5)

	for _, params := range []CostParams{
		{PrinterID: &p1.ID, FinalPrice: model.Float(5)},
		{PrinterID: &p2.ID, FinalPrice: model.Float(20)},
		{FinalPrice: model.Float(10)},
	} {
		if _, err := s.CreateCost(ctx, params); err != nil {
			t.Fatalf("seed cost: %v", err)
		}
	}
	return p1, p2
}

func TestCostListFilters(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	p1, p2 := seedHistory(t, s)

	all, total, err := s.ListCosts(ctx, CostFilter{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if total != 3 || len(all) != 3 {
		t.Fatalf("total = %d, items = %d, want 3 each", total, len(all))
	}

	one, total, err := s.ListCosts(ctx, CostFilter{PrinterIDs: []int64{p1.ID}})
	if err != nil {
		t.Fatalf("list by printer: %v", err)
	}
	if total != 1 || *one[0].FinalPrice != 5 {
		t.Fatalf("printer filter matched %d rows", total)
	}

	// -1 matches calculations with no printer assigned.
	null, total, err := s.ListCosts(ctx, CostFilter{PrinterIDs: []int64{-1}})
	if err != nil {
		t.Fatalf("list null printer: %v", err)
	}
	if total != 1 || null[0].PrinterID != nil {
		t.Fatalf("null sentinel matched %d rows", total)
	}

	// Real ids and the sentinel combine with OR.
	mixed, total, err := s.ListCosts(ctx, CostFilter{PrinterIDs: []int64{p2.ID, -1}})
	if err != nil {
		t.Fatalf("list mixed filter: %v", err)
	}
	if total != 2 || len(mixed) != 2 {
		t.Fatalf("mixed filter matched %d rows, want 2", total)
	}
}

func TestCostListSortAndPagination(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	seedHistory(t, s)

	sorted, _, err := s.ListCosts(ctx, CostFilter{Sort: "final_price:asc"})
	if err != nil {
		t.Fatalf("list sorted: %v", err)
	}
	want := []float64{5, 10, 20}
	for i, c := range sorted {
		if *c.FinalPrice != want[i] {
			t.Fatalf("sorted[%d].FinalPrice = %v, want %v", i, *c.FinalPrice, want[i])
		}
	}

	byPrinter, _, err := s.ListCosts(ctx, CostFilter{Sort: "printer.name:desc"})
	if err != nil {
		t.Fatalf("list by joined column: %v", err)
	}
	if byPrinter[0].Printer == nil || byPrinter[0].Printer.Name != "X1C" {
		t.Fatalf("joined sort head = %+v", byPrinter[0].Printer)
	}

	limit := 2
	page, total, err := s.ListCosts(ctx, CostFilter{Sort: "final_price:asc", Limit: &limit, Offset: 1})
	if err != nil {
		t.Fatalf("list paginated: %v", err)
	}
	if total != 3 {
		t.Fatalf("paginated total = %d, want full count 3", total)
	}
	if len(page) != 2 || *page[0].FinalPrice != 10 {
		t.Fatalf("page = %d items starting at %v", len(page), *page[0].FinalPrice)
	}

	if _, _, err := s.ListCosts(ctx, CostFilter{Sort: "drop table:asc"}); err == nil {
		t.Fatal("unknown sort field must be rejected")
	}
}
