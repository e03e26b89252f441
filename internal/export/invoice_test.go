package export

import (
	"strconv"
	"testing"
	"time"

	"github.com/spooldash/spooldash/internal/costing"
	"github.com/spooldash/spooldash/internal/model"
)

func testSnapshot() Snapshot {
	return Snapshot{
		IssuedAt:        time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		Currency:        "USD",
		ItemNames:       "Benchy x2",
		Notes:           "rush order",
		PrinterName:     "X1C",
		FilamentName:    "PLA Black",
		PrintTimeHours:  2,
		LaborTimeHours:  0.5,
		FilamentWeightG: 50,
		Rates: costing.Rates{
			EnergyCostPerKwh: 0.15,
			LaborCostPerHour: 10,
			ConsumablesCost:  1,
			FailureRate:      0.05,
			MarkupRate:       0.20,
		},
		Breakdown: costing.Breakdown{
			MaterialCost:     1,
			EnergyCost:       0.06,
			DepreciationCost: 1,
			LaborCost:        5,
			ConsumablesCost:  1,
			BasePrice:        8.06,
			UpliftedPrice:    10.1556,
			FinalPrice:       10.1556,
		},
	}
}

// cellMap flattens the rendered label/value rows for position-independent
// assertions.
func cellMap(t *testing.T, s Snapshot) map[string]string {
	t.Helper()

	f, err := RenderInvoice(s)
	if err != nil {
		t.Fatalf("render invoice: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 1 || sheets[0] != "Invoice" {
		t.Fatalf("sheets = %v, want [Invoice]", sheets)
	}

	rows, err := f.GetRows("Invoice")
	if err != nil {
		t.Fatalf("read invoice rows: %v", err)
	}

	cells := make(map[string]string)
	for _, row := range rows {
		if len(row) < 2 || row[0] == "" {
			continue
		}
		cells[row[0]] = row[1]
	}
	return cells
}

func assertNumber(t *testing.T, cells map[string]string, label string, want float64) {
	t.Helper()
	raw, ok := cells[label]
	if !ok {
		t.Fatalf("invoice is missing row %q", label)
	}
	got, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		t.Fatalf("row %q holds %q, not a number", label, raw)
	}
	if got != want {
		t.Fatalf("row %q = %v, want %v", label, got, want)
	}
}

func TestRenderInvoice(t *testing.T) {
	cells := cellMap(t, testSnapshot())

	if cells["Issued"] != "2026-03-14" {
		t.Fatalf("Issued = %q", cells["Issued"])
	}
	if cells["Currency"] != "USD" {
		t.Fatalf("Currency = %q", cells["Currency"])
	}
	if cells["Items"] != "Benchy x2" {
		t.Fatalf("Items = %q", cells["Items"])
	}
	if cells["Printer"] != "X1C" || cells["Filament"] != "PLA Black" {
		t.Fatalf("printer = %q, filament = %q", cells["Printer"], cells["Filament"])
	}
	if cells["Notes"] != "rush order" {
		t.Fatalf("Notes = %q", cells["Notes"])
	}

	assertNumber(t, cells, "Print time (h)", 2)
	assertNumber(t, cells, "Energy rate (per kWh)", 0.15)
	assertNumber(t, cells, "Material cost", 1)
	assertNumber(t, cells, "Base price", 8.06)
	assertNumber(t, cells, "Uplifted price", 10.1556)
	assertNumber(t, cells, "Final price", 10.1556)
}

func TestRenderInvoiceOmitsEmptyOptionalRows(t *testing.T) {
	s := testSnapshot()
	s.ItemNames = ""
	s.Notes = ""

	cells := cellMap(t, s)

	if _, ok := cells["Items"]; ok {
		t.Fatal("empty item names must not render a row")
	}
	if _, ok := cells["Notes"]; ok {
		t.Fatal("empty notes must not render a row")
	}
	assertNumber(t, cells, "Final price", 10.1556)
}

func TestFromCalculation(t *testing.T) {
	issued := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	calc := model.CostCalculation{
		Printer:          &model.Printer{ID: 1, Name: "X1C"},
		Filament:         &model.Filament{ID: 7, Name: "PLA Black"},
		PrintTimeHours:   model.Float(2),
		EnergyCostPerKwh: model.Float(0.15),
		FailureRate:      model.Float(0.05),
		BasePrice:        model.Float(8.06),
		FinalPrice:       model.Float(12.5),
		Currency:         "USD",
		Notes:            "rush order",
	}

	s := FromCalculation(calc, issued)

	if s.PrinterName != "X1C" || s.FilamentName != "PLA Black" {
		t.Fatalf("names = %q / %q", s.PrinterName, s.FilamentName)
	}
	if s.PrintTimeHours != 2 {
		t.Fatalf("print time = %v", s.PrintTimeHours)
	}
	if s.Rates.EnergyCostPerKwh != 0.15 || s.Rates.FailureRate != 0.05 {
		t.Fatalf("rates = %+v", s.Rates)
	}
	// Absent values flatten to zero; the invoice never shows blanks in
	// numeric rows.
	if s.LaborTimeHours != 0 || s.Breakdown.LaborCost != 0 {
		t.Fatalf("absent values must flatten to zero: %+v", s)
	}
	if s.Breakdown.FinalPrice != 12.5 {
		t.Fatalf("final price = %v", s.Breakdown.FinalPrice)
	}
	if s.IssuedAt != issued {
		t.Fatalf("issued at = %v", s.IssuedAt)
	}
}
