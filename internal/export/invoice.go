// Package export renders a costing snapshot as a printable invoice
// workbook. It only formats already-resolved numbers; nothing here
// recomputes or mutates engine state.
package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/spooldash/spooldash/internal/costing"
	"github.com/spooldash/spooldash/internal/model"
	"github.com/spooldash/spooldash/internal/session"
)

// Snapshot is everything the invoice shows: the breakdown, display names,
// the rates that were actually used (resolved, not raw overrides), and the
// free-text metadata.
type Snapshot struct {
	IssuedAt time.Time
	Currency string

	ItemNames string
	Notes     string

	PrinterName  string
	FilamentName string

	PrintTimeHours  float64
	LaborTimeHours  float64
	FilamentWeightG float64

	Rates     costing.Rates
	Breakdown costing.Breakdown
}

// FromSession snapshots a live form and its current breakdown.
func FromSession(st session.State, cat costing.Catalog, defaults costing.Rates, issuedAt time.Time) Snapshot {
	s := Snapshot{
		IssuedAt:        issuedAt,
		Currency:        st.Fields.Currency,
		ItemNames:       st.Fields.ItemNames,
		Notes:           st.Fields.Notes,
		PrintTimeHours:  orZero(st.Fields.PrintTimeHours),
		LaborTimeHours:  orZero(st.Fields.LaborTimeHours),
		FilamentWeightG: orZero(st.Fields.FilamentWeightG),
		Rates:           costing.ResolvedRates(st.Inputs(), defaults),
		Breakdown:       st.Breakdown,
	}
	if cat != nil {
		if st.Fields.PrinterID != nil {
			if printer, ok := cat.Printer(*st.Fields.PrinterID); ok {
				s.PrinterName = printer.Name
			}
		}
		if st.Fields.FilamentID != nil {
			if filament, ok := cat.Filament(*st.Fields.FilamentID); ok {
				s.FilamentName = filament.Name
			}
		}
	}
	return s
}

// FromCalculation snapshots a persisted calculation for re-export.
func FromCalculation(calc model.CostCalculation, issuedAt time.Time) Snapshot {
	s := Snapshot{
		IssuedAt:        issuedAt,
		Currency:        calc.Currency,
		ItemNames:       calc.ItemNames,
		Notes:           calc.Notes,
		PrintTimeHours:  orZero(calc.PrintTimeHours),
		LaborTimeHours:  orZero(calc.LaborTimeHours),
		FilamentWeightG: orZero(calc.FilamentWeightG),
		Rates: costing.Rates{
			EnergyCostPerKwh: orZero(calc.EnergyCostPerKwh),
			LaborCostPerHour: orZero(calc.LaborCostPerHour),
			ConsumablesCost:  orZero(calc.ConsumablesCost),
			FailureRate:      orZero(calc.FailureRate),
			MarkupRate:       orZero(calc.MarkupRate),
		},
		Breakdown: costing.Breakdown{
			MaterialCost:     orZero(calc.MaterialCost),
			EnergyCost:       orZero(calc.EnergyCost),
			DepreciationCost: orZero(calc.DepreciationCost),
			LaborCost:        orZero(calc.LaborCost),
			ConsumablesCost:  orZero(calc.ConsumablesCost),
			BasePrice:        orZero(calc.BasePrice),
			UpliftedPrice:    orZero(calc.UpliftedPrice),
			FinalPrice:       orZero(calc.FinalPrice),
		},
	}
	if calc.Printer != nil {
		s.PrinterName = calc.Printer.Name
	}
	if calc.Filament != nil {
		s.FilamentName = calc.Filament.Name
	}
	return s
}

const sheet = "Invoice"

// RenderInvoice formats the snapshot into an xlsx workbook.
func RenderInvoice(s Snapshot) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create invoice sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	row := 1
	set := func(label string, value any) {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), label)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), value)
		row++
	}
	skip := func() { row++ }

	set("Print job invoice", "")
	set("Issued", s.IssuedAt.Format("2006-01-02"))
	set("Currency", s.Currency)
	if s.ItemNames != "" {
		set("Items", s.ItemNames)
	}
	skip()

	set("Printer", s.PrinterName)
	set("Filament", s.FilamentName)
	set("Print time (h)", s.PrintTimeHours)
	set("Labor time (h)", s.LaborTimeHours)
	set("Filament used (g)", s.FilamentWeightG)
	skip()

	set("Energy rate (per kWh)", s.Rates.EnergyCostPerKwh)
	set("Labor rate (per h)", s.Rates.LaborCostPerHour)
	set("Failure rate", s.Rates.FailureRate)
	set("Markup rate", s.Rates.MarkupRate)
	skip()

	set("Material cost", s.Breakdown.MaterialCost)
	set("Energy cost", s.Breakdown.EnergyCost)
	set("Depreciation cost", s.Breakdown.DepreciationCost)
	set("Labor cost", s.Breakdown.LaborCost)
	set("Consumables cost", s.Breakdown.ConsumablesCost)
	set("Base price", s.Breakdown.BasePrice)
	set("Uplifted price", s.Breakdown.UpliftedPrice)
	finalRow := row
	set("Final price", s.Breakdown.FinalPrice)

	if s.Notes != "" {
		skip()
		set("Notes", s.Notes)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create invoice style: %w", err)
	}
	f.SetCellStyle(sheet, "A1", "B1", bold)
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", finalRow), fmt.Sprintf("B%d", finalRow), bold)
	f.SetColWidth(sheet, "A", "A", 24)
	f.SetColWidth(sheet, "B", "B", 18)

	return f, nil
}

func orZero(v *float64) float64 {
	if v != nil {
		return *v
	}
	return 0
}
