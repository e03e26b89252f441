// Package model holds the persisted resource types shared by the store,
// the costing engine and the API layer. Optional numeric columns are
// pointers so that "not set" stays distinguishable from zero; the costing
// rules depend on that distinction.
package model

import "time"

// Vendor is a filament manufacturer or reseller.
type Vendor struct {
	ID         int64     `json:"id"`
	Registered time.Time `json:"registered"`
	Name       string    `json:"name"`
	Comment    string    `json:"comment,omitempty"`
}

// Filament is a catalog entry for one spool product. Price is the price of
// a full spool, Weight the nominal filament weight of that spool in grams.
type Filament struct {
	ID         int64     `json:"id"`
	Registered time.Time `json:"registered"`
	Name       string    `json:"name"`
	VendorID   *int64    `json:"vendor_id,omitempty"`
	Vendor     *Vendor   `json:"vendor,omitempty"`
	Material   *string   `json:"material,omitempty"`
	Price      *float64  `json:"price,omitempty"`
	Weight     *float64  `json:"weight,omitempty"`
	Comment    string    `json:"comment,omitempty"`
}

// Printer is a machine profile used for energy and depreciation costing.
type Printer struct {
	ID                      int64     `json:"id"`
	Registered              time.Time `json:"registered"`
	Name                    string    `json:"name"`
	PowerWatts              *float64  `json:"power_watts,omitempty"`
	DepreciationCostPerHour *float64  `json:"depreciation_cost_per_hour,omitempty"`
	Comment                 string    `json:"comment,omitempty"`
}

// CostCalculation is a saved print-job costing. Raw inputs, per-calculation
// rate overrides and every computed component are stored side by side so a
// record is auditable without re-running the engine. Field names are the
// wire contract; other tooling reads them.
type CostCalculation struct {
	ID      int64     `json:"id"`
	Created time.Time `json:"created"`

	PrinterID  *int64    `json:"printer_id,omitempty"`
	Printer    *Printer  `json:"printer,omitempty"`
	FilamentID *int64    `json:"filament_id,omitempty"`
	Filament   *Filament `json:"filament,omitempty"`

	PrintTimeHours  *float64 `json:"print_time_hours,omitempty"`
	LaborTimeHours  *float64 `json:"labor_time_hours,omitempty"`
	FilamentWeightG *float64 `json:"filament_weight_g,omitempty"`

	EnergyCostPerKwh *float64 `json:"energy_cost_per_kwh,omitempty"`
	LaborCostPerHour *float64 `json:"labor_cost_per_hour,omitempty"`
	FailureRate      *float64 `json:"failure_rate,omitempty"`
	MarkupRate       *float64 `json:"markup_rate,omitempty"`

	MaterialCost     *float64 `json:"material_cost,omitempty"`
	EnergyCost       *float64 `json:"energy_cost,omitempty"`
	DepreciationCost *float64 `json:"depreciation_cost,omitempty"`
	LaborCost        *float64 `json:"labor_cost,omitempty"`
	ConsumablesCost  *float64 `json:"consumables_cost,omitempty"`
	BasePrice        *float64 `json:"base_price,omitempty"`
	UpliftedPrice    *float64 `json:"uplifted_price,omitempty"`
	FinalPrice       *float64 `json:"final_price,omitempty"`

	Currency  string `json:"currency,omitempty"`
	ItemNames string `json:"item_names,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// Float returns a pointer to v. Convenience for building optional fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int64) *int64 { return &v }

// Str returns a pointer to v.
func Str(v string) *string { return &v }
