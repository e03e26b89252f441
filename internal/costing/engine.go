// Package costing computes the price breakdown for one print job. Compute
// is a pure function: it is called on every form keystroke and must stay
// cheap, deterministic and incapable of failing on incomplete input.
package costing

import "github.com/spooldash/spooldash/internal/model"

// Rates are the resolved default rates from the settings store.
type Rates struct {
	EnergyCostPerKwh float64
	LaborCostPerHour float64
	ConsumablesCost  float64
	FailureRate      float64
	MarkupRate       float64
}

// Catalog resolves references against the loaded reference data. Unknown
// ids report ok=false and contribute nothing to the breakdown.
type Catalog interface {
	Printer(id int64) (model.Printer, bool)
	Filament(id int64) (model.Filament, bool)
	// GroupPrice returns the averaged price of the filament's type group,
	// when at least one group member has a defined price.
	GroupPrice(filamentID int64) (float64, bool)
}

// Inputs are the raw form values for one computation. Nil means the field
// is unset; unset quantities count as zero, unset rates fall back to the
// defaults.
type Inputs struct {
	PrinterID  *int64
	FilamentID *int64

	PrintTimeHours  *float64
	LaborTimeHours  *float64
	FilamentWeightG *float64

	EnergyCostPerKwh *float64
	LaborCostPerHour *float64
	ConsumablesCost  *float64
	FailureRate      *float64
	MarkupRate       *float64

	// FinalPrice is the user-pinned final price; it only takes effect when
	// FinalPinned is set. A pinned-but-unset value falls back to the
	// computed uplifted price.
	FinalPrice  *float64
	FinalPinned bool
}

// Breakdown is the eight-component cost decomposition. It is transient;
// persisting it means copying the fields into a CostCalculation.
type Breakdown struct {
	MaterialCost     float64 `json:"material_cost"`
	EnergyCost       float64 `json:"energy_cost"`
	DepreciationCost float64 `json:"depreciation_cost"`
	LaborCost        float64 `json:"labor_cost"`
	ConsumablesCost  float64 `json:"consumables_cost"`
	BasePrice        float64 `json:"base_price"`
	UpliftedPrice    float64 `json:"uplifted_price"`
	FinalPrice       float64 `json:"final_price"`
}

// Rate resolution order: explicit per-calculation override, else default.
func resolve(override *float64, def float64) float64 {
	if override != nil {
		return *override
	}
	return def
}

func orZero(v *float64) float64 {
	if v != nil {
		return *v
	}
	return 0
}

// Compute maps the inputs to a full breakdown.
//
//	materialPrice = group average price, else filament price, else 0
//	materialCost  = (weight_g / spool_weight) * materialPrice  (0 without a positive spool weight)
//	energyCost    = power_watts/1000 * print_hours * energy_rate
//	depreciation  = depreciation_per_hour * print_hours
//	laborCost     = labor_hours * labor_rate
//	base          = material + energy + depreciation + labor + consumables
//	uplifted      = base * (1+failure_rate) * (1+markup_rate)
//
// No rounding is applied; display formatting is the caller's concern.
func Compute(in Inputs, cat Catalog, defaults Rates) Breakdown {
	bd := Breakdown{
		ConsumablesCost: resolve(in.ConsumablesCost, defaults.ConsumablesCost),
	}

	if in.FilamentID != nil && cat != nil {
		if filament, ok := cat.Filament(*in.FilamentID); ok {
			materialPrice := 0.0
			if avg, ok := cat.GroupPrice(filament.ID); ok {
				materialPrice = avg
			} else if filament.Price != nil {
				materialPrice = *filament.Price
			}
			// A spool with unknown weight contributes no material cost.
			if filament.Weight != nil && *filament.Weight > 0 {
				bd.MaterialCost = orZero(in.FilamentWeightG) / *filament.Weight * materialPrice
			}
		}
	}

	if in.PrinterID != nil && cat != nil {
		if printer, ok := cat.Printer(*in.PrinterID); ok {
			printHours := orZero(in.PrintTimeHours)
			energyRate := resolve(in.EnergyCostPerKwh, defaults.EnergyCostPerKwh)
			bd.EnergyCost = orZero(printer.PowerWatts) / 1000 * printHours * energyRate
			bd.DepreciationCost = orZero(printer.DepreciationCostPerHour) * printHours
		}
	}

	laborRate := resolve(in.LaborCostPerHour, defaults.LaborCostPerHour)
	bd.LaborCost = orZero(in.LaborTimeHours) * laborRate

	bd.BasePrice = bd.MaterialCost + bd.EnergyCost + bd.DepreciationCost +
		bd.LaborCost + bd.ConsumablesCost

	failureRate := resolve(in.FailureRate, defaults.FailureRate)
	markupRate := resolve(in.MarkupRate, defaults.MarkupRate)
	bd.UpliftedPrice = bd.BasePrice * (1 + failureRate) * (1 + markupRate)

	bd.FinalPrice = bd.UpliftedPrice
	if in.FinalPinned && in.FinalPrice != nil {
		bd.FinalPrice = *in.FinalPrice
	}
	return bd
}

// ResolvedRates reports the rates a computation actually used, for export
// documents that must show resolved values rather than raw overrides.
func ResolvedRates(in Inputs, defaults Rates) Rates {
	return Rates{
		EnergyCostPerKwh: resolve(in.EnergyCostPerKwh, defaults.EnergyCostPerKwh),
		LaborCostPerHour: resolve(in.LaborCostPerHour, defaults.LaborCostPerHour),
		ConsumablesCost:  resolve(in.ConsumablesCost, defaults.ConsumablesCost),
		FailureRate:      resolve(in.FailureRate, defaults.FailureRate),
		MarkupRate:       resolve(in.MarkupRate, defaults.MarkupRate),
	}
}
