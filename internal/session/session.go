// Package session holds the server-side state of one in-progress costing
// form. The controller is a finite-state machine: a pure reduce function
// maps (state, event) to the next state, recomputing the breakdown on every
// field change. Writing the computed final price back into the form is part
// of the transition output, so a programmatic write-back can never be
// mistaken for user input.
//
// Two guards make the final-price override detection sound:
//   - Hydrating suppresses recomputation and override detection while a
//     persisted calculation is copied into the form;
//   - write-back only happens inside reduce, after the override flag has
//     been settled for the triggering event.
//
// Without both, loading a saved record would appear manually overridden, or
// the next keystroke would clobber a legitimately pinned final price.
package session

import (
	"github.com/spooldash/spooldash/internal/costing"
	"github.com/spooldash/spooldash/internal/model"
)

// NumberField names an editable numeric form field.
type NumberField string

const (
	FieldPrintTimeHours   NumberField = "print_time_hours"
	FieldLaborTimeHours   NumberField = "labor_time_hours"
	FieldFilamentWeightG  NumberField = "filament_weight_g"
	FieldEnergyCostPerKwh NumberField = "energy_cost_per_kwh"
	FieldLaborCostPerHour NumberField = "labor_cost_per_hour"
	FieldConsumablesCost  NumberField = "consumables_cost"
	FieldFailureRate      NumberField = "failure_rate"
	FieldMarkupRate       NumberField = "markup_rate"
	FieldFinalPrice       NumberField = "final_price"
)

// RefField names an editable reference (selection) field.
type RefField string

const (
	FieldPrinterID  RefField = "printer_id"
	FieldFilamentID RefField = "filament_id"
)

// TextField names an editable free-text field.
type TextField string

const (
	FieldCurrency  TextField = "currency"
	FieldItemNames TextField = "item_names"
	FieldNotes     TextField = "notes"
)

// Fields mirrors the editable form.
type Fields struct {
	PrinterID  *int64 `json:"printer_id,omitempty"`
	FilamentID *int64 `json:"filament_id,omitempty"`

	PrintTimeHours  *float64 `json:"print_time_hours,omitempty"`
	LaborTimeHours  *float64 `json:"labor_time_hours,omitempty"`
	FilamentWeightG *float64 `json:"filament_weight_g,omitempty"`

	EnergyCostPerKwh *float64 `json:"energy_cost_per_kwh,omitempty"`
	LaborCostPerHour *float64 `json:"labor_cost_per_hour,omitempty"`
	ConsumablesCost  *float64 `json:"consumables_cost,omitempty"`
	FailureRate      *float64 `json:"failure_rate,omitempty"`
	MarkupRate       *float64 `json:"markup_rate,omitempty"`

	FinalPrice *float64 `json:"final_price,omitempty"`

	Currency  string `json:"currency,omitempty"`
	ItemNames string `json:"item_names,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// State is the full controller state after a transition.
type State struct {
	// CalculationID is set while editing a persisted calculation.
	CalculationID *int64 `json:"calculation_id,omitempty"`

	Fields    Fields            `json:"fields"`
	Breakdown costing.Breakdown `json:"breakdown"`

	FinalPriceManuallySet bool `json:"final_price_manually_set"`
	Hydrating             bool `json:"-"`
}

// Inputs converts the current fields into an engine call.
func (s State) Inputs() costing.Inputs {
	f := s.Fields
	return costing.Inputs{
		PrinterID:        f.PrinterID,
		FilamentID:       f.FilamentID,
		PrintTimeHours:   f.PrintTimeHours,
		LaborTimeHours:   f.LaborTimeHours,
		FilamentWeightG:  f.FilamentWeightG,
		EnergyCostPerKwh: f.EnergyCostPerKwh,
		LaborCostPerHour: f.LaborCostPerHour,
		ConsumablesCost:  f.ConsumablesCost,
		FailureRate:      f.FailureRate,
		MarkupRate:       f.MarkupRate,
		FinalPrice:       f.FinalPrice,
		FinalPinned:      s.FinalPriceManuallySet,
	}
}

// Event is one form transition trigger.
type Event interface{ isEvent() }

// Seed starts a fresh form: rate fields take the settings defaults and the
// breakdown is computed once.
type Seed struct {
	Currency string
}

// SetNumber changes one numeric field. A nil value clears the field; on the
// final-price field that also clears the manual override.
type SetNumber struct {
	Field NumberField
	Value *float64
}

// SetRef changes one reference field.
type SetRef struct {
	Field RefField
	Value *int64
}

// SetText changes one free-text field.
type SetText struct {
	Field TextField
	Value string
}

// BeginHydrate opens programmatic population from a persisted calculation.
type BeginHydrate struct {
	CalculationID int64
}

// EndHydrate closes hydration: the override flag derives purely from the
// presence of the persisted final price, and the breakdown is copied from
// the persisted components, not recomputed.
type EndHydrate struct {
	Calculation model.CostCalculation
}

// Reset discards the session back to a fresh seeded form.
type Reset struct {
	Currency string
}

func (Seed) isEvent()         {}
func (SetNumber) isEvent()    {}
func (SetRef) isEvent()       {}
func (SetText) isEvent()      {}
func (BeginHydrate) isEvent() {}
func (EndHydrate) isEvent()   {}
func (Reset) isEvent()        {}

// Reduce applies one event. It is pure: the returned state shares no
// mutable data with the input.
func Reduce(st State, ev Event, cat costing.Catalog, defaults costing.Rates) State {
	switch ev := ev.(type) {
	case Seed:
		return seeded(ev.Currency, cat, defaults)

	case Reset:
		return seeded(ev.Currency, cat, defaults)

	case SetNumber:
		st.Fields = setNumber(st.Fields, ev.Field, ev.Value)
		if st.Hydrating {
			return st
		}
		if ev.Field == FieldFinalPrice {
			st.FinalPriceManuallySet = ev.Value != nil
		}
		return recompute(st, cat, defaults)

	case SetRef:
		switch ev.Field {
		case FieldPrinterID:
			st.Fields.PrinterID = copyInt(ev.Value)
		case FieldFilamentID:
			st.Fields.FilamentID = copyInt(ev.Value)
		}
		if st.Hydrating {
			return st
		}
		return recompute(st, cat, defaults)

	case SetText:
		switch ev.Field {
		case FieldCurrency:
			st.Fields.Currency = ev.Value
		case FieldItemNames:
			st.Fields.ItemNames = ev.Value
		case FieldNotes:
			st.Fields.Notes = ev.Value
		}
		if st.Hydrating {
			return st
		}
		return recompute(st, cat, defaults)

	case BeginHydrate:
		id := ev.CalculationID
		st = State{CalculationID: &id, Hydrating: true}
		return st

	case EndHydrate:
		calc := ev.Calculation
		st.FinalPriceManuallySet = calc.FinalPrice != nil
		st.Breakdown = costing.Breakdown{
			MaterialCost:     orZero(calc.MaterialCost),
			EnergyCost:       orZero(calc.EnergyCost),
			DepreciationCost: orZero(calc.DepreciationCost),
			LaborCost:        orZero(calc.LaborCost),
			ConsumablesCost:  orZero(calc.ConsumablesCost),
			BasePrice:        orZero(calc.BasePrice),
			UpliftedPrice:    orZero(calc.UpliftedPrice),
			FinalPrice:       orZero(calc.FinalPrice),
		}
		if calc.FinalPrice == nil {
			st.Breakdown.FinalPrice = st.Breakdown.UpliftedPrice
		}
		st.Hydrating = false
		return st
	}
	return st
}

// HydrationEvents expands a persisted calculation into the guarded event
// sequence that loads it into the form.
func HydrationEvents(calc model.CostCalculation) []Event {
	return []Event{
		BeginHydrate{CalculationID: calc.ID},
		SetRef{Field: FieldPrinterID, Value: calc.PrinterID},
		SetRef{Field: FieldFilamentID, Value: calc.FilamentID},
		SetNumber{Field: FieldPrintTimeHours, Value: calc.PrintTimeHours},
		SetNumber{Field: FieldLaborTimeHours, Value: calc.LaborTimeHours},
		SetNumber{Field: FieldFilamentWeightG, Value: calc.FilamentWeightG},
		SetNumber{Field: FieldEnergyCostPerKwh, Value: calc.EnergyCostPerKwh},
		SetNumber{Field: FieldLaborCostPerHour, Value: calc.LaborCostPerHour},
		SetNumber{Field: FieldConsumablesCost, Value: calc.ConsumablesCost},
		SetNumber{Field: FieldFailureRate, Value: calc.FailureRate},
		SetNumber{Field: FieldMarkupRate, Value: calc.MarkupRate},
		SetNumber{Field: FieldFinalPrice, Value: calc.FinalPrice},
		SetText{Field: FieldCurrency, Value: calc.Currency},
		SetText{Field: FieldItemNames, Value: calc.ItemNames},
		SetText{Field: FieldNotes, Value: calc.Notes},
		EndHydrate{Calculation: calc},
	}
}

func seeded(currency string, cat costing.Catalog, defaults costing.Rates) State {
	st := State{
		Fields: Fields{
			EnergyCostPerKwh: model.Float(defaults.EnergyCostPerKwh),
			LaborCostPerHour: model.Float(defaults.LaborCostPerHour),
			ConsumablesCost:  model.Float(defaults.ConsumablesCost),
			FailureRate:      model.Float(defaults.FailureRate),
			MarkupRate:       model.Float(defaults.MarkupRate),
			Currency:         currency,
		},
	}
	return recompute(st, cat, defaults)
}

// recompute runs the engine and performs the final-price write-back when no
// manual override is active.
func recompute(st State, cat costing.Catalog, defaults costing.Rates) State {
	st.Breakdown = costing.Compute(st.Inputs(), cat, defaults)
	if !st.FinalPriceManuallySet {
		st.Fields.FinalPrice = model.Float(st.Breakdown.UpliftedPrice)
	}
	return st
}

func setNumber(f Fields, field NumberField, v *float64) Fields {
	v = copyFloat(v)
	switch field {
	case FieldPrintTimeHours:
		f.PrintTimeHours = v
	case FieldLaborTimeHours:
		f.LaborTimeHours = v
	case FieldFilamentWeightG:
		f.FilamentWeightG = v
	case FieldEnergyCostPerKwh:
		f.EnergyCostPerKwh = v
	case FieldLaborCostPerHour:
		f.LaborCostPerHour = v
	case FieldConsumablesCost:
		f.ConsumablesCost = v
	case FieldFailureRate:
		f.FailureRate = v
	case FieldMarkupRate:
		f.MarkupRate = v
	case FieldFinalPrice:
		f.FinalPrice = v
	}
	return f
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func orZero(v *float64) float64 {
	if v != nil {
		return *v
	}
	return 0
}
