package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spooldash/spooldash/internal/store"
)

type costBody struct {
	PrinterID  *int64 `json:"printer_id"`
	FilamentID *int64 `json:"filament_id"`

	PrintTimeHours  *float64 `json:"print_time_hours"`
	LaborTimeHours  *float64 `json:"labor_time_hours"`
	FilamentWeightG *float64 `json:"filament_weight_g"`

	EnergyCostPerKwh *float64 `json:"energy_cost_per_kwh"`
	LaborCostPerHour *float64 `json:"labor_cost_per_hour"`
	FailureRate      *float64 `json:"failure_rate"`
	MarkupRate       *float64 `json:"markup_rate"`

	MaterialCost     *float64 `json:"material_cost"`
	EnergyCost       *float64 `json:"energy_cost"`
	DepreciationCost *float64 `json:"depreciation_cost"`
	LaborCost        *float64 `json:"labor_cost"`
	ConsumablesCost  *float64 `json:"consumables_cost"`
	BasePrice        *float64 `json:"base_price"`
	UpliftedPrice    *float64 `json:"uplifted_price"`
	FinalPrice       *float64 `json:"final_price"`

	Currency  *string `json:"currency"`
	ItemNames *string `json:"item_names"`
	Notes     *string `json:"notes"`
}

func (b costBody) params() store.CostParams {
	return store.CostParams{
		PrinterID:        b.PrinterID,
		FilamentID:       b.FilamentID,
		PrintTimeHours:   b.PrintTimeHours,
		LaborTimeHours:   b.LaborTimeHours,
		FilamentWeightG:  b.FilamentWeightG,
		EnergyCostPerKwh: b.EnergyCostPerKwh,
		LaborCostPerHour: b.LaborCostPerHour,
		FailureRate:      b.FailureRate,
		MarkupRate:       b.MarkupRate,
		MaterialCost:     b.MaterialCost,
		EnergyCost:       b.EnergyCost,
		DepreciationCost: b.DepreciationCost,
		LaborCost:        b.LaborCost,
		ConsumablesCost:  b.ConsumablesCost,
		BasePrice:        b.BasePrice,
		UpliftedPrice:    b.UpliftedPrice,
		FinalPrice:       b.FinalPrice,
		Currency:         b.Currency,
		ItemNames:        b.ItemNames,
		Notes:            b.Notes,
	}
}

// handleCostList serves the calculation history. Filters: comma-separated
// printer_id and filament_id sets (ANDed together, -1 matches empty),
// sort=field:dir items, limit/offset pagination.
func (s *Server) handleCostList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	printerIDs, err := csvIDs(q.Get("printer_id"))
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid printer_id filter")
		return
	}
	filamentIDs, err := csvIDs(q.Get("filament_id"))
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid filament_id filter")
		return
	}

	filter := store.CostFilter{
		PrinterIDs:  printerIDs,
		FilamentIDs: filamentIDs,
		Sort:        q.Get("sort"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeMessage(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = &limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			s.writeMessage(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = offset
	}

	items, total, err := s.gateway.List(r.Context(), filter)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	totalCountHeader(w, total)
	s.writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCostCreate(w http.ResponseWriter, r *http.Request) {
	var body costBody
	if !s.decode(w, r, &body) {
		return
	}
	c, err := s.store.CreateCost(r.Context(), body.params())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleCostGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid calculation id")
		return
	}
	c, err := s.store.GetCost(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCostUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid calculation id")
		return
	}
	var body costBody
	if !s.decode(w, r, &body) {
		return
	}
	c, err := s.store.UpdateCost(r.Context(), id, body.params())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCostDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid calculation id")
		return
	}
	if err := s.gateway.Remove(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, message{Message: "deleted"})
}

// handleCostExport re-exports a saved calculation as an invoice workbook.
func (s *Server) handleCostExport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid calculation id")
		return
	}
	c, err := s.store.GetCost(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeInvoice(w, exportSnapshotFromCalculation(c), fmt.Sprintf("invoice-%d.xlsx", id))
}

func exportFilename(prefix string) string {
	return fmt.Sprintf("%s-%s.xlsx", prefix, time.Now().Format("20060102"))
}
