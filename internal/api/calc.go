package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/spooldash/spooldash/internal/export"
	"github.com/spooldash/spooldash/internal/model"
	"github.com/spooldash/spooldash/internal/session"
)

type sessionResponse struct {
	ID    string        `json:"id"`
	State session.State `json:"state"`
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	cat, err := s.resolver.Get(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	defaults := s.settings.Defaults(r.Context())

	ctrl := s.sessions.Create(cat, defaults, s.currency)
	s.writeJSON(w, http.StatusCreated, sessionResponse{ID: ctrl.ID(), State: ctrl.State()})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	id := chi.URLParam(r, "id")
	ctrl, ok := s.sessions.Get(id)
	if !ok {
		s.writeMessage(w, http.StatusNotFound, "no calc session with id "+id)
		return nil, false
	}
	return ctrl, true
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.getSession(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, sessionResponse{ID: ctrl.ID(), State: ctrl.State()})
}

// handleSessionPatch applies field edits. The body maps field names to new
// values; an explicit null clears a field, which on final_price also clears
// the manual override.
func (s *Server) handleSessionPatch(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.getSession(w, r)
	if !ok {
		return
	}

	var body map[string]json.RawMessage
	if !s.decode(w, r, &body) {
		return
	}

	evs, err := fieldEvents(body)
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	state := ctrl.Apply(evs...)
	s.writeJSON(w, http.StatusOK, sessionResponse{ID: ctrl.ID(), State: state})
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.getSession(w, r)
	if !ok {
		return
	}
	s.sessions.Delete(ctrl.ID())
	s.writeJSON(w, http.StatusOK, message{Message: "deleted"})
}

// handleSessionLoad hydrates the session from a saved calculation for
// editing.
func (s *Server) handleSessionLoad(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.getSession(w, r)
	if !ok {
		return
	}
	calcID, err := pathID(r, "calcID")
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid calculation id")
		return
	}
	calc, err := s.store.GetCost(r.Context(), calcID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	state := ctrl.Load(calc)
	s.writeJSON(w, http.StatusOK, sessionResponse{ID: ctrl.ID(), State: state})
}

func (s *Server) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.getSession(w, r)
	if !ok {
		return
	}
	state := ctrl.ResetToNew()
	s.writeJSON(w, http.StatusOK, sessionResponse{ID: ctrl.ID(), State: state})
}

// handleSessionSave persists the session's calculation and keeps the
// session open on the saved record. A failed save leaves the form state
// untouched so the user can retry.
func (s *Server) handleSessionSave(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.getSession(w, r)
	if !ok {
		return
	}
	cat, err := s.resolver.Get(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	defaults := s.settings.Defaults(r.Context())

	calc, err := s.gateway.Save(r.Context(), ctrl.State(), cat, defaults)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	ctrl.Load(calc)
	s.writeJSON(w, http.StatusOK, calc)
}

func (s *Server) handleSessionExport(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.getSession(w, r)
	if !ok {
		return
	}
	cat, err := s.resolver.Get(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	defaults := s.settings.Defaults(r.Context())

	snapshot := export.FromSession(ctrl.State(), cat, defaults, time.Now())
	s.writeInvoice(w, snapshot, exportFilename("invoice-draft"))
}

func exportSnapshotFromCalculation(calc model.CostCalculation) export.Snapshot {
	return export.FromCalculation(calc, time.Now())
}

func (s *Server) writeInvoice(w http.ResponseWriter, snapshot export.Snapshot, filename string) {
	f, err := export.RenderInvoice(snapshot)
	if err != nil {
		s.log.Error("failed to render invoice", zap.Error(err))
		s.writeMessage(w, http.StatusInternalServerError, "failed to render invoice")
		return
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		s.log.Error("failed to write invoice", zap.Error(err))
		s.writeMessage(w, http.StatusInternalServerError, "failed to write invoice")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(buf.Bytes())
}

// fieldEvents maps a JSON patch body onto controller events. Unknown field
// names are rejected so typos cannot silently drop edits.
func fieldEvents(body map[string]json.RawMessage) ([]session.Event, error) {
	var evs []session.Event
	for key, raw := range body {
		switch key {
		case "printer_id", "filament_id":
			var v *int64
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, &fieldError{key}
			}
			evs = append(evs, session.SetRef{Field: session.RefField(key), Value: v})
		case "print_time_hours", "labor_time_hours", "filament_weight_g",
			"energy_cost_per_kwh", "labor_cost_per_hour", "consumables_cost",
			"failure_rate", "markup_rate", "final_price":
			var v *float64
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, &fieldError{key}
			}
			evs = append(evs, session.SetNumber{Field: session.NumberField(key), Value: v})
		case "currency", "item_names", "notes":
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, &fieldError{key}
			}
			evs = append(evs, session.SetText{Field: session.TextField(key), Value: v})
		default:
			return nil, &fieldError{key}
		}
	}
	return evs, nil
}

type fieldError struct {
	field string
}

func (e *fieldError) Error() string {
	return "unknown or invalid form field: " + e.field
}
