package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/spooldash/spooldash/internal/store"
)

type vendorBody struct {
	Name    *string `json:"name"`
	Comment *string `json:"comment"`
}

func (b vendorBody) params() store.VendorParams {
	return store.VendorParams{Name: b.Name, Comment: b.Comment}
}

func (s *Server) handleVendorList(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	vendors, total, err := s.store.ListVendors(r.Context(), page, pageSize)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	totalCountHeader(w, total)
	s.writeJSON(w, http.StatusOK, vendors)
}

func (s *Server) handleVendorCreate(w http.ResponseWriter, r *http.Request) {
	var body vendorBody
	if !s.decode(w, r, &body) {
		return
	}
	if body.Name == nil || *body.Name == "" {
		s.writeMessage(w, http.StatusBadRequest, "vendor name is required")
		return
	}
	v, err := s.store.CreateVendor(r.Context(), body.params())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleVendorGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid vendor id")
		return
	}
	v, err := s.store.GetVendor(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleVendorUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid vendor id")
		return
	}
	var body vendorBody
	if !s.decode(w, r, &body) {
		return
	}
	v, err := s.store.UpdateVendor(r.Context(), id, body.params())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleVendorDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid vendor id")
		return
	}
	if err := s.store.DeleteVendor(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, message{Message: "deleted"})
}

type printerBody struct {
	Name                    *string  `json:"name"`
	PowerWatts              *float64 `json:"power_watts"`
	DepreciationCostPerHour *float64 `json:"depreciation_cost_per_hour"`
	Comment                 *string  `json:"comment"`
}

func (b printerBody) params() store.PrinterParams {
	return store.PrinterParams{
		Name:                    b.Name,
		PowerWatts:              b.PowerWatts,
		DepreciationCostPerHour: b.DepreciationCostPerHour,
		Comment:                 b.Comment,
	}
}

func (s *Server) handlePrinterList(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	printers, total, err := s.store.ListPrinters(r.Context(), page, pageSize)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	totalCountHeader(w, total)
	s.writeJSON(w, http.StatusOK, printers)
}

func (s *Server) handlePrinterCreate(w http.ResponseWriter, r *http.Request) {
	var body printerBody
	if !s.decode(w, r, &body) {
		return
	}
	if body.Name == nil || *body.Name == "" {
		s.writeMessage(w, http.StatusBadRequest, "printer name is required")
		return
	}
	p, err := s.store.CreatePrinter(r.Context(), body.params())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handlePrinterGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid printer id")
		return
	}
	p, err := s.store.GetPrinter(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePrinterUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid printer id")
		return
	}
	var body printerBody
	if !s.decode(w, r, &body) {
		return
	}
	p, err := s.store.UpdatePrinter(r.Context(), id, body.params())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePrinterDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid printer id")
		return
	}
	if err := s.store.DeletePrinter(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, message{Message: "deleted"})
}

type filamentBody struct {
	Name     *string  `json:"name"`
	VendorID *int64   `json:"vendor_id"`
	Material *string  `json:"material"`
	Price    *float64 `json:"price"`
	Weight   *float64 `json:"weight"`
	Comment  *string  `json:"comment"`
}

func (b filamentBody) params() store.FilamentParams {
	return store.FilamentParams{
		Name:     b.Name,
		VendorID: b.VendorID,
		Material: b.Material,
		Price:    b.Price,
		Weight:   b.Weight,
		Comment:  b.Comment,
	}
}

func (s *Server) handleFilamentList(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	filaments, total, err := s.store.ListFilaments(r.Context(), page, pageSize)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	totalCountHeader(w, total)
	s.writeJSON(w, http.StatusOK, filaments)
}

func (s *Server) handleFilamentGroups(w http.ResponseWriter, r *http.Request) {
	cat, err := s.resolver.Get(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cat.Groups)
}

func (s *Server) handleFilamentCreate(w http.ResponseWriter, r *http.Request) {
	var body filamentBody
	if !s.decode(w, r, &body) {
		return
	}
	if body.Name == nil || *body.Name == "" {
		s.writeMessage(w, http.StatusBadRequest, "filament name is required")
		return
	}
	f, err := s.store.CreateFilament(r.Context(), body.params())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleFilamentGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid filament id")
		return
	}
	f, err := s.store.GetFilament(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleFilamentUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid filament id")
		return
	}
	var body filamentBody
	if !s.decode(w, r, &body) {
		return
	}
	f, err := s.store.UpdateFilament(r.Context(), id, body.params())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleFilamentDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid filament id")
		return
	}
	if err := s.store.DeleteFilament(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, message{Message: "deleted"})
}

type settingBody struct {
	Value string `json:"value"`
}

func (s *Server) handleSettingList(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.AllSettings(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleSettingGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, ok, err := s.store.GetSetting(r.Context(), key)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if !ok {
		s.writeMessage(w, http.StatusNotFound, "setting not found: "+key)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

func (s *Server) handleSettingSet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var body settingBody
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.store.SetSetting(r.Context(), key, body.Value); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": body.Value})
}
