// Package api exposes the REST surface: resource CRUD, the calc-session
// endpoints driving the costing form, invoice export and the SSE live
// update stream.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/spooldash/spooldash/internal/catalog"
	"github.com/spooldash/spooldash/internal/events"
	"github.com/spooldash/spooldash/internal/gateway"
	"github.com/spooldash/spooldash/internal/session"
	"github.com/spooldash/spooldash/internal/settings"
	"github.com/spooldash/spooldash/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Server wires the handlers to their collaborators.
type Server struct {
	store    *store.Store
	settings *settings.Settings
	resolver *catalog.Resolver
	gateway  *gateway.Gateway
	sessions *session.Manager
	bus      *events.Bus
	log      *zap.Logger
	currency string
}

// New returns a server ready to route.
func New(st *store.Store, set *settings.Settings, resolver *catalog.Resolver,
	gw *gateway.Gateway, sessions *session.Manager, bus *events.Bus,
	log *zap.Logger, currency string) *Server {
	return &Server{
		store:    st,
		settings: set,
		resolver: resolver,
		gateway:  gw,
		sessions: sessions,
		bus:      bus,
		log:      log,
		currency: currency,
	}
}

// Router builds the chi router for the whole API.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/vendor", func(r chi.Router) {
			r.Get("/", s.handleVendorList)
			r.Post("/", s.handleVendorCreate)
			r.Get("/{id}", s.handleVendorGet)
			r.Patch("/{id}", s.handleVendorUpdate)
			r.Delete("/{id}", s.handleVendorDelete)
		})
		r.Route("/printer", func(r chi.Router) {
			r.Get("/", s.handlePrinterList)
			r.Post("/", s.handlePrinterCreate)
			r.Get("/{id}", s.handlePrinterGet)
			r.Patch("/{id}", s.handlePrinterUpdate)
			r.Delete("/{id}", s.handlePrinterDelete)
		})
		r.Route("/filament", func(r chi.Router) {
			r.Get("/", s.handleFilamentList)
			r.Post("/", s.handleFilamentCreate)
			r.Get("/group", s.handleFilamentGroups)
			r.Get("/{id}", s.handleFilamentGet)
			r.Patch("/{id}", s.handleFilamentUpdate)
			r.Delete("/{id}", s.handleFilamentDelete)
		})
		r.Route("/cost", func(r chi.Router) {
			r.Get("/", s.handleCostList)
			r.Post("/", s.handleCostCreate)
			r.Get("/{id}", s.handleCostGet)
			r.Patch("/{id}", s.handleCostUpdate)
			r.Delete("/{id}", s.handleCostDelete)
			r.Get("/{id}/export", s.handleCostExport)
		})
		r.Route("/setting", func(r chi.Router) {
			r.Get("/", s.handleSettingList)
			r.Get("/{key}", s.handleSettingGet)
			r.Post("/{key}", s.handleSettingSet)
		})
		r.Route("/calc/session", func(r chi.Router) {
			r.Post("/", s.handleSessionCreate)
			r.Get("/{id}", s.handleSessionGet)
			r.Patch("/{id}", s.handleSessionPatch)
			r.Delete("/{id}", s.handleSessionDelete)
			r.Post("/{id}/load/{calcID}", s.handleSessionLoad)
			r.Post("/{id}/reset", s.handleSessionReset)
			r.Post("/{id}/save", s.handleSessionSave)
			r.Get("/{id}/export", s.handleSessionExport)
		})
		r.Get("/events", s.handleEvents)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type message struct {
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeMessage(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, message{Message: msg})
}

// writeStoreError maps persistence errors to responses. Missing rows are
// 404s, validation problems 400s, anything else a logged 500. Callers keep
// their in-memory state so the user can retry.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	var verr *gateway.ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeMessage(w, http.StatusNotFound, err.Error())
	case errors.As(err, &verr):
		s.writeMessage(w, http.StatusBadRequest, verr.Error())
	default:
		s.log.Error("request failed", zap.Error(err))
		s.writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// pageParams reads ?page and ?page_size with the catalog fetch cap applied.
func pageParams(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// csvIDs parses a comma-separated id list such as "1,2,-1".
func csvIDs(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func totalCountHeader(w http.ResponseWriter, total int) {
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
}
