package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/unklstewy/viewscout/internal/db"
	"github.com/unklstewy/viewscout/internal/logging"
)

// viewpointRequest is the body of viewpoint create and update calls.
type viewpointRequest struct {
	Name           string   `json:"name" validate:"required,max=200"`
	Latitude       *float64 `json:"latitude" validate:"required,latitude"`
	Longitude      *float64 `json:"longitude" validate:"required,longitude"`
	ObserverHeight *float64 `json:"observerHeight" validate:"omitempty,gte=0"`
	Notes          string   `json:"notes" validate:"max=2000"`
}

func (s *Server) toViewpoint(req viewpointRequest) *db.Viewpoint {
	v := &db.Viewpoint{
		Name:           req.Name,
		Latitude:       *req.Latitude,
		Longitude:      *req.Longitude,
		ObserverHeight: s.analysis.Config().ObserverHeight,
		Notes:          req.Notes,
	}
	if req.ObserverHeight != nil {
		v.ObserverHeight = *req.ObserverHeight
	}
	return v
}

// viewpointID parses the {id} URL parameter. On failure it writes a 400
// response and returns false.
func viewpointID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_id", "invalid viewpoint ID")
		return 0, false
	}
	return id, true
}

func respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	logging.Error().Err(err).Msg("viewpoint store failed")
	respondError(w, http.StatusInternalServerError, "internal", "viewpoint storage failed")
}

// handleListViewpoints returns all saved viewpoints
func (s *Server) handleListViewpoints(w http.ResponseWriter, r *http.Request) {
	points, err := s.viewpoints.List(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if points == nil {
		points = []db.Viewpoint{}
	}
	respondJSON(w, http.StatusOK, points)
}

// handleGetViewpoint returns one viewpoint
func (s *Server) handleGetViewpoint(w http.ResponseWriter, r *http.Request) {
	id, ok := viewpointID(w, r)
	if !ok {
		return
	}
	v, err := s.viewpoints.GetByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// handleCreateViewpoint saves a new viewpoint
func (s *Server) handleCreateViewpoint(w http.ResponseWriter, r *http.Request) {
	var req viewpointRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	v := s.toViewpoint(req)
	if err := s.viewpoints.Create(r.Context(), v); err != nil {
		respondStoreError(w, err)
		return
	}

	logging.Info().Int64("id", v.ID).Str("name", v.Name).Msg("viewpoint created")
	respondJSON(w, http.StatusCreated, v)
}

// handleUpdateViewpoint replaces a viewpoint's fields
func (s *Server) handleUpdateViewpoint(w http.ResponseWriter, r *http.Request) {
	id, ok := viewpointID(w, r)
	if !ok {
		return
	}
	var req viewpointRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	v := s.toViewpoint(req)
	v.ID = id
	if err := s.viewpoints.Update(r.Context(), v); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// handleDeleteViewpoint removes a viewpoint
func (s *Server) handleDeleteViewpoint(w http.ResponseWriter, r *http.Request) {
	id, ok := viewpointID(w, r)
	if !ok {
		return
	}
	if err := s.viewpoints.Delete(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAnalyzeViewpoint runs an analysis from a saved viewpoint using the
// configured defaults and the viewpoint's observer height.
func (s *Server) handleAnalyzeViewpoint(w http.ResponseWriter, r *http.Request) {
	id, ok := viewpointID(w, r)
	if !ok {
		return
	}
	v, err := s.viewpoints.GetByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	req := s.analysis.NewRequest(v.Latitude, v.Longitude)
	req.ObserverHeight = v.ObserverHeight

	report, err := s.run(r, req)
	if err != nil {
		respondAnalysisError(w, r, err)
		return
	}
	s.respondReport(w, r, report)
}
