package server

import (
	"net/http"
	"strconv"

	"github.com/unklstewy/viewscout/internal/analysis"
	"github.com/unklstewy/viewscout/internal/db"
	"github.com/unklstewy/viewscout/internal/logging"
	"github.com/unklstewy/viewscout/pkg/config"
)

// viewshedRequest is the body of POST /api/v1/viewshed. Omitted optional
// fields take the configured defaults.
type viewshedRequest struct {
	Lat            *float64 `json:"lat" validate:"required,latitude"`
	Lon            *float64 `json:"lon" validate:"required,longitude"`
	ObserverHeight *float64 `json:"observerHeight" validate:"omitempty,gte=0"`
	Radius         *float64 `json:"radius" validate:"omitempty,gt=0"`
	Azimuths       *int     `json:"azimuths" validate:"omitempty,gte=1"`
	Samples        *int     `json:"samples" validate:"omitempty,gte=1"`
}

// toRequest fills in defaults from the service configuration.
func (v viewshedRequest) toRequest(svc *analysis.Service) analysis.Request {
	req := svc.NewRequest(*v.Lat, *v.Lon)
	if v.ObserverHeight != nil {
		req.ObserverHeight = *v.ObserverHeight
	}
	if v.Radius != nil {
		req.RadiusMeters = *v.Radius
	}
	if v.Azimuths != nil {
		req.NumAzimuths = *v.Azimuths
	}
	if v.Samples != nil {
		req.NumSamplesPerRay = *v.Samples
	}
	return req
}

// handleViewshed runs one analysis.
// ?format=geojson returns the overlay FeatureCollection instead of the report.
func (s *Server) handleViewshed(w http.ResponseWriter, r *http.Request) {
	var body viewshedRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	report, err := s.run(r, body.toRequest(s.analysis))
	if err != nil {
		respondAnalysisError(w, r, err)
		return
	}
	s.respondReport(w, r, report)
}

func (s *Server) respondReport(w http.ResponseWriter, r *http.Request, report *analysis.Report) {
	if r.URL.Query().Get("format") != "geojson" {
		respondJSON(w, http.StatusOK, report)
		return
	}

	body, err := reportGeoJSON(report).MarshalJSON()
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal GeoJSON overlay")
		respondError(w, http.StatusInternalServerError, "internal", "failed to encode overlay")
		return
	}
	writeBody(w, http.StatusOK, "application/geo+json", body)
}

// profileQuery holds the parsed query of GET /api/v1/profile.
type profileQuery struct {
	FromLat *float64 `validate:"required,latitude"`
	FromLon *float64 `validate:"required,longitude"`
	ToLat   *float64 `validate:"required,latitude"`
	ToLon   *float64 `validate:"required,longitude"`
	Samples int      `validate:"gte=0"`
}

// handleProfile samples the terrain between two points.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var pq profileQuery
	var err error
	for _, f := range []struct {
		name string
		dst  **float64
	}{
		{"fromLat", &pq.FromLat},
		{"fromLon", &pq.FromLon},
		{"toLat", &pq.ToLat},
		{"toLon", &pq.ToLon},
	} {
		if *f.dst, err = queryFloat(q.Get(f.name)); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_query", f.name+" must be a number")
			return
		}
	}
	if raw := q.Get("samples"); raw != "" {
		if pq.Samples, err = strconv.Atoi(raw); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_query", "samples must be an integer")
			return
		}
	}
	if !validate(w, &pq) {
		return
	}

	profile, err := s.analysis.Profile(r.Context(), analysis.ProfileRequest{
		FromLat:    *pq.FromLat,
		FromLon:    *pq.FromLon,
		ToLat:      *pq.ToLat,
		ToLon:      *pq.ToLon,
		NumSamples: pq.Samples,
	})
	if err != nil {
		respondAnalysisError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"samples": len(profile) - 1,
		"points":  profile,
	})
}

// queryFloat parses an optional query value; empty yields nil.
func queryFloat(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// handleHeights returns the observer height menu.
func (s *Server) handleHeights(w http.ResponseWriter, r *http.Request) {
	cfg := s.analysis.Config()
	respondJSON(w, http.StatusOK, struct {
		Default float64               `json:"default"`
		Heights []config.HeightPreset `json:"heights"`
	}{
		Default: cfg.ObserverHeight,
		Heights: cfg.Heights,
	})
}

// handleHealth reports service and database health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":   "ok",
		"database": "disabled",
	}

	status := http.StatusOK
	if s.db != nil {
		if db.HealthCheck(r.Context(), s.db) {
			resp["database"] = "ok"
			if stats, err := s.db.GetStats(r.Context()); err == nil {
				resp["stats"] = stats
			}
		} else {
			resp["status"] = "degraded"
			resp["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	respondJSON(w, status, resp)
}
