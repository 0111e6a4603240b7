package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/unklstewy/viewscout/internal/analysis"
	"github.com/unklstewy/viewscout/internal/db"
	"github.com/unklstewy/viewscout/internal/logging"
	"github.com/unklstewy/viewscout/internal/validation"
	"github.com/unklstewy/viewscout/pkg/viewshed"
)

// terrainFailureMessage is shown to clients when sampling fails.
const terrainFailureMessage = "analysis failed — terrain data unavailable"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// apiError is the body of every error response.
type apiError struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeBody(w, status, "application/json", body)
}

func writeBody(w http.ResponseWriter, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Debug().Err(err).Msg("failed to write response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]apiError{
		"error": {Code: code, Message: message},
	})
}

// decodeJSON reads a JSON body into dst and validates it. On failure it
// writes a 400 response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "invalid request body: "+err.Error())
		return false
	}
	return validate(w, dst)
}

// validate checks struct tags on v. On failure it writes a 400 response
// listing the failed fields and returns false.
func validate(w http.ResponseWriter, v any) bool {
	err := validation.Struct(v)
	if err == nil {
		return true
	}

	var verr *validation.Error
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusBadRequest, map[string]apiError{
			"error": {Code: "validation_failed", Message: verr.Error(), Fields: verr.Fields},
		})
		return false
	}
	respondError(w, http.StatusBadRequest, "validation_failed", err.Error())
	return false
}

// respondAnalysisError maps analysis and storage errors to HTTP responses.
func respondAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, viewshed.ErrInvalidParams):
		respondError(w, http.StatusBadRequest, "invalid_params", err.Error())
	case errors.Is(err, analysis.ErrSuperseded):
		respondError(w, http.StatusConflict, "superseded", "analysis superseded by a newer request")
	case errors.Is(err, db.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		// client went away; nobody reads the response
		logging.Debug().Str("path", r.URL.Path).Msg("request cancelled by client")
	default:
		logging.Error().Err(err).Str("path", r.URL.Path).Msg("analysis failed")
		respondError(w, http.StatusBadGateway, "terrain_unavailable", terrainFailureMessage)
	}
}
