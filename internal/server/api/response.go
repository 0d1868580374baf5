// Package api implements the REST handlers of the formcoach server.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/app"
	"github.com/ayusman/formcoach/internal/apperr"
	"github.com/ayusman/formcoach/internal/session"
	"github.com/ayusman/formcoach/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.WithError(err).Warn("failed to encode response")
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeErr maps err to a status code and writes it.
func writeErr(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
	}

	resp := errorResponse{Error: err.Error()}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		resp.Code = string(appErr.Code)
	}
	writeJSON(w, status, resp)
}

// StatusFor returns the HTTP status for an error returned by the app layer.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, app.ErrSessionNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoExercises), errors.Is(err, session.ErrOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrClosed):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoCounter):
		return http.StatusUnprocessableEntity
	}

	switch apperr.GetCode(err) {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeConflict:
		return http.StatusConflict
	case apperr.CodeDispatchBusy:
		return http.StatusServiceUnavailable
	case apperr.CodeDetectorStart, apperr.CodeDetectorStream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
