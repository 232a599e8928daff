package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"callsheet.org/internal/auth"
	"callsheet.org/internal/production"
)

// All stage failures funnel through this file so the mapping from
// failure kind to HTTP response lives in exactly one place.

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeFailure emits the uniform error envelope.
func writeFailure(w http.ResponseWriter, code int, message string, extra map[string]any) {
	payload := map[string]any{
		"success": false,
		"message": message,
	}
	for k, v := range extra {
		payload[k] = v
	}
	writeJSON(w, code, payload)
}

// statusForError maps a stage failure to its HTTP status.
func statusForError(err error) int {
	switch {
	case errors.Is(err, auth.ErrMissingCredential),
		errors.Is(err, auth.ErrInvalidCredential),
		errors.Is(err, auth.ErrAccountNotFound),
		errors.Is(err, auth.ErrAccountDeactivated),
		errors.Is(err, auth.ErrStaleCredential),
		errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrInsufficientRole),
		errors.Is(err, auth.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrResourceNotFound),
		errors.Is(err, production.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, production.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// messageForError is the client-facing wording for a stage failure.
func messageForError(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingCredential):
		return "authentication credential is missing"
	case errors.Is(err, auth.ErrInvalidCredential):
		return "authentication credential is invalid or expired"
	case errors.Is(err, auth.ErrAccountNotFound),
		errors.Is(err, auth.ErrAccountDeactivated),
		errors.Is(err, auth.ErrStaleCredential):
		return "account cannot be authenticated, please log in again"
	case errors.Is(err, auth.ErrUnauthenticated):
		return "authentication required"
	case errors.Is(err, auth.ErrInsufficientRole):
		return "you do not have permission to perform this action"
	case errors.Is(err, auth.ErrAccessDenied):
		return "access denied"
	case errors.Is(err, auth.ErrResourceNotFound), errors.Is(err, production.ErrNotFound):
		return "resource not found"
	default:
		return "internal error"
	}
}

// failRequest translates a stage failure into a response. Unexpected
// faults become an opaque 500; detail is attached only outside
// production builds.
func (a *API) failRequest(w http.ResponseWriter, err error) {
	code := statusForError(err)
	var extra map[string]any
	if code == http.StatusInternalServerError && a.env != envProduction {
		extra = map[string]any{"error": err.Error()}
	}
	writeFailure(w, code, messageForError(err), extra)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
