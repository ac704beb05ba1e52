package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/FocuswithJustin/LyricScope/core/errors"
	"github.com/FocuswithJustin/LyricScope/internal/logging"
)

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

func newMeta(r *http.Request) *APIMeta {
	meta := &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if r != nil {
		meta.RequestID = logging.GetRequestID(r.Context())
	}
	return meta
}

func respond(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, APIResponse{Success: true, Data: data, Meta: newMeta(nil)})
}

func respondList(w http.ResponseWriter, r *http.Request, data any, total int) {
	meta := newMeta(r)
	meta.Total = total
	writeEnvelope(w, http.StatusOK, APIResponse{Success: true, Data: data, Meta: meta})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeEnvelope(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    newMeta(nil),
	})
}

// respondErr maps err onto a status code and error envelope. Internal
// failures are logged and reported without detail.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.Code(err)
	status := statusFor(code)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logging.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		message = "internal error"
	}

	meta := newMeta(r)
	writeEnvelope(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    meta,
	})
}

func statusFor(code string) int {
	switch code {
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeInvalid:
		return http.StatusBadRequest
	case errors.CodeConflict:
		return http.StatusConflict
	case errors.CodeUnsupported:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

func writeEnvelope(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only "+allowed+" allowed")
}
