package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"afyacare.app/client/internal/backend"
)

type errorResponse struct {
	Error    string   `json:"error"`
	Code     string   `json:"code,omitempty"`
	Field    string   `json:"field,omitempty"`
	Messages []string `json:"messages,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// statusFor maps the client error taxonomy onto gateway responses.
func statusFor(err error) (int, errorResponse) {
	var (
		ve   *backend.ValidationError
		ae   *backend.AuthenticationError
		se   *backend.SessionExpiredError
		sve  *backend.ServerValidationError
		nerr *backend.NetworkError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorResponse{Error: ve.Message, Code: "validation", Field: ve.Field}
	case errors.As(err, &se):
		return http.StatusUnauthorized, errorResponse{Error: se.Error(), Code: "session_expired"}
	case errors.As(err, &ae):
		return http.StatusUnauthorized, errorResponse{Error: ae.Error(), Code: "authentication_failed"}
	case errors.As(err, &sve):
		status := sve.Status
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		return status, errorResponse{Error: sve.Error(), Code: "server_error", Messages: sve.Messages}
	case errors.As(err, &nerr):
		return http.StatusBadGateway, errorResponse{Error: "backend unreachable", Code: "network"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal error"}
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		h.logger.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

// decodeBody reads a JSON request body into v. An empty body is allowed when
// optional is true.
func decodeBody(r *http.Request, v any, optional bool) error {
	if r.Body == nil || r.Body == http.NoBody {
		if optional {
			return nil
		}
		return &backend.ValidationError{Message: "request body is required"}
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return &backend.ValidationError{Message: "invalid request body: " + err.Error()}
	}
	return nil
}
