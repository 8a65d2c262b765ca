// Package api serves the gateway's HTTP surface.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"duck-gateway/internal/engine"
	"duck-gateway/internal/middleware"
)

// maxQueryBodyBytes bounds POST /query bodies.
const maxQueryBodyBytes = 1 << 20

const missingQueryMessage = "Missing query property in request body!"

// Handler serves the gateway routes. The engine session is taken from the
// request context.
type Handler struct {
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger.With("component", "api")}
}

// Root answers GET /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"message": "Welcome to DuckDB API"})
}

// Health answers GET /_health with a plain-text OK. It does not touch the
// engine.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NotFound answers unknown routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusNotFound, map[string]any{"message": "Not Found", "ok": false})
}

// Query answers POST /query with {"query": "<sql>"}.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBodyBytes)

	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	raw, ok := body["query"]
	if !ok {
		writeError(w, r, http.StatusBadRequest, missingQueryMessage)
		return
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil || string(raw) == "null" {
		writeError(w, r, http.StatusBadRequest, "query property must be a string")
		return
	}

	session, ok := engine.SessionFromContext(r.Context())
	if !ok {
		h.logger.Error("no engine session in request context")
		writeError(w, r, http.StatusInternalServerError, "engine session unavailable")
		return
	}

	rows, err := session.Query(r.Context(), text)
	if err != nil {
		status := statusFromError(err)
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "query failed",
			"status", status,
			"error", err,
			"request_id", middleware.RequestIDFromContext(r.Context()))
		writeError(w, r, status, Sanitize(err.Error()))
		return
	}
	writeJSON(w, r, http.StatusOK, rows)
}
