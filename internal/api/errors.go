package api

import (
	"errors"
	"net/http"
	"strings"

	"duck-gateway/internal/domain"
)

// statusFromError maps domain errors to HTTP status codes. Initialization
// and engine failures are server errors.
func statusFromError(err error) int {
	var validation *domain.ValidationError
	var rejected *domain.QueryRejectedError

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &rejected):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

var sanitizeReplacer = strings.NewReplacer(
	"\r\n", " ",
	"\n", " ",
	"\r", " ",
	"\t", " ",
	`"`, "",
	"`", "",
	"^", "",
)

// Sanitize flattens an engine message into a single line safe to embed in a
// JSON string: line breaks become spaces, quote and caret characters are
// removed, and runs of whitespace collapse.
func Sanitize(msg string) string {
	out := strings.Join(strings.Fields(sanitizeReplacer.Replace(msg)), " ")
	if out == "" {
		return "Unknown error"
	}
	return out
}
