package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureRequestID(t *testing.T, header string) (ctxID, respID string) {
	t.Helper()
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/query", nil)
	if header != "" {
		req.Header.Set(RequestIDHeader, header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	return ctxID, rec.Header().Get(RequestIDHeader)
}

func TestRequestID_Generated(t *testing.T) {
	ctxID, respID := captureRequestID(t, "")

	assert.Equal(t, ctxID, respID)
	_, err := uuid.Parse(ctxID)
	assert.NoError(t, err, "generated ids are UUIDs")
}

func TestRequestID_ClientSupplied(t *testing.T) {
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{name: "plain", header: "req-42", keep: true},
		{name: "dotted_and_underscored", header: "edge.node_7-abc", keep: true},
		{name: "max_length", header: strings.Repeat("x", 128), keep: true},
		{name: "too_long", header: strings.Repeat("x", 129)},
		{name: "newline", header: "id\nlevel=ERROR"},
		{name: "carriage_return", header: "id\rforged"},
		{name: "space", header: "two words"},
		{name: "quote", header: `id"x`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctxID, respID := captureRequestID(t, tt.header)
			assert.Equal(t, ctxID, respID)
			if tt.keep {
				assert.Equal(t, tt.header, ctxID)
				return
			}
			assert.NotEqual(t, tt.header, ctxID)
			_, err := uuid.Parse(ctxID)
			assert.NoError(t, err)
		})
	}
}

func TestRequestIDFromContext_Missing(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
