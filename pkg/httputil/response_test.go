package httputil

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	err := WriteJSON(rec, 200, map[string]string{"message": "ok"})
	require.NoError(t, err)

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["message"])
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w *httptest.ResponseRecorder)
		status int
	}{
		{"bad request", func(w *httptest.ResponseRecorder) { WriteBadRequest(w, "bad") }, 400},
		{"unauthorized", func(w *httptest.ResponseRecorder) { WriteUnauthorized(w, "bad") }, 401},
		{"forbidden", func(w *httptest.ResponseRecorder) { WriteForbidden(w, "bad") }, 403},
		{"not found", func(w *httptest.ResponseRecorder) { WriteNotFoundError(w, "bad") }, 404},
		{"conflict", func(w *httptest.ResponseRecorder) { WriteConflict(w, "bad") }, 409},
		{"internal", func(w *httptest.ResponseRecorder) { WriteInternalError(w, "bad") }, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)

			assert.Equal(t, tt.status, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "bad", body["error"])
		})
	}
}

func TestWriteForbiddenPermission(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteForbiddenPermission(rec, "Forbidden: You do not have permission to perform this action", "write:users")

	assert.Equal(t, 403, rec.Code)

	var body ForbiddenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "write:users", body.Required)
	assert.Contains(t, body.Error, "Forbidden")
}
