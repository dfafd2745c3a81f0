package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/commerce-analytics/internal/logger"
)

func TestRecovery_OpaqueBody(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	h := Recovery(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("secret connection string leaked")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sales/daily", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret")
	assert.Contains(t, buf.String(), "secret connection string leaked")
	assert.Contains(t, buf.String(), `"stack"`)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
}

func TestLogger_StoresRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	h := RequestID(Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.FromContext(r.Context())
		reqLog.Info().Msg("inside handler")
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-7")
	h.ServeHTTP(httptest.NewRecorder(), req)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var inner, access map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &inner))
	require.NoError(t, json.Unmarshal(lines[1], &access))
	assert.Equal(t, "req-7", inner["request_id"])
	assert.Equal(t, "req-7", access["request_id"])
	assert.Equal(t, float64(http.StatusTeapot), access["status"])
	assert.Equal(t, "/health", access["path"])
	assert.Equal(t, "warn", access["level"])
}

func TestWriteAPIError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAPIError(rec, http.StatusBadRequest, "Missing parameters", "start_date is required")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Missing parameters", body.Error)
	assert.Equal(t, "start_date is required", body.Message)
	assert.Equal(t, 400, body.Code)
	assert.NotEmpty(t, body.Timestamp)
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/sales/daily", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.False(t, called)
}
