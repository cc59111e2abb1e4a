// AngelaMos | 2026
// handler_test.go

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok() CheckFunc { return func(context.Context) error { return nil } }

func failing() CheckFunc {
	return func(context.Context) error { return errors.New("down") }
}

func serve(t *testing.T, h *Handler, path string) (*httptest.ResponseRecorder, ReadinessResponse) {
	t.Helper()
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body ReadinessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec, body
}

func TestReadinessAllHealthy(t *testing.T) {
	h := NewHandler(ok(), ok())
	h.AddCheck("queue", ok())

	rec, body := serve(t, h, "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body.Status)
	require.Len(t, body.Checks, 3)
	assert.Equal(t, "queue", body.Checks[2].Name)
}

func TestReadinessDegraded(t *testing.T) {
	h := NewHandler(ok(), failing())

	rec, body := serve(t, h, "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", body.Status)
	assert.False(t, body.Checks[1].Healthy)
	assert.Equal(t, "ping failed", body.Checks[1].Message)
}

func TestShutdownFlipsLiveness(t *testing.T) {
	h := NewHandler(ok(), ok())
	h.SetShutdown(true)

	rec, body := serve(t, h, "/healthz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "shutting_down", body.Status)
}

func TestNotReadyUntilMarked(t *testing.T) {
	h := NewHandler(ok(), ok())
	h.SetReady(false)

	rec, body := serve(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", body.Status)

	rec, _ = serve(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	h.SetReady(true)
	rec, _ = serve(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}
