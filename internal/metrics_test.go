package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, router http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := NewMetrics()
	router := chi.NewRouter()
	router.Use(metrics.Middleware())
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	router.Get("/metrics", metrics.Handler().ServeHTTP)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	body := scrape(t, router)
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, "http_request_duration_seconds")
	assert.Contains(t, body, `path="/health"`)
	assert.Contains(t, body, `status="200"`)
}

func TestMetricsWithChiRoutePatterns(t *testing.T) {
	metrics := NewMetrics()
	router := chi.NewRouter()
	router.Use(metrics.Middleware())
	router.Route("/datacenterasset", func(r chi.Router) {
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	})
	router.Get("/metrics", metrics.Handler().ServeHTTP)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/datacenterasset/123", nil))

	body := scrape(t, router)
	assert.Contains(t, body, `path="/datacenterasset/{id}"`)
	assert.Contains(t, body, `status="404"`)
	assert.NotContains(t, body, `path="/datacenterasset/123"`)
}

func TestMetricsObjectOp(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObjectOp("datacenterasset", "create")
	metrics.ObjectOp("datacenterasset", "create")
	metrics.ObjectOp("domain", "delete")

	body := scrape(t, metrics.Handler())
	assert.Contains(t, body, `inventory_objects_total{kind="datacenterasset",op="create"} 2`)
	assert.Contains(t, body, `inventory_objects_total{kind="domain",op="delete"} 1`)
}

func TestMetricsObjectOpNil(t *testing.T) {
	var metrics *Metrics
	assert.NotPanics(t, func() { metrics.ObjectOp("domain", "create") })
}
