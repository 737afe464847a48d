package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobMetrics(t *testing.T) {
	metrics := NewMetrics()
	_ = metrics.Jobs().Track("rbac:role_sync").End(nil)

	body := scrape(t, metrics)
	assert.Contains(t, body, "maintrack_jobs_total")
	assert.Contains(t, body, "go_goroutines")
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `maintrack_http_requests_total{code="418",route="/test"} 1`)
	assert.Contains(t, body, `maintrack_http_request_duration_seconds_bucket{route="/test"`)
}

func TestObserveDecision(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveDecision("machine-list", true)
	metrics.ObserveDecision("machine-list", true)
	metrics.ObserveDecision("admin-roles", false)
	metrics.ObserveDecision("", false)

	body := scrape(t, metrics)
	assert.Contains(t, body, `maintrack_authz_decisions_total{decision="allow",token="machine-list"} 2`)
	assert.Contains(t, body, `maintrack_authz_decisions_total{decision="deny",token="admin-roles"} 1`)
	assert.Contains(t, body, `maintrack_authz_decisions_total{decision="deny",token="none"} 1`)
	assert.False(t, strings.Contains(body, `decision="allow",token="admin-roles"`))

	var nilMetrics *Metrics
	nilMetrics.ObserveDecision("x", true)
}
