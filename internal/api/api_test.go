package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminahq/observe/internal/alerting"
	"github.com/luminahq/observe/internal/apicall"
	"github.com/luminahq/observe/internal/config"
	"github.com/luminahq/observe/internal/dbobs"
	"github.com/luminahq/observe/internal/logging"
	"github.com/luminahq/observe/internal/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubPinger struct{ err error }

func (p *stubPinger) Ping(context.Context) error { return p.err }

func testDeps(t *testing.T, env string, db dbobs.Pinger) Deps {
	t.Helper()
	logger := logging.New(logging.Options{Level: logging.LevelError, Out: io.Discard, ErrOut: io.Discard})
	registry := metrics.NewRegistry()
	registry.RegisterDefaults()
	cfg := &config.Config{}
	cfg.Service.Name = "observe-test"
	cfg.Service.Env = env
	return Deps{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Engine:   alerting.NewEngine(logger, registry),
		Stats:    dbobs.NewStats(0),
		Health:   apicall.NewHealthTracker(),
		DB:       db,
	}
}

func testRouter(deps Deps) *gin.Engine {
	router := gin.New()
	New(deps).RegisterRoutes(router)
	return router
}

func doRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestMetricsEndpoint(t *testing.T) {
	deps := testDeps(t, "test", nil)
	deps.Registry.IncCounter("http_requests_total",
		metrics.Labels{"method": "GET", "path": "/x", "status": "2xx"})
	router := testRouter(deps)

	w := doRequest(router, http.MethodGet, "/metrics")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; version=0.0.4; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `http_requests_total{method="GET",path="/x",status="2xx"} 1`)
	assert.Contains(t, w.Body.String(), "process_uptime_seconds")
}

func TestHealthDegradedOnDatabaseFailure(t *testing.T) {
	deps := testDeps(t, "test", &stubPinger{err: fmt.Errorf("connection refused")})
	router := testRouter(deps)

	w := doRequest(router, http.MethodGet, "/health")

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeJSON(t, w)
	assert.Equal(t, "degraded", body["status"])
	checks := body["checks"].(map[string]any)
	db := checks["database"].(map[string]any)
	assert.Equal(t, "unhealthy", db["status"])
	assert.Equal(t, "connection refused", db["error"])
}

func TestHealthHealthy(t *testing.T) {
	deps := testDeps(t, "test", &stubPinger{})
	router := testRouter(deps)

	w := doRequest(router, http.MethodGet, "/health")

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.Equal(t, "healthy", body["status"])
	checks := body["checks"].(map[string]any)
	alerts := checks["alerts"].(map[string]any)
	assert.Equal(t, "ok", alerts["status"])
}

func TestHealthDegradedOnCriticalAlert(t *testing.T) {
	deps := testDeps(t, "test", &stubPinger{})
	require.NoError(t, deps.Engine.Register(&alerting.Rule{
		ID:       "db-errors",
		Name:     "db errors",
		Severity: alerting.SeverityCritical,
		Enabled:  true,
		Condition: func(context.Context) (bool, error) {
			return true, nil
		},
	}))
	deps.Engine.CheckRules(context.Background())
	router := testRouter(deps)

	w := doRequest(router, http.MethodGet, "/health")

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeJSON(t, w)
	checks := body["checks"].(map[string]any)
	alerts := checks["alerts"].(map[string]any)
	assert.Equal(t, "critical", alerts["status"])
	assert.Equal(t, 1.0, alerts["criticalCount"])
}

func TestLivenessAlwaysOK(t *testing.T) {
	deps := testDeps(t, "test", nil)
	w := doRequest(testRouter(deps), http.MethodGet, "/health/live")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", decodeJSON(t, w)["status"])
}

func TestReadinessRequiresDatabase(t *testing.T) {
	deps := testDeps(t, "test", nil)
	w := doRequest(testRouter(deps), http.MethodGet, "/health/ready")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeJSON(t, w)
	assert.Equal(t, "not_ready", body["status"])
	assert.Equal(t, "database_unavailable", body["reason"])

	deps = testDeps(t, "test", &stubPinger{})
	w = doRequest(testRouter(deps), http.MethodGet, "/health/ready")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestDashboard(t *testing.T) {
	deps := testDeps(t, "test", nil)
	deps.Stats.Observe("user", "findMany", 120*time.Millisecond, false)
	deps.Health.Record("stripe", true, 80*time.Millisecond)
	router := testRouter(deps)

	w := doRequest(router, http.MethodGet, "/observability/dashboard")

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.Contains(t, body, "metrics")
	assert.Contains(t, body, "system")

	database := body["database"].(map[string]any)
	summary := database["summary"].(map[string]any)
	assert.Equal(t, 1.0, summary["totalQueries"])

	apiHealth := body["apiHealth"].([]any)
	require.Len(t, apiHealth, 1)
	assert.Equal(t, "stripe", apiHealth[0].(map[string]any)["name"])
}

func TestAlertRuleEnableDisable(t *testing.T) {
	deps := testDeps(t, "test", nil)
	require.NoError(t, deps.Engine.Register(&alerting.Rule{
		ID:        "high-error-rate",
		Name:      "high error rate",
		Severity:  alerting.SeverityCritical,
		Enabled:   true,
		Condition: func(context.Context) (bool, error) { return false, nil },
	}))
	router := testRouter(deps)

	w := doRequest(router, http.MethodPost, "/observability/alerts/high-error-rate/disable")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeJSON(t, w)["enabled"])

	rules := deps.Engine.Rules()
	require.Len(t, rules, 1)
	assert.False(t, rules[0].Enabled)

	w = doRequest(router, http.MethodPost, "/observability/alerts/nope/enable")
	require.Equal(t, http.StatusNotFound, w.Code)
	errBody := decodeJSON(t, w)["error"].(map[string]any)
	assert.Equal(t, "NOT_FOUND", errBody["code"])
}

func TestAlertsListing(t *testing.T) {
	deps := testDeps(t, "test", nil)
	router := testRouter(deps)

	w := doRequest(router, http.MethodGet, "/observability/alerts?limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.Contains(t, body, "active")
	assert.Contains(t, body, "history")
	assert.Contains(t, body, "rules")
}

func TestDevelopmentOnlyEndpoints(t *testing.T) {
	devDeps := testDeps(t, "development", nil)
	devRouter := testRouter(devDeps)

	w := doRequest(devRouter, http.MethodGet, "/observability/debug")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeJSON(t, w), "goVersion")

	w = doRequest(devRouter, http.MethodPost, "/observability/test-alert")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeJSON(t, w)["success"])

	prodDeps := testDeps(t, "production", nil)
	prodRouter := testRouter(prodDeps)
	w = doRequest(prodRouter, http.MethodGet, "/observability/debug")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doRequest(prodRouter, http.MethodPost, "/observability/test-alert")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
