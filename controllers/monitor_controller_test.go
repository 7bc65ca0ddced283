package controllers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "cart-monitor-service/common/errors"
	"cart-monitor-service/controllers"
	"cart-monitor-service/models"
	"cart-monitor-service/routes"
	"cart-monitor-service/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---- mock implementing controllers.CartMonitor ----

type mockMonitor struct {
	result *models.MonitorResult
	err    error
	last   *services.PassStats
}

func (m *mockMonitor) MonitorCarts(context.Context) (*models.MonitorResult, error) {
	return m.result, m.err
}

func (m *mockMonitor) LastPass() (services.PassStats, bool) {
	if m.last == nil {
		return services.PassStats{}, false
	}
	return *m.last, true
}

// ---- helpers ----

func setupRouter(m controllers.CartMonitor, health routes.HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	c := controllers.NewMonitorController(m, zap.NewNop())
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "cart_monitor_passes_total 1")
	})
	routes.RegisterRoutes(r, c, metrics, health)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

// ---- tests ----

func TestMonitorCarts_OK(t *testing.T) {
	m := &mockMonitor{result: &models.MonitorResult{AbandonedCarts: []models.CartRecord{{
		UserID:          "alice",
		IdleTimeSeconds: 2000,
		Items: []models.CartItem{
			{ProductID: "OLJCESPC7Z", Quantity: 1, ProductName: "Sunglasses"},
		},
	}}}}

	w := get(setupRouter(m, nil), "/monitor/carts")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"abandoned_carts":[{"user_id":"alice","idle_time_seconds":2000,
		"items":[{"product_id":"OLJCESPC7Z","quantity":1,"product_name":"Sunglasses"}]}]}`, w.Body.String())
}

func TestMonitorCarts_EmptyResultIsAnEmptyList(t *testing.T) {
	m := &mockMonitor{result: &models.MonitorResult{AbandonedCarts: []models.CartRecord{}}}

	w := get(setupRouter(m, nil), "/monitor/carts")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"abandoned_carts":[]}`, w.Body.String())
}

func TestMonitorCarts_CacheUnavailable(t *testing.T) {
	m := &mockMonitor{err: apperrors.CacheUnavailable(errors.New("dial tcp: connection refused"))}

	w := get(setupRouter(m, nil), "/monitor/carts")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Cache unavailable", body["error"])
	assert.NotContains(t, w.Body.String(), "connection refused", "internal details stay in the logs")
}

func TestMonitorCarts_UnexpectedErrorIs500(t *testing.T) {
	m := &mockMonitor{err: errors.New("boom")}

	w := get(setupRouter(m, nil), "/monitor/carts")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestStatus(t *testing.T) {
	m := &mockMonitor{}
	r := setupRouter(m, nil)

	assert.Equal(t, http.StatusNotFound, get(r, "/monitor/status").Code)

	m.last = &services.PassStats{PassID: "p-1", State: services.StateDone, Scanned: 4, Abandoned: 1, Published: 1}
	w := get(r, "/monitor/status")
	assert.Equal(t, http.StatusOK, w.Code)

	var stats services.PassStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, *m.last, stats)
}

func TestHealthAndMetrics(t *testing.T) {
	healthy := true
	r := setupRouter(&mockMonitor{}, func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("redis: connection refused")
	})

	assert.Equal(t, http.StatusOK, get(r, "/health").Code)
	healthy = false
	assert.Equal(t, http.StatusServiceUnavailable, get(r, "/health").Code)

	w := get(r, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cart_monitor_passes_total")
}
