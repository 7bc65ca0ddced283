package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recorded struct {
	method, path string
	status       int
}

type fakeRecorder struct {
	requests []recorded
}

func (f *fakeRecorder) RecordHTTPRequest(method, path string, status int, _ time.Duration) {
	f.requests = append(f.requests, recorded{method, path, status})
}

func setupRouter(log *zap.Logger, rec HTTPRecorder) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(log), Metrics(rec))
	r.GET("/items/:id", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"id": c.Param("id")}) })
	r.GET("/boom", func(c *gin.Context) { c.JSON(http.StatusServiceUnavailable, gin.H{"error": "down"}) })
	return r
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := setupRouter(zap.New(core), nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/items/42?x=1", nil)
	req.Header.Set("X-Request-ID", "req-1")
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "req-1", fields[RequestIDKey])
	assert.Equal(t, "/items/42", fields["path"])
	assert.Equal(t, "x=1", fields["query"])
	assert.EqualValues(t, http.StatusOK, fields["status"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[1].Level)
}

func TestMetrics_LabelsByRouteTemplate(t *testing.T) {
	rec := &fakeRecorder{}
	r := setupRouter(zap.NewNop(), rec)

	for _, path := range []string{"/items/1", "/items/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, []recorded{
		{http.MethodGet, "/items/:id", http.StatusOK},
		{http.MethodGet, "/items/:id", http.StatusOK},
		{http.MethodGet, "unmatched", http.StatusNotFound},
	}, rec.requests)
}
