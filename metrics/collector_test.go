package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cart-monitor-service/services"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func samplePass() services.PassStats {
	return services.PassStats{
		PassID:          "pass-1",
		State:           services.StateDone,
		StartedAt:       time.Unix(1_700_000_000, 0),
		Duration:        1500 * time.Millisecond,
		Scanned:         10,
		Abandoned:       3,
		Published:       2,
		PublishFailures: 1,
		DecodeFailures:  1,
		EmptyCarts:      1,
		EnrichFailures:  2,
	}
}

func TestCollector_ObservePass(t *testing.T) {
	c := NewCollector("cart_monitor", zap.NewNop())

	c.ObservePass(samplePass())
	c.ObservePass(samplePass())

	assert.Equal(t, float64(20), testutil.ToFloat64(c.cartsScanned))
	assert.Equal(t, float64(6), testutil.ToFloat64(c.cartsAbandoned))
	assert.Equal(t, float64(4), testutil.ToFloat64(c.eventsPublished))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.publishFailures))
	assert.Equal(t, float64(4), testutil.ToFloat64(c.enrichFailures))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.passesTotal.WithLabelValues("DONE", "false")))
	assert.Equal(t, float64(1_700_000_001), testutil.ToFloat64(c.lastPassTime))
	assert.Equal(t, 1, testutil.CollectAndCount(c.passDuration))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("cart_monitor", zap.NewNop())
	c.ObservePass(samplePass())
	c.RecordHTTPRequest(http.MethodGet, "/monitor/carts", http.StatusOK, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "cart_monitor_carts_abandoned_total 3"))
	assert.Contains(t, body, `cart_monitor_http_requests_total{method="GET",path="/monitor/carts",status="200"} 1`)
}

type fakeBatcher struct {
	batches [][]types.MetricDatum
	err     error
}

func (f *fakeBatcher) PutMetricBatch(_ context.Context, data []types.MetricDatum) error {
	f.batches = append(f.batches, data)
	return f.err
}

func TestCloudWatchObserver_ObservePass(t *testing.T) {
	fake := &fakeBatcher{}
	o := NewCloudWatchObserver(fake, "cart-monitor", zap.NewNop())

	o.ObservePass(samplePass())
	require.Len(t, fake.batches, 1)
	assert.Len(t, fake.batches[0], 7)

	failed := samplePass()
	failed.State = services.StateError
	fake.err = errors.New("throttled")
	o.ObservePass(failed)
	require.Len(t, fake.batches, 2)
	assert.Len(t, fake.batches[1], 8)
	assert.Equal(t, "MonitorPassErrors", *fake.batches[1][7].MetricName)
	assert.Equal(t, "cart-monitor", *fake.batches[1][0].Dimensions[0].Value)
}
