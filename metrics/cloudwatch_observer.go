package metrics

import (
	"context"
	"time"

	"cart-monitor-service/common/logger"
	awspkg "cart-monitor-service/pkg/aws"
	"cart-monitor-service/services"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

type metricBatcher interface {
	PutMetricBatch(ctx context.Context, metrics []types.MetricDatum) error
}

// CloudWatchObserver pushes one batch of pass counts to CloudWatch per pass.
type CloudWatchObserver struct {
	client     metricBatcher
	dimensions map[string]string
	timeout    time.Duration
	log        *zap.Logger
}

func NewCloudWatchObserver(client metricBatcher, service string, log *zap.Logger) *CloudWatchObserver {
	return &CloudWatchObserver{
		client:     client,
		dimensions: map[string]string{"Service": service},
		timeout:    5 * time.Second,
		log:        log.With(zap.String("component", "cloudwatch_metrics")),
	}
}

func (o *CloudWatchObserver) ObservePass(stats services.PassStats) {
	count := func(name string, v int) types.MetricDatum {
		return awspkg.Datum(name, float64(v), types.StandardUnitCount, o.dimensions)
	}
	data := []types.MetricDatum{
		count(awspkg.MetricCartsScanned, stats.Scanned),
		count(awspkg.MetricCartsAbandoned, stats.Abandoned),
		count(awspkg.MetricEventsPublished, stats.Published),
		count(awspkg.MetricPublishFailures, stats.PublishFailures),
		count(awspkg.MetricDecodeFailures, stats.DecodeFailures),
		count(awspkg.MetricEnrichmentFailures, stats.EnrichFailures),
		awspkg.Datum(awspkg.MetricPassDuration, float64(stats.Duration.Milliseconds()), types.StandardUnitMilliseconds, o.dimensions),
	}
	if stats.State == services.StateError {
		data = append(data, count(awspkg.MetricPassErrors, 1))
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	if err := o.client.PutMetricBatch(logger.WithPassID(ctx, stats.PassID), data); err != nil {
		o.log.Warn("Failed to push pass metrics", zap.String(logger.PassIDKey, stats.PassID), zap.Error(err))
	}
}
