package aws

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type cloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsClient wraps AWS CloudWatch Metrics operations
type MetricsClient struct {
	client    cloudWatchAPI
	namespace string
	enabled   bool
}

func NewMetricsClient(cfg sdkaws.Config, namespace string, enabled bool) *MetricsClient {
	return &MetricsClient{
		client:    cloudwatch.NewFromConfig(cfg),
		namespace: namespace,
		enabled:   enabled,
	}
}

// PutMetricBatch sends data points in chunks of 20.
func (m *MetricsClient) PutMetricBatch(ctx context.Context, metrics []types.MetricDatum) error {
	if !m.enabled || len(metrics) == 0 {
		return nil
	}

	const batchSize = 20
	for i := 0; i < len(metrics); i += batchSize {
		end := min(i+batchSize, len(metrics))
		_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  sdkaws.String(m.namespace),
			MetricData: metrics[i:end],
		})
		if err != nil {
			return fmt.Errorf("failed to put metric batch: %w", err)
		}
	}
	return nil
}

// Datum builds a timestamped data point.
func Datum(metricName string, value float64, unit types.StandardUnit, dimensions map[string]string) types.MetricDatum {
	dims := make([]types.Dimension, 0, len(dimensions))
	for k, v := range dimensions {
		dims = append(dims, types.Dimension{
			Name:  sdkaws.String(k),
			Value: sdkaws.String(v),
		})
	}
	return types.MetricDatum{
		MetricName: sdkaws.String(metricName),
		Value:      sdkaws.Float64(value),
		Unit:       unit,
		Timestamp:  sdkaws.Time(time.Now()),
		Dimensions: dims,
	}
}

const (
	MetricCartsScanned       = "CartsScanned"
	MetricCartsAbandoned     = "CartsAbandoned"
	MetricEventsPublished    = "AbandonmentEventsPublished"
	MetricPublishFailures    = "AbandonmentPublishFailures"
	MetricDecodeFailures     = "CartDecodeFailures"
	MetricEnrichmentFailures = "ProductLookupFailures"
	MetricPassDuration       = "MonitorPassDuration"
	MetricPassErrors         = "MonitorPassErrors"
)
