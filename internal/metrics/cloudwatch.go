// Package metrics publishes run and request telemetry to CloudWatch.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"aquaplan/internal/types"
)

// Metric and dimension names.
const (
	MetricRunCount        = "RunCount"
	MetricRunDuration     = "RunDuration"
	MetricAPIRequestCount = "APIRequestCount"
	MetricAPILatency      = "APILatency"
	MetricJobQueueLag     = "JobQueueLag"

	DimKind     = "Kind"
	DimStatus   = "Status"
	DimMethod   = "Method"
	DimEndpoint = "Endpoint"
)

// putTimeout bounds PutMetricData calls issued without a request context.
const putTimeout = 2 * time.Second

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatch records engine runs and API requests. Publishing failures are
// logged and never returned.
type CloudWatch struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatch publishes into namespace.
func NewCloudWatch(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatch {
	return &CloudWatch{client: client, namespace: namespace, logger: logger}
}

// RecordRun emits RunCount and RunDuration with Kind and Status dimensions.
func (m *CloudWatch) RecordRun(ctx context.Context, kind types.RunKind, status types.RunStatus, duration time.Duration) {
	dims := []cwtypes.Dimension{
		{Name: aws.String(DimKind), Value: aws.String(string(kind))},
		{Name: aws.String(DimStatus), Value: aws.String(string(status))},
	}
	m.put(ctx, []cwtypes.MetricDatum{
		{
			MetricName: aws.String(MetricRunCount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
		{
			MetricName: aws.String(MetricRunDuration),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
	}, "kind", string(kind), "status", string(status))
}

// RecordRequest emits APIRequestCount and APILatency. endpoint should be the
// route pattern, not the raw path.
func (m *CloudWatch) RecordRequest(method, endpoint, status string, duration time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), putTimeout)
	defer cancel()

	dims := []cwtypes.Dimension{
		{Name: aws.String(DimMethod), Value: aws.String(method)},
		{Name: aws.String(DimEndpoint), Value: aws.String(endpoint)},
		{Name: aws.String(DimStatus), Value: aws.String(status)},
	}
	m.put(ctx, []cwtypes.MetricDatum{
		{
			MetricName: aws.String(MetricAPIRequestCount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
		{
			MetricName: aws.String(MetricAPILatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims[:2],
		},
	}, "method", method, "endpoint", endpoint, "status", status)
}

// RecordQueueLag emits the time a job spent on the queue before the worker
// picked it up.
func (m *CloudWatch) RecordQueueLag(ctx context.Context, lag time.Duration) {
	m.put(ctx, []cwtypes.MetricDatum{{
		MetricName: aws.String(MetricJobQueueLag),
		Value:      aws.Float64(float64(lag.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
	}})
}

func (m *CloudWatch) put(ctx context.Context, data []cwtypes.MetricDatum, logAttrs ...any) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to publish metrics",
			append([]any{"error", err.Error(), "datums", len(data)}, logAttrs...)...)
	}
}
