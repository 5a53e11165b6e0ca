package observability

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

const maxDatumsPerCall = 20

// CloudWatchAPI is the subset of the CloudWatch client used by the reporter.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchReporter pushes counter increments accumulated in the Prometheus registry
// since the previous flush. Lambda functions call Flush at the end of each invocation.
type CloudWatchReporter struct {
	client    CloudWatchAPI
	metrics   *Metrics
	namespace string
	logger    *zap.Logger

	mu   sync.Mutex
	last map[string]float64
}

// NewCloudWatchReporter creates a reporter for the given metrics
func NewCloudWatchReporter(client CloudWatchAPI, metrics *Metrics, namespace string, logger *zap.Logger) *CloudWatchReporter {
	return &CloudWatchReporter{
		client:    client,
		metrics:   metrics,
		namespace: namespace,
		logger:    logger,
		last:      make(map[string]float64),
	}
}

// Flush sends every counter delta. Failures are logged and dropped.
func (r *CloudWatchReporter) Flush(ctx context.Context) {
	if r == nil || r.client == nil || r.metrics == nil {
		return
	}
	families, err := r.metrics.Registry().Gather()
	if err != nil {
		r.logger.Warn("Failed to gather metrics", zap.Error(err))
		return
	}

	datums := r.deltas(families)
	for start := 0; start < len(datums); start += maxDatumsPerCall {
		end := start + maxDatumsPerCall
		if end > len(datums) {
			end = len(datums)
		}
		_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(r.namespace),
			MetricData: datums[start:end],
		})
		if err != nil {
			r.logger.Warn("Failed to send metrics", zap.Error(err), zap.Int("datums", end-start))
		}
	}
}

func (r *CloudWatchReporter) deltas(families []*dto.MetricFamily) []types.MetricDatum {
	r.mu.Lock()
	defer r.mu.Unlock()

	var datums []types.MetricDatum
	for _, family := range families {
		if family.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, metric := range family.GetMetric() {
			dimensions := make([]types.Dimension, 0, len(metric.GetLabel()))
			parts := []string{family.GetName()}
			for _, label := range metric.GetLabel() {
				dimensions = append(dimensions, types.Dimension{
					Name:  aws.String(label.GetName()),
					Value: aws.String(label.GetValue()),
				})
				parts = append(parts, label.GetName()+"="+label.GetValue())
			}
			sort.Strings(parts[1:])
			id := strings.Join(parts, ",")

			value := metric.GetCounter().GetValue()
			delta := value - r.last[id]
			r.last[id] = value
			if delta <= 0 {
				continue
			}
			datums = append(datums, types.MetricDatum{
				MetricName: aws.String(family.GetName()),
				Dimensions: dimensions,
				Value:      aws.Float64(delta),
				Unit:       types.StandardUnitCount,
			})
		}
	}
	return datums
}
