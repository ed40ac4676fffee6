package observability

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// putMetricDataMax is the CloudWatch PutMetricData batch limit.
const putMetricDataMax = 20

// Metrics buffers metric data points and ships them to CloudWatch.
// All methods are safe on a nil receiver so local runs can skip metrics.
type Metrics struct {
	namespace string
	client    *cloudwatch.Client

	mu     sync.Mutex
	buffer []types.MetricDatum
}

// NewMetrics creates a metrics emitter for the given namespace.
func NewMetrics(namespace string, client *cloudwatch.Client) *Metrics {
	return &Metrics{
		namespace: namespace,
		client:    client,
	}
}

// IncCounter records a count of 1 for the named metric.
func (m *Metrics) IncCounter(name string, dimensions map[string]string) {
	m.record(name, 1, types.StandardUnitCount, dimensions)
}

// RecordCount records an arbitrary count for the named metric.
func (m *Metrics) RecordCount(name string, value float64, dimensions map[string]string) {
	m.record(name, value, types.StandardUnitCount, dimensions)
}

// RecordDuration records a latency sample in milliseconds.
func (m *Metrics) RecordDuration(name string, d time.Duration, dimensions map[string]string) {
	m.record(name, float64(d.Milliseconds()), types.StandardUnitMilliseconds, dimensions)
}

func (m *Metrics) record(name string, value float64, unit types.StandardUnit, dimensions map[string]string) {
	if m == nil || m.client == nil {
		return
	}

	datum := types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(time.Now()),
	}
	for key, val := range dimensions {
		datum.Dimensions = append(datum.Dimensions, types.Dimension{
			Name:  aws.String(key),
			Value: aws.String(val),
		})
	}

	m.mu.Lock()
	m.buffer = append(m.buffer, datum)
	full := len(m.buffer) >= putMetricDataMax
	var batch []types.MetricDatum
	if full {
		batch = m.buffer
		m.buffer = nil
	}
	m.mu.Unlock()

	if full {
		go m.put(batch)
	}
}

// Flush ships any buffered data points immediately. Call before a
// Lambda invocation returns so nothing is lost on freeze.
func (m *Metrics) Flush(ctx context.Context) error {
	if m == nil || m.client == nil {
		return nil
	}

	m.mu.Lock()
	batch := m.buffer
	m.buffer = nil
	m.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: batch,
	})
	return err
}

func (m *Metrics) put(batch []types.MetricDatum) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Best effort. Metric loss never fails the request path.
	_, _ = m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: batch,
	})
}
