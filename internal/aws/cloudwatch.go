package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// MetricEmitter writes single data points to one CloudWatch namespace.
type MetricEmitter struct {
	CW        CloudWatchAPI
	Namespace string
	nowFunc   func() time.Time
}

// NewMetricEmitter returns an emitter for namespace.
func NewMetricEmitter(cw CloudWatchAPI, namespace string) *MetricEmitter {
	return &MetricEmitter{CW: cw, Namespace: namespace, nowFunc: time.Now}
}

// Put emits one data point with optional string dimensions.
func (e *MetricEmitter) Put(ctx context.Context, name string, value float64, unit cwtypes.StandardUnit, dims map[string]string) error {
	datum := cwtypes.MetricDatum{
		MetricName: String(name),
		Value:      &value,
		Unit:       unit,
		Timestamp:  timePtr(e.nowFunc().UTC()),
	}
	for k, v := range dims {
		datum.Dimensions = append(datum.Dimensions, cwtypes.Dimension{Name: String(k), Value: String(v)})
	}
	_, err := e.CW.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  String(e.Namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		return fmt.Errorf("put metric %s: %w", name, err)
	}
	return nil
}

func timePtr(t time.Time) *time.Time { return &t }
