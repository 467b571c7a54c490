package metrics

import (
	"context"
	"time"

	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/aws"
	"github.com/imrishuroy/go-storefront/internal/orders"
)

// CloudWatch metric names
const (
	MetricOrdersPlaced   = "OrdersPlaced"
	MetricOrderValue     = "OrderValue"
	MetricOrdersRejected = "OrdersRejected"
)

// CloudWatch pushes business metrics with PutMetricData. Failures are
// logged as transient upstream errors.
type CloudWatch struct {
	emitter *aws.MetricEmitter
	timeout time.Duration
	log     logrus.FieldLogger
}

var _ Recorder = (*CloudWatch)(nil)

// NewCloudWatch wraps emitter.
func NewCloudWatch(emitter *aws.MetricEmitter, log logrus.FieldLogger) *CloudWatch {
	return &CloudWatch{emitter: emitter, timeout: 2 * time.Second, log: log}
}

// OrderPlaced implements Recorder.
func (c *CloudWatch) OrderPlaced(ctx context.Context, o orders.Order) {
	c.put(ctx, MetricOrdersPlaced, 1, cwtypes.StandardUnitCount, nil)
	c.put(ctx, MetricOrderValue, o.TotalAmount.InexactFloat64(), cwtypes.StandardUnitNone, nil)
}

// OrderRejected implements Recorder.
func (c *CloudWatch) OrderRejected(ctx context.Context, reason string) {
	c.put(ctx, MetricOrdersRejected, 1, cwtypes.StandardUnitCount, map[string]string{"Reason": reason})
}

func (c *CloudWatch) put(ctx context.Context, name string, value float64, unit cwtypes.StandardUnit, dims map[string]string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	if err := c.emitter.Put(ctx, name, value, unit, dims); err != nil {
		c.log.WithError(apperr.Upstream("cloudwatch", err)).WithField("metric", name).Warn("metric not recorded")
	}
}
