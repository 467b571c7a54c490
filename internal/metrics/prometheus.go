package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imrishuroy/go-storefront/internal/orders"
)

// ServerMetrics holds the Prometheus collectors of the API.
type ServerMetrics struct {
	Requests       *prometheus.CounterVec
	LatencyMS      *prometheus.HistogramVec
	OrdersPlaced   prometheus.Counter
	OrdersRejected *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

var _ Recorder = (*ServerMetrics)(nil)

// NewServerMetrics registers the collectors on reg. A nil reg uses the
// default registry.
func NewServerMetrics(service string, reg *prometheus.Registry) *ServerMetrics {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storefront",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	placed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: service,
		Name:      "orders_placed_total",
		Help:      "Orders committed.",
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: service,
		Name:      "orders_rejected_total",
		Help:      "Orders rejected, by reason.",
	}, []string{"reason"})

	registerer.MustRegister(requests, latency, placed, rejected)
	return &ServerMetrics{
		Requests:       requests,
		LatencyMS:      latency,
		OrdersPlaced:   placed,
		OrdersRejected: rejected,
		gatherer:       gatherer,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware counts requests and observes latency per route template.
func (m *ServerMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Microseconds()) / 1000)
	}
}

// OrderPlaced implements Recorder.
func (m *ServerMetrics) OrderPlaced(context.Context, orders.Order) {
	m.OrdersPlaced.Inc()
}

// OrderRejected implements Recorder.
func (m *ServerMetrics) OrderRejected(_ context.Context, reason string) {
	m.OrdersRejected.WithLabelValues(reason).Inc()
}
