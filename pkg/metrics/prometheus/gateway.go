package prometheus

import (
	"time"

	bitserrors "github.com/marmos91/bitsgate/pkg/errors"
	"github.com/marmos91/bitsgate/pkg/gateway"
	"github.com/marmos91/bitsgate/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type gatewayMetrics struct {
	operationsTotal       *prometheus.CounterVec
	operationDuration     *prometheus.HistogramVec
	normalizationsTotal   *prometheus.CounterVec
	normalizationDuration prometheus.Histogram
}

// NewGatewayMetrics returns Prometheus-backed gateway metrics, or nil when
// metrics are disabled.
func NewGatewayMetrics() gateway.Metrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}
	f := promauto.With(reg)

	return &gatewayMetrics{
		operationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bitsgate_gateway_operations_total",
				Help: "Total gateway operations by resource, operation and error code",
			},
			[]string{"resource", "operation", "code"},
		),
		operationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bitsgate_gateway_operation_duration_milliseconds",
				Help:    "Duration of gateway operations in milliseconds",
				Buckets: latencyBuckets,
			},
			[]string{"resource", "operation"},
		),
		normalizationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bitsgate_package_normalizations_total",
				Help: "Total package rewrites by outcome",
			},
			[]string{"status"},
		),
		normalizationDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bitsgate_package_normalization_duration_milliseconds",
				Help:    "Duration of package rewrites in milliseconds",
				Buckets: latencyBuckets,
			},
		),
	}
}

func (m *gatewayMetrics) ObserveOperation(kind, operation string, d time.Duration, err error) {
	m.operationsTotal.WithLabelValues(kind, operation, code(err)).Inc()
	m.operationDuration.WithLabelValues(kind, operation).Observe(float64(d.Microseconds()) / 1000)
}

func (m *gatewayMetrics) ObserveNormalization(d time.Duration, err error) {
	m.normalizationsTotal.WithLabelValues(status(err)).Inc()
	m.normalizationDuration.Observe(float64(d.Microseconds()) / 1000)
}

func code(err error) string {
	if err == nil {
		return "OK"
	}
	if c := bitserrors.CodeOf(err); c != 0 {
		return c.String()
	}
	return "Internal"
}
