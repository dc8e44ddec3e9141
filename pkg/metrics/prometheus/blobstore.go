// Package prometheus implements the bitsgate metrics interfaces on top of
// the registry in pkg/metrics.
package prometheus

import (
	"time"

	"github.com/marmos91/bitsgate/pkg/blobstore"
	bitserrors "github.com/marmos91/bitsgate/pkg/errors"
	"github.com/marmos91/bitsgate/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyBuckets are in milliseconds.
var latencyBuckets = []float64{
	1,     // local stat
	10,    // small local copy
	50,    // s3 head
	100,   //
	500,   // small s3 put
	1000,  // 1s
	5000,  // large droplet
	30000, // very large package
}

type blobstoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTotal        *prometheus.CounterVec
}

// NewBlobstoreMetrics returns Prometheus-backed blob store metrics, or nil
// when metrics are disabled.
func NewBlobstoreMetrics() blobstore.Metrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}
	f := promauto.With(reg)

	return &blobstoreMetrics{
		operationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bitsgate_blobstore_operations_total",
				Help: "Total blob store operations by store, operation and outcome",
			},
			[]string{"store", "operation", "status"},
		),
		operationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bitsgate_blobstore_operation_duration_milliseconds",
				Help:    "Duration of blob store operations in milliseconds",
				Buckets: latencyBuckets,
			},
			[]string{"store", "operation"},
		),
		bytesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bitsgate_blobstore_bytes_total",
				Help: "Bytes copied into blob stores",
			},
			[]string{"store", "operation"},
		),
	}
}

func (m *blobstoreMetrics) ObserveOperation(store, operation string, d time.Duration, err error) {
	m.operationsTotal.WithLabelValues(store, operation, status(err)).Inc()
	m.operationDuration.WithLabelValues(store, operation).Observe(float64(d.Microseconds()) / 1000)
}

func (m *blobstoreMetrics) RecordBytes(store, operation string, n int64) {
	if n <= 0 {
		return
	}
	m.bytesTotal.WithLabelValues(store, operation).Add(float64(n))
}

// status labels an outcome. A miss is not a failure.
func status(err error) string {
	switch {
	case err == nil:
		return "success"
	case bitserrors.IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
