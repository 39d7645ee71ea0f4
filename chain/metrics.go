package chain

import (
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	requestDuration *prometheus.HistogramVec
}

// newMetrics registers on reg. A nil reg yields unregistered collectors.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "federation_chain_request_duration_seconds",
			Help:    "Latency of chain service calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "code"}),
	}
}

func (m *metrics) observe(operation string, elapsed time.Duration, resp *resty.Response, err error) {
	code := "error"
	if err == nil && resp != nil {
		code = strconv.Itoa(resp.StatusCode())
	}
	m.requestDuration.WithLabelValues(operation, code).Observe(elapsed.Seconds())
}
