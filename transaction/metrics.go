package transaction

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	guarded       *prometheus.CounterVec
	statusQueries *prometheus.CounterVec
	pollOutcomes  *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		guarded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "federation_guarded_operations_total",
			Help: "Guarded operations by result",
		}, []string{"operation", "result"}),
		statusQueries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "federation_transaction_status_queries_total",
			Help: "Chain transaction status queries by answer",
		}, []string{"status"}),
		pollOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "federation_poll_outcomes_total",
			Help: "Finished confirmation polls by outcome",
		}, []string{"outcome"}),
	}
}
