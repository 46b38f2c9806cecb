package recorder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoutingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgegate_requests_total",
			Help: "Routing decisions made by the gateway",
		},
		[]string{"outcome", "reason"},
	)

	HistoryRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "edgegate_history_records",
			Help: "Records currently retained in the request history",
		},
	)

	ProcessLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "edgegate_process_duration_seconds",
			Help: "Time taken to process a routed request, simulated upstream latency included",
		},
		[]string{"service"},
	)
)
