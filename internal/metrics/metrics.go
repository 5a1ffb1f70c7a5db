package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "syncspace_connections",
		Help: "Open websocket connections.",
	})

	Rooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "syncspace_rooms",
		Help: "Rooms with at least one present connection.",
	})

	ActiveCalls = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "syncspace_active_calls",
		Help: "Rooms with an active mesh call.",
	})

	Events = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "syncspace_events_total",
		Help: "Inbound events handled by the router.",
	}, []string{"event"})

	Dropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "syncspace_dropped_clients_total",
		Help: "Connections dropped because their send buffer was full.",
	})

	StoreOps = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "syncspace_store_op_seconds",
		Help:    "Room-state store jobs by operation and outcome.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "result"})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
