package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveRooms tracks rooms with at least one live connection.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_active_rooms",
		Help: "Rooms with at least one active connection.",
	})

	// ActiveConnections tracks live authenticated WebSocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_active_connections",
		Help: "Live authenticated WebSocket connections.",
	})

	// EventsTotal counts inbound events by type.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_events_total",
		Help: "Inbound WebSocket events by event name.",
	}, []string{"event"})

	// JoinsRejected counts refused admissions by wire code.
	JoinsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_joins_rejected_total",
		Help: "Rejected room admissions by error code.",
	}, []string{"code"})
)

// Handler exposes Prometheus metrics at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
