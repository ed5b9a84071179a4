package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	ActiveConnections prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	MessagesSent      prometheus.Counter
	EventsBroadcast   prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_connections_active",
			Help: "Current number of live websocket connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_connections_total",
			Help: "Total websocket connections accepted since start.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Total messages accepted and persisted.",
		}),
		EventsBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_events_broadcast_total",
			Help: "Total room or global events broadcast.",
		}),
	}
	reg.MustRegister(m.ActiveConnections, m.ConnectionsTotal, m.MessagesSent, m.EventsBroadcast)
	return m
}

// Handler serves the Prometheus scrape endpoint, mounted on its own
// listener in main.
func Handler() http.Handler {
	return promhttp.Handler()
}
