package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(wsConnections, wsEventsDropped) }

var wsConnections = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "websocket_connections",
		Help: "Currently open websocket connections, labeled by endpoint kind.",
	},
	[]string{"kind"}, // 'task', 'chat'
)

var wsEventsDropped = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "broadcast_events_dropped_total",
		Help: "Events dropped because a subscriber's buffer was full or closed.",
	},
)

func IncWSConnections(kind string) { wsConnections.WithLabelValues(norm(kind)).Inc() }
func DecWSConnections(kind string) { wsConnections.WithLabelValues(norm(kind)).Dec() }
func IncDroppedEvent()             { wsEventsDropped.Inc() }
