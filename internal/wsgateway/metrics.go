package wsgateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wsgateway_active_connections",
			Help: "Number of currently registered WebSocket connections",
		},
	)

	messagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wsgateway_messages_dropped_total",
			Help: "Outbound messages dropped due to full send buffers",
		},
	)

	alertsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wsgateway_alerts_submitted_total",
			Help: "Alerts created through set_alert messages",
		},
	)
)
