package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roomCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "social",
		Subsystem: "relay",
		Name:      "rooms",
		Help:      "Number of live rooms.",
	})
	participantCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "social",
		Subsystem: "relay",
		Name:      "participants",
		Help:      "Number of connected participants.",
	})
	packetsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "social",
		Subsystem: "relay",
		Name:      "packets_relayed_total",
		Help:      "Negotiation packets forwarded between participants.",
	}, []string{"type"})
)
