package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled HTTP requests by route and status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservo_http_requests_total",
		Help: "Total HTTP requests handled by reservo",
	}, []string{"route", "code"})

	// RealtimeEvents counts decoded change events by type.
	RealtimeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservo_realtime_events_total",
		Help: "Change events delivered by the realtime listener",
	}, []string{"type"})

	// RealtimeResubscribes counts resubscribes scheduled after a lost channel.
	RealtimeResubscribes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservo_realtime_resubscribes_total",
		Help: "Resubscribes scheduled by the realtime listener",
	})

	// RelayForwards counts webhook relay outcomes.
	RelayForwards = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservo_relay_forwards_total",
		Help: "Webhook relay invocations by result",
	}, []string{"result"})
)
