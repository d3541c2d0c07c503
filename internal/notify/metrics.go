package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var deliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "feedwatch_webhook_failures_total",
	Help: "Failed webhook deliveries by target",
}, []string{"webhook"})
