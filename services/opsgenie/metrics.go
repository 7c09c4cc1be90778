package opsgenie

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	Namespace = "opsgenie"
	// Instance labels alerts sent by the rule action.
	Instance = "opsgenie.alert"
)

var (
	AlertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "alerts_sent_total",
		Help:      "Counter of alerts accepted by OpsGenie",
	}, []string{"instance"})

	AlertsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "alerts_failed_total",
		Help:      "Counter of alerts that could not be delivered to OpsGenie",
	}, []string{"instance"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_requests_total",
		Help:      "Counter of requests made to the OpsGenie API",
	}, []string{"code", "method"})
)
