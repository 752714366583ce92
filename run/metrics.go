package run

import (
	"github.com/prometheus/client_golang/prometheus"
)

var controlRequestCounter *prometheus.CounterVec

func init() {
	opts := prometheus.CounterOpts{}
	opts.Name = "frameagent_control_requests_total"
	opts.Help = "Numbers of control requests"
	controlRequestCounter = prometheus.NewCounterVec(opts, []string{"operation", "status"})
	prometheus.MustRegister(controlRequestCounter)
}

func countControlRequest(operation string, err error) {
	status := "accepted"
	if err != nil {
		status = "rejected"
	}
	controlRequestCounter.WithLabelValues(operation, status).Inc()
}
