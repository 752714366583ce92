package dispatch

import (
	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/gotils/promexporter/promreg"
)

type dispatchMetrics struct {
	dispatchedResults promext.RWCounter
	lateResults       promext.RWCounter
	failedDeliveries  promext.RWCounter
}

func newDispatchMetrics(parentMetricCreator promreg.MetricCreator) dispatchMetrics {
	metricCreator := parentMetricCreator.AddOrGetPrefix("dispatch_", nil, nil)
	return dispatchMetrics{
		dispatchedResults: metricCreator.AddOrGetCounter("results_total", "Numbers of results dispatched to sinks", nil, nil),
		lateResults:       metricCreator.AddOrGetCounter("late_results_total", "Numbers of results dispatched behind newer results", nil, nil),
		failedDeliveries:  metricCreator.AddOrGetCounter("failed_deliveries_total", "Numbers of failed deliveries over all sinks", nil, nil),
	}
}
