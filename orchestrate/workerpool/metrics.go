package workerpool

import (
	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/gotils/promexporter/promreg"
)

type poolMetrics struct {
	invocations      promext.RWCounter
	callbackFailures promext.RWCounter
	results          promext.RWCounter
	droppedResults   promext.RWCounter
	crashes          promext.RWCounter
	restarts         promext.RWCounter
	runningWorkers   promext.RWGauge
	crashedWorkers   promext.RWGauge
}

func newPoolMetrics(parentMetricCreator promreg.MetricCreator) poolMetrics {
	metricCreator := parentMetricCreator.AddOrGetPrefix("analytic_", nil, nil)
	metrics := poolMetrics{
		invocations:      metricCreator.AddOrGetCounter("invocations_total", "Numbers of analytic callback invocations", nil, nil),
		callbackFailures: metricCreator.AddOrGetCounter("callback_failures_total", "Numbers of failed analytic callback invocations", nil, nil),
		results:          metricCreator.AddOrGetCounter("results_total", "Numbers of results pushed to the output buffer", nil, nil),
		droppedResults:   metricCreator.AddOrGetCounter("dropped_results_total", "Numbers of results not accepted by the output buffer", nil, nil),
		crashes:          metricCreator.AddOrGetCounter("worker_crashes_total", "Numbers of worker crashes outside of analytic callbacks", nil, nil),
		restarts:         metricCreator.AddOrGetCounter("worker_restarts_total", "Numbers of crashed workers restarted by the supervisor", nil, nil),
		runningWorkers:   metricCreator.AddOrGetGauge("running_workers", "Numbers of currently running workers", nil, nil),
		crashedWorkers:   metricCreator.AddOrGetGauge("crashed_workers", "Numbers of crashed workers not restarted", nil, nil),
	}
	// reset gauges in case metricCreator is reused by the next pipeline
	metrics.runningWorkers.Set(0)
	metrics.crashedWorkers.Set(0)
	return metrics
}
