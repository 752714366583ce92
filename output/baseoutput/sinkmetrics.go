package baseoutput

import (
	"context"
	"errors"

	"github.com/relex/frame-agent/util"
	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/sony/gobreaker/v2"
)

// sinkMetrics defines metrics shared by all result sinks
type sinkMetrics struct {
	deliveryAttemptsTotal promext.RWCounter
	deliveredTotal        promext.RWCounter
	deliveredBytesTotal   promext.RWCounter
	networkErrorsTotal    promext.RWCounter
	timeoutErrorsTotal    promext.RWCounter
	otherErrorsTotal      promext.RWCounter
	skippedTotal          promext.RWCounter
	breakerOpen           promext.RWGauge
}

func newSinkMetrics(metricCreator promreg.MetricCreator, sinkName string) sinkMetrics {
	sinkMetricCreator := metricCreator.AddOrGetPrefix("sink_", []string{"sink"}, []string{sinkName})
	errorsTotal := sinkMetricCreator.AddOrGetCounterVec("errors_total", "Numbers of failed deliveries", []string{"type"}, nil)

	metrics := sinkMetrics{
		deliveryAttemptsTotal: sinkMetricCreator.AddOrGetCounter("delivery_attempts_total", "Numbers of delivery attempts", nil, nil),
		deliveredTotal:        sinkMetricCreator.AddOrGetCounter("delivered_results_total", "Numbers of delivered results", nil, nil),
		deliveredBytesTotal:   sinkMetricCreator.AddOrGetCounter("delivered_bytes_total", "Total length in bytes of delivered payloads, if known by the sink", nil, nil),
		networkErrorsTotal:    errorsTotal.WithLabelValues("network"),
		timeoutErrorsTotal:    errorsTotal.WithLabelValues("timeout"),
		otherErrorsTotal:      errorsTotal.WithLabelValues("other"),
		skippedTotal:          sinkMetricCreator.AddOrGetCounter("skipped_results_total", "Numbers of results skipped while the circuit breaker is open", nil, nil),
		breakerOpen:           sinkMetricCreator.AddOrGetGauge("breaker_open", "1 if the circuit breaker of the sink is open", nil, nil),
	}
	// reset gauges in case metricCreator is reused by the next pipeline
	metrics.breakerOpen.Set(0)
	return metrics
}

func (metrics *sinkMetrics) OnError(err error) {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.skippedTotal.Inc()
	case errors.Is(err, context.DeadlineExceeded), util.IsNetworkTimeout(err):
		metrics.timeoutErrorsTotal.Inc()
	case util.IsNetworkFailure(err):
		metrics.networkErrorsTotal.Inc()
	default:
		metrics.otherErrorsTotal.Inc()
	}
}

func (metrics *sinkMetrics) OnDelivering() {
	metrics.deliveryAttemptsTotal.Inc()
}

func (metrics *sinkMetrics) OnDelivered(numBytes int) {
	metrics.deliveredTotal.Inc()
	if numBytes > 0 {
		metrics.deliveredBytesTotal.Add(uint64(numBytes))
	}
}

func (metrics *sinkMetrics) OnBreakerStateChange(to gobreaker.State) {
	if to == gobreaker.StateOpen {
		metrics.breakerOpen.Set(1)
	} else {
		metrics.breakerOpen.Set(0)
	}
}
