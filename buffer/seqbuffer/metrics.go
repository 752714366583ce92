package seqbuffer

import (
	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/gotils/promexporter/promreg"
)

type bufferMetrics struct {
	pushedRecords   promext.RWCounter
	poppedRecords   promext.RWCounter
	conflicts       promext.RWCounter
	lateRecords     promext.RWCounter
	droppedOverflow promext.RWCounter
	droppedRejected promext.RWCounter
	droppedFlush    promext.RWCounter
	queuedRecords   promext.RWGauge
}

func newBufferMetrics(parentMetricCreator promreg.MetricCreator, name string) bufferMetrics {
	metricCreator := parentMetricCreator.AddOrGetPrefix("buffer_", []string{"buffer"}, []string{name})
	dropped := metricCreator.AddOrGetCounterVec("dropped_records_total", "Numbers of records dropped without being popped", []string{"reason"}, nil)

	metrics := bufferMetrics{
		pushedRecords:   metricCreator.AddOrGetCounter("pushed_records_total", "Numbers of pushed records", nil, nil),
		poppedRecords:   metricCreator.AddOrGetCounter("popped_records_total", "Numbers of popped records", nil, nil),
		conflicts:       metricCreator.AddOrGetCounter("conflicts_total", "Numbers of pops pushed back due to out-of-order sequences", nil, nil),
		lateRecords:     metricCreator.AddOrGetCounter("late_records_total", "Numbers of records released behind the last popped sequence", nil, nil),
		droppedOverflow: dropped.WithLabelValues("overflow"),
		droppedRejected: dropped.WithLabelValues("rejected"),
		droppedFlush:    dropped.WithLabelValues("flush"),
		queuedRecords:   metricCreator.AddOrGetGauge("queued_records", "Numbers of currently queued records", nil, nil),
	}
	// reset gauges in case metricCreator is reused by the next pipeline
	metrics.queuedRecords.Set(0)
	return metrics
}
