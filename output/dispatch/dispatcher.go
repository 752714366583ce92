// Package dispatch delivers ordered results to all sinks
package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/buffer/seqbuffer"
	"github.com/relex/frame-agent/defs"
	"github.com/relex/frame-agent/output/baseoutput"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/samber/lo"
)

// Dispatcher pops results from the ordered output buffer and delivers each of them to every sink
//
// Sinks are isolated from each other: a failed or slow sink never stops the delivery to other sinks. The next
// result is popped after all sinks are done with the current one, so that each sink sees results in order.
type Dispatcher struct {
	logger  logger.Logger
	output  *seqbuffer.Buffer[*base.Result]
	sinks   []*baseoutput.GuardedSink
	topic   string
	metrics dispatchMetrics
}

// NewDispatcher creates a Dispatcher publishing to the topic of the given stream and analytic
func NewDispatcher(parentLogger logger.Logger, output *seqbuffer.Buffer[*base.Result], sinks []base.ResultSink,
	streamID string, analyticAddress string, metricCreator promreg.MetricCreator) *Dispatcher {

	dlogger := parentLogger.WithField(defs.LabelComponent, "SinkDispatcher")
	return &Dispatcher{
		logger: dlogger,
		output: output,
		sinks: lo.Map(sinks, func(s base.ResultSink, _ int) *baseoutput.GuardedSink {
			return baseoutput.NewGuardedSink(dlogger, s, metricCreator)
		}),
		topic:   Topic(streamID, analyticAddress),
		metrics: newDispatchMetrics(metricCreator),
	}
}

// Topic returns the topic results are published to
func (d *Dispatcher) Topic() string {
	return d.topic
}

// SinkNames returns the names of all sinks
func (d *Dispatcher) SinkNames() []string {
	return lo.Map(d.sinks, func(s *baseoutput.GuardedSink, _ int) string { return s.Name() })
}

// DispatchNext waits up to defs.DispatchPollInterval for the next result and delivers it
//
// Returns false if there was no result
func (d *Dispatcher) DispatchNext(ctx context.Context) bool {
	records := d.output.PopWait(ctx, 1, defs.DispatchPollInterval)
	if len(records) == 0 {
		return false
	}
	for _, rec := range records {
		d.Dispatch(ctx, rec)
	}
	return true
}

// Dispatch delivers one result to all sinks and returns the errors of failed sinks
func (d *Dispatcher) Dispatch(ctx context.Context, rec base.ResultRecord) []error {
	if rec.Late {
		d.metrics.lateResults.Inc()
		d.logger.Warnf("dispatch late result of frame %d", rec.Sequence)
	}
	d.metrics.dispatchedResults.Inc()

	errs := make([]error, len(d.sinks))
	var wg sync.WaitGroup
	for i, sink := range d.sinks {
		wg.Add(1)
		go func(i int, sink *baseoutput.GuardedSink) {
			defer wg.Done()
			errs[i] = sink.Deliver(ctx, d.topic, rec.Payload)
		}(i, sink)
	}
	wg.Wait()

	failed := lo.Compact(errs)
	for _, err := range failed {
		d.metrics.failedDeliveries.Inc()
		if errors.Is(err, context.Canceled) {
			d.logger.Infof("delivery of frame %d cancelled: %s", rec.Sequence, err.Error())
		} else {
			d.logger.Errorf("failed to deliver frame %d: %s", rec.Sequence, err.Error())
		}
	}
	return failed
}

// Drain dispatches all remaining results without waiting; it's used at shutdown
//
// Results behind the last dispatched one are released at once as late instead of being held back.
func (d *Dispatcher) Drain(ctx context.Context) int {
	count := 0
	for ctx.Err() == nil {
		records := d.output.PopReleasingLate(1)
		if len(records) == 0 {
			break
		}
		d.Dispatch(ctx, records[0])
		count++
	}
	return count
}

// Close closes all sinks
func (d *Dispatcher) Close() {
	for _, sink := range d.sinks {
		if err := sink.Close(); err != nil {
			d.logger.Warnf("failed to close sink %s: %s", sink.Name(), err.Error())
		}
	}
}
