// Package baseoutput provides the common parts of result sinks
package baseoutput

import (
	"context"
	"fmt"

	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/defs"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/sony/gobreaker/v2"
)

// SizedSink is implemented by sinks able to report the size of the last delivered payload
type SizedSink interface {
	base.ResultSink
	DeliverSized(ctx context.Context, topic string, result *base.Result) (int, error)
}

// GuardedSink wraps a ResultSink with a delivery timeout, a circuit breaker and metrics
//
// While the breaker is open, deliveries fail immediately without reaching the sink.
type GuardedSink struct {
	logger  logger.Logger
	sink    base.ResultSink
	breaker *gobreaker.CircuitBreaker[int]
	metrics sinkMetrics
}

// NewGuardedSink creates a GuardedSink
func NewGuardedSink(parentLogger logger.Logger, sink base.ResultSink, metricCreator promreg.MetricCreator) *GuardedSink {
	gs := &GuardedSink{
		logger:  parentLogger.WithField(defs.LabelSink, sink.Name()),
		sink:    sink,
		metrics: newSinkMetrics(metricCreator, sink.Name()),
	}
	gs.breaker = gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        sink.Name(),
		MaxRequests: 1,
		Timeout:     defs.SinkBreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= defs.SinkBreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			gs.logger.Warnf("circuit breaker state %s -> %s", from.String(), to.String())
			gs.metrics.OnBreakerStateChange(to)
		},
	})
	return gs
}

// Name returns the name of the underlying sink
func (gs *GuardedSink) Name() string {
	return gs.sink.Name()
}

// Deliver sends the result to the sink and returns base.ErrSinkFailure on any failure
func (gs *GuardedSink) Deliver(ctx context.Context, topic string, result *base.Result) error {
	numBytes, err := gs.breaker.Execute(func() (int, error) {
		gs.metrics.OnDelivering()
		dctx, cancel := context.WithTimeout(ctx, defs.SinkDeliveryTimeout)
		defer cancel()
		if sized, ok := gs.sink.(SizedSink); ok {
			return sized.DeliverSized(dctx, topic, result)
		}
		return 0, gs.sink.Deliver(dctx, topic, result)
	})
	if err != nil {
		gs.metrics.OnError(err)
		return fmt.Errorf("%w: %s: %w", base.ErrSinkFailure, gs.sink.Name(), err)
	}
	gs.metrics.OnDelivered(numBytes)
	return nil
}

// BreakerState returns the state of the circuit breaker
func (gs *GuardedSink) BreakerState() gobreaker.State {
	return gs.breaker.State()
}

// Close closes the underlying sink
func (gs *GuardedSink) Close() error {
	return gs.sink.Close()
}
