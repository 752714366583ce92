// Package ingest provides the worker reading frames from a capture source into the frame buffer
package ingest

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/base/bsupport"
	"github.com/relex/frame-agent/buffer/seqbuffer"
	"github.com/relex/frame-agent/defs"
	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"golang.org/x/time/rate"
)

// Worker reads frames from a capture source and pushes them into a frame buffer
//
// It's the only owner of the capture source. The source is closed when the main loop has ended and the release
// gate is signaled, i.e. after the consumers of frames have stopped, or after defs.CaptureReleaseTimeout.
type Worker struct {
	bsupport.PipelineWorkerBase
	source      base.CaptureSource
	buffer      *seqbuffer.Buffer[image.Image]
	releaseGate channels.Awaitable
	onExhausted func(err error)
	limiter     *rate.Limiter
	failures    int
	exhausted   error
	closed      *channels.SignalAwaitable
	metrics     ingestMetrics
}

// NewWorker creates an ingest Worker
//
// onExhausted is called from the worker goroutine when the source is closed or keeps failing; it must not block.
// releaseGate may be nil to close the source as soon as the main loop ends.
func NewWorker(parentLogger logger.Logger, config Config, source base.CaptureSource, buffer *seqbuffer.Buffer[image.Image],
	releaseGate channels.Awaitable, onExhausted func(err error), metricCreator promreg.MetricCreator) *Worker {

	worker := &Worker{
		PipelineWorkerBase: bsupport.NewPipelineWorkerBase(parentLogger.WithField(defs.LabelComponent, "IngestWorker")),
		source:             source,
		buffer:             buffer,
		releaseGate:        releaseGate,
		onExhausted:        onExhausted,
		closed:             channels.NewSignalAwaitable(),
		metrics:            newIngestMetrics(metricCreator),
	}
	if config.MaxFrameRate > 0 {
		worker.limiter = rate.NewLimiter(rate.Limit(config.MaxFrameRate), 1)
	}
	worker.InitInternal(worker.iterate, worker.release)
	return worker
}

// SourceClosed returns an Awaitable signaled after the capture source is closed
func (worker *Worker) SourceClosed() channels.Awaitable {
	return worker.closed
}

func (worker *Worker) iterate(ctx context.Context) bool {
	if worker.limiter != nil {
		if err := worker.limiter.Wait(ctx); err != nil {
			return false
		}
	}

	frame, err := worker.source.Read()
	if err != nil {
		return worker.handleReadError(ctx, err)
	}
	worker.failures = 0
	worker.metrics.framesRead.Inc()

	rec := base.FrameRecord{
		Sequence:  frame.Position,
		Timestamp: frame.Timestamp,
		Payload:   frame.Image,
	}
	if perr := worker.buffer.PushWait(ctx, rec); perr != nil {
		worker.metrics.framesDropped.Inc()
		if errors.Is(perr, seqbuffer.ErrBufferFull) {
			worker.Logger().Debugf("frame %d dropped: %s", frame.Position, perr.Error())
			return true
		}
		return false
	}
	return true
}

func (worker *Worker) handleReadError(ctx context.Context, err error) bool {
	if !errors.Is(err, base.ErrTransientRead) {
		if errors.Is(err, base.ErrSourceClosed) {
			worker.exhausted = fmt.Errorf("%w: %w", base.ErrSourceUnavailable, err)
		} else {
			worker.exhausted = fmt.Errorf("%w: read error: %w", base.ErrSourceUnavailable, err)
		}
		return false
	}

	worker.failures++
	worker.metrics.transientFailures.Inc()
	if defs.IngestMaxConsecutiveFailures > 0 && worker.failures >= defs.IngestMaxConsecutiveFailures {
		worker.exhausted = fmt.Errorf("%w: %d consecutive read failures, last: %w", base.ErrSourceUnavailable, worker.failures, err)
		return false
	}
	worker.Logger().Debugf("retry after read failure: %s", err.Error())

	timer := time.NewTimer(defs.IngestRetryInterval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (worker *Worker) release() {
	if worker.exhausted != nil {
		worker.Logger().Warn("source exhausted: ", worker.exhausted)
		if worker.onExhausted != nil {
			worker.onExhausted(worker.exhausted)
		}
	}

	if worker.releaseGate != nil && !worker.releaseGate.Wait(defs.CaptureReleaseTimeout) {
		worker.Logger().Warnf("timeout waiting for frame consumers to stop after %s, close source anyway", defs.CaptureReleaseTimeout)
	}
	if err := worker.source.Close(); err != nil {
		worker.Logger().Warn("failed to close source: ", err)
	} else {
		worker.Logger().Info("closed source")
	}
	worker.closed.Signal()
}
