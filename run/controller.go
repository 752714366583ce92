package run

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relex/frame-agent/analytic"
	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/buffer/seqbuffer"
	"github.com/relex/frame-agent/defs"
	"github.com/relex/frame-agent/input/ingest"
	"github.com/relex/frame-agent/orchestrate/workerpool"
	"github.com/relex/frame-agent/output/dispatch"
	"github.com/relex/frame-agent/util"
	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/samber/lo"
)

// throughputWindow is the period over which status rates are measured
const throughputWindow = 10 * time.Second

// PipelineSpec is everything needed to build one pipeline
type PipelineSpec struct {
	SourceAddress  string
	CaptureOptions base.CaptureOptions
	Binding        analytic.Binding
	Invoke         analytic.InvokeOptions
	Sinks          []base.ResultSink // owned by the controller from construction
	Pipeline       PipelineConfig
}

// Controller builds one pipeline, runs it and tears it down: Idle -> Starting -> Running -> Stopping -> Terminated
//
// A controller is used once. The capture source is owned by the ingest worker, which closes it only after
// the analytic workers and the drive loop have stopped. When the source is exhausted, frames already queued are
// still analysed and dispatched before stopping, up to defs.PipelineDrainTimeout.
type Controller struct {
	logger        logger.Logger
	spec          PipelineSpec
	opener        base.CaptureOpener
	metricCreator promreg.MetricCreator

	mutex        sync.Mutex // held by Start and stop
	state        atomic.Int32
	cause        atomic.Pointer[error]
	cancel       context.CancelFunc
	frames       *seqbuffer.Buffer[image.Image]
	results      *seqbuffer.Buffer[*base.Result]
	ingest       *ingest.Worker
	pool         *workerpool.Pool
	dispatcher   *dispatch.Dispatcher
	drive        *driveLoop
	since        time.Time
	stopOnce     sync.Once
	releaseSinks func() bool
	done         *channels.SignalAwaitable
}

// NewController creates an idle Controller
func NewController(parentLogger logger.Logger, spec PipelineSpec, opener base.CaptureOpener, metricCreator promreg.MetricCreator) *Controller {
	c := &Controller{
		logger: parentLogger.WithFields(logger.Fields{
			defs.LabelComponent: "PipelineController",
			defs.LabelStream:    spec.Invoke.Stream.ID,
			defs.LabelSession:   spec.Invoke.Stream.SessionID,
		}),
		spec:          spec,
		opener:        opener,
		metricCreator: metricCreator,
		done:          channels.NewSignalAwaitable(),
	}
	c.releaseSinks = util.NewRunOnce(c.closeSinks)
	return c
}

// Start opens the capture source, launches all workers and enters Running
//
// On failure to open the source the controller goes back to Idle, and the returned error wraps
// base.ErrSourceUnavailable. ctx is only used for startup; the pipeline runs until Stop.
func (c *Controller) Start(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateStarting)) {
		return fmt.Errorf("cannot start pipeline in state %s", c.State())
	}
	c.logger.Infof("starting: source=%s analytic=%s", c.spec.SourceAddress, c.spec.Invoke.Analytic.Name)

	source, err := c.opener(c.spec.SourceAddress, c.spec.CaptureOptions)
	if err != nil {
		c.state.Store(int32(StateIdle))
		if !errors.Is(err, base.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %w", base.ErrSourceUnavailable, err)
		}
		c.logger.Warn("failed to open source: ", err)
		return err
	}
	if err := ctx.Err(); err != nil {
		source.Close()
		c.state.Store(int32(StateIdle))
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.frames = seqbuffer.NewBuffer[image.Image](c.logger, "frames", c.spec.Pipeline.FrameBuffer, c.metricCreator)
	c.results = seqbuffer.NewBuffer[*base.Result](c.logger, "results", c.spec.Pipeline.ResultBuffer, c.metricCreator)
	c.pool = workerpool.NewPool(c.logger, c.spec.Pipeline.Workers, c.spec.Binding, c.spec.Invoke, c.frames, c.results, c.metricCreator)
	c.dispatcher = dispatch.NewDispatcher(c.logger, c.results, c.spec.Sinks, c.spec.Invoke.Stream.ID,
		c.spec.Invoke.Analytic.Address, c.metricCreator)
	c.drive = newDriveLoop(c.logger, c.dispatcher)
	c.ingest = ingest.NewWorker(c.logger, c.spec.Pipeline.Ingest, source, c.frames,
		channels.AllAwaitables(c.pool.Stopped(), c.drive.Stopped()), c.onSourceExhausted, c.metricCreator)

	// consumers are launched before the ingest worker
	for _, part := range []base.PipelineWorker{c.pool, c.drive, c.ingest} {
		part.Launch(runCtx)
	}

	c.since = time.Now()
	c.state.Store(int32(StateRunning))
	c.logger.Infof("running: topic=%s sinks=%v", c.dispatcher.Topic(), c.dispatcher.SinkNames())
	return nil
}

// Stop cancels all workers, waits for them up to defs.PipelineStopTimeout and enters Terminated
//
// Stop may be called in any state and any number of times; it returns after the controller is terminated.
func (c *Controller) Stop() {
	c.stopOnce.Do(c.stop)
}

// State returns the current state
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Done returns an Awaitable signaled when the controller is terminated
func (c *Controller) Done() channels.Awaitable {
	return c.done
}

// Err returns the reason of stopping other than Stop requests, e.g. source exhaustion
func (c *Controller) Err() error {
	if p := c.cause.Load(); p != nil {
		return *p
	}
	return nil
}

// Status returns a snapshot of the controller and its pipeline
func (c *Controller) Status() Status {
	st := Status{
		State:     c.State(),
		Source:    c.spec.SourceAddress,
		StreamID:  c.spec.Invoke.Stream.ID,
		SessionID: c.spec.Invoke.Stream.SessionID,
		Analytic:  c.spec.Invoke.Analytic.Name,
	}
	if err := c.Err(); err != nil {
		st.Error = err.Error()
	}
	if st.State < StateRunning || c.dispatcher == nil {
		return st
	}
	// everything below is set before Running and never changed
	st.Since = c.since
	st.Topic = c.dispatcher.Topic()
	st.Sinks = c.dispatcher.SinkNames()
	st.QueuedFrames = c.frames.Len()
	st.QueuedResults = c.results.Len()
	st.IngestRate = c.frames.Throughput(throughputWindow, seqbuffer.DirectionPush)
	st.AnalyticRate = c.results.Throughput(throughputWindow, seqbuffer.DirectionPush)
	st.DispatchRate = c.results.Throughput(throughputWindow, seqbuffer.DirectionPop)
	st.IngestRunning = c.ingest.Running()
	st.DriveRunning = c.drive.Running()
	st.WorkersRunning = c.pool.WorkersRunning()
	return st
}

// SourceReleased returns true if the capture source has been closed or was never opened
func (c *Controller) SourceReleased() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.ingest == nil || c.ingest.SourceClosed().Peek()
}

func (c *Controller) onSourceExhausted(err error) {
	c.cause.CompareAndSwap(nil, &err)
	c.logger.Warnf("stop on source exhaustion after %d queued frames are processed", c.frames.Len())
	go func() {
		c.awaitDrained(defs.PipelineDrainTimeout)
		c.Stop()
	}()
}

// awaitDrained waits until queued frames are all analysed and their results dispatched, or until timeout or Stop
func (c *Controller) awaitDrained(timeout time.Duration) {
	ticker := time.NewTicker(defs.WorkerPollInterval)
	defer ticker.Stop()
	deadline := time.Now().Add(timeout)

	// a frame popped by a worker isn't counted as busy yet, so the idle state has to be seen twice in a row
	idleTimes := 0
	for c.State() == StateRunning {
		if c.drained() {
			idleTimes++
		} else {
			idleTimes = 0
		}
		switch {
		case idleTimes >= 2:
			c.logger.Info("all queued frames processed")
			return
		case c.pool.Stopped().Peek():
			c.logger.Warnf("all workers stopped, %d queued frames left", c.frames.Len())
			return
		case time.Now().After(deadline):
			c.logger.Warnf("timeout processing queued frames after %s, %d frames and %d results left",
				timeout, c.frames.Len(), c.results.Len())
			return
		}
		<-ticker.C
	}
}

func (c *Controller) drained() bool {
	if !c.frames.Empty() || !c.pool.Idle() {
		return false
	}
	// results held back forever are left to the final drain in stop
	return c.spec.Pipeline.ResultBuffer.ConflictHoldback < 0 || c.results.Empty()
}

func (c *Controller) stop() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		c.logger.Infof("terminate from state %s", c.State())
		c.releaseSinks()
		c.state.Store(int32(StateTerminated))
		c.done.Signal()
		return
	}
	c.logger.Info("stopping")
	c.cancel()

	allStopped := channels.AllAwaitables(c.pool.Stopped(), c.drive.Stopped(), c.ingest.Stopped(), c.ingest.SourceClosed())
	if !allStopped.Wait(defs.PipelineStopTimeout) {
		c.logger.Errorf("timeout waiting for workers to stop after %s, still running: %v", defs.PipelineStopTimeout, c.runningParts())
	}

	if !c.drive.Running() {
		ctx, cancel := context.WithTimeout(context.Background(), defs.SinkDeliveryTimeout)
		if n := c.dispatcher.Drain(ctx); n > 0 {
			c.logger.Infof("delivered %d remaining results", n)
		}
		cancel()
	}
	c.releaseSinks()
	if n := c.frames.Flush(); n > 0 {
		c.logger.Infof("dropped %d unprocessed frames", n)
	}

	c.state.Store(int32(StateTerminated))
	c.logger.Info("terminated")
	c.done.Signal()
}

func (c *Controller) closeSinks() {
	if c.dispatcher != nil {
		c.dispatcher.Close()
		return
	}
	for _, sink := range c.spec.Sinks {
		if err := sink.Close(); err != nil {
			c.logger.Warnf("failed to close sink %s: %s", sink.Name(), err.Error())
		}
	}
}

func (c *Controller) runningParts() []string {
	workers := lo.FilterMap(c.pool.WorkersRunning(), func(running bool, i int) (string, bool) {
		return fmt.Sprintf("worker-%d", i), running
	})
	return lo.Compact(append([]string{
		lo.Ternary(c.ingest.Running(), "ingest", ""),
		lo.Ternary(c.drive.Running(), "drive", ""),
	}, workers...))
}
