// Package workerpool runs analytic workers consuming the frame buffer and producing results
package workerpool

import (
	"context"
	"image"
	"sync/atomic"

	"github.com/relex/frame-agent/analytic"
	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/buffer/seqbuffer"
	"github.com/relex/frame-agent/defs"
	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/samber/lo"
	"github.com/thejerf/suture/v4"
)

// Pool is a fixed set of analytic workers sharing the same input and output buffers
//
// A worker crashing outside of the analytic callback stops alone. Unless RestartCrashedWorkers is set, it stays
// dead and the "crashed_workers" gauge shows the lost capacity.
type Pool struct {
	logger  logger.Logger
	config  Config
	workers []*analyticWorker
	busy    *atomic.Int32 // numbers of workers holding popped frames
	stopped *channels.SignalAwaitable
	metrics *poolMetrics
}

// NewPool creates a Pool; workers are launched by Launch
func NewPool(parentLogger logger.Logger, config Config, binding analytic.Binding, options analytic.InvokeOptions,
	input *seqbuffer.Buffer[image.Image], output *seqbuffer.Buffer[*base.Result], metricCreator promreg.MetricCreator) *Pool {

	poolLogger := parentLogger.WithField(defs.LabelComponent, "AnalyticWorkerPool")
	metrics := newPoolMetrics(metricCreator)
	busy := &atomic.Int32{}
	workers := make([]*analyticWorker, config.Workers)
	for i := range workers {
		workers[i] = newAnalyticWorker(poolLogger, i, binding, options, input, output, busy, &metrics)
	}
	return &Pool{
		logger:  poolLogger,
		config:  config,
		workers: workers,
		busy:    busy,
		stopped: channels.NewSignalAwaitable(),
		metrics: &metrics,
	}
}

// Launch starts all workers in background; they stop when ctx is cancelled
func (pool *Pool) Launch(ctx context.Context) {
	pool.logger.Infof("launch %d workers, restartCrashed=%t", len(pool.workers), pool.config.RestartCrashedWorkers)
	if pool.config.RestartCrashedWorkers {
		pool.launchSupervised(ctx)
	} else {
		pool.launchUnsupervised(ctx)
	}
}

// Size returns the numbers of workers
func (pool *Pool) Size() int {
	return len(pool.workers)
}

// Running returns true if any of the workers is running
func (pool *Pool) Running() bool {
	return lo.SomeBy(pool.workers, func(w *analyticWorker) bool { return w.Running() })
}

// Idle returns true if no worker is processing frames, i.e. all popped frames have been turned into results
func (pool *Pool) Idle() bool {
	return pool.busy.Load() == 0
}

// WorkersRunning returns the running flags of all workers
func (pool *Pool) WorkersRunning() []bool {
	return lo.Map(pool.workers, func(w *analyticWorker, _ int) bool { return w.Running() })
}

// Stopped returns an Awaitable signaled after all workers are stopped
func (pool *Pool) Stopped() channels.Awaitable {
	return pool.stopped
}

func (pool *Pool) launchUnsupervised(ctx context.Context) {
	for _, worker := range pool.workers {
		worker.Launch(ctx)
		pool.metrics.runningWorkers.Inc()
	}
	go func() {
		for _, worker := range pool.workers {
			worker.Stopped().WaitForever()
			pool.metrics.runningWorkers.Dec()
			if err := worker.Err(); err != nil {
				pool.metrics.crashes.Inc()
				pool.metrics.crashedWorkers.Inc()
				worker.Logger().Error("worker is lost: ", err)
			}
		}
		pool.logger.Info("all workers stopped")
		pool.stopped.Signal()
	}()
}

func (pool *Pool) launchSupervised(ctx context.Context) {
	supervisor := suture.New("AnalyticWorkerPool", suture.Spec{
		EventHook:        pool.onSupervisorEvent,
		FailureThreshold: float64(len(pool.workers)),
		FailureDecay:     30,
		FailureBackoff:   defs.WorkerRestartBackoff,
		Timeout:          defs.PipelineStopTimeout,
	})
	for _, worker := range pool.workers {
		supervisor.Add(worker)
	}
	done := supervisor.ServeBackground(ctx)
	go func() {
		err := <-done
		if err != nil && ctx.Err() == nil {
			pool.logger.Error("supervisor ended: ", err)
		}
		pool.logger.Info("all workers stopped")
		pool.stopped.Signal()
	}()
}

func (pool *Pool) onSupervisorEvent(event suture.Event) {
	switch e := event.(type) {
	case suture.EventServiceTerminate:
		if e.Restarting {
			pool.metrics.restarts.Inc()
			pool.logger.Warn("restart worker: ", e.String())
		} else {
			pool.logger.Info(e.String())
		}
	case suture.EventBackoff:
		pool.logger.Warn("workers crashing too often: ", e.String())
	default:
		pool.logger.Info(event.String())
	}
}
