package bsupport

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/relex/frame-agent/util"
	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
)

// ErrWorkerCrashed is returned by PipelineWorkerBase.Run when the main loop panicked
var ErrWorkerCrashed = errors.New("worker crashed")

// PipelineWorkerBase is the base worker class for pipeline workers
//
// It runs an iteration function until the context is cancelled or the function reports the end of input, tracks
// the "running" flag, and triggers "stop" signals at the end.
//
// The iteration function is the only thing required from its composite parent. A panic in the main loop terminates
// only this worker.
type PipelineWorkerBase struct {
	_baseLogger    logger.Logger
	_baseRunning   atomic.Bool
	_baseStopped   *channels.SignalAwaitable
	_baseErr       atomic.Pointer[error]
	_baseOnIterate func(ctx context.Context) bool
	_baseOnStop    func()
}

// NewPipelineWorkerBase creates a new PipelineWorkerBase
func NewPipelineWorkerBase(logger logger.Logger) PipelineWorkerBase {
	return PipelineWorkerBase{
		_baseLogger:  logger,
		_baseStopped: channels.NewSignalAwaitable(),
	}
}

// InitInternal initializes the internal function references called in processing loops
//
// iterationHandler returns false to end the main loop; stopHandler is called after the running flag is cleared.
func (worker *PipelineWorkerBase) InitInternal(
	iterationHandler func(ctx context.Context) bool,
	stopHandler func(),
) {
	if worker._baseOnIterate != nil {
		worker._baseLogger.Panic("re-initialization called")
	}
	worker._baseOnIterate = iterationHandler
	worker._baseOnStop = stopHandler
}

// Launch starts the main loop in background, and signals Stopped() at the end
func (worker *PipelineWorkerBase) Launch(ctx context.Context) {
	worker._baseRunning.Store(true)
	go func() {
		if err := worker.Run(ctx); err != nil {
			worker._baseErr.Store(&err)
		}
		worker._baseStopped.Signal()
	}()
}

// Run runs the main loop in the current goroutine
//
// It may be called again after returning, e.g. by a supervisor restarting a crashed worker.
func (worker *PipelineWorkerBase) Run(ctx context.Context) (err error) {
	worker._baseRunning.Store(true)
	defer func() {
		if r := recover(); r != nil {
			worker._baseLogger.Errorf("crashed: %v. stack=%s", r, util.Stack())
			err = fmt.Errorf("%w: %v", ErrWorkerCrashed, r)
		}
		worker._baseRunning.Store(false)
		if worker._baseOnStop != nil {
			worker._baseOnStop()
		}
	}()

	worker._baseLogger.Info("start main loop")
	for ctx.Err() == nil {
		if !worker._baseOnIterate(ctx) {
			worker._baseLogger.Info("end main loop on end of input")
			return nil
		}
	}
	worker._baseLogger.Info("end main loop on cancellation")
	return nil
}

// Err returns the crash error of a launched worker after it's stopped, or nil
func (worker *PipelineWorkerBase) Err() error {
	if p := worker._baseErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Logger returns the logger
func (worker *PipelineWorkerBase) Logger() logger.Logger {
	return worker._baseLogger
}

// Running returns true if the main loop hasn't exited yet
func (worker *PipelineWorkerBase) Running() bool {
	return worker._baseRunning.Load()
}

// Stopped returns an Awaitable which is signaled when a launched worker is stopped
func (worker *PipelineWorkerBase) Stopped() channels.Awaitable {
	return worker._baseStopped
}
