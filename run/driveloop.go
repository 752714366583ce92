package run

import (
	"context"

	"github.com/relex/frame-agent/base/bsupport"
	"github.com/relex/frame-agent/defs"
	"github.com/relex/frame-agent/output/dispatch"
	"github.com/relex/gotils/logger"
)

// driveLoop runs the dispatcher on behalf of the controller, until cancellation
type driveLoop struct {
	bsupport.PipelineWorkerBase
	dispatcher *dispatch.Dispatcher
}

func newDriveLoop(parentLogger logger.Logger, dispatcher *dispatch.Dispatcher) *driveLoop {
	loop := &driveLoop{
		PipelineWorkerBase: bsupport.NewPipelineWorkerBase(parentLogger.WithField(defs.LabelPart, "drive")),
		dispatcher:         dispatcher,
	}
	loop.InitInternal(loop.iterate, nil)
	return loop
}

func (loop *driveLoop) iterate(ctx context.Context) bool {
	loop.dispatcher.DispatchNext(ctx)
	return true
}
