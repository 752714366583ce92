package workerpool

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"

	"github.com/relex/frame-agent/analytic"
	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/base/bsupport"
	"github.com/relex/frame-agent/buffer/seqbuffer"
	"github.com/relex/frame-agent/defs"
	"github.com/relex/gotils/logger"
	"github.com/thejerf/suture/v4"
)

// analyticWorker pops frames, invokes the analytic and pushes results
type analyticWorker struct {
	bsupport.PipelineWorkerBase
	id      int
	binding analytic.Binding
	options analytic.InvokeOptions
	input   *seqbuffer.Buffer[image.Image]
	output  *seqbuffer.Buffer[*base.Result]
	busy    *atomic.Int32
	metrics *poolMetrics
	onPop   func(records base.FrameBatch) // test hook, called outside of the callback
}

func newAnalyticWorker(parentLogger logger.Logger, id int, binding analytic.Binding, options analytic.InvokeOptions,
	input *seqbuffer.Buffer[image.Image], output *seqbuffer.Buffer[*base.Result], busy *atomic.Int32, metrics *poolMetrics) *analyticWorker {

	worker := &analyticWorker{
		PipelineWorkerBase: bsupport.NewPipelineWorkerBase(parentLogger.WithField(defs.LabelWorker, id)),
		id:                 id,
		binding:            binding,
		options:            options,
		input:              input,
		output:             output,
		busy:               busy,
		metrics:            metrics,
	}
	worker.InitInternal(worker.iterate, nil)
	return worker
}

func (worker *analyticWorker) iterate(ctx context.Context) bool {
	var records base.FrameBatch
	if size := worker.binding.BatchSize(); size > 1 {
		records = worker.input.PopBatchWait(ctx, size, defs.WorkerPollInterval)
	} else {
		records = worker.input.PopWait(ctx, 1, defs.WorkerPollInterval)
	}
	if len(records) == 0 {
		return true
	}
	worker.busy.Add(1)
	defer worker.busy.Add(-1)

	if worker.onPop != nil {
		worker.onPop(records)
	}

	worker.metrics.invocations.Inc()
	results, err := worker.binding.Invoke(ctx, records, worker.options)
	if err != nil {
		worker.metrics.callbackFailures.Inc()
		worker.Logger().Errorf("analytic failed on frames %d-%d: %s", records[0].Sequence, records[len(records)-1].Sequence, err.Error())
		return true
	}

	for i, result := range results {
		rec := records[min(i, len(records)-1)]
		res := base.ResultRecord{
			Sequence:  rec.Sequence,
			Timestamp: rec.Timestamp,
			Payload:   result,
		}
		if perr := worker.output.PushWait(ctx, res); perr != nil {
			worker.metrics.droppedResults.Inc()
			if !errors.Is(perr, seqbuffer.ErrBufferFull) {
				return false
			}
			worker.Logger().Warnf("result of frame %d dropped: %s", rec.Sequence, perr.Error())
			continue
		}
		worker.metrics.results.Inc()
	}
	return true
}

// Serve runs the worker under a supervisor
func (worker *analyticWorker) Serve(ctx context.Context) error {
	worker.metrics.runningWorkers.Inc()
	err := worker.Run(ctx)
	worker.metrics.runningWorkers.Dec()
	if err != nil {
		worker.metrics.crashes.Inc()
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: worker %d ended", suture.ErrDoNotRestart, worker.id)
}

func (worker *analyticWorker) String() string {
	return fmt.Sprintf("AnalyticWorker-%d", worker.id)
}
