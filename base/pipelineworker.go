package base

import (
	"context"

	"github.com/relex/gotils/channels"
)

// PipelineWorker represents a background worker in a stage of the processing pipeline, e.g. ingest or analytic worker
type PipelineWorker interface {
	// Launch starts the worker in background. The worker stops when ctx is cancelled or its input is exhausted
	Launch(ctx context.Context)

	// Running returns false once the main loop has exited
	Running() bool

	Stopped() channels.Awaitable
}
