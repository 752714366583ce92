package defs

import (
	"time"
)

var (
	// IngestRetryInterval defines how long to back off after a failed frame read
	//
	// A single failed read is a transient failure and is not surfaced
	IngestRetryInterval = 500 * time.Millisecond

	// IngestMaxConsecutiveFailures defines how many transient read failures in a row are treated as source exhaustion
	//
	// 0 = unlimited, only an explicit closed source ends ingestion
	IngestMaxConsecutiveFailures = 120

	// WorkerPollInterval defines the longest wait of an analytic worker on an empty input buffer before it checks cancellation again
	WorkerPollInterval = 100 * time.Millisecond

	// DispatchPollInterval defines the longest wait of the dispatcher on an empty output buffer
	DispatchPollInterval = 500 * time.Millisecond

	// BufferConflictHoldback defines how long a record behind the last popped sequence is held before being released as late
	//
	// A late record is delivered instead of stalling an ordered buffer forever
	BufferConflictHoldback = 1 * time.Second

	// BufferThroughputRetention defines how long push/pop events are remembered for throughput queries
	BufferThroughputRetention = 60 * time.Second

	// DefaultInputCapacity is the default capacity of the frame buffer between ingest and analytic workers
	//
	// Frames are dropped oldest-first in realtime mode when the capacity is reached
	DefaultInputCapacity = 256

	// CaptureReleaseTimeout defines how long the ingest worker waits for analytic workers to stop before closing the capture anyway
	CaptureReleaseTimeout = 10 * time.Second

	// PipelineStopTimeout defines how long a controller waits for all workers to stop
	PipelineStopTimeout = 30 * time.Second

	// PipelineDrainTimeout defines how long a controller keeps analysing queued frames after its source is exhausted
	PipelineDrainTimeout = 60 * time.Second

	// SinkBreakerFailureThreshold is the number of consecutive failures to open a sink's circuit breaker
	SinkBreakerFailureThreshold uint32 = 5

	// SinkBreakerOpenTimeout is how long a sink's circuit breaker stays open before a trial delivery
	SinkBreakerOpenTimeout = 10 * time.Second

	// SinkDeliveryTimeout bounds a single delivery to a sink
	SinkDeliveryTimeout = 5 * time.Second

	// WorkerRestartBackoff is the supervisor backoff after repeated worker crashes
	WorkerRestartBackoff = 5 * time.Second

	// ControlShutdownTimeout is for graceful shutdown of HTTP listeners
	ControlShutdownTimeout = 10 * time.Second
)

// For testing and experiments
const (
	TestReadTimeout = 5 * time.Second
)

// EnableTestMode turns on test mode with very short timeout and minimal retry delay
func EnableTestMode() {
	IngestRetryInterval = 10 * time.Millisecond
	WorkerPollInterval = 10 * time.Millisecond
	DispatchPollInterval = 10 * time.Millisecond
	BufferConflictHoldback = 100 * time.Millisecond
	CaptureReleaseTimeout = 2 * time.Second
	PipelineStopTimeout = 3 * time.Second
	PipelineDrainTimeout = 2 * time.Second
	SinkBreakerOpenTimeout = 200 * time.Millisecond
	SinkDeliveryTimeout = 1 * time.Second
	WorkerRestartBackoff = 50 * time.Millisecond
}
