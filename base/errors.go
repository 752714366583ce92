package base

import (
	"errors"
)

// Error categories of the frame pipeline
var (
	// ErrSourceUnavailable means the capture cannot be opened or read anymore; it's fatal to a pipeline
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSourceClosed is returned by CaptureSource.Read once the source is exhausted
	ErrSourceClosed = errors.New("source closed")

	// ErrTransientRead is returned by CaptureSource.Read on a single missed frame
	ErrTransientRead = errors.New("transient read failure")

	// ErrBufferConflict means a pop would go behind the last popped sequence
	ErrBufferConflict = errors.New("buffer conflict")

	// ErrCallbackFailure means the analytic callback failed on a frame or batch
	ErrCallbackFailure = errors.New("analytic callback failure")

	// ErrSinkFailure means a result could not be delivered to a sink
	ErrSinkFailure = errors.New("sink failure")

	// ErrConfigurationConflict means a new configuration arrived while a pipeline was active
	ErrConfigurationConflict = errors.New("configuration conflict")

	// ErrInvalidRequest means a configuration request was rejected by validation
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotRunning means there is no active pipeline
	ErrNotRunning = errors.New("no pipeline running")
)
