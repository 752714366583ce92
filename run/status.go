package run

import (
	"time"
)

// Status is a snapshot of a pipeline; fields after Error are only set once the pipeline has been running
type Status struct {
	State     State  `json:"state"`
	Source    string `json:"source"`
	StreamID  string `json:"streamId"`
	SessionID string `json:"sessionId"`
	Analytic  string `json:"analytic"`
	Error     string `json:"error,omitempty"`

	Since          time.Time `json:"since,omitempty"`
	Topic          string    `json:"topic,omitempty"`
	Sinks          []string  `json:"sinks,omitempty"`
	QueuedFrames   int       `json:"queuedFrames"`
	QueuedResults  int       `json:"queuedResults"`
	IngestRate     float64   `json:"ingestFps"`
	AnalyticRate   float64   `json:"analyticFps"`
	DispatchRate   float64   `json:"dispatchFps"`
	IngestRunning  bool      `json:"ingestRunning"`
	DriveRunning   bool      `json:"driveRunning"`
	WorkersRunning []bool    `json:"workersRunning,omitempty"`
}
