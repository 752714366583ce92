package defs

// Common labels for logging
const (
	LabelComponent = "component"
	LabelName      = "name"
	LabelPart      = "part"

	LabelStream  = "stream"
	LabelSession = "session"
	LabelWorker  = "worker"
	LabelSink    = "sink"

	LabelRemote = "remote"
)

// Default topic parts used when a stream ID or analytic host is missing
const (
	DefaultTopicPart = "default"
)
