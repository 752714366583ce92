package base

import (
	"image"
	"time"
)

// Record is an item ordered by sequence number in a sequenced buffer
type Record[T any] struct {
	Sequence  uint64
	Timestamp time.Time
	Payload   T

	// Late is set when the record was released after a newer record had already been popped
	Late bool
}

// FrameRecord is a captured frame waiting for analytics
type FrameRecord = Record[image.Image]

// FrameBatch is a list of frame records sorted ascending by sequence
type FrameBatch = []FrameRecord

// ResultRecord is an analytic result waiting for dispatch to sinks
type ResultRecord = Record[*Result]
