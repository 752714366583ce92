package base

import (
	"image"
	"time"
)

// CapturedFrame is a frame read from a capture source
type CapturedFrame struct {
	Image image.Image

	// Position is the frame number reported by the source, or 0 if unknown
	Position uint64

	// Timestamp is the capture time, or zero to use the time of reading
	Timestamp time.Time
}

// CaptureSource is an opened video source, e.g. RTSP stream, video file or image directory
//
// Read may be polled faster than the source frame rate and returns an error wrapping ErrTransientRead when no frame is ready.
// An error wrapping ErrSourceClosed means the source is exhausted and no further reads can succeed.
//
// A CaptureSource is used by a single goroutine.
type CaptureSource interface {
	Read() (CapturedFrame, error)
	Close() error
}

// CaptureOptions are hints passed to a CaptureOpener
type CaptureOptions struct {
	FrameWidth  int
	FrameHeight int
}

// CaptureOpener opens a capture source at the given address
type CaptureOpener func(address string, options CaptureOptions) (CaptureSource, error)
