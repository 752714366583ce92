//go:build gocv

// Package gocvcapture reads frames from video files, devices and network streams through OpenCV
package gocvcapture

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/relex/frame-agent/base"
	"gocv.io/x/gocv"
)

type source struct {
	mutex   sync.Mutex
	capture *gocv.VideoCapture
	mat     gocv.Mat
	closed  bool
}

// Open opens a video capture; numeric addresses are device IDs
func Open(address string, options base.CaptureOptions) (base.CaptureSource, error) {
	var device any = address
	if id, err := strconv.Atoi(address); err == nil {
		device = id
	}
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", address, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("failed to open %q", address)
	}
	vc.Set(gocv.VideoCaptureBufferSize, 1)
	if options.FrameWidth > 0 && options.FrameHeight > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(options.FrameWidth))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(options.FrameHeight))
	}
	return &source{
		capture: vc,
		mat:     gocv.NewMat(),
	}, nil
}

func (src *source) Read() (base.CapturedFrame, error) {
	src.mutex.Lock()
	defer src.mutex.Unlock()

	if src.closed {
		return base.CapturedFrame{}, base.ErrSourceClosed
	}
	if ok := src.capture.Read(&src.mat); !ok {
		return base.CapturedFrame{}, fmt.Errorf("%w: no frame", base.ErrTransientRead)
	}
	if src.mat.Empty() {
		return base.CapturedFrame{}, fmt.Errorf("%w: empty frame", base.ErrTransientRead)
	}
	img, err := src.mat.ToImage()
	if err != nil {
		return base.CapturedFrame{}, fmt.Errorf("%w: %w", base.ErrTransientRead, err)
	}
	return base.CapturedFrame{
		Image:     img,
		Position:  uint64(src.capture.Get(gocv.VideoCapturePosFrames)),
		Timestamp: time.Now(),
	}, nil
}

func (src *source) Close() error {
	src.mutex.Lock()
	defer src.mutex.Unlock()
	if src.closed {
		return nil
	}
	src.closed = true
	src.mat.Close()
	return src.capture.Close()
}
