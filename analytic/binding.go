package analytic

import (
	"context"
	"fmt"

	"github.com/relex/frame-agent/analytic/annotate"
	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/util"
)

// FrameFunc is an analytic processing one frame at a time
type FrameFunc func(ctx context.Context, handler *FrameHandler) error

// BatchFunc is an analytic processing a batch of adjacent frames
type BatchFunc func(ctx context.Context, handler *BatchHandler) error

// InputType names the handler variant a binding accepts
type InputType string

// Handler variants
const (
	InputFrame InputType = "frame"
	InputBatch InputType = "batch"
)

// RenderScale is the scale of frames attached to results when ReturnFrame is set
const RenderScale = 0.5

// Binding binds an analytic callback with its handler variant and batch size
type Binding struct {
	frameFunc FrameFunc
	batchFunc BatchFunc
	batchSize int
}

// InvokeOptions is the per-pipeline context passed to every invocation
type InvokeOptions struct {
	Stream      StreamInfo
	Analytic    base.AnalyticInfo
	SystemTags  map[string]string
	ReturnFrame bool
}

// NewFrameBinding binds a single-frame analytic
func NewFrameBinding(fn FrameFunc) Binding {
	return Binding{frameFunc: fn, batchSize: 1}
}

// NewBatchBinding binds a batch analytic; batchSize must be positive
func NewBatchBinding(fn BatchFunc, batchSize int) Binding {
	if batchSize <= 0 {
		panic(fmt.Sprintf("invalid batch size: %d", batchSize))
	}
	return Binding{batchFunc: fn, batchSize: batchSize}
}

// IsZero returns true if no callback is bound
func (b Binding) IsZero() bool {
	return b.frameFunc == nil && b.batchFunc == nil
}

// InputType returns the handler variant
func (b Binding) InputType() InputType {
	if b.batchFunc != nil {
		return InputBatch
	}
	return InputFrame
}

// BatchSize returns the number of frames to pop per invocation
func (b Binding) BatchSize() int {
	return b.batchSize
}

// Invoke runs the callback on sorted records and returns one result per frame
//
// Any error or panic from the callback is returned as ErrCallbackFailure and all results are dropped.
func (b Binding) Invoke(ctx context.Context, records base.FrameBatch, options InvokeOptions) (results []*base.Result, err error) {
	if len(records) == 0 {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = fmt.Errorf("%w: panic: %v\n%s", base.ErrCallbackFailure, r, util.Stack())
		}
	}()

	var handler Handler
	var run func() error
	switch b.InputType() {
	case InputFrame:
		if len(records) != 1 {
			return nil, fmt.Errorf("%w: frame analytic given %d frames", base.ErrCallbackFailure, len(records))
		}
		h := NewFrameHandler(records[0], options.Stream)
		handler = h
		run = func() error { return b.frameFunc(ctx, h) }
	case InputBatch:
		h := NewBatchHandler(records, options.Stream)
		handler = h
		run = func() error { return b.batchFunc(ctx, h) }
	}

	handler.UpdateAnalyticMetadata(options.Analytic)
	handler.SetStartTime()
	if cbErr := run(); cbErr != nil {
		return nil, fmt.Errorf("%w: %w", base.ErrCallbackFailure, cbErr)
	}
	handler.SetEndTime()
	handler.AddTags(options.SystemTags)

	if options.ReturnFrame {
		if rerr := renderFrames(handler); rerr != nil {
			return nil, fmt.Errorf("%w: render: %w", base.ErrCallbackFailure, rerr)
		}
	}
	return handler.Responses(), nil
}

func renderFrames(handler Handler) error {
	switch h := handler.(type) {
	case *FrameHandler:
		if h.result.Frame.Image != nil {
			return nil
		}
		if len(h.result.RegionsOfInterest) == 0 {
			return h.AddFrame(annotate.DefaultQuality, RenderScale)
		}
		return h.AddRenderFrame(annotate.DefaultQuality, RenderScale)
	case *BatchHandler:
		return h.AddRenderFrames(annotate.DefaultQuality, RenderScale)
	default:
		panic(fmt.Sprintf("unknown handler type %T", handler))
	}
}
