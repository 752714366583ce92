package analytic

import (
	"image"
	"time"

	"github.com/relex/frame-agent/analytic/annotate"
	"github.com/relex/frame-agent/base"
)

// FrameHandler is passed to single-frame analytics
type FrameHandler struct {
	record   base.FrameRecord
	analytic base.AnalyticInfo
	result   *base.Result
}

// NewFrameHandler creates a FrameHandler for one frame
func NewFrameHandler(record base.FrameRecord, stream StreamInfo) *FrameHandler {
	return &FrameHandler{
		record: record,
		result: newResult(record, stream),
	}
}

func (h *FrameHandler) sealed() {}

// Frame returns the decoded frame
func (h *FrameHandler) Frame() image.Image {
	return h.record.Payload
}

// FrameNumber returns the sequence number of the frame
func (h *FrameHandler) FrameNumber() uint64 {
	return h.record.Sequence
}

// Timestamp returns the capture time of the frame
func (h *FrameHandler) Timestamp() time.Time {
	return h.record.Timestamp
}

// AnalyticMetadata returns the metadata to be merged into the result
func (h *FrameHandler) AnalyticMetadata() base.AnalyticInfo {
	return h.analytic
}

// AddBoundingBox adds a classified region, clamped inside of the frame
func (h *FrameHandler) AddBoundingBox(classification string, confidence float64, x1, y1, x2, y2 int) {
	h.AddBoundingBoxWithSupplement(classification, confidence, x1, y1, x2, y2, "")
}

// AddBoundingBoxWithSupplement is AddBoundingBox with supplementary data of the region, e.g. a tracking ID
func (h *FrameHandler) AddBoundingBoxWithSupplement(classification string, confidence float64, x1, y1, x2, y2 int, supplement string) {
	roi := newRegion(h.record.Payload, classification, confidence, x1, y1, x2, y2, supplement)
	h.result.RegionsOfInterest = append(h.result.RegionsOfInterest, roi)
}

// AddTags adds data tags to the result
func (h *FrameHandler) AddTags(tags map[string]string) {
	for k, v := range tags {
		setTag(h.result, k, v)
	}
}

// AddTag adds a data tag of any printable value
func (h *FrameHandler) AddTag(key string, value any) {
	setTag(h.result, key, formatValue(value))
}

// AddFilter records a filter applied by the analytic
func (h *FrameHandler) AddFilter(name string, value any) {
	if h.analytic.Filters == nil {
		h.analytic.Filters = make(map[string]string)
	}
	h.analytic.Filters[name] = formatValue(value)
}

// AddOperation records an operation performed by the analytic
func (h *FrameHandler) AddOperation(operation string) {
	h.analytic.Operations = append(h.analytic.Operations, operation)
}

// SetName sets the analytic name in the result
func (h *FrameHandler) SetName(name string) {
	h.analytic.Name = name
}

// SetStartTime marks the beginning of processing
func (h *FrameHandler) SetStartTime() {
	h.result.StartTime = nowMillis()
}

// SetEndTime marks the end of processing
func (h *FrameHandler) SetEndTime() {
	h.result.EndTime = nowMillis()
}

// UpdateAnalyticMetadata merges the given analytic info into the metadata of the result
func (h *FrameHandler) UpdateAnalyticMetadata(info base.AnalyticInfo) {
	mergeAnalyticInfo(&h.analytic, info)
}

// AddFrame attaches the JPEG-encoded frame to the result, optionally scaled
func (h *FrameHandler) AddFrame(quality int, scale float64) error {
	return h.attachFrame(h.record.Payload, quality, scale)
}

// AddRenderFrame attaches the frame with all regions drawn
//
// If there is no region, the plain frame is attached only if any of classTags is set to a true value in data tags.
func (h *FrameHandler) AddRenderFrame(quality int, scale float64, classTags ...string) error {
	if h.record.Payload == nil {
		return nil
	}
	if len(h.result.RegionsOfInterest) == 0 {
		for _, tag := range classTags {
			if isTruthy(h.result.Tags[tag]) {
				return h.AddFrame(quality, scale)
			}
		}
		return nil
	}
	return h.attachFrame(annotate.DrawRegions(h.record.Payload, h.result.RegionsOfInterest), quality, scale)
}

// Responses returns the result with analytic metadata and frame info
func (h *FrameHandler) Responses() []*base.Result {
	mergeAnalyticInfo(&h.result.Analytic, h.analytic)
	fillFrameByteSize(h.result, h.record.Payload)
	return []*base.Result{h.result}
}

func (h *FrameHandler) attachFrame(frame image.Image, quality int, scale float64) error {
	return attachFrame(h.result, h.record.Payload, frame, quality, scale)
}

func attachFrame(result *base.Result, original image.Image, frame image.Image, quality int, scale float64) error {
	if frame == nil {
		return nil
	}
	data, err := annotate.EncodeJPEG(annotate.Scale(frame, scale), quality)
	if err != nil {
		return err
	}
	b := original.Bounds()
	result.Frame.Width = b.Dx()
	result.Frame.Height = b.Dy()
	result.Frame.Channels = annotate.Channels(original)
	result.Frame.Image = data
	result.Frame.ByteSize = len(data)
	return nil
}

// fillFrameByteSize sets the size of the frame in max-quality JPEG, unless a frame is attached
func fillFrameByteSize(result *base.Result, frame image.Image) {
	if result.Frame.ByteSize != 0 || frame == nil {
		return
	}
	if data, err := annotate.EncodeJPEG(frame, 100); err == nil {
		result.Frame.ByteSize = len(data)
	}
}
