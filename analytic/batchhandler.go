package analytic

import (
	"fmt"
	"image"
	"time"

	"github.com/relex/frame-agent/analytic/annotate"
	"github.com/relex/frame-agent/base"
)

// BatchHandler is passed to analytics processing a batch of adjacent frames
//
// Annotations without a frame index apply to every frame in the batch.
type BatchHandler struct {
	records    base.FrameBatch
	analytic   base.AnalyticInfo
	results    []*base.Result
	frameIndex int
}

// NewBatchHandler creates a BatchHandler for frames sorted by sequence
func NewBatchHandler(records base.FrameBatch, stream StreamInfo) *BatchHandler {
	results := make([]*base.Result, len(records))
	for i, rec := range records {
		results[i] = newResult(rec, stream)
	}
	return &BatchHandler{
		records: records,
		results: results,
	}
}

func (h *BatchHandler) sealed() {}

// Len returns the numbers of frames in the batch
func (h *BatchHandler) Len() int {
	return len(h.records)
}

// Frames returns all the decoded frames
func (h *BatchHandler) Frames() []image.Image {
	frames := make([]image.Image, len(h.records))
	for i, rec := range h.records {
		frames[i] = rec.Payload
	}
	return frames
}

// NextFrame iterates over frames; it returns false after the last frame
func (h *BatchHandler) NextFrame() (image.Image, bool) {
	if h.frameIndex >= len(h.records) {
		return nil, false
	}
	frame := h.records[h.frameIndex].Payload
	h.frameIndex++
	return frame, true
}

// FrameNumbers returns the sequence numbers of frames
func (h *BatchHandler) FrameNumbers() []uint64 {
	numbers := make([]uint64, len(h.records))
	for i, rec := range h.records {
		numbers[i] = rec.Sequence
	}
	return numbers
}

// Timestamps returns the capture times of frames
func (h *BatchHandler) Timestamps() []time.Time {
	timestamps := make([]time.Time, len(h.records))
	for i, rec := range h.records {
		timestamps[i] = rec.Timestamp
	}
	return timestamps
}

// AnalyticMetadata returns the metadata to be merged into results
func (h *BatchHandler) AnalyticMetadata() base.AnalyticInfo {
	return h.analytic
}

// AddBoundingBox adds a classified region to every frame
func (h *BatchHandler) AddBoundingBox(classification string, confidence float64, x1, y1, x2, y2 int) {
	for i := range h.records {
		h.addRegion(i, classification, confidence, x1, y1, x2, y2, "")
	}
}

// AddBoundingBoxAt adds a classified region to the frame at index
func (h *BatchHandler) AddBoundingBoxAt(index int, classification string, confidence float64, x1, y1, x2, y2 int, supplement string) error {
	if err := h.checkIndex(index); err != nil {
		return err
	}
	h.addRegion(index, classification, confidence, x1, y1, x2, y2, supplement)
	return nil
}

// AddTags adds data tags to every frame
func (h *BatchHandler) AddTags(tags map[string]string) {
	for _, result := range h.results {
		for k, v := range tags {
			setTag(result, k, v)
		}
	}
}

// AddTagsAt adds data tags to the frame at index
func (h *BatchHandler) AddTagsAt(index int, tags map[string]string) error {
	if err := h.checkIndex(index); err != nil {
		return err
	}
	for k, v := range tags {
		setTag(h.results[index], k, v)
	}
	return nil
}

// AddTag adds a data tag of any printable value to every frame
func (h *BatchHandler) AddTag(key string, value any) {
	formatted := formatValue(value)
	for _, result := range h.results {
		setTag(result, key, formatted)
	}
}

// AddFilter records a filter applied by the analytic
func (h *BatchHandler) AddFilter(name string, value any) {
	if h.analytic.Filters == nil {
		h.analytic.Filters = make(map[string]string)
	}
	h.analytic.Filters[name] = formatValue(value)
}

// AddOperation records an operation performed by the analytic
func (h *BatchHandler) AddOperation(operation string) {
	h.analytic.Operations = append(h.analytic.Operations, operation)
}

// SetName sets the analytic name
func (h *BatchHandler) SetName(name string) {
	h.analytic.Name = name
}

// SetStartTime marks the beginning of processing on every frame
func (h *BatchHandler) SetStartTime() {
	start := nowMillis()
	for _, result := range h.results {
		result.StartTime = start
	}
}

// SetEndTime marks the end of processing on every frame
func (h *BatchHandler) SetEndTime() {
	end := nowMillis()
	for _, result := range h.results {
		result.EndTime = end
	}
}

// UpdateAnalyticMetadata merges the given analytic info into the metadata of results
func (h *BatchHandler) UpdateAnalyticMetadata(info base.AnalyticInfo) {
	mergeAnalyticInfo(&h.analytic, info)
}

// AddFrames attaches every JPEG-encoded frame to its result, optionally scaled
func (h *BatchHandler) AddFrames(quality int, scale float64) error {
	for i, rec := range h.records {
		if err := attachFrame(h.results[i], rec.Payload, rec.Payload, quality, scale); err != nil {
			return err
		}
	}
	return nil
}

// AddRenderFrames attaches every frame with its regions drawn
func (h *BatchHandler) AddRenderFrames(quality int, scale float64) error {
	for i, rec := range h.records {
		if rec.Payload == nil {
			continue
		}
		frame := rec.Payload
		if regions := h.results[i].RegionsOfInterest; len(regions) > 0 {
			frame = annotate.DrawRegions(frame, regions)
		}
		if err := attachFrame(h.results[i], rec.Payload, frame, quality, scale); err != nil {
			return err
		}
	}
	return nil
}

// Responses returns one result per frame, with analytic metadata and frame info
func (h *BatchHandler) Responses() []*base.Result {
	for i, result := range h.results {
		mergeAnalyticInfo(&result.Analytic, h.analytic)
		fillFrameByteSize(result, h.records[i].Payload)
	}
	return h.results
}

func (h *BatchHandler) addRegion(index int, classification string, confidence float64, x1, y1, x2, y2 int, supplement string) {
	roi := newRegion(h.records[index].Payload, classification, confidence, x1, y1, x2, y2, supplement)
	h.results[index].RegionsOfInterest = append(h.results[index].RegionsOfInterest, roi)
}

func (h *BatchHandler) checkIndex(index int) error {
	if index < 0 || index >= len(h.records) {
		return fmt.Errorf("frame index %d out of batch of %d", index, len(h.records))
	}
	return nil
}
