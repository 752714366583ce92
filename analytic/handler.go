// Package analytic provides the handlers passed to analytic callbacks and the binding of callbacks to pipelines
package analytic

import (
	"fmt"
	"image"
	"time"

	"github.com/relex/frame-agent/base"
)

// BoxMargin is the min distance in pixels between a bounding box and the frame edges
const BoxMargin = 2

// Handler is the capability shared by FrameHandler and BatchHandler
//
// The set of implementations is closed.
type Handler interface {
	// AddBoundingBox adds a classified region, clamped inside of the frame
	AddBoundingBox(classification string, confidence float64, x1, y1, x2, y2 int)
	AddTags(tags map[string]string)
	AddTag(key string, value any)
	AddFilter(name string, value any)
	AddOperation(operation string)
	SetName(name string)
	SetStartTime()
	SetEndTime()
	UpdateAnalyticMetadata(info base.AnalyticInfo)

	// Responses returns one result per frame, with analytic metadata merged
	Responses() []*base.Result

	sealed()
}

// StreamInfo identifies the stream and session results belong to
type StreamInfo struct {
	Address   string
	ID        string
	SessionID string
}

// ClampBox crops a box to the frame bounds minus BoxMargin
func ClampBox(bounds image.Rectangle, x1, y1, x2, y2 int) base.BoundingBox {
	clamp := func(val int, min int, max int) int {
		if val > max-BoxMargin {
			val = max - BoxMargin
		}
		if val < min+BoxMargin {
			val = min + BoxMargin
		}
		return val
	}
	return base.BoundingBox{
		X1: clamp(x1, bounds.Min.X, bounds.Max.X),
		Y1: clamp(y1, bounds.Min.Y, bounds.Max.Y),
		X2: clamp(x2, bounds.Min.X, bounds.Max.X),
		Y2: clamp(y2, bounds.Min.Y, bounds.Max.Y),
	}
}

func newRegion(frame image.Image, classification string, confidence float64, x1, y1, x2, y2 int, supplement string) base.RegionOfInterest {
	var box base.BoundingBox
	if frame != nil {
		box = ClampBox(frame.Bounds(), x1, y1, x2, y2)
	} else {
		box = base.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
	}
	return base.RegionOfInterest{
		Classification: classification,
		Confidence:     confidence,
		Box:            box,
		Supplement:     supplement,
	}
}

func newResult(record base.FrameRecord, stream StreamInfo) *base.Result {
	result := &base.Result{
		Frame: base.FrameInfo{
			Number:    record.Sequence,
			Timestamp: record.Timestamp,
		},
		StreamAddress: stream.Address,
		StreamID:      stream.ID,
		SessionID:     stream.SessionID,
	}
	if record.Payload != nil {
		b := record.Payload.Bounds()
		result.Frame.Width = b.Dx()
		result.Frame.Height = b.Dy()
	}
	return result
}

// mergeAnalyticInfo merges src into dst: non-empty scalars overwrite, lists append and maps merge
func mergeAnalyticInfo(dst *base.AnalyticInfo, src base.AnalyticInfo) {
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Address != "" {
		dst.Address = src.Address
	}
	if src.RequiresGPU {
		dst.RequiresGPU = true
	}
	dst.Operations = append(dst.Operations, src.Operations...)
	dst.ReplicaAddresses = append(dst.ReplicaAddresses, src.ReplicaAddresses...)
	for k, v := range src.Filters {
		if dst.Filters == nil {
			dst.Filters = make(map[string]string, len(src.Filters))
		}
		dst.Filters[k] = v
	}
}

func setTag(result *base.Result, key string, value string) {
	if result.Tags == nil {
		result.Tags = make(map[string]string)
	}
	result.Tags[key] = value
}

func nowMillis() time.Time {
	return time.UnixMilli(time.Now().UnixMilli())
}

func formatValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(v)
	}
}

func isTruthy(value string) bool {
	switch value {
	case "", "0", "False", "false":
		return false
	default:
		return true
	}
}
