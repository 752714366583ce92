package base

import (
	"time"
)

// Result is the output of an analytic for a single frame, enriched with frame and stream identity
type Result struct {
	Analytic          AnalyticInfo       `json:"analytic" msgpack:"analytic"`
	Frame             FrameInfo          `json:"frame" msgpack:"frame"`
	RegionsOfInterest []RegionOfInterest `json:"roi,omitempty" msgpack:"roi,omitempty"`
	Tags              map[string]string  `json:"tags,omitempty" msgpack:"tags,omitempty"`
	StartTime         time.Time          `json:"startTime" msgpack:"startTime"`
	EndTime           time.Time          `json:"endTime" msgpack:"endTime"`
	StreamAddress     string             `json:"streamAddress" msgpack:"streamAddress"`
	StreamID          string             `json:"streamId,omitempty" msgpack:"streamId,omitempty"`
	SessionID         string             `json:"sessionId,omitempty" msgpack:"sessionId,omitempty"`
}

// AnalyticInfo describes the analytic which produced a result
type AnalyticInfo struct {
	Name             string            `json:"name" msgpack:"name"`
	Address          string            `json:"addr" msgpack:"addr"`
	RequiresGPU      bool              `json:"requiresGpu,omitempty" msgpack:"requiresGpu,omitempty"`
	Operations       []string          `json:"operations,omitempty" msgpack:"operations,omitempty"`
	Filters          map[string]string `json:"filters,omitempty" msgpack:"filters,omitempty"`
	ReplicaAddresses []string          `json:"replicaAddrs,omitempty" msgpack:"replicaAddrs,omitempty"`
}

// FrameInfo echoes the identity of the analysed frame, and optionally the encoded frame itself
type FrameInfo struct {
	Number    uint64    `json:"frameNum" msgpack:"frameNum"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
	Width     int       `json:"width,omitempty" msgpack:"width,omitempty"`
	Height    int       `json:"height,omitempty" msgpack:"height,omitempty"`
	Channels  int       `json:"color,omitempty" msgpack:"color,omitempty"`
	ByteSize  int       `json:"frameByteSize" msgpack:"frameByteSize"`
	Image     []byte    `json:"img,omitempty" msgpack:"img,omitempty"` // JPEG
}

// RegionOfInterest is a classified area of a frame
type RegionOfInterest struct {
	Classification string      `json:"classification" msgpack:"classification"`
	Confidence     float64     `json:"confidence" msgpack:"confidence"`
	Box            BoundingBox `json:"box" msgpack:"box"`
	Supplement     string      `json:"supplement,omitempty" msgpack:"supplement,omitempty"`
}

// BoundingBox is a rectangle in frame pixel coordinates
type BoundingBox struct {
	X1 int `json:"x1" msgpack:"x1"`
	Y1 int `json:"y1" msgpack:"y1"`
	X2 int `json:"x2" msgpack:"x2"`
	Y2 int `json:"y2" msgpack:"y2"`
}

// Clone makes a deep copy of the result, so that replicas can be modified independently
func (r *Result) Clone() *Result {
	c := *r
	c.Analytic.Operations = append([]string(nil), r.Analytic.Operations...)
	c.Analytic.ReplicaAddresses = append([]string(nil), r.Analytic.ReplicaAddresses...)
	c.Analytic.Filters = cloneStringMap(r.Analytic.Filters)
	c.RegionsOfInterest = append([]RegionOfInterest(nil), r.RegionsOfInterest...)
	c.Tags = cloneStringMap(r.Tags)
	c.Frame.Image = append([]byte(nil), r.Frame.Image...)
	return &c
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
