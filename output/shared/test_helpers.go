package shared

import (
	"time"

	"github.com/relex/frame-agent/base"
)

// NewTestResult creates a result with the given regions for sink tests
func NewTestResult(frameNumber uint64, regions ...base.RegionOfInterest) *base.Result {
	return &base.Result{
		Analytic: base.AnalyticInfo{
			Name:    "test",
			Address: "10.1.2.3:50051",
			Filters: map[string]string{"minConfidence": "0.3"},
		},
		Frame: base.FrameInfo{
			Number:    frameNumber,
			Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			Width:     640,
			Height:    480,
			Channels:  3,
			ByteSize:  12345,
		},
		RegionsOfInterest: regions,
		Tags:              map[string]string{"test": "True"},
		StartTime:         time.Date(2024, 1, 2, 3, 4, 5, 100_000_000, time.UTC),
		EndTime:           time.Date(2024, 1, 2, 3, 4, 5, 150_000_000, time.UTC),
		StreamAddress:     "rtsp://camera-1/main",
		StreamID:          "camera-1",
		SessionID:         "session-1",
	}
}

// TestRegions are two regions of interest for sink tests
var TestRegions = []base.RegionOfInterest{
	{Classification: "person", Confidence: 0.9, Box: base.BoundingBox{X1: 10, Y1: 20, X2: 110, Y2: 220}},
	{Classification: "car", Confidence: 0.6, Box: base.BoundingBox{X1: 300, Y1: 200, X2: 500, Y2: 400}, Supplement: "track-7"},
}
