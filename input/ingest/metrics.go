package ingest

import (
	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/gotils/promexporter/promreg"
)

type ingestMetrics struct {
	framesRead        promext.RWCounter
	framesDropped     promext.RWCounter
	transientFailures promext.RWCounter
}

func newIngestMetrics(parentMetricCreator promreg.MetricCreator) ingestMetrics {
	metricCreator := parentMetricCreator.AddOrGetPrefix("ingest_", nil, nil)
	return ingestMetrics{
		framesRead:        metricCreator.AddOrGetCounter("frames_total", "Numbers of frames read from the capture source", nil, nil),
		framesDropped:     metricCreator.AddOrGetCounter("dropped_frames_total", "Numbers of frames read but not accepted by the frame buffer", nil, nil),
		transientFailures: metricCreator.AddOrGetCounter("transient_failures_total", "Numbers of failed frame reads", nil, nil),
	}
}
