package bconfig

import (
	"github.com/relex/frame-agent/base"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
)

// SinkConfig is the YAML-unmarshallable configuration of a result sink
type SinkConfig interface {
	BaseConfig

	// NewSink connects to the destination and creates a ResultSink
	NewSink(parentLogger logger.Logger, metricCreator promreg.MetricCreator) (base.ResultSink, error)

	VerifyConfig() error
}

// SinkConfigHolder holds a SinkConfig in YAML
type SinkConfigHolder = ConfigHolder[SinkConfig]

// SinkConfigCreatorTable maps sink types to their config constructors
type SinkConfigCreatorTable = ConfigCreatorTable[SinkConfig]
