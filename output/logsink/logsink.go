// Package logsink writes results to the agent log, for debugging and benchmarks
package logsink

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/base/bconfig"
	"github.com/relex/frame-agent/defs"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/samber/lo"
)

// Config defines the log sink
type Config struct {
	bconfig.Header `yaml:",inline"`
	Level          string `yaml:"level"` // "info" (default) or "debug"
}

// NewSink creates a log sink
func (cfg *Config) NewSink(parentLogger logger.Logger, metricCreator promreg.MetricCreator) (base.ResultSink, error) {
	return NewSink(parentLogger, cfg.Level == "debug"), nil
}

// VerifyConfig checks configuration
func (cfg *Config) VerifyConfig() error {
	switch cfg.Level {
	case "", "info", "debug":
		return nil
	default:
		return fmt.Errorf(".level: unsupported value '%s'", cfg.Level)
	}
}

// Sink logs one line per result
type Sink struct {
	logger    logger.Logger
	debug     bool
	delivered atomic.Uint64
}

// NewSink creates a Sink
func NewSink(parentLogger logger.Logger, debug bool) *Sink {
	return &Sink{
		logger: parentLogger.WithField(defs.LabelComponent, "LogSink"),
		debug:  debug,
	}
}

func (s *Sink) Name() string {
	return "log"
}

func (s *Sink) Deliver(ctx context.Context, topic string, result *base.Result) error {
	s.delivered.Add(1)
	classes := lo.Map(result.RegionsOfInterest, func(roi base.RegionOfInterest, _ int) string {
		return fmt.Sprintf("%s:%.2f", roi.Classification, roi.Confidence)
	})
	if s.debug {
		s.logger.Debugf("%s frame=%d took=%dms rois=[%s] tags=%v", topic, result.Frame.Number,
			result.EndTime.Sub(result.StartTime).Milliseconds(), strings.Join(classes, " "), result.Tags)
	} else {
		s.logger.Infof("%s frame=%d took=%dms rois=[%s] tags=%v", topic, result.Frame.Number,
			result.EndTime.Sub(result.StartTime).Milliseconds(), strings.Join(classes, " "), result.Tags)
	}
	return nil
}

// Delivered returns the count of results written so far
func (s *Sink) Delivered() uint64 {
	return s.delivered.Load()
}

func (s *Sink) Close() error {
	s.logger.Infof("closed after %d results", s.delivered.Load())
	return nil
}
