package natssink

import (
	"fmt"

	"github.com/c2h5oh/datasize"
	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/base/bconfig"
	"github.com/relex/frame-agent/output/shared"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
)

// Config defines the NATS sink
type Config struct {
	bconfig.Header `yaml:",inline"`
	URL            string            `yaml:"url"`            // e.g. "nats://127.0.0.1:4222"
	Encoding       string            `yaml:"encoding"`       // "json" (default) or "msgpack"
	Compress       bool              `yaml:"compress"`       // gzip payloads
	MaxMessageSize datasize.ByteSize `yaml:"maxMessageSize"` // drop larger messages, 0 for the server limit
	SubjectPrefix  string            `yaml:"subjectPrefix"`  // prepended to topics with a dot
}

// NewConfig creates a Config for the messenger address in configuration requests
func NewConfig(url string) *Config {
	return &Config{
		Header: bconfig.Header{Type: "nats"},
		URL:    url,
	}
}

// NewSink connects to NATS
func (cfg *Config) NewSink(parentLogger logger.Logger, metricCreator promreg.MetricCreator) (base.ResultSink, error) {
	return NewSink(parentLogger, *cfg)
}

// VerifyConfig checks configuration
func (cfg *Config) VerifyConfig() error {
	if cfg.URL == "" {
		return fmt.Errorf(".url is unspecified")
	}
	if _, err := shared.ParseEncoding(cfg.Encoding); err != nil {
		return fmt.Errorf(".encoding: %w", err)
	}
	return nil
}
