package run

import (
	"fmt"

	"github.com/relex/frame-agent/base/bconfig"
	"github.com/relex/frame-agent/buffer/seqbuffer"
	"github.com/relex/frame-agent/defs"
	"github.com/relex/frame-agent/input"
	"github.com/relex/frame-agent/input/ingest"
	"github.com/relex/frame-agent/orchestrate/workerpool"
	"github.com/relex/frame-agent/output"
	"github.com/relex/frame-agent/util"
)

// Config defines the root of frame-agent config file
type Config struct {
	Pipeline PipelineConfig             `yaml:"pipeline"`
	Sinks    []bconfig.SinkConfigHolder `yaml:"sinks"` // static sinks added to every pipeline
	Control  ControlConfig              `yaml:"control"`
}

// PipelineConfig defines the pipeline parameters which don't come from configuration requests
type PipelineConfig struct {
	Ingest       ingest.Config     `yaml:",inline"`
	Workers      workerpool.Config `yaml:",inline"`
	FrameBuffer  seqbuffer.Config  `yaml:"frameBuffer"`
	ResultBuffer seqbuffer.Config  `yaml:"resultBuffer"`
}

// ControlConfig defines the listener of configuration requests
type ControlConfig struct {
	Address string `yaml:"address"`
}

func init() {
	input.Register()
	output.Register()
}

// DefaultConfig returns the config used when no file is given, and the base values of a loaded file
func DefaultConfig() Config {
	return Config{
		Pipeline: DefaultPipelineConfig(),
		Control: ControlConfig{
			Address: ":3000",
		},
	}
}

// DefaultPipelineConfig returns a single-worker pipeline with realtime frame buffer and ordered result buffer
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Workers: workerpool.Config{
			Workers: 1,
		},
		FrameBuffer: seqbuffer.Config{
			Realtime: true,
			Capacity: defs.DefaultInputCapacity,
		},
		ResultBuffer: seqbuffer.Config{
			Realtime: false,
		},
	}
}

// LoadConfigFile loads config from the path on top of DefaultConfig and verifies it
func LoadConfigFile(filepath string) (*Config, error) {
	cref := DefaultConfig()
	if err := util.UnmarshalYamlFile(filepath, &cref); err != nil {
		return nil, err
	}
	if err := cref.VerifyConfig(); err != nil {
		return nil, err
	}
	return &cref, nil
}

// VerifyConfig checks configuration
func (cfg *Config) VerifyConfig() error {
	if err := cfg.Pipeline.VerifyConfig(); err != nil {
		return fmt.Errorf("pipeline%w", err)
	}
	for i, holder := range cfg.Sinks {
		if err := holder.Value.VerifyConfig(); err != nil {
			return fmt.Errorf("sinks[%d]%w", i, err)
		}
	}
	if cfg.Control.Address == "" {
		return fmt.Errorf("control.address is unspecified")
	}
	return nil
}

// VerifyConfig checks configuration
func (cfg PipelineConfig) VerifyConfig() error {
	if err := cfg.Ingest.VerifyConfig(); err != nil {
		return err
	}
	if err := cfg.Workers.VerifyConfig(); err != nil {
		return err
	}
	if err := cfg.FrameBuffer.VerifyConfig(); err != nil {
		return fmt.Errorf(".frameBuffer%w", err)
	}
	if err := cfg.ResultBuffer.VerifyConfig(); err != nil {
		return fmt.Errorf(".resultBuffer%w", err)
	}
	if cfg.ResultBuffer.Realtime {
		return fmt.Errorf(".resultBuffer.realtime: results must be delivered in order")
	}
	return nil
}
