package ingest

import (
	"fmt"
)

// Config defines optional ingestion limits
type Config struct {
	MaxFrameRate float64 `yaml:"maxFrameRate"` // max frames per second read from the source, 0 for unlimited
}

// VerifyConfig checks configuration
func (cfg Config) VerifyConfig() error {
	if cfg.MaxFrameRate < 0 {
		return fmt.Errorf(".maxFrameRate cannot be negative: %f", cfg.MaxFrameRate)
	}
	return nil
}
