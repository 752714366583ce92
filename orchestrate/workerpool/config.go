package workerpool

import (
	"fmt"
)

// Config defines the analytic worker pool
type Config struct {
	Workers               int  `yaml:"workers"`               // numbers of concurrent analytic workers
	RestartCrashedWorkers bool `yaml:"restartCrashedWorkers"` // run workers under a supervisor restarting crashed ones
}

// VerifyConfig checks configuration
func (cfg Config) VerifyConfig() error {
	if cfg.Workers <= 0 {
		return fmt.Errorf(".workers must be positive: %d", cfg.Workers)
	}
	return nil
}
