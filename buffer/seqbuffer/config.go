package seqbuffer

import (
	"fmt"
	"time"

	"github.com/relex/frame-agent/defs"
)

// OverflowPolicy defines what happens on push when a bounded buffer is full
type OverflowPolicy string

// Overflow policies
const (
	OverflowDefault    OverflowPolicy = ""           // dropOldest in realtime mode, block in ordered mode
	OverflowDropOldest OverflowPolicy = "dropOldest" // evict the record with the lowest sequence
	OverflowBlock      OverflowPolicy = "block"      // PushWait waits for space; Push rejects
	OverflowReject     OverflowPolicy = "reject"     // reject the new record
)

// Config defines the behavior of a sequenced buffer
type Config struct {
	// Realtime pops the highest sequence first; otherwise the lowest sequence is popped first
	Realtime bool `yaml:"realtime"`

	// Capacity is the max numbers of queued records, 0 = unbounded
	Capacity int `yaml:"capacity"`

	Overflow OverflowPolicy `yaml:"overflow"`

	// ConflictHoldback is how long a record behind the last popped sequence is held before released as late.
	//
	// 0 = defs.BufferConflictHoldback, negative = never released
	ConflictHoldback time.Duration `yaml:"conflictHoldback"`
}

// VerifyConfig checks configuration
func (cfg Config) VerifyConfig() error {
	if cfg.Capacity < 0 {
		return fmt.Errorf(".capacity is negative: %d", cfg.Capacity)
	}
	switch cfg.Overflow {
	case OverflowDefault, OverflowDropOldest, OverflowBlock, OverflowReject:
	default:
		return fmt.Errorf(".overflow: unsupported '%s'", cfg.Overflow)
	}
	return nil
}

func (cfg Config) overflowPolicy() OverflowPolicy {
	if cfg.Overflow != OverflowDefault {
		return cfg.Overflow
	}
	if cfg.Realtime {
		return OverflowDropOldest
	}
	return OverflowBlock
}

func (cfg Config) conflictHoldback() time.Duration {
	if cfg.ConflictHoldback == 0 {
		return defs.BufferConflictHoldback
	}
	return cfg.ConflictHoldback
}

func (cfg Config) modeName() string {
	if cfg.Realtime {
		return "realtime"
	}
	return "ordered"
}
