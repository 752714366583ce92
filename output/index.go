// Package output registers the list of all result sink implementations
package output

import (
	"github.com/relex/frame-agent/base/bconfig"
	"github.com/relex/frame-agent/output/logsink"
	"github.com/relex/frame-agent/output/natssink"
	"github.com/relex/frame-agent/output/timescale"
)

func init() {
	bconfig.RegisterConfigConstructors(bconfig.SinkConfigCreatorTable{
		"log":       func() bconfig.SinkConfig { return &logsink.Config{} },
		"nats":      func() bconfig.SinkConfig { return &natssink.Config{} },
		"timescale": func() bconfig.SinkConfig { return &timescale.Config{} },
	})
}

// Register registers all sink config types
func Register() {
	// trigger init()
}
