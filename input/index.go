// Package input registers capture backends
package input

import (
	"github.com/relex/frame-agent/input/capture"
	"github.com/relex/frame-agent/input/imagedir"
	"github.com/relex/frame-agent/input/synthetic"
)

func init() {
	capture.RegisterOpener(synthetic.Scheme, synthetic.Open)
	capture.RegisterOpener(imagedir.Scheme, imagedir.Open)
}

// Register registers all capture backends
func Register() {
	// trigger init()
}
