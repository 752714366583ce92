//go:build gocv

package input

import (
	"github.com/relex/frame-agent/input/capture"
	"github.com/relex/frame-agent/input/gocvcapture"
)

func init() {
	capture.RegisterFallbackOpener(gocvcapture.Open)
}
