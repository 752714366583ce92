// Package testanalytic provides demonstration analytics for tests, benchmarks and the default run command
package testanalytic

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sort"

	"github.com/relex/frame-agent/analytic"
)

// Demo classification and confidence reported by the test analytics
const (
	Classification = "test"
	Confidence     = 0.314
	LuckyNumber    = 7
)

var bindings = map[string]func(batchSize int) analytic.Binding{
	"test": func(int) analytic.Binding {
		return analytic.NewFrameBinding(Frame)
	},
	"testBatch": func(batchSize int) analytic.Binding {
		return analytic.NewBatchBinding(Batch, max(batchSize, 1))
	},
	"brightness": func(int) analytic.Binding {
		return analytic.NewFrameBinding(Brightness)
	},
}

// Names lists all demo analytics
func Names() []string {
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the demo analytic binding by name
func Lookup(name string, batchSize int) (analytic.Binding, error) {
	create, ok := bindings[name]
	if !ok {
		return analytic.Binding{}, fmt.Errorf("unknown analytic %q, choose one of %v", name, Names())
	}
	return create(batchSize), nil
}

// Frame marks the center third of the frame
func Frame(ctx context.Context, h *analytic.FrameHandler) error {
	h.SetName("test")
	markCenter(h.Frame(), func(x1, y1, x2, y2 int) {
		h.AddBoundingBox(Classification, Confidence, x1, y1, x2, y2)
	})
	h.AddTag("test", true)
	h.AddTag("LuckyNumber", LuckyNumber)
	h.AddOperation("detect")
	return nil
}

// Batch marks the center third of every frame and numbers the frames within the batch
func Batch(ctx context.Context, h *analytic.BatchHandler) error {
	h.SetName("testBatch")
	index := 0
	for frame, ok := h.NextFrame(); ok; frame, ok = h.NextFrame() {
		markCenter(frame, func(x1, y1, x2, y2 int) {
			if err := h.AddBoundingBoxAt(index, Classification, Confidence, x1, y1, x2, y2, fmt.Sprint(index)); err != nil {
				panic(err)
			}
		})
		index++
	}
	h.AddTag("test", true)
	h.AddTag("LuckyNumber", LuckyNumber)
	h.AddTag("batchSize", h.Len())
	h.AddOperation("detect")
	return nil
}

// Brightness reports the mean luma of the frame and flags dark frames
func Brightness(ctx context.Context, h *analytic.FrameHandler) error {
	h.SetName("brightness")
	h.AddFilter("darkThreshold", 40)
	frame := h.Frame()
	if frame == nil {
		return fmt.Errorf("no frame")
	}
	luma := MeanLuma(frame)
	h.AddTag("luma", fmt.Sprintf("%.1f", luma))
	h.AddTag("dark", luma < 40)
	return nil
}

// MeanLuma computes the average brightness of a frame in range 0-255, sampling every 4th pixel
func MeanLuma(frame image.Image) float64 {
	b := frame.Bounds()
	var sum float64
	var count int
	for y := b.Min.Y; y < b.Max.Y; y += 4 {
		for x := b.Min.X; x < b.Max.X; x += 4 {
			sum += float64(color.GrayModel.Convert(frame.At(x, y)).(color.Gray).Y)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func markCenter(frame image.Image, add func(x1, y1, x2, y2 int)) {
	if frame == nil {
		return
	}
	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	add(b.Min.X+w/3, b.Min.Y+h/3, b.Min.X+2*w/3, b.Min.Y+2*h/3)
}
