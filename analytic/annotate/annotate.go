// Package annotate renders analytic results onto frames and encodes them for sinks
package annotate

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/fogleman/gg"
	"github.com/relex/frame-agent/base"
	"golang.org/x/image/draw"
)

// DefaultQuality is the JPEG quality of frames attached to results
const DefaultQuality = 70

// DrawRegions returns a copy of the frame with a rectangle drawn around every region
func DrawRegions(frame image.Image, regions []base.RegionOfInterest) image.Image {
	dc := gg.NewContextForImage(frame)
	dc.SetRGB(0, 0, 1)
	dc.SetLineWidth(1)
	origin := frame.Bounds().Min
	for _, roi := range regions {
		b := roi.Box
		dc.DrawRectangle(float64(b.X1-origin.X), float64(b.Y1-origin.Y), float64(b.X2-b.X1), float64(b.Y2-b.Y1))
		dc.Stroke()
	}
	return dc.Image()
}

// Scale resizes the frame by the given factor; factors <= 0 or 1 return the frame unchanged
func Scale(frame image.Image, factor float64) image.Image {
	if factor <= 0 || factor == 1 {
		return frame
	}
	src := frame.Bounds()
	w := int(float64(src.Dx()) * factor)
	h := int(float64(src.Dy()) * factor)
	if w < 1 || h < 1 {
		return frame
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), frame, src, draw.Src, nil)
	return dst
}

// EncodeJPEG encodes the frame in JPEG with quality from 1 to 100
func EncodeJPEG(frame image.Image, quality int) ([]byte, error) {
	var out bytes.Buffer
	if err := jpeg.Encode(&out, frame, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Channels returns the numbers of color channels in the frame
func Channels(frame image.Image) int {
	switch frame.(type) {
	case *image.Gray, *image.Gray16, *image.Alpha, *image.Alpha16:
		return 1
	default:
		return 3
	}
}
