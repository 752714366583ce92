// Package synthetic generates test frames: "synthetic://WxH?fps=25&frames=100&paced=true&failEvery=0"
package synthetic

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/input/capture"
)

// Scheme is the address scheme of synthetic sources
const Scheme = "synthetic"

const (
	defaultWidth  = 320
	defaultHeight = 240
	defaultFPS    = 25
)

// Options defines a synthetic stream
type Options struct {
	Width     int
	Height    int
	FPS       float64
	Frames    uint64 // 0 for endless
	Paced     bool   // sleep between frames to follow FPS
	FailEvery uint64 // every Nth read fails with ErrTransientRead, 0 to disable
}

type source struct {
	options  Options
	mutex    sync.Mutex
	reads    uint64
	position uint64
	start    time.Time
	next     time.Time
	closed   bool
}

// Open opens a synthetic source by address; frame size in options overrides the one in address
func Open(address string, options base.CaptureOptions) (base.CaptureSource, error) {
	opts, err := ParseOptions(address)
	if err != nil {
		return nil, err
	}
	if options.FrameWidth > 0 && options.FrameHeight > 0 {
		opts.Width = options.FrameWidth
		opts.Height = options.FrameHeight
	}
	return New(opts), nil
}

// New creates a synthetic source
func New(options Options) base.CaptureSource {
	if options.FPS <= 0 {
		options.FPS = defaultFPS
	}
	now := time.Now()
	return &source{
		options: options,
		start:   now,
		next:    now,
	}
}

// ParseOptions parses a synthetic address
func ParseOptions(address string) (Options, error) {
	u, err := capture.ParseAddress(address)
	if err != nil {
		return Options{}, err
	}
	if u.Scheme != Scheme {
		return Options{}, fmt.Errorf("not a synthetic address: %q", address)
	}
	opts := Options{Width: defaultWidth, Height: defaultHeight, FPS: defaultFPS}
	if u.Host != "" {
		w, h, found := strings.Cut(u.Host, "x")
		if !found {
			return Options{}, fmt.Errorf("invalid frame size %q, expect WxH", u.Host)
		}
		if opts.Width, err = strconv.Atoi(w); err != nil || opts.Width <= 0 {
			return Options{}, fmt.Errorf("invalid frame width %q", w)
		}
		if opts.Height, err = strconv.Atoi(h); err != nil || opts.Height <= 0 {
			return Options{}, fmt.Errorf("invalid frame height %q", h)
		}
	}
	query := u.Query()
	if v := query.Get("fps"); v != "" {
		if opts.FPS, err = strconv.ParseFloat(v, 64); err != nil || opts.FPS <= 0 {
			return Options{}, fmt.Errorf("invalid fps %q", v)
		}
	}
	if v := query.Get("frames"); v != "" {
		if opts.Frames, err = strconv.ParseUint(v, 10, 64); err != nil {
			return Options{}, fmt.Errorf("invalid frames %q: %w", v, err)
		}
	}
	if v := query.Get("paced"); v != "" {
		if opts.Paced, err = strconv.ParseBool(v); err != nil {
			return Options{}, fmt.Errorf("invalid paced %q: %w", v, err)
		}
	}
	if v := query.Get("failEvery"); v != "" {
		if opts.FailEvery, err = strconv.ParseUint(v, 10, 64); err != nil {
			return Options{}, fmt.Errorf("invalid failEvery %q: %w", v, err)
		}
	}
	return opts, nil
}

func (src *source) Read() (base.CapturedFrame, error) {
	src.mutex.Lock()
	defer src.mutex.Unlock()

	if src.closed {
		return base.CapturedFrame{}, base.ErrSourceClosed
	}
	if src.options.Frames > 0 && src.position >= src.options.Frames {
		return base.CapturedFrame{}, base.ErrSourceClosed
	}
	src.reads++
	if src.options.FailEvery > 0 && src.reads%src.options.FailEvery == 0 {
		return base.CapturedFrame{}, fmt.Errorf("%w: synthetic failure on read %d", base.ErrTransientRead, src.reads)
	}
	interval := time.Duration(float64(time.Second) / src.options.FPS)
	if src.options.Paced {
		if wait := time.Until(src.next); wait > 0 {
			time.Sleep(wait)
		}
		src.next = src.next.Add(interval)
	}
	src.position++
	return base.CapturedFrame{
		Image:     Render(src.options.Width, src.options.Height, src.position),
		Position:  src.position,
		Timestamp: src.start.Add(time.Duration(src.position-1) * interval),
	}, nil
}

func (src *source) Close() error {
	src.mutex.Lock()
	defer src.mutex.Unlock()
	src.closed = true
	return nil
}

// Render draws a frame with a vertical bar moving right by frame position
func Render(width, height int, position uint64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	shade := uint8(position * 8)
	background := color.RGBA{R: 32, G: 32, B: shade, A: 255}
	bar := color.RGBA{R: 240, G: 240, B: 240, A: 255}
	barWidth := max(width/16, 1)
	barX := int(position*uint64(barWidth)) % width
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x >= barX && x < barX+barWidth {
				img.SetRGBA(x, y, bar)
			} else {
				img.SetRGBA(x, y, background)
			}
		}
	}
	return img
}
