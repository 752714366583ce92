// Package imagedir reads frames from image files in a directory: "dir:///path?pattern=*.jpg&loop=true"
package imagedir

import (
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/input/capture"
)

// Scheme is the address scheme of image directories
const Scheme = "dir"

const defaultPattern = "*.{jpg,jpeg,png}"

type source struct {
	files    []string
	loop     bool
	mutex    sync.Mutex
	index    int
	position uint64
	closed   bool
}

// Open lists matching files in the directory and returns a source reading them in name order
func Open(address string, options base.CaptureOptions) (base.CaptureSource, error) {
	u, err := capture.ParseAddress(address)
	if err != nil {
		return nil, err
	}
	dir := u.Path
	if u.Host != "" {
		dir = u.Host + u.Path
	}
	if dir == "" {
		return nil, fmt.Errorf("missing directory in %q", address)
	}
	pattern := u.Query().Get("pattern")
	if pattern == "" {
		pattern = defaultPattern
	}
	loop := false
	if v := u.Query().Get("loop"); v != "" {
		if loop, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid loop %q: %w", v, err)
		}
	}
	files, err := ListFiles(dir, pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no file matching %q in %s", pattern, dir)
	}
	return &source{files: files, loop: loop}, nil
}

// ListFiles returns sorted paths of regular files whose names match the glob pattern
func ListFiles(dir string, pattern string) ([]string, error) {
	matcher, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !matcher.Match(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func (src *source) Read() (base.CapturedFrame, error) {
	src.mutex.Lock()
	defer src.mutex.Unlock()

	if src.closed {
		return base.CapturedFrame{}, base.ErrSourceClosed
	}
	if src.index >= len(src.files) {
		if !src.loop {
			return base.CapturedFrame{}, base.ErrSourceClosed
		}
		src.index = 0
	}
	path := src.files[src.index]
	src.index++
	src.position++

	img, err := decodeFile(path)
	if err != nil {
		return base.CapturedFrame{}, fmt.Errorf("%w: %w", base.ErrTransientRead, err)
	}
	return base.CapturedFrame{
		Image:     img,
		Position:  src.position,
		Timestamp: time.Now(),
	}, nil
}

func (src *source) Close() error {
	src.mutex.Lock()
	defer src.mutex.Unlock()
	src.closed = true
	return nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}
