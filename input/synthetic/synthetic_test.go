package synthetic

import (
	"testing"

	"github.com/relex/frame-agent/base"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions("synthetic://64x48?fps=10&frames=3&paced=false&failEvery=2")
	require.NoError(t, err)
	assert.Equal(t, Options{Width: 64, Height: 48, FPS: 10, Frames: 3, FailEvery: 2}, opts)

	opts, err = ParseOptions("synthetic://")
	require.NoError(t, err)
	assert.Equal(t, defaultWidth, opts.Width)

	for _, bad := range []string{"synthetic://64", "synthetic://ax48", "synthetic://64x48?fps=0", "synthetic://1x1?frames=-1", "dir:///tmp"} {
		_, err := ParseOptions(bad)
		assert.Error(t, err, bad)
	}
}

func TestReadFrames(t *testing.T) {
	src, err := Open("synthetic://32x16?fps=10&frames=3&failEvery=2", base.CaptureOptions{})
	require.NoError(t, err)

	f1, err := src.Read()
	require.NoError(t, err)
	assert.EqualValues(t, 1, f1.Position)
	assert.Equal(t, 32, f1.Image.Bounds().Dx())

	_, err = src.Read()
	assert.ErrorIs(t, err, base.ErrTransientRead)

	f2, err := src.Read()
	require.NoError(t, err)
	assert.EqualValues(t, 2, f2.Position)
	assert.Equal(t, "100ms", f2.Timestamp.Sub(f1.Timestamp).String())

	_, err = src.Read()
	assert.ErrorIs(t, err, base.ErrTransientRead)
	_, err = src.Read()
	require.NoError(t, err)
	_, err = src.Read()
	assert.ErrorIs(t, err, base.ErrSourceClosed)
}

func TestOpenOverridesSize(t *testing.T) {
	src, err := Open("synthetic://32x16", base.CaptureOptions{FrameWidth: 8, FrameHeight: 4})
	require.NoError(t, err)
	f, err := src.Read()
	require.NoError(t, err)
	assert.Equal(t, 8, f.Image.Bounds().Dx())
	require.NoError(t, src.Close())
	_, err = src.Read()
	assert.ErrorIs(t, err, base.ErrSourceClosed)
}
