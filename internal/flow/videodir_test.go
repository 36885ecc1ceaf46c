package flow

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, width, height int, gray uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: gray})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestOpenDirVideo(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// Written out of order; frame order must follow lexical names.
	writePNG(t, filepath.Join(dir, "frame_0002.png"), 8, 6, 200)
	writePNG(t, filepath.Join(dir, "frame_0000.png"), 8, 6, 0)
	writePNG(t, filepath.Join(dir, "frame_0001.png"), 8, 6, 100)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	v, err := OpenDirVideo(dir)
	require.NoError(t, err)
	defer v.Close()

	assert.Equal(t, 3, v.FrameCount())
	w, h := v.Bounds()
	assert.Equal(t, 8, w)
	assert.Equal(t, 6, h)

	// 8-bit gray value g decodes to g·257 in 16-bit, divided by 256.
	for i, gray := range []float64{0, 100, 200} {
		fr, err := v.Frame(i)
		require.NoError(t, err)
		assert.InDelta(t, gray*257/256, fr.At(3, 3), 1e-9, "frame %d", i)
	}
}

func TestOpenDirVideoFrameCache(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "frame_0000.png"), 4, 4, 50)

	v, err := OpenDirVideo(dir)
	require.NoError(t, err)
	defer v.Close()

	a, err := v.Frame(0)
	require.NoError(t, err)
	b, err := v.Frame(0)
	require.NoError(t, err)
	assert.Same(t, a, b, "repeat access returns the cached frame")
}

func TestOpenDirVideoErrors(t *testing.T) {
	t.Parallel()

	_, err := OpenDirVideo(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	empty := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(empty, "notes.txt"), []byte("x"), 0644))
	_, err = OpenDirVideo(empty)
	assert.Error(t, err, "a dir without .png frames is rejected")
}

func TestOpenDirVideoDimensionMismatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "frame_0000.png"), 8, 6, 10)
	writePNG(t, filepath.Join(dir, "frame_0001.png"), 8, 7, 10)

	v, err := OpenDirVideo(dir)
	require.NoError(t, err, "dimensions are checked on access, not open")
	_, err = v.Frame(1)
	assert.Error(t, err)
}

func TestDirVideoFrameOutOfRange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "frame_0000.png"), 4, 4, 10)

	v, err := OpenDirVideo(dir)
	require.NoError(t, err)

	_, err = v.Frame(5)
	require.Error(t, err)
	var rangeErr *RangeError
	assert.True(t, errors.As(err, &rangeErr))
}

func TestDirVideoMetaRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "frame_0000.png"), 4, 4, 10)

	v, err := OpenDirVideo(dir)
	require.NoError(t, err)

	meta := VideoMeta{PixelSizeMicrons: 0.5, FrameRate: 30}
	v.SetMeta(meta)
	assert.Equal(t, meta, v.Meta())
}
