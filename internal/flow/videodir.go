package flow

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DirVideo exposes a directory of lexically ordered PNG frames as a
// VideoSource. Frames are decoded lazily on first access and cached, so a
// run that touches the same interval from several segments decodes each
// frame once.
type DirVideo struct {
	dir    string
	paths  []string
	width  int
	height int

	mu    sync.Mutex
	cache map[int]*Frame
	meta  VideoMeta
}

// OpenDirVideo scans dir for .png files and probes the first frame for the
// video dimensions. Every frame must match those dimensions.
func OpenDirVideo(dir string) (*DirVideo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("open video dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("video dir %s holds no .png frames", dir)
	}
	sort.Strings(paths)

	v := &DirVideo{dir: dir, paths: paths, cache: make(map[int]*Frame)}
	first, err := v.decode(0)
	if err != nil {
		return nil, err
	}
	v.width, v.height = first.Width, first.Height
	v.mu.Lock()
	v.cache[0] = first
	v.mu.Unlock()
	return v, nil
}

func (v *DirVideo) FrameCount() int    { return len(v.paths) }
func (v *DirVideo) Bounds() (int, int) { return v.width, v.height }
func (v *DirVideo) Close() error       { return nil }

func (v *DirVideo) Meta() VideoMeta {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.meta
}

func (v *DirVideo) SetMeta(meta VideoMeta) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.meta = meta
}

// Frame returns the decoded grayscale frame at the given index.
func (v *DirVideo) Frame(i int) (*Frame, error) {
	if i < 0 || i >= len(v.paths) {
		return nil, Rangef("frame %d requested from a %d-frame video", i, len(v.paths))
	}

	v.mu.Lock()
	if fr, ok := v.cache[i]; ok {
		v.mu.Unlock()
		return fr, nil
	}
	v.mu.Unlock()

	fr, err := v.decode(i)
	if err != nil {
		return nil, err
	}
	if fr.Width != v.width || fr.Height != v.height {
		return nil, fmt.Errorf("frame %s is %dx%d, expected %dx%d",
			filepath.Base(v.paths[i]), fr.Width, fr.Height, v.width, v.height)
	}

	v.mu.Lock()
	v.cache[i] = fr
	v.mu.Unlock()
	return fr, nil
}

func (v *DirVideo) decode(i int) (*Frame, error) {
	f, err := os.Open(v.paths[i])
	if err != nil {
		return nil, fmt.Errorf("open frame %d: %w", i, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", filepath.Base(v.paths[i]), err)
	}
	return frameFromImage(img), nil
}

// frameFromImage converts any decoded image to a grayscale intensity frame
// using 16-bit luma, preserving the dynamic range of 16-bit microscopy PNGs.
func frameFromImage(img image.Image) *Frame {
	b := img.Bounds()
	fr := NewFrame(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bb, _ := img.At(x, y).RGBA()
			luma := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bb)
			fr.Set(x-b.Min.X, y-b.Min.Y, luma/256.0)
		}
	}
	return fr
}
