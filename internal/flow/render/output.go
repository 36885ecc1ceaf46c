package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"path/filepath"

	"github.com/microflow-data/vessel.report/internal/fsutil"
)

// WriteFrames writes one PNG per interval into dir as map_0001.png,
// map_0002.png, … in interval order. Existing frames are preserved under
// the backup suffix before being replaced.
func WriteFrames(fsys fsutil.FileSystem, dir string, frames []*image.RGBA) error {
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create map dir: %w", err)
	}
	for i, f := range frames {
		var buf bytes.Buffer
		if err := png.Encode(&buf, f); err != nil {
			return fmt.Errorf("encode map frame %d: %w", i+1, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("map_%04d.png", i+1))
		if err := fsutil.BackupThenWrite(fsys, path, buf.Bytes(), 0644); err != nil {
			return err
		}
	}
	return nil
}

// WriteStack writes all frames as one multi-page TIFF at path, with the
// same backup behavior as every other artifact.
func WriteStack(fsys fsutil.FileSystem, path string, frames []*image.RGBA) error {
	var buf bytes.Buffer
	if err := EncodeTIFFStack(&buf, frames); err != nil {
		return fmt.Errorf("encode spatial map stack: %w", err)
	}
	return fsutil.BackupThenWrite(fsys, path, buf.Bytes(), 0644)
}
