package render

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// walkIFDs follows the IFD chain and returns each page's IFD offset.
func walkIFDs(t *testing.T, data []byte) []uint32 {
	t.Helper()
	require.GreaterOrEqual(t, len(data), 8)

	var offsets []uint32
	next := binary.LittleEndian.Uint32(data[4:8])
	for next != 0 {
		offsets = append(offsets, next)
		count := binary.LittleEndian.Uint16(data[next : next+2])
		linkAt := next + 2 + uint32(count)*12
		next = binary.LittleEndian.Uint32(data[linkAt : linkAt+4])
	}
	return offsets
}

// ifdTagLong finds a tag in the IFD at offset and returns its value word.
func ifdTagLong(t *testing.T, data []byte, ifdOffset uint32, tag uint16) uint32 {
	t.Helper()
	count := binary.LittleEndian.Uint16(data[ifdOffset : ifdOffset+2])
	for i := uint32(0); i < uint32(count); i++ {
		entry := ifdOffset + 2 + i*12
		if binary.LittleEndian.Uint16(data[entry:entry+2]) == tag {
			return binary.LittleEndian.Uint32(data[entry+8 : entry+12])
		}
	}
	t.Fatalf("tag %d missing from IFD at %d", tag, ifdOffset)
	return 0
}

func TestEncodeTIFFStackHeader(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, EncodeTIFFStack(&buf, []*image.RGBA{solidFrame(4, 3, color.RGBA{9, 8, 7, 255})}))

	data := buf.Bytes()
	assert.Equal(t, byte('I'), data[0])
	assert.Equal(t, byte('I'), data[1])
	assert.Equal(t, uint16(42), binary.LittleEndian.Uint16(data[2:4]))
}

func TestEncodeTIFFStackPageChain(t *testing.T) {
	t.Parallel()

	frames := []*image.RGBA{
		solidFrame(4, 3, color.RGBA{255, 0, 0, 255}),
		solidFrame(4, 3, color.RGBA{0, 255, 0, 255}),
		solidFrame(4, 3, color.RGBA{0, 0, 255, 255}),
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeTIFFStack(&buf, frames))

	offsets := walkIFDs(t, buf.Bytes())
	assert.Len(t, offsets, 3, "one IFD per interval frame")
}

func TestEncodeTIFFStackStripContents(t *testing.T) {
	t.Parallel()

	frames := []*image.RGBA{
		solidFrame(2, 2, color.RGBA{10, 20, 30, 255}),
		solidFrame(2, 2, color.RGBA{40, 50, 60, 255}),
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeTIFFStack(&buf, frames))
	data := buf.Bytes()

	offsets := walkIFDs(t, data)
	require.Len(t, offsets, 2)

	for i, want := range [][]byte{{10, 20, 30}, {40, 50, 60}} {
		ifd := offsets[i]
		assert.Equal(t, uint32(2), ifdTagLong(t, data, ifd, 256), "width")
		assert.Equal(t, uint32(2), ifdTagLong(t, data, ifd, 257), "height")
		assert.Equal(t, uint32(12), ifdTagLong(t, data, ifd, 279), "strip byte count")

		strip := ifdTagLong(t, data, ifd, 273)
		for px := 0; px < 4; px++ {
			got := data[strip+uint32(px*3) : strip+uint32(px*3)+3]
			assert.Equal(t, want, []byte(got), "page %d pixel %d", i, px)
		}
	}
}

func TestEncodeTIFFStackRejectsEmptyAndMismatched(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	assert.Error(t, EncodeTIFFStack(&buf, nil))

	frames := []*image.RGBA{solidFrame(4, 4, color.RGBA{}), solidFrame(4, 5, color.RGBA{})}
	assert.Error(t, EncodeTIFFStack(&buf, frames))
}
