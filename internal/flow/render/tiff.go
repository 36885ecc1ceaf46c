package render

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"
)

// EncodeTIFFStack writes frames as a little-endian multi-page TIFF with
// uncompressed 8-bit RGB pages, one page per interval. All frames must share
// the same dimensions. The IFDs are chained so ImageJ-style viewers read the
// file as a stack.
func EncodeTIFFStack(w io.Writer, frames []*image.RGBA) error {
	if len(frames) == 0 {
		return fmt.Errorf("tiff stack needs at least one frame")
	}
	width := frames[0].Bounds().Dx()
	height := frames[0].Bounds().Dy()
	for i, f := range frames {
		if f.Bounds().Dx() != width || f.Bounds().Dy() != height {
			return fmt.Errorf("frame %d is %dx%d, expected %dx%d",
				i, f.Bounds().Dx(), f.Bounds().Dy(), width, height)
		}
	}

	stripLen := width * height * 3
	paddedStrip := stripLen
	if paddedStrip%2 != 0 {
		paddedStrip++ // IFDs must start on a word boundary
	}

	const (
		headerLen = 8
		entryLen  = 12
		numTags   = 9
		bpsLen    = 6 // BitsPerSample value array: three SHORTs
		ifdLen    = 2 + numTags*entryLen + 4
	)
	blockLen := paddedStrip + bpsLen + ifdLen

	// Page i layout: [strip][bps array][IFD], blocks packed back to back
	// after the 8-byte header.
	stripOffset := func(i int) uint32 { return uint32(headerLen + i*blockLen) }
	bpsOffset := func(i int) uint32 { return stripOffset(i) + uint32(paddedStrip) }
	ifdOffset := func(i int) uint32 { return bpsOffset(i) + bpsLen }

	buf := make([]byte, 0, headerLen+len(frames)*blockLen)
	buf = append(buf, 'I', 'I', 42, 0)
	buf = binary.LittleEndian.AppendUint32(buf, ifdOffset(0))

	for i, f := range frames {
		// Strip data: packed RGB rows.
		b := f.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			rowStart := f.PixOffset(b.Min.X, y)
			for x := 0; x < width; x++ {
				p := rowStart + x*4
				buf = append(buf, f.Pix[p], f.Pix[p+1], f.Pix[p+2])
			}
		}
		if paddedStrip != stripLen {
			buf = append(buf, 0)
		}

		// BitsPerSample value array.
		for j := 0; j < 3; j++ {
			buf = binary.LittleEndian.AppendUint16(buf, 8)
		}

		// IFD: entry count, entries in ascending tag order, next-IFD link.
		buf = binary.LittleEndian.AppendUint16(buf, numTags)
		buf = appendTagLong(buf, 256, uint32(width))       // ImageWidth
		buf = appendTagLong(buf, 257, uint32(height))      // ImageLength
		buf = appendTagShortArr(buf, 258, 3, bpsOffset(i)) // BitsPerSample
		buf = appendTagShort(buf, 259, 1)                  // Compression: none
		buf = appendTagShort(buf, 262, 2)                  // Photometric: RGB
		buf = appendTagLong(buf, 273, stripOffset(i))      // StripOffsets
		buf = appendTagShort(buf, 277, 3)                  // SamplesPerPixel
		buf = appendTagLong(buf, 278, uint32(height))      // RowsPerStrip
		buf = appendTagLong(buf, 279, uint32(stripLen))    // StripByteCounts

		next := uint32(0)
		if i+1 < len(frames) {
			next = ifdOffset(i + 1)
		}
		buf = binary.LittleEndian.AppendUint32(buf, next)
	}

	_, err := w.Write(buf)
	return err
}

func appendTagShort(buf []byte, tag uint16, value uint16) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, tag)
	buf = binary.LittleEndian.AppendUint16(buf, 3) // SHORT
	buf = binary.LittleEndian.AppendUint32(buf, 1)
	buf = binary.LittleEndian.AppendUint16(buf, value)
	buf = binary.LittleEndian.AppendUint16(buf, 0)
	return buf
}

func appendTagShortArr(buf []byte, tag uint16, count, offset uint32) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, tag)
	buf = binary.LittleEndian.AppendUint16(buf, 3) // SHORT
	buf = binary.LittleEndian.AppendUint32(buf, count)
	buf = binary.LittleEndian.AppendUint32(buf, offset)
	return buf
}

func appendTagLong(buf []byte, tag uint16, value uint32) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, tag)
	buf = binary.LittleEndian.AppendUint16(buf, 4) // LONG
	buf = binary.LittleEndian.AppendUint32(buf, 1)
	buf = binary.LittleEndian.AppendUint32(buf, value)
	return buf
}
