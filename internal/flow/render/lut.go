package render

import (
	"fmt"
	"image/color"
)

// ColorLUT maps a normalized-speed byte to an RGB color. Every palette has
// exactly 256 entries.
type ColorLUT [256]color.RGBA

// NewLUT builds a named 256-entry palette.
func NewLUT(name string) (ColorLUT, error) {
	switch name {
	case "fire", "":
		return interpolateLUT(fireR, fireG, fireB), nil
	case "ice":
		return interpolateLUT(iceR, iceG, iceB), nil
	case "grayscale":
		var lut ColorLUT
		for i := range lut {
			lut[i] = color.RGBA{R: uint8(i), G: uint8(i), B: uint8(i), A: 255}
		}
		return lut, nil
	case "spectrum":
		var lut ColorLUT
		for i := range lut {
			r, g, b := hslToRGB(float64(i)/256.0, 0.7, 0.5)
			lut[i] = color.RGBA{R: r, G: g, B: b, A: 255}
		}
		return lut, nil
	default:
		return ColorLUT{}, fmt.Errorf("unknown LUT %q (want fire, ice, grayscale or spectrum)", name)
	}
}

// Index maps a speed to the LUT index: clamp(floor(speed*255/maxPlotSpeed), 0, 255).
// Speeds at or above maxPlotSpeed saturate to the top of the scale.
func (ColorLUT) Index(speed, maxPlotSpeed float64) int {
	if maxPlotSpeed <= 0 {
		return 0
	}
	idx := int(speed * 255 / maxPlotSpeed)
	if idx < 0 {
		return 0
	}
	if idx > 255 {
		return 255
	}
	return idx
}

// Control points of the fire and ice palettes, widened to 256 entries by
// linear interpolation.
var (
	fireR = []int{0, 0, 1, 25, 49, 73, 98, 122, 146, 162, 173, 184, 195, 207, 217, 229, 240, 252, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255}
	fireG = []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 14, 35, 57, 79, 101, 117, 133, 147, 161, 175, 190, 205, 219, 234, 248, 255, 255, 255, 255}
	fireB = []int{0, 61, 96, 130, 165, 192, 220, 227, 210, 181, 151, 122, 93, 64, 35, 5, 0, 0, 0, 0, 0, 0, 0, 0, 0, 35, 98, 160, 223, 255, 255, 255}

	iceR = []int{0, 0, 0, 0, 0, 0, 19, 29, 50, 48, 79, 112, 134, 158, 186, 201, 217, 229, 242, 250, 250, 250, 250, 251, 250, 250, 250, 250, 251, 251, 243, 230}
	iceG = []int{156, 165, 176, 184, 190, 196, 193, 184, 171, 162, 146, 125, 107, 93, 81, 87, 92, 97, 95, 93, 93, 90, 85, 69, 64, 54, 47, 35, 19, 0, 4, 0}
	iceB = []int{140, 147, 158, 166, 170, 176, 209, 220, 234, 225, 236, 246, 250, 251, 250, 250, 245, 230, 230, 222, 202, 180, 163, 142, 123, 114, 106, 94, 84, 64, 26, 27}
)

func interpolateLUT(rs, gs, bs []int) ColorLUT {
	var lut ColorLUT
	n := len(rs)
	scale := float64(n-1) / 255.0
	for i := 0; i < 256; i++ {
		pos := float64(i) * scale
		lo := int(pos)
		hi := lo + 1
		if hi >= n {
			hi = n - 1
		}
		t := pos - float64(lo)
		lut[i] = color.RGBA{
			R: lerpByte(rs[lo], rs[hi], t),
			G: lerpByte(gs[lo], gs[hi], t),
			B: lerpByte(bs[lo], bs[hi], t),
			A: 255,
		}
	}
	return lut
}

func lerpByte(a, b int, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}

// hslToRGB converts HSL to RGB bytes.
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64
	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}
	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
