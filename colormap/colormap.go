// Package colormap provides named color interpolators, the 1D lookup textures
// shaders sample them through and colour bar legends.
package colormap

import (
	"fmt"
	"image/color"
	"sort"

	math "github.com/chewxy/math32"
)

// Interpolator maps a normalized value in [0, 1] to a color. Values outside
// the range are clamped.
type Interpolator func(t float32) color.Color

// ScaleType is the mapping of data values onto the normalized colormap domain.
type ScaleType uint8

const (
	ScaleLinear ScaleType = iota
	// ScaleLog maps values logarithmically. Non-positive values are clamped
	// to the smallest positive float.
	ScaleLog
)

func (s ScaleType) String() string {
	if s == ScaleLinear {
		return "linear"
	}
	return "log"
}

// ParseScaleType parses "linear" or "log".
func ParseScaleType(s string) (ScaleType, error) {
	switch s {
	case "linear", "":
		return ScaleLinear, nil
	case "log":
		return ScaleLog, nil
	}
	return 0, fmt.Errorf("unknown scale type %q", s)
}

// Default is the colormap used when none is specified.
const Default = "Viridis"

var interpolators = map[string]Interpolator{
	"Viridis":  gradient(0x440154, 0x472d7b, 0x3b528b, 0x2c728e, 0x21918c, 0x28ae80, 0x5ec962, 0xaddc30, 0xfde725),
	"Magma":    gradient(0x000004, 0x1c1044, 0x4f127b, 0x812581, 0xb5367a, 0xe55064, 0xfb8761, 0xfec287, 0xfcfdbf),
	"Inferno":  gradient(0x000004, 0x1f0c48, 0x550f6d, 0x88226a, 0xba3655, 0xe35933, 0xf98e09, 0xf9cb35, 0xfcffa4),
	"Plasma":   gradient(0x0d0887, 0x4c02a1, 0x7e03a8, 0xa92395, 0xcc4778, 0xe56b5d, 0xf89540, 0xfdc527, 0xf0f921),
	"Cividis":  gradient(0x00224e, 0x123570, 0x3b496c, 0x575d6d, 0x707173, 0x8a8779, 0xa69d75, 0xc4b56c, 0xfee838),
	"Greys":    gradient(0xffffff, 0xf0f0f0, 0xd9d9d9, 0xbdbdbd, 0x969696, 0x737373, 0x525252, 0x252525, 0x000000),
	"Blues":    gradient(0xf7fbff, 0xdeebf7, 0xc6dbef, 0x9ecae1, 0x6baed6, 0x4292c6, 0x2171b5, 0x08519c, 0x08306b),
	"Reds":     gradient(0xfff5f0, 0xfee0d2, 0xfcbba1, 0xfc9272, 0xfb6a4a, 0xef3b2c, 0xcb181d, 0xa50f15, 0x67000d),
	"Greens":   gradient(0xf7fcf5, 0xe5f5e0, 0xc7e9c0, 0xa1d99b, 0x74c476, 0x41ab5d, 0x238b45, 0x006d2c, 0x00441b),
	"RdBu":     gradient(0x67001f, 0xb2182b, 0xd6604d, 0xf4a582, 0xfddbc7, 0xf7f7f7, 0xd1e5f0, 0x92c5de, 0x4393c3, 0x2166ac, 0x053061),
	"Spectral": gradient(0x9e0142, 0xd53e4f, 0xf46d43, 0xfdae61, 0xfee08b, 0xffffbf, 0xe6f598, 0xabdda4, 0x66c2a5, 0x3288bd, 0x5e4fa2),
	"Rainbow":  hueSweep(0, 1),
	"Cool":     gradient(0x6efa75, 0x1ddfa3, 0x23abd8, 0x4c6edb, 0x6e40aa),
	"Warm":     gradient(0x6e40aa, 0xbf3caf, 0xfe4b83, 0xff7847, 0xe2b72f, 0xaff05b),
}

// Get returns the named interpolator.
func Get(name string) (Interpolator, error) {
	interp, ok := interpolators[name]
	if !ok {
		return nil, fmt.Errorf("unknown colormap %q", name)
	}
	return interp, nil
}

// Names returns the names of all colormaps in sorted order.
func Names() []string {
	names := make([]string, 0, len(interpolators))
	for name := range interpolators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// gradient interpolates linearly between evenly spaced 24 bit RGB stops.
func gradient(stops ...uint32) Interpolator {
	return func(t float32) color.Color {
		t = clamp01(t)
		pos := t * float32(len(stops)-1)
		i := int(pos)
		if i >= len(stops)-1 {
			return rgbaFromC(stops[len(stops)-1])
		}
		frac := pos - float32(i)
		r0, g0, b0 := cToRGB(stops[i])
		r1, g1, b1 := cToRGB(stops[i+1])
		return rgbaFromC(rgbToC(lerp(r0, r1, frac), lerp(g0, g1, frac), lerp(b0, b1, frac)))
	}
}

// hueSweep sweeps the hue of a fully saturated color from h0 to h1.
func hueSweep(h0, h1 float32) Interpolator {
	return func(t float32) color.Color {
		h := lerp(h0, h1, clamp01(t))
		h -= math.Floor(h)
		return rgbaFromC(rgbToC(hsvToRGB(h, 1, 1)))
	}
}

func clamp01(t float32) float32 {
	if math.IsNaN(t) || t < 0 {
		return 0
	} else if t > 1 {
		return 1
	}
	return t
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

func rgbaFromC(c uint32) color.RGBA {
	return color.RGBA{R: uint8(c >> 16), G: uint8(c >> 8), B: uint8(c), A: 255}
}

// cToRGB converts a 24 bit RGB value stored in the least significant bits.
func cToRGB(c uint32) (r, g, b float32) {
	r = float32(uint8(c>>16)) / math.MaxUint8
	g = float32(uint8(c>>8)) / math.MaxUint8
	b = float32(uint8(c)) / math.MaxUint8
	return r, g, b
}

// rgbToC converts r, g, and b values on the range of 0.0 to 1.0 to a
// 24 bit RGB value stored in the least significant bits of a uint32. The inputs
// are clamped to the range of 0.0 to 1.0
func rgbToC(r, g, b float32) (c uint32) {
	return uint32(math.Round(clamp01(r)*math.MaxUint8))<<16 |
		uint32(math.Round(clamp01(g)*math.MaxUint8))<<8 |
		uint32(math.Round(clamp01(b)*math.MaxUint8))
}

// hsvToRGB converts hue, saturation and brightness values on the range of 0.0
// to 1.0 to RGB floating point values on the range of 0.0 to 1.0
func hsvToRGB(h, s, v float32) (r, g, b float32) {
	var (
		c = s * v
		x = c * (1 - math.Abs(math.Mod(h*6, 2)-1))
		m = v - c
	)
	switch {
	case h >= 0 && h <= 1.0/6:
		r, g, b = c, x, 0
	case h > 1.0/6 && h <= 2.0/6:
		r, g, b = x, c, 0
	case h > 2.0/6 && h <= 3.0/6:
		r, g, b = 0, c, x
	case h > 3.0/6 && h <= 4.0/6:
		r, g, b = 0, x, c
	case h > 4.0/6 && h <= 5.0/6:
		r, g, b = x, 0, c
	case h > 5.0/6 && h <= 1.0:
		r, g, b = c, 0, x
	}
	return r + m, g + m, b + m
}
