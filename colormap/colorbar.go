package colormap

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"

	math "github.com/chewxy/math32"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// Colour bar legend dimensions in pixels.
const (
	ColorBarWidth  = 1024
	ColorBarHeight = 100
	colorBarStrip  = 60
	colorBarLine   = 4
	colorBarFontSz = 35
)

// ColorBar renders a colormap legend: a color strip with five ticks labelled with
// the data values they map to.
type ColorBar struct {
	face font.Face
	img  *image.RGBA
}

// NewColorBar returns a colour bar ready to draw. The label font is parsed once.
func NewColorBar() (*ColorBar, error) {
	ttf, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("colour bar font: %w", err)
	}
	return &ColorBar{
		face: truetype.NewFace(ttf, &truetype.Options{Size: colorBarFontSz, DPI: 72, Hinting: font.HintingFull}),
		img:  image.NewRGBA(image.Rect(0, 0, ColorBarWidth, ColorBarHeight)),
	}, nil
}

// Image returns the colour bar image. It is redrawn in place by [ColorBar.Draw].
func (cb *ColorBar) Image() *image.RGBA { return cb.img }

// TickValues returns the data values at the five evenly spaced ticks of a colour bar.
func TickValues(vmin, vmax float32, scale ScaleType) [5]float32 {
	var ticks [5]float32
	for i := range ticks {
		t := float32(i) / 4
		if scale == ScaleLog {
			lmin := math.Log(math.Max(vmin, 0x1p-126))
			lmax := math.Log(math.Max(vmax, 0x1p-126))
			ticks[i] = math.Exp(lmin + (lmax-lmin)*t)
		} else {
			ticks[i] = vmin + (vmax-vmin)*t
		}
	}
	ticks[0], ticks[4] = vmin, vmax
	return ticks
}

// FormatTick formats a tick label in exponent notation with two decimals.
func FormatTick(v float32) string {
	return strconv.FormatFloat(float64(v), 'e', 2, 32)
}

// Draw redraws the colour bar for interp over the data range [vmin, vmax].
func (cb *ColorBar) Draw(interp Interpolator, vmin, vmax float32, scale ScaleType) error {
	if interp == nil {
		return fmt.Errorf("nil colormap interpolator")
	}
	img := cb.img
	draw.Draw(img, img.Bounds(), image.Transparent, image.Point{}, draw.Src)
	for x := 0; x < ColorBarWidth; x++ {
		c := interp(float32(x) / (ColorBarWidth - 1))
		draw.Draw(img, image.Rect(x, 0, x+1, colorBarStrip), image.NewUniform(c), image.Point{}, draw.Src)
	}
	black := image.NewUniform(color.Black)
	half := colorBarLine / 2
	// Outline.
	draw.Draw(img, image.Rect(0, 0, ColorBarWidth, half), black, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, colorBarStrip-half, ColorBarWidth, colorBarStrip+half), black, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, 0, half, colorBarStrip), black, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(ColorBarWidth-half, 0, ColorBarWidth, colorBarStrip), black, image.Point{}, draw.Src)

	ticks := TickValues(vmin, vmax, scale)
	d := font.Drawer{Dst: img, Src: black, Face: cb.face}
	for i, v := range ticks {
		x := i * ColorBarWidth / 4
		draw.Draw(img, image.Rect(x-half, colorBarStrip-8, x+half, colorBarStrip+8), black, image.Point{}, draw.Src)
		label := FormatTick(v)
		width := d.MeasureString(label).Ceil()
		switch i {
		case 0:
		case len(ticks) - 1:
			x -= width
		default:
			x -= width / 2
		}
		d.Dot = fixed.P(x, ColorBarHeight-2)
		d.DrawString(label)
	}
	return nil
}
