package glrender

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/chewxy/math32"
)

// Format is the texel storage format of a texture.
type Format uint8

const (
	// FormatRGBA8 stores normalized 8 bit channels.
	FormatRGBA8 Format = iota
	// FormatRGBA32F stores float channels. Render targets holding positions and depths use it.
	FormatRGBA32F
)

func (f Format) String() string {
	if f == FormatRGBA8 {
		return "rgba8"
	}
	return "rgba32f"
}

// Filter is the texture sampling filter.
type Filter uint8

const (
	FilterLinear Filter = iota
	FilterNearest
)

// Texture is a 2D RGBA texture. Texels are kept on the CPU in Data, rows bottom to top,
// so they can be sampled by CPU evaluation. Textures backing render targets may have no data.
type Texture struct {
	Width, Height int
	Format        Format
	Filter        Filter
	// Data holds 4 floats per texel.
	Data    []float32
	version uint64
}

// NewTexture returns a zeroed texture.
func NewTexture(width, height int, format Format) (*Texture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid texture size %dx%d", width, height)
	}
	return &Texture{Width: width, Height: height, Format: format, Data: make([]float32, 4*width*height)}, nil
}

// NewTextureFromImage returns an RGBA8 texture with the contents of img.
// The top row of the image is stored last so that v=1 samples the top of the image.
func NewTextureFromImage(img image.Image) (*Texture, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	b := img.Bounds()
	tex, err := NewTexture(b.Dx(), b.Dy(), FormatRGBA8)
	if err != nil {
		return nil, err
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			tex.Set(x-b.Min.X, b.Max.Y-1-y, [4]float32{
				float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255, float32(c.A) / 255,
			})
		}
	}
	return tex, nil
}

// Version returns the mutation counter of the texture's data.
func (t *Texture) Version() uint64 { return t.version }

// Set sets the texel at x, y.
func (t *Texture) Set(x, y int, rgba [4]float32) {
	off := 4 * (y*t.Width + x)
	copy(t.Data[off:off+4], rgba[:])
	t.version++
}

// At returns the texel at x, y clamped to the texture edges.
func (t *Texture) At(x, y int) [4]float32 {
	x = max(0, min(x, t.Width-1))
	y = max(0, min(y, t.Height-1))
	off := 4 * (y*t.Width + x)
	return [4]float32(t.Data[off : off+4])
}

// SampleCPU implements [glbuild.Sampler] with clamp to edge addressing.
func (t *Texture) SampleCPU(coord [3]float32) [4]float32 {
	if len(t.Data) == 0 {
		return [4]float32{}
	}
	u := coord[0]*float32(t.Width) - 0.5
	v := coord[1]*float32(t.Height) - 0.5
	if t.Filter == FilterNearest {
		return t.At(int(math32.Round(u)), int(math32.Round(v)))
	}
	x0, y0 := math32.Floor(u), math32.Floor(v)
	fx, fy := u-x0, v-y0
	ix, iy := int(x0), int(y0)
	var res [4]float32
	c00, c10 := t.At(ix, iy), t.At(ix+1, iy)
	c01, c11 := t.At(ix, iy+1), t.At(ix+1, iy+1)
	for i := range res {
		bottom := c00[i]*(1-fx) + c10[i]*fx
		top := c01[i]*(1-fx) + c11[i]*fx
		res[i] = bottom*(1-fy) + top*fy
	}
	return res
}

// CubeTexture is a cube map made of six square faces ordered +X, -X, +Y, -Y, +Z, -Z.
type CubeTexture struct {
	Faces [6]*Texture
}

// SampleCPU implements [glbuild.Sampler] for direction coordinates.
func (c *CubeTexture) SampleCPU(dir [3]float32) [4]float32 {
	ax, ay, az := math32.Abs(dir[0]), math32.Abs(dir[1]), math32.Abs(dir[2])
	var face int
	var u, v, ma float32
	switch {
	case ax >= ay && ax >= az:
		ma = ax
		if dir[0] > 0 {
			face, u, v = 0, -dir[2], -dir[1]
		} else {
			face, u, v = 1, dir[2], -dir[1]
		}
	case ay >= az:
		ma = ay
		if dir[1] > 0 {
			face, u, v = 2, dir[0], dir[2]
		} else {
			face, u, v = 3, dir[0], -dir[2]
		}
	default:
		ma = az
		if dir[2] > 0 {
			face, u, v = 4, dir[0], -dir[1]
		} else {
			face, u, v = 5, -dir[0], -dir[1]
		}
	}
	tex := c.Faces[face]
	if tex == nil || ma == 0 {
		return [4]float32{}
	}
	return tex.SampleCPU([3]float32{0.5 * (u/ma + 1), 0.5 * (v/ma + 1)})
}
