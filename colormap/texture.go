package colormap

import (
	"errors"

	"github.com/soypat/gany/glrender"
)

// TextureSize is the number of texels of colormap lookup textures.
const TextureSize = 1024

// NewTexture returns a TextureSize x 1 lookup texture sampling interp at evenly spaced
// positions from 0 to 1.
func NewTexture(interp Interpolator) (*glrender.Texture, error) {
	if interp == nil {
		return nil, errors.New("nil colormap interpolator")
	}
	tex, err := glrender.NewTexture(TextureSize, 1, glrender.FormatRGBA8)
	if err != nil {
		return nil, err
	}
	for i := 0; i < TextureSize; i++ {
		r, g, b, a := interp(float32(i) / (TextureSize - 1)).RGBA()
		tex.Set(i, 0, [4]float32{float32(r) / 0xffff, float32(g) / 0xffff, float32(b) / 0xffff, float32(a) / 0xffff})
	}
	return tex, nil
}
