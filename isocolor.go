package gany

import (
	"fmt"
	"image"

	"github.com/soypat/gany/colormap"
	"github.com/soypat/gany/glbuild"
	"github.com/soypat/gany/glbuild/glsllib"
)

// IsoColorConfig configures an [IsoColor] effect.
type IsoColorConfig struct {
	// ColorMap is the name of a [colormap] interpolator. Defaults to [colormap.Default].
	ColorMap string
	// Scale maps the input to the color map linearly or logarithmically.
	Scale colormap.ScaleType
}

// IsoColor colors its parent's meshes by mapping a scalar input between min and max
// onto a color map. It keeps a color bar legend image up to date.
type IsoColor struct {
	*chain
	min      *glbuild.Uniform
	max      *glbuild.Uniform
	colorMap *glbuild.Uniform
	call     *glbuild.Call

	mapName string
	interp  colormap.Interpolator
	scale   colormap.ScaleType
	bar     *colormap.ColorBar

	// ColorBarChanged is published after the color bar image is redrawn.
	ColorBarChanged Signal[*IsoColor]
}

var _ Effect = (*IsoColor)(nil)

// NewIsoColor returns an IsoColor effect on parent reading a scalar input.
func NewIsoColor(parent Blocker, in Input, vmin, vmax float32, cfg IsoColorConfig) (*IsoColor, error) {
	if cfg.ColorMap == "" {
		cfg.ColorMap = colormap.Default
	}
	interp, err := colormap.Get(cfg.ColorMap)
	if err != nil {
		return nil, err
	}
	tex, err := colormap.NewTexture(interp)
	if err != nil {
		return nil, err
	}
	bar, err := colormap.NewColorBar()
	if err != nil {
		return nil, fmt.Errorf("iso color legend: %w", err)
	}
	c, err := newChain(parent, in, 1)
	if err != nil {
		return nil, err
	}
	iso := &IsoColor{
		chain:    c,
		min:      glbuild.NewUniform(glbuild.Float(vmin)),
		max:      glbuild.NewUniform(glbuild.Float(vmax)),
		colorMap: glbuild.NewUniform(glbuild.Texture2D(tex)),
		mapName:  cfg.ColorMap,
		interp:   interp,
		scale:    cfg.Scale,
		bar:      bar,
	}
	iso.call, err = glbuild.NewCall(isoColorFunc(cfg.Scale), iso.args()...)
	if err != nil {
		return nil, err
	}
	err = iso.combine(SlotColor, OpAssign, iso.call)
	if err != nil {
		return nil, err
	}
	err = iso.drawColorBar()
	if err != nil {
		return nil, err
	}
	err = iso.init()
	if err != nil {
		return nil, err
	}
	return iso, nil
}

func isoColorFunc(scale colormap.ScaleType) *glbuild.FuncDef {
	if scale == colormap.ScaleLog {
		return glsllib.IsoColorLog()
	}
	return glsllib.IsoColor()
}

func (iso *IsoColor) args() []glbuild.Node {
	return []glbuild.Node{iso.colorMap, iso.min, iso.max, iso.inputRef}
}

func (iso *IsoColor) Slots() []Slot { return []Slot{SlotColor} }

// Call returns the color map function call assigned to the color slot.
func (iso *IsoColor) Call() *glbuild.Call { return iso.call }

func (iso *IsoColor) Min() float32 { return iso.min.Value().Float() }

func (iso *IsoColor) Max() float32 { return iso.max.Value().Float() }

// SetMin sets the input value mapped to the start of the color map. No rebuild is needed.
func (iso *IsoColor) SetMin(v float32) error {
	err := iso.min.SetFloat(v)
	if err != nil {
		return err
	}
	return iso.drawColorBar()
}

// SetMax sets the input value mapped to the end of the color map. No rebuild is needed.
func (iso *IsoColor) SetMax(v float32) error {
	err := iso.max.SetFloat(v)
	if err != nil {
		return err
	}
	return iso.drawColorBar()
}

// ColorMap returns the name of the color map in use.
func (iso *IsoColor) ColorMap() string { return iso.mapName }

// SetColorMap replaces the color map lookup texture. No rebuild is needed.
func (iso *IsoColor) SetColorMap(name string) error {
	interp, err := colormap.Get(name)
	if err != nil {
		return err
	}
	tex, err := colormap.NewTexture(interp)
	if err != nil {
		return err
	}
	err = iso.colorMap.SetSampler(tex)
	if err != nil {
		return err
	}
	iso.mapName, iso.interp = name, interp
	return iso.drawColorBar()
}

// ScaleType returns the mapping scale in use.
func (iso *IsoColor) ScaleType() colormap.ScaleType { return iso.scale }

// SetScaleType switches between linear and logarithmic mapping. This replaces the
// called function so the meshes are rebuilt.
func (iso *IsoColor) SetScaleType(scale colormap.ScaleType) error {
	if scale == iso.scale {
		return nil
	}
	err := iso.call.SetFunction(isoColorFunc(scale), iso.args()...)
	if err != nil {
		return err
	}
	iso.scale = scale
	for _, m := range iso.block.meshes {
		m.MarkNeedsRebuild()
	}
	err = iso.drawColorBar()
	if err != nil {
		return err
	}
	if !iso.initialized {
		return nil
	}
	return iso.Rebuild()
}

// ColorBar returns the color bar legend image. It is redrawn in place on changes.
func (iso *IsoColor) ColorBar() image.Image { return iso.bar.Image() }

func (iso *IsoColor) drawColorBar() error {
	err := iso.bar.Draw(iso.interp, iso.Min(), iso.Max(), iso.scale)
	if err != nil {
		return err
	}
	iso.ColorBarChanged.Publish(iso)
	return nil
}
