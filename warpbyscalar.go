package gany

import (
	"github.com/soypat/gany/glbuild"
)

// WarpByScalar displaces the vertices of its parent's meshes along their normals
// by a scalar input:
//
//	position += factor * input * normal
type WarpByScalar struct {
	*chain
	factor *glbuild.Uniform
}

var _ Effect = (*WarpByScalar)(nil)

// NewWarpByScalar returns a WarpByScalar effect on parent reading a scalar input.
func NewWarpByScalar(parent Blocker, in Input, factor float32) (*WarpByScalar, error) {
	c, err := newChain(parent, in, 1)
	if err != nil {
		return nil, err
	}
	w := &WarpByScalar{
		chain:  c,
		factor: glbuild.NewUniform(glbuild.Float(factor)),
	}
	bld := glbuild.Builder{NoPanic: true}
	displacement := bld.Mul(bld.Mul(w.factor, w.inputRef), glbuild.Normal())
	if err = bld.Err(); err != nil {
		return nil, err
	}
	err = w.combine(SlotTransform, OpAdd, displacement)
	if err != nil {
		return nil, err
	}
	err = w.init()
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (w *WarpByScalar) Slots() []Slot { return []Slot{SlotTransform} }

func (w *WarpByScalar) Factor() float32 { return w.factor.Value().Float() }

// SetFactor sets the displacement scale. No rebuild is needed.
func (w *WarpByScalar) SetFactor(factor float32) error { return w.factor.SetFloat(factor) }
