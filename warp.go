package gany

import (
	"github.com/soypat/gany/glbuild"
	"github.com/soypat/geometry/ms3"
)

// Warp displaces the vertices of its parent's meshes by a vector input:
//
//	position += (offset + input) * factor
type Warp struct {
	*chain
	factor *glbuild.Uniform
	offset *glbuild.Uniform
}

var _ Effect = (*Warp)(nil)

// NewWarp returns a Warp effect on parent reading a three component input.
func NewWarp(parent Blocker, in Input, factor, offset ms3.Vec) (*Warp, error) {
	c, err := newChain(parent, in, 3)
	if err != nil {
		return nil, err
	}
	w := &Warp{
		chain:  c,
		factor: glbuild.NewUniform(glbuild.Vec3(factor)),
		offset: glbuild.NewUniform(glbuild.Vec3(offset)),
	}
	bld := glbuild.Builder{NoPanic: true}
	displacement := bld.Mul(bld.Add(w.offset, w.inputRef), w.factor)
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

func (w *Warp) Slots() []Slot { return []Slot{SlotTransform} }

func (w *Warp) Factor() ms3.Vec { return w.factor.Value().Vec3() }

// SetFactor sets the per-axis displacement factor. No rebuild is needed.
func (w *Warp) SetFactor(factor ms3.Vec) error { return w.factor.SetVec3(factor) }

func (w *Warp) Offset() ms3.Vec { return w.offset.Value().Vec3() }

// SetOffset sets the vector added to the input before scaling. No rebuild is needed.
func (w *Warp) SetOffset(offset ms3.Vec) error { return w.offset.SetVec3(offset) }
