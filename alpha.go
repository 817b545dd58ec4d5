package gany

import (
	"github.com/soypat/gany/glrender"
	"github.com/soypat/geometry/ms3"
)

// Alpha multiplies the opacity of its parent's meshes by a scalar input. Its meshes
// are transparent and their triangles are sorted back to front whenever the camera
// stops moving or the geometry changes.
type Alpha struct {
	*chain
}

var _ Effect = (*Alpha)(nil)

// NewAlpha returns an Alpha effect on parent reading opacity from a scalar input.
func NewAlpha(parent Blocker, in Input) (*Alpha, error) {
	c, err := newChain(parent, in, 1)
	if err != nil {
		return nil, err
	}
	a := &Alpha{chain: c}
	err = a.combine(SlotAlpha, OpMul, a.inputRef)
	if err != nil {
		return nil, err
	}
	for _, m := range a.block.meshes {
		mat := m.Material()
		mat.Transparent = true
		mat.Blend = true
		mat.Color, mat.Alpha = glrender.BlendAlpha, glrender.BlendAlpha
		m.SetMaterial(mat)
	}
	err = a.init()
	if err != nil {
		return nil, err
	}
	a.SortTriangleIndices()
	a.subscribe(a.block.GeometryChanged.Subscribe(func(*Block) { a.SortTriangleIndices() }))
	a.subscribe(a.block.CameraMoveEnd.Subscribe(func(cam ms3.Vec) { a.SortTriangleIndices() }))
	a.subscribe(a.block.TransformChanged.Subscribe(func(*Block) { a.SortTriangleIndices() }))
	return a, nil
}

func (a *Alpha) Slots() []Slot { return []Slot{SlotAlpha} }

// SortTriangleIndices sorts the triangles of the effect's meshes farthest first from
// the last camera position.
func (a *Alpha) SortTriangleIndices() {
	for _, m := range a.block.meshes {
		m.SortTriangleIndices(a.block.lastCamera)
	}
}
