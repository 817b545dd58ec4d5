package ganyaux

import (
	"errors"
	"fmt"

	"github.com/soypat/gany"
	"github.com/soypat/gany/glbuild"
	"github.com/soypat/gany/gleval"
	"github.com/soypat/geometry/ms3"
)

// TransformBounds evaluates the transform slot of the first mesh of blk for every
// vertex and returns the object space bounding box of the results. When gpu is
// true the evaluation runs in a compute shader and needs a current OpenGL context.
func TransformBounds(blk gany.Blocker, gpu bool) (ms3.Box, error) {
	b := blk.AsBlock()
	meshes := b.Meshes()
	if len(meshes) == 0 {
		return ms3.Box{}, errors.New("block has no meshes")
	}
	root := meshes[0].Expr(gany.SlotTransform)
	if root == nil {
		root = glbuild.Position()
	}
	cfg := gleval.Config{Model: b.ModelMatrix()}
	g := b.Geometry()
	var pos []ms3.Vec
	if gpu {
		e, err := gleval.NewGPUEvaluator(g, cfg, 0)
		if err != nil {
			return ms3.Box{}, err
		}
		defer e.Delete()
		flat := make([]float32, 3*g.NumVertices())
		err = e.Evaluate(root, flat)
		if err != nil {
			return ms3.Box{}, fmt.Errorf("GPU evaluation: %w", err)
		}
		pos = make([]ms3.Vec, g.NumVertices())
		for i := range pos {
			pos[i] = ms3.Vec{X: flat[3*i], Y: flat[3*i+1], Z: flat[3*i+2]}
		}
	} else {
		e, err := gleval.NewEvaluator(g, cfg)
		if err != nil {
			return ms3.Box{}, err
		}
		pos, err = e.EvaluateVec3(root)
		if err != nil {
			return ms3.Box{}, fmt.Errorf("CPU evaluation: %w", err)
		}
	}
	bb := ms3.Box{Min: pos[0], Max: pos[0]}
	for _, p := range pos[1:] {
		bb = bb.IncludePoint(p)
	}
	return bb, nil
}
