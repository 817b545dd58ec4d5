//go:build !tinygo && cgo

package gleval_test

import (
	"testing"

	"github.com/soypat/gany/glbuild"
	"github.com/soypat/gany/gleval"
	"github.com/soypat/geometry/ms3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGPUEvaluatorMatchesCPU(t *testing.T) {
	terminate, err := gleval.Init1x1GLFW()
	if err != nil {
		t.Skip("no OpenGL context:", err)
	}
	defer terminate()
	g := triangle(t)
	var bld glbuild.Builder
	offset := glbuild.NewUniform(glbuild.Vec3(ms3.Vec{Z: 1}))
	root := bld.Add(bld.Mul(glbuild.Position(), glbuild.LitFloat(2)), offset)
	require.NoError(t, bld.Err())

	cpu, err := gleval.NewEvaluator(g, gleval.Config{})
	require.NoError(t, err)
	want, err := cpu.EvaluateVec3(root)
	require.NoError(t, err)

	gpu, err := gleval.NewGPUEvaluator(g, gleval.Config{}, 0)
	require.NoError(t, err)
	defer gpu.Delete()
	got := make([]float32, 3*len(want))
	require.NoError(t, gpu.Evaluate(root, got))
	for i, v := range want {
		assert.InDelta(t, v.X, got[3*i], 1e-6)
		assert.InDelta(t, v.Y, got[3*i+1], 1e-6)
		assert.InDelta(t, v.Z, got[3*i+2], 1e-6)
	}
	assert.Error(t, gpu.Evaluate(root, got[:2]))
}
