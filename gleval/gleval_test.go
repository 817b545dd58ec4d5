package gleval_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/gany/glbuild"
	"github.com/soypat/gany/gleval"
	"github.com/soypat/gany/glrender"
	"github.com/soypat/geometry/ms3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triangle(t *testing.T) *glrender.Geometry {
	t.Helper()
	g, err := glrender.NewGeometry([]ms3.Vec{{X: 0}, {X: 1}, {Y: 1}}, nil)
	require.NoError(t, err)
	return g
}

func TestEvaluateTransform(t *testing.T) {
	g := triangle(t)
	var bld glbuild.Builder
	offset := glbuild.NewUniform(glbuild.Vec3(ms3.Vec{Z: 1}))
	root := bld.Add(bld.Mul(glbuild.Position(), glbuild.LitFloat(2)), offset)
	require.NoError(t, bld.Err())

	e, err := gleval.NewEvaluator(g, gleval.Config{})
	require.NoError(t, err)
	got, err := e.EvaluateVec3(root)
	require.NoError(t, err)
	want := []ms3.Vec{{Z: 1}, {X: 2, Z: 1}, {Y: 2, Z: 1}}
	assert.Equal(t, want, got)

	// Uniform values are read at evaluation time.
	require.NoError(t, offset.SetVec3(ms3.Vec{}))
	got, err = e.EvaluateVec3(root)
	require.NoError(t, err)
	assert.Equal(t, ms3.Vec{X: 2}, got[1])
	assert.NotPanics(t, e.ValuePool().AssertAllReleased)
}

func TestEvaluateBuiltins(t *testing.T) {
	g := triangle(t)
	e, err := gleval.NewEvaluator(g, gleval.Config{
		Model:  mgl32.Translate3D(0, 0, 5),
		Camera: ms3.Vec{Z: 10},
	})
	require.NoError(t, err)
	pos, err := e.EvaluateVec3(glbuild.WorldPosition())
	require.NoError(t, err)
	assert.Equal(t, ms3.Vec{X: 1, Z: 5}, pos[1])

	normals, err := e.EvaluateVec3(glbuild.WorldNormal())
	require.NoError(t, err)
	for _, n := range normals {
		assert.InDelta(t, 1, n.Z, 1e-6)
	}
	cam, err := e.EvaluateVec3(glbuild.CameraPosition())
	require.NoError(t, err)
	assert.Equal(t, ms3.Vec{Z: 10}, cam[2])
}

func TestEvaluateLookups(t *testing.T) {
	g := triangle(t)
	tex, err := glrender.NewTexture(2, 1, glrender.FormatRGBA32F)
	require.NoError(t, err)
	tex.Set(0, 0, [4]float32{0, 0, 0, 1})
	tex.Set(1, 0, [4]float32{1, 1, 1, 1})
	var bld glbuild.Builder
	sampler := glbuild.NewUniform(glbuild.Texture2D(tex))
	x := bld.Swizzle(glbuild.Position(), "x")
	texel := bld.Sample(sampler, bld.Construct(glbuild.TypeVec2, x, glbuild.LitFloat(0.5)))
	root := bld.Swizzle(texel, "rgb")
	require.NoError(t, bld.Err())

	e, err := gleval.NewEvaluator(g, gleval.Config{})
	require.NoError(t, err)
	colors, err := e.EvaluateVec3(root)
	require.NoError(t, err)
	assert.InDelta(t, 0, colors[0].X, 1e-6)
	assert.InDelta(t, 1, colors[1].X, 1e-6, "x=1 clamps to the last texel")
	lookups := e.Lookups()
	require.Len(t, lookups, 3)
	for i, l := range lookups {
		assert.Equal(t, i, l.Vertex)
		assert.Same(t, tex, l.Sampler)
	}
	assert.Equal(t, [3]float32{1, 0.5, 0}, lookups[1].Coord)
	e.ResetLookups()
	assert.Empty(t, e.Lookups())

	require.NoError(t, sampler.SetSampler(nil))
	_, err = e.EvaluateVec3(root)
	assert.Error(t, err, "unbound texture")
}

func TestEvaluateErrors(t *testing.T) {
	g := triangle(t)
	e, err := gleval.NewEvaluator(g, gleval.Config{})
	require.NoError(t, err)
	err = e.Evaluate(glbuild.Position(), make([]glbuild.Value, 2))
	assert.Error(t, err, "result buffer length")

	_, err = e.EvaluateVec3(glbuild.LitFloat(1))
	assert.Error(t, err, "not vec3")

	_, err = e.EvaluateVec3(glbuild.NewVarying(glbuild.TypeVec3))
	assert.Error(t, err, "varyings have no CPU value")

	missing, err := glbuild.NewAttribute("data", glbuild.TypeFloat)
	require.NoError(t, err)
	err = e.Evaluate(missing, make([]glbuild.Value, 3))
	assert.Error(t, err, "missing attribute")

	require.NoError(t, g.SetAttribute("data", []float32{1, 2, 3}, 1))
	vals := make([]glbuild.Value, 3)
	require.NoError(t, e.Evaluate(missing, vals))
	assert.Equal(t, float32(3), vals[2].Float())

	_, err = gleval.NewEvaluator(nil, gleval.Config{})
	assert.Error(t, err)
}

func TestValuePool(t *testing.T) {
	var vp gleval.ValuePool
	a := vp.Float.Acquire(4)
	a[0] = 1
	assert.Panics(t, vp.AssertAllReleased)
	require.NoError(t, vp.Float.Release(a))
	assert.Error(t, vp.Float.Release(a), "double release")
	b := vp.Float.Acquire(3)
	assert.Equal(t, []float32{0, 0, 0}, b, "reused buffers are zeroed")
	require.NoError(t, vp.Float.Release(b))
	assert.NotPanics(t, vp.AssertAllReleased)

	pool, err := gleval.GetValuePool(&vp)
	require.NoError(t, err)
	assert.Same(t, &vp, pool)
	_, err = gleval.GetValuePool(3)
	assert.Error(t, err)
}
