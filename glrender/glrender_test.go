package glrender_test

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/gany/glbuild"
	"github.com/soypat/gany/glrender"
	"github.com/soypat/geometry/ms3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quad(t *testing.T) *glrender.Geometry {
	t.Helper()
	g, err := glrender.NewGeometry([]ms3.Vec{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
	}, []uint32{0, 1, 2, 0, 2, 3})
	require.NoError(t, err)
	return g
}

func TestGeometryNormals(t *testing.T) {
	g := quad(t)
	for i := 0; i < g.NumVertices(); i++ {
		n := g.Normal(i)
		assert.InDelta(t, 1, n.Z, 1e-6, "vertex %d normal %v", i, n)
	}
	_, err := glrender.NewGeometry([]ms3.Vec{{}, {X: 1}}, nil)
	assert.Error(t, err, "non-indexed geometry with 2 vertices")
	err = g.SetIndices([]uint32{0, 1, 4})
	assert.Error(t, err, "out of range index")
}

func TestGeometryVersion(t *testing.T) {
	g := quad(t)
	v := g.Version()
	require.NoError(t, g.SetAttribute("data", []float32{0, 1, 2, 3}, 1))
	assert.Greater(t, g.Version(), v)
	assert.Error(t, g.SetAttribute("data", []float32{0, 1}, 1))
	assert.Error(t, g.SetAttribute(glrender.AttribPosition, make([]float32, 12), 3))
	assert.Equal(t, []string{"data", "normal", "position"}, g.AttributeNames())

	// Changing vertex count drops attributes sized for the old count.
	require.NoError(t, g.SetPositions([]ms3.Vec{{}, {X: 1}, {Y: 1}}))
	_, _, ok := g.Attribute("data")
	assert.False(t, ok)
	assert.Nil(t, g.Indices())
}

func TestSortTriangles(t *testing.T) {
	g, err := glrender.NewGeometry([]ms3.Vec{
		// Near triangle at z=1.
		{Z: 1}, {X: 1, Z: 1}, {Y: 1, Z: 1},
		// Far triangle at z=-1.
		{Z: -1}, {X: 1, Z: -1}, {Y: 1, Z: -1},
		// Another far triangle at z=-1, sorted after the first one.
		{Z: -1}, {X: 1, Z: -1}, {Y: 1, Z: -1},
	}, nil)
	require.NoError(t, err)
	eye := ms3.Vec{Z: 10}
	g.SortTriangles(eye)
	want := []uint32{3, 4, 5, 6, 7, 8, 0, 1, 2}
	assert.Equal(t, want, g.Indices())
	// Sorting again from the same eye is stable.
	g.SortTriangles(eye)
	assert.Equal(t, want, g.Indices())

	g.SortTriangles(ms3.Vec{Z: -10})
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8}, g.Indices())
}

func TestSetIndicesCopies(t *testing.T) {
	g, err := glrender.NewGeometry([]ms3.Vec{
		{Z: 1}, {X: 1, Z: 1}, {Y: 1, Z: 1},
		{Z: -1}, {X: 1, Z: -1}, {Y: 1, Z: -1},
	}, nil)
	require.NoError(t, err)
	indices := []uint32{0, 1, 2, 3, 4, 5}
	require.NoError(t, g.SetIndices(indices))
	g.SortTriangles(ms3.Vec{Z: 10})
	assert.Equal(t, []uint32{3, 4, 5, 0, 1, 2}, g.Indices())
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, indices)

	// Caller edits after the call do not reach the geometry.
	v := g.Version()
	indices[0] = 5
	assert.Equal(t, uint32(3), g.Indices()[0])
	assert.Equal(t, v, g.Version())
}

func TestBoundingSphere(t *testing.T) {
	g := quad(t)
	s := g.BoundingSphere()
	assert.InDelta(t, 0.5, s.Center.X, 1e-6)
	assert.InDelta(t, 0.5, s.Center.Y, 1e-6)
	assert.InDelta(t, math32.Sqrt(0.5), s.Radius, 1e-6)

	ts := s.Transform(mgl32.Translate3D(1, 0, 0).Mul4(mgl32.Scale3D(2, 2, 2)))
	assert.InDelta(t, 2, ts.Center.X, 1e-6)
	assert.InDelta(t, 2*s.Radius, ts.Radius, 1e-6)
}

func TestTextureSample(t *testing.T) {
	tex, err := glrender.NewTexture(2, 1, glrender.FormatRGBA32F)
	require.NoError(t, err)
	tex.Set(0, 0, [4]float32{0, 0, 0, 1})
	tex.Set(1, 0, [4]float32{1, 0, 0, 1})
	// Texel centers.
	assert.InDelta(t, 0, tex.SampleCPU([3]float32{0.25, 0.5})[0], 1e-6)
	assert.InDelta(t, 1, tex.SampleCPU([3]float32{0.75, 0.5})[0], 1e-6)
	assert.InDelta(t, 0.5, tex.SampleCPU([3]float32{0.5, 0.5})[0], 1e-6)
	// Clamp to edge.
	assert.InDelta(t, 1, tex.SampleCPU([3]float32{2, 0.5})[0], 1e-6)
	tex.Filter = glrender.FilterNearest
	assert.InDelta(t, 1, tex.SampleCPU([3]float32{0.8, 0.5})[0], 1e-6)
}

func TestRenderTargetSetSize(t *testing.T) {
	rt, err := glrender.NewRenderTarget("screen", 4, 4, glrender.FormatRGBA32F)
	require.NoError(t, err)
	require.NoError(t, rt.SetSize(4, 4))
	assert.Zero(t, rt.Version(), "same size must not reallocate")
	require.NoError(t, rt.SetSize(8, 2))
	assert.EqualValues(t, 1, rt.Version())
	w, h := rt.Size()
	assert.Equal(t, [2]int{8, 2}, [2]int{w, h})
	assert.Equal(t, 8, rt.Texture().Width)
	assert.Error(t, rt.SetSize(0, 2))
}

func TestTargetPoolClaim(t *testing.T) {
	pool := glrender.NewTargetPool()
	env, err := pool.EnvironmentTarget(256)
	require.NoError(t, err)
	env2, err := pool.EnvironmentTarget(256)
	require.NoError(t, err)
	assert.Same(t, env, env2, "environment targets are shared per size")
	assert.Equal(t, 1, pool.Allocations())
	assert.Equal(t, glrender.FormatRGBA32F, env.Format())

	ownerA, ownerB := new(int), new(int)
	release, err := pool.Claim(env, ownerA)
	require.NoError(t, err)
	assert.Equal(t, any(ownerA), pool.Owner(env))
	_, err = pool.Claim(env, ownerB)
	assert.ErrorIs(t, err, glrender.ErrTargetClaimed)
	_, err = pool.Claim(env, ownerA)
	assert.ErrorIs(t, err, glrender.ErrTargetClaimed, "claims do not nest")
	release()
	release()
	assert.Nil(t, pool.Owner(env))
	releaseB, err := pool.Claim(env, ownerB)
	require.NoError(t, err)
	releaseB()
}

func TestOrthographicFitSphere(t *testing.T) {
	var cam glrender.OrthographicCamera
	s := glrender.Sphere{Center: ms3.Vec{X: 1, Y: 2, Z: 3}, Radius: 2}
	cam.FitSphere(s, ms3.Vec{Y: -1})
	assert.Equal(t, ms3.Vec{Z: 1}, cam.Up, "looking straight down uses Z up")
	vp := cam.ProjectionMatrix().Mul4(cam.ViewMatrix())
	ndc := mgl32.TransformCoordinate(mgl32.Vec3{1, 2, 3}, vp)
	for i := range ndc {
		assert.InDelta(t, 0, ndc[i], 1e-5, "sphere center maps to clip volume center")
	}
	// Topmost point of the sphere is on the near plane.
	ndc = mgl32.TransformCoordinate(mgl32.Vec3{1, 4, 3}, vp)
	assert.InDelta(t, -1, ndc[2], 1e-5)
}

func TestSortTransparent(t *testing.T) {
	opaque := glrender.DefaultMaterial()
	transparent := glrender.TransparentMaterial()
	items := []glrender.DrawItem{
		{Material: transparent, Model: mgl32.Ident4()},
		{Material: opaque},
		{Material: transparent},
		{Material: opaque, Model: mgl32.Ident4()},
	}
	glrender.SortTransparent(items)
	assert.False(t, items[0].Material.Transparent)
	assert.Equal(t, mgl32.Mat4{}, items[0].Model, "opaque order preserved")
	assert.Equal(t, mgl32.Ident4(), items[1].Model)
	assert.Equal(t, mgl32.Ident4(), items[2].Model, "transparent order preserved")
	assert.True(t, items[3].Material.Transparent)
}

func TestRecorder(t *testing.T) {
	g := quad(t)
	prog, err := glbuild.NewDefaultProgrammer().Compile(glbuild.MaterialGraph{})
	require.NoError(t, err)
	rt, err := glrender.NewRenderTarget("pass", 16, 16, glrender.FormatRGBA8)
	require.NoError(t, err)
	cam := glrender.NewPerspectiveCamera(1, ms3.Vec{Z: 5})
	scene := glrender.DrawItems{{Geometry: g, Program: prog, Material: glrender.DefaultMaterial(), Model: mgl32.Ident4()}}

	r := glrender.NewRecorder(640, 480)
	r.SetRenderTarget(rt)
	r.SetClearColor([4]float32{1, 0, 0, 1})
	require.NoError(t, r.Clear())
	require.NoError(t, r.Render(scene, cam))
	r.SetRenderTarget(nil)
	require.NoError(t, r.Render(scene, cam))

	cmds := r.Commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, glrender.CmdClear, cmds[0].Kind)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, cmds[0].ClearColor)
	assert.Same(t, rt, cmds[1].Target)
	assert.Nil(t, cmds[2].Target)
	assert.Equal(t, 2, r.Writes(rt))
	assert.Equal(t, 1, r.Writes(nil))

	r.Reset()
	assert.Empty(t, r.Commands())
	assert.Zero(t, r.Writes(rt))

	errDraw := errors.New("draw failed")
	r.FailDraw = errDraw
	assert.ErrorIs(t, r.Render(scene, cam), errDraw)
	assert.Error(t, glrender.NewRecorder(1, 1).Render(glrender.DrawItems{{}}, cam))
}
