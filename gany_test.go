package gany_test

import (
	"errors"
	"testing"

	"github.com/soypat/gany"
	"github.com/soypat/gany/colormap"
	"github.com/soypat/gany/glbuild"
	"github.com/soypat/gany/gleval"
	"github.com/soypat/gany/glrender"
	"github.com/soypat/geometry/ms3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quad returns a unit square block in the XY plane with a scalar field "field.value"
// and a vector field "disp" of components x, y and z.
func quad(t *testing.T, values ...float32) *gany.Block {
	t.Helper()
	if values == nil {
		values = []float32{0, 0.25, 0.5, 1}
	}
	vertices := []ms3.Vec{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}}
	data := []*gany.Data{
		{Name: "field", Components: []gany.Component{{Name: "value", Array: values}}},
		{Name: "disp", Components: []gany.Component{
			{Name: "x", Array: []float32{1, 1, 1, 1}},
			{Name: "y", Array: []float32{0, 0, 0, 0}},
			{Name: "z", Array: []float32{0, 1, 2, 3}},
		}},
	}
	b, err := gany.NewPolyMesh(vertices, []uint32{0, 1, 2, 0, 2, 3}, data)
	require.NoError(t, err)
	return b
}

func input(t *testing.T, b gany.Blocker, data string, comps ...string) gany.Input {
	t.Helper()
	in, err := b.AsBlock().Input(data, comps...)
	require.NoError(t, err)
	return in
}

func TestIsoColorWarpByScalarChain(t *testing.T) {
	b := quad(t)
	in := input(t, b, "field", "value")
	iso, err := gany.NewIsoColor(b, in, 0, 1, gany.IsoColorConfig{})
	require.NoError(t, err)
	warp, err := gany.NewWarpByScalar(iso, input(t, iso, "field"), 0.5)
	require.NoError(t, err)

	mesh := warp.AsBlock().Meshes()[0]
	call, ok := mesh.Expr(gany.SlotColor).(*glbuild.Call)
	require.True(t, ok, "color slot must hold a function call, got %T", mesh.Expr(gany.SlotColor))
	assert.Equal(t, "ganyIsoColor", call.Def().Name())
	assert.Same(t, iso.Call(), call)

	e, err := gleval.NewEvaluator(b.Geometry(), gleval.Config{})
	require.NoError(t, err)
	_, err = e.EvaluateVec3(call)
	require.NoError(t, err)
	lookups := e.Lookups()
	require.Len(t, lookups, 4)
	for i, want := range []float32{0, 0.25, 0.5, 1} {
		assert.Equal(t, i, lookups[i].Vertex)
		assert.InDelta(t, want, lookups[i].Coord[0], 1e-6, "lookup %d", i)
	}

	transformed, err := e.EvaluateVec3(mesh.Expr(gany.SlotTransform))
	require.NoError(t, err)
	values := []float32{0, 0.25, 0.5, 1}
	for i := range transformed {
		// The quad's normals point along +Z.
		want := ms3.Add(b.Geometry().Position(i), ms3.Vec{Z: 0.5 * values[i]})
		assert.InDelta(t, want.X, transformed[i].X, 1e-6)
		assert.InDelta(t, want.Y, transformed[i].Y, 1e-6)
		assert.InDelta(t, want.Z, transformed[i].Z, 1e-6)
	}
	assert.False(t, mesh.NeedsRebuild())
	require.NotNil(t, mesh.Program())
	assert.Contains(t, string(mesh.Program().Fragment), "ganyIsoColor(")
}

func TestCombineOrder(t *testing.T) {
	b := quad(t)
	g := b.Geometry()
	a := glbuild.LitVec3(ms3.Vec{X: 1, Y: 1, Z: 1})
	c := glbuild.LitVec3(ms3.Vec{X: 2, Y: 4, Z: 8})
	e, err := gleval.NewEvaluator(g, gleval.Config{})
	require.NoError(t, err)

	eval := func(ops ...gany.Operation) []ms3.Vec {
		var sg gany.SlotGraph
		require.NoError(t, sg.Combine(gany.SlotColor, gany.OpAssign, a))
		require.NoError(t, sg.Combine(gany.SlotColor, ops[0], c))
		res, err := e.EvaluateVec3(sg.Expr(gany.SlotColor))
		require.NoError(t, err)
		return res
	}
	evalSwapped := func(op gany.Operation) []ms3.Vec {
		var sg gany.SlotGraph
		require.NoError(t, sg.Combine(gany.SlotColor, gany.OpAssign, c))
		require.NoError(t, sg.Combine(gany.SlotColor, op, a))
		res, err := e.EvaluateVec3(sg.Expr(gany.SlotColor))
		require.NoError(t, err)
		return res
	}
	for _, op := range []gany.Operation{gany.OpAdd, gany.OpMul} {
		assert.Equal(t, eval(op), evalSwapped(op), "%s must not depend on order", op)
	}
	for _, op := range []gany.Operation{gany.OpSub, gany.OpDiv} {
		assert.NotEqual(t, eval(op), evalSwapped(op), "%s must depend on order", op)
	}
	assert.Equal(t, ms3.Vec{X: -1, Y: -3, Z: -7}, eval(gany.OpSub)[0])
	assert.Equal(t, ms3.Vec{X: 0.5, Y: 0.25, Z: 0.125}, eval(gany.OpDiv)[0])
}

func TestCombineEmptySlot(t *testing.T) {
	var sg gany.SlotGraph
	c := glbuild.LitVec3(ms3.Vec{X: 1})
	for _, op := range []gany.Operation{gany.OpAdd, gany.OpSub, gany.OpMul, gany.OpDiv} {
		err := sg.Combine(gany.SlotColor, op, c)
		assert.ErrorIs(t, err, gany.ErrEmptySlot)
		assert.Nil(t, sg.Expr(gany.SlotColor))
	}
	err := sg.Combine(gany.SlotAlpha, gany.OpAssign, c)
	assert.ErrorIs(t, err, glbuild.ErrTypeMismatch)
	assert.Nil(t, sg.Expr(gany.SlotAlpha))

	require.NoError(t, sg.Combine(gany.SlotColor, gany.OpAssign, c))
	// A float contribution broadcasts onto the vec3 slot.
	require.NoError(t, sg.Combine(gany.SlotColor, gany.OpMul, glbuild.LitFloat(2)))
	assert.Equal(t, glbuild.TypeVec3, sg.Expr(gany.SlotColor).Type())
}

func TestMeshCopy(t *testing.T) {
	b := quad(t)
	orig := b.Meshes()[0]
	cp := orig.Copy(glbuild.MaterialBasic)
	assert.Same(t, orig.Geometry(), cp.Geometry())
	assert.Equal(t, glbuild.MaterialBasic, cp.Kind())
	assert.Equal(t, glbuild.MaterialStandard, orig.Kind())

	before := orig.Expr(gany.SlotColor)
	require.NoError(t, cp.Combine(gany.SlotColor, gany.OpMul, glbuild.LitFloat(0.5)))
	assert.Same(t, before, orig.Expr(gany.SlotColor), "copy combine leaked into original")
	require.NoError(t, orig.Combine(gany.SlotAlpha, gany.OpMul, glbuild.LitFloat(0.5)))
	assert.NotSame(t, orig.Expr(gany.SlotAlpha), cp.Expr(gany.SlotAlpha))

	// Geometry mutations are observed through both meshes.
	moved := []ms3.Vec{{Z: 1}, {X: 1, Z: 1}, {X: 1, Y: 1, Z: 1}, {Y: 1, Z: 1}}
	require.NoError(t, b.SetVertices(moved))
	assert.Equal(t, moved[2], orig.Geometry().Position(2))
	assert.Equal(t, moved[2], cp.Geometry().Position(2))
}

func TestMeshNeedsRebuild(t *testing.T) {
	b := quad(t)
	m := b.Meshes()[0]
	assert.False(t, m.NeedsRebuild())
	prog := m.Program()

	u := glbuild.NewUniform(glbuild.Float(1))
	require.NoError(t, m.Combine(gany.SlotAlpha, gany.OpMul, u))
	assert.True(t, m.NeedsRebuild())
	require.NoError(t, m.Rebuild())
	assert.False(t, m.NeedsRebuild())
	assert.NotSame(t, prog, m.Program())

	// Leaf values are patched live.
	require.NoError(t, u.SetFloat(0.25))
	assert.False(t, m.NeedsRebuild())

	// Rebuilding unchanged expressions is idempotent.
	prog = m.Program()
	m.MarkNeedsRebuild()
	require.NoError(t, m.Rebuild())
	assert.True(t, prog.Equal(m.Program()))

	// Editing the slot graph directly is detected by identity.
	require.NoError(t, m.Slots().Combine(gany.SlotAlpha, gany.OpMul, glbuild.LitFloat(1)))
	assert.True(t, m.NeedsRebuild())
}

func TestEffectInputDimension(t *testing.T) {
	b := quad(t)
	m := b.Meshes()[0]
	prog, color := m.Program(), m.Expr(gany.SlotTransform)
	listeners := b.GeometryChanged.Listeners()

	scalar := input(t, b, "field", "value")
	_, err := gany.NewWarp(b, scalar, ms3.Vec{X: 1, Y: 1, Z: 1}, ms3.Vec{})
	assert.ErrorIs(t, err, gany.ErrInputDimension)
	_, err = gany.NewRGB(b, scalar)
	assert.ErrorIs(t, err, gany.ErrInputDimension)
	_, err = gany.NewAlpha(b, input(t, b, "disp"))
	assert.ErrorIs(t, err, gany.ErrInputDimension)

	// The parent is left untouched.
	assert.Same(t, prog, m.Program())
	assert.Same(t, color, m.Expr(gany.SlotTransform))
	assert.Equal(t, listeners, b.GeometryChanged.Listeners())
	assert.False(t, m.NeedsRebuild())

	_, err = b.Input("disp", "x", "y")
	assert.ErrorIs(t, err, gany.ErrInputDimension)
	_, err = b.Input("missing")
	assert.Error(t, err)
	_, err = b.Input("disp", "w")
	assert.Error(t, err)
}

func TestWarp(t *testing.T) {
	b := quad(t)
	w, err := gany.NewWarp(b, input(t, b, "disp"), ms3.Vec{X: 1, Y: 1, Z: 1}, ms3.Vec{})
	require.NoError(t, err)
	assert.Equal(t, []gany.Slot{gany.SlotTransform}, w.Slots())
	e, err := gleval.NewEvaluator(b.Geometry(), gleval.Config{})
	require.NoError(t, err)
	expr := w.AsBlock().Meshes()[0].Expr(gany.SlotTransform)
	got, err := e.EvaluateVec3(expr)
	require.NoError(t, err)
	assert.Equal(t, ms3.Vec{X: 2, Y: 1, Z: 2}, got[2])

	prog := w.AsBlock().Meshes()[0].Program()
	require.NoError(t, w.SetFactor(ms3.Vec{X: 2, Y: 2, Z: 2}))
	require.NoError(t, w.SetOffset(ms3.Vec{Y: 1}))
	got, err = e.EvaluateVec3(expr)
	require.NoError(t, err)
	assert.Equal(t, ms3.Vec{X: 3, Y: 3, Z: 4}, got[2])
	assert.Same(t, prog, w.AsBlock().Meshes()[0].Program(), "live setters must not rebuild")
}

func TestSetInput(t *testing.T) {
	b := quad(t)
	err := b.SetData(append(b.Data(), &gany.Data{
		Name: "other", Components: []gany.Component{{Name: "v", Array: []float32{3, 3, 3, 3}}},
	}))
	require.NoError(t, err)
	w, err := gany.NewWarpByScalar(b, input(t, b, "field"), 1)
	require.NoError(t, err)
	m := w.AsBlock().Meshes()[0]
	expr := m.Expr(gany.SlotTransform)
	prog := m.Program()

	require.NoError(t, w.SetInput(input(t, b, "other")))
	assert.Same(t, expr, m.Expr(gany.SlotTransform), "input is re-pointed in place")
	assert.NotSame(t, prog, m.Program())
	assert.False(t, m.NeedsRebuild())
	assert.Contains(t, string(m.Program().Vertex), "other_v")
	assert.NotContains(t, string(m.Program().Vertex), "field_value")
	assert.Equal(t, "other", w.Input().DataName())

	err = w.SetInput(input(t, b, "disp"))
	assert.ErrorIs(t, err, gany.ErrInputDimension)
	assert.Equal(t, "other", w.Input().DataName())
}

func TestGeometryChangedForwarding(t *testing.T) {
	b := quad(t)
	iso, err := gany.NewIsoColor(b, input(t, b, "field"), 0, 1, gany.IsoColorConfig{})
	require.NoError(t, err)
	rgb, err := gany.NewRGB(iso, input(t, iso, "disp"))
	require.NoError(t, err)
	var isoCount, rgbCount int
	iso.AsBlock().GeometryChanged.Subscribe(func(*gany.Block) { isoCount++ })
	unsub := rgb.AsBlock().GeometryChanged.Subscribe(func(*gany.Block) { rgbCount++ })

	require.NoError(t, b.SetVertices([]ms3.Vec{{}, {X: 2}, {X: 2, Y: 2}, {Y: 2}}))
	assert.Equal(t, 1, isoCount)
	assert.Equal(t, 1, rgbCount)
	unsub()
	require.NoError(t, b.SetTriangleIndices([]uint32{0, 2, 1, 0, 3, 2}))
	assert.Equal(t, 2, isoCount)
	assert.Equal(t, 1, rgbCount)

	// Effects share the parent's geometry and may not mutate it.
	assert.Same(t, b.Geometry(), rgb.AsBlock().Geometry())
	assert.Error(t, rgb.AsBlock().SetVertices([]ms3.Vec{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}}))
}

func TestAlphaSorting(t *testing.T) {
	vertices := []ms3.Vec{
		{Z: 1}, {X: 1, Z: 1}, {Y: 1, Z: 1},
		{}, {X: 1}, {Y: 1},
	}
	data := []*gany.Data{{Name: "alpha", Components: []gany.Component{{Name: "a", Array: []float32{1, 1, 1, 0.5, 0.5, 0.5}}}}}
	b, err := gany.NewPolyMesh(vertices, nil, data)
	require.NoError(t, err)
	alpha, err := gany.NewAlpha(b, input(t, b, "alpha"))
	require.NoError(t, err)
	m := alpha.AsBlock().Meshes()[0]
	assert.True(t, m.Material().Transparent)

	alpha.AsBlock().HandleCameraMoveEnd(ms3.Vec{Z: 10})
	assert.Equal(t, []uint32{3, 4, 5, 0, 1, 2}, m.Geometry().Indices())
	alpha.AsBlock().HandleCameraMoveEnd(ms3.Vec{Z: -10})
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, m.Geometry().Indices())

	// Camera moves are forwarded from the parent.
	b.HandleCameraMoveEnd(ms3.Vec{Z: 10})
	assert.Equal(t, []uint32{3, 4, 5, 0, 1, 2}, m.Geometry().Indices())
	assert.Equal(t, ms3.Vec{Z: 10}, alpha.AsBlock().LastCameraPosition())
}

func TestAlphaSortingTransformed(t *testing.T) {
	vertices := []ms3.Vec{
		{Z: 1}, {X: 1, Z: 1}, {Y: 1, Z: 1},
		{}, {X: 1}, {Y: 1},
	}
	data := []*gany.Data{{Name: "alpha", Components: []gany.Component{{Name: "a", Array: []float32{1, 1, 1, 0.5, 0.5, 0.5}}}}}
	b, err := gany.NewPolyMesh(vertices, nil, data)
	require.NoError(t, err)
	alpha, err := gany.NewAlpha(b, input(t, b, "alpha"))
	require.NoError(t, err)
	m := alpha.AsBlock().Meshes()[0]

	// World triangles at z=-19 and z=-20, the camera sits above both.
	b.SetPosition(ms3.Vec{Z: -20})
	b.HandleCameraMoveEnd(ms3.Vec{Z: -10})
	assert.Equal(t, []uint32{3, 4, 5, 0, 1, 2}, m.Geometry().Indices())
	b.HandleCameraMoveEnd(ms3.Vec{Z: -30})
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, m.Geometry().Indices())

	// Scaling by -1 flips the triangle order without a camera move.
	b.SetPosition(ms3.Vec{})
	b.SetScale(ms3.Vec{X: 1, Y: 1, Z: -1})
	assert.Equal(t, []uint32{3, 4, 5, 0, 1, 2}, m.Geometry().Indices())
}

func TestIsoColorSetters(t *testing.T) {
	b := quad(t, 1, 10, 100, 1000)
	iso, err := gany.NewIsoColor(b, input(t, b, "field"), 1, 1000, gany.IsoColorConfig{ColorMap: "Magma"})
	require.NoError(t, err)
	m := iso.AsBlock().Meshes()[0]
	prog := m.Program()
	var changed int
	iso.ColorBarChanged.Subscribe(func(*gany.IsoColor) { changed++ })

	require.NoError(t, iso.SetMin(10))
	require.NoError(t, iso.SetMax(100))
	require.NoError(t, iso.SetColorMap("Viridis"))
	assert.Equal(t, 3, changed)
	assert.Same(t, prog, m.Program(), "live setters must not rebuild")
	assert.Equal(t, float32(10), iso.Min())
	assert.Equal(t, "Viridis", iso.ColorMap())
	assert.Error(t, iso.SetColorMap("NotAColorMap"))

	require.NoError(t, iso.SetScaleType(colormap.ScaleLog))
	assert.Equal(t, 4, changed)
	assert.Equal(t, "ganyIsoColorLog", iso.Call().Def().Name())
	assert.NotSame(t, prog, m.Program())
	assert.Contains(t, string(m.Program().Fragment), "ganyIsoColorLog(")

	e, err := gleval.NewEvaluator(b.Geometry(), gleval.Config{})
	require.NoError(t, err)
	_, err = e.EvaluateVec3(iso.Call())
	require.NoError(t, err)
	for i, want := range []float32{-1, 0, 1, 2} {
		assert.InDelta(t, want, e.Lookups()[i].Coord[0], 1e-5)
	}
	bounds := iso.ColorBar().Bounds()
	assert.Equal(t, colormap.ColorBarWidth, bounds.Dx())
}

func TestSetTriangleIndicesNonIndexed(t *testing.T) {
	b := quad(t)
	require.NoError(t, b.SetTriangleIndices(nil))
	g := b.Geometry()
	assert.Nil(t, g.Indices())
	assert.Equal(t, 6, g.NumVertices())
	assert.Equal(t, ms3.Vec{Y: 1}, g.Position(5))
	assert.Equal(t, []float32{0, 0.25, 0.5, 0, 0.5, 1}, b.Data()[0].Components[0].Array)
	data, ncomp, ok := g.Attribute("field_value")
	require.True(t, ok)
	assert.Equal(t, 1, ncomp)
	assert.Len(t, data, 6)
}

func TestTetraMesh(t *testing.T) {
	vertices := []ms3.Vec{{}, {X: 1}, {Y: 1}, {Z: 1}, {X: 1, Y: 1, Z: 1}}
	// Two tetrahedra sharing face 1,2,3.
	tetra := []uint32{0, 1, 2, 3, 4, 1, 3, 2}
	b, err := gany.NewTetraMesh(vertices, nil, tetra, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, b.Geometry().NumTriangles())
	assert.Equal(t, tetra, b.TetrahedronIndices())

	_, err = gany.NewTetraMesh(vertices, nil, []uint32{0, 1, 2}, nil)
	assert.Error(t, err)
	_, err = gany.NewTetraMesh(vertices, nil, []uint32{0, 1, 2, 9}, nil)
	assert.Error(t, err)
}

func TestPointCloud(t *testing.T) {
	data := []*gany.Data{{Name: "d", Components: []gany.Component{{Name: "v", Array: []float32{1, 2}}}}}
	b, err := gany.NewPointCloud([]ms3.Vec{{}, {X: 1}}, data)
	require.NoError(t, err)
	m := b.Meshes()[0]
	assert.True(t, m.Material().Points)
	assert.Error(t, b.SetTriangleIndices([]uint32{0, 1, 1}))
	iso, err := gany.NewIsoColor(b, input(t, b, "d"), 1, 2, gany.IsoColorConfig{})
	require.NoError(t, err)
	assert.True(t, iso.AsBlock().Meshes()[0].Material().Points)
}

func TestBlockTransform(t *testing.T) {
	b := quad(t)
	w, err := gany.NewWarpByScalar(b, input(t, b, "field"), 1)
	require.NoError(t, err)
	var transforms int
	w.AsBlock().TransformChanged.Subscribe(func(*gany.Block) { transforms++ })
	b.SetPosition(ms3.Vec{X: 1})
	b.SetScale(ms3.Vec{X: 2, Y: 2, Z: 2})
	assert.Equal(t, 2, transforms)
	assert.Equal(t, b.ModelMatrix(), w.AsBlock().Meshes()[0].Model())
	s := w.AsBlock().BoundingSphere()
	// The translation is scaled too.
	assert.InDelta(t, 3, s.Center.X, 1e-5)
	assert.InDelta(t, 1, s.Center.Y, 1e-5)
}

func TestSignalUnsubscribe(t *testing.T) {
	var s gany.Signal[int]
	var got []int
	unsubA := s.Subscribe(func(v int) { got = append(got, v) })
	s.Subscribe(func(v int) { got = append(got, 10*v) })
	s.Publish(1)
	unsubA()
	unsubA()
	s.Publish(2)
	assert.Equal(t, []int{1, 10, 20}, got)
	assert.Equal(t, 1, s.Listeners())
}

func TestSignalUnsubscribeDuringPublish(t *testing.T) {
	var s gany.Signal[int]
	calls := make([]int, 4)
	var unsubs [4]func()
	for i := range unsubs {
		i := i
		unsubs[i] = s.Subscribe(func(int) {
			calls[i]++
			if i == 1 {
				// Removing itself and a listener already called.
				unsubs[1]()
				unsubs[0]()
			}
		})
	}
	s.Publish(1)
	assert.Equal(t, []int{1, 1, 1, 1}, calls)
	assert.Equal(t, 2, s.Listeners())
	s.Publish(2)
	assert.Equal(t, []int{1, 1, 2, 2}, calls)

	// A listener removed before it is reached is skipped.
	var late []int
	var unsubLate func()
	s.Subscribe(func(v int) { unsubLate() })
	unsubLate = s.Subscribe(func(v int) { late = append(late, v) })
	s.Publish(3)
	assert.Empty(t, late)
	assert.Equal(t, []int{1, 1, 3, 3}, calls)
}

func TestSceneHookOrder(t *testing.T) {
	scene := gany.NewScene()
	var order []int
	errHook := errors.New("hook failed")
	for i := 0; i < 3; i++ {
		b := quad(t)
		i := i
		b.SetBeforeRender(func(r glrender.Renderer, f glrender.Frame) error {
			order = append(order, i)
			assert.Same(t, scene, f.Scene)
			if i == 1 {
				return errHook
			}
			return nil
		})
		require.NoError(t, scene.AddBlock(b))
	}
	assert.Error(t, scene.AddBlock(scene.Blocks()[0]))
	rec := glrender.NewRecorder(64, 64)
	cam := glrender.NewPerspectiveCamera(1, ms3.Vec{Z: 5})
	err := scene.Render(rec, cam)
	assert.ErrorIs(t, err, errHook)
	assert.Equal(t, []int{0, 1}, order)
	assert.Empty(t, rec.Commands(), "main draw must not run after a hook error")

	scene.Blocks()[1].AsBlock().SetBeforeRender(nil)
	order = order[:0]
	require.NoError(t, scene.Render(rec, cam))
	assert.Equal(t, []int{0, 2}, order)
	cmds := rec.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, glrender.CmdDraw, cmds[1].Kind)
	assert.Len(t, cmds[1].Items, 3)

	scene.Dispose()
	assert.Empty(t, scene.Blocks())
}
