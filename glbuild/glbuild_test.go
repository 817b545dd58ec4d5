package glbuild_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/soypat/gany/glbuild"
	"github.com/soypat/geometry/ms3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twiceSrc = "float twice(float x){ return 2.*x; }"

func TestFunctionDeduplication(t *testing.T) {
	// d1 and d2 are identical in name and body but distinct definitions.
	d1 := glbuild.MustFuncDef([]byte(twiceSrc))
	d2 := glbuild.MustFuncDef([]byte(twiceSrc))
	data, err := glbuild.NewAttribute("data", glbuild.TypeFloat)
	require.NoError(t, err)
	c1, err := glbuild.NewCall(d1, data)
	require.NoError(t, err)
	c1b, err := glbuild.NewCall(d1, glbuild.LitFloat(3))
	require.NoError(t, err)
	c2, err := glbuild.NewCall(d2, data)
	require.NoError(t, err)
	decl := "float twice(float x)"
	for _, pair := range [][2]glbuild.Node{{c1, c1b}, {c1, c2}} {
		sum, err := glbuild.NewBinary(glbuild.OpAdd, pair[0], pair[1])
		require.NoError(t, err)
		color, err := glbuild.NewConstruct(glbuild.TypeVec3, sum)
		require.NoError(t, err)
		prog, err := glbuild.NewDefaultProgrammer().Compile(glbuild.MaterialGraph{Color: color})
		require.NoError(t, err)
		src := string(prog.Fragment)
		if count := strings.Count(src, decl); count != 1 {
			t.Errorf("\n%s\nwant one declaration, got %d", src, count)
		}
		assert.Zero(t, strings.Count(string(prog.Vertex), decl), "function only used in fragment stage")
	}
}

func TestFunctionNameConflict(t *testing.T) {
	d1 := glbuild.MustFuncDef([]byte(twiceSrc))
	d2 := glbuild.MustFuncDef([]byte("float twice(float x){ return x+x; }"))
	c1, err := glbuild.NewCall(d1, glbuild.LitFloat(1))
	require.NoError(t, err)
	c2, err := glbuild.NewCall(d2, glbuild.LitFloat(1))
	require.NoError(t, err)
	alpha, err := glbuild.NewBinary(glbuild.OpMul, c1, c2)
	require.NoError(t, err)
	_, err = glbuild.NewDefaultProgrammer().Compile(glbuild.MaterialGraph{Alpha: alpha})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate function name")
}

func TestCallArgumentMismatch(t *testing.T) {
	def := glbuild.MustFuncDef([]byte("vec3 tint(vec3 c, float f){ return c*f; }"))
	_, err := glbuild.NewCall(def, glbuild.LitFloat(1))
	assert.True(t, errors.Is(err, glbuild.ErrArgCount), err)
	_, err = glbuild.NewCall(def, glbuild.LitFloat(1), glbuild.LitFloat(1))
	assert.True(t, errors.Is(err, glbuild.ErrArgType), err)
	call, err := glbuild.NewCall(def, glbuild.LitVec3(ms3.Vec{X: 1}), glbuild.LitFloat(1))
	require.NoError(t, err)
	err = call.SetArgs(glbuild.LitVec3(ms3.Vec{}))
	assert.True(t, errors.Is(err, glbuild.ErrArgCount), err)
	// Failed edits leave the call untouched.
	assert.Len(t, call.Args(), 2)
}

func TestRefCycle(t *testing.T) {
	ref := glbuild.NewRef(glbuild.LitFloat(1))
	sum, err := glbuild.NewBinary(glbuild.OpAdd, ref, glbuild.LitFloat(2))
	require.NoError(t, err)
	err = ref.Set(sum)
	assert.True(t, errors.Is(err, glbuild.ErrCycle), err)
	assert.NoError(t, glbuild.CheckAcyclic(sum))

	err = ref.Set(glbuild.LitVec3(ms3.Vec{}))
	assert.True(t, errors.Is(err, glbuild.ErrTypeMismatch), err)

	def := glbuild.MustFuncDef([]byte(twiceSrc))
	call, err := glbuild.NewCall(def, glbuild.LitFloat(1))
	require.NoError(t, err)
	wrap, err := glbuild.NewUnary(glbuild.UnaryAbs, call)
	require.NoError(t, err)
	err = call.SetArgs(wrap)
	assert.True(t, errors.Is(err, glbuild.ErrCycle), err)
}

func TestCompileIdempotent(t *testing.T) {
	scale := glbuild.NewUniform(glbuild.Float(0.5))
	offset, err := glbuild.NewBinary(glbuild.OpMul, scale, glbuild.Normal())
	require.NoError(t, err)
	transform, err := glbuild.NewBinary(glbuild.OpAdd, glbuild.Position(), offset)
	require.NoError(t, err)
	g := glbuild.MaterialGraph{Kind: glbuild.MaterialStandard, Transform: transform, Color: glbuild.WorldNormal()}
	programmer := glbuild.NewDefaultProgrammer()
	p1, err := programmer.Compile(g)
	require.NoError(t, err)
	// Live patching a uniform does not change sources.
	require.NoError(t, scale.SetFloat(2))
	p2, err := programmer.Compile(g)
	require.NoError(t, err)
	assert.True(t, p1.Equal(p2), "\n%s\n%s", p1.Vertex, p2.Vertex)
	assert.Equal(t, "u1", p2.UniformName(scale))
	assert.Same(t, scale, p2.Uniform("u1"))
	require.Len(t, p2.Attributes, 2)
	assert.Equal(t, "position", p2.Attributes[0].Name)
	assert.Equal(t, "normal", p2.Attributes[1].Name)

	err = scale.Set(glbuild.Vec3(ms3.Vec{}))
	assert.True(t, errors.Is(err, glbuild.ErrTypeMismatch), err)
}

func TestCompileStableNames(t *testing.T) {
	// build returns an equal graph made of new nodes on every call.
	build := func() (glbuild.MaterialGraph, *glbuild.Uniform, *glbuild.Uniform) {
		amp := glbuild.NewUniform(glbuild.Float(1))
		tint := glbuild.NewUniform(glbuild.Vec3(ms3.Vec{X: 1}))
		fixed, err := glbuild.NewNamedUniform("u1", glbuild.Float(2))
		require.NoError(t, err)
		var bld glbuild.Builder
		transform := bld.Add(glbuild.Position(), bld.Mul(glbuild.Normal(), bld.Mul(amp, fixed)))
		color := bld.Mul(tint, fixed)
		require.NoError(t, bld.Err())
		return glbuild.MaterialGraph{Transform: transform, Color: color}, amp, tint
	}
	g1, amp1, tint1 := build()
	p1, err := glbuild.NewDefaultProgrammer().Compile(g1)
	require.NoError(t, err)
	// Nodes created in between shift the generated names.
	for i := 0; i < 11; i++ {
		glbuild.NewUniform(glbuild.Float(0))
		glbuild.NewVarying(glbuild.TypeFloat)
	}
	g2, amp2, tint2 := build()
	p2, err := glbuild.NewDefaultProgrammer().Compile(g2)
	require.NoError(t, err)
	require.NotEqual(t, amp1.Name(), amp2.Name())
	assert.True(t, p1.Equal(p2), "\n%s\n%s", p1.Vertex, p2.Vertex)
	assert.Equal(t, string(p1.Fragment), string(p2.Fragment))

	// First use order; the fixed name is not reused.
	assert.Equal(t, "u2", p2.UniformName(amp2))
	assert.Equal(t, "u3", p2.UniformName(tint2))
	assert.Equal(t, p1.UniformName(tint1), p2.UniformName(tint2))
	assert.Equal(t, p1.UniformName(amp1), p2.UniformName(amp2))
	assert.Same(t, tint2, p2.Uniform("u3"))
	assert.Empty(t, p1.UniformName(amp2))
	require.Len(t, p2.Uniforms, 3)
	assert.Equal(t, "u1", p2.Uniforms[0].Name())
	assert.Same(t, amp2, p2.Uniforms[1])
	assert.Same(t, tint2, p2.Uniforms[2])
	vert := string(p2.Vertex)
	assert.Contains(t, vert, "uniform float u1;\nuniform float u2;\nuniform vec3 u3;\n")
	assert.NotContains(t, vert, amp2.Name())
}

func TestAttributeForwarding(t *testing.T) {
	data, err := glbuild.NewAttribute("data", glbuild.TypeFloat)
	require.NoError(t, err)
	color, err := glbuild.NewConstruct(glbuild.TypeVec3, data)
	require.NoError(t, err)
	prog, err := glbuild.NewDefaultProgrammer().Compile(glbuild.MaterialGraph{Color: color})
	require.NoError(t, err)
	vert, frag := string(prog.Vertex), string(prog.Fragment)
	assert.Contains(t, vert, "in float data;\n")
	assert.Contains(t, vert, "out float v_data;\n")
	assert.Contains(t, vert, "\tv_data = data;\n")
	assert.Contains(t, frag, "in float v_data;\n")
	assert.Contains(t, frag, "vec3 color = vec3(v_data);")
	assert.NotContains(t, frag, "in float data;")
}

func TestKeywordBinding(t *testing.T) {
	def := glbuild.MustFuncDef([]byte("void store(vec3 p){ stored = p; }"))
	stored := glbuild.NewVarying(glbuild.TypeVec3)
	require.NoError(t, def.SetKeyword("stored", stored))
	assert.Error(t, def.SetKeyword("missing", stored))
	assert.Error(t, def.SetKeyword("stored", glbuild.LitFloat(1)))
	call, err := glbuild.NewCall(def, glbuild.Position())
	require.NoError(t, err)
	prog, err := glbuild.NewDefaultProgrammer().Compile(glbuild.MaterialGraph{
		VertexExprs: []glbuild.Node{call},
		Color:       stored,
	})
	require.NoError(t, err)
	vert, frag := string(prog.Vertex), string(prog.Fragment)
	require.Equal(t, "vy1", prog.VaryingName(stored))
	assert.Contains(t, vert, "#define stored vy1\n")
	assert.Contains(t, vert, "#undef stored\n")
	assert.Contains(t, vert, "out vec3 vy1;\n")
	assert.Contains(t, vert, "\tstore(position);\n")
	assert.Contains(t, frag, "in vec3 vy1;\n")
	assert.NotContains(t, frag, "void store(")
}

func TestSlotTypes(t *testing.T) {
	programmer := glbuild.NewDefaultProgrammer()
	_, err := programmer.Compile(glbuild.MaterialGraph{Color: glbuild.LitFloat(1)})
	assert.Error(t, err)
	_, err = programmer.Compile(glbuild.MaterialGraph{Alpha: glbuild.LitVec3(ms3.Vec{})})
	assert.Error(t, err)
	_, err = glbuild.NewBinary(glbuild.OpAdd, glbuild.LitVec2(1, 1), glbuild.LitVec3(ms3.Vec{}))
	assert.True(t, errors.Is(err, glbuild.ErrTypeMismatch), err)
	// Named uniforms must not clash with names every program declares.
	u, err := glbuild.NewNamedUniform("modelMatrix", glbuild.Float(1))
	require.NoError(t, err)
	_, err = programmer.Compile(glbuild.MaterialGraph{Alpha: u})
	assert.Error(t, err)
}

func TestBuilderAccumulate(t *testing.T) {
	bld := glbuild.Builder{NoPanic: true}
	bad := bld.Add(glbuild.LitVec2(1, 1), glbuild.LitVec3(ms3.Vec{}))
	assert.Nil(t, bad)
	// Operations on failed nodes do not record further errors.
	assert.Nil(t, bld.Mul(bad, glbuild.LitFloat(2)))
	err := bld.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, glbuild.ErrTypeMismatch))
	assert.Equal(t, 1, strings.Count(err.Error(), "\n")+1)

	var ok glbuild.Builder
	n := ok.Mul(glbuild.LitFloat(2), glbuild.Normal())
	require.NoError(t, ok.Err())
	assert.Equal(t, glbuild.TypeVec3, n.Type())
	assert.Panics(t, func() { ok.Construct(glbuild.TypeVec3, glbuild.LitVec2(1, 2)) })
}

func TestAppendFloat(t *testing.T) {
	for _, test := range []struct {
		v    float32
		want string
	}{
		{1, "1."},
		{0.5, "0.5"},
		{-2.25, "-2.25"},
	} {
		got := string(glbuild.AppendFloat(nil, '-', '.', test.v))
		assert.Equal(t, test.want, got)
	}
	lit := glbuild.LitFloat(-1)
	assert.Equal(t, "(-1.)", string(lit.AppendExpr(nil, glbuild.StageVertex)))
}

func TestCompileCompute(t *testing.T) {
	data, err := glbuild.NewAttribute("data", glbuild.TypeFloat)
	require.NoError(t, err)
	twice := glbuild.MustFuncDef([]byte(twiceSrc))
	scale := glbuild.NewUniform(glbuild.Float(3))
	var bld glbuild.Builder
	call := bld.Call(twice, data)
	root := bld.Add(glbuild.Position(), bld.Mul(call, scale))
	require.NoError(t, bld.Err())

	prog, err := glbuild.NewDefaultProgrammer().CompileCompute(root, 32)
	require.NoError(t, err)
	assert.Equal(t, glbuild.TypeVec3, prog.Result)
	require.Len(t, prog.Attributes, 2)
	assert.Equal(t, "position", prog.Attributes[0].Name)
	assert.Equal(t, "data", prog.Attributes[1].Name)
	assert.Equal(t, 2, prog.ResultBinding)
	assert.Equal(t, []*glbuild.Uniform{scale}, prog.Uniforms)
	assert.Equal(t, "u1", prog.UniformName(scale))
	src := string(prog.Source)
	for _, want := range []string{
		"layout(local_size_x = 32",
		"binding = 0) readonly buffer ssbo_position",
		"binding = 1) readonly buffer ssbo_data",
		"binding = 2) writeonly buffer ssbo_result",
		"position = vec3(a_position[3*gid],a_position[3*gid+1],a_position[3*gid+2]);",
		"data = a_data[gid];",
		"result[3*gid+2] = r[2];",
		"uniform float u1;",
		twiceSrc,
	} {
		assert.Contains(t, src, want)
	}

	_, err = glbuild.NewDefaultProgrammer().CompileCompute(root, 0)
	assert.Error(t, err)
	sampler := glbuild.NewUniform(glbuild.Texture2D(nil))
	texel := bld.Sample(sampler, bld.Swizzle(glbuild.Position(), "xy"))
	require.NoError(t, bld.Err())
	_, err = glbuild.NewDefaultProgrammer().CompileCompute(texel, 32)
	assert.ErrorContains(t, err, "not evaluable in compute")
}
