package glbuild

import (
	"errors"
	"fmt"
	"strconv"
)

// ComputeProgram is a compute shader evaluating a single expression once per vertex.
// Attributes are read from shader storage buffers bound in the order of
// Attributes starting at binding 0. Results are written tightly packed to the
// buffer at binding ResultBinding.
type ComputeProgram struct {
	Source        []byte
	Result        Type
	InvocX        int
	// Uniforms in declaration order.
	Uniforms      []*Uniform
	Attributes    []AttributeInfo
	ResultBinding int

	names programNames
}

// UniformName returns the name u is declared with in Source
// or the empty string if the program does not read u.
func (cp *ComputeProgram) UniformName(u *Uniform) string { return cp.names.uniforms[u] }

// NumVerticesUniform is the uint uniform holding the number of vertices evaluated by a [ComputeProgram].
const NumVerticesUniform = "numVertices"

// CompileCompute generates a compute shader that evaluates root for every vertex.
// Expressions reading varyings or sampling textures are rejected since they
// depend on the rasterization stages.
func (p *Programmer) CompileCompute(root Node, invocX int) (*ComputeProgram, error) {
	if root == nil {
		return nil, errors.New("nil root node")
	} else if invocX < 1 {
		return nil, errors.New("zero or negative invocation size")
	}
	rt := root.Type()
	if rt != TypeFloat && !rt.IsVector() {
		return nil, fmt.Errorf("compute result must be float or vector, got %s", rt)
	}
	p.reset()
	err := p.collect(root, StageVertex)
	if err != nil {
		return nil, err
	}
	if len(p.varyings) > 0 {
		return nil, fmt.Errorf("varying %q not evaluable in compute", sortedKeys(p.varyings)[0])
	}
	for name, u := range p.uniforms {
		if u.Type().IsSampler() {
			return nil, fmt.Errorf("sampler %q not evaluable in compute", name)
		}
	}
	prog := &ComputeProgram{Result: rt, InvocX: invocX}
	prog.Uniforms = p.appendUniforms(nil)
	prog.Attributes = p.appendAttributes(nil)
	prog.ResultBinding = len(prog.Attributes)
	prog.Source = p.appendCompute(nil, root, prog)
	p.local.assign(prog.Source)
	prog.Source = p.local.rename(prog.Source)
	prog.names.fill(&p.local, p.uniforms, nil)
	return prog, nil
}

func (p *Programmer) appendCompute(b []byte, root Node, prog *ComputeProgram) []byte {
	b = append(b, VersionStr...)
	b = append(b, "layout(local_size_x = "...)
	b = strconv.AppendInt(b, int64(prog.InvocX), 10)
	b = append(b, ", local_size_y = 1, local_size_z = 1) in;\n"...)
	for i, attr := range prog.Attributes {
		b = append(b, "layout(std430, binding = "...)
		b = strconv.AppendInt(b, int64(i), 10)
		b = append(b, ") readonly buffer ssbo_"...)
		b = append(b, attr.Name...)
		b = append(b, " { float a_"...)
		b = append(b, attr.Name...)
		b = append(b, "[]; };\n"...)
	}
	b = append(b, "layout(std430, binding = "...)
	b = strconv.AppendInt(b, int64(prog.ResultBinding), 10)
	b = append(b, ") writeonly buffer ssbo_result { float result[]; };\n"...)
	b = append(b, "uniform uint "+NumVerticesUniform+";\n"...)
	b = append(b, builtinUniformDecl...)
	for _, u := range prog.Uniforms {
		b = appendDecl(b, "uniform ", u.val.Type, u.name)
	}
	for _, attr := range prog.Attributes {
		b = appendDecl(b, "", attr.Type, attr.Name)
	}
	for _, fn := range p.funcs[StageVertex] {
		b = fn.AppendSource(b)
	}
	b = append(b, "void main() {\n\tuint gid = gl_GlobalInvocationID.x;\n\tif (gid >= "+NumVerticesUniform+") {\n\t\treturn;\n\t}\n"...)
	for _, attr := range prog.Attributes {
		n := attr.Type.Components()
		b = append(b, '\t')
		b = append(b, attr.Name...)
		b = append(b, " = "...)
		if n > 1 {
			b = append(b, attr.Type.String()...)
			b = append(b, '(')
		}
		for c := 0; c < n; c++ {
			if c > 0 {
				b = append(b, ',')
			}
			b = appendIndexed(b, "a_"+attr.Name, n, c)
		}
		if n > 1 {
			b = append(b, ')')
		}
		b = append(b, ";\n"...)
	}
	b = append(b, '\t')
	b = append(b, prog.Result.String()...)
	b = append(b, " r = "...)
	b = root.AppendExpr(b, StageVertex)
	b = append(b, ";\n"...)
	n := prog.Result.Components()
	for c := 0; c < n; c++ {
		b = append(b, '\t')
		b = appendIndexed(b, "result", n, c)
		b = append(b, " = r"...)
		if n > 1 {
			b = append(b, '[')
			b = strconv.AppendInt(b, int64(c), 10)
			b = append(b, ']')
		}
		b = append(b, ";\n"...)
	}
	return append(b, "}\n"...)
}

// appendIndexed appends buf[ncomp*gid+c].
func appendIndexed(b []byte, buf string, ncomp, c int) []byte {
	b = append(b, buf...)
	b = append(b, '[')
	if ncomp > 1 {
		b = strconv.AppendInt(b, int64(ncomp), 10)
		b = append(b, '*')
	}
	b = append(b, "gid"...)
	if c > 0 {
		b = append(b, '+')
		b = strconv.AppendInt(b, int64(c), 10)
	}
	return append(b, ']')
}
