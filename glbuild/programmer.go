package glbuild

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
)

// MaterialKind selects the lighting applied to a material's color slot.
type MaterialKind uint8

const (
	// MaterialBasic writes the color slot unlit.
	MaterialBasic MaterialKind = iota
	// MaterialStandard shades the color slot with a camera headlight.
	MaterialStandard
)

func (k MaterialKind) String() string {
	if k == MaterialBasic {
		return "basic"
	}
	return "standard"
}

// MaterialGraph holds the root expressions of a material. Nil slots take default values:
// untransformed position, white color and opaque alpha.
type MaterialGraph struct {
	Kind MaterialKind
	// Transform is the object space vertex position (vec3), written in the vertex stage.
	Transform Node
	// Color is the fragment color (vec3).
	Color Node
	// Alpha is the fragment opacity (float).
	Alpha Node
	// VertexExprs are evaluated for their side effects (i.e. writing varyings) in the vertex stage.
	VertexExprs []Node
	// FragmentExprs are evaluated for their side effects in the fragment stage.
	FragmentExprs []Node
}

// AttributeInfo describes a per-vertex attribute read by a [Program].
type AttributeInfo struct {
	Name string
	Type Type
}

// Program is a compiled material: a vertex and fragment shader pair plus the
// live uniforms and attributes they read.
type Program struct {
	// Vertex and Fragment sources are not NUL terminated.
	Vertex   []byte
	Fragment []byte
	Kind     MaterialKind
	// Uniforms in declaration order. Builtin uniforms are not included.
	Uniforms []*Uniform
	// Attributes sorted by name, position first.
	Attributes []AttributeInfo
	// Functions written to either stage, in declaration order.
	Functions []*FuncDef

	names programNames
}

// programNames holds the GLSL names a program declares its uniforms and varyings with.
type programNames struct {
	uniforms map[*Uniform]string
	varyings map[*Varying]string
}

func (pn *programNames) fill(ln *localNames, uniforms map[string]*Uniform, varyings map[*Varying]struct{}) {
	pn.uniforms = make(map[*Uniform]string, len(uniforms))
	for name, u := range uniforms {
		pn.uniforms[u] = ln.name(name)
	}
	pn.varyings = make(map[*Varying]string, len(varyings))
	for v := range varyings {
		pn.varyings[v] = ln.name(v.name)
	}
}

// Uniform returns the program's uniform declared as name or nil.
func (p *Program) Uniform(name string) *Uniform {
	for _, u := range p.Uniforms {
		if p.names.uniforms[u] == name {
			return u
		}
	}
	return nil
}

// UniformName returns the name u is declared with in the program's sources
// or the empty string if the program does not read u.
func (p *Program) UniformName(u *Uniform) string { return p.names.uniforms[u] }

// VaryingName returns the name v is declared with in the program's sources
// or the empty string if the program does not use v.
func (p *Program) VaryingName(v *Varying) string { return p.names.varyings[v] }

// Equal returns true if both programs have identical sources.
func (p *Program) Equal(other *Program) bool {
	return p.Kind == other.Kind && bytes.Equal(p.Vertex, other.Vertex) && bytes.Equal(p.Fragment, other.Fragment)
}

// Programmer implements shader generation logic for [MaterialGraph] type.
type Programmer struct {
	scratch []byte
	objs    []ShaderObject
	nodes   []Node
	// names maps declaration names to body hashes for checking duplicates.
	names map[uint64]uint64
	// Per compilation state.
	uniforms map[string]*Uniform
	attrs    map[string]Type
	varyings map[string]Type
	forwards map[string]Node
	funcs    [2][]*FuncDef
	seenFn   [2]map[*FuncDef]struct{}
	varNodes map[*Varying]struct{}
	local    localNames
}

// NewDefaultProgrammer returns a Programmer ready to compile materials.
func NewDefaultProgrammer() *Programmer {
	return &Programmer{
		scratch:  make([]byte, 0, 1024),
		names:    make(map[uint64]uint64),
		uniforms: make(map[string]*Uniform),
		attrs:    make(map[string]Type),
		varyings: make(map[string]Type),
		forwards: make(map[string]Node),
		varNodes: make(map[*Varying]struct{}),
		seenFn:   [2]map[*FuncDef]struct{}{make(map[*FuncDef]struct{}), make(map[*FuncDef]struct{})},
	}
}

var builtinUniformDecl = []byte(`uniform mat4 modelMatrix;
uniform mat4 viewMatrix;
uniform mat4 projectionMatrix;
uniform mat4 modelViewMatrix;
uniform mat3 normalMatrix;
uniform vec3 cameraPosition;
`)

// IsBuiltinUniform returns true for uniforms every program declares and renderers set per draw.
func IsBuiltinUniform(name string) bool {
	switch name {
	case "modelMatrix", "viewMatrix", "projectionMatrix", "modelViewMatrix", "normalMatrix", "cameraPosition":
		return true
	}
	return false
}

func (p *Programmer) reset() {
	clear(p.names)
	clear(p.uniforms)
	clear(p.attrs)
	clear(p.varyings)
	clear(p.forwards)
	clear(p.varNodes)
	p.local.reset()
	for i := range p.funcs {
		p.funcs[i] = p.funcs[i][:0]
		clear(p.seenFn[i])
	}
}

// Compile generates the vertex and fragment sources of g. Compilation is deterministic:
// compiling the same graph twice yields programs with identical sources, also when
// the graphs are rebuilt from new nodes. Automatically named uniforms and varyings are
// declared under names numbered in first use order, see [Program.UniformName].
func (p *Programmer) Compile(g MaterialGraph) (*Program, error) {
	p.reset()
	if g.Transform == nil {
		g.Transform = Position()
	}
	if g.Color == nil {
		g.Color = LitVec3(ms3One)
	}
	if g.Alpha == nil {
		g.Alpha = LitFloat(1)
	}
	switch {
	case g.Transform.Type() != TypeVec3:
		return nil, fmt.Errorf("transform slot must be vec3, got %s", g.Transform.Type())
	case g.Color.Type() != TypeVec3:
		return nil, fmt.Errorf("color slot must be vec3, got %s", g.Color.Type())
	case g.Alpha.Type() != TypeFloat:
		return nil, fmt.Errorf("alpha slot must be float, got %s", g.Alpha.Type())
	}
	// Position is always read to place vertices.
	p.attrs["position"] = TypeVec3
	vertexRoots := append([]Node{g.Transform}, g.VertexExprs...)
	fragRoots := append([]Node{g.Color, g.Alpha}, g.FragmentExprs...)
	if g.Kind == MaterialStandard {
		fragRoots = append(fragRoots, worldNormal, worldPosition)
	}
	for _, root := range vertexRoots {
		err := p.collect(root, StageVertex)
		if err != nil {
			return nil, err
		}
	}
	for _, root := range fragRoots {
		err := p.collect(root, StageFragment)
		if err != nil {
			return nil, err
		}
	}
	for _, name := range sortedKeys(p.forwards) {
		// Forwarded values are computed in the vertex stage.
		if p.varyings[name] != 0 {
			return nil, fmt.Errorf("varying %q conflicts with forwarded attribute", name)
		}
		err := p.collect(p.forwards[name], StageVertex)
		if err != nil {
			return nil, err
		}
	}

	prog := &Program{Kind: g.Kind}
	prog.Vertex = p.appendVertex(nil, g)
	prog.Fragment = p.appendFragment(nil, g)
	p.local.assign(prog.Vertex, prog.Fragment)
	prog.Vertex = p.local.rename(prog.Vertex)
	prog.Fragment = p.local.rename(prog.Fragment)
	prog.names.fill(&p.local, p.uniforms, p.varNodes)
	prog.Uniforms = p.appendUniforms(nil)
	prog.Attributes = p.appendAttributes(nil)
	seen := make(map[*FuncDef]struct{})
	for _, stageFuncs := range p.funcs {
		for _, fn := range stageFuncs {
			if _, ok := seen[fn]; !ok {
				seen[fn] = struct{}{}
				prog.Functions = append(prog.Functions, fn)
			}
		}
	}
	return prog, nil
}

func (p *Programmer) collect(root Node, st Stage) (err error) {
	if root == nil {
		return errors.New("nil root node")
	}
	p.nodes, err = AppendAllNodes(p.nodes[:0], root)
	if err != nil {
		return err
	}
	for _, node := range p.nodes {
		if st == StageFragment {
			if name, ok := ForwardName(node); ok {
				p.forwards[name] = node
			}
		}
		p.objs = node.AppendShaderObjects(p.objs[:0])
		// Copy since addObject may reuse the objects scratch.
		objs := append([]ShaderObject(nil), p.objs...)
		for _, obj := range objs {
			err = p.addObject(obj, st, node)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Programmer) addObject(obj ShaderObject, st Stage, node Node) error {
	err := obj.Validate()
	if err != nil {
		return fmt.Errorf("%T: %w", node, err)
	}
	if IsBuiltinUniform(obj.Name) {
		return fmt.Errorf("%T declares %s with builtin name %q", node, obj.Type, obj.Name)
	}
	switch obj.Kind {
	case ObjUniform:
		got, ok := p.uniforms[obj.Name]
		if ok && got != obj.uniform {
			return fmt.Errorf("uniform name conflict %q: distinct uniforms share the name", obj.Name)
		}
		p.uniforms[obj.Name] = obj.uniform
		p.local.visit(obj)
	case ObjAttribute:
		got, ok := p.attrs[obj.Name]
		if ok && got != obj.Type {
			return fmt.Errorf("attribute %q declared as %s and %s", obj.Name, got, obj.Type)
		}
		p.attrs[obj.Name] = obj.Type
	case ObjVarying:
		got, ok := p.varyings[obj.Name]
		if ok && got != obj.Type {
			return fmt.Errorf("varying %q declared as %s and %s", obj.Name, got, obj.Type)
		}
		p.varyings[obj.Name] = obj.Type
		if obj.varying != nil {
			p.varNodes[obj.varying] = struct{}{}
		}
		p.local.visit(obj)
	case ObjFunction:
		return p.addFunction(obj.fn, st, 0)
	}
	return nil
}

const maxFuncDepth = 16

func (p *Programmer) addFunction(fn *FuncDef, st Stage, depth int) error {
	if depth > maxFuncDepth {
		return fmt.Errorf("function %s: dependency chain too deep or cyclic", fn.name)
	}
	if _, ok := p.seenFn[st][fn]; ok {
		return nil
	}
	for _, dep := range fn.deps {
		err := p.addFunction(dep, st, depth+1)
		if err != nil {
			return err
		}
	}
	p.objs = fn.appendKeywordObjects(p.objs[:0])
	kwObjs := append([]ShaderObject(nil), p.objs...)
	for _, obj := range kwObjs {
		err := p.addObject(obj, st, nil)
		if err != nil {
			return fmt.Errorf("function %s keyword: %w", fn.name, err)
		}
	}
	// Distinct definitions with identical source are written once. Definitions
	// that share a name but differ in source or keyword bindings are a conflict.
	p.scratch = fn.AppendSource(p.scratch[:0])
	nameHash := hash([]byte(fn.name), uint64(st)+1)
	bodyHash := hash(p.scratch, nameHash)
	gotBodyHash, nameConflict := p.names[nameHash]
	p.seenFn[st][fn] = struct{}{}
	if nameConflict {
		if gotBodyHash == bodyHash {
			return nil
		}
		return fmt.Errorf("duplicate function name %q with distinct definition:\n%s", fn.name, p.scratch)
	}
	p.names[nameHash] = bodyHash
	p.funcs[st] = append(p.funcs[st], fn)
	return nil
}

func (p *Programmer) appendAttributes(dst []AttributeInfo) []AttributeInfo {
	start := len(dst)
	for name, t := range p.attrs {
		dst = append(dst, AttributeInfo{Name: name, Type: t})
	}
	attrs := dst[start:]
	sort.Slice(attrs, func(i, j int) bool {
		if attrs[i].Name == "position" || attrs[j].Name == "position" {
			return attrs[i].Name == "position"
		}
		return attrs[i].Name < attrs[j].Name
	})
	return dst
}

// appendUniforms appends the collected uniforms in declaration order.
func (p *Programmer) appendUniforms(dst []*Uniform) []*Uniform {
	for _, name := range p.declOrder(p.uniforms) {
		dst = append(dst, p.uniforms[name])
	}
	return dst
}

func (p *Programmer) declOrder(m map[string]*Uniform) []string {
	names := sortedKeys(m)
	p.local.sortDecls(names)
	return names
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p *Programmer) appendDecls(b []byte, st Stage) []byte {
	b = append(b, VersionStr...)
	b = append(b, builtinUniformDecl...)
	for _, name := range p.declOrder(p.uniforms) {
		b = appendDecl(b, "uniform ", p.uniforms[name].val.Type, name)
	}
	if st == StageVertex {
		for _, attr := range p.appendAttributes(nil) {
			b = appendDecl(b, "in ", attr.Type, attr.Name)
		}
	}
	qualifier := "out "
	if st == StageFragment {
		qualifier = "in "
	}
	varyings := sortedKeys(p.varyings)
	p.local.sortDecls(varyings)
	for _, name := range varyings {
		b = appendDecl(b, qualifier, p.varyings[name], name)
	}
	for _, name := range sortedKeys(p.forwards) {
		b = appendDecl(b, qualifier, p.forwards[name].Type(), name)
	}
	if st == StageFragment {
		b = append(b, "out vec4 fragColor;\n"...)
	}
	for _, fn := range p.funcs[st] {
		b = fn.AppendSource(b)
	}
	return b
}

func appendDecl(b []byte, qualifier string, t Type, name string) []byte {
	b = append(b, qualifier...)
	b = append(b, t.String()...)
	b = append(b, ' ')
	b = append(b, name...)
	return append(b, ";\n"...)
}

func appendStatement(b []byte, n Node, st Stage) []byte {
	b = append(b, '\t')
	b = n.AppendExpr(b, st)
	return append(b, ";\n"...)
}

func (p *Programmer) appendVertex(b []byte, g MaterialGraph) []byte {
	b = p.appendDecls(b, StageVertex)
	b = append(b, "void main() {\n"...)
	for _, expr := range g.VertexExprs {
		b = appendStatement(b, expr, StageVertex)
	}
	b = append(b, "\tvec3 transformed = "...)
	b = g.Transform.AppendExpr(b, StageVertex)
	b = append(b, ";\n"...)
	for _, name := range sortedKeys(p.forwards) {
		b = append(b, '\t')
		b = append(b, name...)
		b = append(b, " = "...)
		b = p.forwards[name].AppendExpr(b, StageVertex)
		b = append(b, ";\n"...)
	}
	b = append(b, "\tgl_Position = projectionMatrix * modelViewMatrix * vec4(transformed, 1.);\n}\n"...)
	return b
}

func (p *Programmer) appendFragment(b []byte, g MaterialGraph) []byte {
	b = p.appendDecls(b, StageFragment)
	b = append(b, "void main() {\n"...)
	for _, expr := range g.FragmentExprs {
		b = appendStatement(b, expr, StageFragment)
	}
	b = append(b, "\tvec3 color = "...)
	b = g.Color.AppendExpr(b, StageFragment)
	b = append(b, ";\n\tfloat alpha = "...)
	b = g.Alpha.AppendExpr(b, StageFragment)
	b = append(b, ";\n"...)
	if g.Kind == MaterialStandard {
		b = append(b, `	vec3 eye = normalize(cameraPosition - v_worldPosition);
	color *= 0.4 + 0.6 * abs(dot(normalize(v_worldNormal), eye));
`...)
	}
	b = append(b, "\tfragColor = vec4(color, alpha);\n}\n"...)
	return b
}
