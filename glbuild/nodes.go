package glbuild

import (
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/soypat/geometry/ms3"
)

var nodeIDs atomic.Uint64

var ms3One = ms3.Vec{X: 1, Y: 1, Z: 1}

func nextName(prefix string) string {
	return prefix + strconv.FormatUint(nodeIDs.Add(1), 10)
}

// perVertex is implemented by nodes only available in the vertex stage. The fragment
// stage reads them through an automatically declared varying.
type perVertex interface {
	Node
	forwardName() (string, bool)
}

// ForwardName returns the name of the varying a per-vertex node is read from in the
// fragment stage and true. If the node can be read from both stages it returns false.
func ForwardName(n Node) (string, bool) {
	pv, ok := n.(perVertex)
	if !ok {
		return "", false
	}
	return pv.forwardName()
}

//
// Literals.
//

type literal struct {
	v Value
}

// NewLiteral returns a constant node inlined in the generated source.
// Values that must change at runtime should be a [Uniform] instead.
func NewLiteral(v Value) (Node, error) {
	if v.Type == TypeVoid || v.Type.IsSampler() {
		return nil, fmt.Errorf("literal of type %s not supported", v.Type)
	}
	return &literal{v: v}, nil
}

// LitFloat returns a float literal node.
func LitFloat(f float32) Node { return &literal{v: Float(f)} }

// LitVec2 returns a vec2 literal node.
func LitVec2(x, y float32) Node { return &literal{v: Vec2(x, y)} }

// LitVec3 returns a vec3 literal node.
func LitVec3(v ms3.Vec) Node { return &literal{v: Vec3(v)} }

func (l *literal) Type() Type { return l.v.Type }

func (l *literal) AppendExpr(b []byte, st Stage) []byte {
	switch l.v.Type {
	case TypeFloat:
		if l.v.V[0] < 0 {
			b = append(b, '(')
			b = AppendFloat(b, '-', '.', l.v.V[0])
			return append(b, ')')
		}
		return AppendFloat(b, '-', '.', l.v.V[0])
	case TypeMat3, TypeMat4:
		return appendMatLiteral(b, l.v.Type, l.v.Components())
	}
	b = append(b, l.v.Type.String()...)
	b = append(b, '(')
	b = AppendFloats(b, ',', '-', '.', l.v.Components()...)
	return append(b, ')')
}

func (l *literal) ForEachChild(userData any, fn func(userData any, n *Node) error) error {
	return nil
}

func (l *literal) AppendShaderObjects(objs []ShaderObject) []ShaderObject { return objs }

// Value returns the literal's value.
func (l *literal) Value() Value { return l.v }

//
// Uniforms.
//

// Uniform is a live-patchable leaf node. Replacing its value with [Uniform.Set]
// never requires recompiling the programs that reference it.
type Uniform struct {
	name string
	val  Value
	// auto names are renamed per program in first use order.
	auto bool
}

// NewUniform returns a uniform with an automatically generated unique name.
// Programs declare it under a name local to the program, see [Program.UniformName].
func NewUniform(v Value) *Uniform {
	if v.Type == TypeVoid {
		panic("void uniform")
	}
	return &Uniform{name: nextName("u"), val: v, auto: true}
}

// NewNamedUniform returns a uniform with a fixed GLSL name.
func NewNamedUniform(name string, v Value) (*Uniform, error) {
	if !isIdent(name) {
		return nil, fmt.Errorf("invalid uniform name %q", name)
	} else if v.Type == TypeVoid {
		return nil, errors.New("void uniform")
	}
	return &Uniform{name: name, val: v}, nil
}

// Name returns the unique name of the uniform. Automatically named uniforms are
// declared by programs under a local name, see [Program.UniformName].
func (u *Uniform) Name() string { return u.name }

// Value returns the current value of the uniform.
func (u *Uniform) Value() Value { return u.val }

// Set replaces the uniform's value in place. The value type must not change.
func (u *Uniform) Set(v Value) error {
	if v.Type != u.val.Type {
		return fmt.Errorf("set %s uniform %s with %s value: %w", u.val.Type, u.name, v.Type, ErrTypeMismatch)
	}
	u.val = v
	return nil
}

func (u *Uniform) SetFloat(f float32) error { return u.Set(Float(f)) }

func (u *Uniform) SetVec3(v ms3.Vec) error { return u.Set(Vec3(v)) }

func (u *Uniform) SetMat4(colMajor [16]float32) error { return u.Set(Mat4(colMajor)) }

// SetSampler binds a texture to a sampler uniform.
func (u *Uniform) SetSampler(s Sampler) error {
	if !u.val.Type.IsSampler() {
		return fmt.Errorf("set sampler on %s uniform %s: %w", u.val.Type, u.name, ErrTypeMismatch)
	}
	u.val.Sampler = s
	return nil
}

func (u *Uniform) Type() Type { return u.val.Type }

func (u *Uniform) AppendExpr(b []byte, st Stage) []byte { return append(b, u.name...) }

func (u *Uniform) ForEachChild(userData any, fn func(userData any, n *Node) error) error {
	return nil
}

func (u *Uniform) AppendShaderObjects(objs []ShaderObject) []ShaderObject {
	return append(objs, ShaderObject{Kind: ObjUniform, Name: u.name, Type: u.val.Type, uniform: u})
}

//
// Attributes and builtins.
//

// Attribute is a per-vertex data channel.
type Attribute struct {
	name string
	typ  Type
}

var (
	positionAttr = &Attribute{name: "position", typ: TypeVec3}
	normalAttr   = &Attribute{name: "normal", typ: TypeVec3}
)

// Position returns the object space vertex position attribute.
func Position() *Attribute { return positionAttr }

// Normal returns the object space vertex normal attribute.
func Normal() *Attribute { return normalAttr }

// NewAttribute returns a per-vertex attribute node. name must be a valid GLSL identifier.
func NewAttribute(name string, t Type) (*Attribute, error) {
	if !isIdent(name) {
		return nil, fmt.Errorf("invalid attribute name %q", name)
	} else if t != TypeFloat && !t.IsVector() {
		return nil, fmt.Errorf("attribute %q of type %s not supported", name, t)
	} else if (name == "position" || name == "normal") && t != TypeVec3 {
		return nil, fmt.Errorf("builtin attribute %q must be vec3", name)
	}
	return &Attribute{name: name, typ: t}, nil
}

func (a *Attribute) Name() string { return a.name }

func (a *Attribute) Type() Type { return a.typ }

func (a *Attribute) AppendExpr(b []byte, st Stage) []byte {
	if st == StageFragment {
		b = append(b, "v_"...)
	}
	return append(b, a.name...)
}

func (a *Attribute) forwardName() (string, bool) { return "v_" + a.name, true }

func (a *Attribute) ForEachChild(userData any, fn func(userData any, n *Node) error) error {
	return nil
}

func (a *Attribute) AppendShaderObjects(objs []ShaderObject) []ShaderObject {
	return append(objs, ShaderObject{Kind: ObjAttribute, Name: a.name, Type: a.typ})
}

type builtin struct {
	ident     string
	typ       Type
	expr      string
	vertexOut bool
	deps      []*Attribute
}

var (
	worldNormal = &builtin{ident: "worldNormal", typ: TypeVec3, vertexOut: true,
		expr: "normalize(mat3(modelMatrix)*normal)", deps: []*Attribute{normalAttr}}
	worldPosition = &builtin{ident: "worldPosition", typ: TypeVec3, vertexOut: true,
		expr: "(modelMatrix*vec4(position,1.)).xyz", deps: []*Attribute{positionAttr}}
	cameraPosition   = &builtin{ident: "cameraPosition", typ: TypeVec3, expr: "cameraPosition"}
	modelMatrix      = &builtin{ident: "modelMatrix", typ: TypeMat4, expr: "modelMatrix"}
	viewMatrix       = &builtin{ident: "viewMatrix", typ: TypeMat4, expr: "viewMatrix"}
	projectionMatrix = &builtin{ident: "projectionMatrix", typ: TypeMat4, expr: "projectionMatrix"}
)

// WorldNormal returns the vertex normal transformed by the model matrix.
func WorldNormal() Node { return worldNormal }

// WorldPosition returns the vertex position transformed by the model matrix.
func WorldPosition() Node { return worldPosition }

// CameraPosition returns the world space position of the camera rendering the program.
func CameraPosition() Node { return cameraPosition }

// ModelMatrix returns the object to world matrix of the mesh being drawn.
func ModelMatrix() Node { return modelMatrix }

func ViewMatrix() Node { return viewMatrix }

func ProjectionMatrix() Node { return projectionMatrix }

// BuiltinName returns the identifier of a builtin node and true, or false if n is not a builtin.
func BuiltinName(n Node) (string, bool) {
	b, ok := n.(*builtin)
	if !ok {
		return "", false
	}
	return b.ident, true
}

func (bt *builtin) Type() Type { return bt.typ }

func (bt *builtin) AppendExpr(b []byte, st Stage) []byte {
	if st == StageFragment && bt.vertexOut {
		b = append(b, "v_"...)
		return append(b, bt.ident...)
	}
	return append(b, bt.expr...)
}

// forwardName returns false for uniform builtins, which are readable in all stages.
func (bt *builtin) forwardName() (string, bool) { return "v_" + bt.ident, bt.vertexOut }

func (bt *builtin) ForEachChild(userData any, fn func(userData any, n *Node) error) error {
	return nil
}

func (bt *builtin) AppendShaderObjects(objs []ShaderObject) []ShaderObject {
	for _, dep := range bt.deps {
		objs = dep.AppendShaderObjects(objs)
	}
	return objs
}

//
// Varyings.
//

// Varying is a value written in the vertex stage, usually by a function keyword
// binding, and interpolated for the fragment stage.
type Varying struct {
	name string
	typ  Type
	auto bool
}

// NewVarying returns a varying with an automatically generated unique name.
func NewVarying(t Type) *Varying {
	if t != TypeFloat && !t.IsVector() {
		panic("unsupported varying type " + t.String())
	}
	return &Varying{name: nextName("vy"), typ: t, auto: true}
}

func (v *Varying) Name() string { return v.name }

func (v *Varying) Type() Type { return v.typ }

func (v *Varying) AppendExpr(b []byte, st Stage) []byte { return append(b, v.name...) }

func (v *Varying) ForEachChild(userData any, fn func(userData any, n *Node) error) error {
	return nil
}

func (v *Varying) AppendShaderObjects(objs []ShaderObject) []ShaderObject {
	return append(objs, ShaderObject{Kind: ObjVarying, Name: v.name, Type: v.typ, varying: v})
}

//
// Texture sampling.
//

type sample struct {
	tex   Node
	coord Node
}

// NewSample returns a node that samples tex at coord. 2D textures require
// vec2 coordinates and cube textures require vec3 directions. Evaluates to vec4.
func NewSample(tex, coord Node) (Node, error) {
	if tex == nil || coord == nil {
		return nil, errors.New("nil sample argument")
	}
	switch tex.Type() {
	case TypeSampler2D:
		if coord.Type() != TypeVec2 {
			return nil, fmt.Errorf("sampler2D requires vec2 coordinates, got %s: %w", coord.Type(), ErrTypeMismatch)
		}
	case TypeSamplerCube:
		if coord.Type() != TypeVec3 {
			return nil, fmt.Errorf("samplerCube requires vec3 direction, got %s: %w", coord.Type(), ErrTypeMismatch)
		}
	default:
		return nil, fmt.Errorf("sample of non-sampler %s: %w", tex.Type(), ErrTypeMismatch)
	}
	return &sample{tex: tex, coord: coord}, nil
}

func (s *sample) Type() Type { return TypeVec4 }

func (s *sample) AppendExpr(b []byte, st Stage) []byte {
	b = append(b, "texture("...)
	b = s.tex.AppendExpr(b, st)
	b = append(b, ',')
	b = s.coord.AppendExpr(b, st)
	return append(b, ')')
}

func (s *sample) ForEachChild(userData any, fn func(userData any, n *Node) error) error {
	err := fn(userData, &s.tex)
	if err != nil {
		return err
	}
	return fn(userData, &s.coord)
}

func (s *sample) AppendShaderObjects(objs []ShaderObject) []ShaderObject { return objs }

// Operands returns the texture and coordinate operands of a sample node.
func (s *sample) Operands() (tex, coord Node) { return s.tex, s.coord }

//
// Unary operations.
//

type UnaryOp uint8

const (
	UnaryNeg UnaryOp = iota + 1
	UnaryNormalize
	UnaryLength
	UnaryAbs
	UnaryFract
	UnaryLog
	UnaryExp
	UnarySqrt
)

func (op UnaryOp) fn() string {
	switch op {
	case UnaryNeg:
		return "-"
	case UnaryNormalize:
		return "normalize"
	case UnaryLength:
		return "length"
	case UnaryAbs:
		return "abs"
	case UnaryFract:
		return "fract"
	case UnaryLog:
		return "log"
	case UnaryExp:
		return "exp"
	case UnarySqrt:
		return "sqrt"
	}
	return ""
}

type unary struct {
	op UnaryOp
	x  Node
}

// NewUnary applies a builtin single argument GLSL operation to x.
func NewUnary(op UnaryOp, x Node) (Node, error) {
	if x == nil {
		return nil, errors.New("nil unary operand")
	} else if op.fn() == "" {
		return nil, fmt.Errorf("invalid unary operation %d", op)
	}
	t := x.Type()
	valid := t == TypeFloat || t.IsVector()
	if op == UnaryNeg {
		valid = valid || t == TypeMat3 || t == TypeMat4
	} else if op == UnaryNormalize {
		valid = t.IsVector()
	}
	if !valid {
		return nil, fmt.Errorf("%s of %s: %w", op.fn(), t, ErrTypeMismatch)
	}
	return &unary{op: op, x: x}, nil
}

func (u *unary) Type() Type {
	if u.op == UnaryLength {
		return TypeFloat
	}
	return u.x.Type()
}

func (u *unary) AppendExpr(b []byte, st Stage) []byte {
	if u.op == UnaryNeg {
		b = append(b, "(-"...)
	} else {
		b = append(b, u.op.fn()...)
		b = append(b, '(')
	}
	b = u.x.AppendExpr(b, st)
	return append(b, ')')
}

func (u *unary) ForEachChild(userData any, fn func(userData any, n *Node) error) error {
	return fn(userData, &u.x)
}

func (u *unary) AppendShaderObjects(objs []ShaderObject) []ShaderObject { return objs }

type swizzle struct {
	x     Node
	comps string
}

// NewSwizzle selects components of vector x, i.e. "xyz" or "rgb".
func NewSwizzle(x Node, comps string) (Node, error) {
	if x == nil {
		return nil, errors.New("nil swizzle operand")
	} else if len(comps) == 0 || len(comps) > 4 {
		return nil, fmt.Errorf("invalid swizzle %q", comps)
	}
	n := x.Type().Components()
	if !x.Type().IsVector() {
		return nil, fmt.Errorf("swizzle of %s: %w", x.Type(), ErrTypeMismatch)
	}
	for i := 0; i < len(comps); i++ {
		idx := -1
		switch comps[i] {
		case 'x', 'r':
			idx = 0
		case 'y', 'g':
			idx = 1
		case 'z', 'b':
			idx = 2
		case 'w', 'a':
			idx = 3
		}
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("swizzle %q out of range for %s", comps, x.Type())
		}
	}
	return &swizzle{x: x, comps: comps}, nil
}

func (s *swizzle) Type() Type { return vecType(len(s.comps)) }

func (s *swizzle) AppendExpr(b []byte, st Stage) []byte {
	b = append(b, '(')
	b = s.x.AppendExpr(b, st)
	b = append(b, ")."...)
	return append(b, s.comps...)
}

func (s *swizzle) ForEachChild(userData any, fn func(userData any, n *Node) error) error {
	return fn(userData, &s.x)
}

func (s *swizzle) AppendShaderObjects(objs []ShaderObject) []ShaderObject { return objs }

// Components returns the swizzle selection string.
func (s *swizzle) Components() string { return s.comps }

type construct struct {
	typ  Type
	args []Node
}

// NewConstruct builds a vector of type t from args, i.e. vec3(x, y, z).
// The components of the arguments must add up to the components of t, or
// a single float argument may be broadcast.
func NewConstruct(t Type, args ...Node) (Node, error) {
	if !t.IsVector() {
		return nil, fmt.Errorf("construct of %s not supported", t)
	} else if len(args) == 0 {
		return nil, fmt.Errorf("construct %s: %w", t, ErrArgCount)
	}
	sum := 0
	for i, arg := range args {
		if arg == nil {
			return nil, fmt.Errorf("construct %s: nil argument %d", t, i)
		}
		at := arg.Type()
		if at != TypeFloat && !at.IsVector() {
			return nil, fmt.Errorf("construct %s with %s argument: %w", t, at, ErrArgType)
		}
		sum += at.Components()
	}
	broadcast := len(args) == 1 && sum == 1
	if !broadcast && sum != t.Components() {
		return nil, fmt.Errorf("construct %s with %d components: %w", t, sum, ErrArgCount)
	}
	return &construct{typ: t, args: append([]Node(nil), args...)}, nil
}

func (c *construct) Type() Type { return c.typ }

func (c *construct) AppendExpr(b []byte, st Stage) []byte {
	b = append(b, c.typ.String()...)
	b = append(b, '(')
	for i, arg := range c.args {
		if i > 0 {
			b = append(b, ',')
		}
		b = arg.AppendExpr(b, st)
	}
	return append(b, ')')
}

func (c *construct) ForEachChild(userData any, fn func(userData any, n *Node) error) error {
	for i := range c.args {
		err := fn(userData, &c.args[i])
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *construct) AppendShaderObjects(objs []ShaderObject) []ShaderObject { return objs }

//
// Binary operations.
//

type BinaryOp uint8

const (
	OpAdd BinaryOp = iota + 1
	OpSub
	OpMul
	OpDiv
)

func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	}
	return "BinaryOp(" + strconv.Itoa(int(op)) + ")"
}

// Binary is an arithmetic operation between two nodes. Its operands are fixed at
// construction, a different combination requires a new node.
type Binary struct {
	op   BinaryOp
	a, b Node
	typ  Type
}

// NewBinary returns a op b. Operands must have the same type, or one of them must be
// a float scalar broadcast over the other. Multiplication also accepts matrix-vector operands.
func NewBinary(op BinaryOp, a, b Node) (*Binary, error) {
	if a == nil || b == nil {
		return nil, errors.New("nil binary operand")
	} else if op < OpAdd || op > OpDiv {
		return nil, fmt.Errorf("invalid binary operation %d", op)
	}
	typ, err := binaryType(op, a.Type(), b.Type())
	if err != nil {
		return nil, err
	}
	return &Binary{op: op, a: a, b: b, typ: typ}, nil
}

func binaryType(op BinaryOp, ta, tb Type) (Type, error) {
	arith := func(t Type) bool { return t == TypeFloat || t.IsVector() }
	switch {
	case ta == tb && arith(ta):
		return ta, nil
	case ta == TypeFloat && arith(tb):
		return tb, nil
	case tb == TypeFloat && arith(ta):
		return ta, nil
	case op == OpMul && ta == TypeMat4 && (tb == TypeVec4 || tb == TypeMat4):
		return tb, nil
	case op == OpMul && ta == TypeMat3 && (tb == TypeVec3 || tb == TypeMat3):
		return tb, nil
	case (op == OpAdd || op == OpSub) && ta == tb && (ta == TypeMat3 || ta == TypeMat4):
		return ta, nil
	}
	return TypeVoid, fmt.Errorf("%s %s %s: %w", ta, op, tb, ErrTypeMismatch)
}

func (bin *Binary) Op() BinaryOp { return bin.op }

// Operands returns the left and right hand side operands.
func (bin *Binary) Operands() (a, b Node) { return bin.a, bin.b }

func (bin *Binary) Type() Type { return bin.typ }

func (bin *Binary) AppendExpr(b []byte, st Stage) []byte {
	b = append(b, '(')
	b = bin.a.AppendExpr(b, st)
	b = append(b, bin.op.String()...)
	b = bin.b.AppendExpr(b, st)
	return append(b, ')')
}

func (bin *Binary) ForEachChild(userData any, fn func(userData any, n *Node) error) error {
	err := fn(userData, &bin.a)
	if err != nil {
		return err
	}
	return fn(userData, &bin.b)
}

func (bin *Binary) AppendShaderObjects(objs []ShaderObject) []ShaderObject { return objs }

//
// Conditional.
//

type CmpOp uint8

const (
	CmpEqual CmpOp = iota + 1
	CmpNotEqual
	CmpLess
	CmpLessEqual
	CmpGreater
	CmpGreaterEqual
)

func (op CmpOp) String() string {
	switch op {
	case CmpEqual:
		return "=="
	case CmpNotEqual:
		return "!="
	case CmpLess:
		return "<"
	case CmpLessEqual:
		return "<="
	case CmpGreater:
		return ">"
	case CmpGreaterEqual:
		return ">="
	}
	return "CmpOp(" + strconv.Itoa(int(op)) + ")"
}

// Holds reports whether the comparison holds for a and b.
func (op CmpOp) Holds(a, b float32) bool {
	switch op {
	case CmpEqual:
		return a == b
	case CmpNotEqual:
		return a != b
	case CmpLess:
		return a < b
	case CmpLessEqual:
		return a <= b
	case CmpGreater:
		return a > b
	case CmpGreaterEqual:
		return a >= b
	}
	return false
}

type cond struct {
	a, b            Node
	op              CmpOp
	ifTrue, ifFalse Node
}

// NewCond returns the ternary expression (a op b) ? ifTrue : ifFalse.
// a and b must be floats and both branches must share a type.
func NewCond(a Node, op CmpOp, b Node, ifTrue, ifFalse Node) (Node, error) {
	if a == nil || b == nil || ifTrue == nil || ifFalse == nil {
		return nil, errors.New("nil conditional operand")
	} else if op < CmpEqual || op > CmpGreaterEqual {
		return nil, fmt.Errorf("invalid comparison %d", op)
	} else if a.Type() != TypeFloat || b.Type() != TypeFloat {
		return nil, fmt.Errorf("compare %s %s %s: %w", a.Type(), op, b.Type(), ErrTypeMismatch)
	} else if ifTrue.Type() != ifFalse.Type() {
		return nil, fmt.Errorf("conditional branches %s and %s: %w", ifTrue.Type(), ifFalse.Type(), ErrTypeMismatch)
	}
	return &cond{a: a, op: op, b: b, ifTrue: ifTrue, ifFalse: ifFalse}, nil
}

func (c *cond) Type() Type { return c.ifTrue.Type() }

func (c *cond) AppendExpr(b []byte, st Stage) []byte {
	b = append(b, "(("...)
	b = c.a.AppendExpr(b, st)
	b = append(b, c.op.String()...)
	b = c.b.AppendExpr(b, st)
	b = append(b, ")?"...)
	b = c.ifTrue.AppendExpr(b, st)
	b = append(b, ':')
	b = c.ifFalse.AppendExpr(b, st)
	return append(b, ')')
}

func (c *cond) ForEachChild(userData any, fn func(userData any, n *Node) error) error {
	for _, n := range []*Node{&c.a, &c.b, &c.ifTrue, &c.ifFalse} {
		err := fn(userData, n)
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *cond) AppendShaderObjects(objs []ShaderObject) []ShaderObject { return objs }

// Comparison returns the compared operands and the comparison operation.
func (c *cond) Comparison() (a Node, op CmpOp, b Node) { return c.a, c.op, c.b }

// Branches returns the true and false branches.
func (c *cond) Branches() (ifTrue, ifFalse Node) { return c.ifTrue, c.ifFalse }

//
// References.
//

// Ref is an identity node whose target can be replaced in place. Effects use
// it to hold their input so that a new input does not require rebuilding the
// nodes that consume it. Replacing the target is a structural change: programs
// that include the Ref must be recompiled.
type Ref struct {
	target Node
}

// NewRef returns a reference to target.
func NewRef(target Node) *Ref {
	if target == nil {
		panic("nil Ref target")
	}
	return &Ref{target: target}
}

func (r *Ref) Target() Node { return r.target }

// Set points the reference to a new target of the same type. Returns [ErrCycle]
// if the new target references r.
func (r *Ref) Set(target Node) error {
	if target == nil {
		return errors.New("nil Ref target")
	} else if target.Type() != r.target.Type() {
		return fmt.Errorf("set %s reference with %s target: %w", r.target.Type(), target.Type(), ErrTypeMismatch)
	}
	if reaches(target, r) {
		return ErrCycle
	}
	r.target = target
	return nil
}

func (r *Ref) Type() Type { return r.target.Type() }

func (r *Ref) AppendExpr(b []byte, st Stage) []byte { return r.target.AppendExpr(b, st) }

func (r *Ref) ForEachChild(userData any, fn func(userData any, n *Node) error) error {
	return fn(userData, &r.target)
}

func (r *Ref) AppendShaderObjects(objs []ShaderObject) []ShaderObject { return objs }

// reaches returns true if target is root or one of root's descendants.
func reaches(root, target Node) bool {
	visited := make(map[Node]struct{})
	var walk func(n Node) bool
	walk = func(n Node) bool {
		if n == target {
			return true
		}
		if _, ok := visited[n]; ok {
			return false
		}
		visited[n] = struct{}{}
		found := false
		n.ForEachChild(nil, func(_ any, child *Node) error {
			if *child != nil && walk(*child) {
				found = true
				return errStopWalk
			}
			return nil
		})
		return found
	}
	return walk(root)
}

var errStopWalk = errors.New("stop walk")

// CheckAcyclic returns [ErrCycle] if root references itself transitively.
// Nil operands are also reported as an error.
func CheckAcyclic(root Node) error {
	const (
		visiting = 1
		done     = 2
	)
	if root == nil {
		return errors.New("nil node")
	}
	state := make(map[Node]uint8)
	var walk func(n Node) error
	walk = func(n Node) error {
		switch state[n] {
		case visiting:
			return fmt.Errorf("%T: %w", n, ErrCycle)
		case done:
			return nil
		}
		state[n] = visiting
		err := n.ForEachChild(nil, func(_ any, child *Node) error {
			if *child == nil {
				return fmt.Errorf("nil operand in %T", n)
			}
			return walk(*child)
		})
		if err != nil {
			return err
		}
		state[n] = done
		return nil
	}
	return walk(root)
}

// AppendAllNodes DFS iterates over root and all of its descendants and appends
// every distinct node to dst in post order: operands before the nodes that use them.
func AppendAllNodes(dst []Node, root Node) ([]Node, error) {
	err := CheckAcyclic(root)
	if err != nil {
		return dst, err
	}
	seen := make(map[Node]struct{})
	var walk func(n Node)
	walk = func(n Node) {
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		n.ForEachChild(nil, func(_ any, child *Node) error {
			walk(*child)
			return nil
		})
		dst = append(dst, n)
	}
	walk(root)
	return dst, nil
}
