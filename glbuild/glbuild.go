package glbuild

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
)

const VersionStr = "#version 430\n"

var (
	// ErrArgCount is returned when a function call is built with a number of
	// arguments that differs from the function definition's parameters.
	ErrArgCount = errors.New("function argument count mismatch")
	// ErrArgType is returned when a function call argument type differs from the parameter type.
	ErrArgType = errors.New("function argument type mismatch")
	// ErrCycle is returned when a structural edit would make a node reference itself.
	ErrCycle = errors.New("node graph cycle")
	// ErrTypeMismatch is returned when operands of an operator have incompatible types.
	ErrTypeMismatch = errors.New("operand type mismatch")
)

// Type is the GLSL type of the value a [Node] evaluates to.
type Type uint8

const (
	TypeVoid Type = iota
	TypeFloat
	TypeVec2
	TypeVec3
	TypeVec4
	TypeMat3
	TypeMat4
	TypeSampler2D
	TypeSamplerCube
)

func (t Type) String() string {
	switch t {
	case TypeVoid:
		return "void"
	case TypeFloat:
		return "float"
	case TypeVec2:
		return "vec2"
	case TypeVec3:
		return "vec3"
	case TypeVec4:
		return "vec4"
	case TypeMat3:
		return "mat3"
	case TypeMat4:
		return "mat4"
	case TypeSampler2D:
		return "sampler2D"
	case TypeSamplerCube:
		return "samplerCube"
	}
	return "Type(" + strconv.Itoa(int(t)) + ")"
}

// Components returns the number of float components of the type. Zero for void and samplers.
func (t Type) Components() int {
	switch t {
	case TypeFloat:
		return 1
	case TypeVec2:
		return 2
	case TypeVec3:
		return 3
	case TypeVec4:
		return 4
	case TypeMat3:
		return 9
	case TypeMat4:
		return 16
	}
	return 0
}

// IsVector returns true for vec2, vec3 and vec4.
func (t Type) IsVector() bool { return t == TypeVec2 || t == TypeVec3 || t == TypeVec4 }

// IsSampler returns true for texture sampler types.
func (t Type) IsSampler() bool { return t == TypeSampler2D || t == TypeSamplerCube }

func vecType(n int) Type {
	switch n {
	case 1:
		return TypeFloat
	case 2:
		return TypeVec2
	case 3:
		return TypeVec3
	case 4:
		return TypeVec4
	}
	return TypeVoid
}

// ParseType parses a GLSL type name.
func ParseType(name []byte) (Type, error) {
	for t := TypeVoid; t <= TypeSamplerCube; t++ {
		if string(name) == t.String() {
			return t, nil
		}
	}
	return TypeVoid, fmt.Errorf("unsupported GLSL type %q", name)
}

// Stage is the shader stage an expression is written to.
type Stage uint8

const (
	StageVertex Stage = iota
	StageFragment
)

func (s Stage) String() string {
	if s == StageVertex {
		return "vertex"
	}
	return "fragment"
}

// Node is an expression in a shader node graph. Node graphs are directed acyclic graphs
// built bottom-up and compiled by [Programmer] into vertex and fragment shader sources.
type Node interface {
	// Type returns the GLSL type the node evaluates to.
	Type() Type
	// AppendExpr appends the GLSL expression of the node for the given stage to b.
	AppendExpr(b []byte, st Stage) []byte
	// ForEachChild iterates over the direct operands of the node.
	ForEachChild(userData any, fn func(userData any, n *Node) error) error
	// AppendShaderObjects appends declarations the node needs in order to be
	// compiled: uniforms, varyings, attributes and function definitions.
	AppendShaderObjects(objs []ShaderObject) []ShaderObject
}

// ObjectKind enumerates the declarations a [ShaderObject] can represent.
type ObjectKind uint8

const (
	ObjUniform ObjectKind = iota + 1
	ObjAttribute
	ObjVarying
	ObjFunction
)

// ShaderObject is a declaration needed to compile a [Node] correctly.
// A ShaderObject could represent any of the following:
//   - Uniform. A single value or texture sampler shared by all vertices.
//   - Attribute. A per-vertex data channel.
//   - Varying. A value written in the vertex stage and interpolated for the fragment stage.
//   - Function. A GLSL function definition.
type ShaderObject struct {
	Kind ObjectKind
	// Name is the GLSL identifier of the object.
	Name string
	Type Type

	uniform *Uniform
	varying *Varying
	fn      *FuncDef
}

// Uniform returns the uniform the object declares or nil.
func (obj ShaderObject) Uniform() *Uniform { return obj.uniform }

// Function returns the function definition the object declares or nil.
func (obj ShaderObject) Function() *FuncDef { return obj.fn }

func (obj ShaderObject) IsFunction() bool { return obj.Kind == ObjFunction }

// Validate checks the object is well formed.
func (obj ShaderObject) Validate() error {
	if obj.Kind == 0 || obj.Kind > ObjFunction {
		return errors.New("invalid shader object kind")
	} else if !isIdent(obj.Name) {
		return fmt.Errorf("invalid shader object identifier %q", obj.Name)
	} else if obj.Kind == ObjFunction && obj.fn == nil {
		return errors.New("function object missing definition")
	} else if obj.Kind != ObjUniform && obj.Type.IsSampler() {
		return fmt.Errorf("sampler %q must be a uniform", obj.Name)
	}
	return nil
}

func isIdent(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		letter := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		digit := c >= '0' && c <= '9'
		if !letter && !(digit && i > 0) {
			return false
		}
	}
	return true
}

// SanitizeIdent replaces characters not allowed in a GLSL identifier with underscores.
func SanitizeIdent(s string) string {
	b := []byte(s)
	for i, c := range b {
		letter := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		digit := c >= '0' && c <= '9'
		if !letter && !(digit && i > 0) {
			b[i] = '_'
		}
	}
	if len(b) == 0 {
		return "_"
	}
	return string(b)
}

func AppendDefineDecl(b []byte, aliasToDefine, aliasReplace string) []byte {
	b = append(b, "#define "...)
	b = append(b, aliasToDefine...)
	b = append(b, ' ')
	b = append(b, aliasReplace...)
	b = append(b, '\n')
	return b
}

func AppendUndefineDecl(b []byte, aliasToUndefine string) []byte {
	b = append(b, "#undef "...)
	b = append(b, aliasToUndefine...)
	b = append(b, '\n')
	return b
}

func appendMatLiteral(b []byte, t Type, colMajor []float32) []byte {
	b = append(b, t.String()...)
	b = append(b, '(')
	// GLSL matrix constructors consume arguments in column major order, as per OpenGL standard.
	b = AppendFloats(b, ',', '-', '.', colMajor...)
	b = append(b, ')')
	return b
}

const decimalDigits = 9

func AppendFloat(b []byte, neg, decimal byte, v float32) []byte {
	start := len(b)
	b = strconv.AppendFloat(b, float64(v), 'f', decimalDigits, 32)
	idx := bytes.IndexByte(b[start:], '.')
	if decimal != '.' && idx >= 0 {
		b[start+idx] = decimal
	}
	if b[start] == '-' {
		b[start] = neg
	}
	// Finally trim zeroes.
	end := len(b)
	for i := len(b) - 1; idx >= 0 && i > idx+start && b[i] == '0'; i-- {
		end--
	}
	return b[:end]
}

func AppendFloats(b []byte, sep, neg, decimal byte, s ...float32) []byte {
	for i, v := range s {
		b = AppendFloat(b, neg, decimal, v)
		if sep != 0 && i != len(s)-1 {
			b = append(b, sep)
		}
	}
	return b
}

func hash(b []byte, in uint64) uint64 {
	x := in
	for len(b) >= 8 {
		x ^= binary.LittleEndian.Uint64(b)
		x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
		x = (x ^ (x >> 27)) * 0x94d049bb133111eb
		x ^= x >> 31
		b = b[8:]
	}
	if len(b) > 0 {
		var buf [8]byte
		copy(buf[:], b)
		x ^= binary.LittleEndian.Uint64(buf[:])
		x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
		x = (x ^ (x >> 27)) * 0x94d049bb133111eb
		x ^= x >> 31
	}
	return x
}
