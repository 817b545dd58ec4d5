package glbuild

import (
	"github.com/soypat/geometry/ms3"
)

// Sampler is a texture that can be bound to a sampler uniform.
type Sampler interface {
	// SampleCPU returns the texel at normalized texture coordinates. Only the
	// first two coordinates are used by 2D textures.
	SampleCPU(coord [3]float32) [4]float32
}

// Value is the CPU side representation of a node's value. Scalars and vectors
// occupy the first components of V. Matrices are stored in column major order.
type Value struct {
	Type    Type
	V       [16]float32
	Sampler Sampler
}

func Float(f float32) Value { return Value{Type: TypeFloat, V: [16]float32{f}} }

func Vec2(x, y float32) Value { return Value{Type: TypeVec2, V: [16]float32{x, y}} }

func Vec3(v ms3.Vec) Value { return Value{Type: TypeVec3, V: [16]float32{v.X, v.Y, v.Z}} }

func Vec4(x, y, z, w float32) Value { return Value{Type: TypeVec4, V: [16]float32{x, y, z, w}} }

// Mat4 returns a mat4 value from a column major array.
func Mat4(colMajor [16]float32) Value { return Value{Type: TypeMat4, V: colMajor} }

// Mat3 returns a mat3 value from a column major array.
func Mat3(colMajor [9]float32) Value {
	v := Value{Type: TypeMat3}
	copy(v.V[:], colMajor[:])
	return v
}

// Texture2D returns a sampler2D value. s may be nil until a texture is available.
func Texture2D(s Sampler) Value { return Value{Type: TypeSampler2D, Sampler: s} }

// TextureCube returns a samplerCube value. s may be nil until a texture is available.
func TextureCube(s Sampler) Value { return Value{Type: TypeSamplerCube, Sampler: s} }

func (v Value) Float() float32 { return v.V[0] }

func (v Value) Vec3() ms3.Vec { return ms3.Vec{X: v.V[0], Y: v.V[1], Z: v.V[2]} }

// Components returns the float components of the value.
func (v Value) Components() []float32 { return v.V[:v.Type.Components()] }
