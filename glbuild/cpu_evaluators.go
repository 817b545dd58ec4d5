package glbuild

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// EvalEnv provides the state of the vertex being evaluated to CPU node evaluation.
type EvalEnv interface {
	CPUEnv
	// Attribute returns the value of the named attribute for the current vertex.
	Attribute(name string, t Type) (Value, error)
	// Builtin returns the value of a builtin such as modelMatrix or worldNormal for the current vertex.
	Builtin(ident string) (Value, error)
}

// CPUNode is implemented by nodes that can be evaluated without a GPU. operands
// holds the values of the node's children in [Node.ForEachChild] order.
type CPUNode interface {
	Node
	EvaluateCPU(env EvalEnv, operands []Value) (Value, error)
}

var errNoCPU = errors.New("no CPU implementation")

func (l *literal) EvaluateCPU(env EvalEnv, operands []Value) (Value, error) { return l.v, nil }

func (u *Uniform) EvaluateCPU(env EvalEnv, operands []Value) (Value, error) { return u.val, nil }

func (a *Attribute) EvaluateCPU(env EvalEnv, operands []Value) (Value, error) {
	return env.Attribute(a.name, a.typ)
}

func (bt *builtin) EvaluateCPU(env EvalEnv, operands []Value) (Value, error) {
	v, err := env.Builtin(bt.ident)
	if err == nil && v.Type != bt.typ {
		err = fmt.Errorf("builtin %s evaluated to %s, want %s", bt.ident, v.Type, bt.typ)
	}
	return v, err
}

func (v *Varying) EvaluateCPU(env EvalEnv, operands []Value) (Value, error) {
	return Value{}, fmt.Errorf("varying %s: %w", v.name, errNoCPU)
}

func (r *Ref) EvaluateCPU(env EvalEnv, operands []Value) (Value, error) { return operands[0], nil }

func (c *Call) EvaluateCPU(env EvalEnv, operands []Value) (Value, error) {
	if c.def.cpu == nil {
		return Value{}, fmt.Errorf("function %s: %w", c.def.name, errNoCPU)
	}
	v, err := c.def.cpu(env, operands)
	if err == nil && v.Type != c.def.ret {
		err = fmt.Errorf("function %s evaluated to %s, want %s", c.def.name, v.Type, c.def.ret)
	}
	return v, err
}

func (s *sample) EvaluateCPU(env EvalEnv, operands []Value) (Value, error) {
	tex, coord := operands[0], operands[1]
	if tex.Sampler == nil {
		return Value{}, errors.New("sample of unbound texture")
	}
	texel := env.Sample(tex.Sampler, [3]float32{coord.V[0], coord.V[1], coord.V[2]})
	return Vec4(texel[0], texel[1], texel[2], texel[3]), nil
}

func (u *unary) EvaluateCPU(env EvalEnv, operands []Value) (Value, error) {
	x := operands[0]
	n := x.Type.Components()
	switch u.op {
	case UnaryLength:
		return Float(length(x.V[:n])), nil
	case UnaryNormalize:
		l := length(x.V[:n])
		for i := 0; i < n; i++ {
			x.V[i] /= l
		}
		return x, nil
	}
	for i := 0; i < n; i++ {
		v := x.V[i]
		switch u.op {
		case UnaryNeg:
			v = -v
		case UnaryAbs:
			v = math32.Abs(v)
		case UnaryFract:
			v -= math32.Floor(v)
		case UnaryLog:
			v = math32.Log(v)
		case UnaryExp:
			v = math32.Exp(v)
		case UnarySqrt:
			v = math32.Sqrt(v)
		}
		x.V[i] = v
	}
	return x, nil
}

func length(v []float32) float32 {
	var sum float32
	for _, c := range v {
		sum += c * c
	}
	return math32.Sqrt(sum)
}

func (s *swizzle) EvaluateCPU(env EvalEnv, operands []Value) (Value, error) {
	x := operands[0]
	res := Value{Type: s.Type()}
	for i := 0; i < len(s.comps); i++ {
		var idx int
		switch s.comps[i] {
		case 'y', 'g':
			idx = 1
		case 'z', 'b':
			idx = 2
		case 'w', 'a':
			idx = 3
		}
		res.V[i] = x.V[idx]
	}
	return res, nil
}

func (c *construct) EvaluateCPU(env EvalEnv, operands []Value) (Value, error) {
	res := Value{Type: c.typ}
	if len(operands) == 1 && operands[0].Type == TypeFloat {
		for i := 0; i < c.typ.Components(); i++ {
			res.V[i] = operands[0].V[0]
		}
		return res, nil
	}
	i := 0
	for _, op := range operands {
		i += copy(res.V[i:], op.Components())
	}
	return res, nil
}

func (c *cond) EvaluateCPU(env EvalEnv, operands []Value) (Value, error) {
	if c.op.Holds(operands[0].V[0], operands[1].V[0]) {
		return operands[2], nil
	}
	return operands[3], nil
}

func (bin *Binary) EvaluateCPU(env EvalEnv, operands []Value) (Value, error) {
	a, b := operands[0], operands[1]
	switch {
	case bin.op == OpMul && a.Type == TypeMat4:
		m := mgl32.Mat4(a.V)
		if b.Type == TypeMat4 {
			return Mat4(m.Mul4(mgl32.Mat4(b.V))), nil
		}
		v := m.Mul4x1(mgl32.Vec4{b.V[0], b.V[1], b.V[2], b.V[3]})
		return Vec4(v[0], v[1], v[2], v[3]), nil
	case bin.op == OpMul && a.Type == TypeMat3:
		var m, mb mgl32.Mat3
		copy(m[:], a.V[:9])
		if b.Type == TypeMat3 {
			copy(mb[:], b.V[:9])
			return Mat3(m.Mul3(mb)), nil
		}
		v := m.Mul3x1(mgl32.Vec3{b.V[0], b.V[1], b.V[2]})
		return Value{Type: TypeVec3, V: [16]float32{v[0], v[1], v[2]}}, nil
	}
	res := Value{Type: bin.typ}
	n := bin.typ.Components()
	for i := 0; i < n; i++ {
		x, y := a.V[0], b.V[0]
		if a.Type != TypeFloat {
			x = a.V[i]
		}
		if b.Type != TypeFloat {
			y = b.V[i]
		}
		switch bin.op {
		case OpAdd:
			res.V[i] = x + y
		case OpSub:
			res.V[i] = x - y
		case OpMul:
			res.V[i] = x * y
		case OpDiv:
			res.V[i] = x / y
		}
	}
	return res, nil
}
