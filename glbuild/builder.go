package glbuild

import (
	"errors"
	"fmt"
)

// Builder wraps node construction with an error handling strategy: panics, or
// error accumulation so a graph can be built in one go and checked once with [Builder.Err].
// Methods of a Builder that failed return nil nodes; passing them to further
// methods records no additional errors.
type Builder struct {
	NoPanic   bool
	accumErrs []error
	failed    bool
}

func (bld *Builder) Err() error {
	if len(bld.accumErrs) == 0 {
		return nil
	}
	return errors.Join(bld.accumErrs...)
}

func (bld *Builder) errorf(msg string, err error) {
	err = fmt.Errorf("%s: %w", msg, err)
	if !bld.NoPanic {
		panic(err)
	}
	bld.failed = true
	bld.accumErrs = append(bld.accumErrs, err)
}

// skip returns true if any of the operands is the nil result of a previous failure.
func (bld *Builder) skip(nodes ...Node) bool {
	for _, n := range nodes {
		if c, ok := n.(*Call); n == nil || (ok && c == nil) {
			if !bld.failed {
				bld.errorf("nil operand", errors.New("node graph operand is nil"))
			}
			return true
		}
	}
	return false
}

func (bld *Builder) Add(a, b Node) Node { return bld.binary(OpAdd, a, b) }

func (bld *Builder) Sub(a, b Node) Node { return bld.binary(OpSub, a, b) }

func (bld *Builder) Mul(a, b Node) Node { return bld.binary(OpMul, a, b) }

func (bld *Builder) Div(a, b Node) Node { return bld.binary(OpDiv, a, b) }

func (bld *Builder) binary(op BinaryOp, a, b Node) Node {
	if bld.skip(a, b) {
		return nil
	}
	n, err := NewBinary(op, a, b)
	if err != nil {
		bld.errorf("binary "+op.String(), err)
		return nil
	}
	return n
}

func (bld *Builder) Unary(op UnaryOp, x Node) Node {
	if bld.skip(x) {
		return nil
	}
	n, err := NewUnary(op, x)
	if err != nil {
		bld.errorf("unary "+op.fn(), err)
		return nil
	}
	return n
}

func (bld *Builder) Swizzle(x Node, comps string) Node {
	if bld.skip(x) {
		return nil
	}
	n, err := NewSwizzle(x, comps)
	if err != nil {
		bld.errorf("swizzle", err)
		return nil
	}
	return n
}

func (bld *Builder) Construct(t Type, args ...Node) Node {
	if bld.skip(args...) {
		return nil
	}
	n, err := NewConstruct(t, args...)
	if err != nil {
		bld.errorf("construct", err)
		return nil
	}
	return n
}

func (bld *Builder) Sample(tex, coord Node) Node {
	if bld.skip(tex, coord) {
		return nil
	}
	n, err := NewSample(tex, coord)
	if err != nil {
		bld.errorf("sample", err)
		return nil
	}
	return n
}

func (bld *Builder) Cond(a Node, op CmpOp, b, ifTrue, ifFalse Node) Node {
	if bld.skip(a, b, ifTrue, ifFalse) {
		return nil
	}
	n, err := NewCond(a, op, b, ifTrue, ifFalse)
	if err != nil {
		bld.errorf("conditional", err)
		return nil
	}
	return n
}

// Call returns a call to def. The result is nil if any argument failed to build.
func (bld *Builder) Call(def *FuncDef, args ...Node) *Call {
	if bld.skip(args...) {
		return nil
	}
	c, err := NewCall(def, args...)
	if err != nil {
		bld.errorf("call", err)
		return nil
	}
	return c
}

// Keyword binds a function keyword, see [FuncDef.SetKeyword].
func (bld *Builder) Keyword(def *FuncDef, name string, n Node) {
	if bld.skip(n) {
		return
	}
	err := def.SetKeyword(name, n)
	if err != nil {
		bld.errorf("keyword", err)
	}
}
