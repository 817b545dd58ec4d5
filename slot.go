package gany

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/soypat/gany/glbuild"
)

var (
	// ErrEmptySlot is returned when combining into an empty slot with an operation other than [OpAssign].
	ErrEmptySlot = errors.New("combine into empty slot")
	// ErrInputDimension is returned when an input's dimension differs from the one an effect requires.
	ErrInputDimension = errors.New("input dimension mismatch")
)

// Slot is a named accumulation point of a mesh's shader graph.
type Slot uint8

const (
	// SlotTransform is the object space vertex position (vec3).
	SlotTransform Slot = iota
	// SlotColor is the fragment color (vec3).
	SlotColor
	// SlotAlpha is the fragment opacity (float).
	SlotAlpha
	numSlots
)

func (s Slot) String() string {
	switch s {
	case SlotTransform:
		return "transform"
	case SlotColor:
		return "color"
	case SlotAlpha:
		return "alpha"
	}
	return "Slot(" + strconv.Itoa(int(s)) + ")"
}

// Type returns the type of the expressions the slot holds.
func (s Slot) Type() glbuild.Type {
	if s == SlotAlpha {
		return glbuild.TypeFloat
	}
	return glbuild.TypeVec3
}

// Operation combines a slot's expression with a new contribution.
type Operation uint8

const (
	// OpAssign discards the existing expression.
	OpAssign Operation = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
)

func (op Operation) String() string {
	switch op {
	case OpAssign:
		return "assign"
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpDiv:
		return "div"
	}
	return "Operation(" + strconv.Itoa(int(op)) + ")"
}

func (op Operation) binary() glbuild.BinaryOp {
	switch op {
	case OpAdd:
		return glbuild.OpAdd
	case OpSub:
		return glbuild.OpSub
	case OpMul:
		return glbuild.OpMul
	case OpDiv:
		return glbuild.OpDiv
	}
	return 0
}

// SlotGraph holds the expressions of the transform, color and alpha slots.
// The zero value has all slots empty.
type SlotGraph struct {
	exprs [numSlots]glbuild.Node
}

// Expr returns the expression of slot s or nil if empty.
func (sg *SlotGraph) Expr(s Slot) glbuild.Node {
	if s >= numSlots {
		return nil
	}
	return sg.exprs[s]
}

// Combine sets the expression of slot s to op(E, c) where E is the current expression.
// OpAssign replaces E. Combining an empty slot with any other operation returns [ErrEmptySlot].
// The slot is unchanged on error.
func (sg *SlotGraph) Combine(s Slot, op Operation, c glbuild.Node) error {
	if s >= numSlots {
		return fmt.Errorf("invalid slot %s", s)
	} else if c == nil {
		return fmt.Errorf("nil %s contribution", s)
	} else if op > OpDiv {
		return fmt.Errorf("invalid operation %s", op)
	}
	want := s.Type()
	if op == OpAssign {
		if c.Type() != want {
			return fmt.Errorf("assign %s to %s slot: %w", c.Type(), s, glbuild.ErrTypeMismatch)
		}
		sg.exprs[s] = c
		return nil
	}
	e := sg.exprs[s]
	if e == nil {
		return fmt.Errorf("%s %s: %w", op, s, ErrEmptySlot)
	}
	res, err := glbuild.NewBinary(op.binary(), e, c)
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, s, err)
	} else if res.Type() != want {
		return fmt.Errorf("%s %s results in %s: %w", op, s, res.Type(), glbuild.ErrTypeMismatch)
	}
	sg.exprs[s] = res
	return nil
}
