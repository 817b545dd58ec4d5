package gany

import (
	"errors"
	"fmt"

	"github.com/soypat/gany/glbuild"
)

// Effect is a chain stage: a block drawing its parent's geometry with meshes whose
// slots it contributes to, reading an input from the parent's data.
type Effect interface {
	Blocker
	// Parent returns the block the effect is chained on.
	Parent() *Block
	// InputDimension returns the number of input components the effect requires.
	// Zero means the effect reads no input.
	InputDimension() int
	Input() Input
	// SetInput replaces the effect's input. The dimension of in must equal InputDimension.
	SetInput(in Input) error
	// Slots returns the slots the effect contributes to.
	Slots() []Slot
	// Rebuild recompiles the effect's meshes.
	Rebuild() error
}

// chain is the state shared by every effect: the parent, the input and the meshes
// the effect owns. Meshes are copies of the parent's meshes and share its geometry.
type chain struct {
	block  *Block
	parent *Block
	dim    int
	input  Input
	// inputRef is the node effects read the input through. Replacing the
	// input re-points it without touching the slot expressions.
	inputRef    *glbuild.Ref
	initialized bool
}

// newChain validates in against dim and creates the effect block. No state is
// created on validation failure. kind, if given, overrides the material kind of
// the copied meshes.
func newChain(parent Blocker, in Input, dim int, kind ...glbuild.MaterialKind) (*chain, error) {
	if parent == nil {
		return nil, errors.New("nil parent block")
	}
	p := parent.AsBlock()
	if p.disposed {
		return nil, errors.New("parent block disposed")
	}
	c := &chain{parent: p, dim: dim}
	if dim > 0 {
		node, err := c.inputNode(in)
		if err != nil {
			return nil, err
		}
		c.input = in
		c.inputRef = glbuild.NewRef(node)
	}
	b := newBlock(p.shared)
	b.derived = true
	b.position, b.scale = p.position, p.scale
	b.lastCamera = p.lastCamera
	for _, m := range p.meshes {
		b.meshes = append(b.meshes, m.Copy(kind...))
	}
	c.block = b
	// No new geometry, forward the parent's notification.
	c.subscribe(p.GeometryChanged.Subscribe(func(*Block) { b.GeometryChanged.Publish(b) }))
	c.subscribe(p.TransformChanged.Subscribe(func(p *Block) {
		b.position, b.scale = p.position, p.scale
		b.updateMatrix()
	}))
	c.subscribe(p.CameraMoveEnd.Subscribe(b.HandleCameraMoveEnd))
	return c, nil
}

func (c *chain) inputNode(in Input) (glbuild.Node, error) {
	if in.Dimension() != c.dim {
		return nil, fmt.Errorf("effect requires %d components, input %s has %d: %w", c.dim, in, in.Dimension(), ErrInputDimension)
	}
	for _, name := range in.AttributeNames() {
		if _, _, ok := c.parent.shared.geom.Attribute(name); !ok {
			return nil, fmt.Errorf("input %s: attribute %q not in geometry", in, name)
		}
	}
	return in.Node()
}

func (c *chain) subscribe(unsub func()) { c.block.unsubs = append(c.block.unsubs, unsub) }

func (c *chain) AsBlock() *Block { return c.block }

func (c *chain) Parent() *Block { return c.parent }

func (c *chain) InputDimension() int { return c.dim }

func (c *chain) Input() Input { return c.input }

// SetInput re-points the input node of the effect. Meshes are rebuilt only once
// the effect is initialized.
func (c *chain) SetInput(in Input) error {
	if c.dim == 0 {
		return errors.New("effect reads no input")
	}
	node, err := c.inputNode(in)
	if err != nil {
		return err
	}
	err = c.inputRef.Set(node)
	if err != nil {
		return err
	}
	c.input = in
	for _, m := range c.block.meshes {
		m.MarkNeedsRebuild()
	}
	if !c.initialized {
		return nil
	}
	return c.Rebuild()
}

// combine combines contribution n into slot s of every mesh the effect owns.
func (c *chain) combine(s Slot, op Operation, n glbuild.Node) error {
	for _, m := range c.block.meshes {
		err := m.Combine(s, op, n)
		if err != nil {
			return err
		}
	}
	return nil
}

// Rebuild recompiles every mesh of the effect.
func (c *chain) Rebuild() error {
	for _, m := range c.block.meshes {
		err := m.Rebuild()
		if err != nil {
			return err
		}
	}
	return nil
}

// init builds the effect's meshes and marks it initialized.
func (c *chain) init() error {
	err := c.Rebuild()
	if err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// Initialized reports whether the effect finished construction.
func (c *chain) Initialized() bool { return c.initialized }
