package gany

import (
	"errors"
	"fmt"

	"github.com/soypat/gany/glbuild"
)

// Component is a named per-vertex scalar channel.
type Component struct {
	Name  string
	Array []float32
}

// Data is a named group of components, i.e. a scalar field (one component) or a
// vector field (one component per axis).
type Data struct {
	Name       string
	Components []Component
}

// attributeName returns the shader attribute identifier of a data component.
func attributeName(data, component string) string {
	return glbuild.SanitizeIdent(data + "_" + component)
}

// Input references components of a block's data an effect reads. Its dimension is
// the number of components: 1 for scalar inputs, 3 for vector inputs.
type Input struct {
	data       string
	components []string
}

// Dimension returns the number of components of the input.
func (in Input) Dimension() int { return len(in.components) }

// DataName returns the name of the data the input reads.
func (in Input) DataName() string { return in.data }

// Components returns the names of the components the input reads.
func (in Input) Components() []string { return in.components }

func (in Input) String() string {
	return fmt.Sprintf("%s%v", in.data, in.components)
}

// AttributeNames returns the shader attribute identifiers of the input's components.
func (in Input) AttributeNames() []string {
	names := make([]string, len(in.components))
	for i, comp := range in.components {
		names[i] = attributeName(in.data, comp)
	}
	return names
}

// Node returns the node graph reading the input: a float attribute for scalar
// inputs and a vec3 constructed from three attributes for vector inputs.
func (in Input) Node() (glbuild.Node, error) {
	var attrs []glbuild.Node
	for _, name := range in.AttributeNames() {
		attr, err := glbuild.NewAttribute(name, glbuild.TypeFloat)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	switch len(attrs) {
	case 1:
		return attrs[0], nil
	case 3:
		return glbuild.NewConstruct(glbuild.TypeVec3, attrs...)
	case 0:
		return nil, errors.New("empty input")
	}
	return nil, fmt.Errorf("input %s of dimension %d: %w", in, len(attrs), ErrInputDimension)
}
