//go:build tinygo || !cgo

package gleval

import (
	"errors"

	"github.com/soypat/gany/glbuild"
)

var errNoCGO = errors.New("GPU evaluation requires CGo and is not supported on TinyGo")

func Init1x1GLFW() (terminate func(), err error) {
	return nil, errNoCGO
}

// GPUEvaluator evaluates node graphs with compute shaders. Unavailable without CGo.
type GPUEvaluator struct{}

func NewGPUEvaluator(src VertexSource, cfg Config, invocX int) (*GPUEvaluator, error) {
	return nil, errNoCGO
}

func (e *GPUEvaluator) Evaluate(root glbuild.Node, dst []float32) error { return errNoCGO }

func (e *GPUEvaluator) Delete() {}
