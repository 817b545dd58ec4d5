//go:build tinygo || !cgo

package glrender

import "errors"

// GLRenderer is unavailable without cgo. See the cgo build of this package.
type GLRenderer struct {
	Recorder
}

// NewGLRenderer returns an error: OpenGL requires cgo.
func NewGLRenderer(cfg GLRendererConfig) (*GLRenderer, error) {
	return nil, errors.New("GLRenderer requires cgo")
}

func (r *GLRenderer) SetViewportSize(width, height int) { r.Recorder.SetViewportSize(width, height) }

func (r *GLRenderer) ReadTarget(rt *RenderTarget) error {
	return errors.New("GLRenderer requires cgo")
}

func (r *GLRenderer) Delete() {}
