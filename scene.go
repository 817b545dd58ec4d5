package gany

import (
	"context"
	"errors"
	"log/slog"

	"github.com/soypat/gany/glrender"
	"github.com/soypat/geometry/ms3"
)

// Scene is an ordered collection of blocks. Pre-render hooks run in the order blocks
// were added, before the main draw.
type Scene struct {
	blocks []Blocker
	// ClearColor is the background of the frame.
	ClearColor [4]float32
}

var _ glrender.Drawable = (*Scene)(nil)

func NewScene() *Scene {
	return &Scene{}
}

// AddBlock adds b to the scene. Adding a block twice is an error.
func (s *Scene) AddBlock(b Blocker) error {
	if b == nil || b.AsBlock() == nil {
		return errors.New("nil block")
	}
	for _, other := range s.blocks {
		if other.AsBlock() == b.AsBlock() {
			return errors.New("block already in scene")
		}
	}
	s.blocks = append(s.blocks, b)
	return nil
}

// Blocks returns the blocks of the scene in registration order.
func (s *Scene) Blocks() []Blocker { return s.blocks }

// AppendDrawItems implements [glrender.Drawable].
func (s *Scene) AppendDrawItems(dst []glrender.DrawItem) []glrender.DrawItem {
	for _, b := range s.blocks {
		dst = b.AsBlock().AppendDrawItems(dst)
	}
	return dst
}

// Rebuild recompiles every mesh of the scene whose program is stale.
func (s *Scene) Rebuild() error {
	for _, b := range s.blocks {
		err := b.AsBlock().rebuildStale()
		if err != nil {
			return err
		}
	}
	return nil
}

// BeforeRender runs the pre-render hook of every block in registration order.
// It stops at the first error.
func (s *Scene) BeforeRender(r glrender.Renderer, cam glrender.Camera) error {
	f := glrender.Frame{Scene: s, Camera: cam, ClearColor: s.ClearColor}
	for _, b := range s.blocks {
		err := b.AsBlock().BeforeRender(r, f)
		if err != nil {
			return err
		}
	}
	return nil
}

// Render draws a frame to the screen: stale meshes are rebuilt, hooks are run
// and the scene is drawn as seen by cam.
func (s *Scene) Render(r glrender.Renderer, cam glrender.Camera) error {
	if r == nil || cam == nil {
		return errors.New("nil renderer or camera")
	}
	err := s.Rebuild()
	if err != nil {
		return err
	}
	err = s.BeforeRender(r, cam)
	if err != nil {
		return err
	}
	r.SetRenderTarget(nil)
	r.SetClearColor(s.ClearColor)
	err = r.Clear()
	if err != nil {
		return err
	}
	return r.Render(s, cam)
}

// BoundingSphere returns a sphere enclosing the blocks of the scene.
func (s *Scene) BoundingSphere() glrender.Sphere {
	var sphere glrender.Sphere
	for i, b := range s.blocks {
		bs := b.AsBlock().BoundingSphere()
		if i == 0 {
			sphere = bs
		} else {
			sphere = enclose(sphere, bs)
		}
	}
	return sphere
}

// HandleCameraMoveEnd notifies every block that the camera stopped at cameraPosition.
func (s *Scene) HandleCameraMoveEnd(cameraPosition ms3.Vec) {
	for _, b := range s.blocks {
		b.AsBlock().HandleCameraMoveEnd(cameraPosition)
	}
}

// Dispose disposes every block of the scene and empties it.
func (s *Scene) Dispose() {
	for _, b := range s.blocks {
		b.AsBlock().Dispose()
	}
	s.blocks = nil
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
