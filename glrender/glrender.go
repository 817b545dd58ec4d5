// Package glrender holds the rendering resources meshes are drawn with: geometry
// buffers, textures, render targets and their pool, cameras and renderers.
package glrender

import (
	"context"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/gany/glbuild"
)

// DrawItem is a single draw call: a compiled program applied to geometry.
type DrawItem struct {
	Geometry *Geometry
	Program  *glbuild.Program
	Material Material
	Model    mgl32.Mat4
}

// Drawable is a collection of draw calls. Only visible items are appended.
type Drawable interface {
	AppendDrawItems(dst []DrawItem) []DrawItem
}

// DrawItems is a Drawable made of a fixed list of items.
type DrawItems []DrawItem

func (d DrawItems) AppendDrawItems(dst []DrawItem) []DrawItem { return append(dst, d...) }

// Renderer draws [Drawable]s into the current render target.
type Renderer interface {
	// SetRenderTarget selects the target draws and clears write to. nil selects the screen.
	SetRenderTarget(rt *RenderTarget)
	RenderTarget() *RenderTarget
	SetClearColor(rgba [4]float32)
	ClearColor() [4]float32
	// Clear clears color and depth of the current render target.
	Clear() error
	// Render draws d as seen by cam into the current render target.
	Render(d Drawable, cam Camera) error
	// ViewportSize returns the size of the screen framebuffer.
	ViewportSize() (width, height int)
}

// Frame is the context of the frame about to be drawn, handed to pre-render hooks.
type Frame struct {
	Scene      Drawable
	Camera     Camera
	ClearColor [4]float32
}

// SortTransparent orders draw items so opaque items are drawn first. The order of
// items within each group is preserved.
func SortTransparent(items []DrawItem) {
	opaque := 0
	for i := range items {
		if !items[i].Material.Transparent {
			it := items[i]
			copy(items[opaque+1:i+1], items[opaque:i])
			items[opaque] = it
			opaque++
		}
	}
}

// GLRendererConfig configures the OpenGL renderer.
type GLRendererConfig struct {
	// Width and Height of the screen framebuffer in pixels.
	Width, Height int
	// Logger receives program compilation and resource allocation events. May be nil.
	Logger *slog.Logger
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
