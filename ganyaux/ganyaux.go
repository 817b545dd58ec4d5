// Package ganyaux provides auxiliary tooling to get a gany scene on screen: an
// OpenGL viewer with mouse orbit, a demo scene, headless shader dumps and viewer
// configuration files that are reloaded while the viewer runs.
package ganyaux

import (
	"context"
	"log/slog"
)

// UIConfig configures [UI].
type UIConfig struct {
	// Width and Height of the window. Default to 800x600.
	Width, Height int
	Title         string
	// Context, if set, stops the UI when done.
	Context context.Context
	// Logger may be nil.
	Logger *slog.Logger
	// BeforeFrame, if set, is called on the render goroutine before every frame.
	// Returning an error stops the UI.
	BeforeFrame func() error
}

func (cfg *UIConfig) setDefaults() {
	if cfg.Width == 0 {
		cfg.Width = 800
	}
	if cfg.Height == 0 {
		cfg.Height = 600
	}
	if cfg.Title == "" {
		cfg.Title = "gany"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(discardHandler{})
	}
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
