//go:build !tinygo && cgo

package ganyaux

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/soypat/gany"
	"github.com/soypat/gany/glrender"
)

// UI opens a window drawing scene until it is closed. Dragging with the left mouse
// button orbits the camera and scrolling zooms. When the camera stops moving the
// scene is notified so transparent meshes are sorted again.
func UI(scene *gany.Scene, cfg UIConfig) error {
	cfg.setDefaults()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	window, term, err := startGLFW(cfg.Width, cfg.Height, cfg.Title)
	if err != nil {
		return err
	}
	defer term()
	r, err := glrender.NewGLRenderer(glrender.GLRendererConfig{
		Width:  cfg.Width,
		Height: cfg.Height,
		Logger: cfg.Logger,
	})
	if err != nil {
		return err
	}
	defer r.Delete()

	bounds := scene.BoundingSphere()
	orbit := NewOrbit(bounds.Radius)
	cam := glrender.NewPerspectiveCamera(float32(cfg.Width)/float32(cfg.Height), bounds.Center)
	orbit.Apply(cam, bounds.Center)
	scene.HandleCameraMoveEnd(cam.Position())

	refresh := true
	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		if orbit.Pressed() {
			orbit.CursorMoved(xpos, ypos, time.Now())
			refresh = true
		}
	})
	window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		orbit.Scroll(yoff, time.Now())
		refresh = true
	})
	window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft {
			return
		}
		switch action {
		case glfw.Press:
			orbit.Press(true, time.Now())
			window.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
		case glfw.Release:
			orbit.Press(false, time.Now())
			window.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
		}
		refresh = true
	})

	ctx := cfg.Context
	for !window.ShouldClose() {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		if cfg.BeforeFrame != nil {
			err = cfg.BeforeFrame()
			if err != nil {
				return err
			}
		}
		orbit.Apply(cam, bounds.Center)
		if orbit.MoveEnded(time.Now()) {
			scene.HandleCameraMoveEnd(cam.Position())
			cfg.Logger.Debug("camera move end", slog.Any("eye", cam.Position()))
		}
		width, height := window.GetFramebufferSize()
		r.SetViewportSize(width, height)
		start := time.Now()
		err = scene.Render(r, cam)
		if err != nil {
			return fmt.Errorf("rendering frame: %w", err)
		}
		window.SwapBuffers()
		cfg.Logger.Debug("frame", slog.Duration("elapsed", time.Since(start)))

		// Limit frame rate, redraw only on input or when a pipeline may need it.
		for {
			time.Sleep(time.Second / 60)
			glfw.PollEvents()
			if refresh || window.ShouldClose() || cfg.BeforeFrame != nil {
				refresh = false
				break
			} else if orbit.MoveEnded(time.Now()) {
				scene.HandleCameraMoveEnd(cam.Position())
				break
			}
		}
	}
	return nil
}

func startGLFW(width, height int, title string) (window *glfw.Window, term func(), err error) {
	if err := glfw.Init(); err != nil {
		return nil, nil, fmt.Errorf("initializing GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 6)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.Resizable, glfw.False)

	window, err = glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("creating GLFW window: %w", err)
	}
	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("initializing OpenGL: %w", err)
	}
	return window, glfw.Terminate, nil
}
