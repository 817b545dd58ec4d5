package glrender

import (
	"errors"
)

// CommandKind enumerates the commands a [Recorder] records.
type CommandKind uint8

const (
	CmdClear CommandKind = iota + 1
	CmdDraw
)

func (k CommandKind) String() string {
	switch k {
	case CmdClear:
		return "clear"
	case CmdDraw:
		return "draw"
	}
	return "unknown"
}

// Command is a recorded renderer command.
type Command struct {
	Kind CommandKind
	// Target is the render target written. nil is the screen.
	Target     *RenderTarget
	ClearColor [4]float32
	Items      []DrawItem
	Camera     Camera
}

// Recorder is a [Renderer] that records commands instead of issuing them to a GPU.
// It is used to test render pipelines and to inspect the passes of a frame.
type Recorder struct {
	target        *RenderTarget
	clear         [4]float32
	width, height int
	commands      []Command
	writes        map[*RenderTarget]int
	// FailDraw, if set, is returned by Render.
	FailDraw error
}

// NewRecorder returns a recorder with a screen of the given size.
func NewRecorder(width, height int) *Recorder {
	return &Recorder{width: width, height: height, writes: make(map[*RenderTarget]int)}
}

func (r *Recorder) SetRenderTarget(rt *RenderTarget) { r.target = rt }

func (r *Recorder) RenderTarget() *RenderTarget { return r.target }

func (r *Recorder) SetClearColor(rgba [4]float32) { r.clear = rgba }

func (r *Recorder) ClearColor() [4]float32 { return r.clear }

func (r *Recorder) Clear() error {
	r.commands = append(r.commands, Command{Kind: CmdClear, Target: r.target, ClearColor: r.clear})
	r.writes[r.target]++
	return nil
}

func (r *Recorder) Render(d Drawable, cam Camera) error {
	if d == nil || cam == nil {
		return errors.New("nil drawable or camera")
	}
	if r.FailDraw != nil {
		return r.FailDraw
	}
	items := d.AppendDrawItems(nil)
	for _, it := range items {
		if it.Geometry == nil || it.Program == nil {
			return errors.New("draw item missing geometry or program")
		}
	}
	SortTransparent(items)
	r.commands = append(r.commands, Command{Kind: CmdDraw, Target: r.target, Items: items, Camera: cam})
	r.writes[r.target]++
	return nil
}

// SetViewportSize sets the screen size returned by ViewportSize.
func (r *Recorder) SetViewportSize(width, height int) { r.width, r.height = width, height }

func (r *Recorder) ViewportSize() (width, height int) { return r.width, r.height }

// Commands returns the commands recorded since the last [Recorder.Reset].
func (r *Recorder) Commands() []Command { return r.commands }

// Writes returns the number of clears and draws issued to rt since the last Reset. nil is the screen.
func (r *Recorder) Writes(rt *RenderTarget) int { return r.writes[rt] }

// Reset discards recorded commands.
func (r *Recorder) Reset() {
	r.commands = r.commands[:0]
	clear(r.writes)
}
