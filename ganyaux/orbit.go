package ganyaux

import (
	"time"

	"github.com/chewxy/math32"
	"github.com/soypat/gany/glrender"
	"github.com/soypat/geometry/ms3"
)

const defaultMoveEndDelay = 300 * time.Millisecond

// Orbit tracks mouse driven orbit and zoom of a camera around a target and
// detects when the camera stops moving.
type Orbit struct {
	Yaw, Pitch float32
	Dist       float32
	MinDist    float32
	MaxDist    float32
	// Sensitivity is the rotation in radians per pixel dragged.
	Sensitivity float32
	// MoveEndDelay is the idle time after which a move is considered finished.
	MoveEndDelay time.Duration

	pressed   bool
	firstMove bool
	lastX     float64
	lastY     float64
	lastEdit  time.Time
	moving    bool
}

// NewOrbit returns an orbit framing a sphere of the given radius.
func NewOrbit(radius float32) *Orbit {
	if radius <= 0 {
		radius = 1
	}
	return &Orbit{
		Pitch:        0.5,
		Dist:         3 * radius,
		MinDist:      radius * 0.01,
		MaxDist:      radius * 30,
		Sensitivity:  0.005,
		MoveEndDelay: defaultMoveEndDelay,
	}
}

// Press starts or stops a drag.
func (o *Orbit) Press(pressed bool, now time.Time) {
	o.pressed = pressed
	o.firstMove = pressed
	o.edit(now)
}

// Pressed reports whether a drag is in progress.
func (o *Orbit) Pressed() bool { return o.pressed }

// CursorMoved rotates the orbit while a drag is in progress.
func (o *Orbit) CursorMoved(x, y float64, now time.Time) {
	if !o.pressed {
		return
	}
	if o.firstMove {
		o.lastX, o.lastY = x, y
		o.firstMove = false
	}
	o.Yaw += float32(x-o.lastX) * o.Sensitivity
	o.Pitch -= float32(y-o.lastY) * o.Sensitivity // Invert y-axis.
	const maxPitch = math32.Pi/2 - 0.01
	o.Pitch = math32.Max(-maxPitch, math32.Min(maxPitch, o.Pitch))
	o.lastX, o.lastY = x, y
	o.edit(now)
}

// Scroll zooms in for positive offsets.
func (o *Orbit) Scroll(yoff float64, now time.Time) {
	o.Dist -= float32(yoff) * (o.Dist*.1 + .01)
	o.Dist = math32.Max(o.MinDist, math32.Min(o.MaxDist, o.Dist))
	o.edit(now)
}

func (o *Orbit) edit(now time.Time) {
	o.lastEdit = now
	o.moving = true
}

// MoveEnded reports once per move whether the camera has been idle for
// MoveEndDelay with no drag in progress.
func (o *Orbit) MoveEnded(now time.Time) bool {
	if !o.moving || o.pressed || now.Sub(o.lastEdit) < o.MoveEndDelay {
		return false
	}
	o.moving = false
	return true
}

// Apply places cam on the orbit around center.
func (o *Orbit) Apply(cam *glrender.PerspectiveCamera, center ms3.Vec) {
	cam.Center = center
	cam.Orbit(o.Yaw, o.Pitch, o.Dist)
	cam.Far = 4 * o.MaxDist
}
