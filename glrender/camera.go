package glrender

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/geometry/ms3"
)

// Camera provides the view and projection used to draw a frame.
type Camera interface {
	ViewMatrix() mgl32.Mat4
	ProjectionMatrix() mgl32.Mat4
	Position() ms3.Vec
}

func vec3(v ms3.Vec) mgl32.Vec3 { return mgl32.Vec3{v.X, v.Y, v.Z} }

func lookAt(eye, center, up ms3.Vec) mgl32.Mat4 {
	return mgl32.LookAtV(vec3(eye), vec3(center), vec3(up))
}

// PerspectiveCamera is a pinhole camera looking at Center.
type PerspectiveCamera struct {
	// FovY is the vertical field of view in radians.
	FovY   float32
	Aspect float32
	Near   float32
	Far    float32
	Eye    ms3.Vec
	Center ms3.Vec
	Up     ms3.Vec
}

// NewPerspectiveCamera returns a camera with 45 degree vertical field of view looking
// at the origin from eye.
func NewPerspectiveCamera(aspect float32, eye ms3.Vec) *PerspectiveCamera {
	return &PerspectiveCamera{
		FovY:   mgl32.DegToRad(45),
		Aspect: aspect,
		Near:   0.01,
		Far:    1000,
		Eye:    eye,
		Up:     ms3.Vec{Y: 1},
	}
}

func (c *PerspectiveCamera) ViewMatrix() mgl32.Mat4 { return lookAt(c.Eye, c.Center, c.Up) }

func (c *PerspectiveCamera) ProjectionMatrix() mgl32.Mat4 {
	return mgl32.Perspective(c.FovY, c.Aspect, c.Near, c.Far)
}

func (c *PerspectiveCamera) Position() ms3.Vec { return c.Eye }

// Orbit places the camera on a sphere of radius dist around Center given yaw and pitch angles in radians.
func (c *PerspectiveCamera) Orbit(yaw, pitch, dist float32) {
	dir := ms3.Vec{
		X: math32.Cos(pitch) * math32.Sin(yaw),
		Y: math32.Sin(pitch),
		Z: math32.Cos(pitch) * math32.Cos(yaw),
	}
	c.Eye = ms3.Add(c.Center, ms3.Scale(dist, dir))
}

// OrthographicCamera is a parallel projection camera, used to render from a directional light.
type OrthographicCamera struct {
	Left, Right float32
	Bottom, Top float32
	Near, Far   float32
	Eye         ms3.Vec
	Center      ms3.Vec
	Up          ms3.Vec
}

func (c *OrthographicCamera) ViewMatrix() mgl32.Mat4 { return lookAt(c.Eye, c.Center, c.Up) }

func (c *OrthographicCamera) ProjectionMatrix() mgl32.Mat4 {
	return mgl32.Ortho(c.Left, c.Right, c.Bottom, c.Top, c.Near, c.Far)
}

func (c *OrthographicCamera) Position() ms3.Vec { return c.Eye }

// FitSphere sets the camera frustum to tightly bound s when looking along direction dir.
func (c *OrthographicCamera) FitSphere(s Sphere, dir ms3.Vec) {
	r := s.Radius
	if r <= 0 {
		r = 1
	}
	dir = ms3.Unit(dir)
	c.Left, c.Right = -r, r
	c.Bottom, c.Top = -r, r
	c.Near, c.Far = 0, 2*r
	c.Center = s.Center
	c.Eye = ms3.Sub(s.Center, ms3.Scale(r, dir))
	c.Up = ms3.Vec{Y: 1}
	if math32.Abs(dir.Y) > 0.99 {
		c.Up = ms3.Vec{Z: 1}
	}
}
