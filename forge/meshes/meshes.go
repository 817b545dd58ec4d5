// Package meshes generates vertex and triangle index buffers of simple surfaces
// along with per-vertex scalar fields to feed data-driven effects.
package meshes

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// Surface is a triangulated surface ready to create a block.
type Surface struct {
	Vertices []ms3.Vec
	// Indices are counter clockwise triangles, three per triangle.
	Indices []uint32
}

// Grid is a rectangular plane of NX by NY quads in the XY plane centered at the origin.
type Grid struct {
	Width, Height float32
	NX, NY        int
}

// Surface returns the triangulated grid. Its normals face +Z.
func (g Grid) Surface() (Surface, error) {
	if g.NX < 1 || g.NY < 1 {
		return Surface{}, fmt.Errorf("grid needs at least one quad per axis, got %dx%d", g.NX, g.NY)
	} else if g.Width <= 0 || g.Height <= 0 {
		return Surface{}, errors.New("grid dimensions must be positive")
	}
	var s Surface
	s.Vertices = make([]ms3.Vec, 0, (g.NX+1)*(g.NY+1))
	for j := 0; j <= g.NY; j++ {
		y := g.Height * (float32(j)/float32(g.NY) - 0.5)
		for i := 0; i <= g.NX; i++ {
			x := g.Width * (float32(i)/float32(g.NX) - 0.5)
			s.Vertices = append(s.Vertices, ms3.Vec{X: x, Y: y})
		}
	}
	row := uint32(g.NX + 1)
	s.Indices = make([]uint32, 0, 6*g.NX*g.NY)
	for j := uint32(0); j < uint32(g.NY); j++ {
		for i := uint32(0); i < uint32(g.NX); i++ {
			a := j*row + i
			b, c, d := a+1, a+row+1, a+row
			s.Indices = append(s.Indices, a, b, c, a, c, d)
		}
	}
	return s, nil
}

// UVSphere is a sphere of Rings latitude bands and Segments longitude bands.
type UVSphere struct {
	Center   ms3.Vec
	Radius   float32
	Rings    int
	Segments int
}

// Surface returns the triangulated sphere. The poles are single vertices.
func (u UVSphere) Surface() (Surface, error) {
	if u.Rings < 2 || u.Segments < 3 {
		return Surface{}, fmt.Errorf("sphere needs at least 2 rings and 3 segments, got %d and %d", u.Rings, u.Segments)
	} else if u.Radius <= 0 {
		return Surface{}, errors.New("sphere radius must be positive")
	}
	var s Surface
	s.Vertices = append(s.Vertices, ms3.Add(u.Center, ms3.Vec{Z: u.Radius}))
	for r := 1; r < u.Rings; r++ {
		theta := math32.Pi * float32(r) / float32(u.Rings)
		sinT, cosT := math32.Sin(theta), math32.Cos(theta)
		for seg := 0; seg < u.Segments; seg++ {
			phi := 2 * math32.Pi * float32(seg) / float32(u.Segments)
			sinP, cosP := math32.Sin(phi), math32.Cos(phi)
			p := ms3.Vec{X: sinT * cosP, Y: sinT * sinP, Z: cosT}
			s.Vertices = append(s.Vertices, ms3.Add(u.Center, ms3.Scale(u.Radius, p)))
		}
	}
	s.Vertices = append(s.Vertices, ms3.Add(u.Center, ms3.Vec{Z: -u.Radius}))
	south := uint32(len(s.Vertices) - 1)
	nseg := uint32(u.Segments)
	ring := func(r, seg uint32) uint32 { return 1 + r*nseg + seg%nseg }
	for seg := uint32(0); seg < nseg; seg++ {
		s.Indices = append(s.Indices, 0, ring(0, seg), ring(0, seg+1))
	}
	for r := uint32(0); r < uint32(u.Rings-2); r++ {
		for seg := uint32(0); seg < nseg; seg++ {
			a, b := ring(r, seg), ring(r, seg+1)
			c, d := ring(r+1, seg+1), ring(r+1, seg)
			s.Indices = append(s.Indices, a, d, c, a, c, b)
		}
	}
	last := uint32(u.Rings - 2)
	for seg := uint32(0); seg < nseg; seg++ {
		s.Indices = append(s.Indices, south, ring(last, seg+1), ring(last, seg))
	}
	return s, nil
}

// Field evaluates fn at every vertex.
func Field(vertices []ms3.Vec, fn func(p ms3.Vec) float32) []float32 {
	values := make([]float32, len(vertices))
	for i, v := range vertices {
		values[i] = fn(v)
	}
	return values
}

// Wave returns a radial standing wave of the given amplitude and wavelength centered at the origin.
func Wave(amplitude, wavelength float32) func(p ms3.Vec) float32 {
	k := 2 * math32.Pi / wavelength
	return func(p ms3.Vec) float32 {
		r := math32.Hypot(p.X, p.Y)
		return amplitude * math32.Cos(k*r)
	}
}

// Depth returns the signed distance of points below the plane z=level. Points above
// the plane have negative depth.
func Depth(level float32) func(p ms3.Vec) float32 {
	return func(p ms3.Vec) float32 { return level - p.Z }
}
