package glrender

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/geometry/ms3"
)

// Names of the attributes every [Geometry] holds.
const (
	AttribPosition = "position"
	AttribNormal   = "normal"
)

type attribute struct {
	data  []float32
	ncomp int
}

// Geometry holds vertex buffers shared by meshes. Buffers are mutated in place
// and every mutation increments the version so renderers know to re-upload.
type Geometry struct {
	attrs   map[string]attribute
	indices []uint32
	nverts  int
	points  bool
	version uint64
}

// NewGeometry returns geometry with the given vertex positions. A nil index buffer
// draws vertices as consecutive triangles. Normals are computed from the triangles.
func NewGeometry(positions []ms3.Vec, indices []uint32) (*Geometry, error) {
	g := &Geometry{attrs: make(map[string]attribute)}
	err := g.SetPositions(positions)
	if err != nil {
		return nil, err
	}
	err = g.SetIndices(indices)
	if err != nil {
		return nil, err
	}
	g.ComputeVertexNormals()
	return g, nil
}

// NewPointGeometry returns geometry drawn as points, one per vertex. It has no
// triangles and its normals are zero.
func NewPointGeometry(positions []ms3.Vec) (*Geometry, error) {
	g := &Geometry{attrs: make(map[string]attribute), points: true}
	err := g.SetPositions(positions)
	if err != nil {
		return nil, err
	}
	g.ComputeVertexNormals()
	return g, nil
}

// IsPoints returns true for geometry created by [NewPointGeometry].
func (g *Geometry) IsPoints() bool { return g.points }

// Version returns the mutation counter of the geometry.
func (g *Geometry) Version() uint64 { return g.version }

func (g *Geometry) NumVertices() int { return g.nverts }

// SetPositions replaces vertex positions. Attributes sized for a different
// vertex count are removed, normals are kept only if the count is unchanged.
func (g *Geometry) SetPositions(positions []ms3.Vec) error {
	if len(positions) == 0 {
		return errors.New("empty vertex positions")
	}
	data := make([]float32, 0, 3*len(positions))
	for _, p := range positions {
		data = append(data, p.X, p.Y, p.Z)
	}
	if len(positions) != g.nverts {
		for name, attr := range g.attrs {
			if len(attr.data) != attr.ncomp*len(positions) {
				delete(g.attrs, name)
			}
		}
		if len(g.indices) > 0 && slices.Max(g.indices) >= uint32(len(positions)) {
			g.indices = nil
		}
	}
	g.nverts = len(positions)
	g.attrs[AttribPosition] = attribute{data: data, ncomp: 3}
	g.version++
	return nil
}

// Position returns the i'th vertex position.
func (g *Geometry) Position(i int) ms3.Vec {
	d := g.attrs[AttribPosition].data[3*i:]
	return ms3.Vec{X: d[0], Y: d[1], Z: d[2]}
}

// Normal returns the i'th vertex normal.
func (g *Geometry) Normal(i int) ms3.Vec {
	d := g.attrs[AttribNormal].data[3*i:]
	return ms3.Vec{X: d[0], Y: d[1], Z: d[2]}
}

// SetIndices replaces the triangle index buffer with a copy of indices.
// A nil buffer makes the geometry non-indexed.
func (g *Geometry) SetIndices(indices []uint32) error {
	if g.points && indices != nil {
		return errors.New("point geometry is not indexed")
	}
	if indices == nil {
		if !g.points && g.nverts%3 != 0 {
			return fmt.Errorf("non-indexed geometry requires vertex count multiple of 3, got %d", g.nverts)
		}
		g.indices = nil
		g.version++
		return nil
	}
	if len(indices)%3 != 0 {
		return fmt.Errorf("index count %d not multiple of 3", len(indices))
	}
	for _, idx := range indices {
		if idx >= uint32(g.nverts) {
			return fmt.Errorf("index %d out of range for %d vertices", idx, g.nverts)
		}
	}
	// Sorting reorders the buffer in place.
	g.indices = make([]uint32, len(indices))
	copy(g.indices, indices)
	g.version++
	return nil
}

// Indices returns the index buffer or nil for non-indexed geometry. The returned
// slice is shared and must be modified only through geometry methods.
func (g *Geometry) Indices() []uint32 { return g.indices }

// NumTriangles returns the number of triangles drawn.
func (g *Geometry) NumTriangles() int {
	if g.points {
		return 0
	}
	if g.indices == nil {
		return g.nverts / 3
	}
	return len(g.indices) / 3
}

// Triangle returns the vertex indices of the i'th triangle.
func (g *Geometry) Triangle(i int) [3]uint32 {
	if g.indices == nil {
		return [3]uint32{uint32(3 * i), uint32(3*i + 1), uint32(3*i + 2)}
	}
	return [3]uint32{g.indices[3*i], g.indices[3*i+1], g.indices[3*i+2]}
}

// SetAttribute sets a per-vertex attribute of ncomp components per vertex.
func (g *Geometry) SetAttribute(name string, data []float32, ncomp int) error {
	if ncomp < 1 || ncomp > 4 {
		return fmt.Errorf("attribute %q: invalid component count %d", name, ncomp)
	} else if len(data) != ncomp*g.nverts {
		return fmt.Errorf("attribute %q: want %d values for %d vertices, got %d", name, ncomp*g.nverts, g.nverts, len(data))
	} else if name == AttribPosition {
		return errors.New("use SetPositions to set vertex positions")
	}
	g.attrs[name] = attribute{data: data, ncomp: ncomp}
	g.version++
	return nil
}

// RemoveAttribute deletes the named attribute.
func (g *Geometry) RemoveAttribute(name string) {
	if name == AttribPosition {
		return
	}
	delete(g.attrs, name)
	g.version++
}

// Attribute returns the named attribute data. Implements [gleval.VertexSource].
func (g *Geometry) Attribute(name string) (data []float32, ncomp int, ok bool) {
	attr, ok := g.attrs[name]
	return attr.data, attr.ncomp, ok
}

// AttributeNames returns the names of the geometry's attributes in sorted order.
func (g *Geometry) AttributeNames() []string {
	names := make([]string, 0, len(g.attrs))
	for name := range g.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ComputeVertexNormals sets the normal attribute to area weighted averages of the
// normals of the triangles sharing each vertex.
func (g *Geometry) ComputeVertexNormals() {
	normals := make([]float32, 3*g.nverts)
	vec := func(i uint32) mgl32.Vec3 {
		p := g.Position(int(i))
		return mgl32.Vec3{p.X, p.Y, p.Z}
	}
	for i := 0; i < g.NumTriangles(); i++ {
		tri := g.Triangle(i)
		a, b, c := vec(tri[0]), vec(tri[1]), vec(tri[2])
		n := b.Sub(a).Cross(c.Sub(a))
		for _, idx := range tri {
			normals[3*idx] += n[0]
			normals[3*idx+1] += n[1]
			normals[3*idx+2] += n[2]
		}
	}
	for i := 0; i < len(normals); i += 3 {
		n := mgl32.Vec3{normals[i], normals[i+1], normals[i+2]}
		if l := n.Len(); l > 0 {
			n = n.Mul(1 / l)
		}
		copy(normals[i:], n[:])
	}
	g.attrs[AttribNormal] = attribute{data: normals, ncomp: 3}
	g.version++
}

// Bounds returns the axis aligned bounding box of the vertex positions.
func (g *Geometry) Bounds() ms3.Box {
	bb := ms3.Box{Min: g.Position(0), Max: g.Position(0)}
	for i := 1; i < g.nverts; i++ {
		p := g.Position(i)
		bb.Min = ms3.Vec{X: math32.Min(bb.Min.X, p.X), Y: math32.Min(bb.Min.Y, p.Y), Z: math32.Min(bb.Min.Z, p.Z)}
		bb.Max = ms3.MaxElem(bb.Max, p)
	}
	return bb
}

// BoundingSphere returns a sphere centered on the bounding box containing all vertices.
func (g *Geometry) BoundingSphere() Sphere {
	bb := g.Bounds()
	center := ms3.Scale(0.5, ms3.Add(bb.Min, bb.Max))
	var r2 float32
	for i := 0; i < g.nverts; i++ {
		d := ms3.Sub(g.Position(i), center)
		r2 = math32.Max(r2, ms3.Dot(d, d))
	}
	return Sphere{Center: center, Radius: math32.Sqrt(r2)}
}

// SortTriangles reorders the index buffer in place so that triangles farthest from
// eye, given in object space, come first. The sort is stable and recomputed from scratch each call. Non-indexed
// geometry is given an index buffer.
func (g *Geometry) SortTriangles(eye ms3.Vec) {
	if g.points {
		return
	}
	ntri := g.NumTriangles()
	if g.indices == nil {
		g.indices = make([]uint32, 3*ntri)
		for i := range g.indices {
			g.indices[i] = uint32(i)
		}
	}
	type keyed struct {
		dist float32
		tri  [3]uint32
	}
	tris := make([]keyed, ntri)
	for i := range tris {
		tri := g.Triangle(i)
		centroid := ms3.Scale(1./3, ms3.Add(g.Position(int(tri[0])), ms3.Add(g.Position(int(tri[1])), g.Position(int(tri[2])))))
		d := ms3.Sub(centroid, eye)
		tris[i] = keyed{dist: ms3.Dot(d, d), tri: tri}
	}
	sort.SliceStable(tris, func(i, j int) bool { return tris[i].dist > tris[j].dist })
	for i, t := range tris {
		copy(g.indices[3*i:], t.tri[:])
	}
	g.version++
}

// Sphere is a bounding sphere.
type Sphere struct {
	Center ms3.Vec
	Radius float32
}

// Transform returns the sphere transformed by a model matrix. The radius is scaled by the
// largest axis scale of the matrix.
func (s Sphere) Transform(model mgl32.Mat4) Sphere {
	c := mgl32.TransformCoordinate(mgl32.Vec3{s.Center.X, s.Center.Y, s.Center.Z}, model)
	var scale float32
	for i := 0; i < 3; i++ {
		scale = math32.Max(scale, model.Col(i).Vec3().Len())
	}
	return Sphere{Center: ms3.Vec{X: c[0], Y: c[1], Z: c[2]}, Radius: s.Radius * scale}
}
