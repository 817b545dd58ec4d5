package gany

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/soypat/gany/glbuild"
	"github.com/soypat/gany/glrender"
	"github.com/soypat/geometry/ms3"
)

// Blocker is implemented by types that can be added to a [Scene].
type Blocker interface {
	AsBlock() *Block
}

// BeforeRenderFunc is a pre-render hook. It is called by the scene once per frame,
// before the main draw, with the renderer and the frame about to be drawn.
type BeforeRenderFunc func(r glrender.Renderer, f glrender.Frame) error

// blockGeometry is the geometry and data of a block, shared by the effects chained on it.
type blockGeometry struct {
	geom  *glrender.Geometry
	data  []*Data
	tetra []uint32
}

// Block is the base unit added to a scene: geometry with per-vertex data and the
// meshes drawing it. Effects are blocks too, sharing the geometry of the block they
// are chained on.
type Block struct {
	id      uuid.UUID
	shared  *blockGeometry
	derived bool
	meshes  []*Mesh

	position ms3.Vec
	scale    ms3.Vec

	// GeometryChanged is published when vertices, indices or data change.
	GeometryChanged Signal[*Block]
	// TransformChanged is published when the position or scale change.
	TransformChanged Signal[*Block]
	// CameraMoveEnd is published with the camera position when the camera stops moving.
	CameraMoveEnd Signal[ms3.Vec]

	lastCamera   ms3.Vec
	beforeRender BeforeRenderFunc
	attached     []Blocker
	unsubs       []func()
	disposed     bool
}

func newBlock(shared *blockGeometry) *Block {
	return &Block{
		id:     uuid.New(),
		shared: shared,
		scale:  ms3.Vec{X: 1, Y: 1, Z: 1},
	}
}

// NewPolyMesh returns a block drawing triangles. A nil triangleIndices draws
// consecutive vertex triples as triangles.
func NewPolyMesh(vertices []ms3.Vec, triangleIndices []uint32, data []*Data) (*Block, error) {
	g, err := glrender.NewGeometry(vertices, triangleIndices)
	if err != nil {
		return nil, err
	}
	return newDataBlock(g, data, glbuild.MaterialStandard)
}

// NewTetraMesh returns a block drawing a tetrahedral mesh. If triangleIndices is nil the
// boundary faces of the tetrahedra are drawn.
func NewTetraMesh(vertices []ms3.Vec, triangleIndices, tetrahedronIndices []uint32, data []*Data) (*Block, error) {
	if len(tetrahedronIndices)%4 != 0 {
		return nil, fmt.Errorf("tetrahedron index count %d not multiple of 4", len(tetrahedronIndices))
	}
	for _, idx := range tetrahedronIndices {
		if idx >= uint32(len(vertices)) {
			return nil, fmt.Errorf("tetrahedron index %d out of range for %d vertices", idx, len(vertices))
		}
	}
	if triangleIndices == nil {
		triangleIndices = boundaryFaces(tetrahedronIndices)
		if len(triangleIndices) == 0 {
			return nil, errors.New("tetrahedral mesh has no boundary faces")
		}
	}
	b, err := NewPolyMesh(vertices, triangleIndices, data)
	if err != nil {
		return nil, err
	}
	b.shared.tetra = tetrahedronIndices
	return b, nil
}

// boundaryFaces returns the faces of the tetrahedra not shared by two tetrahedra,
// wound with normals facing away from the opposing vertex of their tetrahedron
// given positive oriented tetrahedra.
func boundaryFaces(tetra []uint32) []uint32 {
	type face [3]uint32
	key := func(f face) face {
		k := f
		sort.Slice(k[:], func(i, j int) bool { return k[i] < k[j] })
		return k
	}
	count := make(map[face]int)
	var faces []face
	for t := 0; t < len(tetra); t += 4 {
		a, b, c, d := tetra[t], tetra[t+1], tetra[t+2], tetra[t+3]
		for _, f := range [4]face{{a, c, b}, {a, b, d}, {a, d, c}, {b, c, d}} {
			k := key(f)
			if count[k] == 0 {
				faces = append(faces, f)
			}
			count[k]++
		}
	}
	var indices []uint32
	for _, f := range faces {
		if count[key(f)] == 1 {
			indices = append(indices, f[:]...)
		}
	}
	return indices
}

// NewPointCloud returns a block drawing vertices as points.
func NewPointCloud(vertices []ms3.Vec, data []*Data) (*Block, error) {
	g, err := glrender.NewPointGeometry(vertices)
	if err != nil {
		return nil, err
	}
	return newDataBlock(g, data, glbuild.MaterialBasic)
}

func newDataBlock(g *glrender.Geometry, data []*Data, kind glbuild.MaterialKind) (*Block, error) {
	b := newBlock(&blockGeometry{geom: g})
	err := b.setData(data)
	if err != nil {
		return nil, err
	}
	mesh, err := NewMesh(g, kind)
	if err != nil {
		return nil, err
	}
	b.meshes = []*Mesh{mesh}
	err = mesh.Rebuild()
	if err != nil {
		return nil, err
	}
	return b, nil
}

// AsBlock implements [Blocker].
func (b *Block) AsBlock() *Block { return b }

// ID returns the unique identifier of the block.
func (b *Block) ID() uuid.UUID { return b.id }

// Geometry returns the block's geometry, shared with the effects chained on it.
func (b *Block) Geometry() *glrender.Geometry { return b.shared.geom }

// Data returns the block's per-vertex data.
func (b *Block) Data() []*Data { return b.shared.data }

// TetrahedronIndices returns the tetrahedra of a tetrahedral mesh or nil.
func (b *Block) TetrahedronIndices() []uint32 { return b.shared.tetra }

// Meshes returns the meshes drawing the block.
func (b *Block) Meshes() []*Mesh { return b.meshes }

// Input resolves the named components of the block's data into an effect input.
// If no components are named all components of the data are used.
func (b *Block) Input(dataName string, components ...string) (Input, error) {
	idx := slices.IndexFunc(b.shared.data, func(d *Data) bool { return d.Name == dataName })
	if idx < 0 {
		return Input{}, fmt.Errorf("data %q not found", dataName)
	}
	data := b.shared.data[idx]
	if len(components) == 0 {
		for _, comp := range data.Components {
			components = append(components, comp.Name)
		}
	}
	for _, name := range components {
		if !slices.ContainsFunc(data.Components, func(c Component) bool { return c.Name == name }) {
			return Input{}, fmt.Errorf("component %q not found in data %q", name, dataName)
		}
	}
	if len(components) != 1 && len(components) != 3 {
		return Input{}, fmt.Errorf("input of %d components of data %q: %w", len(components), dataName, ErrInputDimension)
	}
	return Input{data: dataName, components: slices.Clone(components)}, nil
}

func (b *Block) checkOwner(op string) error {
	if b.derived {
		return fmt.Errorf("%s: geometry is owned by the parent block", op)
	} else if b.disposed {
		return fmt.Errorf("%s: block disposed", op)
	}
	return nil
}

// SetVertices replaces vertex positions and recomputes normals. The vertex count may only
// change if the block has no data. Publishes GeometryChanged.
func (b *Block) SetVertices(vertices []ms3.Vec) error {
	err := b.checkOwner("set vertices")
	if err != nil {
		return err
	}
	g := b.shared.geom
	if len(vertices) != g.NumVertices() && len(b.shared.data) > 0 {
		return fmt.Errorf("set %d vertices on block with data of %d vertices", len(vertices), g.NumVertices())
	}
	err = g.SetPositions(vertices)
	if err != nil {
		return err
	}
	g.ComputeVertexNormals()
	b.GeometryChanged.Publish(b)
	return nil
}

// SetTriangleIndices replaces the triangle index buffer. A nil buffer makes the geometry
// non-indexed: vertices and data are duplicated so that each triangle has its own
// vertices. Publishes GeometryChanged.
func (b *Block) SetTriangleIndices(indices []uint32) error {
	err := b.checkOwner("set triangle indices")
	if err != nil {
		return err
	}
	g := b.shared.geom
	if g.IsPoints() {
		return errors.New("point cloud has no triangles")
	}
	if indices == nil && g.Indices() != nil {
		err = b.toNonIndexed()
	} else {
		err = g.SetIndices(indices)
	}
	if err != nil {
		return err
	}
	g.ComputeVertexNormals()
	b.GeometryChanged.Publish(b)
	return nil
}

func (b *Block) toNonIndexed() error {
	g := b.shared.geom
	old := g.Indices()
	positions := make([]ms3.Vec, len(old))
	for i, idx := range old {
		positions[i] = g.Position(int(idx))
	}
	data := make([]*Data, len(b.shared.data))
	for i, d := range b.shared.data {
		nd := &Data{Name: d.Name, Components: make([]Component, len(d.Components))}
		for j, comp := range d.Components {
			arr := make([]float32, len(old))
			for k, idx := range old {
				arr[k] = comp.Array[idx]
			}
			nd.Components[j] = Component{Name: comp.Name, Array: arr}
		}
		data[i] = nd
	}
	err := g.SetPositions(positions)
	if err != nil {
		return err
	}
	err = g.SetIndices(nil)
	if err != nil {
		return err
	}
	b.shared.tetra = nil
	return b.setData(data)
}

// SetData replaces the block's per-vertex data. Every component array must have one
// value per vertex. Publishes GeometryChanged.
func (b *Block) SetData(data []*Data) error {
	err := b.checkOwner("set data")
	if err != nil {
		return err
	}
	err = b.setData(data)
	if err != nil {
		return err
	}
	b.GeometryChanged.Publish(b)
	return nil
}

func (b *Block) setData(data []*Data) error {
	g := b.shared.geom
	nverts := g.NumVertices()
	names := make(map[string]bool)
	for _, d := range data {
		if d == nil {
			return errors.New("nil data")
		}
		for _, comp := range d.Components {
			name := attributeName(d.Name, comp.Name)
			if names[name] {
				return fmt.Errorf("duplicate data component %s.%s", d.Name, comp.Name)
			} else if len(comp.Array) != nverts {
				return fmt.Errorf("data component %s.%s: want %d values, got %d", d.Name, comp.Name, nverts, len(comp.Array))
			}
			names[name] = true
		}
	}
	for _, old := range b.shared.data {
		for _, comp := range old.Components {
			g.RemoveAttribute(attributeName(old.Name, comp.Name))
		}
	}
	for _, d := range data {
		for _, comp := range d.Components {
			err := g.SetAttribute(attributeName(d.Name, comp.Name), comp.Array, 1)
			if err != nil {
				return err
			}
		}
	}
	b.shared.data = data
	return nil
}

// Position returns the block translation.
func (b *Block) Position() ms3.Vec { return b.position }

// Scale returns the block per-axis scale.
func (b *Block) Scale() ms3.Vec { return b.scale }

// SetPosition sets the block translation. Publishes TransformChanged.
func (b *Block) SetPosition(p ms3.Vec) {
	b.position = p
	b.updateMatrix()
}

// SetScale sets the block per-axis scale. Publishes TransformChanged.
func (b *Block) SetScale(s ms3.Vec) {
	b.scale = s
	b.updateMatrix()
}

// ModelMatrix returns the block's model matrix. The translation is applied
// before the scale so a scaled block keeps its position relative to the origin.
func (b *Block) ModelMatrix() mgl32.Mat4 {
	s := mgl32.Scale3D(b.scale.X, b.scale.Y, b.scale.Z)
	t := mgl32.Translate3D(b.position.X, b.position.Y, b.position.Z)
	return s.Mul4(t)
}

func (b *Block) updateMatrix() {
	m := b.ModelMatrix()
	for _, mesh := range b.meshes {
		mesh.SetModel(m)
	}
	b.TransformChanged.Publish(b)
}

// BoundingSphere returns the sphere bounding the block's vertices in world space.
func (b *Block) BoundingSphere() glrender.Sphere {
	return b.shared.geom.BoundingSphere().Transform(b.ModelMatrix())
}

// SetBeforeRender sets the block's pre-render hook. nil removes it.
func (b *Block) SetBeforeRender(fn BeforeRenderFunc) { b.beforeRender = fn }

// BeforeRender runs the block's pre-render hook, if any.
func (b *Block) BeforeRender(r glrender.Renderer, f glrender.Frame) error {
	if b.beforeRender == nil || b.disposed {
		return nil
	}
	return b.beforeRender(r, f)
}

// attach draws other with this block.
func (b *Block) attach(other Blocker) { b.attached = append(b.attached, other) }

// HandleCameraMoveEnd records the camera position and publishes CameraMoveEnd.
func (b *Block) HandleCameraMoveEnd(cameraPosition ms3.Vec) {
	b.lastCamera = cameraPosition
	b.CameraMoveEnd.Publish(cameraPosition)
}

// LastCameraPosition returns the camera position last handed to HandleCameraMoveEnd.
func (b *Block) LastCameraPosition() ms3.Vec { return b.lastCamera }

// AppendDrawItems implements [glrender.Drawable] by appending the visible meshes of
// the block followed by those of attached blocks.
func (b *Block) AppendDrawItems(dst []glrender.DrawItem) []glrender.DrawItem {
	if b.disposed {
		return dst
	}
	for _, m := range b.meshes {
		dst = m.AppendDrawItems(dst)
	}
	for _, other := range b.attached {
		dst = other.AsBlock().AppendDrawItems(dst)
	}
	return dst
}

// rebuildStale recompiles the meshes of the block and attached blocks that need it.
func (b *Block) rebuildStale() error {
	for _, m := range b.meshes {
		if m.NeedsRebuild() {
			err := m.Rebuild()
			if err != nil {
				return err
			}
		}
	}
	for _, other := range b.attached {
		err := other.AsBlock().rebuildStale()
		if err != nil {
			return err
		}
	}
	return nil
}

// Dispose unsubscribes the block from the blocks it listens to and releases its meshes.
// A disposed block draws nothing and its hook is not run.
func (b *Block) Dispose() {
	if b.disposed {
		return
	}
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
	b.meshes = nil
	b.attached = nil
	b.beforeRender = nil
	b.disposed = true
}
