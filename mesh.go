package gany

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/gany/glbuild"
	"github.com/soypat/gany/glrender"
	"github.com/soypat/geometry/ms3"
)

// Mesh is a drawable made of shared geometry and a material built from a [SlotGraph].
// Slot expressions are compiled lazily: editing them marks the mesh for rebuild and
// [Mesh.Rebuild] compiles them into a program.
type Mesh struct {
	geom     *glrender.Geometry
	slots    SlotGraph
	kind     glbuild.MaterialKind
	material glrender.Material
	model    mgl32.Mat4
	visible  bool

	vertexExprs   []glbuild.Node
	fragmentExprs []glbuild.Node

	programmer   *glbuild.Programmer
	program      *glbuild.Program
	compiled     [numSlots]glbuild.Node
	needsRebuild bool
}

// NewMesh returns a visible mesh over g with default slot expressions: untransformed
// position, white color and opaque alpha.
func NewMesh(g *glrender.Geometry, kind glbuild.MaterialKind) (*Mesh, error) {
	if g == nil {
		return nil, errors.New("nil geometry")
	}
	m := &Mesh{
		geom:         g,
		kind:         kind,
		material:     glrender.DefaultMaterial(),
		model:        mgl32.Ident4(),
		visible:      true,
		needsRebuild: true,
	}
	m.slots.exprs[SlotTransform] = glbuild.Position()
	m.slots.exprs[SlotColor] = glbuild.LitVec3(ms3.Vec{X: 1, Y: 1, Z: 1})
	m.slots.exprs[SlotAlpha] = glbuild.LitFloat(1)
	if g.IsPoints() {
		m.material.Points = true
		m.material.PointSize = 4
	}
	return m, nil
}

// Geometry returns the geometry shared by the mesh and its copies.
func (m *Mesh) Geometry() *glrender.Geometry { return m.geom }

// Kind returns the material kind of the mesh.
func (m *Mesh) Kind() glbuild.MaterialKind { return m.kind }

// Slots returns the mesh's slot graph. Edits through the returned graph are
// not tracked: call [Mesh.MarkNeedsRebuild] or use [Mesh.Combine].
func (m *Mesh) Slots() *SlotGraph { return &m.slots }

// Expr returns the current expression of slot s.
func (m *Mesh) Expr(s Slot) glbuild.Node { return m.slots.Expr(s) }

// Combine combines contribution c into slot s of the mesh. See [SlotGraph.Combine].
func (m *Mesh) Combine(s Slot, op Operation, c glbuild.Node) error {
	err := m.slots.Combine(s, op, c)
	if err != nil {
		return err
	}
	m.needsRebuild = true
	return nil
}

// AddVertexExpr adds an expression evaluated for its side effects in the vertex stage.
func (m *Mesh) AddVertexExpr(n glbuild.Node) error {
	if n == nil {
		return errors.New("nil vertex expression")
	}
	m.vertexExprs = append(m.vertexExprs, n)
	m.needsRebuild = true
	return nil
}

// AddFragmentExpr adds an expression evaluated for its side effects in the fragment stage.
func (m *Mesh) AddFragmentExpr(n glbuild.Node) error {
	if n == nil {
		return errors.New("nil fragment expression")
	}
	m.fragmentExprs = append(m.fragmentExprs, n)
	m.needsRebuild = true
	return nil
}

// MarkNeedsRebuild flags the mesh after a structural edit of one of its expressions,
// such as [glbuild.Ref.Set] or [glbuild.Call.SetFunction].
func (m *Mesh) MarkNeedsRebuild() { m.needsRebuild = true }

// NeedsRebuild reports whether the compiled program is stale: the mesh was flagged
// or a slot expression differs from the one last compiled.
func (m *Mesh) NeedsRebuild() bool {
	if m.needsRebuild || m.program == nil {
		return true
	}
	for i := range m.compiled {
		if m.compiled[i] != m.slots.exprs[i] {
			return true
		}
	}
	return false
}

// Rebuild compiles the slot expressions into the mesh's program. Compiling unchanged
// expressions yields an equal program.
func (m *Mesh) Rebuild() error {
	if m.programmer == nil {
		m.programmer = glbuild.NewDefaultProgrammer()
	}
	prog, err := m.programmer.Compile(glbuild.MaterialGraph{
		Kind:          m.kind,
		Transform:     m.slots.exprs[SlotTransform],
		Color:         m.slots.exprs[SlotColor],
		Alpha:         m.slots.exprs[SlotAlpha],
		VertexExprs:   m.vertexExprs,
		FragmentExprs: m.fragmentExprs,
	})
	if err != nil {
		return fmt.Errorf("compiling %s material: %w", m.kind, err)
	}
	m.program = prog
	m.compiled = m.slots.exprs
	m.needsRebuild = false
	return nil
}

// Program returns the last compiled program or nil if never compiled.
func (m *Mesh) Program() *glbuild.Program { return m.program }

// Copy returns a mesh sharing m's geometry with copies of its slot expressions so
// that combining into either mesh does not affect the other. The copy has its own
// material and program and the model matrix and visibility of m. kind, if given,
// replaces the material kind.
func (m *Mesh) Copy(kind ...glbuild.MaterialKind) *Mesh {
	cp := &Mesh{
		geom:          m.geom,
		slots:         m.slots,
		kind:          m.kind,
		material:      m.material,
		model:         m.model,
		visible:       m.visible,
		vertexExprs:   append([]glbuild.Node(nil), m.vertexExprs...),
		fragmentExprs: append([]glbuild.Node(nil), m.fragmentExprs...),
		needsRebuild:  true,
	}
	if len(kind) > 0 {
		cp.kind = kind[0]
	}
	return cp
}

// SortTriangleIndices sorts the shared index buffer so triangles farthest from
// the world space camera position come first.
func (m *Mesh) SortTriangleIndices(cameraPosition ms3.Vec) {
	// Vertices are in object space.
	eye := mgl32.TransformCoordinate(mgl32.Vec3{cameraPosition.X, cameraPosition.Y, cameraPosition.Z}, m.model.Inv())
	m.geom.SortTriangles(ms3.Vec{X: eye[0], Y: eye[1], Z: eye[2]})
}

// SetModel sets the model matrix.
func (m *Mesh) SetModel(model mgl32.Mat4) { m.model = model }

func (m *Mesh) Model() mgl32.Mat4 { return m.model }

func (m *Mesh) SetVisible(visible bool) { m.visible = visible }

func (m *Mesh) Visible() bool { return m.visible }

func (m *Mesh) Material() glrender.Material { return m.material }

func (m *Mesh) SetMaterial(mat glrender.Material) { m.material = mat }

// AppendDrawItems implements [glrender.Drawable]. Invisible and never compiled meshes draw nothing.
func (m *Mesh) AppendDrawItems(dst []glrender.DrawItem) []glrender.DrawItem {
	if !m.visible || m.program == nil {
		return dst
	}
	return append(dst, glrender.DrawItem{
		Geometry: m.geom,
		Program:  m.program,
		Material: m.material,
		Model:    m.model,
	})
}
