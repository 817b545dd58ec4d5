// Package gleval evaluates shader node graphs on the CPU over vertex buffers.
// It is used to inspect what a material computes without a GPU.
package gleval

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/gany/glbuild"
	"github.com/soypat/geometry/ms3"
)

// VertexSource provides per-vertex attribute data. Attribute data is tightly
// packed with ncomp float components per vertex.
type VertexSource interface {
	NumVertices() int
	Attribute(name string) (data []float32, ncomp int, ok bool)
}

// Lookup is a texture read performed during evaluation.
type Lookup struct {
	Vertex  int
	Sampler glbuild.Sampler
	Coord   [3]float32
}

// Config holds the builtin uniforms of an evaluation. Zero value matrices are replaced by the identity.
type Config struct {
	Model      mgl32.Mat4
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Camera     ms3.Vec
}

// Evaluator evaluates node graphs for every vertex of a [VertexSource].
type Evaluator struct {
	src     VertexSource
	cfg     Config
	vertex  int
	lookups []Lookup
	nodes   []glbuild.Node
	index   map[glbuild.Node]int
	pool    ValuePool
}

var errNoVertices = errors.New("vertex source has no vertices")

// defaultInvocX is the compute work group size used by [GPUEvaluator].
const defaultInvocX = 64

// NewEvaluator returns an evaluator over the vertices of src.
func NewEvaluator(src VertexSource, cfg Config) (*Evaluator, error) {
	if src == nil {
		return nil, errors.New("nil vertex source")
	} else if src.NumVertices() <= 0 {
		return nil, errNoVertices
	}
	var zero mgl32.Mat4
	for _, m := range []*mgl32.Mat4{&cfg.Model, &cfg.View, &cfg.Projection} {
		if *m == zero {
			*m = mgl32.Ident4()
		}
	}
	return &Evaluator{src: src, cfg: cfg, index: make(map[glbuild.Node]int)}, nil
}

// ValuePool returns the evaluator's buffer pool.
func (e *Evaluator) ValuePool() *ValuePool { return &e.pool }

// Evaluate evaluates root for every vertex and stores the results in dst,
// which must be of length NumVertices.
func (e *Evaluator) Evaluate(root glbuild.Node, dst []glbuild.Value) (err error) {
	if len(dst) != e.src.NumVertices() {
		return fmt.Errorf("want %d results buffer, got %d", e.src.NumVertices(), len(dst))
	}
	e.nodes, err = glbuild.AppendAllNodes(e.nodes[:0], root)
	if err != nil {
		return err
	}
	clear(e.index)
	for i, n := range e.nodes {
		if _, ok := n.(glbuild.CPUNode); !ok {
			return fmt.Errorf("%T not evaluable on CPU", n)
		}
		e.index[n] = i
	}
	vals := e.pool.Values.Acquire(len(e.nodes))
	defer e.pool.Values.Release(vals)
	var operands []glbuild.Value
	for e.vertex = 0; e.vertex < len(dst); e.vertex++ {
		for i, n := range e.nodes {
			operands = operands[:0]
			n.ForEachChild(nil, func(_ any, child *glbuild.Node) error {
				operands = append(operands, vals[e.index[*child]])
				return nil
			})
			vals[i], err = n.(glbuild.CPUNode).EvaluateCPU(e, operands)
			if err != nil {
				return fmt.Errorf("vertex %d: %T: %w", e.vertex, n, err)
			}
		}
		dst[e.vertex] = vals[len(vals)-1]
	}
	return nil
}

// EvaluateVec3 is a convenience wrapper around Evaluate for vec3 expressions.
func (e *Evaluator) EvaluateVec3(root glbuild.Node) ([]ms3.Vec, error) {
	if root == nil || root.Type() != glbuild.TypeVec3 {
		return nil, errors.New("want vec3 expression")
	}
	vals := e.pool.Values.Acquire(e.src.NumVertices())
	defer e.pool.Values.Release(vals)
	err := e.Evaluate(root, vals)
	if err != nil {
		return nil, err
	}
	res := make([]ms3.Vec, len(vals))
	for i := range vals {
		res[i] = vals[i].Vec3()
	}
	return res, nil
}

// Lookups returns texture reads performed since the last [Evaluator.ResetLookups].
func (e *Evaluator) Lookups() []Lookup { return e.lookups }

func (e *Evaluator) ResetLookups() { e.lookups = e.lookups[:0] }

// Sample implements [glbuild.CPUEnv] and records the lookup.
func (e *Evaluator) Sample(s glbuild.Sampler, coord [3]float32) [4]float32 {
	e.lookups = append(e.lookups, Lookup{Vertex: e.vertex, Sampler: s, Coord: coord})
	return s.SampleCPU(coord)
}

// Attribute implements [glbuild.EvalEnv].
func (e *Evaluator) Attribute(name string, t glbuild.Type) (glbuild.Value, error) {
	data, ncomp, ok := e.src.Attribute(name)
	if !ok {
		return glbuild.Value{}, fmt.Errorf("attribute %q not found", name)
	} else if ncomp != t.Components() {
		return glbuild.Value{}, fmt.Errorf("attribute %q has %d components, want %s", name, ncomp, t)
	}
	off := e.vertex * ncomp
	if off+ncomp > len(data) {
		return glbuild.Value{}, fmt.Errorf("attribute %q too short for vertex %d", name, e.vertex)
	}
	v := glbuild.Value{Type: t}
	copy(v.V[:], data[off:off+ncomp])
	return v, nil
}

// Builtin implements [glbuild.EvalEnv].
func (e *Evaluator) Builtin(ident string) (glbuild.Value, error) {
	switch ident {
	case "modelMatrix":
		return glbuild.Mat4(e.cfg.Model), nil
	case "viewMatrix":
		return glbuild.Mat4(e.cfg.View), nil
	case "projectionMatrix":
		return glbuild.Mat4(e.cfg.Projection), nil
	case "cameraPosition":
		return glbuild.Vec3(e.cfg.Camera), nil
	case "worldPosition":
		p, err := e.Attribute("position", glbuild.TypeVec3)
		if err != nil {
			return p, err
		}
		w := mgl32.TransformCoordinate(mgl32.Vec3{p.V[0], p.V[1], p.V[2]}, e.cfg.Model)
		return glbuild.Vec3(ms3.Vec{X: w[0], Y: w[1], Z: w[2]}), nil
	case "worldNormal":
		n, err := e.Attribute("normal", glbuild.TypeVec3)
		if err != nil {
			return n, err
		}
		w := e.cfg.Model.Mat3().Mul3x1(mgl32.Vec3{n.V[0], n.V[1], n.V[2]})
		if l := w.Len(); l > 0 {
			w = w.Mul(1 / l)
		}
		return glbuild.Vec3(ms3.Vec{X: w[0], Y: w[1], Z: w[2]}), nil
	}
	return glbuild.Value{}, fmt.Errorf("unknown builtin %q", ident)
}
