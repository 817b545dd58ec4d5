package meshes

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

func TestGrid(t *testing.T) {
	s, err := Grid{Width: 2, Height: 1, NX: 4, NY: 2}.Surface()
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Vertices) != 15 {
		t.Fatalf("want 15 vertices, got %d", len(s.Vertices))
	}
	if len(s.Indices) != 6*8 {
		t.Fatalf("want %d indices, got %d", 6*8, len(s.Indices))
	}
	if s.Vertices[0] != (ms3.Vec{X: -1, Y: -0.5}) || s.Vertices[14] != (ms3.Vec{X: 1, Y: 0.5}) {
		t.Error("grid corners misplaced", s.Vertices[0], s.Vertices[14])
	}
	for i := 0; i < len(s.Indices); i += 3 {
		a, b, c := s.Vertices[s.Indices[i]], s.Vertices[s.Indices[i+1]], s.Vertices[s.Indices[i+2]]
		n := ms3.Cross(ms3.Sub(b, a), ms3.Sub(c, a))
		if n.Z <= 0 {
			t.Fatalf("triangle %d not facing +Z: %v", i/3, n)
		}
	}
	_, err = Grid{Width: 1, Height: 1}.Surface()
	if err == nil {
		t.Error("expected error for empty grid")
	}
}

func TestUVSphere(t *testing.T) {
	u := UVSphere{Center: ms3.Vec{X: 1}, Radius: 2, Rings: 6, Segments: 8}
	s, err := u.Surface()
	if err != nil {
		t.Fatal(err)
	}
	wantVerts := 2 + (u.Rings-1)*u.Segments
	if len(s.Vertices) != wantVerts {
		t.Fatalf("want %d vertices, got %d", wantVerts, len(s.Vertices))
	}
	wantTris := 2*u.Segments + 2*u.Segments*(u.Rings-2)
	if len(s.Indices) != 3*wantTris {
		t.Fatalf("want %d triangles, got %d", wantTris, len(s.Indices)/3)
	}
	for i, v := range s.Vertices {
		d := ms3.Norm(ms3.Sub(v, u.Center))
		if math32.Abs(d-u.Radius) > 1e-5 {
			t.Fatalf("vertex %d at distance %f from center", i, d)
		}
	}
	for i := 0; i < len(s.Indices); i += 3 {
		a, b, c := s.Vertices[s.Indices[i]], s.Vertices[s.Indices[i+1]], s.Vertices[s.Indices[i+2]]
		n := ms3.Cross(ms3.Sub(b, a), ms3.Sub(c, a))
		centroid := ms3.Scale(1./3, ms3.Add(a, ms3.Add(b, c)))
		if ms3.Dot(n, ms3.Sub(centroid, u.Center)) <= 0 {
			t.Fatalf("triangle %d faces inwards", i/3)
		}
	}
}

func TestField(t *testing.T) {
	vertices := []ms3.Vec{{}, {X: 0.5}, {Z: 2}}
	got := Field(vertices, Wave(2, 1))
	want := []float32{2, -2, 2}
	for i := range want {
		if math32.Abs(got[i]-want[i]) > 1e-5 {
			t.Errorf("wave at %v: want %f, got %f", vertices[i], want[i], got[i])
		}
	}
	depth := Field(vertices, Depth(1))
	if depth[0] != 1 || depth[2] != -1 {
		t.Error("unexpected depth", depth)
	}
}
