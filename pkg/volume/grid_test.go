package volume

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
)

// newBlockGrid fills the inclusive box [lo, hi] with value
func newBlockGrid(lo, hi Coord, value float32, voxelSize float64) *Grid {
	b := NewGridBuilder("density", voxelSize, core.Vec3{})
	CoordBBox{Min: lo, Max: hi}.ForEach(func(c Coord) {
		b.Set(c, value)
	})
	return b.Build()
}

// newBlobGrid builds two smooth blobs far enough apart to leave empty upper nodes between them
func newBlobGrid() *Grid {
	b := NewGridBuilder("density", 0.05, core.NewVec3(-1, -1, -1))
	centers := []core.Vec3{core.NewVec3(12, 12, 12), core.NewVec3(90, 20, 14)}
	const radius = 10.0
	for _, center := range centers {
		CoordBBox{Min: FloorCoord(center).Offset(-11), Max: FloorCoord(center).Offset(11)}.ForEach(func(c Coord) {
			d := c.Vec3().Subtract(center).Length()
			if d < radius {
				b.Set(c, float32(1-d/radius))
			}
		})
	}
	return b.Build()
}

func TestGridBuilder(t *testing.T) {
	g := newBlockGrid(Coord{0, 0, 0}, Coord{9, 3, 3}, 2, 1)

	if g.LeafCount() != 2 {
		t.Errorf("Expected 2 leaves, got %d", g.LeafCount())
	}
	want := CoordBBox{Min: Coord{0, 0, 0}, Max: Coord{9, 3, 3}}
	if diff := cmp.Diff(want, g.IndexBBox()); diff != "" {
		t.Errorf("IndexBBox mismatch (-want +got):\n%s", diff)
	}

	acc := g.Accessor()
	if v := acc.Value(Coord{9, 3, 3}); v != 2 {
		t.Errorf("Expected value 2, got %f", v)
	}
	if v := acc.Value(Coord{10, 0, 0}); v != 0 {
		t.Errorf("Expected background 0, got %f", v)
	}
	if v := acc.Value(Coord{-100, 0, 0}); v != 0 {
		t.Errorf("Expected background 0 far outside, got %f", v)
	}
}

func TestGridBuilderSkipsZeroLeaves(t *testing.T) {
	b := NewGridBuilder("density", 1, core.Vec3{})
	b.Set(Coord{100, 100, 100}, 0)
	g := b.Build()
	if g.LeafCount() != 0 {
		t.Errorf("Expected no leaves, got %d", g.LeafCount())
	}
	if !g.IndexBBox().IsEmpty() {
		t.Error("Expected empty bounding box")
	}
}

func TestLeafMaximumIgnoresNaN(t *testing.T) {
	b := NewGridBuilder("density", 1, core.Vec3{})
	b.Set(Coord{0, 0, 0}, float32(math.NaN()))
	b.Set(Coord{1, 0, 0}, 2)
	b.Set(Coord{8, 0, 0}, 3)
	g := b.Build()

	if m := g.Leaf(Coord{0, 0, 0}).Maximum(); m != 2 {
		t.Errorf("Expected leaf maximum 2, got %f", m)
	}

	FixMajorants(g, 1)
	if m := g.Leaf(Coord{0, 0, 0}).Maximum(); m != 3 {
		t.Errorf("Expected corrected maximum 3, got %f", m)
	}
}

func TestAccessorNodeInfo(t *testing.T) {
	g := newBlockGrid(Coord{0, 0, 0}, Coord{7, 7, 7}, 0.5, 1)
	acc := g.Accessor()

	tests := []struct {
		name     string
		coord    Coord
		expected NodeInfo
	}{
		{"inside leaf", Coord{3, 3, 3}, NodeInfo{Dim: LeafDim, Maximum: 0.5}},
		{"empty leaf in populated upper", Coord{9, 0, 0}, NodeInfo{Dim: LeafDim}},
		{"empty upper", Coord{40, 0, 0}, NodeInfo{Dim: UpperDim}},
		{"negative empty upper", Coord{-1, 0, 0}, NodeInfo{Dim: UpperDim}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := acc.NodeInfo(tt.coord); got != tt.expected {
				t.Errorf("Expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}

func TestCoordAlign(t *testing.T) {
	tests := []struct {
		in       Coord
		dim      int
		expected Coord
	}{
		{Coord{9, 15, 16}, 8, Coord{8, 8, 16}},
		{Coord{-1, -8, -9}, 8, Coord{-8, -8, -16}},
		{Coord{33, -1, 0}, 32, Coord{32, -32, 0}},
	}
	for _, tt := range tests {
		if got := tt.in.Align(tt.dim); got != tt.expected {
			t.Errorf("Align(%v, %d): expected %v, got %v", tt.in, tt.dim, tt.expected, got)
		}
	}
}

func TestGridTransforms(t *testing.T) {
	b := NewGridBuilder("density", 0.25, core.NewVec3(1, 2, 3))
	b.Set(Coord{0, 0, 0}, 1)
	g := b.Build()

	p := core.NewVec3(1.5, 2.25, 2)
	idx := g.WorldToIndex(p)
	if diff := cmp.Diff(core.NewVec3(2, 1, -4), idx, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("WorldToIndex mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(p, g.IndexToWorld(idx), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("IndexToWorld mismatch (-want +got):\n%s", diff)
	}

	bounds := g.WorldBounds()
	if diff := cmp.Diff(core.NewAABB(core.NewVec3(1, 2, 3), core.NewVec3(1.25, 2.25, 3.25)), bounds); diff != "" {
		t.Errorf("WorldBounds mismatch (-want +got):\n%s", diff)
	}
}

func TestTrilinearInterpolation(t *testing.T) {
	b := NewGridBuilder("density", 1, core.Vec3{})
	b.Set(Coord{0, 0, 0}, 0)
	b.Set(Coord{1, 0, 0}, 1)
	b.Set(Coord{0, 1, 0}, 2)
	b.Set(Coord{1, 1, 0}, 3)
	b.Set(Coord{0, 0, 1}, 4)
	b.Set(Coord{1, 0, 1}, 5)
	b.Set(Coord{0, 1, 1}, 6)
	b.Set(Coord{1, 1, 1}, 7)
	g := b.Build()

	// f(x,y,z) = x + 2y + 4z is reproduced exactly by trilinear interpolation
	s := NewPointSampler(g, Trilinear)
	for _, p := range []core.Vec3{{X: 0.5, Y: 0.5, Z: 0.5}, {X: 0.1, Y: 0.9, Z: 0.3}, {X: 1, Y: 0, Z: 0}} {
		want := p.X + 2*p.Y + 4*p.Z
		if got := s.Sample(p); math.Abs(got-want) > 1e-6 {
			t.Errorf("Sample(%v): expected %f, got %f", p, want, got)
		}
	}

	n := NewPointSampler(g, Nearest)
	if got := n.Sample(core.NewVec3(0.6, 0.4, 0.2)); got != 1 {
		t.Errorf("Nearest: expected 1, got %f", got)
	}
}

func TestParseInterpolation(t *testing.T) {
	for _, s := range []string{"", "trilinear", "nearest"} {
		if _, err := ParseInterpolation(s); err != nil {
			t.Errorf("Unexpected error for %q: %v", s, err)
		}
	}
	if _, err := ParseInterpolation("cubic"); err == nil {
		t.Error("Expected error for unknown interpolation")
	}
}
