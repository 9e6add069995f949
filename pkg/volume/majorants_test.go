package volume

import (
	"testing"

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
)

func TestFixMajorantsBoundsInterpolatedValues(t *testing.T) {
	g := newBlobGrid()
	FixMajorants(g, Trilinear.Order())

	sampler := NewPointSampler(g, Trilinear)
	acc := g.Accessor()
	random := core.NewRandomSampler(1)
	random.BeginJob(0)

	box := g.IndexBBox()
	size := box.Max.Offset(1).Vec3().Subtract(box.Min.Vec3())
	for i := 0; i < 50000; i++ {
		p := box.Min.Vec3().Add(random.Get3D().MultiplyVec(size))
		value := sampler.Sample(p)
		info := acc.NodeInfo(FloorCoord(p))
		if value > info.Maximum+1e-9 {
			t.Fatalf("Interpolated value %f at %v exceeds majorant %f", value, p, info.Maximum)
		}
	}
}

func TestFixMajorantsRaisesNeighbourBound(t *testing.T) {
	// A single hot voxel on the upper edge of leaf (0,0,0) bleeds into leaf (8,0,0)
	b := NewGridBuilder("density", 1, core.Vec3{})
	b.Set(Coord{7, 3, 3}, 5)
	g := b.Build()

	if g.Leaf(Coord{8, 0, 0}) != nil {
		t.Fatal("Expected neighbour leaf to be unallocated before correction")
	}

	FixMajorants(g, 1)

	neighbour := g.Leaf(Coord{8, 0, 0})
	if neighbour == nil {
		t.Fatal("Expected halo leaf to be allocated")
	}
	if neighbour.Maximum() != 5 {
		t.Errorf("Expected halo majorant 5, got %f", neighbour.Maximum())
	}
	if far := g.Leaf(Coord{0, 0, 16}); far != nil {
		t.Error("Expected no leaf two leaves away")
	}
	// Leaf (0,0,-8) is adjacent but the hot voxel is at z=3, out of reach.
	if l := g.Leaf(Coord{0, 0, -8}); l == nil || l.Maximum() != 0 {
		t.Errorf("Expected zero majorant for out-of-reach neighbour, got %+v", l)
	}
	if got := g.IndexBBox(); got.Min != (Coord{6, 2, 2}) || got.Max != (Coord{8, 4, 4}) {
		t.Errorf("Expected bbox expanded by one voxel, got %+v", got)
	}
}

func TestFixMajorantsIdempotent(t *testing.T) {
	g := newBlobGrid()
	FixMajorants(g, 1)
	leaves := g.LeafCount()
	bbox := g.IndexBBox()

	FixMajorants(g, 1)
	if g.LeafCount() != leaves {
		t.Errorf("Expected %d leaves after second pass, got %d", leaves, g.LeafCount())
	}
	if g.IndexBBox() != bbox {
		t.Errorf("Expected bbox %+v after second pass, got %+v", bbox, g.IndexBBox())
	}
}
