// Package volume holds the sparse voxel field and the majorant traversal built on it.
//
// A Grid is a two level hierarchy: upper nodes span 32³ voxels and own leaf nodes
// spanning 8³ voxels. Leaves are the macrocells: each stores the maximum of the values
// it influences, which the majorant traversal uses as an extinction upper bound.
package volume

import (
	"math"

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
)

const (
	LeafLog2Dim  = 3
	LeafDim      = 1 << LeafLog2Dim // 8 voxels per leaf side
	LeafVoxels   = LeafDim * LeafDim * LeafDim
	UpperLog2Dim = 5
	UpperDim     = 1 << UpperLog2Dim // 32 voxels per upper node side
)

// Coord is an integer voxel coordinate in index space
type Coord struct {
	X, Y, Z int
}

// Add returns the component-wise sum
func (c Coord) Add(o Coord) Coord {
	return Coord{c.X + o.X, c.Y + o.Y, c.Z + o.Z}
}

// Offset adds d to every component
func (c Coord) Offset(d int) Coord {
	return Coord{c.X + d, c.Y + d, c.Z + d}
}

// Component returns the coordinate along axis (0=X, 1=Y, 2=Z)
func (c Coord) Component(axis int) int {
	switch axis {
	case 0:
		return c.X
	case 1:
		return c.Y
	default:
		return c.Z
	}
}

// SetComponent returns c with the coordinate along axis replaced
func (c Coord) SetComponent(axis, v int) Coord {
	switch axis {
	case 0:
		c.X = v
	case 1:
		c.Y = v
	default:
		c.Z = v
	}
	return c
}

// Align rounds every component down to a multiple of dim (a power of two)
func (c Coord) Align(dim int) Coord {
	mask := dim - 1
	return Coord{c.X &^ mask, c.Y &^ mask, c.Z &^ mask}
}

// Vec3 converts the coordinate to a floating point vector
func (c Coord) Vec3() core.Vec3 {
	return core.NewVec3(float64(c.X), float64(c.Y), float64(c.Z))
}

// FloorCoord returns the voxel containing the index-space point p
func FloorCoord(p core.Vec3) Coord {
	return Coord{int(math.Floor(p.X)), int(math.Floor(p.Y)), int(math.Floor(p.Z))}
}

// CoordBBox is an inclusive box of voxel coordinates
type CoordBBox struct {
	Min, Max Coord
}

// EmptyBBox returns a box that contains nothing and grows with ExpandToInclude
func EmptyBBox() CoordBBox {
	return CoordBBox{
		Min: Coord{math.MaxInt32, math.MaxInt32, math.MaxInt32},
		Max: Coord{math.MinInt32, math.MinInt32, math.MinInt32},
	}
}

// IsEmpty reports whether the box contains no coordinate
func (b CoordBBox) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// ExpandToInclude grows the box to contain c
func (b CoordBBox) ExpandToInclude(c Coord) CoordBBox {
	return CoordBBox{
		Min: Coord{min(b.Min.X, c.X), min(b.Min.Y, c.Y), min(b.Min.Z, c.Z)},
		Max: Coord{max(b.Max.X, c.X), max(b.Max.Y, c.Y), max(b.Max.Z, c.Z)},
	}
}

// Expand grows the box by n voxels on every side
func (b CoordBBox) Expand(n int) CoordBBox {
	if b.IsEmpty() {
		return b
	}
	return CoordBBox{Min: b.Min.Offset(-n), Max: b.Max.Offset(n)}
}

// Translate moves the box by d
func (b CoordBBox) Translate(d Coord) CoordBBox {
	return CoordBBox{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

// Intersect returns the overlap of two boxes (possibly empty)
func (b CoordBBox) Intersect(o CoordBBox) CoordBBox {
	return CoordBBox{
		Min: Coord{max(b.Min.X, o.Min.X), max(b.Min.Y, o.Min.Y), max(b.Min.Z, o.Min.Z)},
		Max: Coord{min(b.Max.X, o.Max.X), min(b.Max.Y, o.Max.Y), min(b.Max.Z, o.Max.Z)},
	}
}

// Contains reports whether c lies inside the box
func (b CoordBBox) Contains(c Coord) bool {
	return c.X >= b.Min.X && c.X <= b.Max.X &&
		c.Y >= b.Min.Y && c.Y <= b.Max.Y &&
		c.Z >= b.Min.Z && c.Z <= b.Max.Z
}

// Clamp moves c to the closest coordinate inside the box
func (b CoordBBox) Clamp(c Coord) Coord {
	return Coord{
		core.Clamp(c.X, b.Min.X, b.Max.X),
		core.Clamp(c.Y, b.Min.Y, b.Max.Y),
		core.Clamp(c.Z, b.Min.Z, b.Max.Z),
	}
}

// ForEach calls fn for every coordinate of the box
func (b CoordBBox) ForEach(fn func(Coord)) {
	for x := b.Min.X; x <= b.Max.X; x++ {
		for y := b.Min.Y; y <= b.Max.Y; y++ {
			for z := b.Min.Z; z <= b.Max.Z; z++ {
				fn(Coord{x, y, z})
			}
		}
	}
}

// LeafNode is an 8³ block of voxel values, the macrocell of the traversal
type LeafNode struct {
	origin  Coord
	values  [LeafVoxels]float32
	maximum float64
}

// Origin returns the coordinate of the leaf's first voxel
func (l *LeafNode) Origin() Coord { return l.origin }

// Values returns the raw voxel values in x-major order
func (l *LeafNode) Values() *[LeafVoxels]float32 { return &l.values }

// Maximum returns the majorant density stored for this leaf
func (l *LeafNode) Maximum() float64 { return l.maximum }

// BBox returns the coordinates covered by the leaf
func (l *LeafNode) BBox() CoordBBox {
	return CoordBBox{Min: l.origin, Max: l.origin.Offset(LeafDim - 1)}
}

func leafOffset(c Coord) int {
	return ((c.X & (LeafDim - 1)) << (2 * LeafLog2Dim)) |
		((c.Y & (LeafDim - 1)) << LeafLog2Dim) |
		(c.Z & (LeafDim - 1))
}

// rawMax is the largest stored value, ignoring any majorant correction. NaN voxels are
// skipped so they cannot hide the rest of the leaf.
func (l *LeafNode) rawMax() float64 {
	m := float32(math.Inf(-1))
	for _, v := range l.values {
		if v > m {
			m = v
		}
	}
	return float64(m)
}

func (l *LeafNode) hasValues() bool {
	for _, v := range l.values {
		if v != 0 {
			return true
		}
	}
	return false
}

type upperNode struct {
	origin  Coord
	maximum float64
}

// Grid is a sparse scalar field with a uniform-scale index-to-world transform.
// It is immutable once built, except for the one-time majorant correction.
type Grid struct {
	name      string
	voxelSize float64
	origin    core.Vec3 // world position of index (0,0,0)

	leaves map[Coord]*LeafNode
	uppers map[Coord]*upperNode
	bbox   CoordBBox

	majorantOrder int // kernel radius the leaf maxima are valid for, 0 = raw
}

// Name returns the grid's name ("density", "temperature", ...)
func (g *Grid) Name() string { return g.name }

// VoxelSize returns the world-space edge length of one voxel
func (g *Grid) VoxelSize() float64 { return g.voxelSize }

// Origin returns the world position of index coordinate (0,0,0)
func (g *Grid) Origin() core.Vec3 { return g.origin }

// IndexBBox returns the inclusive voxel bounding box
func (g *Grid) IndexBBox() CoordBBox { return g.bbox }

// LeafCount returns the number of allocated leaves
func (g *Grid) LeafCount() int { return len(g.leaves) }

// Leaf returns the leaf with the given origin, or nil
func (g *Grid) Leaf(origin Coord) *LeafNode { return g.leaves[origin] }

// ForEachLeaf calls fn for every allocated leaf in unspecified order
func (g *Grid) ForEachLeaf(fn func(*LeafNode)) {
	for _, l := range g.leaves {
		fn(l)
	}
}

// WorldToIndex maps a world point to continuous index space
func (g *Grid) WorldToIndex(p core.Vec3) core.Vec3 {
	return p.Subtract(g.origin).Multiply(1 / g.voxelSize)
}

// IndexToWorld maps a continuous index-space point to world space
func (g *Grid) IndexToWorld(p core.Vec3) core.Vec3 {
	return p.Multiply(g.voxelSize).Add(g.origin)
}

// IndexToWorldDir maps an index-space direction to world space
func (g *Grid) IndexToWorldDir(d core.Vec3) core.Vec3 {
	return d.Multiply(g.voxelSize)
}

// WorldToIndexDir maps a world-space direction to index space
func (g *Grid) WorldToIndexDir(d core.Vec3) core.Vec3 {
	return d.Multiply(1 / g.voxelSize)
}

// WorldBounds returns the world-space box covered by the index bounding box
func (g *Grid) WorldBounds() core.AABB {
	if g.bbox.IsEmpty() {
		return core.AABB{}
	}
	return core.NewAABB(
		g.IndexToWorld(g.bbox.Min.Vec3()),
		g.IndexToWorld(g.bbox.Max.Offset(1).Vec3()),
	)
}

// Accessor returns a new read accessor. Accessors cache the last leaf they touched,
// so each goroutine should use its own.
func (g *Grid) Accessor() *Accessor {
	return &Accessor{grid: g}
}

func (g *Grid) addLeaf(origin Coord) *LeafNode {
	if l, ok := g.leaves[origin]; ok {
		return l
	}
	l := &LeafNode{origin: origin}
	g.leaves[origin] = l
	upperOrigin := origin.Align(UpperDim)
	if _, ok := g.uppers[upperOrigin]; !ok {
		g.uppers[upperOrigin] = &upperNode{origin: upperOrigin}
	}
	return l
}

// updateNodeMaxima recomputes upper node maxima from their leaves
func (g *Grid) updateNodeMaxima() {
	for _, u := range g.uppers {
		u.maximum = 0
	}
	for _, l := range g.leaves {
		u := g.uppers[l.origin.Align(UpperDim)]
		u.maximum = max(u.maximum, l.maximum)
	}
}

// GridBuilder accumulates voxel values and produces an immutable Grid
type GridBuilder struct {
	grid *Grid
}

// NewGridBuilder starts a grid with the given name and index-to-world transform
func NewGridBuilder(name string, voxelSize float64, origin core.Vec3) *GridBuilder {
	return &GridBuilder{
		grid: &Grid{
			name:      name,
			voxelSize: voxelSize,
			origin:    origin,
			leaves:    make(map[Coord]*LeafNode),
			uppers:    make(map[Coord]*upperNode),
		},
	}
}

// Set stores a voxel value. Zero values do not allocate leaves.
func (b *GridBuilder) Set(c Coord, v float32) {
	leafOrigin := c.Align(LeafDim)
	l, ok := b.grid.leaves[leafOrigin]
	if !ok {
		if v == 0 {
			return
		}
		l = b.grid.addLeaf(leafOrigin)
	}
	l.values[leafOffset(c)] = v
}

// SetLeaf stores a complete leaf. origin must be leaf aligned.
func (b *GridBuilder) SetLeaf(origin Coord, values *[LeafVoxels]float32) {
	l := b.grid.addLeaf(origin.Align(LeafDim))
	l.values = *values
}

// Build finalizes leaf maxima and the bounding box of non-zero voxels
func (b *GridBuilder) Build() *Grid {
	g := b.grid
	g.bbox = EmptyBBox()
	for _, l := range g.leaves {
		l.maximum = max(0, l.rawMax())
		for i, v := range l.values {
			if v == 0 {
				continue
			}
			c := l.origin.Add(Coord{i >> (2 * LeafLog2Dim), (i >> LeafLog2Dim) & (LeafDim - 1), i & (LeafDim - 1)})
			g.bbox = g.bbox.ExpandToInclude(c)
		}
	}
	g.updateNodeMaxima()
	b.grid = nil
	return g
}
