package volume

import (
	"math"

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
)

// Segment is a ray interval, in index-space ray parameter, with a constant majorant density
type Segment struct {
	T0       float64
	T1       float64
	Majorant float64
}

// IndexRay is a ray in a grid's index space clipped to [T0, T1]
type IndexRay struct {
	core.Ray
	T0, T1 float64
}

// DDAStep records one cell visited by the traversal
type DDAStep struct {
	Voxel   Coord
	Dim     int
	Time    float64
	Maximum float64
}

// hdda is a hierarchical 3D DDA over cells of variable size: whole empty upper nodes are
// crossed in one step, populated ones leaf by leaf.
type hdda struct {
	ray    IndexRay
	acc    *Accessor
	bounds CoordBBox

	voxel   Coord // cell origin, aligned to dim
	dim     int
	maximum float64
	t       float64
}

func (d *hdda) init(ray IndexRay, acc *Accessor, bounds CoordBBox) {
	d.ray = ray
	d.acc = acc
	d.bounds = bounds
	d.t = ray.T0

	// The entry point lies on the box surface, clamping keeps the first cell inside.
	ijk := bounds.Clamp(FloorCoord(ray.At(ray.T0)))
	d.enter(ijk)
}

// enter positions the cursor on the node containing ijk
func (d *hdda) enter(ijk Coord) {
	info := d.acc.NodeInfo(ijk)
	d.dim = info.Dim
	d.voxel = ijk.Align(info.Dim)
	d.maximum = info.Maximum
}

// exitTime returns the time the ray leaves the current cell and the axis it leaves through
func (d *hdda) exitTime() (float64, int) {
	tExit := math.Inf(1)
	axis := 0
	for a := 0; a < 3; a++ {
		dir := d.ray.Direction.Component(a)
		var boundary float64
		switch {
		case dir > 0:
			boundary = float64(d.voxel.Component(a) + d.dim)
		case dir < 0:
			boundary = float64(d.voxel.Component(a))
		default:
			continue
		}
		if t := (boundary - d.ray.Origin.Component(a)) / dir; t < tExit {
			tExit = t
			axis = a
		}
	}
	return tExit, axis
}

// step moves to the next cell. It returns false once the ray has left [T0, T1].
func (d *hdda) step() bool {
	tExit, axis := d.exitTime()
	if !(tExit < d.ray.T1) {
		d.t = d.ray.T1
		return false
	}
	d.t = max(d.t, tExit)

	sign := 1
	if d.ray.Direction.Component(axis) < 0 {
		sign = -1
	}
	cell := d.voxel.SetComponent(axis, d.voxel.Component(axis)+sign*d.dim)
	oldDim := d.dim

	info := d.acc.NodeInfo(cell)
	switch {
	case info.Dim < oldDim:
		// Refining into a populated upper node: find the leaf the ray enters through.
		cellBox := CoordBBox{Min: cell, Max: cell.Offset(oldDim - 1)}
		d.enter(cellBox.Clamp(FloorCoord(d.ray.At(d.t))))
	default:
		d.enter(cell)
	}
	return true
}

// MajorantIterator walks a ray through a grid and yields segments of constant majorant.
// Segments are ordered, non-overlapping and never have a zero majorant.
type MajorantIterator struct {
	ray       IndexRay
	scale     float64
	dirLength float64 // Length of the world direction the caller traced with
	dda       hdda
	done      bool
	steps     *[]DDAStep
}

func newMajorantIterator(ray IndexRay, acc *Accessor, bounds CoordBBox, scale, dirLength float64) *MajorantIterator {
	it := &MajorantIterator{ray: ray, scale: scale, dirLength: dirLength}
	it.dda.init(ray, acc, bounds)
	return it
}

// Ray returns the clipped index-space ray being traversed
func (it *MajorantIterator) Ray() IndexRay { return it.ray }

// IndexToWorldScale is the world distance covered by one unit of the index ray parameter
func (it *MajorantIterator) IndexToWorldScale() float64 { return it.scale }

// RayParameter converts an index ray parameter into the parameter of the world ray passed
// to Intersect, which need not have a unit direction.
func (it *MajorantIterator) RayParameter(t float64) float64 {
	return t * it.scale / it.dirLength
}

// RecordSteps makes the iterator append every visited cell to dst
func (it *MajorantIterator) RecordSteps(dst *[]DDAStep) {
	it.steps = dst
	it.record()
}

func (it *MajorantIterator) record() {
	if it.steps != nil {
		*it.steps = append(*it.steps, DDAStep{
			Voxel:   it.dda.voxel,
			Dim:     it.dda.dim,
			Time:    it.dda.t,
			Maximum: it.dda.maximum,
		})
	}
}

// Next returns the next segment with a positive majorant
func (it *MajorantIterator) Next() (Segment, bool) {
	for {
		seg, ok := it.nextSegment()
		if !ok {
			return Segment{}, false
		}
		if seg.Majorant > 0 {
			return seg, true
		}
	}
}

// nextSegment returns the next segment including empty space. Successive segments
// share endpoints and together cover [T0, T1].
func (it *MajorantIterator) nextSegment() (Segment, bool) {
	if it.done {
		return Segment{}, false
	}

	seg := Segment{T0: it.dda.t, Majorant: it.dda.maximum}
	for {
		if !it.dda.step() {
			seg.T1 = it.ray.T1
			it.done = true
			return seg, true
		}
		it.record()

		// Neighbouring cells with the same bound are merged into one segment.
		if it.dda.maximum != seg.Majorant {
			seg.T1 = it.dda.t
			return seg, true
		}
	}
}
