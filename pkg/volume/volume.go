package volume

import (
	"math"

	"github.com/pkg/errors"

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
)

// Volume is an immutable handle on the density field and the optional temperature field.
// Creating it performs the one-time majorant correction on the density grid, so it must
// be built before any worker starts.
type Volume struct {
	density       *Grid
	temperature   *Grid
	interpolation Interpolation
}

// NewVolume wraps the grids. temperature may be nil, in which case the medium emits nothing.
func NewVolume(density, temperature *Grid, interp Interpolation) (*Volume, error) {
	if density == nil {
		return nil, errors.New("volume requires a density grid")
	}
	if density.voxelSize <= 0 || math.IsNaN(density.voxelSize) {
		return nil, errors.Errorf("density grid has invalid voxel size %v", density.voxelSize)
	}
	if temperature == nil {
		core.Logger().Warn("volume has no temperature grid, emission disabled")
	}

	FixMajorants(density, interp.Order())

	return &Volume{
		density:       density,
		temperature:   temperature,
		interpolation: interp,
	}, nil
}

// Density returns the density grid
func (v *Volume) Density() *Grid { return v.density }

// Temperature returns the temperature grid and whether it exists
func (v *Volume) Temperature() (*Grid, bool) { return v.temperature, v.temperature != nil }

// Interpolation returns the point sampling kernel
func (v *Volume) Interpolation() Interpolation { return v.interpolation }

// WorldBounds returns the world-space box the traversal clips rays against
func (v *Volume) WorldBounds() core.AABB { return v.density.WorldBounds() }

// Intersect clips a world ray against the density grid and returns a majorant iterator
// over the overlap. It returns false when the ray misses or carries non-finite values.
func (v *Volume) Intersect(ray core.Ray) (*MajorantIterator, bool) {
	g := v.density
	if g.bbox.IsEmpty() || !ray.IsFinite() {
		return nil, false
	}
	dirLength := ray.Direction.Length()
	dir := ray.Direction.Normalize()
	if dir.IsZero() {
		return nil, false
	}

	indexDir := g.WorldToIndexDir(dir)
	indexLength := indexDir.Length()
	indexRay := core.NewRay(g.WorldToIndex(ray.Origin), indexDir.Multiply(1/indexLength))

	box := core.NewAABB(g.bbox.Min.Vec3(), g.bbox.Max.Offset(1).Vec3())
	t0, t1, ok := box.Intersect(indexRay, 0, math.Inf(1))
	if !ok || !(t1 > t0) || math.IsInf(t1, 0) {
		return nil, false
	}

	scale := g.IndexToWorldDir(indexRay.Direction).Length()
	return newMajorantIterator(IndexRay{Ray: indexRay, T0: t0, T1: t1}, g.Accessor(), g.bbox, scale, dirLength), true
}

// MajorantTrace returns every segment along the ray, empty space included, together with
// the visited cells. It is meant for debugging the traversal of a single ray.
func (v *Volume) MajorantTrace(ray core.Ray) ([]Segment, []DDAStep, bool) {
	it, ok := v.Intersect(ray)
	if !ok {
		return nil, nil, false
	}
	var steps []DDAStep
	it.RecordSteps(&steps)

	var segments []Segment
	for seg, ok := it.nextSegment(); ok; seg, ok = it.nextSegment() {
		segments = append(segments, seg)
	}
	return segments, steps, true
}

// Lookup evaluates the medium channels at sample points. It owns accessors, so each
// worker needs its own. Whether temperature exists is resolved once here.
type Lookup struct {
	grid        *Grid
	density     *PointSampler
	temperature func(world core.Vec3) float64
	emissive    bool
}

// NewLookup creates the per-worker channel lookup
func (v *Volume) NewLookup() *Lookup {
	l := &Lookup{
		grid:    v.density,
		density: NewPointSampler(v.density, v.interpolation),
	}
	if v.temperature != nil {
		tg := v.temperature
		ts := NewPointSampler(tg, v.interpolation)
		l.temperature = func(world core.Vec3) float64 {
			return ts.Sample(tg.WorldToIndex(world))
		}
		l.emissive = true
	} else {
		l.temperature = func(core.Vec3) float64 { return 0 }
	}
	return l
}

// Emissive reports whether a temperature channel is present
func (l *Lookup) Emissive() bool { return l.emissive }

// DensityAt samples the density at an index-space point of the density grid
func (l *Lookup) DensityAt(index core.Vec3) float64 { return l.density.Sample(index) }

// TemperatureAt samples the temperature at a world point (0 without a temperature grid)
func (l *Lookup) TemperatureAt(world core.Vec3) float64 { return l.temperature(world) }
