package volume

import (
	"math"

	"github.com/pkg/errors"

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
)

// Interpolation selects the point sampling kernel
type Interpolation int

const (
	Trilinear Interpolation = iota
	Nearest
)

// String returns the configuration name of the kernel
func (i Interpolation) String() string {
	switch i {
	case Nearest:
		return "nearest"
	default:
		return "trilinear"
	}
}

// Order is the stencil reach of the kernel in voxels, used to size the majorant halo.
// Both kernels read up to one voxel past the cell containing the point.
func (i Interpolation) Order() int {
	return 1
}

// ParseInterpolation parses "trilinear" or "nearest"; the empty string means trilinear
func ParseInterpolation(s string) (Interpolation, error) {
	switch s {
	case "", "trilinear":
		return Trilinear, nil
	case "nearest":
		return Nearest, nil
	}
	return Trilinear, errors.Errorf("unknown interpolation %q", s)
}

// PointSampler reconstructs a continuous field from voxel values stored at integer
// index coordinates.
type PointSampler struct {
	acc    *Accessor
	interp Interpolation
}

// NewPointSampler creates a sampler with its own accessor
func NewPointSampler(g *Grid, interp Interpolation) *PointSampler {
	return &PointSampler{acc: g.Accessor(), interp: interp}
}

// Sample evaluates the field at the index-space point p
func (s *PointSampler) Sample(p core.Vec3) float64 {
	if s.interp == Nearest {
		return s.acc.Value(Coord{
			int(math.Floor(p.X + 0.5)),
			int(math.Floor(p.Y + 0.5)),
			int(math.Floor(p.Z + 0.5)),
		})
	}
	return s.trilinear(p)
}

func (s *PointSampler) trilinear(p core.Vec3) float64 {
	f := p.Floor()
	c := FloorCoord(f)
	u := p.Subtract(f)

	v000 := s.acc.Value(c)
	v001 := s.acc.Value(c.Add(Coord{0, 0, 1}))
	v010 := s.acc.Value(c.Add(Coord{0, 1, 0}))
	v011 := s.acc.Value(c.Add(Coord{0, 1, 1}))
	v100 := s.acc.Value(c.Add(Coord{1, 0, 0}))
	v101 := s.acc.Value(c.Add(Coord{1, 0, 1}))
	v110 := s.acc.Value(c.Add(Coord{1, 1, 0}))
	v111 := s.acc.Value(c.Add(Coord{1, 1, 1}))

	v00 := lerp(v000, v001, u.Z)
	v01 := lerp(v010, v011, u.Z)
	v10 := lerp(v100, v101, u.Z)
	v11 := lerp(v110, v111, u.Z)

	v0 := lerp(v00, v01, u.Y)
	v1 := lerp(v10, v11, u.Y)
	return lerp(v0, v1, u.X)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
