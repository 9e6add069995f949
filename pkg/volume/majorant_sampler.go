package volume

import (
	"math"

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
)

// MediumProperties is a candidate interaction point produced by free-path sampling
type MediumProperties struct {
	Point       core.Vec3 // World position
	SigmaMaj    float64   // Majorant extinction coefficient in force at Point
	Density     float64   // Interpolated density
	Temperature float64   // Interpolated temperature, 0 without a temperature grid
	RayT        float64   // Parameter of Point along the ray passed to Intersect
}

// MajorantTransmittanceSampler samples exponential free paths at the majorant rate over
// the segments of a MajorantIterator, yielding the points where a real interaction may
// happen and accumulating the majorant transmittance of everything stepped over.
//
// It is single-goroutine, purely local state.
type MajorantTransmittanceSampler struct {
	tMaj   float64
	sigmaT float64

	sampler  core.Sampler
	iterator *MajorantIterator
	lookup   *Lookup
	grid     *Grid

	segment    Segment
	hasSegment bool
}

// NewMajorantTransmittanceSampler starts sampling along it with total extinction
// coefficient sigmaT (per unit density).
func NewMajorantTransmittanceSampler(it *MajorantIterator, sampler core.Sampler, lookup *Lookup, sigmaT float64) *MajorantTransmittanceSampler {
	return &MajorantTransmittanceSampler{
		tMaj:     1,
		sigmaT:   sigmaT,
		sampler:  sampler,
		iterator: it,
		lookup:   lookup,
		grid:     lookup.grid,
	}
}

// TMaj returns the majorant transmittance accumulated since creation
func (s *MajorantTransmittanceSampler) TMaj() float64 { return s.tMaj }

// Next returns the next point with positive density, or false once the ray has left
// the volume.
func (s *MajorantTransmittanceSampler) Next() (MediumProperties, bool) {
	scale := s.iterator.IndexToWorldScale()

	for {
		if !s.hasSegment {
			seg, ok := s.iterator.Next()
			if !ok {
				return MediumProperties{}, false
			}
			if seg.Majorant <= 0 || s.sigmaT <= 0 {
				continue
			}
			s.segment = seg
			s.hasSegment = true
		}

		sigmaMaj := s.segment.Majorant * s.sigmaT

		dtWorld := core.SampleExponential(s.sampler.Get1D(), sigmaMaj)
		t := s.segment.T0 + dtWorld/scale

		if t < s.segment.T1 {
			s.segment.T0 = t
			s.tMaj *= math.Exp(-dtWorld * sigmaMaj)

			indexPoint := s.iterator.ray.At(t)
			density := s.lookup.DensityAt(indexPoint)
			if density <= 0 {
				continue
			}

			world := s.grid.IndexToWorld(indexPoint)
			return MediumProperties{
				Point:       world,
				SigmaMaj:    sigmaMaj,
				Density:     density,
				Temperature: s.lookup.TemperatureAt(world),
				RayT:        s.iterator.RayParameter(t),
			}, true
		}

		// Past the end of the segment: account for the unconsumed remainder.
		remaining := (s.segment.T1 - s.segment.T0) * scale
		s.tMaj *= math.Exp(-remaining * sigmaMaj)
		s.hasSegment = false
	}
}
