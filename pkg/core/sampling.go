package core

import (
	"math"

	"pgregory.net/rand"
)

// Sampler provides random sampling for rendering algorithms
// Can be swapped out for deterministic testing or different sampling patterns
type Sampler interface {
	Get1D() float64
	Get2D() Vec2
	Get3D() Vec3
}

// RandomSampler is a worker-local generator. It is never shared between goroutines;
// BeginJob reseeds it so every job sees the same stream regardless of scheduling.
type RandomSampler struct {
	seed   uint64
	random *rand.Rand
}

// NewRandomSampler creates a sampler keyed by a global seed
func NewRandomSampler(seed uint64) *RandomSampler {
	return &RandomSampler{
		seed:   seed,
		random: rand.New(seed),
	}
}

// BeginJob reseeds the generator from (global seed, job id)
func (r *RandomSampler) BeginJob(jobID uint64) {
	r.random.Seed(Hash64(r.seed, jobID))
}

// Get1D returns a random float64 in [0, 1)
func (r *RandomSampler) Get1D() float64 {
	return r.random.Float64()
}

// Get2D returns two random float64 values in [0, 1)
func (r *RandomSampler) Get2D() Vec2 {
	return NewVec2(r.random.Float64(), r.random.Float64())
}

// Get3D returns three random float64 values in [0, 1)
func (r *RandomSampler) Get3D() Vec3 {
	return NewVec3(r.random.Float64(), r.random.Float64(), r.random.Float64())
}

// SampleExponential samples a distance from the density a*exp(-a*x).
// A non-positive rate never produces a finite distance.
func SampleExponential(u, a float64) float64 {
	if a <= 0 {
		return math.Inf(1)
	}
	return -math.Log1p(-u) / a
}

// HenyeyGreenstein evaluates the Henyey-Greenstein phase function for the cosine of the
// angle between the propagation direction and the scattered direction.
func HenyeyGreenstein(cosTheta, g float64) float64 {
	denom := 1 + g*g - 2*g*cosTheta
	return (1 - g*g) / (4 * math.Pi * denom * math.Sqrt(denom))
}

// SampleHenyeyGreenstein samples a scattered direction around the propagation direction
// dir with density HenyeyGreenstein(dot(dir, result), g).
func SampleHenyeyGreenstein(dir Vec3, g float64, sample Vec2) Vec3 {
	var cosTheta float64
	if math.Abs(g) < 1e-3 {
		cosTheta = 1 - 2*sample.X
	} else {
		sqrTerm := (1 - g*g) / (1 - g + 2*g*sample.X)
		cosTheta = (1 + g*g - sqrTerm*sqrTerm) / (2 * g)
	}
	cosTheta = max(-1, min(1, cosTheta))

	sinTheta := math.Sqrt(math.Max(0, 1-cosTheta*cosTheta))
	phi := 2 * math.Pi * sample.Y

	w := dir.Normalize()
	u, v := CoordinateSystem(w)
	return u.Multiply(sinTheta * math.Cos(phi)).
		Add(v.Multiply(sinTheta * math.Sin(phi))).
		Add(w.Multiply(cosTheta))
}

// CoordinateSystem builds two unit vectors orthogonal to the unit vector v and to each other
func CoordinateSystem(v Vec3) (Vec3, Vec3) {
	var nt Vec3
	if math.Abs(v.X) > 0.1 {
		nt = NewVec3(0, 1, 0)
	} else {
		nt = NewVec3(1, 0, 0)
	}
	tangent := nt.Cross(v).Normalize()
	bitangent := v.Cross(tangent)
	return tangent, bitangent
}

// SampleDiscrete picks an index with probability proportional to its weight using a
// single uniform draw. Weights are walked in order and the first index whose cumulative
// weight exceeds the scaled draw wins. If rounding leaves the draw past the end, the last
// index with a positive weight is returned. Degenerate weights (all zero, negative total,
// NaN) return index 0.
func SampleDiscrete(weights []float64, u float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if len(weights) == 0 || !(total > 0) || math.IsInf(total, 0) {
		return 0
	}

	up := u * total
	if up >= total {
		up = math.Nextafter(total, 0)
	}

	cumulative := 0.0
	last := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		last = i
		cumulative += w
		if up < cumulative {
			return i
		}
	}
	return last
}
