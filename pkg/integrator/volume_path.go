package integrator

import (
	"github.com/df07/go-volumetric-pathtracer/pkg/core"
	"github.com/df07/go-volumetric-pathtracer/pkg/lights"
	"github.com/df07/go-volumetric-pathtracer/pkg/spectral"
	"github.com/df07/go-volumetric-pathtracer/pkg/volume"
)

const (
	// Shadow ray transmittance below this enters Russian roulette
	rouletteThreshold = 0.1
	// Probability of terminating a shadow ray in Russian roulette
	rouletteQ = 0.75
)

// VolumePathIntegrator implements null-collision path tracing through a heterogeneous
// medium lit by lights outside it. Escaping paths gather Emit from every light and
// scatter events gather Sample from every light.
//
// Each worker owns one: it carries the grid lookups, which cache accessor state.
type VolumePathIntegrator struct {
	config Config
	volume *volume.Volume
	lookup *volume.Lookup
	lights []lights.Light

	sigmaT float64
	emit   func(temperature float64) core.Vec3
}

// NewVolumePathIntegrator creates a per-worker integrator. Nil lights are ignored.
func NewVolumePathIntegrator(config Config, vol *volume.Volume, sources ...lights.Light) *VolumePathIntegrator {
	vp := &VolumePathIntegrator{
		config: config,
		volume: vol,
		lookup: vol.NewLookup(),
		sigmaT: config.Volume.SigmaA + config.Volume.SigmaS,
	}
	for _, light := range sources {
		if light != nil {
			vp.lights = append(vp.lights, light)
		}
	}

	// The emission strategy is fixed for the lifetime of the integrator
	params := config.Volume
	if vp.lookup.Emissive() {
		vp.emit = func(temperature float64) core.Vec3 {
			kelvin := temperature*params.TemperatureScale + params.TemperatureOffset
			return spectral.BlackbodyXYZ(kelvin).Multiply(params.LeScale)
		}
	} else {
		vp.emit = func(float64) core.Vec3 { return core.Vec3{} }
	}
	return vp
}

// RayColor traces a path from the camera through the medium and returns its XYZ radiance
func (vp *VolumePathIntegrator) RayColor(ray core.Ray, sampler core.Sampler) core.Vec3 {
	var radiance core.Vec3
	params := vp.config.Volume

	for depth := 0; ; depth++ {
		it, ok := vp.volume.Intersect(ray)
		if !ok {
			return radiance.Add(vp.escape(ray.Direction))
		}

		direction := ray.Direction.Normalize()
		free := volume.NewMajorantTransmittanceSampler(it, sampler, vp.lookup, vp.sigmaT)

		scattered := false
		for p, ok := free.Next(); ok; p, ok = free.Next() {
			pa := p.Density * params.SigmaA / p.SigmaMaj
			ps := p.Density * params.SigmaS / p.SigmaMaj
			pn := max(0, 1-pa-ps)

			switch SampleEvent(pn, pa, ps, sampler.Get1D()) {
			case EventNull:
				continue

			case EventAbsorption:
				return radiance.Add(vp.emit(p.Temperature))

			case EventScatter:
				if depth >= vp.config.MaxDepth {
					return radiance
				}
				radiance = radiance.Add(vp.directLight(p.Point, direction, sampler))
				ray = core.NewRay(p.Point, core.SampleHenyeyGreenstein(direction, params.HenyeyGreensteinG, sampler.Get2D()))
				scattered = true
			}
			break
		}

		if !scattered {
			// Passed through the medium without a real collision
			return radiance.Add(vp.escape(ray.Direction))
		}
	}
}

// escape returns the radiance reaching a path that leaves the medium in direction
func (vp *VolumePathIntegrator) escape(direction core.Vec3) core.Vec3 {
	var radiance core.Vec3
	for _, light := range vp.lights {
		radiance = radiance.Add(light.Emit(direction))
	}
	return radiance
}

// directLight estimates the light arriving at point and scattered into -direction
func (vp *VolumePathIntegrator) directLight(point, direction core.Vec3, sampler core.Sampler) core.Vec3 {
	var radiance core.Vec3
	g := vp.config.Volume.HenyeyGreensteinG
	for _, light := range vp.lights {
		sample, ok := light.Sample(point, sampler.Get2D())
		if !ok || sample.PDF <= 0 {
			continue
		}
		phase := core.HenyeyGreenstein(direction.Dot(sample.Direction), g)
		if phase <= 0 {
			continue
		}
		tr := vp.transmittance(core.NewRay(point, sample.Direction), sampler)
		if tr <= 0 {
			continue
		}
		radiance = radiance.Add(sample.Emission.Multiply(tr * phase / sample.PDF))
	}
	return radiance
}

// transmittance estimates the transmittance from the ray origin to the edge of the medium
// with ratio tracking, terminating low-weight estimates with Russian roulette.
func (vp *VolumePathIntegrator) transmittance(ray core.Ray, sampler core.Sampler) float64 {
	it, ok := vp.volume.Intersect(ray)
	if !ok {
		return 1
	}

	tr := 1.0
	free := volume.NewMajorantTransmittanceSampler(it, sampler, vp.lookup, vp.sigmaT)
	for p, ok := free.Next(); ok; p, ok = free.Next() {
		tr *= max(0, 1-p.Density*vp.sigmaT/p.SigmaMaj)
		if tr <= 0 {
			return 0
		}
		if tr < rouletteThreshold {
			if sampler.Get1D() < rouletteQ {
				return 0
			}
			tr /= 1 - rouletteQ
		}
	}
	return tr
}
