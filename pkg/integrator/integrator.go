package integrator

import (
	"github.com/df07/go-volumetric-pathtracer/pkg/core"
)

// Integrator defines the interface for light transport algorithms
type Integrator interface {
	// RayColor estimates the XYZ radiance arriving along ray. Implementations hold
	// per-worker state and must not be shared between goroutines.
	RayColor(ray core.Ray, sampler core.Sampler) core.Vec3
}

// VolumeParams are the optical properties of the medium
type VolumeParams struct {
	HenyeyGreensteinG float64 // Phase function asymmetry in (-1, 1)
	LeScale           float64 // Emission multiplier applied to blackbody radiance
	SigmaA            float64 // Absorption coefficient per unit density
	SigmaS            float64 // Scattering coefficient per unit density
	TemperatureOffset float64 // Kelvin added after scaling grid temperatures
	TemperatureScale  float64 // Multiplier applied to grid temperatures
}

// Config controls the path integrator
type Config struct {
	MaxDepth int // Number of scatter events a path may take
	Volume   VolumeParams
}

// DefaultVolumeParams returns a mildly forward scattering, non-emissive medium
func DefaultVolumeParams() VolumeParams {
	return VolumeParams{
		HenyeyGreensteinG: 0.3,
		LeScale:           1,
		SigmaA:            1,
		SigmaS:            10,
		TemperatureScale:  1,
	}
}

// DefaultConfig returns sensible integrator defaults
func DefaultConfig() Config {
	return Config{
		MaxDepth: 16,
		Volume:   DefaultVolumeParams(),
	}
}
