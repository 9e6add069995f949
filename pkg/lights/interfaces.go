// Package lights holds the two light sources that illuminate the medium: an infinite
// background and a distant directional light.
package lights

import "github.com/df07/go-volumetric-pathtracer/pkg/core"

// Light is a source outside the medium. Radiance values are CIE XYZ.
type Light interface {
	// Emit returns the radiance arriving along a ray that escapes in direction
	Emit(direction core.Vec3) core.Vec3

	// Sample returns the light's contribution towards point for direct lighting.
	// It returns false when the light has nothing to sample, either because it is dark
	// or because escaping paths already gather it through Emit.
	Sample(point core.Vec3, sample core.Vec2) (LightSample, bool)
}

// LightSample contains information about a sampled direction towards a light
type LightSample struct {
	Direction core.Vec3 // Unit direction from the shading point to the light
	Distance  float64   // Distance to light, +Inf for lights at infinity
	Emission  core.Vec3 // Radiance arriving from the light
	PDF       float64   // Solid angle density, 1 for delta lights
	IsDelta   bool      // Whether the light is a delta distribution in direction
}
