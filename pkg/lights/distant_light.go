package lights

import (
	"math"

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
)

// DistantLight is a directional light at infinity, like the sun
type DistantLight struct {
	XYZ        core.Vec3
	Multiplier float64
	toLight    core.Vec3
}

// NewDistantLight creates a distant light. invDirection points from the scene towards
// the light and does not need to be normalized.
func NewDistantLight(xyz core.Vec3, multiplier float64, invDirection core.Vec3) *DistantLight {
	return &DistantLight{
		XYZ:        xyz,
		Multiplier: multiplier,
		toLight:    invDirection.Normalize(),
	}
}

// Radiance returns the scaled light radiance
func (l *DistantLight) Radiance() core.Vec3 {
	return l.XYZ.Multiply(l.Multiplier)
}

// ToLight returns the unit direction from any point towards the light
func (l *DistantLight) ToLight() core.Vec3 {
	return l.toLight
}

// Enabled reports whether the light contributes anything
func (l *DistantLight) Enabled() bool {
	return !l.Radiance().IsZero() && !l.toLight.IsZero()
}

// Emit returns zero: escaping rays never hit a delta light
func (l *DistantLight) Emit(direction core.Vec3) core.Vec3 {
	return core.Vec3{}
}

// Sample returns the fixed direction towards the light
func (l *DistantLight) Sample(point core.Vec3, sample core.Vec2) (LightSample, bool) {
	if !l.Enabled() {
		return LightSample{}, false
	}
	return LightSample{
		Direction: l.toLight,
		Distance:  math.Inf(1),
		Emission:  l.Radiance(),
		PDF:       1,
		IsDelta:   true,
	}, true
}
