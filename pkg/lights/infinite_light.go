package lights

import "github.com/df07/go-volumetric-pathtracer/pkg/core"

// InfiniteLight is a uniform background surrounding the scene
type InfiniteLight struct {
	XYZ        core.Vec3
	Multiplier float64
}

// NewInfiniteLight creates a uniform infinite light
func NewInfiniteLight(xyz core.Vec3, multiplier float64) *InfiniteLight {
	return &InfiniteLight{XYZ: xyz, Multiplier: multiplier}
}

// Radiance returns the scaled background radiance
func (l *InfiniteLight) Radiance() core.Vec3 {
	return l.XYZ.Multiply(l.Multiplier)
}

// Emit returns the same radiance in every direction
func (l *InfiniteLight) Emit(direction core.Vec3) core.Vec3 {
	return l.Radiance()
}

// Sample never succeeds: the background is gathered by escaping paths, and sampling it
// as well would count it twice.
func (l *InfiniteLight) Sample(point core.Vec3, sample core.Vec2) (LightSample, bool) {
	return LightSample{}, false
}
