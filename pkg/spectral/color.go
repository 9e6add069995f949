package spectral

import (
	"math"

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
)

// XYZToLinearSRGB converts CIE XYZ to linear sRGB (D65)
func XYZToLinearSRGB(xyz core.Vec3) core.Vec3 {
	return core.NewVec3(
		3.240479*xyz.X-1.537150*xyz.Y-0.498535*xyz.Z,
		-0.969256*xyz.X+1.875991*xyz.Y+0.041556*xyz.Z,
		0.055648*xyz.X-0.204043*xyz.Y+1.057311*xyz.Z,
	)
}

// LinearToSRGB applies the sRGB transfer curve to one channel
func LinearToSRGB(x float64) float64 {
	if x <= 0.0031308 {
		return 12.92 * x
	}
	return 1.055*math.Pow(x, 1/2.4) - 0.055
}

// XYZToSRGB converts XYZ to gamma encoded sRGB clamped to [0, 1]
func XYZToSRGB(xyz core.Vec3) core.Vec3 {
	lin := XYZToLinearSRGB(xyz).Clamp(0, 1)
	return core.NewVec3(LinearToSRGB(lin.X), LinearToSRGB(lin.Y), LinearToSRGB(lin.Z))
}
