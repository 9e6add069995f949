package renderer

import (
	"math"

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
)

// CameraParams describes a pinhole camera
type CameraParams struct {
	Position     core.Vec3
	Look         core.Vec3 // Point the camera looks at
	Up           core.Vec3
	VFovDeg      float64 // Vertical field of view in degrees
	ImagingRatio float64 // Scale applied to every radiance sample
}

// DefaultCameraParams returns a camera on the -z axis looking at the origin
func DefaultCameraParams() CameraParams {
	return CameraParams{
		Position:     core.NewVec3(0, 0, -3),
		Look:         core.NewVec3(0, 0, 0),
		Up:           core.NewVec3(0, 1, 0),
		VFovDeg:      40,
		ImagingRatio: 1,
	}
}

// Camera generates primary rays for raster positions
type Camera struct {
	params CameraParams
	width  int
	height int

	left, up, forward core.Vec3
	tanHalfFov        float64
	aspect            float64
}

// NewCamera creates a camera for an image of the given size
func NewCamera(params CameraParams, width, height int) *Camera {
	forward := params.Look.Subtract(params.Position).Normalize()
	left := params.Up.Normalize().Cross(forward).Normalize()
	up := forward.Cross(left)

	return &Camera{
		params:     params,
		width:      width,
		height:     height,
		left:       left,
		up:         up,
		forward:    forward,
		tanHalfFov: math.Tan(params.VFovDeg * math.Pi / 360),
		aspect:     float64(width) / float64(height),
	}
}

// Params returns the parameters the camera was built from
func (c *Camera) Params() CameraParams { return c.params }

// ImagingRatio returns the scale applied to radiance samples
func (c *Camera) ImagingRatio() float64 { return c.params.ImagingRatio }

// GenerateRay returns the ray through raster position (x, y) offset by jitter within
// the pixel. A jitter of (0.5, 0.5) is the pixel centre.
func (c *Camera) GenerateRay(x, y int, jitter core.Vec2) core.Ray {
	rx := float64(x) + jitter.X
	ry := float64(y) + jitter.Y

	// Raster to screen: [0,w]×[0,h] onto [1,-1]×[1,-1]
	sx := 1 - 2*rx/float64(c.width)
	sy := 1 - 2*ry/float64(c.height)

	dir := c.left.Multiply(c.aspect * c.tanHalfFov * sx).
		Add(c.up.Multiply(c.tanHalfFov * sy)).
		Add(c.forward)
	return core.NewRay(c.params.Position, dir.Normalize())
}
