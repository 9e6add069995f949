package renderer

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
)

func TestCameraCenterRay(t *testing.T) {
	params := CameraParams{
		Position:     core.NewVec3(1, 2, 3),
		Look:         core.NewVec3(1, 2, 10),
		Up:           core.NewVec3(0, 1, 0),
		VFovDeg:      60,
		ImagingRatio: 2,
	}
	cam := NewCamera(params, 101, 51)

	ray := cam.GenerateRay(50, 25, core.NewVec2(0.5, 0.5))
	if diff := cmp.Diff(params.Position, ray.Origin); diff != "" {
		t.Errorf("Origin mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(core.NewVec3(0, 0, 1), ray.Direction, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Direction mismatch (-want +got):\n%s", diff)
	}
	if cam.ImagingRatio() != 2 {
		t.Errorf("Expected imaging ratio 2, got %f", cam.ImagingRatio())
	}
}

func TestCameraFieldOfView(t *testing.T) {
	params := DefaultCameraParams()
	params.VFovDeg = 90
	cam := NewCamera(params, 200, 100)

	// Top edge of the middle column is half the vertical field of view above the axis
	top := cam.GenerateRay(100, 0, core.NewVec2(0, 0)).Direction
	forward := params.Look.Subtract(params.Position).Normalize()
	angle := math.Acos(top.Dot(forward)) * 180 / math.Pi
	if math.Abs(angle-45) > 1e-9 {
		t.Errorf("Expected 45 degrees to the top edge, got %f", angle)
	}
	if top.Y <= 0 {
		t.Errorf("Expected row 0 to look up, got %v", top)
	}

	// Leftmost column looks towards up × forward
	left := cam.GenerateRay(0, 50, core.NewVec2(0, 0)).Direction
	leftAxis := params.Up.Cross(forward)
	if left.Dot(leftAxis) <= 0 {
		t.Errorf("Expected column 0 to look left, got %v", left)
	}
	// Horizontal extent follows the aspect ratio: tan = 2 at the left edge
	if math.Abs(left.Dot(leftAxis)/left.Dot(forward)-2) > 1e-9 {
		t.Errorf("Expected horizontal tangent 2, got %f", left.Dot(leftAxis)/left.Dot(forward))
	}
}

func TestCameraRaysAreNormalized(t *testing.T) {
	cam := NewCamera(DefaultCameraParams(), 16, 9)
	for y := 0; y < 9; y++ {
		for x := 0; x < 16; x++ {
			d := cam.GenerateRay(x, y, core.NewVec2(0.25, 0.75)).Direction
			if math.Abs(d.Length()-1) > 1e-12 {
				t.Fatalf("Pixel (%d,%d): expected unit direction, got length %f", x, y, d.Length())
			}
		}
	}
}
