package renderer

import (
	"image"

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
	"github.com/df07/go-volumetric-pathtracer/pkg/volume"
)

// PixelTrace is the majorant traversal of the ray through a pixel center
type PixelTrace struct {
	Pixel    image.Point
	Ray      core.Ray
	Hit      bool
	Segments []volume.Segment // Index-space ray parameters, empty space included
	Steps    []volume.DDAStep
}

// TracePixel casts an unjittered ray through pixel (x, y) and records every majorant segment
// and every cell the traversal visits
func TracePixel(camera *Camera, vol *volume.Volume, x, y int) PixelTrace {
	ray := camera.GenerateRay(x, y, core.NewVec2(0.5, 0.5))
	segments, steps, hit := vol.MajorantTrace(ray)
	return PixelTrace{
		Pixel:    image.Point{X: x, Y: y},
		Ray:      ray,
		Hit:      hit,
		Segments: segments,
		Steps:    steps,
	}
}

// MaxMajorant returns the largest majorant along the trace
func (pt PixelTrace) MaxMajorant() float64 {
	m := 0.0
	for _, s := range pt.Segments {
		m = max(m, s.Majorant)
	}
	return m
}
