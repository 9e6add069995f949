package renderer

import (
	"image"

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
	"github.com/df07/go-volumetric-pathtracer/pkg/integrator"
)

// TileConfig controls how pixels of a tile are sampled
type TileConfig struct {
	UseJitter   bool         // Random offset within the pixel instead of the centre
	SinglePixel *image.Point // Only render this pixel, for debugging
}

// TileRenderer renders the pixels of one tile with an integrator. It is owned by a
// single worker.
type TileRenderer struct {
	camera     *Camera
	integrator integrator.Integrator
	film       *Film
	config     TileConfig
	buffer     []Cell
}

// NewTileRenderer creates a tile renderer writing into film
func NewTileRenderer(camera *Camera, integratorInst integrator.Integrator, film *Film, config TileConfig) *TileRenderer {
	return &TileRenderer{
		camera:     camera,
		integrator: integratorInst,
		film:       film,
		config:     config,
	}
}

// RenderTile traces one sample per pixel of rect and commits them to the film
func (tr *TileRenderer) RenderTile(rect image.Rectangle, sampler core.Sampler) TileStats {
	n := rect.Dx() * rect.Dy()
	if cap(tr.buffer) < n {
		tr.buffer = make([]Cell, n)
	}
	buf := tr.buffer[:n]
	clear(buf)

	var stats TileStats
	center := core.NewVec2(0.5, 0.5)
	ratio := tr.camera.ImagingRatio()

	i := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			idx := i
			i++
			if tr.config.SinglePixel != nil && (image.Point{X: x, Y: y}) != *tr.config.SinglePixel {
				continue
			}

			jitter := center
			if tr.config.UseJitter {
				jitter = sampler.Get2D()
			}
			ray := tr.camera.GenerateRay(x, y, jitter)

			L := tr.integrator.RayColor(ray, sampler)
			stats.Pixels++
			if !L.IsFinite() {
				stats.Dropped++
				continue
			}
			L = L.Multiply(ratio)
			buf[idx] = Cell{L.X, L.Y, L.Z, 1}
		}
	}

	tr.film.CommitTile(rect, buf)
	return stats
}
