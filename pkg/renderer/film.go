package renderer

import (
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
	"github.com/df07/go-volumetric-pathtracer/pkg/spectral"
)

// Cell accumulates XYZ radiance in the first three components and the sample weight
// in the fourth.
type Cell [4]float64

// Film is the dense accumulation buffer shared by all workers. Workers add whole tiles
// with CommitTile; readers take snapshots under the read lock.
type Film struct {
	mu     sync.RWMutex
	width  int
	height int
	cells  []Cell
}

// NewFilm creates an empty film
func NewFilm(width, height int) *Film {
	return &Film{
		width:  width,
		height: height,
		cells:  make([]Cell, width*height),
	}
}

// Bounds returns the pixel rectangle covered by the film
func (f *Film) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.width, f.height)
}

// CommitTile adds samples, laid out row by row over rect, into the film
func (f *Film) CommitTile(rect image.Rectangle, samples []Cell) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		row := f.cells[y*f.width : (y+1)*f.width]
		for x := rect.Min.X; x < rect.Max.X; x++ {
			s := samples[i]
			c := &row[x]
			c[0] += s[0]
			c[1] += s[1]
			c[2] += s[2]
			c[3] += s[3]
			i++
		}
	}
}

// Pixel returns the accumulator of one pixel
func (f *Film) Pixel(x, y int) Cell {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cells[y*f.width+x]
}

// Snapshot returns a copy of all accumulators in row-major order
func (f *Film) Snapshot() []Cell {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Cell, len(f.cells))
	copy(out, f.cells)
	return out
}

// Radiance returns the weight-normalized XYZ radiance of a cell
func (c Cell) Radiance() core.Vec3 {
	if c[3] <= 0 {
		return core.Vec3{}
	}
	return core.NewVec3(c[0], c[1], c[2]).Multiply(1 / c[3])
}

// Image converts the film to an 8-bit sRGB image
func (f *Film) Image() *image.RGBA {
	cells := f.Snapshot()
	img := image.NewRGBA(f.Bounds())
	for i, c := range cells {
		rgb := spectral.XYZToSRGB(c.Radiance())
		img.SetRGBA(i%f.width, i/f.width, color.RGBA{
			R: uint8(math.Round(rgb.X * 255)),
			G: uint8(math.Round(rgb.Y * 255)),
			B: uint8(math.Round(rgb.Z * 255)),
			A: 255,
		})
	}
	return img
}

// Image16 converts the film to a 16-bit sRGB image
func (f *Film) Image16() *image.RGBA64 {
	cells := f.Snapshot()
	img := image.NewRGBA64(f.Bounds())
	for i, c := range cells {
		rgb := spectral.XYZToSRGB(c.Radiance())
		img.SetRGBA64(i%f.width, i/f.width, color.RGBA64{
			R: uint16(math.Round(rgb.X * 65535)),
			G: uint16(math.Round(rgb.Y * 65535)),
			B: uint16(math.Round(rgb.Z * 65535)),
			A: 65535,
		})
	}
	return img
}

// AverageLuminance returns the mean normalized Y over all pixels with samples
func (f *Film) AverageLuminance() float64 {
	cells := f.Snapshot()
	total := 0.0
	count := 0
	for _, c := range cells {
		if c[3] <= 0 {
			continue
		}
		total += c.Radiance().Y
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}
