// Package scene generates the built-in procedural volumes.
package scene

import (
	"maps"
	"math"
	"slices"

	"github.com/pkg/errors"

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
	"github.com/df07/go-volumetric-pathtracer/pkg/volume"
)

// DefaultVoxelSize is the world-space voxel edge used by Builtin
const DefaultVoxelSize = 0.02

// fogBand is the width in voxels over which fog volumes ramp from 0 to 1 inside a surface
const fogBand = 3

type generator func(voxelSize float64) (density, temperature *volume.Grid)

var builtins = map[string]generator{
	"torus":  torus,
	"sphere": sphere,
	"fire":   fire,
	"slab":   slab,
}

// Names lists the built-in volumes in sorted order
func Names() []string {
	return slices.Sorted(maps.Keys(builtins))
}

// Builtin generates a named volume at the default resolution. temperature is nil for
// volumes that do not emit.
func Builtin(name string) (density, temperature *volume.Grid, err error) {
	return BuiltinAt(name, DefaultVoxelSize)
}

// BuiltinAt generates a named volume with the given voxel size
func BuiltinAt(name string, voxelSize float64) (density, temperature *volume.Grid, err error) {
	gen, ok := builtins[name]
	if !ok {
		return nil, nil, errors.Errorf("unknown scene %q (available: %v)", name, Names())
	}
	if !(voxelSize > 0) || math.IsInf(voxelSize, 0) {
		return nil, nil, errors.Errorf("invalid voxel size %v", voxelSize)
	}
	core.Logger().Debug("generating volume", "scene", name, "voxel_size", voxelSize)
	density, temperature = gen(voxelSize)
	return density, temperature, nil
}

// sampleField evaluates f at every voxel whose world position lies in bounds.
// Index (0,0,0) sits at bounds.Min.
func sampleField(name string, bounds core.AABB, voxelSize float64, f func(p core.Vec3) float64) *volume.Grid {
	b := volume.NewGridBuilder(name, voxelSize, bounds.Min)
	extent := bounds.Size().Multiply(1 / voxelSize)
	last := volume.Coord{X: int(math.Ceil(extent.X)), Y: int(math.Ceil(extent.Y)), Z: int(math.Ceil(extent.Z))}
	volume.CoordBBox{Max: last}.ForEach(func(c volume.Coord) {
		p := bounds.Min.Add(c.Vec3().Multiply(voxelSize))
		if v := f(p); v != 0 {
			b.Set(c, float32(v))
		}
	})
	return b.Build()
}

// fog turns a signed distance into a fog density: 0 outside, ramping to 1 over fogBand voxels inside
func fog(sdf, voxelSize float64) float64 {
	return core.Clamp(-sdf/(fogBand*voxelSize), 0, 1)
}

func smoothstep(edge0, edge1, x float64) float64 {
	t := core.Clamp((x-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}

func cube(halfSize float64) core.AABB {
	return core.NewAABB(core.Splat(-halfSize), core.Splat(halfSize))
}

// torus is a fog ring facing the default camera. Its temperature grid exists but is cold.
func torus(voxelSize float64) (*volume.Grid, *volume.Grid) {
	const major, minor = 0.7, 0.3
	bounds := core.NewAABB(core.NewVec3(-1.05, -1.05, -0.35), core.NewVec3(1.05, 1.05, 0.35))
	density := sampleField("density", bounds, voxelSize, func(p core.Vec3) float64 {
		q := math.Hypot(math.Hypot(p.X, p.Y)-major, p.Z)
		return fog(q-minor, voxelSize)
	})
	temperature := volume.NewGridBuilder("temperature", voxelSize, bounds.Min).Build()
	return density, temperature
}

// sphere has a smooth quadratic falloff from the center
func sphere(voxelSize float64) (*volume.Grid, *volume.Grid) {
	const radius = 0.8
	density := sampleField("density", cube(radius), voxelSize, func(p core.Vec3) float64 {
		r := p.Length() / radius
		return max(0, 1-r*r)
	})
	return density, nil
}

// fire is a tall plume with a hot core that cools towards the edges and the top
func fire(voxelSize float64) (*volume.Grid, *volume.Grid) {
	const radius, height = 0.45, 1.6
	bounds := core.NewAABB(core.NewVec3(-radius, -height/2, -radius), core.NewVec3(radius, height/2, radius))

	// Normalized distance from the axis, the plume narrows as it rises
	shape := func(p core.Vec3) (float64, float64) {
		h := (p.Y + height/2) / height
		width := radius * (1 - 0.6*h)
		return math.Hypot(p.X, p.Z) / width, h
	}

	density := sampleField("density", bounds, voxelSize, func(p core.Vec3) float64 {
		r, h := shape(p)
		return (1 - smoothstep(0.6, 1, r)) * (1 - smoothstep(0.8, 1, h))
	})
	temperature := sampleField("temperature", bounds, voxelSize, func(p core.Vec3) float64 {
		r, h := shape(p)
		if r >= 1 || h >= 1 {
			return 0
		}
		return 3000 * (1 - r*r) * (1 - 0.7*h)
	})
	return density, temperature
}

// slab is a constant-density block
func slab(voxelSize float64) (*volume.Grid, *volume.Grid) {
	bounds := core.NewAABB(core.NewVec3(-0.8, -0.5, -0.2), core.NewVec3(0.8, 0.5, 0.2))
	density := sampleField("density", bounds, voxelSize, func(core.Vec3) float64 { return 1 })
	return density, nil
}
