// Package config loads and validates render configurations from JSON or YAML files.
package config

import (
	"bytes"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
	"github.com/df07/go-volumetric-pathtracer/pkg/integrator"
	"github.com/df07/go-volumetric-pathtracer/pkg/lights"
	"github.com/df07/go-volumetric-pathtracer/pkg/renderer"
	"github.com/df07/go-volumetric-pathtracer/pkg/volume"
)

// Vec3 is a vector as written in configuration files: [x, y, z]
type Vec3 [3]float64

// Core converts to a core.Vec3
func (v Vec3) Core() core.Vec3 { return core.NewVec3(v[0], v[1], v[2]) }

func (v Vec3) finite() bool { return v.Core().IsFinite() }

// Size is an image size in pixels
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// CameraParameters place the pinhole camera
type CameraParameters struct {
	Position     Vec3    `json:"position" yaml:"position"`
	Look         Vec3    `json:"look" yaml:"look"`
	Up           Vec3    `json:"up" yaml:"up"`
	VFovDeg      float64 `json:"vfov_deg" yaml:"vfov_deg"`
	ImagingRatio float64 `json:"imaging_ratio" yaml:"imaging_ratio"`
}

// InfiniteLightParameters describe the constant environment
type InfiniteLightParameters struct {
	XYZ        Vec3    `json:"xyz" yaml:"xyz"`
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
}

// DistantLightParameters describe the directional light. InvDirection points towards the light.
type DistantLightParameters struct {
	XYZ          Vec3    `json:"xyz" yaml:"xyz"`
	Multiplier   float64 `json:"multiplier" yaml:"multiplier"`
	InvDirection Vec3    `json:"inv_direction" yaml:"inv_direction"`
}

// SinglePixelMode restricts rendering to one pixel for debugging
type SinglePixelMode struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Coord   [2]int `json:"coord" yaml:"coord"`
}

// WorkerParameters control how every worker samples pixels and paths
type WorkerParameters struct {
	SinglePixel   SinglePixelMode         `json:"single_pixel" yaml:"single_pixel"`
	UseJitter     bool                    `json:"use_jitter" yaml:"use_jitter"`
	InfiniteLight InfiniteLightParameters `json:"infinite_light" yaml:"infinite_light"`
	DistantLight  DistantLightParameters  `json:"distant_light" yaml:"distant_light"`
	MaxDepth      int                     `json:"max_depth" yaml:"max_depth"`
}

// VolumeParameters are the optical properties of the medium
type VolumeParameters struct {
	HenyeyGreensteinG float64 `json:"henyey_greenstein_g" yaml:"henyey_greenstein_g"`
	LeScale           float64 `json:"le_scale" yaml:"le_scale"`
	SigmaA            float64 `json:"sigma_a" yaml:"sigma_a"`
	SigmaS            float64 `json:"sigma_s" yaml:"sigma_s"`
	TemperatureOffset float64 `json:"temperature_offset" yaml:"temperature_offset"`
	TemperatureScale  float64 `json:"temperature_scale" yaml:"temperature_scale"`
}

// Configuration is everything needed to set up one render
type Configuration struct {
	OutputSize       Size             `json:"output_size" yaml:"output_size"`
	TileSize         int              `json:"tile_size" yaml:"tile_size"`
	NumWaves         int              `json:"num_waves" yaml:"num_waves"`
	NumWorkers       int              `json:"num_workers" yaml:"num_workers"` // 0 = CPU count
	Seed             uint64           `json:"seed" yaml:"seed"`
	ProgressSeconds  float64          `json:"progress_seconds" yaml:"progress_seconds"`
	Camera           CameraParameters `json:"camera_parameters" yaml:"camera_parameters"`
	Worker           WorkerParameters `json:"worker_parameters" yaml:"worker_parameters"`
	VolumePath       string           `json:"volume_path" yaml:"volume_path"` // .vgrid path or blob URL
	Scene            string           `json:"scene" yaml:"scene"`             // Built-in volume, used when VolumePath is empty
	Interpolation    string           `json:"interpolation" yaml:"interpolation"`
	VolumeParameters VolumeParameters `json:"volume_parameters" yaml:"volume_parameters"`
}

// Default returns a configuration that renders the built-in torus
func Default() Configuration {
	camera := renderer.DefaultCameraParams()
	vp := integrator.DefaultVolumeParams()
	return Configuration{
		OutputSize:      Size{Width: 640, Height: 480},
		TileSize:        32,
		NumWaves:        64,
		Seed:            1,
		ProgressSeconds: 5,
		Camera: CameraParameters{
			Position:     Vec3{camera.Position.X, camera.Position.Y, camera.Position.Z},
			Look:         Vec3{camera.Look.X, camera.Look.Y, camera.Look.Z},
			Up:           Vec3{camera.Up.X, camera.Up.Y, camera.Up.Z},
			VFovDeg:      camera.VFovDeg,
			ImagingRatio: camera.ImagingRatio,
		},
		Worker: WorkerParameters{
			UseJitter:     true,
			InfiniteLight: InfiniteLightParameters{XYZ: Vec3{0.1, 0.1, 0.1}, Multiplier: 1},
			DistantLight:  DistantLightParameters{XYZ: Vec3{1, 1, 1}, Multiplier: 5, InvDirection: Vec3{1, 1, -1}},
			MaxDepth:      integrator.DefaultConfig().MaxDepth,
		},
		Scene:         "torus",
		Interpolation: volume.Trilinear.String(),
		VolumeParameters: VolumeParameters{
			HenyeyGreensteinG: vp.HenyeyGreensteinG,
			LeScale:           vp.LeScale,
			SigmaA:            vp.SigmaA,
			SigmaS:            vp.SigmaS,
			TemperatureOffset: vp.TemperatureOffset,
			TemperatureScale:  vp.TemperatureScale,
		},
	}
}

// Load reads a configuration file on top of Default. The format follows the extension.
func Load(path string) (Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Configuration{}, errors.Wrap(err, "reading configuration")
	}
	c, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return Configuration{}, errors.Wrapf(err, "parsing %s", path)
	}
	return c, nil
}

// Parse decodes data in the format named by ext (".json", ".yaml" or ".yml") on top of
// Default. Unknown keys are errors.
func Parse(data []byte, ext string) (Configuration, error) {
	c := Default()
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &c, json.RejectUnknownMembers(true)); err != nil {
			return Configuration{}, err
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil && err != io.EOF {
			return Configuration{}, err
		}
	default:
		return Configuration{}, errors.Errorf("unknown configuration format %q", ext)
	}
	return c, nil
}

// Validate rejects configurations that cannot render. It runs before any worker starts.
func (c Configuration) Validate() error {
	if err := c.ProgressiveConfig().Validate(); err != nil {
		return err
	}
	switch {
	case c.Worker.MaxDepth < 0:
		return errors.Errorf("max depth must not be negative, got %d", c.Worker.MaxDepth)
	case c.VolumeParameters.SigmaA < 0 || c.VolumeParameters.SigmaS < 0:
		return errors.Errorf("sigma_a and sigma_s must not be negative, got %v and %v",
			c.VolumeParameters.SigmaA, c.VolumeParameters.SigmaS)
	case !(math.Abs(c.VolumeParameters.HenyeyGreensteinG) < 1):
		return errors.Errorf("henyey_greenstein_g must be in (-1, 1), got %v", c.VolumeParameters.HenyeyGreensteinG)
	case !(c.Camera.VFovDeg > 0 && c.Camera.VFovDeg < 180):
		return errors.Errorf("vfov_deg must be in (0, 180), got %v", c.Camera.VFovDeg)
	case c.ProgressSeconds < 0:
		return errors.Errorf("progress_seconds must not be negative, got %v", c.ProgressSeconds)
	case c.VolumePath == "" && c.Scene == "":
		return errors.New("either volume_path or scene is required")
	}

	vectors := map[string]Vec3{
		"camera position":             c.Camera.Position,
		"camera look":                 c.Camera.Look,
		"camera up":                   c.Camera.Up,
		"infinite light xyz":          c.Worker.InfiniteLight.XYZ,
		"distant light xyz":           c.Worker.DistantLight.XYZ,
		"distant light inv_direction": c.Worker.DistantLight.InvDirection,
	}
	for name, v := range vectors {
		if !v.finite() {
			return errors.Errorf("%s must be finite, got %v", name, v)
		}
	}
	if c.Camera.Look.Core().Subtract(c.Camera.Position.Core()).IsZero() {
		return errors.New("camera look point equals its position")
	}
	if c.Camera.Up.Core().IsZero() {
		return errors.New("camera up vector is zero")
	}
	if _, err := c.InterpolationKernel(); err != nil {
		return err
	}
	return nil
}

// ProgressiveConfig converts to renderer settings
func (c Configuration) ProgressiveConfig() renderer.ProgressiveConfig {
	pc := renderer.ProgressiveConfig{
		Width:            c.OutputSize.Width,
		Height:           c.OutputSize.Height,
		TileSize:         c.TileSize,
		NumWaves:         c.NumWaves,
		NumWorkers:       c.NumWorkers,
		Seed:             c.Seed,
		Tile:             renderer.TileConfig{UseJitter: c.Worker.UseJitter},
		ProgressInterval: time.Duration(c.ProgressSeconds * float64(time.Second)),
	}
	if c.Worker.SinglePixel.Enabled {
		pc.Tile.SinglePixel = &image.Point{X: c.Worker.SinglePixel.Coord[0], Y: c.Worker.SinglePixel.Coord[1]}
	}
	return pc
}

// CameraParams converts to renderer camera parameters
func (c Configuration) CameraParams() renderer.CameraParams {
	return renderer.CameraParams{
		Position:     c.Camera.Position.Core(),
		Look:         c.Camera.Look.Core(),
		Up:           c.Camera.Up.Core(),
		VFovDeg:      c.Camera.VFovDeg,
		ImagingRatio: c.Camera.ImagingRatio,
	}
}

// IntegratorConfig converts to path integrator settings
func (c Configuration) IntegratorConfig() integrator.Config {
	vp := c.VolumeParameters
	return integrator.Config{
		MaxDepth: c.Worker.MaxDepth,
		Volume: integrator.VolumeParams{
			HenyeyGreensteinG: vp.HenyeyGreensteinG,
			LeScale:           vp.LeScale,
			SigmaA:            vp.SigmaA,
			SigmaS:            vp.SigmaS,
			TemperatureOffset: vp.TemperatureOffset,
			TemperatureScale:  vp.TemperatureScale,
		},
	}
}

// Lights builds the infinite and distant lights
func (c Configuration) Lights() (*lights.InfiniteLight, *lights.DistantLight) {
	il := c.Worker.InfiniteLight
	dl := c.Worker.DistantLight
	return lights.NewInfiniteLight(il.XYZ.Core(), il.Multiplier),
		lights.NewDistantLight(dl.XYZ.Core(), dl.Multiplier, dl.InvDirection.Core())
}

// InterpolationKernel parses the interpolation name
func (c Configuration) InterpolationKernel() (volume.Interpolation, error) {
	return volume.ParseInterpolation(c.Interpolation)
}

// SinglePixel returns the debug pixel if single pixel mode is on
func (c Configuration) SinglePixel() (image.Point, bool) {
	sp := c.Worker.SinglePixel
	return image.Point{X: sp.Coord[0], Y: sp.Coord[1]}, sp.Enabled
}
