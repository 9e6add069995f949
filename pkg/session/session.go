// Package session assembles a render from a configuration: the volume, the camera,
// the lights and the progressive renderer.
package session

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/df07/go-volumetric-pathtracer/pkg/config"
	"github.com/df07/go-volumetric-pathtracer/pkg/core"
	"github.com/df07/go-volumetric-pathtracer/pkg/integrator"
	"github.com/df07/go-volumetric-pathtracer/pkg/loaders"
	"github.com/df07/go-volumetric-pathtracer/pkg/renderer"
	"github.com/df07/go-volumetric-pathtracer/pkg/scene"
	"github.com/df07/go-volumetric-pathtracer/pkg/volume"
)

// Session is one configured render
type Session struct {
	Config   config.Configuration
	Volume   *volume.Volume
	Camera   *renderer.Camera
	Renderer *renderer.ProgressiveRenderer
}

// LoadGrids returns the density and temperature grids named by the configuration:
// the volume file if one is set, the built-in scene otherwise
func LoadGrids(ctx context.Context, cfg config.Configuration) (density, temperature *volume.Grid, err error) {
	if cfg.VolumePath == "" {
		return scene.Builtin(cfg.Scene)
	}
	grids, err := loaders.OpenGrids(ctx, cfg.VolumePath)
	if err != nil {
		return nil, nil, err
	}
	return loaders.SelectGrids(grids)
}

// New validates cfg, loads the volume and prepares the renderer. Nothing renders until
// Renderer.Render is called.
func New(ctx context.Context, cfg config.Configuration, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = core.Logger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	density, temperature, err := LoadGrids(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "loading volume")
	}
	kernel, err := cfg.InterpolationKernel()
	if err != nil {
		return nil, err
	}
	vol, err := volume.NewVolume(density, temperature, kernel)
	if err != nil {
		return nil, err
	}
	logger.Info("volume loaded",
		"leaves", density.LeafCount(),
		"voxel_size", density.VoxelSize(),
		"bounds", vol.WorldBounds(),
		"emissive", temperature != nil)

	pc := cfg.ProgressiveConfig()
	camera := renderer.NewCamera(cfg.CameraParams(), pc.Width, pc.Height)
	infinite, distant := cfg.Lights()
	ic := cfg.IntegratorConfig()

	pr, err := renderer.NewProgressiveRenderer(pc, camera, func() integrator.Integrator {
		return integrator.NewVolumePathIntegrator(ic, vol, infinite, distant)
	}, logger)
	if err != nil {
		return nil, err
	}

	return &Session{
		Config:   cfg,
		Volume:   vol,
		Camera:   camera,
		Renderer: pr,
	}, nil
}

// Trace returns the majorant trace of the configured single pixel, or of the image center
// when single pixel mode is off
func (s *Session) Trace() renderer.PixelTrace {
	p, ok := s.Config.SinglePixel()
	if !ok {
		p.X, p.Y = s.Config.OutputSize.Width/2, s.Config.OutputSize.Height/2
	}
	return renderer.TracePixel(s.Camera, s.Volume, p.X, p.Y)
}
