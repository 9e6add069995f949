package renderer

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
	"github.com/df07/go-volumetric-pathtracer/pkg/integrator"
)

// ProgressiveConfig contains configuration for progressive rendering
type ProgressiveConfig struct {
	Width, Height    int
	TileSize         int           // Edge length of a tile in pixels
	NumWaves         int           // Full passes over the image, one sample per pixel each
	NumWorkers       int           // Number of parallel workers (0 = use CPU count)
	Seed             uint64        // Global seed; each job reseeds from (Seed, job id)
	Tile             TileConfig    // Pixel sampling options
	ProgressInterval time.Duration // Period of progress log lines, 0 disables them
}

// DefaultProgressiveConfig returns sensible default values
func DefaultProgressiveConfig() ProgressiveConfig {
	return ProgressiveConfig{
		Width:            640,
		Height:           480,
		TileSize:         32,
		NumWaves:         64,
		NumWorkers:       0,
		Seed:             1,
		Tile:             TileConfig{UseJitter: true},
		ProgressInterval: 5 * time.Second,
	}
}

// Validate rejects configurations that cannot render
func (c ProgressiveConfig) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return errors.Errorf("output size must be positive, got %dx%d", c.Width, c.Height)
	case c.TileSize <= 0:
		return errors.Errorf("tile size must be positive, got %d", c.TileSize)
	case c.NumWaves <= 0:
		return errors.Errorf("number of waves must be positive, got %d", c.NumWaves)
	case c.NumWorkers < 0:
		return errors.Errorf("number of workers must not be negative, got %d", c.NumWorkers)
	}
	if p := c.Tile.SinglePixel; p != nil && !p.In(image.Rect(0, 0, c.Width, c.Height)) {
		return errors.Errorf("single pixel %v outside the %dx%d image", *p, c.Width, c.Height)
	}
	return nil
}

// IntegratorFactory creates one integrator per worker
type IntegratorFactory func() integrator.Integrator

// WaveResult is emitted each time every tile has finished a wave
type WaveResult struct {
	Wave     int
	Progress Progress
	IsLast   bool
}

// ProgressiveRenderer renders an image in waves, each adding one sample per pixel
type ProgressiveRenderer struct {
	config   ProgressiveConfig
	renderID uuid.UUID
	camera   *Camera
	film     *Film
	provider *TileProvider
	pool     *WorkerPool
	logger   *slog.Logger
}

// NewProgressiveRenderer wires the provider, the film and the worker pool together
func NewProgressiveRenderer(config ProgressiveConfig, camera *Camera, newIntegrator IntegratorFactory, logger *slog.Logger) (*ProgressiveRenderer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = core.Logger()
	}
	id := uuid.New()
	logger = logger.With("render_id", id.String())

	film := NewFilm(config.Width, config.Height)
	provider := NewTileProvider(config.Width, config.Height, config.TileSize, config.NumWaves, logger)
	pool := NewWorkerPool(provider, config.NumWorkers, config.Seed, func(int) *TileRenderer {
		return NewTileRenderer(camera, newIntegrator(), film, config.Tile)
	}, logger)

	return &ProgressiveRenderer{
		config:   config,
		renderID: id,
		camera:   camera,
		film:     film,
		provider: provider,
		pool:     pool,
		logger:   logger,
	}, nil
}

// RenderID returns the unique id of this render
func (pr *ProgressiveRenderer) RenderID() uuid.UUID { return pr.renderID }

// Film returns the accumulation buffer
func (pr *ProgressiveRenderer) Film() *Film { return pr.film }

// Progress returns the current progress
func (pr *ProgressiveRenderer) Progress() Progress { return pr.provider.Progress() }

// StopAtNextWave finishes the waves in flight and starts no new one
func (pr *ProgressiveRenderer) StopAtNextWave() { pr.provider.StopAtNextWave() }

// StopNow abandons all work not yet claimed
func (pr *ProgressiveRenderer) StopNow() { pr.provider.StopNow() }

// Render blocks until every wave is rendered, the render is stopped or ctx is cancelled
func (pr *ProgressiveRenderer) Render(ctx context.Context) error {
	pr.logger.Info("starting render",
		"width", pr.config.Width, "height", pr.config.Height,
		"tiles", pr.provider.NumTiles(), "waves", pr.config.NumWaves,
		"workers", pr.pool.NumWorkers())

	done := make(chan struct{})
	defer close(done)
	if pr.config.ProgressInterval > 0 {
		go pr.logProgress(done)
	}

	err := pr.pool.Run(ctx)
	progress := pr.provider.Progress()
	if err != nil {
		pr.logger.Error("render failed", "error", err, "progress", progress.String())
		return errors.Wrap(err, "render")
	}
	pr.logger.Info("render finished",
		"progress", progress.String(),
		"dropped_samples", pr.pool.Dropped(),
		"average_luminance", pr.film.AverageLuminance())
	return nil
}

func (pr *ProgressiveRenderer) logProgress(done <-chan struct{}) {
	ticker := time.NewTicker(pr.config.ProgressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			pr.logger.Info("progress", "status", pr.provider.Progress().String())
		}
	}
}

// RenderProgressive renders in the background and reports every completed wave.
// The caller should drain both channels; wave results are dropped when the wave
// channel is full rather than stalling the workers.
func (pr *ProgressiveRenderer) RenderProgressive(ctx context.Context) (<-chan WaveResult, <-chan error) {
	waveChan := make(chan WaveResult, pr.config.NumWaves)
	errChan := make(chan error, 1)

	pr.provider.OnWaveComplete(func(wave int) {
		progress := pr.provider.Progress()
		result := WaveResult{
			Wave:     wave,
			Progress: progress,
			IsLast:   wave >= progress.RequestedWaves,
		}
		select {
		case waveChan <- result:
		default:
			// Channel full
		}
	})

	go func() {
		defer close(waveChan)
		defer close(errChan)
		if err := pr.Render(ctx); err != nil {
			errChan <- err
		}
	}()

	return waveChan, errChan
}
