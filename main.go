package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/df07/go-volumetric-pathtracer/pkg/config"
	"github.com/df07/go-volumetric-pathtracer/pkg/core"
	"github.com/df07/go-volumetric-pathtracer/pkg/loaders"
	"github.com/df07/go-volumetric-pathtracer/pkg/renderer"
	"github.com/df07/go-volumetric-pathtracer/pkg/scene"
	"github.com/df07/go-volumetric-pathtracer/pkg/session"
	"github.com/df07/go-volumetric-pathtracer/pkg/volume"
	"github.com/df07/go-volumetric-pathtracer/web/server"
)

// options holds the command line flags. Flags that are set override the configuration file.
type options struct {
	configPath string
	sceneName  string
	volumePath string
	out        string
	workers    int
	waves      int
	seed       uint64
	httpAddr   string
	trace      bool
	export     string
	verbose    bool
	set        map[string]bool
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("vpt", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.configPath, "config", "", "Configuration file (.json, .yaml or .yml)")
	fs.StringVar(&opts.sceneName, "scene", "", fmt.Sprintf("Built-in volume %v", scene.Names()))
	fs.StringVar(&opts.volumePath, "volume", "", "Volume file (.vgrid path or blob URL such as file:///data/fire.vgrid)")
	fs.StringVar(&opts.out, "out", "", "Output image (.png or .tiff), default output/render_<timestamp>.png")
	fs.IntVar(&opts.workers, "workers", 0, "Number of workers (0 = CPU count)")
	fs.IntVar(&opts.waves, "waves", 0, "Number of waves (samples per pixel)")
	fs.Uint64Var(&opts.seed, "seed", 0, "Random seed")
	fs.StringVar(&opts.httpAddr, "http", "", "Serve progress and previews on this address, e.g. :8080")
	fs.BoolVar(&opts.trace, "trace", false, "Log the majorant trace of the single pixel (or the center) and exit")
	fs.StringVar(&opts.export, "export", "", "Write the selected volume to this .vgrid path or blob URL and exit")
	fs.BoolVar(&opts.verbose, "v", false, "Verbose (debug) logging")
	fs.Usage = func() {
		fmt.Fprintln(output, "Volumetric path tracer")
		fmt.Fprintln(output, "Usage: vpt [options]")
		fmt.Fprintln(output)
		fmt.Fprintln(output, "Options:")
		fs.PrintDefaults()
		fmt.Fprintln(output)
		fmt.Fprintln(output, "Ctrl-C once finishes the current wave, twice stops immediately.")
	}

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, errors.Errorf("unexpected arguments %v", fs.Args())
	}
	opts.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

// loadConfiguration reads the configuration file, if any, and applies flag overrides
func loadConfiguration(opts options) (config.Configuration, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return config.Configuration{}, err
		}
	}

	if opts.set["scene"] {
		cfg.Scene = opts.sceneName
		cfg.VolumePath = ""
	}
	if opts.set["volume"] {
		cfg.VolumePath = opts.volumePath
	}
	if opts.set["workers"] {
		cfg.NumWorkers = opts.workers
	}
	if opts.set["waves"] {
		cfg.NumWaves = opts.waves
	}
	if opts.set["seed"] {
		cfg.Seed = opts.seed
	}
	return cfg, cfg.Validate()
}

func newLogger(w io.Writer, verbose bool) (*slog.Logger, *server.ConsoleHandler) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	console := server.NewConsoleHandler(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return slog.New(console), console
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	logger, console := newLogger(stderr, opts.verbose)
	core.SetLogger(logger)
	defer core.SetLogger(nil)

	cfg, err := loadConfiguration(opts)
	if err != nil {
		return errors.Wrap(err, "configuration")
	}

	if opts.export != "" {
		return exportVolume(ctx, cfg, opts.export, logger)
	}

	s, err := session.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if opts.trace {
		logTrace(logger, s.Trace())
		return nil
	}

	out := opts.out
	if out == "" {
		out = filepath.Join("output", fmt.Sprintf("render_%s.png", time.Now().Format("20060102_150405")))
	}
	format, err := loaders.FormatFromPath(out)
	if err != nil {
		return err
	}

	if opts.httpAddr != "" {
		srv := server.NewServer(s.Renderer, logger,
			server.WithConsole(console),
			server.WithInspector(&server.VolumeInspector{
				Camera: s.Camera,
				Volume: s.Volume,
				Width:  cfg.OutputSize.Width,
				Height: cfg.OutputSize.Height,
			}))
		serverCtx, stopServer := context.WithCancel(ctx)
		defer stopServer()
		go func() {
			if err := srv.Start(serverCtx, opts.httpAddr); err != nil {
				logger.Error("web server failed", "error", err)
			}
		}()
	}

	stopSignals := handleInterrupts(s.Renderer, logger)
	defer stopSignals()

	if err := render(ctx, s.Renderer, logger); err != nil {
		return err
	}
	return saveImage(out, format, s.Renderer.Film(), logger)
}

// handleInterrupts maps the first Ctrl-C to StopAtNextWave and the second to StopNow
func handleInterrupts(r *renderer.ProgressiveRenderer, logger *slog.Logger) func() {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt)
	done := make(chan struct{})

	go func() {
		count := 0
		for {
			select {
			case <-done:
				return
			case <-signals:
				count++
				if count == 1 {
					logger.Warn("interrupt: finishing current wave, press Ctrl-C again to stop now")
					r.StopAtNextWave()
				} else {
					logger.Warn("interrupt: stopping now")
					r.StopNow()
				}
			}
		}
	}()

	return func() {
		signal.Stop(signals)
		close(done)
	}
}

func render(ctx context.Context, r *renderer.ProgressiveRenderer, logger *slog.Logger) error {
	waveChan, errChan := r.RenderProgressive(ctx)
	for result := range waveChan {
		logger.Info("wave complete", "wave", result.Wave, "last", result.IsLast, "progress", result.Progress.String())
	}
	return <-errChan
}

func saveImage(out string, format loaders.ImageFormat, film *renderer.Film, logger *slog.Logger) error {
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "creating output directory")
		}
	}
	var err error
	if format == loaders.FormatTIFF {
		err = loaders.SaveImage(out, film.Image16())
	} else {
		err = loaders.SaveImage(out, film.Image())
	}
	if err != nil {
		return err
	}
	logger.Info("image saved", "path", out, "format", format)
	return nil
}

func exportVolume(ctx context.Context, cfg config.Configuration, location string, logger *slog.Logger) error {
	density, temperature, err := session.LoadGrids(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "loading volume")
	}
	grids := []*volume.Grid{density}
	if temperature != nil {
		grids = append(grids, temperature)
	}
	if err := loaders.SaveGrids(ctx, location, grids); err != nil {
		return errors.Wrap(err, "exporting volume")
	}
	logger.Info("volume exported", "location", location, "grids", len(grids), "leaves", density.LeafCount())
	return nil
}

func logTrace(logger *slog.Logger, trace renderer.PixelTrace) {
	logger.Info("majorant trace",
		"pixel", trace.Pixel,
		"origin", trace.Ray.Origin,
		"direction", trace.Ray.Direction,
		"hit", trace.Hit,
		"segments", len(trace.Segments),
		"steps", len(trace.Steps),
		"max_majorant", trace.MaxMajorant())
	for i, seg := range trace.Segments {
		logger.Info("segment", "index", i, "t0", seg.T0, "t1", seg.T1, "majorant", seg.Majorant)
	}
	for i, step := range trace.Steps {
		logger.Debug("dda step", "index", i, "voxel", step.Voxel, "dim", step.Dim, "time", step.Time, "maximum", step.Maximum)
	}
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
