package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/df07/go-volumetric-pathtracer/pkg/config"
	"github.com/df07/go-volumetric-pathtracer/pkg/core"
	"github.com/df07/go-volumetric-pathtracer/pkg/session"
	"github.com/df07/go-volumetric-pathtracer/web/server"
)

// Renders one configuration and keeps serving its progress, image and pixel traces until
// interrupted, so the final image stays available after the render ends.
func main() {
	port := flag.Int("port", 8080, "Port to serve on")
	configPath := flag.String("config", "", "Configuration file (.json, .yaml or .yml)")
	sceneName := flag.String("scene", "", "Built-in volume, overrides the configuration")
	verbose := flag.Bool("v", false, "Verbose (debug) logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	console := server.NewConsoleHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	logger := slog.New(console)
	core.SetLogger(logger)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			logger.Error("loading configuration failed", "error", err)
			os.Exit(1)
		}
	}
	if *sceneName != "" {
		cfg.Scene, cfg.VolumePath = *sceneName, ""
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s, err := session.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("setting up render failed", "error", err)
		os.Exit(1)
	}

	srv := server.NewServer(s.Renderer, logger,
		server.WithConsole(console),
		server.WithInspector(&server.VolumeInspector{
			Camera: s.Camera,
			Volume: s.Volume,
			Width:  cfg.OutputSize.Width,
			Height: cfg.OutputSize.Height,
		}))

	go func() {
		if err := s.Renderer.Render(ctx); err != nil {
			logger.Error("render failed", "error", err)
		}
	}()

	logger.Info(fmt.Sprintf("Visit http://localhost:%d/api/progress to follow the render", *port))
	if err := srv.Start(ctx, fmt.Sprintf(":%d", *port)); err != nil {
		logger.Error("web server failed", "error", err)
		os.Exit(1)
	}
}
