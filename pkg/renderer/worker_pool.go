package renderer

import (
	"context"
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
)

// WorkerFactory builds the tile renderer a worker owns for its whole lifetime
type WorkerFactory func(id int) *TileRenderer

// WorkerPool runs a fixed number of workers, each looping on the tile provider until
// it runs out of work.
type WorkerPool struct {
	numWorkers int
	seed       uint64
	provider   *TileProvider
	newWorker  WorkerFactory
	logger     *slog.Logger

	dropped atomic.Int64
}

// NewWorkerPool creates a pool. numWorkers <= 0 uses the CPU count.
func NewWorkerPool(provider *TileProvider, numWorkers int, seed uint64, newWorker WorkerFactory, logger *slog.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if logger == nil {
		logger = core.Logger()
	}
	return &WorkerPool{
		numWorkers: numWorkers,
		seed:       seed,
		provider:   provider,
		newWorker:  newWorker,
		logger:     logger,
	}
}

// NumWorkers returns the number of workers in the pool
func (wp *WorkerPool) NumWorkers() int {
	return wp.numWorkers
}

// Dropped returns the number of non-finite samples discarded so far
func (wp *WorkerPool) Dropped() int64 {
	return wp.dropped.Load()
}

// Run starts the workers and waits for all of them. Cancelling ctx stops the provider
// immediately. A failing worker does the same so the others drain promptly; the first
// error is returned.
func (wp *WorkerPool) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, wp.provider.StopNow)
	defer stop()

	var g errgroup.Group
	for id := 0; id < wp.numWorkers; id++ {
		g.Go(func() error {
			err := wp.runWorker(id)
			if err != nil {
				wp.provider.StopNow()
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (wp *WorkerPool) runWorker(id int) error {
	tr := wp.newWorker(id)
	sampler := core.NewRandomSampler(wp.seed)

	tiles := 0
	for {
		tok := wp.provider.Next()
		if !tok.Valid() {
			wp.logger.Debug("worker finished", "worker", id, "tiles", tiles)
			return nil
		}
		if err := wp.renderToken(id, tr, sampler, tok); err != nil {
			return err
		}
		tiles++
	}
}

// renderToken renders one claimed tile. The token is released even if rendering panics.
func (wp *WorkerPool) renderToken(id int, tr *TileRenderer, sampler *core.RandomSampler, tok *Token) (err error) {
	defer tok.Release()
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("worker %d panicked on tile %d wave %d: %v", id, tok.Tile(), tok.Wave(), r)
		}
	}()

	sampler.BeginJob(tok.JobID())
	stats := tr.RenderTile(tok.Rect(), sampler)
	if stats.Dropped > 0 {
		wp.dropped.Add(int64(stats.Dropped))
		wp.logger.Debug("dropped non-finite samples", "tile", tok.Tile(), "wave", tok.Wave(), "count", stats.Dropped)
	}
	return nil
}
