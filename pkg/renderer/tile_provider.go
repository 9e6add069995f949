package renderer

import (
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
)

// ProviderState is the lifecycle state of a TileProvider
type ProviderState int32

const (
	StateRunning ProviderState = iota
	StateStoppingAtNextWave
	StateStoppedImmediately
)

func (s ProviderState) String() string {
	switch s {
	case StateStoppingAtNextWave:
		return "stopping"
	case StateStoppedImmediately:
		return "stopped"
	default:
		return "running"
	}
}

// Token is a claim on one tile for one wave. The holder is the only writer of the
// tile's pixels until it calls Release.
type Token struct {
	provider *TileProvider
	tile     int
	wave     int
	jobID    uint64
	rect     image.Rectangle
	released atomic.Bool
}

// Valid reports whether the token carries work. A nil token is invalid.
func (t *Token) Valid() bool { return t != nil }

// Tile returns the tile index
func (t *Token) Tile() int { return t.tile }

// Wave returns the 1-based wave index
func (t *Token) Wave() int { return t.wave }

// JobID returns the job index the token was drawn for
func (t *Token) JobID() uint64 { return t.jobID }

// Rect returns the pixel bounds of the tile
func (t *Token) Rect() image.Rectangle { return t.rect }

// Release marks the tile's wave as completed and wakes workers waiting for it.
// Releasing twice, or releasing a nil token, does nothing.
func (t *Token) Release() {
	if t == nil || t.released.Swap(true) {
		return
	}
	t.provider.complete(t.tile, t.wave)
}

type tileState struct {
	mu            sync.Mutex
	cond          *sync.Cond
	lastCompleted int
}

// TileProvider hands out (tile, wave) work in job order. Every tile is rendered once
// per wave, waves of one tile strictly in order, while different tiles may run in
// different waves at the same time.
type TileProvider struct {
	imageBounds image.Rectangle
	tileSize    int
	tilesX      int
	numTiles    int

	nextJob      atomic.Uint64
	startedWaves atomic.Int64
	forceStop    atomic.Bool
	state        atomic.Int32

	waveMu         sync.Mutex // guards wave admission and requestedWaves
	requestedWaves int

	tiles []tileState

	doneMu         sync.Mutex
	waveDone       map[int]int // completed tiles per wave
	completed      atomic.Int64
	onWaveComplete func(wave int)

	start  time.Time
	logger *slog.Logger
}

// NewTileProvider partitions a width×height image into tileSize tiles rendered numWaves times
func NewTileProvider(width, height, tileSize, numWaves int, logger *slog.Logger) *TileProvider {
	if logger == nil {
		logger = core.Logger()
	}
	tilesX := core.CeilDiv(width, tileSize)
	tilesY := core.CeilDiv(height, tileSize)

	p := &TileProvider{
		imageBounds:    image.Rect(0, 0, width, height),
		tileSize:       tileSize,
		tilesX:         tilesX,
		numTiles:       tilesX * tilesY,
		requestedWaves: numWaves,
		tiles:          make([]tileState, tilesX*tilesY),
		waveDone:       make(map[int]int),
		start:          time.Now(),
		logger:         logger,
	}
	for i := range p.tiles {
		p.tiles[i].cond = sync.NewCond(&p.tiles[i].mu)
	}
	return p
}

// NumTiles returns the number of tiles per wave
func (p *TileProvider) NumTiles() int { return p.numTiles }

// TileRect returns the pixel bounds of a tile, clipped to the image
func (p *TileProvider) TileRect(tile int) image.Rectangle {
	x0 := (tile % p.tilesX) * p.tileSize
	y0 := (tile / p.tilesX) * p.tileSize
	return image.Rect(x0, y0, x0+p.tileSize, y0+p.tileSize).Intersect(p.imageBounds)
}

// OnWaveComplete registers a callback invoked, from the releasing worker, once every
// tile of a wave has been released. It must be set before the first Next call.
func (p *TileProvider) OnWaveComplete(fn func(wave int)) {
	p.onWaveComplete = fn
}

// Next claims the next unit of work. It blocks while the previous wave of the tile is
// still being rendered and returns nil once there is no more work or the provider
// was stopped.
func (p *TileProvider) Next() *Token {
	if p.forceStop.Load() || p.numTiles == 0 {
		return nil
	}

	job := p.nextJob.Add(1) - 1
	wave := int(job/uint64(p.numTiles)) + 1
	tile := int(job % uint64(p.numTiles))

	if !p.admitWave(wave) {
		return nil
	}

	ts := &p.tiles[tile]
	ts.mu.Lock()
	if ts.lastCompleted != wave-1 && !p.forceStop.Load() {
		p.logger.Warn("tile is behind, waiting for previous wave",
			"tile", tile, "wave", wave, "last_completed", ts.lastCompleted)
		for ts.lastCompleted != wave-1 && !p.forceStop.Load() {
			ts.cond.Wait()
		}
	}
	ts.mu.Unlock()

	if p.forceStop.Load() {
		return nil
	}
	return &Token{
		provider: p,
		tile:     tile,
		wave:     wave,
		jobID:    job,
		rect:     p.TileRect(tile),
	}
}

// admitWave reports whether work from wave may start, starting it if needed
func (p *TileProvider) admitWave(wave int) bool {
	if int64(wave) <= p.startedWaves.Load() {
		return !p.forceStop.Load()
	}

	p.waveMu.Lock()
	defer p.waveMu.Unlock()

	if p.forceStop.Load() {
		return false
	}
	started := int(p.startedWaves.Load())
	if wave <= started {
		return true
	}
	if wave > p.requestedWaves {
		return false
	}
	p.startedWaves.Store(int64(wave))
	for w := started + 1; w <= wave; w++ {
		p.logger.Info("wave started", "wave", w, "waves", p.requestedWaves)
	}
	return true
}

func (p *TileProvider) complete(tile, wave int) {
	ts := &p.tiles[tile]
	ts.mu.Lock()
	ts.lastCompleted = wave
	ts.cond.Broadcast()
	ts.mu.Unlock()

	p.completed.Add(1)

	p.doneMu.Lock()
	p.waveDone[wave]++
	finished := p.waveDone[wave] == p.numTiles
	if finished {
		delete(p.waveDone, wave)
	}
	p.doneMu.Unlock()

	if finished {
		p.logger.Debug("wave completed", "wave", wave)
		if p.onWaveComplete != nil {
			p.onWaveComplete(wave)
		}
	}
}

// StopAtNextWave lets the waves already started finish and starts no new one
func (p *TileProvider) StopAtNextWave() {
	p.waveMu.Lock()
	p.requestedWaves = int(p.startedWaves.Load())
	p.waveMu.Unlock()
	p.state.CompareAndSwap(int32(StateRunning), int32(StateStoppingAtNextWave))
	p.logger.Info("stopping after current wave", "wave", p.requestedWaves)
}

// StopNow invalidates all future work and wakes workers blocked in Next
func (p *TileProvider) StopNow() {
	if p.forceStop.Swap(true) {
		return
	}
	p.state.Store(int32(StateStoppedImmediately))
	for i := range p.tiles {
		ts := &p.tiles[i]
		ts.mu.Lock()
		ts.cond.Broadcast()
		ts.mu.Unlock()
	}
	p.logger.Info("render stopped")
}

// State returns the current lifecycle state
func (p *TileProvider) State() ProviderState {
	return ProviderState(p.state.Load())
}

// Progress returns completion statistics. It never blocks on workers.
func (p *TileProvider) Progress() Progress {
	p.waveMu.Lock()
	requested := p.requestedWaves
	p.waveMu.Unlock()

	pr := Progress{
		Completed:      p.completed.Load(),
		Total:          int64(requested) * int64(p.numTiles),
		StartedWaves:   int(p.startedWaves.Load()),
		RequestedWaves: requested,
		State:          p.State(),
		Elapsed:        time.Since(p.start),
	}
	if pr.Total > 0 {
		pr.Ratio = min(1, float64(pr.Completed)/float64(pr.Total))
	}
	if pr.Ratio > 0 {
		pr.ETA = time.Duration(float64(pr.Elapsed) * (1 - pr.Ratio) / pr.Ratio)
	}
	return pr
}
