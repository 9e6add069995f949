package renderer

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// TileStats contains statistics about one rendered tile
type TileStats struct {
	Pixels  int // Pixels that were traced
	Dropped int // Samples discarded because the radiance was not finite
}

// Progress is a read-only snapshot of how far a render has come
type Progress struct {
	Completed      int64 // Tiles released across all waves
	Total          int64 // Requested waves × tiles per wave
	StartedWaves   int
	RequestedWaves int
	State          ProviderState
	Ratio          float64       // Completed / Total in [0, 1]
	Elapsed        time.Duration // Wall time since the provider was created
	ETA            time.Duration // Linear extrapolation of the remaining time
}

var printer = message.NewPrinter(language.English)

// String formats progress for log lines, with thousands separators
func (p Progress) String() string {
	return printer.Sprintf("wave %d/%d, %d/%d tiles (%.1f%%), elapsed %v, eta %v, %s",
		p.StartedWaves, p.RequestedWaves, p.Completed, p.Total, 100*p.Ratio,
		p.Elapsed.Round(time.Second), p.ETA.Round(time.Second), p.State)
}

// Finished reports whether no more tiles will be rendered
func (p Progress) Finished() bool {
	if p.State == StateStoppedImmediately {
		return true
	}
	return p.Completed >= p.Total && (p.Total > 0 || p.State != StateRunning)
}
