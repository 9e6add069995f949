package integrator

import "github.com/df07/go-volumetric-pathtracer/pkg/core"

// EventType classifies a candidate interaction produced by free-path sampling
type EventType int

const (
	EventNull EventType = iota
	EventAbsorption
	EventScatter
)

func (e EventType) String() string {
	switch e {
	case EventAbsorption:
		return "absorption"
	case EventScatter:
		return "scatter"
	default:
		return "null"
	}
}

// SampleEvent picks an event with probability proportional to its weight. Weights are
// walked in the order null, absorption, scatter. Degenerate weights fall back to a
// null event.
func SampleEvent(pNull, pAbsorption, pScatter, u float64) EventType {
	weights := [3]float64{pNull, pAbsorption, pScatter}
	return EventType(core.SampleDiscrete(weights[:], u))
}
