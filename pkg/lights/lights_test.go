package lights

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
)

func TestInfiniteLightEmit(t *testing.T) {
	light := NewInfiniteLight(core.NewVec3(0.5, 1, 2), 2)

	expected := core.NewVec3(1, 2, 4)
	for _, dir := range []core.Vec3{{X: 1}, {Y: -1}, {X: 0.3, Y: 0.3, Z: 0.9}} {
		if got := light.Emit(dir); got != expected {
			t.Errorf("Emit(%v): expected %v, got %v", dir, expected, got)
		}
	}
}

func TestInfiniteLightIsNotSampled(t *testing.T) {
	light := NewInfiniteLight(core.Splat(1), 1)
	if _, ok := light.Sample(core.Vec3{}, core.NewVec2(0.5, 0.5)); ok {
		t.Error("Expected the background to be gathered only by escaping rays")
	}
}

func TestDistantLight(t *testing.T) {
	light := NewDistantLight(core.NewVec3(1, 1, 1), 3, core.NewVec3(0, 2, 0))

	if diff := cmp.Diff(core.NewVec3(0, 1, 0), light.ToLight()); diff != "" {
		t.Errorf("ToLight mismatch (-want +got):\n%s", diff)
	}
	if got := light.Emit(core.NewVec3(0, 1, 0)); !got.IsZero() {
		t.Errorf("Expected delta light to emit nothing along rays, got %v", got)
	}

	s, ok := light.Sample(core.NewVec3(5, 5, 5), core.NewVec2(0.1, 0.9))
	if !ok {
		t.Fatal("Expected a sample")
	}
	want := LightSample{
		Direction: core.NewVec3(0, 1, 0),
		Distance:  math.Inf(1),
		Emission:  core.Splat(3),
		PDF:       1,
		IsDelta:   true,
	}
	if diff := cmp.Diff(want, s, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Sample mismatch (-want +got):\n%s", diff)
	}
}

func TestLightsImplementInterface(t *testing.T) {
	var _ Light = (*InfiniteLight)(nil)
	var _ Light = (*DistantLight)(nil)
}

func TestDistantLightDisabled(t *testing.T) {
	tests := []struct {
		name  string
		light *DistantLight
	}{
		{"zero multiplier", NewDistantLight(core.Splat(1), 0, core.NewVec3(0, 1, 0))},
		{"zero colour", NewDistantLight(core.Vec3{}, 1, core.NewVec3(0, 1, 0))},
		{"zero direction", NewDistantLight(core.Splat(1), 1, core.Vec3{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.light.Enabled() {
				t.Error("Expected light to be disabled")
			}
			if _, ok := tt.light.Sample(core.Vec3{}, core.NewVec2(0, 0)); ok {
				t.Error("Expected no sample")
			}
		})
	}
}
