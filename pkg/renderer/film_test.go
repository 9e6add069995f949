package renderer

import (
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFilmCommitTile(t *testing.T) {
	film := NewFilm(4, 3)
	rect := image.Rect(1, 1, 3, 3)
	samples := []Cell{
		{1, 2, 3, 1}, {4, 5, 6, 1},
		{7, 8, 9, 1}, {0, 0, 0, 0},
	}
	film.CommitTile(rect, samples)
	film.CommitTile(rect, samples)

	tests := []struct {
		x, y     int
		expected Cell
	}{
		{1, 1, Cell{2, 4, 6, 2}},
		{2, 1, Cell{8, 10, 12, 2}},
		{1, 2, Cell{14, 16, 18, 2}},
		{2, 2, Cell{}},
		{0, 0, Cell{}},
		{3, 2, Cell{}},
	}
	for _, tt := range tests {
		if got := film.Pixel(tt.x, tt.y); got != tt.expected {
			t.Errorf("Pixel (%d,%d): expected %v, got %v", tt.x, tt.y, tt.expected, got)
		}
	}
}

func TestFilmImage(t *testing.T) {
	film := NewFilm(2, 1)
	// D65 white at twice the weight normalizes to white
	film.CommitTile(image.Rect(0, 0, 2, 1), []Cell{
		{0.95047 * 2, 2, 1.08883 * 2, 2},
		{0, 0, 0, 0},
	})

	img := film.Image()
	if diff := cmp.Diff(color.RGBA{255, 255, 255, 255}, img.RGBAAt(0, 0)); diff != "" {
		t.Errorf("White pixel mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(color.RGBA{0, 0, 0, 255}, img.RGBAAt(1, 0)); diff != "" {
		t.Errorf("Empty pixel mismatch (-want +got):\n%s", diff)
	}

	img16 := film.Image16()
	if c := img16.RGBA64At(0, 0); c.R < 65000 || c.G < 65000 || c.B < 65000 {
		t.Errorf("Expected near white 16-bit pixel, got %v", c)
	}

	if lum := film.AverageLuminance(); lum != 1 {
		t.Errorf("Expected average luminance 1 over sampled pixels, got %f", lum)
	}
}

func TestCellRadiance(t *testing.T) {
	if got := (Cell{2, 4, 6, 2}).Radiance(); got.X != 1 || got.Y != 2 || got.Z != 3 {
		t.Errorf("Expected (1,2,3), got %v", got)
	}
	if got := (Cell{2, 4, 6, 0}).Radiance(); !got.IsZero() {
		t.Errorf("Expected zero radiance without weight, got %v", got)
	}
}
