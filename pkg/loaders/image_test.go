package loaders

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"
)

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path     string
		expected ImageFormat
		wantErr  bool
	}{
		{"out.png", FormatPNG, false},
		{"dir/OUT.PNG", FormatPNG, false},
		{"out.tiff", FormatTIFF, false},
		{"out.tif", FormatTIFF, false},
		{"out.jpg", "", true},
		{"out", "", true},
	}

	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: expected error %v, got %v", tt.path, tt.wantErr, err)
		}
		if got != tt.expected {
			t.Errorf("%s: expected %q, got %q", tt.path, tt.expected, got)
		}
	}
}

// TestSaveImageRoundTrip writes a small gradient in both formats and reads it back
func TestSaveImageRoundTrip(t *testing.T) {
	img := image.NewRGBA64(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			v := uint16(x*20000 + y*1000)
			img.SetRGBA64(x, y, color.RGBA64{R: v, G: 65535 - v, B: v / 2, A: 65535})
		}
	}

	for _, name := range []string{"image.tiff", "image.png"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := SaveImage(path, img); err != nil {
				t.Fatalf("SaveImage failed: %v", err)
			}
			loaded, err := LoadImage(path)
			if err != nil {
				t.Fatalf("LoadImage failed: %v", err)
			}
			if loaded.Bounds() != img.Bounds() {
				t.Fatalf("Expected bounds %v, got %v", img.Bounds(), loaded.Bounds())
			}
			for y := 0; y < 2; y++ {
				for x := 0; x < 3; x++ {
					r1, g1, b1, _ := img.At(x, y).RGBA()
					r2, g2, b2, _ := loaded.At(x, y).RGBA()
					if r1 != r2 || g1 != g2 || b1 != b2 {
						t.Errorf("Pixel (%d,%d): expected %v, got %v", x, y, img.At(x, y), loaded.At(x, y))
					}
				}
			}
		})
	}
}

func TestSaveImageRejectsUnknownExtension(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	if err := SaveImage(filepath.Join(t.TempDir(), "out.bmp"), img); err == nil {
		t.Error("Expected error for .bmp output")
	}
}
