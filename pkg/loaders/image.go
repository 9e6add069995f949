package loaders

import (
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/tiff"
)

// ImageFormat selects the encoder used for rendered images
type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatTIFF ImageFormat = "tiff"
)

// FormatFromPath picks the image format from a file extension
func FormatFromPath(filename string) (ImageFormat, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return FormatPNG, nil
	case ".tif", ".tiff":
		return FormatTIFF, nil
	}
	return "", errors.Errorf("unsupported image extension in %q (want .png or .tiff)", filename)
}

// EncodeImage writes img in the given format. TIFF output keeps 16-bit images at full depth.
func EncodeImage(w io.Writer, format ImageFormat, img image.Image) error {
	switch format {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	}
	return errors.Errorf("unknown image format %q", format)
}

// SaveImage writes img to filename, choosing the format from the extension
func SaveImage(filename string, img image.Image) error {
	format, err := FormatFromPath(filename)
	if err != nil {
		return err
	}

	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create image file")
	}
	if err := EncodeImage(file, format, img); err != nil {
		file.Close()
		return errors.Wrapf(err, "failed to encode %s", format)
	}
	return file.Close()
}

// LoadImage decodes a PNG or TIFF image written by SaveImage
func LoadImage(filename string) (image.Image, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open image file")
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode image")
	}
	return img, nil
}
