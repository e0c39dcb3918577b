// Package raster turns encoded image buffers into addressable pixel grids.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"upload-compressor-go/internal/metadata"
)

// DefaultMaxPixels bounds the decoded area so a small, highly compressible
// file cannot expand into an arbitrarily large raster.
const DefaultMaxPixels = 100_000_000

var (
	// ErrUnsupportedImageFormat is returned when the input cannot be interpreted as an image.
	ErrUnsupportedImageFormat = errors.New("unsupported image format")
	// ErrCorruptImage is returned when the input decodes to a zero-area raster.
	ErrCorruptImage = errors.New("corrupt image")
	// ErrTooManyPixels is returned when the declared dimensions exceed the decoder's pixel bound.
	ErrTooManyPixels = errors.New("image dimensions exceed pixel limit")
)

// Image is a decoded raster owned by a single compression session.
type Image struct {
	Pixels       image.Image
	Width        int
	Height       int
	SourceFormat string
	Orientation  metadata.Orientation
}

// Decoder decodes JPEG, PNG, GIF, BMP and WebP buffers.
type Decoder struct {
	// MaxPixels caps width*height of the declared dimensions. Zero means DefaultMaxPixels.
	MaxPixels int
}

// NewDecoder returns a Decoder with the given pixel bound.
func NewDecoder(maxPixels int) *Decoder {
	return &Decoder{MaxPixels: maxPixels}
}

// Decode reads the image header, validates its dimensions, decodes the pixels
// and applies the EXIF orientation so Width/Height are the displayed ones.
func (d *Decoder) Decode(data []byte) (*Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImageFormat, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: declared size %dx%d", ErrCorruptImage, cfg.Width, cfg.Height)
	}

	maxPixels := d.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImageFormat, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("%w: decoded size %dx%d", ErrCorruptImage, bounds.Dx(), bounds.Dy())
	}

	orientation := metadata.OrientationUnknown
	if format == "jpeg" {
		orientation = metadata.ReadOrientationBytes(data)
		img = ApplyOrientation(img, orientation)
	}

	bounds = img.Bounds()
	return &Image{
		Pixels:       img,
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		SourceFormat: format,
		Orientation:  orientation,
	}, nil
}
