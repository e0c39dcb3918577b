// Package encoding selects the output image format for a compression session
// and provides the quality-parameterised encoders for each format.
package encoding

import (
	"fmt"
	"image"
	"math"
	"strings"
)

// Format identifies an output encoding.
type Format int

const (
	FormatUnknown Format = iota
	// FormatJPEG is the universally supported lossy fallback.
	FormatJPEG
	// FormatWebP is the modern, more efficient encoding.
	FormatWebP
)

// String returns the short format name.
func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatWebP:
		return "webp"
	default:
		return "unknown"
	}
}

// MIMEType returns the Content-Type for the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatWebP:
		return ".webp"
	default:
		return ""
	}
}

// ParseFormat parses a format name as written in configuration.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return FormatUnknown, fmt.Errorf("unknown output format: %q", name)
	}
}

// Encoder encodes a raster at a quality factor in (0,1].
type Encoder interface {
	Format() Format
	Encode(img image.Image, quality float64) ([]byte, error)
}

// Capabilities describes what the running binary can encode and decode.
type Capabilities struct {
	WebP bool
}

// SelectFormat picks WebP when the runtime supports it and preferModern is set,
// otherwise JPEG.
func SelectFormat(caps Capabilities, preferModern bool) Format {
	if preferModern && caps.WebP {
		return FormatWebP
	}
	return FormatJPEG
}

// NewEncoder returns the encoder for format.
func NewEncoder(format Format) (Encoder, error) {
	switch format {
	case FormatJPEG:
		return JPEGEncoder{}, nil
	case FormatWebP:
		if !webpEncoderLinked {
			return nil, fmt.Errorf("webp encoder not available in this build")
		}
		return WebPEncoder{}, nil
	default:
		return nil, fmt.Errorf("no encoder for format %s", format)
	}
}

// Negotiate detects capabilities and returns the encoder for the preferred format.
func Negotiate(preferModern bool) (Encoder, error) {
	return NewEncoder(SelectFormat(DetectCapabilities(), preferModern))
}

// percentQuality maps a (0,1] factor onto the 1..100 scale used by the codecs.
func percentQuality(q float64) int {
	p := int(math.Round(q * 100))
	if p < 1 {
		p = 1
	}
	if p > 100 {
		p = 100
	}
	return p
}
