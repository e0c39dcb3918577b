//go:build !cgo

package encoding

import (
	"errors"
	"image"
)

const webpEncoderLinked = false

// WebPEncoder is unavailable without cgo; libwebp is required.
type WebPEncoder struct{}

// Format returns FormatWebP.
func (WebPEncoder) Format() Format { return FormatWebP }

// Encode always fails in builds without cgo.
func (WebPEncoder) Encode(image.Image, float64) ([]byte, error) {
	return nil, errors.New("webp encoding requires a cgo build")
}

// DetectCapabilities reports no WebP support in builds without cgo.
func DetectCapabilities() Capabilities {
	return Capabilities{}
}
