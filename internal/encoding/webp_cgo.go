//go:build cgo

package encoding

import (
	"bytes"
	"image"
	"sync"

	"github.com/chai2010/webp"
	xwebp "golang.org/x/image/webp"
)

const webpEncoderLinked = true

// WebPEncoder encodes lossy WebP through libwebp.
type WebPEncoder struct{}

// Format returns FormatWebP.
func (WebPEncoder) Format() Format { return FormatWebP }

// Encode encodes img as lossy WebP at the given quality factor.
func (WebPEncoder) Encode(img image.Image, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(percentQuality(quality))}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var (
	probeOnce sync.Once
	probeCaps Capabilities
)

// DetectCapabilities reports WebP support when a probe image survives an
// encode through libwebp and a decode through the pure-Go reader.
// The probe runs once per process; its result is immutable afterwards.
func DetectCapabilities() Capabilities {
	probeOnce.Do(func() {
		probeCaps = Capabilities{WebP: probeWebP()}
	})
	return probeCaps
}

func probeWebP() bool {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := range src.Pix {
		src.Pix[i] = 0x80
	}
	data, err := WebPEncoder{}.Encode(src, 0.8)
	if err != nil || len(data) == 0 {
		return false
	}
	decoded, err := xwebp.Decode(bytes.NewReader(data))
	if err != nil {
		return false
	}
	return decoded.Bounds().Dx() == 2 && decoded.Bounds().Dy() == 2
}
