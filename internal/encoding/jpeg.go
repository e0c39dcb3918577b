package encoding

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
)

// JPEGEncoder encodes baseline JPEG through imaging.
type JPEGEncoder struct{}

// Format returns FormatJPEG.
func (JPEGEncoder) Format() Format { return FormatJPEG }

// Encode encodes img as JPEG at the given quality factor.
func (JPEGEncoder) Encode(img image.Image, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(percentQuality(quality))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
