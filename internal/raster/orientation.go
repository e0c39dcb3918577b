package raster

import (
	"image"

	"github.com/disintegration/imaging"

	"upload-compressor-go/internal/metadata"
)

// ApplyOrientation rotates or flips img so it displays upright.
// imaging rotates counter-clockwise, hence Rotate270 for a 90 CW tag.
func ApplyOrientation(img image.Image, o metadata.Orientation) image.Image {
	switch o {
	case metadata.OrientationFlipH:
		return imaging.FlipH(img)
	case metadata.OrientationRotate180:
		return imaging.Rotate180(img)
	case metadata.OrientationFlipV:
		return imaging.FlipV(img)
	case metadata.OrientationTranspose:
		return imaging.Transpose(img)
	case metadata.OrientationRotate90:
		return imaging.Rotate270(img)
	case metadata.OrientationTransverse:
		return imaging.Transverse(img)
	case metadata.OrientationRotate270:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
