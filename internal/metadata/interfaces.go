package metadata

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Inspector reads descriptive metadata from an image file on disk.
type Inspector interface {
	Inspect(filePath string) (*Info, error)
	Name() string
}

// Orientation is the EXIF orientation tag value (1-8).
type Orientation int

const (
	OrientationUnknown    Orientation = 0
	OrientationNormal     Orientation = 1
	OrientationFlipH      Orientation = 2
	OrientationRotate180  Orientation = 3
	OrientationFlipV      Orientation = 4
	OrientationTranspose  Orientation = 5
	OrientationRotate90   Orientation = 6
	OrientationTransverse Orientation = 7
	OrientationRotate270  Orientation = 8
)

// Backend names accepted by NewInspector.
const (
	BackendGoexif   = "goexif"
	BackendExiftool = "exiftool"
)

// Info contains the metadata fields the inspect command reports.
type Info struct {
	Orientation Orientation
	Make        string
	Model       string
	Software    string
	DateTime    *time.Time
	Source      string
}

// String returns a human-readable description of the orientation.
func (o Orientation) String() string {
	switch o {
	case OrientationNormal:
		return "Normal"
	case OrientationFlipH:
		return "Mirror horizontal"
	case OrientationRotate180:
		return "Rotate 180"
	case OrientationFlipV:
		return "Mirror vertical"
	case OrientationTranspose:
		return "Mirror horizontal and rotate 270 CW"
	case OrientationRotate90:
		return "Rotate 90 CW"
	case OrientationTransverse:
		return "Mirror horizontal and rotate 90 CW"
	case OrientationRotate270:
		return "Rotate 270 CW"
	default:
		return "Unknown"
	}
}

// SwapsDimensions reports whether applying the orientation exchanges width and height.
func (o Orientation) SwapsDimensions() bool {
	switch o {
	case OrientationTranspose, OrientationRotate90, OrientationTransverse, OrientationRotate270:
		return true
	default:
		return false
	}
}

// Valid reports whether o is one of the eight defined EXIF orientations.
func (o Orientation) Valid() bool {
	return o >= OrientationNormal && o <= OrientationRotate270
}

// NewInspector returns the Inspector for the named backend.
func NewInspector(backend string, logger *logrus.Logger) (Inspector, error) {
	switch strings.ToLower(backend) {
	case "", BackendGoexif:
		return NewEXIFInspector(logger), nil
	case BackendExiftool:
		return NewExiftoolInspector(logger), nil
	default:
		return nil, fmt.Errorf("unknown metadata backend: %s (valid: goexif, exiftool)", backend)
	}
}
