package metadata

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
)

// EXIFInspector reads metadata using the rwcarlsen/goexif library.
type EXIFInspector struct {
	logger *logrus.Logger
}

// NewEXIFInspector returns a new EXIFInspector.
func NewEXIFInspector(logger *logrus.Logger) *EXIFInspector {
	return &EXIFInspector{logger: logger}
}

// Name returns the backend name.
func (e *EXIFInspector) Name() string {
	return BackendGoexif
}

// Inspect opens filePath and decodes its EXIF block.
func (e *EXIFInspector) Inspect(filePath string) (*Info, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	x, err := exif.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF: %w", err)
	}

	info := &Info{
		Orientation: orientationFromExif(x),
		Make:        stringTag(x, exif.Make),
		Model:       stringTag(x, exif.Model),
		Software:    stringTag(x, exif.Software),
		Source:      BackendGoexif,
	}
	if tm, err := x.DateTime(); err == nil {
		info.DateTime = &tm
	} else {
		e.logger.Debugf("No EXIF DateTime in %s: %v", filePath, err)
	}
	return info, nil
}

// ReadOrientation returns the EXIF orientation of an encoded image, or
// OrientationUnknown when the data carries no usable EXIF block.
func ReadOrientation(r io.Reader) Orientation {
	x, err := exif.Decode(r)
	if err != nil {
		return OrientationUnknown
	}
	return orientationFromExif(x)
}

// ReadOrientationBytes is ReadOrientation over an in-memory buffer.
func ReadOrientationBytes(data []byte) Orientation {
	return ReadOrientation(bytes.NewReader(data))
}

func orientationFromExif(x *exif.Exif) Orientation {
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return OrientationUnknown
	}
	v, err := tag.Int(0)
	if err != nil {
		return OrientationUnknown
	}
	o := Orientation(v)
	if !o.Valid() {
		return OrientationUnknown
	}
	return o
}

func stringTag(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	val, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return val
}

// parseEXIFDateTime parses the date layouts exiftool and goexif emit.
func parseEXIFDateTime(dateStr string) *time.Time {
	if dateStr == "" {
		return nil
	}

	formats := []string{
		"2006:01:02 15:04:05",
		"2006:01:02 15:04:05-07:00",
		"2006-01-02 15:04:05",
		time.RFC3339,
	}

	for _, format := range formats {
		if date, err := time.Parse(format, dateStr); err == nil {
			return &date
		}
	}
	return nil
}
