package metadata

import (
	"fmt"
	"strconv"

	"github.com/barasher/go-exiftool"
	"github.com/sirupsen/logrus"
)

// ExiftoolInspector reads metadata by shelling out to the exiftool binary.
// It understands far more container formats than goexif (HEIC, RAW, WebP XMP).
type ExiftoolInspector struct {
	logger *logrus.Logger
}

// NewExiftoolInspector returns a new ExiftoolInspector.
func NewExiftoolInspector(logger *logrus.Logger) *ExiftoolInspector {
	return &ExiftoolInspector{logger: logger}
}

// Name returns the backend name.
func (e *ExiftoolInspector) Name() string {
	return BackendExiftool
}

// Inspect runs exiftool against filePath with print conversion disabled so
// numeric tags such as Orientation come back as numbers.
func (e *ExiftoolInspector) Inspect(filePath string) (*Info, error) {
	et, err := exiftool.NewExiftool(exiftool.NoPrintConversion())
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	defer et.Close()

	files := et.ExtractMetadata(filePath)
	if len(files) == 0 {
		return nil, fmt.Errorf("exiftool returned no metadata for %s", filePath)
	}
	if files[0].Err != nil {
		return nil, fmt.Errorf("exiftool: %w", files[0].Err)
	}

	fields := files[0].Fields
	e.logger.Debugf("exiftool extracted %d fields from %s", len(fields), filePath)

	info := &Info{
		Orientation: orientationFromField(fields["Orientation"]),
		Make:        stringField(fields["Make"]),
		Model:       stringField(fields["Model"]),
		Software:    stringField(fields["Software"]),
		Source:      BackendExiftool,
	}
	for _, key := range []string{"DateTimeOriginal", "CreateDate", "ModifyDate"} {
		if date := parseEXIFDateTime(stringField(fields[key])); date != nil {
			info.DateTime = date
			break
		}
	}
	return info, nil
}

func orientationFromField(v interface{}) Orientation {
	var n int
	switch val := v.(type) {
	case float64:
		n = int(val)
	case int64:
		n = int(val)
	case int:
		n = val
	case string:
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return OrientationUnknown
		}
		n = parsed
	default:
		return OrientationUnknown
	}
	o := Orientation(n)
	if !o.Valid() {
		return OrientationUnknown
	}
	return o
}

func stringField(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}
