package metadata

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/jpeg"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestReadOrientationWithoutExif(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatal(err)
	}
	if o := ReadOrientationBytes(buf.Bytes()); o != OrientationUnknown {
		t.Fatalf("orientation = %v, want Unknown", o)
	}
	if o := ReadOrientationBytes([]byte("garbage")); o != OrientationUnknown {
		t.Fatalf("orientation of garbage = %v, want Unknown", o)
	}
}

// exifJPEG returns an 8x8 JPEG whose APP1 segment carries only an Orientation tag.
func exifJPEG(t *testing.T, orientation uint16) []byte {
	t.Helper()
	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, image.NewGray(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatal(err)
	}

	var tiff bytes.Buffer
	tiff.WriteString("MM\x00\x2a")
	binary.Write(&tiff, binary.BigEndian, uint32(8))
	binary.Write(&tiff, binary.BigEndian, uint16(1))
	binary.Write(&tiff, binary.BigEndian, uint16(0x0112))
	binary.Write(&tiff, binary.BigEndian, uint16(3))
	binary.Write(&tiff, binary.BigEndian, uint32(1))
	binary.Write(&tiff, binary.BigEndian, orientation)
	binary.Write(&tiff, binary.BigEndian, uint16(0))
	binary.Write(&tiff, binary.BigEndian, uint32(0))

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	var out bytes.Buffer
	out.Write(jpg.Bytes()[:2])
	out.Write([]byte{0xff, 0xe1})
	binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(jpg.Bytes()[2:])
	return out.Bytes()
}

func TestReadOrientationFromExif(t *testing.T) {
	tests := []struct {
		tag   uint16
		want  Orientation
		swaps bool
	}{
		{1, OrientationNormal, false},
		{3, OrientationRotate180, false},
		{5, OrientationTranspose, true},
		{6, OrientationRotate90, true},
		{8, OrientationRotate270, true},
		{42, OrientationUnknown, false},
	}
	for _, tt := range tests {
		got := ReadOrientationBytes(exifJPEG(t, tt.tag))
		if got != tt.want {
			t.Errorf("tag %d: orientation = %v, want %v", tt.tag, got, tt.want)
		}
		if got.SwapsDimensions() != tt.swaps {
			t.Errorf("tag %d: SwapsDimensions() = %v", tt.tag, got.SwapsDimensions())
		}
	}
}

func TestOrientationFromField(t *testing.T) {
	tests := []struct {
		in   interface{}
		want Orientation
	}{
		{float64(6), OrientationRotate90},
		{int64(3), OrientationRotate180},
		{"8", OrientationRotate270},
		{"Rotate 90 CW", OrientationUnknown},
		{float64(9), OrientationUnknown},
		{nil, OrientationUnknown},
	}
	for _, tt := range tests {
		if got := orientationFromField(tt.in); got != tt.want {
			t.Errorf("orientationFromField(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseEXIFDateTime(t *testing.T) {
	d := parseEXIFDateTime("2024:12:25 15:30:45")
	if d == nil || d.Year() != 2024 || d.Month() != 12 || d.Hour() != 15 {
		t.Fatalf("parsed = %v", d)
	}
	if parseEXIFDateTime("") != nil || parseEXIFDateTime("yesterday") != nil {
		t.Fatal("expected nil for unparseable dates")
	}
}

func TestNewInspector(t *testing.T) {
	log := logrus.New()
	for _, backend := range []string{"", "goexif", "EXIFTOOL"} {
		if _, err := NewInspector(backend, log); err != nil {
			t.Errorf("NewInspector(%q): %v", backend, err)
		}
	}
	if _, err := NewInspector("magick", log); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestEXIFInspectorMissingFile(t *testing.T) {
	if _, err := NewEXIFInspector(logrus.New()).Inspect("/nonexistent/photo.jpg"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
