// Package upload implements the checks an upload handler runs before handing
// a file to the compressor.
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrMIMENotAllowed is returned when the sniffed content type is not allow-listed.
	ErrMIMENotAllowed = errors.New("file type not allowed")
	// ErrFileTooLarge is returned when the raw upload exceeds the preset ceiling.
	ErrFileTooLarge = errors.New("file too large")
	// ErrEmptyFile is returned for zero-length uploads.
	ErrEmptyFile = errors.New("empty file")
)

// DefaultAllowedMIME lists the content types accepted for image uploads.
func DefaultAllowedMIME() []string {
	return []string{"image/jpeg", "image/png", "image/webp"}
}

// Preflight validates raw uploads by sniffed content type and byte size.
type Preflight struct {
	AllowedMIME []string
	MaxBytes    int64
}

// Check returns the sniffed MIME type, or an error if the upload must be rejected.
func (p Preflight) Check(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	if p.MaxBytes > 0 && int64(len(data)) > p.MaxBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds %d bytes", ErrFileTooLarge, len(data), p.MaxBytes)
	}

	mime := DetectMIME(data)
	for _, allowed := range p.AllowedMIME {
		if strings.EqualFold(allowed, mime) {
			return mime, nil
		}
	}
	return mime, fmt.Errorf("%w: %s", ErrMIMENotAllowed, mime)
}

// DetectMIME sniffs the content type from the leading bytes rather than
// trusting client headers.
func DetectMIME(data []byte) string {
	if len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return "image/webp"
	}
	mime := http.DetectContentType(data)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return mime
}
