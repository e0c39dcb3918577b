package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"upload-compressor-go/internal/compressor"
	"upload-compressor-go/internal/encoding"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// IsImageFile reports whether the path has an extension the decoder handles.
func IsImageFile(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// DiscoverFiles expands directories into the image files below them.
// Explicit file arguments are kept regardless of extension.
func DiscoverFiles(paths []string, log *logrus.Logger) ([]string, error) {
	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				log.Warnf("Error accessing path %s: %v", path, err)
				return nil
			}
			if d.IsDir() || !IsImageFile(path) {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// WriteOutput stores a result in dir under the input's base name and the
// output format's extension, never overwriting an existing file.
func WriteOutput(dir, input string, res *compressor.Result) (string, error) {
	format, err := encoding.ParseFormat(res.Format)
	if err != nil {
		return "", err
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	target := UniquePath(filepath.Join(dir, base+format.Extension()))
	if err := os.WriteFile(target, res.Output, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", target, err)
	}
	return target, nil
}

// UniquePath returns path, or path with a _N counter before the extension
// when something already exists there.
func UniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	dir := filepath.Dir(path)
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	nameWithoutExt := strings.TrimSuffix(name, ext)

	counter := 1
	for {
		newPath := filepath.Join(dir, fmt.Sprintf("%s_%d%s", nameWithoutExt, counter, ext))
		if _, err := os.Stat(newPath); os.IsNotExist(err) {
			return newPath
		}
		counter++
	}
}
