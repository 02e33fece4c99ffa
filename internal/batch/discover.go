// Package batch compresses a set of files on disk in parallel and reports
// per-file and aggregate results.
package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "image-compressor-go/internal/errors"
)

// SupportedExtensions lists the lower-case source extensions picked up by
// Discover.
var SupportedExtensions = []string{"png", "jpg", "jpeg", "bmp", "tiff", "tif", "webp", "heic", "heif"}

// IsSupported reports whether path has one of SupportedExtensions.
func IsSupported(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Discover returns the supported image files under input, sorted and
// de-duplicated. A regular file yields itself if supported. A missing or
// unreadable input is an error; unreadable entries below a directory are
// skipped.
func Discover(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, apperrors.IO("discover", fmt.Errorf("input path %s: %w", input, err))
	}

	if !info.IsDir() {
		if IsSupported(input) {
			return []string{input}, nil
		}
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() && IsSupported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.IO("discover", err)
	}

	return dedupSorted(files), nil
}

func dedupSorted(files []string) []string {
	sort.Strings(files)
	out := files[:0]
	for i, f := range files {
		if i > 0 && f == files[i-1] {
			continue
		}
		out = append(out, f)
	}
	return out
}
