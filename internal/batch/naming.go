package batch

import (
	"path/filepath"
	"strings"

	"image-compressor-go/internal/codec"
	"image-compressor-go/internal/options"
)

// OutputPrefix is prepended to the file name of every compressed copy.
const OutputPrefix = "c_"

// BackupSuffix is appended to an original while it is being replaced.
const BackupSuffix = ".bak"

// OutputPath returns where the compressed copy of src is written: c_<name>
// next to src, or inside outputDir when one is given and overwrite is off.
// A non-empty ext replaces the file extension.
func OutputPath(src, outputDir string, overwrite bool, ext string) string {
	dir := filepath.Dir(src)
	if outputDir != "" && !overwrite {
		dir = outputDir
	}

	name := OutputPrefix + filepath.Base(src)
	if ext != "" {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + "." + ext
	}
	return filepath.Join(dir, name)
}

// BackupPath returns <name>.<ext>.bak for src.
func BackupPath(src string) string {
	return src + BackupSuffix
}

// OutputExtension decides the extension of the compressed copy. An explicit
// conversion always uses the produced format's extension. Without one, PNG
// and JPEG sources keep theirs and every other source takes the produced
// format's extension.
func OutputExtension(src string, target options.Target, produced codec.Format) string {
	if target != options.TargetNone {
		return produced.Extension()
	}
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(src), ".")) {
	case "png", "jpg", "jpeg":
		return ""
	default:
		return produced.Extension()
	}
}
