// Package options resolves request or command-line settings into the
// parameter record consumed by the dispatcher.
package options

import (
	"strings"

	"image-compressor-go/internal/codec"
	"image-compressor-go/internal/quality"
)

// Target is the single output format a request converts to.
type Target int

const (
	TargetNone Target = iota
	TargetWebP
	TargetAVIF
	TargetJPEG
	TargetPNG
	TargetTIFF
	TargetBMP
	TargetICO
)

// String returns the output_format vocabulary name of the target.
func (t Target) String() string {
	switch t {
	case TargetWebP:
		return "webp"
	case TargetAVIF:
		return "avif"
	case TargetJPEG:
		return "jpeg"
	case TargetPNG:
		return "png"
	case TargetTIFF:
		return "tiff"
	case TargetBMP:
		return "bmp"
	case TargetICO:
		return "ico"
	default:
		return "none"
	}
}

// Format returns the codec format the target requests.
func (t Target) Format() (codec.Format, bool) {
	switch t {
	case TargetWebP:
		return codec.FormatWebP, true
	case TargetAVIF:
		return codec.FormatAVIF, true
	case TargetJPEG:
		return codec.FormatJPEG, true
	case TargetPNG:
		return codec.FormatPNG, true
	case TargetTIFF:
		return codec.FormatTIFF, true
	case TargetBMP:
		return codec.FormatBMP, true
	case TargetICO:
		return codec.FormatICO, true
	default:
		return "", false
	}
}

// ParseTarget maps an output_format value to a Target. Unknown values and
// the empty string map to TargetNone.
func ParseTarget(s string) Target {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "webp":
		return TargetWebP
	case "avif":
		return TargetAVIF
	case "jpeg", "jpg":
		return TargetJPEG
	case "png":
		return TargetPNG
	case "tiff", "tif":
		return TargetTIFF
	case "bmp":
		return TargetBMP
	case "ico":
		return TargetICO
	default:
		return TargetNone
	}
}

// CompressionOptions is the flat per-call configuration. Several To* flags
// may be set at once; Target resolves them by fixed priority.
type CompressionOptions struct {
	PNGLossy   bool
	PNGQuality string
	Oxipng     bool

	ToWebP bool
	ToAVIF bool
	ToJPEG bool
	ToPNG  bool
	ToTIFF bool
	ToBMP  bool
	ToICO  bool
}

// Default returns options with every conversion off, lossy PNG and the
// structural optimizer on, and the default quality range.
func Default() CompressionOptions {
	return CompressionOptions{
		PNGLossy:   true,
		PNGQuality: quality.DefaultText,
		Oxipng:     true,
	}
}

// WithTarget returns a copy of o with the flag for t set.
func (o CompressionOptions) WithTarget(t Target) CompressionOptions {
	switch t {
	case TargetWebP:
		o.ToWebP = true
	case TargetAVIF:
		o.ToAVIF = true
	case TargetJPEG:
		o.ToJPEG = true
	case TargetPNG:
		o.ToPNG = true
	case TargetTIFF:
		o.ToTIFF = true
	case TargetBMP:
		o.ToBMP = true
	case TargetICO:
		o.ToICO = true
	}
	return o
}

// Target collapses the conversion flags: webp, avif, jpeg, png, tiff, bmp,
// ico. The first set flag wins and the rest are ignored.
func (o CompressionOptions) Target() Target {
	switch {
	case o.ToWebP:
		return TargetWebP
	case o.ToAVIF:
		return TargetAVIF
	case o.ToJPEG:
		return TargetJPEG
	case o.ToPNG:
		return TargetPNG
	case o.ToTIFF:
		return TargetTIFF
	case o.ToBMP:
		return TargetBMP
	case o.ToICO:
		return TargetICO
	default:
		return TargetNone
	}
}

// Range parses PNGQuality.
func (o CompressionOptions) Range() quality.Range {
	return quality.Parse(o.PNGQuality)
}

// SharedQuality is the one quality knob driving JPEG, WebP and AVIF
// conversions: the midpoint of the PNG quality range.
func (o CompressionOptions) SharedQuality() int {
	return o.Range().Midpoint()
}

// Form field names accepted by FromForm.
const (
	FieldPNGQuality   = "png_quality"
	FieldOutputFormat = "output_format"
	FieldOxipng       = "oxipng"
	FieldPNGLossy     = "png_lossy"
)

// FromForm overlays submitted form values on base. Boolean fields are true
// only for the literal "true"; absent and unknown keys leave base as is.
func FromForm(base CompressionOptions, fields map[string]string) CompressionOptions {
	o := base
	for key, value := range fields {
		switch key {
		case FieldPNGQuality:
			o.PNGQuality = value
		case FieldOutputFormat:
			o = o.WithTarget(ParseTarget(value))
		case FieldOxipng:
			o.Oxipng = value == "true"
		case FieldPNGLossy:
			o.PNGLossy = value == "true"
		}
	}
	return o
}

// Flags mirrors the command-line switches that feed CompressionOptions.
type Flags struct {
	PNGLossy   bool
	PNGQuality string
	Oxipng     bool
	ToWebP     bool
	ToAVIF     bool
	Format     string
}

// FromFlags builds options from command-line switches. --format adds to the
// dedicated --to-* switches; Target still applies the fixed priority.
func FromFlags(f Flags) CompressionOptions {
	o := CompressionOptions{
		PNGLossy:   f.PNGLossy,
		PNGQuality: f.PNGQuality,
		Oxipng:     f.Oxipng,
		ToWebP:     f.ToWebP,
		ToAVIF:     f.ToAVIF,
	}
	if o.PNGQuality == "" {
		o.PNGQuality = quality.DefaultText
	}
	return o.WithTarget(ParseTarget(f.Format))
}
