// Package codec wraps the image encoders used by the compressor behind a
// narrow byte-in/byte-out contract. Every adapter decodes its own input,
// never returns empty output, and converts decoder or encoder panics into
// typed errors.
package codec

import (
	"fmt"

	apperrors "image-compressor-go/internal/errors"
	"image-compressor-go/internal/quality"
)

// Format is an output encoding produced by an adapter.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
	FormatTIFF Format = "tiff"
	FormatBMP  Format = "bmp"
	FormatICO  Format = "ico"
)

// ContentType returns the MIME type advertised for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	case FormatAVIF:
		return "image/avif"
	case FormatTIFF:
		return "image/tiff"
	case FormatBMP:
		return "image/bmp"
	case FormatICO:
		return "image/x-icon"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the file extension without a leading dot.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// Params carries the resolved encoder parameters for one call.
type Params struct {
	// Quality is the single 0-100 knob used by JPEG, WebP and AVIF.
	Quality int
	// Range bounds palette quantization for PNG.
	Range quality.Range
	// Optimize enables the lossless PNG structural pass.
	Optimize bool
}

// Output is an encoded image and the format its bytes are actually in.
type Output struct {
	Data   []byte
	Format Format
}

// Adapter turns raw image bytes into an encoded image.
type Adapter interface {
	Name() string
	Encode(data []byte, p Params) (Output, error)
}

// run executes fn and enforces the adapter contract on its result.
func run(op string, fn func() (Output, error)) (out Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = Output{}
			err = apperrors.Codec(op, fmt.Errorf("panic: %v", r))
		}
	}()

	out, err = fn()
	if err != nil {
		return Output{}, err
	}
	if len(out.Data) == 0 {
		return Output{}, apperrors.Codec(op, apperrors.ErrEmptyOutput)
	}
	return out, nil
}

// clampQuality bounds q to the encoders' 0..100 scale.
func clampQuality(q int) int {
	if q < 0 {
		return 0
	}
	if q > 100 {
		return 100
	}
	return q
}
