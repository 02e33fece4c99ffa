// Package dispatch decides which codec adapter handles an input and runs it.
package dispatch

import (
	"strings"

	"image-compressor-go/internal/codec"
	"image-compressor-go/internal/options"
)

// DefaultJPEGQuality is used when a JPEG source is recompressed without an
// explicit conversion. It is independent of the PNG quality range.
const DefaultJPEGQuality = 75

// Result is the encoded output and the MIME type of its bytes.
type Result struct {
	Data        []byte
	ContentType string
	Format      codec.Format
}

// Codecs holds one adapter per encode path.
type Codecs struct {
	PNGQuantized codec.Adapter
	PNGLossless  codec.Adapter
	JPEG         codec.Adapter
	WebP         codec.Adapter
	AVIF         codec.Adapter
	TIFF         codec.Adapter
	BMP          codec.Adapter
	ICO          codec.Adapter
	HEIC         codec.Adapter
}

// DefaultCodecs returns the production adapters.
func DefaultCodecs() Codecs {
	return Codecs{
		PNGQuantized: codec.PNGQuantized{},
		PNGLossless:  codec.PNGLossless{},
		JPEG:         codec.JPEG{},
		WebP:         codec.WebP{},
		AVIF:         codec.AVIF{},
		TIFF:         codec.TIFF{},
		BMP:          codec.BMP{},
		ICO:          codec.ICO{},
		HEIC:         codec.HEIC{},
	}
}

// Engine maps (bytes, extension, options) to exactly one adapter call. It
// holds no mutable state and is safe for concurrent use.
type Engine struct {
	codecs Codecs
}

// New returns an Engine using the given adapters.
func New(codecs Codecs) *Engine {
	return &Engine{codecs: codecs}
}

// NewDefault returns an Engine using the production adapters.
func NewDefault() *Engine {
	return New(DefaultCodecs())
}

// IsHEIC reports whether ext names a HEIC/HEIF source.
func IsHEIC(ext string) bool {
	ext = normalizeExt(ext)
	return ext == "heic" || ext == "heif"
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Compress encodes input according to opts. ext is the source extension,
// with or without a leading dot. Resolution order: HEIC/HEIF sources, then
// the requested target, then the source extension.
func (e *Engine) Compress(input []byte, ext string, opts options.CompressionOptions) (Result, error) {
	adapter, params := e.route(normalizeExt(ext), opts)

	out, err := adapter.Encode(input, params)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Data:        out.Data,
		ContentType: out.Format.ContentType(),
		Format:      out.Format,
	}, nil
}

func (e *Engine) route(ext string, opts options.CompressionOptions) (codec.Adapter, codec.Params) {
	r := opts.Range()
	shared := codec.Params{Quality: opts.SharedQuality(), Range: r, Optimize: opts.Oxipng}

	if ext == "heic" || ext == "heif" {
		return e.codecs.HEIC, codec.Params{Quality: codec.HEICQuality}
	}

	switch opts.Target() {
	case options.TargetWebP:
		return e.codecs.WebP, shared
	case options.TargetAVIF:
		return e.codecs.AVIF, shared
	case options.TargetJPEG:
		return e.codecs.JPEG, shared
	case options.TargetPNG:
		// Conversion to PNG always quantizes, whatever PNGLossy says.
		return e.codecs.PNGQuantized, shared
	case options.TargetTIFF:
		return e.codecs.TIFF, shared
	case options.TargetBMP:
		return e.codecs.BMP, shared
	case options.TargetICO:
		return e.codecs.ICO, shared
	case options.TargetNone:
	}

	switch ext {
	case "png":
		if opts.PNGLossy {
			return e.codecs.PNGQuantized, shared
		}
		return e.codecs.PNGLossless, shared
	case "jpg", "jpeg":
		return e.codecs.JPEG, codec.Params{Quality: DefaultJPEGQuality, Range: r, Optimize: opts.Oxipng}
	default:
		return e.codecs.PNGQuantized, shared
	}
}
