package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	apperrors "image-compressor-go/internal/errors"
	"image-compressor-go/internal/quality"

	"github.com/disintegration/imaging"
	"github.com/soniakeys/quant/mean"
	"github.com/soniakeys/quant/median"
	"golang.org/x/image/draw"
)

// maxCompressionCeiling is the upper quality bound at or below which the
// quantizer switches to its high-fidelity, reduced-palette preset.
const maxCompressionCeiling = 60

// minPaletteColors is the first palette size tried by the search.
const minPaletteColors = 8

// qualityErrorScale is the RMS channel error that scores 0.
const qualityErrorScale = 100.0

var errEmptyPalette = errors.New("quantizer returned an empty palette")

type quantPreset struct {
	name      string
	colors    int
	quantizer func(n int) draw.Quantizer
}

// presetFor picks the quantization preset from the upper quality bound.
func presetFor(r quality.Range) quantPreset {
	if r.Max <= maxCompressionCeiling {
		return quantPreset{name: "max", colors: 128, quantizer: func(n int) draw.Quantizer { return median.Quantizer(n) }}
	}
	return quantPreset{name: "balanced", colors: 256, quantizer: func(n int) draw.Quantizer { return mean.Quantizer(n) }}
}

// PNGQuantized reduces the image to the smallest palette that reaches the
// upper quality bound, dithers it with Floyd-Steinberg and writes it back as
// an RGBA PNG. A result below the lower bound fails with ErrQualityTooLow.
type PNGQuantized struct{}

func (PNGQuantized) Name() string { return "png-quantized" }

func (PNGQuantized) Encode(data []byte, p Params) (Output, error) {
	const op = "png-quantize"
	return run(op, func() (Output, error) {
		img, err := decode(op, data)
		if err != nil {
			return Output{}, err
		}

		src := toNRGBA(img)
		expanded, score, err := quantize(src, presetFor(p.Range), p.Range.Max)
		if err != nil {
			return Output{}, apperrors.Codec(op, err)
		}
		if score < float64(p.Range.Min) {
			return Output{}, apperrors.Codec(op, fmt.Errorf("%w: %.1f < %d", apperrors.ErrQualityTooLow, score, p.Range.Min))
		}

		buf, err := encodePNG(expanded, png.DefaultCompression)
		if err != nil {
			return Output{}, apperrors.Codec(op, err)
		}

		if p.Optimize {
			buf, err = OptimizePNG(buf)
			if err != nil {
				return Output{}, apperrors.Codec("png-optimize", err)
			}
		}
		return Output{Data: buf, Format: FormatPNG}, nil
	})
}

// quantize doubles the palette from minPaletteColors up to the preset budget
// and stops at the first result scoring at least target. When none does, the
// full-budget result is returned with its score.
func quantize(src *image.NRGBA, preset quantPreset, target uint8) (*image.NRGBA, float64, error) {
	for n := minPaletteColors; ; n *= 2 {
		if n > preset.colors {
			n = preset.colors
		}
		out, err := remap(src, preset.quantizer(n), n)
		if err != nil {
			return nil, 0, err
		}
		score := qualityScore(src, out)
		if score >= float64(target) || n == preset.colors {
			return out, score, nil
		}
	}
}

// remap dithers src onto an n-colour palette and expands it back to NRGBA.
func remap(src *image.NRGBA, q draw.Quantizer, n int) (*image.NRGBA, error) {
	bounds := src.Bounds()
	pal := q.Quantize(make(color.Palette, 0, n), src)
	if len(pal) == 0 {
		return nil, errEmptyPalette
	}

	indexed := image.NewPaletted(bounds, pal)
	draw.FloydSteinberg.Draw(indexed, bounds, src, bounds.Min)

	expanded := image.NewNRGBA(bounds)
	draw.Draw(expanded, bounds, indexed, bounds.Min, draw.Src)
	return expanded, nil
}

// qualityScore maps the RMS channel error between two same-sized images onto
// 0..100: identical pixels score 100 and qualityErrorScale or worse scores 0.
func qualityScore(a, b *image.NRGBA) float64 {
	if len(a.Pix) == 0 || len(a.Pix) != len(b.Pix) {
		return 0
	}
	var sum float64
	for i := range a.Pix {
		d := float64(a.Pix[i]) - float64(b.Pix[i])
		sum += d * d
	}
	rmse := math.Sqrt(sum / float64(len(a.Pix)))
	return math.Max(0, 100-rmse*100/qualityErrorScale)
}

// PNGLossless re-encodes the decoded pixels unchanged.
type PNGLossless struct{}

func (PNGLossless) Name() string { return "png-lossless" }

func (PNGLossless) Encode(data []byte, _ Params) (Output, error) {
	const op = "png-lossless"
	return run(op, func() (Output, error) {
		img, err := decode(op, data)
		if err != nil {
			return Output{}, err
		}

		buf, err := encodePNG(img, png.DefaultCompression)
		if err != nil {
			return Output{}, apperrors.Codec(op, err)
		}
		return Output{Data: buf, Format: FormatPNG}, nil
	})
}

func encodePNG(img image.Image, level png.CompressionLevel) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(level)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
