package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

var (
	errNotPNG       = errors.New("not a PNG stream")
	errTruncatedPNG = errors.New("truncated PNG chunk")
)

// safeAncillary lists ancillary chunks that affect how pixels render and are
// therefore kept by OptimizePNG.
var safeAncillary = map[string]bool{
	"tRNS": true,
	"cHRM": true,
	"gAMA": true,
	"iCCP": true,
	"sBIT": true,
	"sRGB": true,
	"cICP": true,
	"pHYs": true,
	"acTL": true,
	"fcTL": true,
	"fdAT": true,
}

// OptimizePNG losslessly shrinks a PNG stream. Non-rendering metadata
// chunks are stripped, then the pixels are re-deflated at best compression
// and, when they fit in 256 colours, re-packed as an indexed image. The
// smallest candidate wins; decoded pixels never change.
func OptimizePNG(data []byte) ([]byte, error) {
	stripped, colorChunks, err := stripChunks(data)
	if err != nil {
		return nil, err
	}

	// Re-encoding would drop colour-management chunks, so only stripping is
	// lossless in that case.
	if colorChunks {
		return stripped, nil
	}

	img, err := png.Decode(bytes.NewReader(stripped))
	if err != nil {
		return nil, fmt.Errorf("decode for optimize: %w", err)
	}

	best := stripped
	consider := func(candidate image.Image) error {
		buf, err := encodePNG(candidate, png.BestCompression)
		if err != nil {
			return err
		}
		if len(buf) < len(best) {
			best = buf
		}
		return nil
	}

	if err := consider(img); err != nil {
		return nil, err
	}
	if indexed, ok := toPaletted(img); ok {
		if err := consider(indexed); err != nil {
			return nil, err
		}
	}
	return best, nil
}

// stripChunks drops ancillary chunks outside safeAncillary. It reports
// whether any colour-management chunk other than tRNS survived.
func stripChunks(data []byte) ([]byte, bool, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, false, errNotPNG
	}

	out := make([]byte, 0, len(data))
	out = append(out, pngSignature...)

	colorChunks := false
	rest := data[len(pngSignature):]
	for len(rest) > 0 {
		if len(rest) < 12 {
			return nil, false, errTruncatedPNG
		}
		length := binary.BigEndian.Uint32(rest[:4])
		total := 12 + uint64(length)
		if uint64(len(rest)) < total {
			return nil, false, errTruncatedPNG
		}

		chunk := rest[:total]
		typ := string(chunk[4:8])
		critical := typ[0] >= 'A' && typ[0] <= 'Z'
		if critical || safeAncillary[typ] {
			out = append(out, chunk...)
			if !critical && typ != "tRNS" {
				colorChunks = true
			}
		}

		rest = rest[total:]
		if typ == "IEND" {
			break
		}
	}
	return out, colorChunks, nil
}

// toPaletted re-packs img as an indexed image when it has at most 256
// distinct colours.
func toPaletted(img image.Image) (*image.Paletted, bool) {
	switch v := img.(type) {
	case *image.Paletted:
		return v, true
	case *image.NRGBA, *image.RGBA, *image.Gray:
	default:
		// 16-bit samples would lose precision in an 8-bit palette.
		return nil, false
	}

	b := img.Bounds()
	index := make(map[color.NRGBA]uint8, 256)
	pal := make(color.Palette, 0, 256)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if _, seen := index[c]; seen {
				continue
			}
			if len(pal) == 256 {
				return nil, false
			}
			index[c] = uint8(len(pal))
			pal = append(pal, c)
		}
	}

	dst := image.NewPaletted(b, pal)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			dst.SetColorIndex(x, y, index[c])
		}
	}
	return dst, true
}
