package codec

import (
	"bytes"
	"image"

	apperrors "image-compressor-go/internal/errors"

	"github.com/gen2brain/jpegli"
)

// optimizeCeiling is the quality at or below which extra entropy-coding
// and scan optimization passes are enabled.
const optimizeCeiling = 60

// JPEG re-encodes the image as a progressive JPEG.
type JPEG struct{}

func (JPEG) Name() string { return "jpeg" }

func (JPEG) Encode(data []byte, p Params) (Output, error) {
	const op = "jpeg"
	return run(op, func() (Output, error) {
		img, err := decode(op, data)
		if err != nil {
			return Output{}, err
		}

		buf, err := encodeJPEG(img, p.Quality)
		if err != nil {
			return Output{}, apperrors.Codec(op, err)
		}
		return Output{Data: buf, Format: FormatJPEG}, nil
	})
}

func encodeJPEG(img image.Image, q int) ([]byte, error) {
	// libjpeg scaling treats quality 0 as 1.
	q = max(clampQuality(q), 1)
	opts := &jpegli.EncodingOptions{
		Quality:          q,
		ProgressiveLevel: 1,
	}
	if q <= optimizeCeiling {
		opts.OptimizeCoding = true
		opts.ProgressiveLevel = 2
	}

	var buf bytes.Buffer
	if err := jpegli.Encode(&buf, toRGB(img), opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
