package codec

import (
	"bytes"

	apperrors "image-compressor-go/internal/errors"

	"github.com/gen2brain/avif"
)

// avifSpeed is the encoder effort, 0 slowest to 10 fastest.
const avifSpeed = 6

// AVIF lossy-encodes the image at a single quality and a fixed speed.
type AVIF struct{}

func (AVIF) Name() string { return "avif" }

func (AVIF) Encode(data []byte, p Params) (Output, error) {
	const op = "avif"
	return run(op, func() (Output, error) {
		img, err := decode(op, data)
		if err != nil {
			return Output{}, err
		}

		q := clampQuality(p.Quality)
		var buf bytes.Buffer
		err = avif.Encode(&buf, toNRGBA(img), avif.Options{
			Quality:      q,
			QualityAlpha: q,
			Speed:        avifSpeed,
		})
		if err != nil {
			return Output{}, apperrors.Codec(op, err)
		}
		return Output{Data: buf.Bytes(), Format: FormatAVIF}, nil
	})
}
