package codec

import (
	"bytes"

	apperrors "image-compressor-go/internal/errors"

	"github.com/chai2010/webp"
)

// WebP lossy-encodes the image at a single quality.
type WebP struct{}

func (WebP) Name() string { return "webp" }

func (WebP) Encode(data []byte, p Params) (Output, error) {
	const op = "webp"
	return run(op, func() (Output, error) {
		img, err := decode(op, data)
		if err != nil {
			return Output{}, err
		}

		var buf bytes.Buffer
		opts := &webp.Options{Quality: float32(clampQuality(p.Quality))}
		if err := webp.Encode(&buf, toNRGBA(img), opts); err != nil {
			return Output{}, apperrors.Codec(op, err)
		}
		return Output{Data: buf.Bytes(), Format: FormatWebP}, nil
	})
}
