package codec

import (
	"bytes"

	apperrors "image-compressor-go/internal/errors"

	"github.com/disintegration/imaging"
)

// TIFF swaps the container to TIFF without any quality parameter.
type TIFF struct{}

func (TIFF) Name() string { return "tiff" }

func (TIFF) Encode(data []byte, _ Params) (Output, error) {
	return reencode("tiff", data, imaging.TIFF, FormatTIFF)
}

// BMP swaps the container to BMP without any quality parameter.
type BMP struct{}

func (BMP) Name() string { return "bmp" }

func (BMP) Encode(data []byte, _ Params) (Output, error) {
	return reencode("bmp", data, imaging.BMP, FormatBMP)
}

func reencode(op string, data []byte, f imaging.Format, out Format) (Output, error) {
	return run(op, func() (Output, error) {
		img, err := decode(op, data)
		if err != nil {
			return Output{}, err
		}

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, f); err != nil {
			return Output{}, apperrors.Codec(op, err)
		}
		return Output{Data: buf.Bytes(), Format: out}, nil
	})
}
