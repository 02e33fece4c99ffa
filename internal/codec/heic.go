package codec

import (
	"bytes"
	"fmt"
	"image"

	apperrors "image-compressor-go/internal/errors"

	"github.com/gen2brain/heic"
)

// HEICQuality is the fixed JPEG quality used for HEIC/HEIF ingest.
const HEICQuality = 85

// HEIC decodes HEIC/HEIF input and always re-encodes it as JPEG. Input
// that no registered decoder understands fails with ErrUnsupportedHEIC.
type HEIC struct{}

func (HEIC) Name() string { return "heic" }

func (HEIC) Encode(data []byte, p Params) (Output, error) {
	const op = "heic"
	return run(op, func() (Output, error) {
		img, err := decodeHEIC(data)
		if err != nil {
			return Output{}, apperrors.Decode(op, fmt.Errorf("%w: %v", apperrors.ErrUnsupportedHEIC, err))
		}

		q := p.Quality
		if q == 0 {
			q = HEICQuality
		}
		buf, err := encodeJPEG(img, q)
		if err != nil {
			return Output{}, apperrors.Codec(op, err)
		}
		return Output{Data: buf, Format: FormatJPEG}, nil
	})
}

// decodeHEIC tries the generic decoders first, then the HEIF decoder
// directly for brands the registry does not sniff.
func decodeHEIC(data []byte) (image.Image, error) {
	img, err := decode("heic", data)
	if err == nil {
		return img, nil
	}
	if len(data) == 0 {
		return nil, err
	}

	img, herr := safeHEICDecode(data)
	if herr != nil {
		return nil, err
	}
	return img, nil
}

func safeHEICDecode(data []byte) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	img, err = heic.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, errZeroDimension
	}
	return img, nil
}
