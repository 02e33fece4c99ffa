package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	apperrors "image-compressor-go/internal/errors"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var errZeroDimension = errors.New("image has a zero dimension")

// decode sniffs the format from data and decodes it with whichever decoder
// is registered for it. Pixels are kept in stored order; EXIF orientation is
// not applied.
func decode(op string, data []byte) (img image.Image, err error) {
	if len(data) == 0 {
		return nil, apperrors.Decode(op, apperrors.ErrEmptyInput)
	}

	defer func() {
		if r := recover(); r != nil {
			img = nil
			err = apperrors.Decode(op, fmt.Errorf("panic: %v", r))
		}
	}()

	img, _, err = image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Decode(op, err)
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, apperrors.Decode(op, errZeroDimension)
	}
	return img, nil
}

// toNRGBA returns a non-premultiplied RGBA copy of img anchored at (0, 0).
func toNRGBA(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// toRGB drops the alpha channel without compositing, keeping the colour
// channels as stored.
func toRGB(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}
