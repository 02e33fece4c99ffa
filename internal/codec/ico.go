package codec

import (
	"bytes"
	"image"
	"image/png"

	apperrors "image-compressor-go/internal/errors"

	ico "github.com/biessek/golang-ico"
	"github.com/disintegration/imaging"
)

// maxIconSide is the largest edge an ICO directory entry can describe.
const maxIconSide = 256

// ICO writes a single-image icon, downscaling to fit 256x256 first. When
// the icon encoder rejects the image the adapter falls back to PNG and
// reports FormatPNG.
type ICO struct{}

func (ICO) Name() string { return "ico" }

func (ICO) Encode(data []byte, _ Params) (Output, error) {
	const op = "ico"
	return run(op, func() (Output, error) {
		img, err := decode(op, data)
		if err != nil {
			return Output{}, err
		}
		img = fitIcon(img)

		var buf bytes.Buffer
		if err := ico.Encode(&buf, img); err == nil && buf.Len() > 0 {
			return Output{Data: buf.Bytes(), Format: FormatICO}, nil
		}

		fallback, err := encodePNG(img, png.DefaultCompression)
		if err != nil {
			return Output{}, apperrors.Codec(op, err)
		}
		return Output{Data: fallback, Format: FormatPNG}, nil
	})
}

func fitIcon(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxIconSide && b.Dy() <= maxIconSide {
		return img
	}
	return imaging.Fit(img, maxIconSide, maxIconSide, imaging.Lanczos)
}
