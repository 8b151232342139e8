package image

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"io"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/xerrors"
)

var ErrEmptyImage = errors.New("image has no pixels")

// Decode reads a PNG and returns it as a non-premultiplied RGBA buffer anchored
// at the origin. Pixel values are kept as decoded.
func Decode(r io.Reader) (*image.NRGBA, error) {
	src, err := png.Decode(r)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode PNG: %w", err)
	}

	return normalize(src)
}

func DecodeBytes(data []byte) (*image.NRGBA, error) {
	return Decode(bytes.NewReader(data))
}

func normalize(src image.Image) (*image.NRGBA, error) {
	bounds := src.Bounds()
	if bounds.Empty() {
		return nil, ErrEmptyImage
	}

	width := bounds.Dx()
	height := bounds.Dy()

	if n, ok := src.(*image.NRGBA); ok && bounds.Min == (image.Point{}) && n.Stride == width*4 {
		return n, nil
	}

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))

	switch s := src.(type) {
	case *image.NRGBA:
		for y := 0; y < height; y++ {
			srcStart := s.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride], s.Pix[srcStart:srcStart+width*4])
		}
	default:
		// Paletted, gray and 16-bit PNGs go through the premultiplied model once.
		xdraw.Copy(dst, image.Point{}, src, bounds, xdraw.Src, nil)
	}

	return dst, nil
}
