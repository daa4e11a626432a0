package capture

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/mesh-intelligence/larder/pkg/types"
)

// Encoder compresses a processed frame into the stored image format.
type Encoder interface {
	Encode(img image.Image) ([]byte, error)
}

// decodeFrame decodes raw frame bytes delivered by the device.
func decodeFrame(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding frame: %w", types.ErrIOFailure, err)
	}
	return img, nil
}

// rotateClockwise returns src rotated 90 degrees clockwise. The device
// always delivers frames a quarter turn off, so the angle is fixed.
func rotateClockwise(src image.Image) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := range h {
		for x := range w {
			// Source (x, y) lands at (h-1-y, x).
			dst.Set(h-1-y, x, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

// processFrame decodes, orients and re-encodes a raw frame.
func processFrame(raw []byte, enc Encoder) ([]byte, error) {
	img, err := decodeFrame(raw)
	if err != nil {
		return nil, err
	}
	return enc.Encode(rotateClockwise(img))
}
